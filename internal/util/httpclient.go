// Package util provides logging, the shared HTTP clients and concurrency helpers.
package util

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// clientConfig holds the knobs for building a pooled HTTP client
type clientConfig struct {
	timeout             time.Duration
	maxIdleConns        int
	maxIdleConnsPerHost int
	maxConnsPerHost     int
	idleConnTimeout     time.Duration
	tlsHandshakeTimeout time.Duration
	keepAlive           time.Duration
	dialTimeout         time.Duration
}

func apiConfig(timeout time.Duration) clientConfig {
	return clientConfig{
		timeout:             timeout,
		maxIdleConns:        100,
		maxIdleConnsPerHost: 16, // matches the resolver's worker cap with headroom
		maxConnsPerHost:     32,
		idleConnTimeout:     90 * time.Second,
		tlsHandshakeTimeout: 5 * time.Second,
		keepAlive:           30 * time.Second,
		dialTimeout:         5 * time.Second,
	}
}

func streamConfig() clientConfig {
	return clientConfig{
		timeout:             0, // a full episode transfer must not hit an overall deadline
		maxIdleConns:        16,
		maxIdleConnsPerHost: 8,
		maxConnsPerHost:     8,
		idleConnTimeout:     120 * time.Second,
		tlsHandshakeTimeout: 10 * time.Second,
		keepAlive:           30 * time.Second,
		dialTimeout:         10 * time.Second,
	}
}

func newTransport(cfg clientConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.dialTimeout,
			KeepAlive: cfg.keepAlive,
		}).DialContext,
		MaxIdleConns:        cfg.maxIdleConns,
		MaxIdleConnsPerHost: cfg.maxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.maxConnsPerHost,
		IdleConnTimeout:     cfg.idleConnTimeout,
		TLSHandshakeTimeout: cfg.tlsHandshakeTimeout,
		ForceAttemptHTTP2:   true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// NewAPIClient returns a pooled client for the many short info-API and
// embed-page requests the crawler issues.
func NewAPIClient(timeout time.Duration) *http.Client {
	cfg := apiConfig(timeout)
	return &http.Client{
		Transport: newTransport(cfg),
		Timeout:   cfg.timeout,
	}
}

// NewStreamClient returns a client for long-lived episode transfers: pooled
// transport with connect-phase timeouts only, no overall request deadline.
func NewStreamClient() *http.Client {
	cfg := streamConfig()
	return &http.Client{
		Transport: newTransport(cfg),
		Timeout:   cfg.timeout,
	}
}

// WorkerPool bounds how many submitted tasks run at once. Submit blocks until
// a slot frees, which is the admission control both the resolver and the
// download manager rely on.
type WorkerPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewWorkerPool creates a pool running at most maxWorkers tasks concurrently.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	return &WorkerPool{
		sem: make(chan struct{}, maxWorkers),
	}
}

// Submit schedules a task, blocking while all workers are busy.
func (wp *WorkerPool) Submit(task func()) {
	wp.wg.Add(1)
	wp.sem <- struct{}{}
	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.sem }()
		task()
	}()
}

// Wait blocks until every submitted task has finished.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}
