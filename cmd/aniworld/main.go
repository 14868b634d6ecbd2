package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"

	"github.com/alvarorichard/aniworld/internal/appflow"
	"github.com/alvarorichard/aniworld/internal/config"
	"github.com/alvarorichard/aniworld/internal/util"
)

func main() {
	startFlag := flag.Int("start", 0, "first episode of the window")
	endFlag := flag.Int("end", 0, "last episode of the window")
	dirFlag := flag.String("dir", config.DefaultDownloadRoot, "download root directory")
	fileFlag := flag.String("file", "", "read listing URLs from a file, one per line")
	debugFlag := flag.Bool("debug", false, "enable debug mode")
	helpFlag := flag.Bool("help", false, "show help message")
	altHelpFlag := flag.Bool("h", false, "show help message")

	flag.Parse()

	if *helpFlag || *altHelpFlag {
		util.Helper()
		return
	}

	util.SetDebugMode(*debugFlag)
	util.InitLogger()

	urls, fromFile, err := gatherURLs(*fileFlag, flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, util.ErrorHandler(err))
		os.Exit(1)
	}

	cfg := config.Default()
	cfg.DownloadRoot = *dirFlag

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failures := 0
	for _, url := range urls {
		opts := appflow.Options{URL: url, Start: *startFlag, End: *endFlag}
		if err := appflow.Run(ctx, cfg, opts); err != nil {
			failures++
			fmt.Fprintln(os.Stderr, util.ErrorHandler(err))
			if ctx.Err() != nil {
				break
			}
		}
	}

	if failures == 0 && fromFile != "" {
		// The batch file acts as a queue: clear it once everything went through.
		if err := os.WriteFile(fromFile, nil, 0o600); err != nil {
			util.Warnf("could not clear %s: %v", fromFile, err)
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

// gatherURLs collects listing URLs from, in order of preference: the -file
// flag, positional arguments, or an interactive prompt. The returned path is
// non-empty only when a batch file was used.
func gatherURLs(file string, args []string) ([]string, string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, "", err
		}
		var urls []string
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				urls = append(urls, line)
			}
		}
		if len(urls) == 0 {
			return nil, "", fmt.Errorf("%s contains no URLs", file)
		}
		return urls, file, nil
	}

	if len(args) > 0 {
		return args, "", nil
	}

	prompt := promptui.Prompt{
		Label: "Listing URL",
		Validate: func(input string) error {
			if !strings.Contains(input, "/anime/") {
				return fmt.Errorf("expected a listing URL containing /anime/")
			}
			return nil
		},
	}
	url, err := prompt.Run()
	if err != nil {
		return nil, "", err
	}
	return []string{url}, "", nil
}
