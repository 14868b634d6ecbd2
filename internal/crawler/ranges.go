package crawler

import "github.com/pkg/errors"

// ErrInvalidRange marks a requested episode window that cannot be satisfied.
// It is fatal and reported before any network resolution starts.
var ErrInvalidRange = errors.New("invalid episode range")

// ValidateRange checks a requested episode window against the total number of
// episodes. Zero means "unbounded on that side". It has no side effects and
// runs exactly once per request, before any resolution work.
func ValidateRange(start, end, total int) (int, int, error) {
	if start != 0 && (start < 1 || start > total) {
		return 0, 0, errors.Wrapf(ErrInvalidRange, "start episode must be between 1 and %d, got %d", total, start)
	}

	if start != 0 && end != 0 {
		if start > end {
			return 0, 0, errors.Wrapf(ErrInvalidRange, "start episode %d cannot be greater than end episode %d", start, end)
		}
		if end > total {
			return 0, 0, errors.Wrapf(ErrInvalidRange, "end episode must be between 1 and %d, got %d", total, end)
		}
	}

	return start, end, nil
}
