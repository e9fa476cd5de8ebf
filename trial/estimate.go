package trial

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidEstimate is returned for submissions that are not a whole number ≥ 0.
var ErrInvalidEstimate = errors.New("estimate must be a whole number of zero or more")

// ParseEstimate validates an estimate submission.
func ParseEstimate(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidEstimate
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidEstimate
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidEstimate
	}
	return n, nil
}
