// Package numbering derives delivery-note numbers of the form ALB-YYMM-NNNN.
//
// The sequence is a single global counter taken from the most recently created
// note; it is not reset when the month changes.
package numbering

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	// Prefix starts every delivery-note number
	Prefix = "ALB"

	sequenceDigits = 4
)

// Allocate returns the number that follows lastIssued for a note created at now.
// A nil or empty lastIssued starts the sequence at 1. Allocate never fails: when
// the previous number cannot be parsed it returns Fallback(now).
func Allocate(now time.Time, lastIssued *string) string {
	sequence := 1
	if lastIssued != nil && *lastIssued != "" {
		previous, err := parseSequence(*lastIssued)
		if err != nil {
			return Fallback(now)
		}
		sequence = previous + 1
	}
	return Format(now, sequence)
}

// Format renders a number for the period of now and the given sequence
func Format(now time.Time, sequence int) string {
	return fmt.Sprintf("%s-%s-%0*d", Prefix, now.Format("0601"), sequenceDigits, sequence)
}

// Fallback is the terminal numbering path, ALB-<unix millis>
func Fallback(now time.Time) string {
	return fmt.Sprintf("%s-%d", Prefix, now.UnixMilli())
}

// parseSequence reads the trailing four digits of a previously issued number,
// whatever period it belongs to.
func parseSequence(number string) (int, error) {
	if len(number) < sequenceDigits {
		return 0, errors.Errorf("number %q is shorter than its sequence", number)
	}
	suffix := number[len(number)-sequenceDigits:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, errors.Errorf("number %q has a non-numeric sequence", number)
		}
	}
	sequence, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse sequence of %q", number)
	}
	return sequence, nil
}
