package errs

import (
	"fmt"
	"strings"

	cr "github.com/cockroachdb/errors"
)

// Sentinels shared across packages. Mark driver errors with these so callers
// can branch with Is without knowing the backend.
var (
	ErrInvalidPayload   = cr.New("invalid slot payload")
	ErrInvalidSlot      = cr.New("invalid slot")
	ErrInvalidReference = cr.New("invalid reference point")
	ErrNotFound         = cr.New("not found")
)

func New(msg string) error {
	return cr.New(msg)
}

func Newf(format string, args ...any) error {
	return cr.Newf(format, args...)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func Mark(err error, markErr error) error {
	if err == nil {
		return markErr
	}
	return cr.Mark(err, markErr)
}

func Is(err, reference error) bool {
	return cr.Is(err, reference)
}

// Combine joins the non-nil errors. It returns nil when every input is nil.
func Combine(errList ...error) error {
	var out error
	for _, err := range errList {
		out = cr.CombineErrors(out, err)
	}
	return out
}

func ExtractStackLines(err error, maxLines int) []string {
	if err == nil {
		return nil
	}
	s := fmt.Sprintf("%+v", err)
	lines := strings.Split(s, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
