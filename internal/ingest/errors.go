// Package ingest orchestrates source ingestion: the processor contract,
// the kind registry and the service that runs one job end to end.
package ingest

import (
	"errors"
	"fmt"
)

// ErrPermanent marks errors that retrying cannot fix: unsupported source
// kinds, unparsable locators, missing sources. The worker fails such jobs
// immediately instead of consuming retry attempts.
var ErrPermanent = errors.New("permanent error")

// Permanent wraps err so IsPermanent reports true for it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Permanentf formats a new permanent error.
func Permanentf(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrPermanent, fmt.Errorf(format, args...))
}

// IsPermanent reports whether err (or any error it wraps) is permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
