package models

import (
	"time"

	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
)

// ParseTimestampMillis parses an RFC-3339 timestamp (with or without fractional seconds)
// into Unix milliseconds.
func ParseTimestampMillis(value string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid timestamp %q", value)
	}

	return t.UnixMilli(), nil
}
