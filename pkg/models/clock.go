package models

import (
	"time"

	"github.com/moznion/go-optional"
)

// Clock is the market clock returned by GET /v2/clock.
type Clock struct {
	IsOpen    bool                       `json:"is_open" yaml:"is_open"`
	NextOpen  time.Time                  `json:"next_open" yaml:"next_open"`
	NextClose time.Time                  `json:"next_close" yaml:"next_close"`
	Timestamp optional.Option[time.Time] `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// UntilNextChange returns how long until the market next opens or closes, measured from now.
func (c Clock) UntilNextChange(now time.Time) time.Duration {
	if c.IsOpen {
		return c.NextClose.Sub(now)
	}

	return c.NextOpen.Sub(now)
}
