package main

import "github.com/rxtech-lab/argo-alpaca/pkg/stream"

// MarketDataMsg carries one decoded batch from the stream.
type MarketDataMsg struct {
	Batch []stream.Message
}

// StreamErrorMsg indicates an error in the data stream.
type StreamErrorMsg struct {
	Err error
}

// StreamStatusMsg reports a connection state change of the stream.
type StreamStatusMsg struct {
	State stream.State
}

// StreamStartedMsg signals that streaming has begun.
type StreamStartedMsg struct{}
