// Package recorder persists decoded market data batches.
package recorder

import "github.com/rxtech-lab/argo-alpaca/pkg/stream"

// Recorder defines the interface for persisting streamed market data.
type Recorder interface {
	// Initialize sets up the recorder, creating tables and output directories.
	Initialize() error
	// Record persists the trades, quotes and bars of one batch. Other variants are ignored.
	Record(messages []stream.Message) error
	// Finalize exports what was recorded and returns the output directory.
	Finalize() (outputDir string, err error)
	// Close releases any resources held by the recorder.
	Close() error
}
