package services

import (
	"context"
	"iter"
)

// Provider streams the assistant's answer to a single prompt. The iterator
// yields response fragments in order; a yielded error ends the stream.
type Provider interface {
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}
