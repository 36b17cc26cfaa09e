// Package ai wraps the generative text model used for chat, daily
// summaries and the intelligence feed.
package ai

import (
	"context"
	"errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNotConfigured is returned when no model credentials are available.
var ErrNotConfigured = errors.New("generative model is not configured")

type Message struct {
	Role    string
	Content string
}

type Request struct {
	System   string
	Messages []Message
	// Search enables web-search grounding for the call.
	Search bool
}

// Client generates text. Stream calls onChunk for every partial piece and
// returns the full concatenated reply; an error from onChunk stops the stream.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request, onChunk func(chunk string) error) (string, error)
}

// Disabled is the Client used when the model is not configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) Stream(context.Context, Request, func(string) error) (string, error) {
	return "", ErrNotConfigured
}
