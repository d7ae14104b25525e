// Package generator defines the text-generation backend port (interface).
package generator

import "context"

// Generator is the port interface for producing a document from a prompt.
// Provider-specific request and response shaping lives entirely in the
// adapter; the orchestrator sees prompt in, free text out.
type Generator interface {
	// Name returns the unique identifier for this backend (e.g. "litellm").
	Name() string

	// Generate produces raw text (possibly fenced-code-wrapped) for a prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}
