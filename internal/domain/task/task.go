// Package task defines the app-generation task entities.
package task

import (
	"fmt"
	"time"

	"github.com/Strob0t/PageForge/internal/domain"
)

// Attachment types recognized in a submission. Entries with any other type
// are dropped silently rather than rejected.
const (
	AttachmentText  = "text"
	AttachmentImage = "image"
)

// Attachment is supplementary material shipped with a task submission.
// Text attachments carry their content inline; image attachments carry
// base64 data that is referenced, not embedded, in the prompt.
type Attachment struct {
	Type        string `json:"type"`
	Filename    string `json:"filename"`
	Content     string `json:"content,omitempty"`
	Data        string `json:"data,omitempty"`
	Description string `json:"description,omitempty"`
}

// SubmitRequest is the inbound payload for one generation round.
type SubmitRequest struct {
	TaskID      string       `json:"taskId"`
	Brief       string       `json:"brief"`
	CallbackURL string       `json:"callbackUrl"`
	Secret      string       `json:"secret,omitempty"`
	Round       int          `json:"round,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	RepoName    string       `json:"repoName,omitempty"`
}

// Validate checks required fields and normalizes the round number.
func (r *SubmitRequest) Validate() error {
	if r.TaskID == "" {
		return fmt.Errorf("%w: taskId is required", domain.ErrValidation)
	}
	if r.Brief == "" {
		return fmt.Errorf("%w: brief is required", domain.ErrValidation)
	}
	if r.CallbackURL == "" {
		return fmt.Errorf("%w: callbackUrl is required", domain.ErrValidation)
	}
	if r.Round < 1 {
		r.Round = 1
	}
	return nil
}

// KnownAttachments returns the attachments whose type is recognized,
// preserving order.
func (r *SubmitRequest) KnownAttachments() []Attachment {
	out := make([]Attachment, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		if a.Type == AttachmentText || a.Type == AttachmentImage {
			out = append(out, a)
		}
	}
	return out
}

// Ack is the synchronous acceptance response for a submission.
type Ack struct {
	Status string `json:"status"`
	TaskID string `json:"taskId"`
	Round  int    `json:"round"`
}

// State is the stored outcome of the most recent successful round.
// RepoName is immutable once set for a task; every other field is
// replaced wholesale when a later round succeeds.
type State struct {
	RepoName      string    `json:"repoName"`
	LastDocument  string    `json:"lastDocument"`
	RepoURL       string    `json:"repoUrl"`
	DeploymentURL string    `json:"deploymentUrl"`
	Round         int       `json:"round"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Outcome statuses reported through the callback.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Outcome is the callback payload delivered exactly once per accepted
// submission.
type Outcome struct {
	TaskID        string    `json:"taskId"`
	Round         int       `json:"round"`
	Status        string    `json:"status"`
	RepoURL       string    `json:"repoUrl,omitempty"`
	DeploymentURL string    `json:"deploymentUrl,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
