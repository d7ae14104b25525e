// Package http provides the HTTP handlers, routes, and middleware for the
// PageForge API.
package http

import (
	"net/http"

	"github.com/Strob0t/PageForge/internal/domain/task"
	"github.com/Strob0t/PageForge/internal/service"
)

// maxSubmitBody bounds a task submission body; attachments can be large.
const maxSubmitBody = 10 << 20 // 10 MB

// Handlers aggregates the service dependencies for all HTTP handlers.
type Handlers struct {
	Rounds *service.RoundService
}

// SubmitTask accepts one generation round. The response acknowledges
// acceptance only; the outcome is reported via the callback URL.
func (h *Handlers) SubmitTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.SubmitRequest](w, r, maxSubmitBody)
	if !ok {
		return
	}

	ack, err := h.Rounds.Submit(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}

	writeJSON(w, http.StatusAccepted, ack)
}

// GetTask returns the stored state of the most recent successful round.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "id")

	st, err := h.Rounds.Status(r.Context(), taskID)
	if err != nil {
		writeDomainError(w, err, "no completed round for task")
		return
	}

	writeJSON(w, http.StatusOK, st)
}
