// Package service contains application services.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/PageForge/internal/adapter/otel"
	"github.com/Strob0t/PageForge/internal/adapter/ws"
	"github.com/Strob0t/PageForge/internal/domain"
	"github.com/Strob0t/PageForge/internal/domain/htmldoc"
	"github.com/Strob0t/PageForge/internal/domain/prompt"
	"github.com/Strob0t/PageForge/internal/domain/task"
	"github.com/Strob0t/PageForge/internal/port/generator"
	"github.com/Strob0t/PageForge/internal/port/notifier"
	"github.com/Strob0t/PageForge/internal/port/publisher"
	"github.com/Strob0t/PageForge/internal/port/statestore"
)

// DocumentPath is where the generated document is committed in every repo.
const DocumentPath = "index.html"

// Timeouts bounds each downstream call of a round.
type Timeouts struct {
	Generate time.Duration
	Publish  time.Duration
	Notify   time.Duration
}

// RoundService orchestrates one generation-and-publish round per submission:
// validate, resolve create-vs-update from stored state, generate, extract,
// publish, store, and notify the callback exactly once.
type RoundService struct {
	store    statestore.Store
	gen      generator.Generator
	pub      publisher.Provider
	notifier notifier.Notifier
	hub      *ws.Hub       // optional
	metrics  *otel.Metrics // optional
	secret   string
	timeouts Timeouts

	wg sync.WaitGroup
}

// NewRoundService creates a RoundService. secret may be empty, which
// disables the shared-secret check. hub and metrics may be nil.
func NewRoundService(
	store statestore.Store,
	gen generator.Generator,
	pub publisher.Provider,
	n notifier.Notifier,
	secret string,
	timeouts Timeouts,
) *RoundService {
	if timeouts.Generate <= 0 {
		timeouts.Generate = 3 * time.Minute
	}
	if timeouts.Publish <= 0 {
		timeouts.Publish = 30 * time.Second
	}
	if timeouts.Notify <= 0 {
		timeouts.Notify = 10 * time.Second
	}
	return &RoundService{
		store:    store,
		gen:      gen,
		pub:      pub,
		notifier: n,
		secret:   secret,
		timeouts: timeouts,
	}
}

// SetHub attaches a WebSocket hub for lifecycle event broadcasts.
func (s *RoundService) SetHub(hub *ws.Hub) { s.hub = hub }

// SetMetrics attaches metric instruments.
func (s *RoundService) SetMetrics(m *otel.Metrics) { s.metrics = m }

// Submit validates a submission and, when accepted, starts the round
// pipeline detached from the request context. The returned Ack is the
// synchronous response; the final outcome arrives only via the callback.
func (s *RoundService) Submit(ctx context.Context, req task.SubmitRequest) (*task.Ack, error) {
	if s.secret != "" {
		if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.secret)) != 1 {
			return nil, domain.ErrUnauthorized
		}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	slog.Info("task accepted", "task_id", req.TaskID, "round", req.Round)
	if s.metrics != nil {
		s.metrics.TasksAccepted.Add(ctx, 1)
	}

	// The pipeline must outlive the HTTP request: a client disconnect after
	// the ack must not cancel accepted work.
	detached := context.WithoutCancel(ctx)
	s.broadcast(detached, ws.EventTaskAccepted, req.TaskID, req.Round, "")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runRound(detached, req)
	}()

	return &task.Ack{Status: "accepted", TaskID: req.TaskID, Round: req.Round}, nil
}

// Status returns the stored state for a task, or domain.ErrNotFound when no
// round has ever completed for it.
func (s *RoundService) Status(ctx context.Context, taskID string) (*task.State, error) {
	return s.store.Get(ctx, taskID)
}

// Drain blocks until all in-flight rounds finish or ctx expires.
func (s *RoundService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// roundResult carries the URLs of a successfully published round.
type roundResult struct {
	repoURL       string
	deploymentURL string
}

// runRound executes the pipeline and notifies the callback exactly once,
// with either the success or the failure payload.
func (s *RoundService) runRound(ctx context.Context, req task.SubmitRequest) {
	start := time.Now()

	res, err := s.executeRound(ctx, req)

	outcome := task.Outcome{
		TaskID:    req.TaskID,
		Round:     req.Round,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		slog.Error("round failed", "task_id", req.TaskID, "round", req.Round, "error", err)
		outcome.Status = task.StatusFailed
		outcome.Error = err.Error()
		if s.metrics != nil {
			s.metrics.TasksFailed.Add(ctx, 1)
		}
		s.broadcast(ctx, ws.EventTaskFailed, req.TaskID, req.Round, err.Error())
	} else {
		slog.Info("round completed",
			"task_id", req.TaskID,
			"round", req.Round,
			"repo_url", res.repoURL,
			"deployment_url", res.deploymentURL,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		outcome.Status = task.StatusCompleted
		outcome.RepoURL = res.repoURL
		outcome.DeploymentURL = res.deploymentURL
		if s.metrics != nil {
			s.metrics.TasksCompleted.Add(ctx, 1)
		}
		s.broadcast(ctx, ws.EventTaskCompleted, req.TaskID, req.Round, res.deploymentURL)
	}
	if s.metrics != nil {
		s.metrics.RoundDuration.Record(ctx, time.Since(start).Seconds())
	}

	s.notify(ctx, req.CallbackURL, outcome)
}

// executeRound runs lookup → prompt → generate → extract → publish → store.
// Any error leaves the previously stored state untouched.
func (s *RoundService) executeRound(ctx context.Context, req task.SubmitRequest) (*roundResult, error) {
	prior, err := s.store.Get(ctx, req.TaskID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("state lookup: %w", err)
	}

	// Update mode requires both a later round and something to update. A
	// round ≥2 submission with no prior state is executed as a fresh
	// creation rather than rejected.
	updateMode := req.Round > 1 && (prior != nil || req.RepoName != "")

	repoName := req.RepoName
	if repoName == "" && prior != nil {
		repoName = prior.RepoName
	}
	if repoName == "" {
		repoName = generateRepoName(req.TaskID)
	}

	mode := "create"
	priorDocument := ""
	if updateMode {
		mode = "update"
		if prior != nil {
			priorDocument = prior.LastDocument
		}
	}

	ctx, span := otel.StartRoundSpan(ctx, req.TaskID, req.Round, mode)
	defer span.End()

	p := prompt.Build(req.Brief, req.KnownAttachments(), req.Round, priorDocument)

	raw, err := s.generate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("generation: %w", err)
	}

	doc := htmldoc.Extract(raw)

	if err := s.publish(ctx, repoName, req, doc, updateMode); err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	res := &roundResult{
		repoURL:       s.pub.RepoURL(repoName),
		deploymentURL: s.pub.PagesURL(repoName),
	}

	st := &task.State{
		RepoName:      repoName,
		LastDocument:  doc,
		RepoURL:       res.repoURL,
		DeploymentURL: res.deploymentURL,
		Round:         req.Round,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.store.Set(ctx, req.TaskID, st); err != nil {
		// The round is published and the URLs are live; a store failure
		// only degrades the next update round's context.
		slog.Error("state store update failed", "task_id", req.TaskID, "error", err)
	}

	return res, nil
}

func (s *RoundService) generate(ctx context.Context, p string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Generate)
	defer cancel()

	ctx, span := otel.StartGenerateSpan(ctx, s.gen.Name())
	defer span.End()

	return s.gen.Generate(ctx, p)
}

// publish commits the document, creating the repository in create mode and
// replacing the current document version in update mode. Enabling pages is
// attempted in both modes and is never fatal.
func (s *RoundService) publish(ctx context.Context, repoName string, req task.SubmitRequest, doc string, updateMode bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Publish)
	defer cancel()

	ctx, span := otel.StartPublishSpan(ctx, s.pub.Name(), repoName)
	defer span.End()

	sha := ""
	if updateMode {
		if _, err := s.pub.GetRepo(ctx, repoName); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			// The target repository disappeared; recreate it.
			if _, err := s.pub.CreateRepo(ctx, repoName, repoDescription(req.Brief)); err != nil {
				return err
			}
		} else {
			existing, err := s.pub.GetContentSHA(ctx, repoName, DocumentPath)
			if err != nil {
				return err
			}
			sha = existing
		}
	} else {
		if _, err := s.pub.CreateRepo(ctx, repoName, repoDescription(req.Brief)); err != nil {
			return err
		}
	}

	if err := s.pub.PutContent(ctx, repoName, DocumentPath, []byte(doc), commitMessage(req.Round, req.Brief), sha); err != nil {
		return err
	}

	if s.pub.Capabilities().Pages {
		if err := s.pub.EnablePages(ctx, repoName); err != nil {
			slog.Warn("enable pages failed, using conventional URL",
				"repo", repoName, "error", err)
		}
	}

	return nil
}

// notify delivers the outcome once. Delivery failure is logged and changes
// nothing about the recorded task outcome.
func (s *RoundService) notify(ctx context.Context, url string, outcome task.Outcome) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Notify)
	defer cancel()

	if err := s.notifier.Send(ctx, url, outcome); err != nil {
		slog.Warn("callback delivery failed",
			"task_id", outcome.TaskID,
			"round", outcome.Round,
			"url", url,
			"error", err,
		)
		return
	}
	slog.Info("callback delivered", "task_id", outcome.TaskID, "round", outcome.Round, "status", outcome.Status)
}

func (s *RoundService) broadcast(ctx context.Context, event, taskID string, round int, detail string) {
	if s.hub != nil {
		s.hub.BroadcastTaskEvent(ctx, event, taskID, round, detail)
	}
}

// generateRepoName derives a repository name from the task identifier and
// the current time, so repeated round-1 submissions of one identifier do
// not collide.
func generateRepoName(taskID string) string {
	return fmt.Sprintf("pf-%s-%s", slug(taskID), time.Now().UTC().Format("20060102150405"))
}

// slug reduces an opaque identifier to lowercase letters, digits, and
// dashes, capped at 24 characters.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteRune('-')
		}
		if b.Len() >= 24 {
			break
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "app"
	}
	return out
}

func commitMessage(round int, brief string) string {
	if round <= 1 {
		return "initial version: " + truncate(brief, 60)
	}
	return fmt.Sprintf("round %d: %s", round, truncate(brief, 60))
}

func repoDescription(brief string) string {
	return "Generated single-page app: " + truncate(brief, 100)
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
