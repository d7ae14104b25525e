package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/PageForge/internal/domain"
	"github.com/Strob0t/PageForge/internal/domain/task"
	"github.com/Strob0t/PageForge/internal/port/generator"
	"github.com/Strob0t/PageForge/internal/port/notifier"
	"github.com/Strob0t/PageForge/internal/port/publisher"
	"github.com/Strob0t/PageForge/internal/port/statestore"
)

// mockStore implements statestore.Store.
type mockStore struct {
	mu     sync.Mutex
	states map[string]task.State
}

var _ statestore.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{states: make(map[string]task.State)}
}

func (m *mockStore) Get(_ context.Context, taskID string) (*task.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (m *mockStore) Set(_ context.Context, taskID string, state *task.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[taskID] = *state
	return nil
}

func (m *mockStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

// mockGenerator implements generator.Generator.
type mockGenerator struct {
	mu      sync.Mutex
	output  string
	err     error
	prompts []string
}

var _ generator.Generator = (*mockGenerator)(nil)

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.output, nil
}

func (m *mockGenerator) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// mockPublisher implements publisher.Provider.
type mockPublisher struct {
	mu           sync.Mutex
	caps         publisher.Capabilities
	repos        map[string]string // name -> document content
	createErr    error
	putErr       error
	pagesErr     error
	pagesCalls   int
	createdRepos []string
}

var _ publisher.Provider = (*mockPublisher)(nil)

func newMockPublisher() *mockPublisher {
	return &mockPublisher{
		caps:  publisher.Capabilities{Pages: true, Contents: true},
		repos: make(map[string]string),
	}
}

func (m *mockPublisher) Name() string { return "mock" }

func (m *mockPublisher) Capabilities() publisher.Capabilities {
	return m.caps
}

func (m *mockPublisher) CreateRepo(_ context.Context, name, _ string) (*publisher.Repo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.repos[name] = ""
	m.createdRepos = append(m.createdRepos, name)
	return &publisher.Repo{Name: name, DefaultBranch: "main"}, nil
}

func (m *mockPublisher) GetRepo(_ context.Context, name string) (*publisher.Repo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.repos[name]; !ok {
		return nil, domain.ErrNotFound
	}
	return &publisher.Repo{Name: name, DefaultBranch: "main"}, nil
}

func (m *mockPublisher) GetContentSHA(_ context.Context, repo, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repos[repo] == "" {
		return "", nil
	}
	return "sha-" + repo, nil
}

func (m *mockPublisher) PutContent(_ context.Context, repo, _ string, content []byte, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.repos[repo] = string(content)
	return nil
}

func (m *mockPublisher) EnablePages(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pagesCalls++
	return m.pagesErr
}

func (m *mockPublisher) RepoURL(repo string) string {
	return "https://git.example.com/owner/" + repo
}

func (m *mockPublisher) PagesURL(repo string) string {
	return "https://owner.example.io/" + repo
}

// mockNotifier implements notifier.Notifier and records every delivery.
type mockNotifier struct {
	mu       sync.Mutex
	outcomes []task.Outcome
	urls     []string
	err      error
}

var _ notifier.Notifier = (*mockNotifier)(nil)

func (m *mockNotifier) Name() string { return "mock" }

func (m *mockNotifier) Send(_ context.Context, url string, outcome task.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, url)
	m.outcomes = append(m.outcomes, outcome)
	return m.err
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.outcomes)
}

func (m *mockNotifier) last() task.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[len(m.outcomes)-1]
}

const testDoc = "<!DOCTYPE html>\n<html><body>hello</body></html>"

type fixture struct {
	svc      *RoundService
	store    *mockStore
	gen      *mockGenerator
	pub      *mockPublisher
	notifier *mockNotifier
}

func newFixture(secret string) *fixture {
	f := &fixture{
		store:    newMockStore(),
		gen:      &mockGenerator{output: testDoc},
		pub:      newMockPublisher(),
		notifier: &mockNotifier{},
	}
	f.svc = NewRoundService(f.store, f.gen, f.pub, f.notifier, secret, Timeouts{})
	return f
}

// submitAndWait submits a request and blocks until the pipeline finishes.
func (f *fixture) submitAndWait(t *testing.T, req task.SubmitRequest) *task.Ack {
	t.Helper()
	ack, err := f.svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.svc.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	return ack
}

func TestCreateRoundSuccess(t *testing.T) {
	f := newFixture("")

	ack := f.submitAndWait(t, task.SubmitRequest{
		TaskID:      "t1",
		Brief:       "todo app",
		CallbackURL: "https://cb",
		Round:       1,
	})

	if ack.Status != "accepted" || ack.TaskID != "t1" || ack.Round != 1 {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	if f.store.len() != 1 {
		t.Fatalf("expected 1 state entry, got %d", f.store.len())
	}
	st, err := f.svc.Status(context.Background(), "t1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Round != 1 || st.LastDocument != testDoc {
		t.Fatalf("unexpected state: %+v", st)
	}

	if f.notifier.count() != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", f.notifier.count())
	}
	out := f.notifier.last()
	if out.Status != task.StatusCompleted {
		t.Fatalf("expected completed, got %s", out.Status)
	}
	if out.RepoURL != st.RepoURL || out.DeploymentURL != st.DeploymentURL {
		t.Fatalf("notification URLs %q/%q do not match state %q/%q",
			out.RepoURL, out.DeploymentURL, st.RepoURL, st.DeploymentURL)
	}
	if out.Timestamp.IsZero() {
		t.Fatal("expected non-zero timestamp")
	}
}

func TestUpdateRoundUsesPriorDocument(t *testing.T) {
	f := newFixture("")

	f.submitAndWait(t, task.SubmitRequest{
		TaskID: "t1", Brief: "todo app", CallbackURL: "https://cb", Round: 1,
	})
	st1, _ := f.svc.Status(context.Background(), "t1")

	f.gen.output = "<!DOCTYPE html>\n<html><body>dark</body></html>"
	f.submitAndWait(t, task.SubmitRequest{
		TaskID: "t1", Brief: "add dark mode", CallbackURL: "https://cb", Round: 2,
	})

	if !strings.Contains(f.gen.lastPrompt(), testDoc) {
		t.Fatal("expected round-2 prompt to embed the round-1 document")
	}

	st2, err := f.svc.Status(context.Background(), "t1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st2.RepoName != st1.RepoName {
		t.Fatalf("repo name changed across rounds: %q -> %q", st1.RepoName, st2.RepoName)
	}
	if st2.LastDocument == st1.LastDocument {
		t.Fatal("expected round-2 document to differ from round 1")
	}
	if st2.Round != 2 {
		t.Fatalf("expected round 2, got %d", st2.Round)
	}

	if f.notifier.count() != 2 {
		t.Fatalf("expected 2 notifications total, got %d", f.notifier.count())
	}
}

func TestUpdateWithoutPriorStateFallsBackToCreate(t *testing.T) {
	f := newFixture("")

	f.submitAndWait(t, task.SubmitRequest{
		TaskID: "t-new", Brief: "gallery", CallbackURL: "https://cb", Round: 2,
	})

	if len(f.pub.createdRepos) != 1 {
		t.Fatalf("expected fresh repo creation, got %v", f.pub.createdRepos)
	}
	if got := f.gen.lastPrompt(); strings.Contains(got, "Current application") {
		t.Fatal("expected create-mode prompt with no prior document context")
	}
	out := f.notifier.last()
	if out.Status != task.StatusCompleted || out.Round != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestWrongSecretRejectedSynchronously(t *testing.T) {
	f := newFixture("shhh")

	_, err := f.svc.Submit(context.Background(), task.SubmitRequest{
		TaskID: "t1", Brief: "todo", CallbackURL: "https://cb", Secret: "wrong",
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if f.store.len() != 0 {
		t.Fatal("store must not be touched on auth failure")
	}
	if f.notifier.count() != 0 {
		t.Fatal("no notification must be sent for a rejected request")
	}
}

func TestMissingFieldsRejectedSynchronously(t *testing.T) {
	f := newFixture("")

	cases := []task.SubmitRequest{
		{Brief: "b", CallbackURL: "https://cb"},
		{TaskID: "t", CallbackURL: "https://cb"},
		{TaskID: "t", Brief: "b"},
	}
	for _, req := range cases {
		if _, err := f.svc.Submit(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", req, err)
		}
	}
	if f.notifier.count() != 0 {
		t.Fatal("no notification must be sent for rejected requests")
	}
}

func TestGenerationFailurePreservesStateAndNotifiesOnce(t *testing.T) {
	f := newFixture("")

	f.submitAndWait(t, task.SubmitRequest{
		TaskID: "t1", Brief: "todo app", CallbackURL: "https://cb", Round: 1,
	})
	st1, _ := f.svc.Status(context.Background(), "t1")

	f.gen.err = errors.New("backend exploded")
	f.submitAndWait(t, task.SubmitRequest{
		TaskID: "t1", Brief: "add dark mode", CallbackURL: "https://cb", Round: 2,
	})

	out := f.notifier.last()
	if out.Status != task.StatusFailed {
		t.Fatalf("expected failed outcome, got %s", out.Status)
	}
	if out.Error == "" {
		t.Fatal("expected non-empty error description")
	}
	if f.notifier.count() != 2 {
		t.Fatalf("expected exactly 1 notification per submission, got %d", f.notifier.count())
	}

	st2, _ := f.svc.Status(context.Background(), "t1")
	if st2.LastDocument != st1.LastDocument || st2.Round != st1.Round {
		t.Fatal("failed round must not mutate stored state")
	}
}

func TestPublishFailureNotifiesFailure(t *testing.T) {
	f := newFixture("")
	f.pub.putErr = errors.New("quota exceeded")

	f.submitAndWait(t, task.SubmitRequest{
		TaskID: "t1", Brief: "todo", CallbackURL: "https://cb",
	})

	if f.store.len() != 0 {
		t.Fatal("failed round must not create state")
	}
	out := f.notifier.last()
	if out.Status != task.StatusFailed || !strings.Contains(out.Error, "quota exceeded") {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestEnablePagesFailureIsNotFatal(t *testing.T) {
	f := newFixture("")
	f.pub.pagesErr = errors.New("pages service down")

	f.submitAndWait(t, task.SubmitRequest{
		TaskID: "t1", Brief: "todo", CallbackURL: "https://cb",
	})

	out := f.notifier.last()
	if out.Status != task.StatusCompleted {
		t.Fatalf("pages failure must not fail the round, got %s", out.Status)
	}
	if out.DeploymentURL == "" {
		t.Fatal("expected conventional deployment URL despite pages failure")
	}
}

func TestPagesSkippedWhenUnsupported(t *testing.T) {
	f := newFixture("")
	f.pub.caps = publisher.Capabilities{Pages: false, Contents: true}

	f.submitAndWait(t, task.SubmitRequest{
		TaskID: "t1", Brief: "todo", CallbackURL: "https://cb",
	})

	if f.pub.pagesCalls != 0 {
		t.Fatalf("pages enablement must be skipped for a provider without pages, got %d calls", f.pub.pagesCalls)
	}
	out := f.notifier.last()
	if out.Status != task.StatusCompleted || out.DeploymentURL == "" {
		t.Fatalf("round must still complete with the conventional URL: %+v", out)
	}
}

func TestNotificationFailureDoesNotAlterState(t *testing.T) {
	f := newFixture("")
	f.notifier.err = errors.New("callback unreachable")

	f.submitAndWait(t, task.SubmitRequest{
		TaskID: "t1", Brief: "todo", CallbackURL: "https://cb",
	})

	st, err := f.svc.Status(context.Background(), "t1")
	if err != nil {
		t.Fatalf("expected state despite notification failure: %v", err)
	}
	if st.Round != 1 {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestRepoNameOverrideWins(t *testing.T) {
	f := newFixture("")
	f.pub.repos["custom-repo"] = "old content"

	f.submitAndWait(t, task.SubmitRequest{
		TaskID: "t1", Brief: "update it", CallbackURL: "https://cb",
		Round: 2, RepoName: "custom-repo",
	})

	st, _ := f.svc.Status(context.Background(), "t1")
	if st.RepoName != "custom-repo" {
		t.Fatalf("expected override repo name, got %q", st.RepoName)
	}
	if len(f.pub.createdRepos) != 0 {
		t.Fatalf("existing repo must be reused, created %v", f.pub.createdRepos)
	}
}

func TestConcurrentSubmissionsDistinctTasks(t *testing.T) {
	f := newFixture("")

	for i := 0; i < 10; i++ {
		req := task.SubmitRequest{
			TaskID:      fmt.Sprintf("t%d", i),
			Brief:       "app",
			CallbackURL: "https://cb",
		}
		if _, err := f.svc.Submit(context.Background(), req); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.svc.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if f.store.len() != 10 {
		t.Fatalf("expected 10 state entries, got %d", f.store.len())
	}
	if f.notifier.count() != 10 {
		t.Fatalf("expected 10 notifications, got %d", f.notifier.count())
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	if got := truncate("short", 60); got != "short" {
		t.Fatalf("short input must pass through, got %q", got)
	}

	brief := strings.Repeat("é", 40) // 2 bytes per rune
	got := truncate(brief, 7)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
	if got != strings.Repeat("é", 3)+"..." {
		t.Fatalf("expected cut on a rune boundary, got %q", got)
	}

	msg := commitMessage(2, strings.Repeat("täsk", 30))
	if !utf8.ValidString(msg) {
		t.Fatalf("commit message contains invalid UTF-8: %q", msg)
	}
}

func TestGenerateRepoName(t *testing.T) {
	name := generateRepoName("My Task_01!")
	if !strings.HasPrefix(name, "pf-my-task-01-") {
		t.Fatalf("unexpected repo name %q", name)
	}

	empty := generateRepoName("!!!")
	if !strings.HasPrefix(empty, "pf-app-") {
		t.Fatalf("unexpected fallback repo name %q", empty)
	}
}
