package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/PageForge/internal/domain"
	"github.com/Strob0t/PageForge/internal/domain/task"
	"github.com/Strob0t/PageForge/internal/port/statestore"
)

var _ statestore.Store = (*Store)(nil)

func TestGetMissing(t *testing.T) {
	s := New()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	want := &task.State{
		RepoName:     "pf-t1-20260101000000",
		LastDocument: "<html></html>",
		Round:        1,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.Set(context.Background(), "t1", want); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := s.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	_ = s.Set(context.Background(), "t1", &task.State{RepoName: "original"})

	got, _ := s.Get(context.Background(), "t1")
	got.RepoName = "mutated"

	again, _ := s.Get(context.Background(), "t1")
	if again.RepoName != "original" {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestSetReplaces(t *testing.T) {
	s := New()
	_ = s.Set(context.Background(), "t1", &task.State{Round: 1})
	_ = s.Set(context.Background(), "t1", &task.State{Round: 2})

	got, _ := s.Get(context.Background(), "t1")
	if got.Round != 2 {
		t.Fatalf("expected replacement, got round %d", got.Round)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i%10)
			_ = s.Set(context.Background(), id, &task.State{Round: i})
			_, _ = s.Get(context.Background(), id)
		}(i)
	}
	wg.Wait()

	if s.Len() != 10 {
		t.Fatalf("expected 10 entries, got %d", s.Len())
	}
}
