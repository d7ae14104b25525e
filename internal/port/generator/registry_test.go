package generator_test

import (
	"context"
	"testing"

	"github.com/Strob0t/PageForge/internal/port/generator"
)

type testGenerator struct {
	name string
}

func (g *testGenerator) Name() string { return g.name }
func (g *testGenerator) Generate(_ context.Context, _ string) (string, error) {
	return "<html></html>", nil
}

func TestRegisterAndNew(t *testing.T) {
	generator.Register("test-gen", func(_ map[string]string) (generator.Generator, error) {
		return &testGenerator{name: "test-gen"}, nil
	})

	g, err := generator.New("test-gen", nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.Name() != "test-gen" {
		t.Fatalf("expected test-gen, got %s", g.Name())
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := generator.New("nonexistent", nil)
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestAvailable(t *testing.T) {
	names := generator.Available()
	found := false
	for _, n := range names {
		if n == "test-gen" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected test-gen in available backends")
	}
}
