// Package htmldoc recovers a standalone HTML document from free-text LLM
// output. It is a heuristic, not a parser: it tolerates absent, single, or
// malformed code fences and never fails, degrading to a minimal HTML shell.
package htmldoc

import "strings"

const (
	shellHead = "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n<title>App</title>\n</head>\n<body>\n"
	shellFoot = "\n</body>\n</html>\n"
)

// Extract returns the best-effort standalone document contained in raw.
// Priority: an ```html fence, then any fence, then the trimmed raw text.
// Results that do not start with a document-root marker are wrapped in a
// minimal valid shell so publishing always receives renderable HTML.
func Extract(raw string) string {
	doc := strings.TrimSpace(raw)

	if inner, ok := fencedBlock(doc, "```html"); ok {
		doc = inner
	} else if inner, ok := fencedBlock(doc, "```"); ok {
		doc = inner
	}

	if !hasRootMarker(doc) {
		doc = shellHead + doc + shellFoot
	}
	return doc
}

// fencedBlock extracts the content of the first fence opened by marker.
// An unterminated fence yields everything after the opening line.
func fencedBlock(s, marker string) (string, bool) {
	start := strings.Index(s, marker)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(marker):]
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

func hasRootMarker(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}
