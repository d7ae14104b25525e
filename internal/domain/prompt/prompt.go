// Package prompt builds the generation request sent to the LLM backend.
package prompt

import (
	"fmt"
	"strings"

	"github.com/Strob0t/PageForge/internal/domain/task"
)

// Build returns the prompt for one round. When priorDocument is empty the
// create-mode prompt is produced; otherwise the update-mode prompt embeds the
// prior document verbatim as context.
func Build(brief string, attachments []task.Attachment, round int, priorDocument string) string {
	if priorDocument == "" {
		return buildCreate(brief, attachments)
	}
	return buildUpdate(brief, attachments, round, priorDocument)
}

func buildCreate(brief string, attachments []task.Attachment) string {
	var b strings.Builder
	b.WriteString("You are an expert front-end developer. Create a complete, self-contained ")
	b.WriteString("single-page web application as one HTML file.\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("- All CSS and JavaScript must be inline; no external dependencies, CDNs, or build steps.\n")
	b.WriteString("- The page must be fully interactive and work when opened directly in a browser.\n")
	fmt.Fprintf(&b, "- The application must satisfy this brief: %s\n", brief)
	writeAttachments(&b, attachments)
	b.WriteString("\nReturn only the HTML document content. Do not include any commentary, ")
	b.WriteString("explanation, or markdown outside the document itself.\n")
	return b.String()
}

func buildUpdate(brief string, attachments []task.Attachment, round int, priorDocument string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert front-end developer. This is round %d of an iterative ", round)
	b.WriteString("update to an existing single-page web application.\n\n")
	b.WriteString("Current application:\n")
	b.WriteString("```html\n")
	b.WriteString(priorDocument)
	if !strings.HasSuffix(priorDocument, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n\n")
	fmt.Fprintf(&b, "Apply this change: %s\n", brief)
	writeAttachments(&b, attachments)
	b.WriteString("\nPreserve all existing behavior except where the change above requires otherwise. ")
	b.WriteString("Keep everything in a single self-contained HTML file with no external dependencies.\n")
	b.WriteString("\nReturn only the full updated HTML document content. Do not include any commentary, ")
	b.WriteString("explanation, or markdown outside the document itself.\n")
	return b.String()
}

// writeAttachments appends one itemized requirement per attachment. Text
// attachments are inlined; image attachments contribute a reference note
// since the backend cannot fetch binary data from the prompt.
func writeAttachments(b *strings.Builder, attachments []task.Attachment) {
	for _, a := range attachments {
		switch a.Type {
		case task.AttachmentText:
			fmt.Fprintf(b, "- Incorporate the following content from %q", a.Filename)
			if a.Description != "" {
				fmt.Fprintf(b, " (%s)", a.Description)
			}
			fmt.Fprintf(b, ":\n%s\n", a.Content)
		case task.AttachmentImage:
			fmt.Fprintf(b, "- An image %q is provided", a.Filename)
			if a.Description != "" {
				fmt.Fprintf(b, ": %s", a.Description)
			}
			b.WriteString(". Design the page so this image can be referenced by filename.\n")
		}
	}
}
