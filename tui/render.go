package tui

import (
	"fmt"
	"strings"

	"github/itish2003/pdfchat/models"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	notice    lipgloss.Style
	errText   lipgloss.Style
	status    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		notice:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		errText:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		status:    lipgloss.NewStyle().Padding(1, 0),
	}
}

// transcriptRenderer renders answers as markdown. It is rebuilt when the
// terminal width changes.
type transcriptRenderer struct {
	markdown *glamour.TermRenderer
	styles   styles
	width    int
}

func newTranscriptRenderer(width int) *transcriptRenderer {
	r := &transcriptRenderer{styles: defaultStyles(), width: width}
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dracula"),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		r.markdown = md
	}
	return r
}

func (r *transcriptRenderer) markdownText(text string) string {
	if r.markdown == nil {
		return text
	}
	out, err := r.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}

// render lays out the transcript newest exchange first, with the question
// above its answer.
func (r *transcriptRenderer) render(snap models.SessionResponse) string {
	var b strings.Builder

	b.WriteString(r.styles.title.Render("PDF chat"))
	b.WriteString("\n")
	b.WriteString(r.header(snap))
	b.WriteString("\n\n")

	if len(snap.Messages) == 0 {
		if snap.State == models.StateReady {
			b.WriteString(r.styles.notice.Render("Ask a question about the document."))
		} else {
			b.WriteString(r.styles.notice.Render("Open a PDF with /open <path>. Type /help for commands."))
		}
		return b.String()
	}

	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if snap.Messages[i].Role != models.RoleUser {
			continue
		}
		b.WriteString(r.styles.user.Render("You"))
		b.WriteString("\n")
		b.WriteString(snap.Messages[i].Content)
		b.WriteString("\n\n")
		if i+1 < len(snap.Messages) && snap.Messages[i+1].Role == models.RoleAssistant {
			b.WriteString(r.styles.assistant.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(r.markdownText(snap.Messages[i+1].Content))
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func (r *transcriptRenderer) header(snap models.SessionResponse) string {
	parts := []string{
		"model: " + snap.Model,
		"mode: " + snap.Mode.Label(),
	}
	switch {
	case snap.Document != nil:
		parts = append(parts, fmt.Sprintf("document: %s (%d characters, %d chunks)",
			snap.Document.FileName, snap.Document.TextLength, snap.Document.ChunkCount))
	case snap.State == models.StateError:
		parts = append(parts, r.styles.errText.Render("error: "+snap.LastError))
	default:
		parts = append(parts, "no document")
	}
	return r.styles.notice.Render(strings.Join(parts, " | "))
}

// documentInfo describes the open document with the start of its text.
func documentInfo(doc *models.DocumentInfo) string {
	if doc == nil {
		return "No document is open."
	}
	return fmt.Sprintf("%s: extracted %d characters into %d chunks, embedded with %s.\n\nPreview:\n%s",
		doc.FileName, doc.TextLength, doc.ChunkCount, doc.EmbeddingModel, doc.Preview)
}

const helpText = `Commands:
  /open <path>    process a PDF
  /model <name>   select the chat model
  /mode <name>    select the analysis mode (fast, balanced, precise)
  /info           show the document's size and a preview of its text
  /reset          forget the document and the conversation
  /help           show this help
  /quit           exit

Anything else is asked as a question about the open document.`
