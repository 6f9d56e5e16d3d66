package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatJSON writes v as indented JSON.
func (f *Formatter) FormatJSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatEntries writes the entry listing as JSON.
func (f *Formatter) FormatEntries(entries []EntryDTO) error {
	return f.FormatJSON(entries)
}

// FormatHistory writes a history as JSON.
func (f *Formatter) FormatHistory(h HistoryDTO) error {
	return f.FormatJSON(h)
}

// FormatArtifacts writes store listings as JSON.
func (f *Formatter) FormatArtifacts(artifacts []ArtifactDTO) error {
	return f.FormatJSON(artifacts)
}

// RenderHistory writes a styled timeline of h.
func (f *Formatter) RenderHistory(h HistoryDTO) error {
	_, err := io.WriteString(f.writer, RenderHistory(h))
	return err
}

// RenderHistory returns a styled, human-readable timeline, newest first.
func RenderHistory(h HistoryDTO) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(h.Name))
	b.WriteString(" ")
	b.WriteString(KindStyle.Render("(" + h.Kind + ")"))
	b.WriteString("\n")
	if h.SourcePath != "" {
		b.WriteString(MutedStyle.Render("  file: " + h.SourcePath))
		b.WriteString("\n")
	}
	b.WriteString(MutedStyle.Render(fmt.Sprintf("  undo: %d  redo: %d", h.UndoDepth, h.RedoDepth)))
	b.WriteString("\n")

	if len(h.Versions) == 0 {
		b.WriteString(MutedStyle.Render("  no archived versions"))
		b.WriteString("\n")
		return b.String()
	}
	for i := len(h.Versions) - 1; i >= 0; i-- {
		v := h.Versions[i]
		steps := len(h.Versions) - 1 - i
		marker, style := "○", VersionStyle
		if v.Current {
			marker, style = "●", CurrentStyle
		}
		line := fmt.Sprintf("  %s %s  %s", marker, v.Key, v.CreatedAt.Format("2006-01-02 15:04:05.000"))
		b.WriteString(style.Render(line))
		if steps > 0 {
			b.WriteString(MutedStyle.Render(fmt.Sprintf("  rollback %d", steps)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderDiff colors a patch produced by the registry's Diff.
func RenderDiff(patch string) string {
	lines := strings.Split(strings.TrimRight(patch, "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			lines[i] = HunkStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = AddedStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = RemovedStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

// Styles for terminal rendering. Colors degrade to plain text when the
// output is not a terminal.
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#54A0FF"}).
			Bold(true)

	KindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#C4B5FD"})

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})

	VersionStyle = lipgloss.NewStyle()

	CurrentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#047857", Dark: "#73F59F"}).
			Bold(true)

	HunkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#67E8F9"})

	AddedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#047857", Dark: "#73F59F"})

	RemovedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#FF8787"})
)
