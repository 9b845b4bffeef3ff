package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
)

// Transfer is what the watcher saw of one transfer.
type Transfer struct {
	EventUUID      string
	DeclaredPoints int
	DeclaredPhotos int
	Points         int
	Photos         int
	ReportedPoints int
	ReportedPhotos int
	Message        string
	Started        time.Time
	Ended          time.Time
	Errors         []string
}

// Markdown summarises t for rendering.
func (t Transfer) Markdown() string {
	var b strings.Builder

	title := t.EventUUID
	if title == "" {
		title = "unnamed event"
	}
	fmt.Fprintf(&b, "# Transfer complete: %s\n\n", title)
	if t.Message != "" {
		fmt.Fprintf(&b, "> %s\n\n", t.Message)
	}

	b.WriteString("| | Declared | Seen | Reported |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| Points | %s | %d | %d |\n", declared(t.DeclaredPoints), t.Points, t.ReportedPoints)
	fmt.Fprintf(&b, "| Photos | %s | %d | %d |\n\n", declared(t.DeclaredPhotos), t.Photos, t.ReportedPhotos)

	if !t.Started.IsZero() && !t.Ended.IsZero() {
		fmt.Fprintf(&b, "Duration: **%s**\n\n", t.Ended.Sub(t.Started).Round(time.Millisecond))
	}

	if t.DeclaredPoints > 0 && t.ReportedPoints < t.DeclaredPoints {
		fmt.Fprintf(&b, "- %d declared points never arrived\n", t.DeclaredPoints-t.ReportedPoints)
	}
	if t.DeclaredPhotos > 0 && t.ReportedPhotos < t.DeclaredPhotos {
		fmt.Fprintf(&b, "- %d declared photos were not stored\n", t.DeclaredPhotos-t.ReportedPhotos)
	}
	if len(t.Errors) > 0 {
		b.WriteString("\n## Errors\n\n")
		for _, e := range t.Errors {
			fmt.Fprintf(&b, "- `%s`\n", e)
		}
	}
	return b.String()
}

func declared(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

// render turns Markdown into terminal output wrapped at width.
func render(md string, width int, style string) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
