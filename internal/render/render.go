// Package render formats session projections for a line-oriented terminal.
package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/omochice/stranger-chat/internal/session"
)

type styles struct {
	mine     lipgloss.Style
	stranger lipgloss.Style
	status   lipgloss.Style
	warning  lipgloss.Style
}

// Renderer turns transcript lines and session status into display strings.
type Renderer struct {
	styles styles
}

// New creates a Renderer whose color profile matches w.
func New(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{styles: styles{
		mine:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		stranger: r.NewStyle().Foreground(lipgloss.Color("252")),
		status:   r.NewStyle().Faint(true),
		warning:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}}
}

// Message renders one transcript line from the viewpoint of p.
func (r *Renderer) Message(p session.Projection, msg session.ChatMessage) string {
	if p.IsMine(msg) {
		return r.styles.mine.Render("You: " + msg.Body)
	}
	return r.styles.stranger.Render("Stranger: " + msg.Body)
}

// Status describes the session state.
func (r *Renderer) Status(p session.Projection) string {
	switch p.State {
	case session.StateQueued:
		return r.styles.status.Render("Looking for a stranger...")
	case session.StatePaired:
		return r.styles.status.Render("You're now chatting with a stranger. Say hi!")
	default:
		return r.styles.status.Render("Disconnected. Type /join to meet someone.")
	}
}

// Warning renders a local, recoverable problem.
func (r *Renderer) Warning(text string) string {
	return r.styles.warning.Render(text)
}

// Draft shows the message being composed.
func (r *Renderer) Draft(d *session.Draft) string {
	return r.styles.status.Render("draft: " + d.String())
}
