package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/omochice/stranger-chat/internal/render"
	"github.com/omochice/stranger-chat/internal/session"
)

// emojis stands in for the emoji picker: a name selects one grapheme.
var emojis = map[string]string{
	"smile":    "😀",
	"joy":      "😂",
	"wink":     "😉",
	"cry":      "😢",
	"heart":    "❤️",
	"thumbsup": "👍",
	"wave":     "👋",
	"fire":     "🔥",
	"party":    "🎉",
}

type submitter interface {
	Submit(ctx context.Context, in session.Intent) error
}

// console turns stdin lines into intents and prints session changes.
type console struct {
	session  submitter
	draft    session.Draft
	out      io.Writer
	renderer *render.Renderer
	shown    int

	statusShown bool
	lastState   session.State
	lastRoom    session.RoomID
}

func newConsole(s submitter, out io.Writer) *console {
	return &console{session: s, out: out, renderer: render.New(out)}
}

// handle processes one input line and reports whether the user asked to quit.
// Text lines build the draft; a blank line or /send sends it.
func (c *console) handle(ctx context.Context, line string) bool {
	if strings.TrimSpace(line) == "" {
		c.send(ctx)
		return false
	}
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/join":
		c.report(c.session.Submit(ctx, session.Join{}))
	case "/emoji":
		c.selectEmoji(ctx, strings.TrimSpace(arg))
	case "/send":
		c.send(ctx)
	case "/clear":
		c.draft.Reset()
	case "/help":
		c.help()
	default:
		c.compose(line)
	}
	return false
}

// compose adds a typed line to the draft, keeping words apart.
func (c *console) compose(line string) {
	text := c.draft.String()
	if text != "" && !endsWithSpace(text) && !startsWithSpace(line) {
		c.draft.Append(" ")
	}
	c.draft.Append(line)
}

func (c *console) selectEmoji(ctx context.Context, name string) {
	emoji, ok := emojis[name]
	if !ok {
		c.println(c.renderer.Warning(fmt.Sprintf("unknown emoji %q; try one of: %s", name, strings.Join(emojiNames(), ", "))))
		return
	}
	if err := c.session.Submit(ctx, session.SelectEmoji{Draft: &c.draft, Emoji: emoji}); err != nil {
		c.report(err)
		return
	}
	c.println(c.renderer.Draft(&c.draft))
}

// send keeps the draft unless the gateway accepted it.
func (c *console) send(ctx context.Context) {
	if err := c.session.Submit(ctx, session.SendMessage{Body: c.draft.String()}); err != nil {
		c.report(err)
		return
	}
	c.draft.Reset()
}

// showStatus prints the status line when the state or room differs from the
// last one printed.
func (c *console) showStatus(p session.Projection) {
	room, _ := p.RoomID()
	if c.statusShown && p.State == c.lastState && room == c.lastRoom {
		return
	}
	c.statusShown = true
	c.lastState = p.State
	c.lastRoom = room
	c.println(c.renderer.Status(p))
}

// onChange prints the status on state changes and any new transcript lines.
func (c *console) onChange(p session.Projection) {
	if len(p.Transcript) < c.shown {
		c.shown = 0
	}
	c.showStatus(p)
	for _, msg := range p.Transcript[c.shown:] {
		c.println(c.renderer.Message(p, msg))
	}
	c.shown = len(p.Transcript)
}

func (c *console) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotPaired):
		c.println(c.renderer.Warning("Not chatting with anyone yet. Type /join first."))
	case errors.Is(err, session.ErrEmptyMessage):
		c.println(c.renderer.Warning("Nothing to send."))
	case errors.Is(err, session.ErrInvalidTransition):
		c.println(c.renderer.Warning("Already looking for or chatting with a stranger."))
	default:
		c.println(c.renderer.Warning(err.Error()))
	}
}

func (c *console) help() {
	c.println("/join            find a stranger")
	c.println("/emoji <name>    add an emoji to the draft (" + strings.Join(emojiNames(), ", ") + ")")
	c.println("/send            send the draft (or press Enter on an empty line)")
	c.println("/clear           discard the draft")
	c.println("/quit            leave")
	c.println("anything else is added to the draft")
}

func (c *console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func startsWithSpace(s string) bool {
	return strings.TrimLeftFunc(s, unicode.IsSpace) != s
}

func endsWithSpace(s string) bool {
	return strings.TrimRightFunc(s, unicode.IsSpace) != s
}

func emojiNames() []string {
	names := make([]string, 0, len(emojis))
	for name := range emojis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
