package session

import "github.com/rivo/uniseg"

// Intent is a user action submitted by the presentation layer.
type Intent interface {
	sessionIntent()
}

// Join asks to be paired with a stranger.
type Join struct{}

// SendMessage sends Body into the current room.
type SendMessage struct {
	Body string
}

// SelectEmoji appends Emoji to Draft.
type SelectEmoji struct {
	Draft *Draft
	Emoji string
}

func (Join) sessionIntent()        {}
func (SendMessage) sessionIntent() {}
func (SelectEmoji) sessionIntent() {}

// Draft is the message being composed. It belongs to the presentation layer.
type Draft struct {
	text string
}

// Append adds s to the end of the draft.
func (d *Draft) Append(s string) {
	d.text += s
}

// String returns the draft text.
func (d *Draft) String() string {
	return d.text
}

// Reset clears the draft.
func (d *Draft) Reset() {
	d.text = ""
}

// appendEmoji adds a single grapheme cluster to the draft.
func (d *Draft) appendEmoji(emoji string) error {
	if uniseg.GraphemeClusterCount(emoji) != 1 {
		return ErrInvalidEmoji
	}
	d.Append(emoji)
	return nil
}
