// Package session derives the chat session state and transcript from the
// events delivered by the matching service.
package session

// State is the session state tag.
type State int

const (
	StateDisconnected State = iota
	StateQueued
	StatePaired
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateQueued:
		return "QUEUED"
	case StatePaired:
		return "PAIRED"
	default:
		return "UNKNOWN"
	}
}

// RoomID identifies a two-party conversation assigned by the service.
type RoomID string

// ConnectionID is the transport-assigned identifier of a client connection.
type ConnectionID string

// ChatMessage is one transcript line. Sequence is the local insertion order,
// starting at 0 for every pairing.
type ChatMessage struct {
	RoomID   RoomID
	SenderID ConnectionID
	Body     string
	Sequence int
}

// IdentityFunc returns the current local connection identity.
type IdentityFunc func() ConnectionID

// Projection is a read-only view of the session for presentation.
type Projection struct {
	State      State
	Transcript []ChatMessage

	room     RoomID
	identity IdentityFunc
}

// RoomID returns the active room; ok is false unless the state is Paired.
func (p Projection) RoomID() (room RoomID, ok bool) {
	return p.room, p.State == StatePaired
}

// IsMine reports whether msg was sent by this client. The identity is read
// when IsMine is called, so a reconnect that changes the identity is seen by
// projections taken before it.
func (p Projection) IsMine(msg ChatMessage) bool {
	if p.identity == nil {
		return false
	}
	id := p.identity()
	return id != "" && msg.SenderID == id
}
