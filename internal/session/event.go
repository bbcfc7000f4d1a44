package session

// Event is an inbound session event produced by the gateway.
type Event interface {
	sessionEvent()
}

// Paired reports that the service placed this client in Room.
type Paired struct {
	Room RoomID
}

// MessageReceived reports a chat line delivered into Room.
type MessageReceived struct {
	Room   RoomID
	Sender ConnectionID
	Body   string
}

// Closed reports that the transport was torn down.
type Closed struct {
	Err error
}

func (Paired) sessionEvent()          {}
func (MessageReceived) sessionEvent() {}
func (Closed) sessionEvent()          {}
