// Package protocol defines the named events exchanged with the matching service.
package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Event names on the wire.
const (
	// EventJoinQueue asks the service to pair this client with a stranger.
	EventJoinQueue = "join_queue"
	// EventSendMessage relays a chat line into a room.
	EventSendMessage = "send_message"
	// EventConnected carries the connection id the service assigned to this client.
	EventConnected = "connected"
	// EventJoined announces a pairing; its data is the room id.
	EventJoined = "joined"
	// EventReceiveMessage delivers a chat line, including echoes of our own sends.
	EventReceiveMessage = "receive_message"
)

const (
	fieldEvent   = "event"
	fieldData    = "data"
	fieldRoomID  = "roomId"
	fieldMessage = "message"
	fieldSender  = "sender"
)

// ErrMissingEvent is returned when a frame carries no event name.
var ErrMissingEvent = errors.New("frame has no event name")

// ChatPayload is the object payload of send_message and receive_message.
type ChatPayload struct {
	RoomID  string
	Message string
	Sender  string
}

// Event is a single named event. Value holds scalar payloads (room id,
// connection id); Chat holds the object payload of chat events.
type Event struct {
	Name  string
	Value string
	Chat  *ChatPayload
}

// NewChatEvent builds a send_message or receive_message event.
func NewChatEvent(name, roomID, message, sender string) Event {
	return Event{
		Name: name,
		Chat: &ChatPayload{RoomID: roomID, Message: message, Sender: sender},
	}
}

// Encode encodes the event into bytes using protobuf
func (e Event) Encode() ([]byte, error) {
	data, err := proto.Marshal(e.toProto())
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %q: %w", e.Name, err)
	}
	return data, nil
}

// Decode decodes bytes into an event using protobuf
func Decode(data []byte) (Event, error) {
	frame := &structpb.Struct{}
	if err := proto.Unmarshal(data, frame); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return fromProto(frame)
}

// toProto converts the Event to a protobuf Struct frame.
func (e Event) toProto() *structpb.Struct {
	frame := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldEvent: structpb.NewStringValue(e.Name),
	}}
	switch {
	case e.Chat != nil:
		frame.Fields[fieldData] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fieldRoomID:  structpb.NewStringValue(e.Chat.RoomID),
			fieldMessage: structpb.NewStringValue(e.Chat.Message),
			fieldSender:  structpb.NewStringValue(e.Chat.Sender),
		}})
	case e.Value != "":
		frame.Fields[fieldData] = structpb.NewStringValue(e.Value)
	}
	return frame
}

// fromProto reads an Event out of a protobuf Struct frame.
// Data of an unexpected kind is dropped rather than rejected, so a service
// that extends a payload does not break older clients.
func fromProto(frame *structpb.Struct) (Event, error) {
	name := frame.GetFields()[fieldEvent].GetStringValue()
	if name == "" {
		return Event{}, ErrMissingEvent
	}

	e := Event{Name: name}
	switch kind := frame.GetFields()[fieldData].GetKind().(type) {
	case *structpb.Value_StringValue:
		e.Value = kind.StringValue
	case *structpb.Value_StructValue:
		fields := kind.StructValue.GetFields()
		e.Chat = &ChatPayload{
			RoomID:  fields[fieldRoomID].GetStringValue(),
			Message: fields[fieldMessage].GetStringValue(),
			Sender:  fields[fieldSender].GetStringValue(),
		}
	}
	return e, nil
}
