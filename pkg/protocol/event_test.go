package protocol_test

import (
	"errors"
	"testing"

	"github.com/omochice/stranger-chat/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestEvent_ChatPayloadSurvivesTheWire(t *testing.T) {
	sent := protocol.NewChatEvent(protocol.EventReceiveMessage, "room42", "gm 😀", "conn-A")

	data, err := sent.Encode()
	require.NoError(t, err)

	got, err := protocol.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, protocol.EventReceiveMessage, got.Name)
	require.NotNil(t, got.Chat)
	assert.Equal(t, protocol.ChatPayload{RoomID: "room42", Message: "gm 😀", Sender: "conn-A"}, *got.Chat)
	assert.Empty(t, got.Value)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		fields    map[string]any
		wantName  string
		wantValue string
		wantChat  bool
	}{
		{
			name:      "joined carries room id as string",
			fields:    map[string]any{"event": "joined", "data": "room42"},
			wantName:  protocol.EventJoined,
			wantValue: "room42",
		},
		{
			name:     "join_queue has no data",
			fields:   map[string]any{"event": "join_queue"},
			wantName: protocol.EventJoinQueue,
		},
		{
			name:     "unknown event name is kept",
			fields:   map[string]any{"event": "typing", "data": "room42"},
			wantName: "typing",
			// value is decoded regardless; callers decide what to ignore
			wantValue: "room42",
		},
		{
			name:     "numeric data is dropped",
			fields:   map[string]any{"event": "joined", "data": 42},
			wantName: protocol.EventJoined,
		},
		{
			name: "partial chat object",
			fields: map[string]any{"event": "receive_message", "data": map[string]any{
				"roomId": "room42",
			}},
			wantName: protocol.EventReceiveMessage,
			wantChat: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := structpb.NewStruct(tt.fields)
			require.NoError(t, err)
			data, err := proto.Marshal(frame)
			require.NoError(t, err)

			got, err := protocol.Decode(data)
			require.NoError(t, err)

			assert.Equal(t, tt.wantName, got.Name)
			assert.Equal(t, tt.wantValue, got.Value)
			assert.Equal(t, tt.wantChat, got.Chat != nil)
		})
	}
}

func TestDecode_MissingEventName(t *testing.T) {
	frame, err := structpb.NewStruct(map[string]any{"data": "room42"})
	require.NoError(t, err)
	data, err := proto.Marshal(frame)
	require.NoError(t, err)

	_, err = protocol.Decode(data)
	if !errors.Is(err, protocol.ErrMissingEvent) {
		t.Errorf("Decode() error = %v, want %v", err, protocol.ErrMissingEvent)
	}
}

func TestDecode_InvalidData(t *testing.T) {
	_, err := protocol.Decode([]byte{0xff, 0xff, 0xff})
	assert.Error(t, err)
}
