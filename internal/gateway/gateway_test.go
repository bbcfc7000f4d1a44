package gateway_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/omochice/stranger-chat/internal/gateway"
	"github.com/omochice/stranger-chat/internal/session"
	"github.com/omochice/stranger-chat/internal/transport"
	"github.com/omochice/stranger-chat/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func connectedGateway(t *testing.T) (*gateway.Gateway, *mockConn) {
	t.Helper()
	conn := newMockConn()
	g := gateway.New(gateway.DialerFunc(func(ctx context.Context, endpoint string) (transport.Conn, error) {
		return conn, nil
	}), quietLogger)
	require.NoError(t, g.Connect(context.Background(), "ws://example.invalid/ws"))
	t.Cleanup(g.Disconnect)
	return g, conn
}

func nextEvent(t *testing.T, g *gateway.Gateway) session.Event {
	t.Helper()
	select {
	case ev, ok := <-g.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for session event")
		return nil
	}
}

func TestGateway_ConnectFailureIsTransportUnavailable(t *testing.T) {
	dialErr := errors.New("connection refused")
	g := gateway.New(gateway.DialerFunc(func(ctx context.Context, endpoint string) (transport.Conn, error) {
		return nil, dialErr
	}), quietLogger)

	err := g.Connect(context.Background(), "ws://127.0.0.1:1/ws")

	assert.ErrorIs(t, err, session.ErrTransportUnavailable)
	assert.ErrorIs(t, err, dialErr)
}

func TestGateway_ConnectTwice(t *testing.T) {
	g, _ := connectedGateway(t)

	assert.ErrorIs(t, g.Connect(context.Background(), "ws://example.invalid/ws"), gateway.ErrAlreadyConnected)
}

func TestGateway_TranslatesInboundEvents(t *testing.T) {
	g, conn := connectedGateway(t)

	conn.push(t, protocol.Event{Name: protocol.EventConnected, Value: "conn-A"})
	conn.push(t, protocol.Event{Name: "typing", Value: "ignored"})
	conn.push(t, protocol.Event{Name: protocol.EventJoined, Value: "room42"})
	conn.push(t, protocol.NewChatEvent(protocol.EventReceiveMessage, "room42", "yo", "conn-B"))

	assert.Equal(t, session.Paired{Room: "room42"}, nextEvent(t, g))
	assert.Equal(t, session.MessageReceived{Room: "room42", Sender: "conn-B", Body: "yo"}, nextEvent(t, g))
	assert.Equal(t, session.ConnectionID("conn-A"), g.LocalIdentity())
}

func TestGateway_SkipsMalformedFrames(t *testing.T) {
	g, conn := connectedGateway(t)

	conn.readCh <- []byte{0xff, 0xff}
	conn.push(t, protocol.Event{Name: protocol.EventJoined})
	conn.push(t, protocol.Event{Name: protocol.EventReceiveMessage, Value: "no payload"})
	conn.push(t, protocol.Event{Name: protocol.EventJoined, Value: "room42"})

	assert.Equal(t, session.Paired{Room: "room42"}, nextEvent(t, g))
}

func TestGateway_RequestPairing(t *testing.T) {
	g, conn := connectedGateway(t)

	require.NoError(t, g.RequestPairing(context.Background()))
	require.NoError(t, g.RequestPairing(context.Background()))

	written := conn.Written(t)
	require.Len(t, written, 2)
	for _, ev := range written {
		assert.Equal(t, protocol.EventJoinQueue, ev.Name)
		assert.Nil(t, ev.Chat)
	}
}

func TestGateway_SendChatUsesCurrentIdentity(t *testing.T) {
	g, conn := connectedGateway(t)

	conn.push(t, protocol.Event{Name: protocol.EventConnected, Value: "conn-A"})
	waitFor(t, func() bool { return g.LocalIdentity() == "conn-A" })

	require.NoError(t, g.SendChat(context.Background(), "room42", "hi"))

	written := conn.Written(t)
	require.Len(t, written, 1)
	assert.Equal(t, protocol.EventSendMessage, written[0].Name)
	require.NotNil(t, written[0].Chat)
	assert.Equal(t, protocol.ChatPayload{RoomID: "room42", Message: "hi", Sender: "conn-A"}, *written[0].Chat)
}

func TestGateway_IdentityChangesOnReassignment(t *testing.T) {
	g, conn := connectedGateway(t)

	conn.push(t, protocol.Event{Name: protocol.EventConnected, Value: "conn-A"})
	waitFor(t, func() bool { return g.LocalIdentity() == "conn-A" })

	conn.push(t, protocol.Event{Name: protocol.EventConnected, Value: "conn-A2"})
	waitFor(t, func() bool { return g.LocalIdentity() == "conn-A2" })
}

func TestGateway_WriteFailureIsTransportUnavailable(t *testing.T) {
	g, conn := connectedGateway(t)
	conn.writeErr = errors.New("broken pipe")

	err := g.SendChat(context.Background(), "room42", "hi")

	assert.ErrorIs(t, err, session.ErrTransportUnavailable)
}

func TestGateway_EmitBeforeConnect(t *testing.T) {
	g := gateway.New(nil, quietLogger)

	assert.ErrorIs(t, g.RequestPairing(context.Background()), session.ErrTransportUnavailable)
}

func TestGateway_RemoteCloseEmitsClosed(t *testing.T) {
	g, conn := connectedGateway(t)

	close(conn.readCh)

	ev := nextEvent(t, g)
	closed, ok := ev.(session.Closed)
	require.True(t, ok, "got %T, want session.Closed", ev)
	assert.ErrorIs(t, closed.Err, io.EOF)

	_, open := <-g.Events()
	assert.False(t, open)
	assert.Equal(t, 1, conn.CloseCalls())

	g.Disconnect()
	assert.Equal(t, 1, conn.CloseCalls(), "handle released exactly once")
}

func TestGateway_DisconnectReleasesOnce(t *testing.T) {
	g, conn := connectedGateway(t)

	g.Disconnect()
	g.Disconnect()

	assert.Equal(t, 1, conn.CloseCalls())
	_, open := <-g.Events()
	assert.False(t, open)
	assert.ErrorIs(t, g.Connect(context.Background(), "ws://example.invalid/ws"), gateway.ErrAlreadyConnected)
}
