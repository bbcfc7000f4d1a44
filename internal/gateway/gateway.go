// Package gateway owns the connection to the matching service and translates
// between wire events and session events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/omochice/stranger-chat/internal/session"
	"github.com/omochice/stranger-chat/internal/transport"
	"github.com/omochice/stranger-chat/internal/transport/ws"
	"github.com/omochice/stranger-chat/pkg/protocol"
)

// ErrAlreadyConnected is returned by Connect on a gateway that holds a handle.
var ErrAlreadyConnected = errors.New("gateway already connected")

// eventBuffer bounds the inbound queue between the reader and the session loop.
const eventBuffer = 64

// Dialer opens a transport connection to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (transport.Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, endpoint string) (transport.Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	return f(ctx, endpoint)
}

// WebSocketDialer dials the matching service over gobwas/ws.
var WebSocketDialer = DialerFunc(func(ctx context.Context, endpoint string) (transport.Conn, error) {
	conn, err := ws.Dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return conn, nil
})

type handlerFunc func(protocol.Event) (session.Event, bool)

var _ session.Emitter = (*Gateway)(nil)

// Gateway is the single point of contact with the transport. It keeps no chat
// state beyond the local identity the service assigned.
type Gateway struct {
	dialer   Dialer
	logger   *slog.Logger
	handlers map[string]handlerFunc

	mu       sync.RWMutex
	conn     transport.Conn
	identity session.ConnectionID

	events      chan session.Event
	done        chan struct{}
	releaseOnce sync.Once
	doneOnce    sync.Once
	wg          sync.WaitGroup
}

// New creates a Gateway. A nil dialer means WebSocketDialer.
func New(dialer Dialer, logger *slog.Logger) *Gateway {
	if dialer == nil {
		dialer = WebSocketDialer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		dialer: dialer,
		logger: logger,
		events: make(chan session.Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// Connect establishes the transport session and starts delivering events.
// Dial failures are reported as session.ErrTransportUnavailable and are not
// retried here.
func (g *Gateway) Connect(ctx context.Context, endpoint string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		return ErrAlreadyConnected
	}
	select {
	case <-g.done:
		return fmt.Errorf("%w: gateway disconnected", session.ErrTransportUnavailable)
	default:
	}

	conn, err := g.dialer.Dial(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", session.ErrTransportUnavailable, err)
	}
	g.conn = conn
	g.handlers = map[string]handlerFunc{
		protocol.EventConnected:      g.onConnected,
		protocol.EventJoined:         g.onJoined,
		protocol.EventReceiveMessage: g.onReceiveMessage,
	}

	g.logger.Info("connected to matching service", "endpoint", endpoint, "remote", conn.RemoteAddr())

	g.wg.Add(1)
	go g.readLoop(conn)
	return nil
}

// Events returns the inbound session events. The channel is closed after the
// transport goes away.
func (g *Gateway) Events() <-chan session.Event {
	return g.events
}

// LocalIdentity returns the connection id currently assigned by the service.
func (g *Gateway) LocalIdentity() session.ConnectionID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.identity
}

// RequestPairing emits join_queue. Duplicate requests are left to the service.
func (g *Gateway) RequestPairing(ctx context.Context) error {
	return g.emit(ctx, protocol.Event{Name: protocol.EventJoinQueue})
}

// SendChat emits send_message for room. The caller has already validated body.
func (g *Gateway) SendChat(ctx context.Context, room session.RoomID, body string) error {
	return g.emit(ctx, protocol.NewChatEvent(protocol.EventSendMessage, string(room), body, string(g.LocalIdentity())))
}

// Disconnect releases the transport handle and waits for the reader to stop.
// It is safe to call more than once.
func (g *Gateway) Disconnect() {
	g.doneOnce.Do(func() {
		close(g.done)
	})
	g.release()
	g.wg.Wait()
}

func (g *Gateway) emit(ctx context.Context, ev protocol.Event) error {
	g.mu.RLock()
	conn := g.conn
	g.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("%w: not connected", session.ErrTransportUnavailable)
	}

	data, err := ev.Encode()
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, data); err != nil {
		return fmt.Errorf("%w: failed to emit %s: %w", session.ErrTransportUnavailable, ev.Name, err)
	}
	return nil
}

// release closes the handle exactly once, whichever of Disconnect or a read
// failure gets there first.
func (g *Gateway) release() {
	g.releaseOnce.Do(func() {
		g.mu.RLock()
		conn := g.conn
		g.mu.RUnlock()
		if conn == nil {
			return
		}
		if err := conn.Close(); err != nil {
			g.logger.Debug("failed to close transport", "error", err)
		}
	})
}

func (g *Gateway) readLoop(conn transport.Conn) {
	defer g.wg.Done()
	defer close(g.events)

	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			g.release()
			select {
			case <-g.done:
			default:
				g.logger.Warn("connection to matching service lost", "error", err)
				g.deliver(session.Closed{Err: err})
			}
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			g.logger.Warn("dropping undecodable frame", "error", err)
			continue
		}

		handler, ok := g.handlers[ev.Name]
		if !ok {
			g.logger.Debug("ignoring unknown event", "event", ev.Name)
			continue
		}
		if sev, ok := handler(ev); ok {
			g.deliver(sev)
		}
	}
}

// deliver queues ev for the session loop unless the gateway is shutting down.
func (g *Gateway) deliver(ev session.Event) {
	select {
	case g.events <- ev:
	case <-g.done:
	}
}

func (g *Gateway) onConnected(ev protocol.Event) (session.Event, bool) {
	g.mu.Lock()
	g.identity = session.ConnectionID(ev.Value)
	g.mu.Unlock()
	g.logger.Info("local identity assigned", "id", ev.Value)
	return nil, false
}

func (g *Gateway) onJoined(ev protocol.Event) (session.Event, bool) {
	if ev.Value == "" {
		g.logger.Warn("joined event without room")
		return nil, false
	}
	return session.Paired{Room: session.RoomID(ev.Value)}, true
}

func (g *Gateway) onReceiveMessage(ev protocol.Event) (session.Event, bool) {
	if ev.Chat == nil {
		g.logger.Warn("receive_message event without payload")
		return nil, false
	}
	return session.MessageReceived{
		Room:   session.RoomID(ev.Chat.RoomID),
		Sender: session.ConnectionID(ev.Chat.Sender),
		Body:   ev.Chat.Message,
	}, true
}
