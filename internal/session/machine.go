package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var errNoDraft = errors.New("no draft to edit")

// Emitter carries outbound intents to the matching service.
type Emitter interface {
	RequestPairing(ctx context.Context) error
	SendChat(ctx context.Context, room RoomID, body string) error
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for anomalies.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithMeter sets the meter used for session counters.
func WithMeter(meter metric.Meter) Option {
	return func(m *Machine) {
		m.meter = meter
	}
}

// Machine is the authoritative session state and transcript.
// It is not safe for concurrent use; Loop serializes access to it.
type Machine struct {
	state      State
	room       RoomID
	transcript []ChatMessage
	discarded  int

	emitter  Emitter
	identity IdentityFunc
	logger   *slog.Logger
	meter    metric.Meter
	metrics  *metrics
}

// NewMachine creates a Machine in StateDisconnected. identity is consulted
// each time a projection decides whether a message is ours.
func NewMachine(emitter Emitter, identity IdentityFunc, opts ...Option) *Machine {
	m := &Machine{
		state:    StateDisconnected,
		emitter:  emitter,
		identity: identity,
		logger:   slog.Default(),
		meter:    otel.Meter(meterName),
	}
	for _, opt := range opts {
		opt(m)
	}

	counters, err := newMetrics(m.meter)
	if err != nil {
		m.logger.Warn("session metrics disabled", "error", err)
		counters = noopMetrics()
	}
	m.metrics = counters
	return m
}

// Apply folds one inbound event into the session.
func (m *Machine) Apply(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case Paired:
		m.applyPaired(ctx, ev)
	case MessageReceived:
		m.applyMessage(ctx, ev)
	case Closed:
		if ev.Err != nil {
			m.logger.Info("session closed", "error", ev.Err)
		}
		m.state = StateDisconnected
		m.room = ""
		m.transcript = nil
	default:
		m.logger.Debug("ignoring unknown session event", "event", fmt.Sprintf("%T", ev))
	}
}

func (m *Machine) applyPaired(ctx context.Context, ev Paired) {
	switch m.state {
	case StateDisconnected:
		m.logger.Warn("pairing without a join request discarded", "room", ev.Room)
		return
	case StatePaired:
		if ev.Room == m.room {
			return
		}
	}
	m.state = StatePaired
	m.room = ev.Room
	m.transcript = nil
	m.metrics.pairings.Add(ctx, 1)
}

func (m *Machine) applyMessage(ctx context.Context, ev MessageReceived) {
	if m.state != StatePaired || ev.Room != m.room {
		m.discarded++
		m.metrics.discarded.Add(ctx, 1)
		m.logger.Warn("stale room message discarded",
			"room", ev.Room,
			"current_room", m.room,
			"sender", ev.Sender,
		)
		return
	}
	m.transcript = append(m.transcript, ChatMessage{
		RoomID:   m.room,
		SenderID: ev.Sender,
		Body:     ev.Body,
		Sequence: len(m.transcript),
	})
	m.metrics.appended.Add(ctx, 1)
}

// Intent performs a user action and returns its typed result.
func (m *Machine) Intent(ctx context.Context, in Intent) error {
	switch in := in.(type) {
	case Join:
		return m.join(ctx)
	case SendMessage:
		return m.send(ctx, in.Body)
	case SelectEmoji:
		if in.Draft == nil {
			return errNoDraft
		}
		return in.Draft.appendEmoji(in.Emoji)
	default:
		return fmt.Errorf("%w: unknown intent %T", ErrInvalidTransition, in)
	}
}

func (m *Machine) join(ctx context.Context) error {
	if m.state != StateDisconnected {
		return fmt.Errorf("%w: join while %s", ErrInvalidTransition, m.state)
	}
	if err := m.emitter.RequestPairing(ctx); err != nil {
		return fmt.Errorf("failed to request pairing: %w", err)
	}
	m.state = StateQueued
	return nil
}

// send never touches the transcript; our own line arrives as an echo.
func (m *Machine) send(ctx context.Context, body string) error {
	if m.state != StatePaired {
		return ErrNotPaired
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyMessage
	}
	if err := m.emitter.SendChat(ctx, m.room, body); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	m.metrics.sent.Add(ctx, 1)
	return nil
}

// Projection returns a read-only snapshot of the session.
func (m *Machine) Projection() Projection {
	p := Projection{
		State:    m.state,
		identity: m.identity,
	}
	if m.state == StatePaired {
		p.room = m.room
	}
	if len(m.transcript) > 0 {
		p.Transcript = append([]ChatMessage(nil), m.transcript...)
	}
	return p
}

// State returns the current state tag.
func (m *Machine) State() State {
	return m.state
}

// Discarded returns how many stale-room messages were dropped.
func (m *Machine) Discarded() int {
	return m.discarded
}
