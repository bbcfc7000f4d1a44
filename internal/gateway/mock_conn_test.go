package gateway_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/omochice/stranger-chat/internal/transport"
	"github.com/omochice/stranger-chat/pkg/protocol"
)

// mockConn is a mock implementation of transport.Conn for testing.
type mockConn struct {
	readCh     chan []byte
	closeCh    chan struct{}
	closeOnce  sync.Once
	writtenMu  sync.Mutex
	written    [][]byte
	writeErr   error
	closeCalls int
}

func newMockConn() *mockConn {
	return &mockConn{
		readCh:  make(chan []byte, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-m.closeCh:
		return nil, errors.New("use of closed connection")
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockConn) Write(ctx context.Context, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	return nil
}

func (m *mockConn) Close() error {
	m.writtenMu.Lock()
	m.closeCalls++
	m.writtenMu.Unlock()
	m.closeOnce.Do(func() { close(m.closeCh) })
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return "mock:0"
}

func (m *mockConn) CloseCalls() int {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	return m.closeCalls
}

// push encodes ev and queues it for the gateway to read.
func (m *mockConn) push(t *testing.T, ev protocol.Event) {
	t.Helper()
	data, err := ev.Encode()
	if err != nil {
		t.Fatalf("failed to encode event: %v", err)
	}
	m.readCh <- data
}

// Written decodes every frame the gateway wrote.
func (m *mockConn) Written(t *testing.T) []protocol.Event {
	t.Helper()
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	events := make([]protocol.Event, 0, len(m.written))
	for _, data := range m.written {
		ev, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("failed to decode written frame: %v", err)
		}
		events = append(events, ev)
	}
	return events
}

// Compile-time check that mockConn implements transport.Conn
var _ transport.Conn = (*mockConn)(nil)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timeout waiting for condition")
}
