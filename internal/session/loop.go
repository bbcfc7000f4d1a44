package session

import (
	"context"
	"errors"
)

// ErrLoopStopped is returned by Submit once Run has returned.
var ErrLoopStopped = errors.New("session loop stopped")

// Loop owns a Machine and applies events and intents to it one at a time.
// Every mutation of the session happens on the goroutine running Run.
type Loop struct {
	machine  *Machine
	events   <-chan Event
	requests chan func(context.Context)
	onChange func(Projection)
	done     chan struct{}
}

// NewLoop creates a Loop fed by events. onChange, if set, is called on the
// loop goroutine after every state or transcript change.
func NewLoop(machine *Machine, events <-chan Event, onChange func(Projection)) *Loop {
	return &Loop{
		machine:  machine,
		events:   events,
		requests: make(chan func(context.Context)),
		onChange: onChange,
		done:     make(chan struct{}),
	}
}

// Run processes events and intents until ctx is done or the event channel
// closes. A closed channel is treated as transport teardown.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-l.events:
			if !ok {
				l.machine.Apply(ctx, Closed{})
				l.notify()
				return nil
			}
			l.machine.Apply(ctx, ev)
			l.notify()
		case req := <-l.requests:
			req(ctx)
		}
	}
}

// Submit hands an intent to the loop and waits for its result.
func (l *Loop) Submit(ctx context.Context, in Intent) error {
	var err error
	doErr := l.do(ctx, func(context.Context) {
		before := l.machine.State()
		err = l.machine.Intent(ctx, in)
		if l.machine.State() != before {
			l.notify()
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Projection returns a snapshot taken on the loop goroutine.
func (l *Loop) Projection(ctx context.Context) (Projection, error) {
	var p Projection
	err := l.do(ctx, func(context.Context) {
		p = l.machine.Projection()
	})
	return p, err
}

// do runs fn on the loop goroutine. Once the loop accepts fn it runs it to
// completion before taking the next event.
func (l *Loop) do(ctx context.Context, fn func(context.Context)) error {
	finished := make(chan struct{})
	req := func(runCtx context.Context) {
		defer close(finished)
		fn(runCtx)
	}

	select {
	case l.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
	<-finished
	return nil
}

func (l *Loop) notify() {
	if l.onChange != nil {
		l.onChange(l.machine.Projection())
	}
}
