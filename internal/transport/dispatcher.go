package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// Dispatcher pumps a Source and fans each document out to its
// subscribers. Subscribe before Run; the subscriber set is fixed once the
// pump starts. Channel subscribers let a UI event loop pull documents onto
// its own goroutine so catalog mutation stays single-threaded.
type Dispatcher struct {
	session string
	subs    []chan<- Document
}

// NewDispatcher returns a dispatcher with a fresh session id.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{session: uuid.NewString()}
}

// Session returns the dispatcher's unique session id, used to tell apart
// log lines from concurrent viewer instances on a shared stream.
func (d *Dispatcher) Session() string { return d.session }

// Subscribe registers a channel to receive every document. The dispatcher
// blocks on slow subscribers rather than dropping documents.
func (d *Dispatcher) Subscribe(ch chan<- Document) {
	d.subs = append(d.subs, ch)
}

// Run pumps the source until it is exhausted or ctx is done, then closes
// every subscriber channel. A source read error other than EOF is
// returned after the channels close.
func (d *Dispatcher) Run(ctx context.Context, src Source) error {
	defer func() {
		for _, ch := range d.subs {
			close(ch)
		}
	}()
	slog.Info("transport: pump started", "session", d.session)
	for {
		doc, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				slog.Info("transport: pump finished", "session", d.session)
				return nil
			}
			return err
		}
		for _, ch := range d.subs {
			select {
			case ch <- doc:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
