package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const publishTimeout = 5 * time.Second

// Dispatcher decouples request handling from event delivery: Publish enqueues
// and returns immediately, a fixed set of workers drains the queue. When the
// queue is full the event is dropped with a warning rather than stalling the
// request path.
type Dispatcher struct {
	sink    Publisher
	queue   chan TransactionEvent
	logger  *slog.Logger
	wg      sync.WaitGroup
	closing sync.Once
}

// NewDispatcher starts workers goroutines draining into sink.
func NewDispatcher(sink Publisher, workers, depth int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	if depth <= 0 {
		depth = 256
	}
	d := &Dispatcher{
		sink:   sink,
		queue:  make(chan TransactionEvent, depth),
		logger: logger,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Publish enqueues the event. It never blocks and never fails the caller.
func (d *Dispatcher) Publish(_ context.Context, evt TransactionEvent) error {
	select {
	case d.queue <- evt:
	default:
		d.logger.Warn("event queue full, dropping event",
			slog.String("id", evt.ID), slog.String("wallet", evt.Wallet))
	}
	return nil
}

// Close stops accepting events, drains the queue and closes the sink.
func (d *Dispatcher) Close() error {
	d.closing.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
	return d.sink.Close()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for evt := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := d.sink.Publish(ctx, evt); err != nil {
			d.logger.Warn("event delivery failed",
				slog.String("id", evt.ID), slog.Any("error", err))
		}
		cancel()
	}
}
