package events

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls Bus sizing.
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig returns sane defaults for a single hub's worker pool.
func DefaultConfig() Config {
	return Config{BufferSize: 256, Workers: 4}
}

// Bus is a buffered, worker-pool event bus. Publish never blocks the caller:
// a full buffer drops the event rather than stalling the HTTP handler that
// produced it (spec §5: dispatch must not suspend the request goroutine).
//
// Events are sharded by sink key (hub+device for DispatchEvent, hub for
// StatusEvent) across one channel per worker, so every event for a given
// sink is always drained by the same worker and stays in publish order
// (spec §5: "events delivered to the same sink from a single external
// connection are delivered in the request order of that connection").
// Events without a sink key fall back to shard 0.
type Bus struct {
	shards []chan Event

	mu        sync.Mutex
	consumers []Consumer

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	stats Stats

	logger *slog.Logger
}

// New creates a Bus and immediately starts its worker pool.
func New(cfg Config, logger *slog.Logger) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	perShard := cfg.BufferSize / cfg.Workers
	if perShard <= 0 {
		perShard = 1
	}
	shards := make([]chan Event, cfg.Workers)
	for i := range shards {
		shards[i] = make(chan Event, perShard)
	}
	b := &Bus{
		shards: shards,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With("component", "events"),
	}
	b.start(cfg.Workers)
	return b
}

// Subscribe registers a consumer. Safe to call concurrently with Publish.
func (b *Bus) Subscribe(c Consumer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers = append(b.consumers, c)
}

func (b *Bus) start(workers int) {
	if b.running.Swap(true) {
		return
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()
	log := b.logger.With("worker", id)
	shard := b.shards[id]
	for {
		select {
		case <-b.ctx.Done():
			// Deliver whatever is still buffered on this shard, then exit.
			for {
				select {
				case ev, ok := <-shard:
					if !ok {
						return
					}
					b.dispatch(ev, log)
				default:
					return
				}
			}
		case ev, ok := <-shard:
			if !ok {
				return
			}
			b.dispatch(ev, log)
		}
	}
}

// shardKey identifies the sink an event must stay ordered with respect to.
// Events with no natural sink key (the zero value) always land on shard 0.
func shardKey(ev Event) string {
	switch e := ev.(type) {
	case DispatchEvent:
		return e.HubID + "/" + e.DeviceID
	case StatusEvent:
		return e.HubID
	default:
		return ""
	}
}

func (b *Bus) shardFor(ev Event) chan Event {
	key := shardKey(ev)
	if key == "" {
		return b.shards[0]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return b.shards[h.Sum32()%uint32(len(b.shards))]
}

func (b *Bus) dispatch(ev Event, log *slog.Logger) {
	if d, ok := ev.(DispatchEvent); ok && d.Deliver != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&b.stats.Errors, 1)
					log.Error("sink delivery panicked", "device", d.DeviceID, "panic", r)
				}
			}()
			if err := d.Deliver(); err != nil {
				atomic.AddUint64(&b.stats.Errors, 1)
				log.Warn("sink rejected event", "device", d.DeviceID, "topic", d.Topic, "error", err)
			}
		}()
	}

	b.mu.Lock()
	consumers := make([]Consumer, len(b.consumers))
	copy(consumers, b.consumers)
	b.mu.Unlock()

	for _, c := range consumers {
		func(c Consumer) {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&b.stats.Errors, 1)
					log.Error("consumer panicked", "consumer", c.Name(), "panic", r)
				}
			}()
			c.Handle(ev)
		}(c)
	}
	atomic.AddUint64(&b.stats.Handled, 1)
}

// Publish enqueues ev without blocking. Returns false if the buffer is full
// and the event was dropped.
func (b *Bus) Publish(ev Event) bool {
	if b == nil || !b.running.Load() {
		return false
	}
	select {
	case b.shardFor(ev) <- ev:
		atomic.AddUint64(&b.stats.Received, 1)
		return true
	default:
		atomic.AddUint64(&b.stats.Dropped, 1)
		b.logger.Debug("event dropped, buffer full", "kind", ev.Kind())
		return false
	}
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Received: atomic.LoadUint64(&b.stats.Received),
		Handled:  atomic.LoadUint64(&b.stats.Handled),
		Dropped:  atomic.LoadUint64(&b.stats.Dropped),
		Errors:   atomic.LoadUint64(&b.stats.Errors),
	}
}

// Shutdown stops accepting new events and waits up to timeout for workers to
// drain the buffer.
func (b *Bus) Shutdown(timeout time.Duration) {
	if b == nil || !b.running.Swap(false) {
		return
	}
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		b.logger.Warn("event bus shutdown timed out")
	}
}
