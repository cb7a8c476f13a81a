package dispatch

import (
	"log/slog"
	"time"

	"github.com/wiredhome/huebridge/internal/events"
	"github.com/wiredhome/huebridge/internal/metrics"
	"github.com/wiredhome/huebridge/internal/registry"
)

// SinkSource is the subset of registry.View a dispatcher needs: looking up
// a device's sink by id. Kept narrow so callers can pass either a real
// *registry.View or a test double.
type SinkSource interface {
	Sink(deviceID string) registry.Sink
}

// Core delivers SemanticEvents to device sinks via the shared event bus,
// satisfying spec §4.F/§5: delivery is fire-and-forget and must never
// block the HTTP goroutine that called Dispatch.
type Core struct {
	hubID   string
	bus     *events.Bus
	log     *slog.Logger
	metrics *metrics.Recorder
}

// New builds a Core for one hub, publishing onto bus. rec may be nil, in
// which case dispatch outcomes are simply not recorded.
func New(hubID string, bus *events.Bus, log *slog.Logger, rec *metrics.Recorder) *Core {
	if log == nil {
		log = slog.Default()
	}
	return &Core{hubID: hubID, bus: bus, log: log.With("component", "dispatch"), metrics: rec}
}

func (r Result) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case NotFound:
		return "not_found"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Result reports whether a dispatch was accepted for delivery. It does not
// report whether the downstream sink actually succeeded — that happens
// asynchronously on a worker goroutine (spec §4.F item 2).
type Result int

const (
	// Delivered means a sink was found and the event was handed off.
	Delivered Result = iota
	// NotFound means no device with the given id exists in this view.
	NotFound
	// Dropped means a sink existed but the event bus buffer was full.
	Dropped
)

// Dispatch resolves deviceID in source and publishes a delivery of event to
// its sink. It always returns immediately regardless of the sink's actual
// behavior.
func (c *Core) Dispatch(source SinkSource, deviceID string, event SemanticEvent) Result {
	result := c.dispatch(source, deviceID, event)
	if c.metrics != nil {
		c.metrics.RecordDispatch(string(event.Topic), result.String())
	}
	return result
}

func (c *Core) dispatch(source SinkSource, deviceID string, event SemanticEvent) Result {
	sink := source.Sink(deviceID)
	if sink == nil {
		return NotFound
	}

	de := events.DispatchEvent{
		At:       time.Now(),
		HubID:    c.hubID,
		DeviceID: deviceID,
		Topic:    string(event.Topic),
		Payload:  event.Payload,
		Deliver: func() error {
			return sink.Receive(event)
		},
	}

	if c.bus == nil {
		// No bus wired (e.g. in tests): deliver inline, already off the
		// HTTP goroutine is the caller's responsibility in that case.
		if err := de.Deliver(); err != nil {
			c.log.Warn("sink rejected event", "device", deviceID, "topic", event.Topic, "error", err)
		}
		return Delivered
	}

	if !c.bus.Publish(de) {
		c.log.Warn("dispatch dropped, bus buffer full", "device", deviceID, "topic", event.Topic)
		return Dropped
	}
	return Delivered
}
