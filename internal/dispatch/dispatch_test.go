package dispatch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiredhome/huebridge/internal/events"
	"github.com/wiredhome/huebridge/internal/registry"
)

type recordingSink struct {
	mu       sync.Mutex
	received []SemanticEvent
	fail     bool
}

func (s *recordingSink) Receive(event any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("sink rejected event")
	}
	s.received = append(s.received, event.(SemanticEvent))
	return nil
}

func (s *recordingSink) events() []SemanticEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SemanticEvent, len(s.received))
	copy(out, s.received)
	return out
}

type fakeSinks map[string]registry.Sink

func (f fakeSinks) Sink(deviceID string) registry.Sink { return f[deviceID] }

func TestDispatchDeliversToBus(t *testing.T) {
	bus := events.New(events.Config{BufferSize: 8, Workers: 2}, nil)
	defer bus.Shutdown(time.Second)

	sink := &recordingSink{}
	core := New("hub1", bus, nil, nil)

	result := core.Dispatch(fakeSinks{"d1": sink}, "d1", SemanticEvent{Topic: TopicPower, Payload: "ON"})
	assert.Equal(t, Delivered, result)

	require.Eventually(t, func() bool {
		return len(sink.events()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, TopicPower, sink.events()[0].Topic)
}

func TestDispatchReturnsNotFoundForUnknownDevice(t *testing.T) {
	core := New("hub1", nil, nil, nil)
	result := core.Dispatch(fakeSinks{}, "ghost", SemanticEvent{Topic: TopicPower, Payload: "ON"})
	assert.Equal(t, NotFound, result)
}

func TestDispatchWithoutBusDeliversInline(t *testing.T) {
	sink := &recordingSink{}
	core := New("hub1", nil, nil, nil)

	result := core.Dispatch(fakeSinks{"d1": sink}, "d1", SemanticEvent{Topic: TopicBrightness, Payload: 50})
	assert.Equal(t, Delivered, result)
	assert.Len(t, sink.events(), 1)
}

func TestDispatchDoesNotPropagateSinkError(t *testing.T) {
	bus := events.New(events.Config{BufferSize: 8, Workers: 1}, nil)
	defer bus.Shutdown(time.Second)

	sink := &recordingSink{fail: true}
	core := New("hub1", bus, nil, nil)

	result := core.Dispatch(fakeSinks{"d1": sink}, "d1", SemanticEvent{Topic: TopicPower, Payload: "ON"})
	assert.Equal(t, Delivered, result, "dispatch must report success even though the sink will later fail")
}
