package mqttsink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wiredhome/huebridge/internal/conf"
	"github.com/wiredhome/huebridge/internal/events"
)

func TestDisabledSinkIsInert(t *testing.T) {
	var cfg conf.Settings
	s := New(cfg, "hub1", nil)

	assert.False(t, s.Enabled())
	assert.Equal(t, "mqttsink", s.Name())

	// Handle must not panic even though no broker connection exists.
	s.Handle(events.DispatchEvent{
		At:       time.Now(),
		HubID:    "hub1",
		DeviceID: "1",
		Topic:    "power",
		Payload:  true,
	})
}

func TestHandleIgnoresNonDispatchEvents(t *testing.T) {
	var cfg conf.Settings
	cfg.MQTT.Broker = "tcp://127.0.0.1:1883"
	s := New(cfg, "hub1", nil)

	assert.True(t, s.Enabled())
	// Not connected, so this must be a no-op rather than a nil-pointer panic.
	s.Handle(events.StatusEvent{At: time.Now(), HubID: "hub1", Color: events.StatusGreen})
}
