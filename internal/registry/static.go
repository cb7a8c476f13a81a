package registry

import "log/slog"

// StaticDevice is one statically configured device, mirroring
// conf.DeviceConfig without importing the conf package from here.
type StaticDevice struct {
	ID   string
	Name string
}

// StaticSource is a fixed, in-memory Source built from configuration. It is
// the built-in device directory the standalone `serve` command uses when no
// embedding host environment supplies its own Source (spec §6).
type StaticSource struct {
	records []Record
}

// NewStaticSource builds a StaticSource from id/name pairs, each bound to a
// LoggingSink that reports dispatched events via log rather than driving
// real hardware.
func NewStaticSource(log *slog.Logger, devices []StaticDevice) *StaticSource {
	if log == nil {
		log = slog.Default()
	}
	records := make([]Record, 0, len(devices))
	for _, d := range devices {
		records = append(records, Record{ID: d.ID, Name: d.Name, Sink: LoggingSink{ID: d.ID, Log: log}})
	}
	return &StaticSource{records: records}
}

// IterateNodes implements Source.
func (s *StaticSource) IterateNodes(hubID string, visit func(Record)) {
	for _, r := range s.records {
		visit(r)
	}
}

// LoggingSink is a Sink that logs every SemanticEvent it receives instead of
// driving real hardware, used by StaticSource and anywhere a demo sink is
// useful.
type LoggingSink struct {
	ID  string
	Log *slog.Logger
}

// Receive implements Sink.
func (s LoggingSink) Receive(event any) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("device received event", "device", s.ID, "event", event)
	return nil
}
