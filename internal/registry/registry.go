// Package registry provides the read-only, recomputed-per-call view over
// the devices bound to a hub (spec §3/§4.A). It never caches the device
// list itself; the host environment is the source of truth and is
// expected to support concurrent iteration.
package registry

import (
	"fmt"
	"strconv"

	"github.com/k3a/html2text"
)

// Sink is the single entry point a device handler exposes. Delivery of a
// SemanticEvent to a Sink is performed by internal/dispatch, never
// directly by this package.
type Sink interface {
	Receive(event any) error
}

// Record is one entry as reported by the host environment's
// iterateNodes(visit) callback (spec §6).
type Record struct {
	ID   string
	Name string
	Sink Sink
}

// Source abstracts the host environment's device directory. It is the only
// thing this package depends on to learn which devices exist for a hub.
type Source interface {
	// IterateNodes invokes visit once per record bound to the hub, in the
	// host's own iteration order. Must be safe for concurrent calls.
	IterateNodes(hubID string, visit func(Record))
}

// Device is the Hue-facade-shaped projection of a Record: the raw record
// enriched with the per-listing index and synthetic uniqueid described in
// spec §4.A.
type Device struct {
	ID       string
	Name     string // HTML-sanitized
	Index    int    // 1-based, dense, stable within one listing pass
	UniqueID string
	Sink     Sink
}

// View is a single resolved snapshot of a hub's devices, safe to reuse for
// the remainder of one HTTP request/discovery pass (spec §9: "memoize
// per-request only").
type View struct {
	hubID   string
	devices []Device
	byID    map[string]int // deviceId -> slice index
	byIndex map[string]int // "1".. -> slice index
	byUID   map[string]int // uniqueid -> slice index
}

// List builds a fresh View for hub by walking source. Each call produces a
// deterministic ordering given a fixed underlying record set: the host's
// iteration order determines index assignment.
func List(source Source, hubID string) *View {
	v := &View{
		hubID:   hubID,
		byID:    make(map[string]int),
		byIndex: make(map[string]int),
		byUID:   make(map[string]int),
	}

	idx := 0
	source.IterateNodes(hubID, func(r Record) {
		idx++
		d := Device{
			ID:       r.ID,
			Name:     sanitizeName(r.Name),
			Index:    idx,
			UniqueID: uniqueID(hubID, idx),
			Sink:     r.Sink,
		}
		pos := len(v.devices)
		v.devices = append(v.devices, d)
		v.byID[d.ID] = pos
		v.byIndex[strconv.Itoa(d.Index)] = pos
		v.byUID[d.UniqueID] = pos
	})

	return v
}

// Devices returns the ordered device list for this snapshot.
func (v *View) Devices() []Device {
	return v.devices
}

// ByIndex returns the device at the given 1-based index, if any.
func (v *View) ByIndex(index int) (Device, bool) {
	pos, ok := v.byIndex[strconv.Itoa(index)]
	if !ok {
		return Device{}, false
	}
	return v.devices[pos], true
}

// Resolve accepts a raw deviceId, a synthetic uniqueid, or a numeric index
// (as a string) and returns the matching Device. When token matches both a
// raw id and an index, the raw id wins (spec §4.A tie-break).
func (v *View) Resolve(token string) (Device, bool) {
	if pos, ok := v.byID[token]; ok {
		return v.devices[pos], true
	}
	if pos, ok := v.byUID[token]; ok {
		return v.devices[pos], true
	}
	if pos, ok := v.byIndex[token]; ok {
		return v.devices[pos], true
	}
	return Device{}, false
}

// Sink returns the device sink for deviceId, or nil if no such device
// exists in this snapshot. Used by internal/dispatch.
func (v *View) Sink(deviceID string) Sink {
	pos, ok := v.byID[deviceID]
	if !ok {
		return nil
	}
	return v.devices[pos].Sink
}

// sanitizeName strips any HTML tags from a host-supplied device name before
// it is ever placed in a Hue light object or an Alexa friendlyName (spec §8:
// "friendlyName ... never contains < or >").
func sanitizeName(name string) string {
	return html2text.HTML2Text(name)
}

// uniqueID builds the synthetic Hue uniqueid "H0:H1:H2:H3:H4:H5:H6:II-01"
// described in spec §4.A: seven 4-character slices of hubId followed by the
// two-hex-digit lowercase index.
func uniqueID(hubID string, index int) string {
	padded := hubID
	for len(padded) < 28 {
		padded += "0"
	}
	var slices [7]string
	for i := range 7 {
		start := i * 4
		slices[i] = padded[start : start+4]
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s:%s:%02x-01",
		slices[0], slices[1], slices[2], slices[3], slices[4], slices[5], slices[6], index)
}
