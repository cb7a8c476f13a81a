// Package dispatch translates inbound Hue PUTs and Alexa directives into a
// normalized SemanticEvent and hands it off to a device's sink without
// blocking the HTTP handler that produced it (spec §4.F).
package dispatch

// Topic names the semantic channel a SemanticEvent travels on.
type Topic string

const (
	TopicPower      Topic = "power"
	TopicBrightness Topic = "brightness"
	TopicColor      Topic = "color"
)

// SemanticEvent is the normalized internal command shape. Payload is kept
// as free-form `any` per spec §9 ("map to free-form JSON only at the wire
// boundary") — its concrete Go shape depends on Topic:
//   - power:      string, "ON" or "OFF"
//   - brightness: a number (int or float64 depending on caller)
//   - color:      ColorPayload
type SemanticEvent struct {
	Topic   Topic
	Payload any
}

// ColorPayload covers the three ways a color can be expressed, mirroring
// the Hue PUT precedence rules in spec §4.D. Exactly one of Hue/Sat, XY, or
// CT is populated depending on which source field drove the mapping.
type ColorPayload struct {
	Hue        *float64  `json:"hue,omitempty"`
	Saturation *float64  `json:"saturation,omitempty"`
	XY         []float64 `json:"xy,omitempty"`
	CT         *float64  `json:"ct,omitempty"`
	Brightness float64   `json:"brightness"`
}
