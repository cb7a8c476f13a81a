package dispatch

import (
	"fmt"
	"math"
)

// HueState is any subset of the Hue v1 PUT .../state body (spec §3).
// Pointers distinguish "absent" from "zero value", which the precedence
// rules in spec §4.D depend on.
type HueState struct {
	On  *bool      `json:"on,omitempty"`
	Bri *float64   `json:"bri,omitempty"`
	Hue *float64   `json:"hue,omitempty"`
	Sat *float64   `json:"sat,omitempty"`
	XY  []float64  `json:"xy,omitempty"`
	CT  *float64   `json:"ct,omitempty"`
}

// MutatedKey pairs a HueState field name with the value the Hue facade
// should echo back in its per-key success array (spec §4.D PUT response).
type MutatedKey struct {
	Key   string
	Value any
}

// FromHueState maps a Hue PUT body to a SemanticEvent following the
// precedence order in spec §4.D: the first matching rule wins, and no
// event is produced when none match. mutated reports which keys produced
// the event, used to build the `[{"success":{...}}]` response. keyOrder is
// not consulted: mutated lists hue before sat regardless of the request,
// and the caller reorders it to request order.
func FromHueState(state HueState, keyOrder []string) (SemanticEvent, []MutatedKey, bool) {
	switch {
	case state.On != nil:
		payload := "OFF"
		if *state.On {
			payload = "ON"
		}
		return SemanticEvent{Topic: TopicPower, Payload: payload},
			[]MutatedKey{{Key: "on", Value: *state.On}}, true

	case state.Bri != nil && state.Hue == nil && state.Sat == nil:
		pct := clampPercent(math.Round(*state.Bri / 254.0 * 100))
		return SemanticEvent{Topic: TopicBrightness, Payload: pct},
			[]MutatedKey{{Key: "bri", Value: *state.Bri}}, true

	case state.Hue != nil && state.Sat != nil:
		bri := briOrDefault(state.Bri)
		sat := *state.Sat / 254.0
		return SemanticEvent{Topic: TopicColor, Payload: ColorPayload{
				Hue:        state.Hue,
				Saturation: &sat,
				Brightness: bri,
			}},
			[]MutatedKey{{Key: "hue", Value: *state.Hue}, {Key: "sat", Value: *state.Sat}}, true

	case len(state.XY) == 2:
		bri := briOrDefault(state.Bri)
		return SemanticEvent{Topic: TopicColor, Payload: ColorPayload{
				XY:         state.XY,
				Brightness: bri,
			}},
			[]MutatedKey{{Key: "xy", Value: state.XY}}, true

	case state.CT != nil:
		bri := briOrDefault(state.Bri)
		return SemanticEvent{Topic: TopicColor, Payload: ColorPayload{
				CT:         state.CT,
				Brightness: bri,
			}},
			[]MutatedKey{{Key: "ct", Value: *state.CT}}, true
	}

	return SemanticEvent{}, nil, false
}

func briOrDefault(bri *float64) float64 {
	if bri == nil {
		return 254.0 / 254.0
	}
	return *bri / 254.0
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Directive is the subset of an Alexa Smart Home v3 directive this package
// needs to map to a SemanticEvent (spec §4.E).
type Directive struct {
	Namespace string
	Name      string
	Payload   map[string]any
}

// FromAlexaDirective maps a validated Alexa directive to a SemanticEvent
// per the table in spec §4.E. ok is false for any (namespace, name) pair
// not in that table; callers must respond with INVALID_DIRECTIVE in that
// case.
func FromAlexaDirective(d Directive) (SemanticEvent, bool) {
	switch fmt.Sprintf("%s.%s", d.Namespace, d.Name) {
	case "Alexa.PowerController.TurnOn":
		return SemanticEvent{Topic: TopicPower, Payload: "ON"}, true
	case "Alexa.PowerController.TurnOff":
		return SemanticEvent{Topic: TopicPower, Payload: "OFF"}, true
	case "Alexa.BrightnessController.SetBrightness":
		return SemanticEvent{Topic: TopicBrightness, Payload: d.Payload["brightness"]}, true
	case "Alexa.BrightnessController.AdjustBrightness":
		return SemanticEvent{Topic: TopicBrightness, Payload: d.Payload["brightnessDelta"]}, true
	case "Alexa.ColorController.SetColor":
		return SemanticEvent{Topic: TopicColor, Payload: d.Payload["color"]}, true
	default:
		return SemanticEvent{}, false
	}
}
