package huehttp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wiredhome/huebridge/internal/dispatch"
)

// parseOrderedState decodes a Hue PUT .../state body into a
// dispatch.HueState, also returning the keys in the exact order they
// appeared in the JSON object. encoding/json's normal Unmarshal into a
// struct or map loses that order; spec §4.D and §8 require the PUT success
// response to echo mutated keys "in the order keys appeared in the
// request", and no retrieved third-party library preserves Go map key
// order either, so this uses the decoder's token stream directly.
func parseOrderedState(body []byte) (dispatch.HueState, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))

	tok, err := dec.Token()
	if err != nil {
		return dispatch.HueState{}, nil, fmt.Errorf("decode state body: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return dispatch.HueState{}, nil, fmt.Errorf("state body must be a JSON object")
	}

	var state dispatch.HueState
	var order []string

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return dispatch.HueState{}, nil, fmt.Errorf("decode state key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return dispatch.HueState{}, nil, fmt.Errorf("unexpected non-string key")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return dispatch.HueState{}, nil, fmt.Errorf("decode value for %q: %w", key, err)
		}

		switch key {
		case "on":
			var v bool
			if err := json.Unmarshal(raw, &v); err != nil {
				return dispatch.HueState{}, nil, fmt.Errorf("decode \"on\": %w", err)
			}
			state.On = &v
		case "bri":
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return dispatch.HueState{}, nil, fmt.Errorf("decode \"bri\": %w", err)
			}
			state.Bri = &v
		case "hue":
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return dispatch.HueState{}, nil, fmt.Errorf("decode \"hue\": %w", err)
			}
			state.Hue = &v
		case "sat":
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return dispatch.HueState{}, nil, fmt.Errorf("decode \"sat\": %w", err)
			}
			state.Sat = &v
		case "ct":
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return dispatch.HueState{}, nil, fmt.Errorf("decode \"ct\": %w", err)
			}
			state.CT = &v
		case "xy":
			var v []float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return dispatch.HueState{}, nil, fmt.Errorf("decode \"xy\": %w", err)
			}
			state.XY = v
		}

		order = append(order, key)
	}

	return state, order, nil
}

// orderMutatedKeys filters requestOrder down to the keys dispatch.FromHueState
// reported as mutated, preserving the request's own ordering.
func orderMutatedKeys(requestOrder []string, mutated []dispatch.MutatedKey) []dispatch.MutatedKey {
	byKey := make(map[string]dispatch.MutatedKey, len(mutated))
	for _, m := range mutated {
		byKey[m.Key] = m
	}
	ordered := make([]dispatch.MutatedKey, 0, len(mutated))
	seen := make(map[string]bool, len(mutated))
	for _, key := range requestOrder {
		if m, ok := byKey[key]; ok && !seen[key] {
			ordered = append(ordered, m)
			seen[key] = true
		}
	}
	return ordered
}
