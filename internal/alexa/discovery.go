package alexa

import "github.com/wiredhome/huebridge/internal/registry"

type discoverResponse struct {
	Event discoverEvent `json:"event"`
}

type discoverEvent struct {
	Header  header          `json:"header"`
	Payload discoverPayload `json:"payload"`
}

type discoverPayload struct {
	Endpoints []endpoint `json:"endpoints"`
}

type endpoint struct {
	EndpointID        string       `json:"endpointId"`
	ManufacturerName  string       `json:"manufacturerName"`
	FriendlyName      string       `json:"friendlyName"`
	Description       string       `json:"description"`
	DisplayCategories []string     `json:"displayCategories"`
	Cookie            struct{}     `json:"cookie"`
	Capabilities      []capability `json:"capabilities"`
}

type capability struct {
	Type       string                `json:"type"`
	Interface  string                `json:"interface"`
	Version    string                `json:"version"`
	Properties *capabilityProperties `json:"properties,omitempty"`
}

type capabilityProperties struct {
	Supported           []supportedProperty `json:"supported"`
	ProactivelyReported bool                `json:"proactivelyReported"`
	Retrievable         bool                `json:"retrievable"`
}

type supportedProperty struct {
	Name string `json:"name"`
}

// endpointsFromView builds the Discover.Response endpoint list from a
// single registry snapshot (spec §5: "consistent snapshot ... no torn
// reads across inserts/removals").
func endpointsFromView(v *registry.View) []endpoint {
	devices := v.Devices()
	out := make([]endpoint, 0, len(devices))
	for _, d := range devices {
		out = append(out, endpoint{
			EndpointID:        d.ID,
			ManufacturerName:  "Signify",
			FriendlyName:      d.Name,
			Description:       "huebridge virtual light",
			DisplayCategories: []string{"LIGHT", "SWITCH"},
			Capabilities: []capability{
				{Type: "AlexaInterface", Interface: "Alexa", Version: "3"},
				{
					Type:      "AlexaInterface",
					Interface: "Alexa.PowerController",
					Version:   "3",
					Properties: &capabilityProperties{
						Supported: []supportedProperty{{Name: "powerState"}},
					},
				},
				{
					Type:      "AlexaInterface",
					Interface: "Alexa.BrightnessController",
					Version:   "3",
					Properties: &capabilityProperties{
						Supported: []supportedProperty{{Name: "brightness"}},
					},
				},
				{
					Type:      "AlexaInterface",
					Interface: "Alexa.ColorController",
					Version:   "3",
					Properties: &capabilityProperties{
						Supported: []supportedProperty{{Name: "color"}},
					},
				},
			},
		})
	}
	return out
}

func newDiscoverResponse(req header, v *registry.View) discoverResponse {
	return discoverResponse{Event: discoverEvent{
		Header: header{
			Namespace:      "Alexa.Discovery",
			Name:           "Discover.Response",
			PayloadVersion: "3",
			MessageID:      coalesce(req.MessageID, "unknown"),
		},
		Payload: discoverPayload{Endpoints: endpointsFromView(v)},
	}}
}
