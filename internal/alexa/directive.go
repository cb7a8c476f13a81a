package alexa

import "time"

type controlResponse struct {
	Event   controlEvent `json:"event"`
	Context responseContext `json:"context"`
}

type controlEvent struct {
	Header   header      `json:"header"`
	Endpoint endpointRef `json:"endpoint"`
	Payload  struct{}    `json:"payload"`
}

type responseContext struct {
	Properties []property `json:"properties"`
}

type property struct {
	Namespace                 string `json:"namespace"`
	Name                      string `json:"name"`
	Value                     any    `json:"value"`
	TimeOfSample              string `json:"timeOfSample"`
	UncertaintyInMilliseconds int    `json:"uncertaintyInMilliseconds"`
}

// propertyFor maps a directive's namespace to the property name Alexa
// expects back in context.properties (spec §4.E scenario 4).
func propertyFor(namespace string) string {
	switch namespace {
	case "Alexa.PowerController":
		return "powerState"
	case "Alexa.BrightnessController":
		return "brightness"
	case "Alexa.ColorController":
		return "color"
	default:
		return "state"
	}
}

func newControlResponse(req header, endpointID string, namespace string, value any) controlResponse {
	return controlResponse{
		Event: controlEvent{
			Header: header{
				Namespace:        "Alexa",
				Name:             "Response",
				PayloadVersion:   "3",
				MessageID:        coalesce(req.MessageID, "unknown"),
				CorrelationToken: req.CorrelationToken,
			},
			Endpoint: endpointRef{EndpointID: endpointID},
		},
		Context: responseContext{Properties: []property{{
			Namespace:                 namespace,
			Name:                      propertyFor(namespace),
			Value:                     value,
			TimeOfSample:              time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			UncertaintyInMilliseconds: 0,
		}}},
	}
}
