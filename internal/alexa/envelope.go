// Package alexa implements the Smart Home v3 directive endpoint Echo posts
// control and discovery requests to (spec §4.E).
package alexa

// requestEnvelope is the top-level body of every POST /alexa request.
type requestEnvelope struct {
	Directive *directiveBody `json:"directive"`
}

type directiveBody struct {
	Header   header         `json:"header"`
	Endpoint *endpointRef   `json:"endpoint,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
}

type header struct {
	Namespace        string `json:"namespace"`
	Name             string `json:"name"`
	MessageID        string `json:"messageId"`
	CorrelationToken string `json:"correlationToken,omitempty"`
	PayloadVersion   string `json:"payloadVersion,omitempty"`
}

type endpointRef struct {
	EndpointID string `json:"endpointId"`
}

// --- responses ---

type errorResponse struct {
	Event errorEvent `json:"event"`
}

type errorEvent struct {
	Header  header           `json:"header"`
	Payload errorEventPayload `json:"payload"`
}

type errorEventPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorResponse(req header, errType, message string) errorResponse {
	return errorResponse{Event: errorEvent{
		Header: header{
			Namespace:        "Alexa",
			Name:             "ErrorResponse",
			MessageID:        coalesce(req.MessageID, "unknown"),
			CorrelationToken: req.CorrelationToken,
			PayloadVersion:   "3",
		},
		Payload: errorEventPayload{Type: errType, Message: message},
	}}
}

func coalesce(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

const (
	errInvalidDirective     = "INVALID_DIRECTIVE"
	errEndpointUnreachable  = "ENDPOINT_UNREACHABLE"
	errInternal             = "INTERNAL_ERROR"
)
