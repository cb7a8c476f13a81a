package alexa

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiredhome/huebridge/internal/dispatch"
	"github.com/wiredhome/huebridge/internal/registry"
)

type fakeSink struct {
	received []dispatch.SemanticEvent
}

func (f *fakeSink) Receive(event any) error {
	f.received = append(f.received, event.(dispatch.SemanticEvent))
	return nil
}

type fakeSource struct{ records []registry.Record }

func (f *fakeSource) IterateNodes(hubID string, visit func(registry.Record)) {
	for _, r := range f.records {
		visit(r)
	}
}

func newTestHandler(sink *fakeSink) *echo.Echo {
	src := &fakeSource{records: []registry.Record{{ID: "d1", Name: "Lamp", Sink: sink}}}
	core := dispatch.New("hub1", nil, nil, nil)
	h := New("hub1", src, core, nil, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func post(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/alexa", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleDiscoveryReturnsEndpointsWithCapabilities(t *testing.T) {
	e := newTestHandler(&fakeSink{})

	rec := post(e, `{"directive":{"header":{"namespace":"Alexa.Discovery","name":"Discover","messageId":"m1","payloadVersion":"3"},"payload":{}}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp discoverResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Event.Payload.Endpoints, 1)
	assert.Equal(t, "d1", resp.Event.Payload.Endpoints[0].EndpointID)
	assert.Equal(t, "Lamp", resp.Event.Payload.Endpoints[0].FriendlyName)
	assert.Len(t, resp.Event.Payload.Endpoints[0].Capabilities, 4)
}

func TestHandleMissingNamespaceReturnsInvalidDirective(t *testing.T) {
	e := newTestHandler(&fakeSink{})

	rec := post(e, `{"directive":{"header":{"name":"TurnOn"}}}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, errInvalidDirective, resp.Event.Payload.Type)
}

func TestHandleMissingEndpointIDReturnsInvalidDirective(t *testing.T) {
	e := newTestHandler(&fakeSink{})

	rec := post(e, `{"directive":{"header":{"namespace":"Alexa.PowerController","name":"TurnOn","messageId":"m1"},"payload":{}}}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, errInvalidDirective, resp.Event.Payload.Type)
	assert.Contains(t, resp.Event.Payload.Message, "endpointId")
}

func TestHandleUnknownEndpointReturnsEndpointUnreachable(t *testing.T) {
	e := newTestHandler(&fakeSink{})

	rec := post(e, `{"directive":{"header":{"namespace":"Alexa.PowerController","name":"TurnOn","messageId":"m1"},"endpoint":{"endpointId":"ghost"},"payload":{}}}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, errEndpointUnreachable, resp.Event.Payload.Type)
}

func TestHandlePowerControllerDispatchesAndReportsProperty(t *testing.T) {
	sink := &fakeSink{}
	e := newTestHandler(sink)

	rec := post(e, `{"directive":{"header":{"namespace":"Alexa.PowerController","name":"TurnOn","messageId":"m1","correlationToken":"c1"},"endpoint":{"endpointId":"d1"},"payload":{}}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp controlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Alexa", resp.Event.Header.Namespace)
	assert.Equal(t, "Response", resp.Event.Header.Name)
	assert.Equal(t, "c1", resp.Event.Header.CorrelationToken)
	require.Len(t, resp.Context.Properties, 1)
	assert.Equal(t, "Alexa.PowerController", resp.Context.Properties[0].Namespace)
	assert.Equal(t, "powerState", resp.Context.Properties[0].Name)
	assert.Equal(t, "ON", resp.Context.Properties[0].Value)
	assert.NotEmpty(t, resp.Context.Properties[0].TimeOfSample)

	require.Len(t, sink.received, 1)
	assert.Equal(t, dispatch.TopicPower, sink.received[0].Topic)
}

func TestHandleBrightnessControllerReportsNumericProperty(t *testing.T) {
	sink := &fakeSink{}
	e := newTestHandler(sink)

	rec := post(e, `{"directive":{"header":{"namespace":"Alexa.BrightnessController","name":"SetBrightness","messageId":"m1"},"endpoint":{"endpointId":"d1"},"payload":{"brightness":42}}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp controlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "brightness", resp.Context.Properties[0].Name)
	assert.Equal(t, float64(42), resp.Context.Properties[0].Value)
}

func TestHandleUnsupportedDirectiveReturnsInvalidDirective(t *testing.T) {
	e := newTestHandler(&fakeSink{})

	rec := post(e, `{"directive":{"header":{"namespace":"Alexa.LockController","name":"Lock","messageId":"m1"},"endpoint":{"endpointId":"d1"},"payload":{}}}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, errInvalidDirective, resp.Event.Payload.Type)
	assert.Contains(t, resp.Event.Payload.Message, "Alexa.LockController.Lock")
}

func TestHandleMalformedBodyReturnsInvalidDirective(t *testing.T) {
	e := newTestHandler(&fakeSink{})

	rec := post(e, `not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
