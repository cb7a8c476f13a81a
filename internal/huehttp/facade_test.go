package huehttp

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

func newTestFacade(sink *fakeSink) (*Facade, *echo.Echo) {
	src := &fakeSource{records: []registry.Record{{ID: "d1", Name: "Lamp", Sink: sink}}}
	core := dispatch.New("hub1", nil, nil, nil)
	f := New("0017880ff9c9aabbccddeeff", "192.168.1.50", 80, src, core, nil)
	e := echo.New()
	f.RegisterRoutes(e)
	return f, e
}

func TestHandlePairReturnsCredentials(t *testing.T) {
	_, e := newTestFacade(&fakeSink{})

	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(`{"devicetype":"Echo"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []pairSuccess
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "node-red-alexa-0017880ff9c9aabbccddeeff", got[0].Success.Username)
}

func TestHandleListLightsReturnsDenseIndices(t *testing.T) {
	_, e := newTestFacade(&fakeSink{})

	req := httptest.NewRequest(http.MethodGet, "/api/user1/lights", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var lights map[string]Light
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lights))
	require.Contains(t, lights, "1")
	assert.False(t, lights["1"].State.On)
}

func TestHandleGetLightUnknownReturns404(t *testing.T) {
	_, e := newTestFacade(&fakeSink{})

	req := httptest.NewRequest(http.MethodGet, "/api/user1/lights/999", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var got []hueErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got[0].Error.Type)
}

func TestHandlePutStateOnWinsAndDispatches(t *testing.T) {
	sink := &fakeSink{}
	_, e := newTestFacade(sink)

	req := httptest.NewRequest(http.MethodPut, "/api/user1/lights/1/state", strings.NewReader(`{"on":true,"bri":128}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []stateSuccessItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, true, got[0].Success["/lights/1/state/on"])

	require.Len(t, sink.received, 1)
	assert.Equal(t, dispatch.TopicPower, sink.received[0].Topic)
	assert.Equal(t, "ON", sink.received[0].Payload)
}

func TestHandlePutStateInvalidBodyReturns400(t *testing.T) {
	_, e := newTestFacade(&fakeSink{})

	req := httptest.NewRequest(http.MethodPut, "/api/user1/lights/1/state", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var got []hueErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 6, got[0].Error.Type)
}

func TestHandlePutStateUnknownDeviceReturns404(t *testing.T) {
	_, e := newTestFacade(&fakeSink{})

	req := httptest.NewRequest(http.MethodPut, "/api/user1/lights/999/state", strings.NewReader(`{"on":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleBridgeConfigReturnsIPAddress(t *testing.T) {
	_, e := newTestFacade(&fakeSink{})

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var cfg BridgeConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "192.168.1.50", cfg.IPAddress)
}

func TestHandleFullStateIncludesUserInWhitelist(t *testing.T) {
	_, e := newTestFacade(&fakeSink{})

	req := httptest.NewRequest(http.MethodGet, "/api/myuser", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got fullState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, got.Config.Whitelist, "myuser")
}
