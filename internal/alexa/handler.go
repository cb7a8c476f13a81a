package alexa

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wiredhome/huebridge/internal/dispatch"
	"github.com/wiredhome/huebridge/internal/metrics"
	"github.com/wiredhome/huebridge/internal/registry"
)

// Handler serves POST /alexa for one hub.
type Handler struct {
	hubID   string
	source  registry.Source
	core    *dispatch.Core
	log     *slog.Logger
	metrics *metrics.Recorder
}

// New builds a Handler. source is resolved fresh per request, same as
// internal/huehttp. rec may be nil, in which case directive outcomes are
// simply not recorded.
func New(hubID string, source registry.Source, core *dispatch.Core, log *slog.Logger, rec *metrics.Recorder) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{hubID: hubID, source: source, core: core, log: log.With("component", "alexa"), metrics: rec}
}

func (h *Handler) recordDirective(directive, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordAlexaDirective(directive, outcome)
	}
}

// RegisterRoutes wires POST /alexa.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/alexa", h.handle)
}

func (h *Handler) handle(c echo.Context) (err error) {
	// The handler must never propagate an exception to the HTTP framework
	// (spec §4.E, §7): recover and answer with INTERNAL_ERROR instead.
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("alexa handler panicked", "panic", r)
			h.recordDirective("unknown", "internal_error")
			err = c.JSON(http.StatusInternalServerError, newErrorResponse(header{}, errInternal, fmt.Sprintf("panic: %v", r)))
		}
	}()

	var env requestEnvelope
	if decErr := json.NewDecoder(c.Request().Body).Decode(&env); decErr != nil || env.Directive == nil || env.Directive.Header.Namespace == "" {
		h.recordDirective("unknown", "invalid_directive")
		return c.JSON(http.StatusBadRequest, newErrorResponse(header{}, errInvalidDirective, "missing or malformed directive"))
	}

	d := env.Directive
	req := d.Header
	directive := req.Namespace + "." + req.Name

	if req.Namespace == "Alexa.Discovery" && req.Name == "Discover" {
		view := registry.List(h.source, h.hubID)
		h.recordDirective(directive, "discovered")
		return c.JSON(http.StatusOK, newDiscoverResponse(req, view))
	}

	if d.Endpoint == nil || d.Endpoint.EndpointID == "" {
		h.recordDirective(directive, "invalid_directive")
		return c.JSON(http.StatusBadRequest, newErrorResponse(req, errInvalidDirective, "Missing endpointId"))
	}

	view := registry.List(h.source, h.hubID)
	device, ok := view.Resolve(d.Endpoint.EndpointID)
	if !ok {
		h.recordDirective(directive, "endpoint_unreachable")
		return c.JSON(http.StatusNotFound, newErrorResponse(req, errEndpointUnreachable, "no such endpoint"))
	}

	event, ok := dispatch.FromAlexaDirective(dispatch.Directive{
		Namespace: req.Namespace,
		Name:      req.Name,
		Payload:   d.Payload,
	})
	if !ok {
		h.recordDirective(directive, "invalid_directive")
		return c.JSON(http.StatusBadRequest, newErrorResponse(req, errInvalidDirective,
			fmt.Sprintf("Unsupported directive: %s.%s", req.Namespace, req.Name)))
	}

	h.core.Dispatch(view, device.ID, event)
	h.recordDirective(directive, "dispatched")

	return c.JSON(http.StatusOK, newControlResponse(req, device.ID, req.Namespace, event.Payload))
}
