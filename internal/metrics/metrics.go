// Package metrics exposes the bridge's Prometheus counters on /metrics,
// grounded in the teacher's internal/observability Recorder shape
// (RecordOperation/RecordDuration/RecordError) but backed by real
// prometheus.CounterVec/Counter instead of the teacher's in-memory
// test double.
package metrics

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects the counters a single hub emits while serving SSDP,
// Hue REST, and Alexa traffic (spec §4.B/§4.D/§4.E).
type Recorder struct {
	registry *prometheus.Registry

	ssdpReplies     *prometheus.CounterVec
	hueRequests     *prometheus.CounterVec
	alexaDirectives *prometheus.CounterVec
	dispatches      *prometheus.CounterVec
	rateLimitReject prometheus.Counter
}

// New builds a Recorder with its own registry, so concurrent tests (and
// concurrent hubs in one process) never collide on the default global
// registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		ssdpReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huebridge_ssdp_replies_total",
			Help: "M-SEARCH unicast replies sent, by search target.",
		}, []string{"st"}),
		hueRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huebridge_hue_requests_total",
			Help: "Hue REST API requests handled, by route and status.",
		}, []string{"route", "status"}),
		alexaDirectives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huebridge_alexa_directives_total",
			Help: "Alexa Smart Home directives handled, by namespace.name and outcome.",
		}, []string{"directive", "outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "huebridge_dispatches_total",
			Help: "Semantic events handed to device sinks, by topic and result.",
		}, []string{"topic", "result"}),
		rateLimitReject: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "huebridge_ratelimit_rejections_total",
			Help: "Requests rejected by the fixed-window rate limiter.",
		}),
	}

	reg.MustRegister(r.ssdpReplies, r.hueRequests, r.alexaDirectives, r.dispatches, r.rateLimitReject)
	return r
}

// RecordSSDPReply counts one unicast M-SEARCH reply for search target st.
func (r *Recorder) RecordSSDPReply(st string) {
	r.ssdpReplies.WithLabelValues(st).Inc()
}

// RecordHueRequest counts one Hue REST request.
func (r *Recorder) RecordHueRequest(route, status string) {
	r.hueRequests.WithLabelValues(route, status).Inc()
}

// RecordAlexaDirective counts one Alexa directive by "Namespace.Name".
func (r *Recorder) RecordAlexaDirective(directive, outcome string) {
	r.alexaDirectives.WithLabelValues(directive, outcome).Inc()
}

// RecordDispatch counts one dispatch.Core.Dispatch outcome.
func (r *Recorder) RecordDispatch(topic, result string) {
	r.dispatches.WithLabelValues(topic, result).Inc()
}

// RecordRateLimitRejection counts one request turned away by the fixed
// window limiter (spec §5).
func (r *Recorder) RecordRateLimitRejection() {
	r.rateLimitReject.Inc()
}

// RegisterRoutes mounts GET /metrics on e.
func (r *Recorder) RegisterRoutes(e *echo.Echo) {
	handler := promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
	e.GET("/metrics", echo.WrapHandler(handler))
}

// HTTPMiddleware counts every /api request Echo serves so hue_requests_total
// reflects real traffic without every handler calling RecordHueRequest
// itself. Other routes are not counted here: /alexa is counted by
// RecordAlexaDirective, while /metrics, /healthz and /description.xml are
// not counted at all.
func (r *Recorder) HTTPMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if strings.HasPrefix(c.Path(), "/api") {
				r.RecordHueRequest(c.Path(), statusClass(c.Response().Status))
			}
			return err
		}
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
