// Package hub assembles one bridge instance: the device registry source,
// dispatch core, event bus, SSDP responder, UPnP descriptor, Hue REST
// facade, and Alexa directive handler all served from a single *echo.Echo
// and a single UDP socket. Grounded in the teacher's internal/api.Server
// lifecycle (New/Start/StartWithGracefulShutdown/Shutdown), generalized
// from one HTTP-only server to a hub that also owns an SSDP goroutine.
package hub

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/wiredhome/huebridge/internal/alexa"
	"github.com/wiredhome/huebridge/internal/conf"
	"github.com/wiredhome/huebridge/internal/dispatch"
	"github.com/wiredhome/huebridge/internal/events"
	"github.com/wiredhome/huebridge/internal/huehttp"
	"github.com/wiredhome/huebridge/internal/metrics"
	huemw "github.com/wiredhome/huebridge/internal/middleware"
	"github.com/wiredhome/huebridge/internal/mqttsink"
	"github.com/wiredhome/huebridge/internal/registry"
	"github.com/wiredhome/huebridge/internal/ssdp"
	"github.com/wiredhome/huebridge/internal/upnp"
)

// State is one of the Hub's four lifecycle states (spec §4.G).
type State string

const (
	StateInitializing State = "initializing"
	StateListening    State = "listening"
	StateClosing      State = "closing"
	StateClosed       State = "closed"
)

// Hub owns every long-lived resource for one emulated bridge: the HTTP
// listener, the SSDP UDP socket, and the event bus that fans dispatch and
// status events out to consumers (spec §4.G, §6).
type Hub struct {
	settings *conf.Settings
	hubID    string
	localIP  string
	log      *slog.Logger

	echo     *echo.Echo
	bus      *events.Bus
	core     *dispatch.Core
	ssdp     *ssdp.Responder
	metrics  *metrics.Recorder
	mqtt     *mqttsink.Sink

	tlsEnabled  bool // serving HTTPS with a validated cert/key pair
	tlsFallback bool // HTTPS was requested but the cert/key pair didn't load

	mu        sync.RWMutex
	state     State
	startTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Hub for settings over source, the host-provided device
// directory (spec §6's iterateNodes callback). localIP is the address
// advertised in SSDP LOCATION headers and the Hue bridgeconfig response.
func New(settings *conf.Settings, source registry.Source, localIP string, log *slog.Logger) (*Hub, error) {
	if log == nil {
		log = slog.Default()
	}

	hubID := settings.Hub.ID
	if hubID == "" {
		derived, err := conf.DeriveHubID()
		if err != nil {
			log.Warn("no usable network interface for hub id derivation, falling back to a random identity", "error", err)
			derived = fallbackHubID()
		}
		hubID = derived
	}

	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		settings:  settings,
		hubID:     hubID,
		localIP:   localIP,
		log:       log.With("component", "hub", "hub_id", hubID),
		state:     StateInitializing,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	h.bus = events.New(events.DefaultConfig(), h.log)
	h.metrics = metrics.New()
	h.core = dispatch.New(hubID, h.bus, h.log, h.metrics)

	httpsRequested := settings.Hub.Port == 443 || (settings.Hub.CertFile != "" && settings.Hub.KeyFile != "")
	if httpsRequested {
		if _, err := tls.LoadX509KeyPair(settings.Hub.CertFile, settings.Hub.KeyFile); err != nil {
			h.log.Warn("https requested but cert/key pair could not be loaded, falling back to http", "error", err)
			h.tlsFallback = true
		} else {
			h.tlsEnabled = true
		}
	}

	h.mqtt = mqttsink.New(*settings, hubID, h.log)
	if h.mqtt.Enabled() {
		h.bus.Subscribe(h.mqtt)
	}

	identity := ssdp.Identity{
		BridgeUUID: ssdp.BridgeUUID(hubID),
		HubID:      hubID,
		LocalIP:    localIP,
		Port:       settings.Hub.Port,
		Scheme:     h.scheme(),
	}
	h.ssdp = ssdp.New(identity, settings.Hub.AdInterval, h.log, h.metrics)

	h.echo = echo.New()
	h.echo.HideBanner = true
	h.echo.HidePort = true
	h.setupMiddleware()
	h.setupRoutes(source, identity)

	return h, nil
}

func (h *Hub) setupMiddleware() {
	h.echo.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: h.settings.Security.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
	}))
	h.echo.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000,
		ReferrerPolicy:     "no-referrer",
	}))
	h.echo.Use(echomw.GzipWithConfig(echomw.GzipConfig{Level: 5}))
	h.echo.Use(echomw.BodyLimit(h.settings.Security.BodyLimit))
	h.echo.Use(huemw.NewRequestLogger(h.log))
	h.echo.Use(h.metrics.HTTPMiddleware())

	store := huemw.NewFixedWindowStore(h.settings.Security.RateLimit.Requests, h.settings.Security.RateLimit.Window)
	h.echo.Use(rateLimiterWithRejectionMetric(store, h.metrics))
}

func (h *Hub) setupRoutes(source registry.Source, identity ssdp.Identity) {
	facade := huehttp.New(h.hubID, h.localIP, h.settings.Hub.Port, source, h.core, h.log)
	facade.RegisterRoutes(h.echo)

	alexaHandler := alexa.New(h.hubID, source, h.core, h.log, h.metrics)
	alexaHandler.RegisterRoutes(h.echo)

	upnp.RegisterRoutes(h.echo, func() upnp.Bridge {
		return upnp.Bridge{
			HubID:      h.hubID,
			BridgeUUID: identity.BridgeUUID,
			LocalIP:    h.localIP,
			Port:       h.settings.Hub.Port,
			Scheme:     h.scheme(),
		}
	})

	h.metrics.RegisterRoutes(h.echo)
	h.echo.GET("/healthz", h.healthCheck)
}

func (h *Hub) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":     "healthy",
		"state":      string(h.State()),
		"hub_id":     h.hubID,
		"uptime":     time.Since(h.startTime).String(),
		"started_at": h.startTime.UTC().Format(time.RFC3339),
	})
}

// State reports the Hub's current lifecycle state.
func (h *Hub) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *Hub) setState(s State, message string) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()

	color := events.StatusGreen
	switch {
	case s == StateListening && h.tlsFallback:
		color = events.StatusYellow
	case s == StateClosing:
		color = events.StatusYellow
	case s == StateClosed:
		color = events.StatusRed
	}
	h.bus.Publish(events.StatusEvent{At: time.Now(), HubID: h.hubID, Color: color, Message: message})
}

// bindResult reports one listener goroutine's terminal error, tagged with
// which listener produced it.
type bindResult struct {
	source string
	err    error
}

// fatal reports whether r represents a genuine bind/serve failure rather
// than an expected shutdown-time return (context cancellation, a closed
// listener, or echo's own ErrServerClosed).
func (r bindResult) fatal() error {
	switch r.source {
	case "ssdp":
		if r.err != nil && !errors.Is(r.err, context.Canceled) && !errors.Is(r.err, net.ErrClosed) {
			return r.err
		}
	case "http":
		if r.err != nil && !errors.Is(r.err, http.ErrServerClosed) {
			return r.err
		}
	}
	return nil
}

// Start brings the Hub to state "listening": it binds the SSDP socket and
// the HTTP listener in the background and waits up to 200ms for either to
// report a bind failure. A bind failure on either listener is fatal to the
// Hub (spec §4.G/§7): Start returns the error and the Hub moves to "closed"
// with a red status. If nothing fails within the window, both listeners are
// assumed bound and now blocked serving.
func (h *Hub) Start() error {
	if h.mqtt.Enabled() {
		if err := h.mqtt.Connect(h.ctx); err != nil {
			h.log.Warn("mqtt sink unavailable at startup, will retry", "error", err)
		}
	}

	results := make(chan bindResult, 2)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		results <- bindResult{source: "ssdp", err: h.ssdp.Run(h.ctx)}
	}()

	addr := fmt.Sprintf(":%d", h.settings.Hub.Port)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		var err error
		if h.tlsEnabled {
			err = h.echo.StartTLS(addr, h.settings.Hub.CertFile, h.settings.Hub.KeyFile)
		} else {
			err = h.echo.Start(addr)
		}
		results <- bindResult{source: "http", err: err}
	}()

	timeout := time.After(200 * time.Millisecond)
	pending := 2
waitForBind:
	for pending > 0 {
		select {
		case r := <-results:
			if err := r.fatal(); err != nil {
				wrapped := fmt.Errorf("start %s listener: %w", r.source, err)
				// The other listener may have bound successfully; tear it
				// down too so no socket outlives this failed Start (spec
				// §4.G: exactly one TCP listener and one SSDP socket while
				// running, both released once the Hub isn't).
				h.cancel()
				_ = h.echo.Close()
				h.wg.Wait()
				h.setState(StateClosed, "error: "+wrapped.Error())
				return wrapped
			}
			pending--
		case <-timeout:
			break waitForBind
		}
	}

	if h.tlsFallback {
		h.setState(StateListening, "HTTP fallback")
	} else {
		h.setState(StateListening, fmt.Sprintf("listening on %d", h.settings.Hub.Port))
	}
	h.log.Info("hub listening", "port", h.settings.Hub.Port, "hub_id", h.hubID, "scheme", h.scheme())
	return nil
}

// RunWithGracefulShutdown starts the Hub and blocks until SIGINT/SIGTERM,
// then shuts down within the configured grace period. Grounded in the
// teacher's StartWithGracefulShutdown/Shutdown pair.
func (h *Hub) RunWithGracefulShutdown() error {
	if err := h.Start(); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	h.log.Info("shutdown signal received")
	return h.Shutdown()
}

// Shutdown moves the Hub through closing -> closed, bounded by
// Settings.Hub.ShutdownGrace.
func (h *Hub) Shutdown() error {
	h.setState(StateClosing, "hub is closing")

	grace := h.settings.Hub.ShutdownGrace
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	var firstErr error
	if err := h.echo.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("shutdown http server: %w", err)
		// Grace period elapsed with handlers still running: force-close.
		_ = h.echo.Close()
	}

	h.cancel()
	h.wg.Wait()

	h.mqtt.Close()
	h.bus.Shutdown(grace)

	h.setState(StateClosed, "hub is closed")
	h.log.Info("hub shutdown complete")
	return firstErr
}

// Echo exposes the underlying router, primarily for tests that want to
// drive requests through httptest without a real listener.
func (h *Hub) Echo() *echo.Echo { return h.echo }

// HubID returns the identity this Hub was constructed or derived with.
func (h *Hub) HubID() string { return h.hubID }

func rateLimiterWithRejectionMetric(store echomw.RateLimiterStore, rec *metrics.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.RealIP()
			allowed, err := store.Allow(id)
			if err != nil {
				return next(c)
			}
			if !allowed {
				rec.RecordRateLimitRejection()
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}

// scheme reports the scheme this Hub actually serves: https only once a
// cert/key pair has been validated, http otherwise (including the fallback
// case where https was requested but the pair didn't load).
func (h *Hub) scheme() string {
	if h.tlsEnabled {
		return "https"
	}
	return "http"
}

// fallbackHubID derives a 32-hex-character identity from a random UUID when
// no network interface is available to derive one from (e.g. a container
// with no hardware MAC), keeping the same shape conf.DeriveHubID produces.
func fallbackHubID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// LocalIPv4 picks the first non-loopback IPv4 address bound to the host,
// used by cmd/serve as the address the hub advertises.
func LocalIPv4() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("list interface addresses: %w", err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", errors.New("no non-loopback IPv4 address found")
}
