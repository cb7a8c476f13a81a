// Package huehttp implements the subset of the Hue v1 REST API an Echo
// exercises during discovery and control (spec §4.D).
package huehttp

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/wiredhome/huebridge/internal/dispatch"
	"github.com/wiredhome/huebridge/internal/registry"
	"github.com/wiredhome/huebridge/internal/ssdp"
)

// Facade serves the Hue REST surface for one hub.
type Facade struct {
	hubID   string
	localIP string
	port    int
	source  registry.Source
	core    *dispatch.Core
	log     *slog.Logger
}

// New builds a Facade. source is consulted fresh on every request (spec
// §9: "Registry as a view, not a store").
func New(hubID, localIP string, port int, source registry.Source, core *dispatch.Core, log *slog.Logger) *Facade {
	if log == nil {
		log = slog.Default()
	}
	return &Facade{hubID: hubID, localIP: localIP, port: port, source: source, core: core, log: log.With("component", "huehttp")}
}

// RegisterRoutes wires every Hue route under the given echo instance.
func (f *Facade) RegisterRoutes(e *echo.Echo) {
	e.POST("/api", f.handlePair)
	e.GET("/api/config", f.handleBridgeConfig)
	e.GET("/api/:user", f.handleFullState)
	e.GET("/api/:user/lights", f.handleListLights)
	e.GET("/api/:user/lights/:id", f.handleGetLight)
	e.PUT("/api/:user/lights/:id/state", f.handlePutState)
}

func (f *Facade) view() *registry.View {
	return registry.List(f.source, f.hubID)
}

// --- /api (pairing) ---

type pairRequest struct {
	DeviceType string `json:"devicetype"`
}

type pairSuccess struct {
	Success pairCredentials `json:"success"`
}

type pairCredentials struct {
	Username  string `json:"username"`
	ClientKey string `json:"clientkey"`
}

func (f *Facade) handlePair(c echo.Context) error {
	var req pairRequest
	_ = c.Bind(&req) // devicetype is accepted but ignored (spec §4.D)

	cred := fmt.Sprintf("node-red-alexa-%s", f.hubID)
	return c.JSON(http.StatusOK, []pairSuccess{{
		Success: pairCredentials{Username: cred, ClientKey: cred},
	}})
}

// --- /api/config ---

// BridgeConfig mirrors the fields of a real Hue bridge config object that
// Echo actually inspects.
type BridgeConfig struct {
	Name             string `json:"name"`
	DataStoreVersion string `json:"datastoreversion"`
	SWVersion        string `json:"swversion"`
	APIVersion       string `json:"apiversion"`
	Mac              string `json:"mac"`
	BridgeID         string `json:"bridgeid"`
	FactoryNew       bool   `json:"factorynew"`
	ModelID          string `json:"modelid"`
	IPAddress        string `json:"ipaddress"`
}

func (f *Facade) bridgeConfig() BridgeConfig {
	return BridgeConfig{
		Name:             "Philips hue",
		DataStoreVersion: "80",
		SWVersion:        hueSWVersion,
		APIVersion:       "1.29.0",
		Mac:              macFromHubID(f.hubID),
		BridgeID:         strings.ToUpper(f.hubID),
		FactoryNew:       false,
		ModelID:          "BSB002",
		IPAddress:        f.localIP,
	}
}

func macFromHubID(hubID string) string {
	padded := hubID + "000000000000"
	groups := make([]string, 6)
	for i := 0; i < 6; i++ {
		groups[i] = padded[i*2 : i*2+2]
	}
	return strings.Join(groups, ":")
}

func (f *Facade) handleBridgeConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, f.bridgeConfig())
}

// --- /api/:user (full dataset) ---

type fullState struct {
	Lights        map[string]Light `json:"lights"`
	Groups        map[string]any   `json:"groups"`
	Config        fullStateConfig  `json:"config"`
	Schedules     map[string]any   `json:"schedules"`
	Scenes        map[string]any   `json:"scenes"`
	Rules         map[string]any   `json:"rules"`
	Sensors       map[string]any   `json:"sensors"`
	ResourceLinks map[string]any   `json:"resourcelinks"`
}

type fullStateConfig struct {
	BridgeConfig
	Whitelist map[string]whitelistEntry `json:"whitelist"`
}

type whitelistEntry struct {
	Name string `json:"name"`
}

func (f *Facade) handleFullState(c echo.Context) error {
	user := c.Param("user")
	v := f.view()

	lights := make(map[string]Light, len(v.Devices()))
	for _, d := range v.Devices() {
		lights[strconv.Itoa(d.Index)] = lightFromDevice(d)
	}

	return c.JSON(http.StatusOK, fullState{
		Lights: lights,
		Groups: map[string]any{},
		Config: fullStateConfig{
			BridgeConfig: f.bridgeConfig(),
			Whitelist:    map[string]whitelistEntry{user: {Name: "huebridge"}},
		},
		Schedules:     map[string]any{},
		Scenes:        map[string]any{},
		Rules:         map[string]any{},
		Sensors:       map[string]any{},
		ResourceLinks: map[string]any{},
	})
}

// --- /api/:user/lights ---

func (f *Facade) handleListLights(c echo.Context) error {
	v := f.view()
	lights := make(map[string]Light, len(v.Devices()))
	for _, d := range v.Devices() {
		lights[strconv.Itoa(d.Index)] = lightFromDevice(d)
	}
	return c.JSON(http.StatusOK, lights)
}

// --- /api/:user/lights/:id ---

type hueError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

type hueErrorEnvelope struct {
	Error hueError `json:"error"`
}

func notFoundError(address string) []hueErrorEnvelope {
	return []hueErrorEnvelope{{Error: hueError{Type: 1, Address: address, Description: "resource, " + address + ", not available"}}}
}

func invalidParamsError(address string) []hueErrorEnvelope {
	return []hueErrorEnvelope{{Error: hueError{Type: 6, Address: address, Description: "invalid value or body for parameter"}}}
}

func (f *Facade) handleGetLight(c echo.Context) error {
	id := c.Param("id")
	v := f.view()
	d, ok := v.Resolve(id)
	if !ok {
		return c.JSON(http.StatusNotFound, notFoundError("/lights/"+id))
	}
	return c.JSON(http.StatusOK, lightFromDevice(d))
}

// --- PUT /api/:user/lights/:id/state ---

type stateSuccessItem struct {
	Success map[string]any `json:"success"`
}

func (f *Facade) handlePutState(c echo.Context) error {
	id := c.Param("id")
	address := "/lights/" + id + "/state"

	body, err := readBody(c)
	if err != nil || len(body) == 0 {
		return c.JSON(http.StatusBadRequest, invalidParamsError(address))
	}

	state, order, err := parseOrderedState(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, invalidParamsError(address))
	}

	event, mutated, ok := dispatch.FromHueState(state, order)
	if !ok {
		return c.JSON(http.StatusBadRequest, invalidParamsError(address))
	}

	v := f.view()
	d, ok := v.Resolve(id)
	if !ok {
		return c.JSON(http.StatusNotFound, notFoundError("/lights/"+id))
	}

	f.core.Dispatch(v, d.ID, event)

	ordered := orderMutatedKeys(order, mutated)
	items := make([]stateSuccessItem, 0, len(ordered))
	for _, m := range ordered {
		items = append(items, stateSuccessItem{
			Success: map[string]any{fmt.Sprintf("%s/%s", address, m.Key): m.Value},
		})
	}
	return c.JSON(http.StatusOK, items)
}

func readBody(c echo.Context) ([]byte, error) {
	req := c.Request()
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

// BridgeIdentity returns an ssdp.Identity built from this facade's hub id,
// address and port, with Scheme left empty. internal/hub builds its own
// Identity and does not call this.
func (f *Facade) BridgeIdentity() ssdp.Identity {
	return ssdp.Identity{
		BridgeUUID: ssdp.BridgeUUID(f.hubID),
		HubID:      f.hubID,
		LocalIP:    f.localIP,
		Port:       f.port,
	}
}
