// Package ssdp implements the UDP/1900 multicast discovery responder that
// lets an Echo find the bridge (spec §4.B): periodic NOTIFY advertisements
// plus unicast replies to M-SEARCH requests.
package ssdp

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/wiredhome/huebridge/internal/metrics"
)

const (
	multicastAddr = "239.255.255.250:1900"
	ssdpPort      = 1900
)

// usnLines are the four advertisement lines sent on every NOTIFY and
// matched against incoming M-SEARCH ST headers (spec §4.B).
var usnLines = []string{
	"upnp:rootdevice",
	"urn:schemas-upnp-org:device:basic:1",
	"urn:schemas-upnp-org:device:PhilipsHueBridge:1",
	"uuid:", // placeholder, filled with bridgeUUID at send time
}

// searchTargets additionally match as ST even though they aren't their own
// NOTIFY line: ssdp:all is answered for the rootdevice, basic and
// PhilipsHueBridge lines, the legacy Hue URN for the PhilipsHueBridge line.
const (
	stAll        = "ssdp:all"
	legacyHueURN = "urn:philips-hue:device:bridge:1"
)

// Identity carries the values needed to build every SSDP header.
type Identity struct {
	BridgeUUID string
	HubID      string // used uppercased as hue-bridgeid/BRIDGEID
	LocalIP    string
	Port       int
	Scheme     string // "http" or "https"; LOCATION and the descriptor's URLBase agree (spec §6)
}

func (id Identity) location() string {
	scheme := id.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d/description.xml", scheme, id.LocalIP, id.Port)
}

func (id Identity) bridgeIDUpper() string {
	return strings.ToUpper(id.HubID)
}

// Responder owns the UDP multicast socket for one hub.
type Responder struct {
	identity   Identity
	adInterval time.Duration
	log        *slog.Logger
	metrics    *metrics.Recorder

	mu      sync.Mutex
	conn    *net.UDPConn
	pktConn *ipv4.PacketConn
}

// New builds a Responder. Call Run to bind the socket and start serving.
// rec may be nil, in which case reply counters are simply not recorded.
func New(identity Identity, adInterval time.Duration, log *slog.Logger, rec *metrics.Recorder) *Responder {
	if log == nil {
		log = slog.Default()
	}
	if adInterval <= 0 {
		adInterval = 30 * time.Second
	}
	return &Responder{identity: identity, adInterval: adInterval, log: log.With("component", "ssdp"), metrics: rec}
}

// Run binds the multicast socket, joins the SSDP group, and serves until
// ctx is cancelled. It sends one NOTIFY alive burst immediately, then every
// adInterval, and replies to M-SEARCH datagrams as they arrive. On return
// it sends NOTIFY ssdp:byebye for each line (spec §4.G: "send optional
// NOTIFY ssdp:byebyes" on listening->closing).
func (r *Responder) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("0.0.0.0:%d", ssdpPort))
	if err != nil {
		return fmt.Errorf("resolve ssdp bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("bind ssdp udp socket: %w", err)
	}

	pktConn := ipv4.NewPacketConn(conn)
	group := &net.UDPAddr{IP: net.IPv4(239, 255, 255, 250)}
	if ifaces, ierr := multicastInterfaces(); ierr == nil {
		for _, iface := range ifaces {
			_ = pktConn.JoinGroup(iface, group)
		}
	} else {
		_ = pktConn.JoinGroup(nil, group)
	}

	r.mu.Lock()
	r.conn = conn
	r.pktConn = pktConn
	r.mu.Unlock()

	defer func() {
		r.sendByebye()
		_ = pktConn.LeaveGroup(group, nil)
		_ = conn.Close()
	}()

	r.log.Info("ssdp responder listening", "port", ssdpPort, "adInterval", r.adInterval)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.advertiseLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		r.searchLoop(ctx, conn)
	}()
	wg.Wait()
	return nil
}

func multicastInterfaces() ([]*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []*net.Interface
	for i := range ifaces {
		iface := ifaces[i]
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		out = append(out, &iface)
	}
	return out, nil
}

func (r *Responder) advertiseLoop(ctx context.Context) {
	r.sendAlive()
	ticker := time.NewTicker(r.adInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sendAlive()
		}
	}
}

func (r *Responder) sendAlive() {
	dst, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		r.log.Warn("resolve multicast address failed", "error", err)
		return
	}
	for _, line := range usnLines {
		nt := line
		usn := fmt.Sprintf("uuid:%s::%s", r.identity.BridgeUUID, line)
		if line == "uuid:" {
			nt = "uuid:" + r.identity.BridgeUUID
			usn = "uuid:" + r.identity.BridgeUUID
		}
		msg := r.buildNotify(nt, usn, "ssdp:alive")
		r.writeTo(dst, msg)
	}
}

func (r *Responder) sendByebye() {
	dst, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return
	}
	for _, line := range usnLines {
		nt := line
		usn := fmt.Sprintf("uuid:%s::%s", r.identity.BridgeUUID, line)
		if line == "uuid:" {
			nt = "uuid:" + r.identity.BridgeUUID
			usn = "uuid:" + r.identity.BridgeUUID
		}
		msg := r.buildNotify(nt, usn, "ssdp:byebye")
		r.writeTo(dst, msg)
	}
}

func (r *Responder) buildNotify(nt, usn, nts string) []byte {
	var b strings.Builder
	b.WriteString("NOTIFY * HTTP/1.1\r\n")
	fmt.Fprintf(&b, "HOST: %s\r\n", multicastAddr)
	fmt.Fprintf(&b, "LOCATION: %s\r\n", r.identity.location())
	b.WriteString("SERVER: Linux/3.14.0 UPnP/1.0 PhilipsHue/1.0\r\n")
	fmt.Fprintf(&b, "hue-bridgeid: %s\r\n", r.identity.bridgeIDUpper())
	fmt.Fprintf(&b, "BRIDGEID: %s\r\n", r.identity.bridgeIDUpper())
	fmt.Fprintf(&b, "NTS: %s\r\n", nts)
	fmt.Fprintf(&b, "NT: %s\r\n", nt)
	fmt.Fprintf(&b, "USN: %s\r\n", usn)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func (r *Responder) writeTo(dst *net.UDPAddr, msg []byte) {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return
	}
	if _, err := conn.WriteToUDP(msg, dst); err != nil {
		r.log.Debug("ssdp write failed", "error", err)
	}
}

func (r *Responder) searchLoop(ctx context.Context, conn *net.UDPConn) {
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
				r.log.Debug("ssdp read failed", "error", err)
				continue
			}
		}
		datagram := append([]byte(nil), buf[:n]...)
		go r.handleDatagram(ctx, datagram, addr)
	}
}

func (r *Responder) handleDatagram(ctx context.Context, datagram []byte, addr *net.UDPAddr) {
	st, mx, ok := parseSearch(datagram)
	if !ok {
		return
	}

	lines := matchingLines(st)
	if len(lines) == 0 {
		return
	}

	if mx <= 0 {
		mx = 1
	}
	if mx > 3 {
		mx = 3
	}
	delay := time.Duration(rand.Float64() * float64(mx) * float64(time.Second))

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return
	}

	for _, line := range lines {
		usn := fmt.Sprintf("uuid:%s::%s", r.identity.BridgeUUID, line)
		if line == "uuid:"+r.identity.BridgeUUID {
			usn = line
		}
		resp := r.buildSearchResponse(st, usn)
		if _, err := conn.WriteToUDP(resp, addr); err != nil {
			r.log.Debug("ssdp reply failed", "error", err, "to", addr)
			continue
		}
		if r.metrics != nil {
			r.metrics.RecordSSDPReply(st)
		}
	}
}

func (r *Responder) buildSearchResponse(st, usn string) []byte {
	var b strings.Builder
	b.WriteString("HTTP/1.1 200 OK\r\n")
	b.WriteString("CACHE-CONTROL: max-age=100\r\n")
	fmt.Fprintf(&b, "ST: %s\r\n", st)
	fmt.Fprintf(&b, "USN: %s\r\n", usn)
	fmt.Fprintf(&b, "LOCATION: %s\r\n", r.identity.location())
	b.WriteString("SERVER: Linux/3.14.0 UPnP/1.0 PhilipsHue/1.0\r\n")
	fmt.Fprintf(&b, "hue-bridgeid: %s\r\n", r.identity.bridgeIDUpper())
	fmt.Fprintf(&b, "BRIDGEID: %s\r\n", r.identity.bridgeIDUpper())
	b.WriteString("EXT:\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// matchingLines returns which NOTIFY-style lines an M-SEARCH ST value
// should receive a reply for, per spec §4.B.
func matchingLines(st string) []string {
	switch st {
	case stAll:
		return []string{"upnp:rootdevice", "urn:schemas-upnp-org:device:basic:1", "urn:schemas-upnp-org:device:PhilipsHueBridge:1"}
	case "upnp:rootdevice":
		return []string{"upnp:rootdevice"}
	case "urn:schemas-upnp-org:device:basic:1":
		return []string{"urn:schemas-upnp-org:device:basic:1"}
	case "urn:schemas-upnp-org:device:PhilipsHueBridge:1", legacyHueURN:
		return []string{"urn:schemas-upnp-org:device:PhilipsHueBridge:1"}
	default:
		if strings.HasPrefix(st, "uuid:") {
			return []string{st}
		}
		return nil
	}
}

// parseSearch reports whether datagram is an M-SEARCH request and, if so,
// its ST and MX values.
func parseSearch(datagram []byte) (st string, mx int, ok bool) {
	reader := bufio.NewReader(strings.NewReader(string(datagram)))
	requestLine, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(strings.TrimSpace(requestLine), "M-SEARCH * HTTP/1.1") {
		return "", 0, false
	}
	tp := textproto.NewReader(reader)
	header, err := tp.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		return "", 0, false
	}
	man := strings.Trim(header.Get("Man"), `"`)
	if !strings.EqualFold(man, "ssdp:discover") {
		return "", 0, false
	}
	st = header.Get("St")
	if st == "" {
		return "", 0, false
	}
	mx = 1
	if v := header.Get("Mx"); v != "" {
		fmt.Sscanf(v, "%d", &mx)
	}
	return st, mx, true
}

// BridgeUUID derives the deterministic bridge UUID for hubID (spec §4.B):
// "2f402f80-da50-11e1-9b23-<hubId>".
func BridgeUUID(hubID string) string {
	return "2f402f80-da50-11e1-9b23-" + hubID
}
