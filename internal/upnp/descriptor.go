// Package upnp serves the bridge's UPnP device descriptor document, the
// single artifact an Echo fetches after SSDP discovery points it at a
// LOCATION URL (spec §4.C).
package upnp

import (
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Bridge carries the identity fields needed to render description.xml.
type Bridge struct {
	HubID      string
	BridgeUUID string
	LocalIP    string
	Port       int
	Scheme     string // "http" or "https"
}

type root struct {
	XMLName     xml.Name `xml:"root"`
	Xmlns       string   `xml:"xmlns,attr"`
	SpecVersion specVer  `xml:"specVersion"`
	URLBase     string   `xml:"URLBase"`
	Device      device   `xml:"device"`
}

type specVer struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

type device struct {
	DeviceType       string `xml:"deviceType"`
	FriendlyName     string `xml:"friendlyName"`
	Manufacturer     string `xml:"manufacturer"`
	ManufacturerURL  string `xml:"manufacturerURL"`
	ModelDescription string `xml:"modelDescription"`
	ModelName        string `xml:"modelName"`
	ModelNumber      string `xml:"modelNumber"`
	ModelURL         string `xml:"modelURL"`
	SerialNumber     string `xml:"serialNumber"`
	UDN              string `xml:"UDN"`
}

// Document renders the Hue-2015-bridge description.xml body for b.
func Document(b Bridge) []byte {
	urlBase := fmt.Sprintf("%s://%s:%d/", b.Scheme, b.LocalIP, b.Port)

	doc := root{
		Xmlns:       "urn:schemas-upnp-org:device-1-0",
		SpecVersion: specVer{Major: 1, Minor: 0},
		URLBase:     urlBase,
		Device: device{
			DeviceType:       "urn:schemas-upnp-org:device:PhilipsHueBridge:1",
			FriendlyName:     fmt.Sprintf("Philips hue (%s)", b.LocalIP),
			Manufacturer:     "Royal Philips Electronics",
			ManufacturerURL:  "http://www.philips.com",
			ModelDescription: "Philips hue Personal Wireless Lighting",
			ModelName:        "Philips hue bridge 2015",
			ModelNumber:      "BSB002",
			ModelURL:         "http://www.meethue.com",
			SerialNumber:     b.HubID,
			UDN:              "uuid:" + b.BridgeUUID,
		},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		// Fields are all plain strings under our control; marshaling a
		// fixed struct shape cannot fail in practice.
		return []byte(xml.Header)
	}
	return append([]byte(xml.Header), out...)
}

// RegisterRoutes wires GET /description.xml. Any other method on that path
// is rejected with 405 by echo's router automatically.
func RegisterRoutes(e *echo.Echo, bridge func() Bridge) {
	e.GET("/description.xml", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "text/xml; charset=utf-8", Document(bridge()))
	})
}
