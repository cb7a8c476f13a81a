package upnp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentContainsExpectedIdentity(t *testing.T) {
	doc := Document(Bridge{
		HubID:      "0017880ff9c9",
		BridgeUUID: "2f402f80-da50-11e1-9b23-0017880ff9c9",
		LocalIP:    "192.168.1.50",
		Port:       80,
		Scheme:     "http",
	})

	body := string(doc)
	assert.True(t, strings.HasPrefix(body, `<?xml version="1.0"`))
	assert.Contains(t, body, "urn:schemas-upnp-org:device:PhilipsHueBridge:1")
	assert.Contains(t, body, "<modelName>Philips hue bridge 2015</modelName>")
	assert.Contains(t, body, "<modelNumber>BSB002</modelNumber>")
	assert.Contains(t, body, "<serialNumber>0017880ff9c9</serialNumber>")
	assert.Contains(t, body, "<UDN>uuid:2f402f80-da50-11e1-9b23-0017880ff9c9</UDN>")
	assert.Contains(t, body, "<URLBase>http://192.168.1.50:80/</URLBase>")
}

func TestDocumentUsesHTTPSScheme(t *testing.T) {
	doc := Document(Bridge{LocalIP: "10.0.0.5", Port: 443, Scheme: "https"})
	assert.Contains(t, string(doc), "<URLBase>https://10.0.0.5:443/</URLBase>")
}
