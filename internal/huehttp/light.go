package huehttp

import "github.com/wiredhome/huebridge/internal/registry"

// LightState is the always-default state object returned for every light
// (spec §4.D: "The Hub does not track actual on/bri/etc. state; defaults
// are always returned").
type LightState struct {
	On        bool      `json:"on"`
	Bri       int       `json:"bri"`
	Hue       int       `json:"hue"`
	Sat       int       `json:"sat"`
	Effect    string    `json:"effect"`
	XY        []float64 `json:"xy"`
	CT        int       `json:"ct"`
	Alert     string    `json:"alert"`
	ColorMode string    `json:"colormode"`
	Mode      string    `json:"mode"`
	Reachable bool      `json:"reachable"`
}

func defaultLightState() LightState {
	return LightState{
		On:        false,
		Bri:       254,
		Hue:       0,
		Sat:       254,
		Effect:    "none",
		XY:        []float64{0, 0},
		CT:        199,
		Alert:     "none",
		ColorMode: "ct",
		Mode:      "homeautomation",
		Reachable: true,
	}
}

// Light is the JSON shape of one entry under /api/:user/lights (spec §4.D
// "Light object").
type Light struct {
	State            LightState `json:"state"`
	Type             string     `json:"type"`
	Name             string     `json:"name"`
	ModelID          string     `json:"modelid"`
	ManufacturerName string     `json:"manufacturername"`
	ProductName      string     `json:"productname"`
	UniqueID         string     `json:"uniqueid"`
	SWVersion        string     `json:"swversion"`
}

const hueSWVersion = "1.29.0"

// lightFromDevice builds the generated (never stored) light object for d.
func lightFromDevice(d registry.Device) Light {
	return Light{
		State:            defaultLightState(),
		Type:             "Extended color light",
		Name:             d.Name,
		ModelID:          "LCT015",
		ManufacturerName: "Signify",
		ProductName:      "Hue color lamp",
		UniqueID:         d.UniqueID,
		SWVersion:        hueSWVersion,
	}
}
