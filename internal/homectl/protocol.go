package homectl

import (
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// discoverPayload asks a device for its full system info. Broadcast over
// UDP it doubles as the discovery probe.
const discoverPayload = `{"system":{"get_sysinfo":{}}}`

// lightingService is the command namespace smart bulbs expose for state
// transitions. Dimmer switches use a separate, simpler namespace.
const (
	lightingService = "smartlife.iot.smartbulb.lightingservice"
	dimmerService   = "smartlife.iot.dimmer"
)

// lightState mirrors the bulb light_state block. When a bulb is off the
// last-used state nests under dft_on_state.
type lightState struct {
	OnOff      int         `json:"on_off"`
	Mode       string      `json:"mode,omitempty"`
	Hue        int         `json:"hue"`
	Saturation int         `json:"saturation"`
	ColorTemp  int         `json:"color_temp"`
	Brightness int         `json:"brightness"`
	DftOnState *lightState `json:"dft_on_state,omitempty"`
}

// sysInfo is the device-reported system block. Plugs and bulbs share the
// envelope but populate different fields.
type sysInfo struct {
	ErrCode    int         `json:"err_code"`
	Alias      string      `json:"alias"`
	Model      string      `json:"model"`
	MicType    string      `json:"mic_type"`
	Type       string      `json:"type"`
	RelayState *int        `json:"relay_state,omitempty"`
	Brightness *int        `json:"brightness,omitempty"` // dimmer switches
	IsDimmable int         `json:"is_dimmable"`
	IsColor    int         `json:"is_color"`
	LightState *lightState `json:"light_state,omitempty"`
}

type discoveryReply struct {
	System struct {
		GetSysinfo sysInfo `json:"get_sysinfo"`
	} `json:"system"`
}

// deviceInfo flattens a sysinfo block into the wire-facing device shape.
func (si sysInfo) deviceInfo(host string) schemas.DeviceInfo {
	info := schemas.DeviceInfo{
		Alias: si.Alias,
		Addr:  host,
		Model: si.Model,
		Type:  deviceKind(si),
	}

	switch {
	case si.LightState != nil:
		state := si.LightState
		info.IsOn = state.OnOff == 1
		// An off bulb reports its resume state one level down.
		if !info.IsOn && state.DftOnState != nil {
			state = state.DftOnState
		}
		if si.IsDimmable == 1 {
			level := state.Brightness
			info.Brightness = &level
		}
		if si.IsColor == 1 {
			info.IsColor = true
			info.Color = &schemas.HSV{
				Hue:        state.Hue,
				Saturation: state.Saturation,
				Value:      state.Brightness,
			}
		}
	case si.RelayState != nil:
		info.IsOn = *si.RelayState == 1
		if si.Brightness != nil {
			level := *si.Brightness
			info.Brightness = &level
		}
	}
	return info
}

func deviceKind(si sysInfo) schemas.DeviceType {
	kind := si.MicType
	if kind == "" {
		kind = si.Type
	}
	switch {
	case strings.Contains(kind, "SMARTBULB"):
		return schemas.DeviceBulb
	case strings.Contains(kind, "SMARTPLUG"), strings.Contains(kind, "SMARTSWITCH"):
		return schemas.DevicePlug
	default:
		return schemas.DeviceUnknown
	}
}

// lightTransition carries the fields of a transition_light_state command.
// Only set fields are sent, so a brightness change leaves color alone.
type lightTransition struct {
	OnOff            *int `json:"on_off,omitempty"`
	TransitionPeriod *int `json:"transition_period,omitempty"`
	IgnoreDefault    *int `json:"ignore_default,omitempty"`
	Hue              *int `json:"hue,omitempty"`
	Saturation       *int `json:"saturation,omitempty"`
	Brightness       *int `json:"brightness,omitempty"`
	ColorTemp        *int `json:"color_temp,omitempty"`
}

func relayCommand(on bool) []byte {
	state := 0
	if on {
		state = 1
	}
	payload, _ := json.Marshal(map[string]any{
		"system": map[string]any{
			"set_relay_state": map[string]int{"state": state},
		},
	})
	return payload
}

func lightCommand(t lightTransition) []byte {
	// Apply the state verbatim instead of the bulb's stored power-on
	// default.
	t.IgnoreDefault = intPtr(1)
	payload, _ := json.Marshal(map[string]any{
		lightingService: map[string]any{
			"transition_light_state": t,
		},
	})
	return payload
}

func dimmerCommand(level int) []byte {
	payload, _ := json.Marshal(map[string]any{
		dimmerService: map[string]any{
			"set_brightness": map[string]int{"brightness": level},
		},
	})
	return payload
}

// checkReply scans a command response for a non-zero err_code anywhere in
// its section tree.
func checkReply(payload []byte) error {
	var reply map[string]map[string]struct {
		ErrCode int    `json:"err_code"`
		ErrMsg  string `json:"err_msg"`
	}
	if err := json.Unmarshal(payload, &reply); err != nil {
		return fmt.Errorf("malformed device reply: %w", err)
	}
	for _, section := range reply {
		for _, result := range section {
			if result.ErrCode != 0 {
				if result.ErrMsg != "" {
					return fmt.Errorf("device rejected command: %s (code %d)",
						result.ErrMsg, result.ErrCode)
				}
				return fmt.Errorf("device rejected command (code %d)", result.ErrCode)
			}
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }
