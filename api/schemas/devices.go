package schemas

// -- Smart Device Schemas --

// DeviceType classifies a discovered smart-home device.
type DeviceType string

const (
	DevicePlug    DeviceType = "plug"
	DeviceBulb    DeviceType = "bulb"
	DeviceUnknown DeviceType = "unknown"
)

// HSV is a hue/saturation/value color triple as reported by color bulbs.
type HSV struct {
	Hue        int `json:"hue"`
	Saturation int `json:"saturation"`
	Value      int `json:"value"`
}

// DeviceInfo describes one smart device found on the local network.
type DeviceInfo struct {
	Alias string     `json:"alias"`
	Addr  string     `json:"ip"`
	Model string     `json:"model"`
	Type  DeviceType `json:"type"`
	IsOn  bool       `json:"is_on"`
	// Brightness is 0-100 for dimmable devices, nil otherwise.
	Brightness *int `json:"brightness,omitempty"`
	// IsColor reports whether the device supports HSV color.
	IsColor bool `json:"is_color"`
	// Color is the current color for color-capable devices.
	Color *HSV `json:"color,omitempty"`
}
