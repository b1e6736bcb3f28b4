package schemas

// -- Browser Control Schemas --

// Logical grid and physical viewport dimensions. The model reasons in a
// fixed 1000x1000 grid regardless of the real window size; grid coordinates
// are scaled to the viewport before dispatch.
const (
	GridWidth  = 1000
	GridHeight = 1000

	ViewportWidth  = 1280
	ViewportHeight = 720
)

// Persona bundles the fingerprint surface a browser session presents.
type Persona struct {
	// Name identifies the persona in logs.
	Name string `json:"name"`
	// UserAgent is the User-Agent header and navigator.userAgent value.
	UserAgent string `json:"user_agent"`
	// ViewportWidth and ViewportHeight size the browser window.
	ViewportWidth  int64 `json:"viewport_width"`
	ViewportHeight int64 `json:"viewport_height"`
	// AcceptLanguage is the Accept-Language header value.
	AcceptLanguage string `json:"accept_language"`
}

// DefaultPersona returns the persona presented when none is configured: a
// desktop Chrome profile matching the fixed agent viewport.
func DefaultPersona() Persona {
	return Persona{
		Name:           "desktop-chrome",
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  ViewportWidth,
		ViewportHeight: ViewportHeight,
		AcceptLanguage: "en-US,en;q=0.9",
	}
}

// MouseEventType is a raw input event type dispatched to the page.
type MouseEventType string

const (
	MouseMoved    MouseEventType = "mouseMoved"
	MousePressed  MouseEventType = "mousePressed"
	MouseReleased MouseEventType = "mouseReleased"
	MouseWheel    MouseEventType = "mouseWheel"
)

// MouseButton names the button involved in a mouse event.
type MouseButton string

const (
	ButtonNone   MouseButton = "none"
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// MouseEventData describes one raw mouse event in viewport pixels.
type MouseEventData struct {
	Type MouseEventType `json:"type"`
	X    float64        `json:"x"`
	Y    float64        `json:"y"`
	// Button is the button that changed state.
	Button MouseButton `json:"button"`
	// ClickCount is 1 for single clicks, 2 for double clicks.
	ClickCount int64 `json:"click_count,omitempty"`
	// DeltaX and DeltaY carry wheel movement for MouseWheel events.
	DeltaX float64 `json:"delta_x,omitempty"`
	DeltaY float64 `json:"delta_y,omitempty"`
}
