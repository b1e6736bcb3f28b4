package homectl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/config"
	"github.com/xkilldash9x/pocketd/internal/network"
)

const (
	defaultBroadcastAddr   = "255.255.255.255:9999"
	defaultDiscoveryWindow = 5 * time.Second

	// commandTimeout bounds a TCP exchange when the caller's context
	// carries no deadline of its own.
	commandTimeout = 10 * time.Second

	// maxReplySize rejects nonsense length prefixes before allocating.
	maxReplySize = 1 << 20
)

// deviceRecord pairs the reported device state with the address commands
// go to.
type deviceRecord struct {
	info schemas.DeviceInfo
	addr string
}

// Controller finds Kasa devices by UDP broadcast and commands them over
// TCP. Devices are addressed by alias; the registry built by Discover maps
// aliases to addresses and refreshes itself when an alias is unknown.
type Controller struct {
	cfg    config.HomeConfig
	log    *zap.Logger
	dialer *network.DialerConfig

	mu      sync.Mutex
	devices map[string]deviceRecord
}

var _ schemas.DeviceController = (*Controller)(nil)

// NewController returns a controller ready to scan the configured
// broadcast domain.
func NewController(cfg config.HomeConfig, logger *zap.Logger) *Controller {
	if cfg.BroadcastAddr == "" {
		cfg.BroadcastAddr = defaultBroadcastAddr
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = defaultDiscoveryWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:     cfg,
		log:     logger.Named("Home"),
		dialer:  network.NewDialerConfig(),
		devices: make(map[string]deviceRecord),
	}
}

// Discover broadcasts a sysinfo probe and collects replies until the
// discovery window closes, replacing the alias registry with what it
// found. An empty network yields an empty slice, not an error.
func (c *Controller) Discover(ctx context.Context) ([]schemas.DeviceInfo, error) {
	target, err := net.ResolveUDPAddr("udp4", c.cfg.BroadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid broadcast address %q: %w", c.cfg.BroadcastAddr, err)
	}

	pc, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("opening discovery socket: %w", err)
	}
	defer pc.Close()

	// Context cancellation unblocks the read loop early.
	stopWatch := context.AfterFunc(ctx, func() {
		_ = pc.SetReadDeadline(time.Now())
	})
	defer stopWatch()

	probe := encrypt([]byte(discoverPayload))
	if _, err := pc.WriteTo(probe, target); err != nil {
		return nil, fmt.Errorf("sending discovery probe: %w", err)
	}
	// One retry halfway through the window covers a lost datagram.
	resend := time.AfterFunc(c.cfg.DiscoveryTimeout/2, func() {
		_, _ = pc.WriteTo(probe, target)
	})
	defer resend.Stop()

	_ = pc.SetReadDeadline(time.Now().Add(c.cfg.DiscoveryTimeout))

	found := make(map[string]deviceRecord)
	buf := make([]byte, 8192)
	for {
		n, src, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				break // scan window closed
			}
			return nil, fmt.Errorf("reading discovery replies: %w", err)
		}

		var reply discoveryReply
		if err := json.Unmarshal(decrypt(buf[:n]), &reply); err != nil {
			c.log.Debug("Ignoring malformed discovery reply.",
				zap.String("from", src.String()), zap.Error(err))
			continue
		}
		si := reply.System.GetSysinfo
		if si.Alias == "" {
			continue
		}

		host := src.String()
		if h, _, splitErr := net.SplitHostPort(host); splitErr == nil {
			host = h
		}
		// Aliases are the addressing key, so a duplicate alias keeps the
		// most recent reply.
		found[strings.ToLower(si.Alias)] = deviceRecord{info: si.deviceInfo(host), addr: src.String()}
	}

	records := make([]deviceRecord, 0, len(found))
	for _, rec := range found {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].info.Alias < records[j].info.Alias
	})

	c.mu.Lock()
	c.devices = found
	c.mu.Unlock()

	infos := make([]schemas.DeviceInfo, len(records))
	for i, rec := range records {
		infos[i] = rec.info
	}
	c.log.Info("Device discovery complete.", zap.Int("devices", len(infos)))
	return infos, nil
}

// TurnOn powers up the device with the given alias.
func (c *Controller) TurnOn(ctx context.Context, alias string) error {
	return c.setPower(ctx, alias, true)
}

// TurnOff powers down the device with the given alias.
func (c *Controller) TurnOff(ctx context.Context, alias string) error {
	return c.setPower(ctx, alias, false)
}

func (c *Controller) setPower(ctx context.Context, alias string, on bool) error {
	rec, err := c.resolve(ctx, alias)
	if err != nil {
		return err
	}

	var cmd []byte
	if rec.info.Type == schemas.DeviceBulb {
		state := 0
		if on {
			state = 1
		}
		cmd = lightCommand(lightTransition{OnOff: intPtr(state)})
	} else {
		cmd = relayCommand(on)
	}
	if err := c.command(ctx, rec, cmd); err != nil {
		return err
	}

	c.updateRecord(rec, func(info *schemas.DeviceInfo) { info.IsOn = on })
	return nil
}

// SetBrightness sets a dimmable device's level. Bulbs and wall dimmers use
// different command namespaces, picked by device type.
func (c *Controller) SetBrightness(ctx context.Context, alias string, level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("brightness %d out of range 0-100", level)
	}
	rec, err := c.resolve(ctx, alias)
	if err != nil {
		return err
	}
	if rec.info.Brightness == nil {
		return fmt.Errorf("device %q is not dimmable", rec.info.Alias)
	}

	var cmd []byte
	if rec.info.Type == schemas.DeviceBulb {
		cmd = lightCommand(lightTransition{Brightness: intPtr(level)})
	} else {
		cmd = dimmerCommand(level)
	}
	if err := c.command(ctx, rec, cmd); err != nil {
		return err
	}

	c.updateRecord(rec, func(info *schemas.DeviceInfo) {
		lvl := level
		info.Brightness = &lvl
	})
	return nil
}

// SetColor moves a color bulb to the given hue, saturation and value.
func (c *Controller) SetColor(ctx context.Context, alias string, color schemas.HSV) error {
	if color.Hue < 0 || color.Hue > 360 {
		return fmt.Errorf("hue %d out of range 0-360", color.Hue)
	}
	if color.Saturation < 0 || color.Saturation > 100 {
		return fmt.Errorf("saturation %d out of range 0-100", color.Saturation)
	}
	if color.Value < 0 || color.Value > 100 {
		return fmt.Errorf("value %d out of range 0-100", color.Value)
	}

	rec, err := c.resolve(ctx, alias)
	if err != nil {
		return err
	}
	if !rec.info.IsColor {
		return fmt.Errorf("device %q has no color support", rec.info.Alias)
	}

	cmd := lightCommand(lightTransition{
		Hue:        intPtr(color.Hue),
		Saturation: intPtr(color.Saturation),
		Brightness: intPtr(color.Value),
		ColorTemp:  intPtr(0),
	})
	if err := c.command(ctx, rec, cmd); err != nil {
		return err
	}

	c.updateRecord(rec, func(info *schemas.DeviceInfo) {
		hsv := color
		info.Color = &hsv
		if info.Brightness != nil {
			lvl := color.Value
			info.Brightness = &lvl
		}
	})
	return nil
}

// resolve maps an alias to a known device, rescanning the network once
// when the alias has not been seen yet. Matching is case-insensitive and
// falls back to a unique substring match, so "lamp" finds "Living Room
// Lamp".
func (c *Controller) resolve(ctx context.Context, alias string) (deviceRecord, error) {
	key := strings.ToLower(strings.TrimSpace(alias))
	if key == "" {
		return deviceRecord{}, errors.New("empty device alias")
	}

	rec, hits := c.lookup(key)
	if hits == 0 {
		if _, err := c.Discover(ctx); err != nil {
			return deviceRecord{}, fmt.Errorf("device %q not known and discovery failed: %w", alias, err)
		}
		rec, hits = c.lookup(key)
	}
	switch hits {
	case 0:
		return deviceRecord{}, fmt.Errorf("no device matching %q", alias)
	case 1:
		return rec, nil
	default:
		return deviceRecord{}, fmt.Errorf("alias %q matches %d devices", alias, hits)
	}
}

func (c *Controller) lookup(key string) (deviceRecord, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec, ok := c.devices[key]; ok {
		return rec, 1
	}
	var (
		match deviceRecord
		hits  int
	)
	for lowered, rec := range c.devices {
		if strings.Contains(lowered, key) {
			match = rec
			hits++
		}
	}
	return match, hits
}

func (c *Controller) updateRecord(rec deviceRecord, apply func(*schemas.DeviceInfo)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(rec.info.Alias)
	if cur, ok := c.devices[key]; ok {
		apply(&cur.info)
		c.devices[key] = cur
	}
}

func (c *Controller) command(ctx context.Context, rec deviceRecord, payload []byte) error {
	reply, err := c.send(ctx, rec.addr, payload)
	if err != nil {
		return fmt.Errorf("commanding %q: %w", rec.info.Alias, err)
	}
	return checkReply(reply)
}

// send performs one framed TCP exchange: 4-byte big-endian length, then
// the autokey-ciphered JSON payload, same shape back.
func (c *Controller) send(ctx context.Context, addr string, payload []byte) ([]byte, error) {
	conn, err := network.DialTCPContext(ctx, "tcp", addr, c.dialer)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(commandTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], encrypt(payload))
	if _, err := conn.Write(frame); err != nil {
		return nil, fmt.Errorf("writing command: %w", err)
	}

	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, fmt.Errorf("reading reply header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size == 0 || size > maxReplySize {
		return nil, fmt.Errorf("unreasonable reply size %d", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("reading reply body: %w", err)
	}
	return decrypt(body), nil
}
