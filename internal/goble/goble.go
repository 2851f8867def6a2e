// Package goble implements the desk.Transport contract over go-ble, the
// platform BLE stack. It owns device setup, dialing, characteristic
// discovery and the notification subscription; everything protocol-aware
// lives above it.
package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/smarthall/blesk/internal/desk"
	"github.com/smarthall/blesk/internal/groutine"
	"github.com/smarthall/blesk/internal/protocol"
)

// notifyBuffer bounds raw notification chunks queued between the BLE
// callback and the session reader.
const notifyBuffer = 128

// Transport adapts go-ble to the desk.Transport contract.
type Transport struct {
	logger         *logrus.Logger
	connectTimeout time.Duration

	deviceOnce sync.Once
	device     ble.Device
	deviceErr  error
}

// NewTransport creates a transport. connectTimeout bounds each Connect
// attempt; zero selects 10 seconds.
func NewTransport(logger *logrus.Logger, connectTimeout time.Duration) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	return &Transport{logger: logger, connectTimeout: connectTimeout}
}

// bleDevice opens the platform BLE device once and reuses it; HCI devices do
// not tolerate being opened twice.
func (t *Transport) bleDevice() (ble.Device, error) {
	t.deviceOnce.Do(func() {
		t.device, t.deviceErr = DeviceFactory()
		if t.deviceErr == nil {
			ble.SetDefaultDevice(t.device)
		}
	})
	return t.device, t.deviceErr
}

// Scan streams advertisements until ctx ends. Duplicates are delivered;
// de-duplication is the scanner's concern.
func (t *Transport) Scan(ctx context.Context, handler func(desk.Advertisement)) error {
	dev, err := t.bleDevice()
	if err != nil {
		return fmt.Errorf("failed to create BLE device: %w", err)
	}

	return dev.Scan(ctx, true, func(adv ble.Advertisement) {
		services := make([]string, 0, len(adv.Services()))
		for _, svc := range adv.Services() {
			services = append(services, svc.String())
		}
		handler(desk.Advertisement{
			Address:  adv.Addr().String(),
			Name:     adv.LocalName(),
			Services: services,
			RSSI:     adv.RSSI(),
		})
	})
}

// Connect dials the desk, discovers the vendor service pair and subscribes
// to report notifications.
func (t *Transport) Connect(ctx context.Context, address string) (desk.Conn, error) {
	if _, err := t.bleDevice(); err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, t.connectTimeout)
	defer cancel()

	t.logger.WithField("address", address).Debug("Dialing desk")
	client, err := ble.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &desk.ConnectError{State: desk.ConnectTimeout, Msg: fmt.Sprintf("desk %s unreachable within %s", address, t.connectTimeout)}
		}
		return nil, fmt.Errorf("failed to connect to %q: %w", address, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return nil, fmt.Errorf("failed to discover profile: %w", err)
	}

	writeChar, notifyChar, err := findCharacteristics(profile)
	if err != nil {
		_ = client.CancelConnection()
		return nil, err
	}

	conn := &bleConn{
		client:    client,
		writeChar: writeChar,
		notif:     make(chan []byte, notifyBuffer),
		logger:    t.logger,
		address:   address,
	}

	if err := client.Subscribe(notifyChar, false, conn.handleNotification); err != nil {
		_ = client.CancelConnection()
		return nil, fmt.Errorf("failed to subscribe to reports: %w", err)
	}

	// Some platforms surface link loss only through this channel; fold it
	// into the notification stream close so the engine sees one signal.
	if d, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(nil, "ble-disconnect-"+address, func(context.Context) {
			<-d.Disconnected()
			t.logger.WithField("address", address).Warn("BLE stack reported disconnection")
			conn.closeStream()
		})
	}

	t.logger.WithField("address", address).Info("Desk connected")
	return conn, nil
}

// findCharacteristics locates the vendor write/notify pair in a discovered
// profile.
func findCharacteristics(profile *ble.Profile) (write, notify *ble.Characteristic, err error) {
	for _, svc := range profile.Services {
		if normalizeUUID(svc.UUID.String()) != normalizeUUID(protocol.ServiceUUID) {
			continue
		}
		for _, char := range svc.Characteristics {
			switch normalizeUUID(char.UUID.String()) {
			case normalizeUUID(protocol.WriteCharUUID):
				write = char
			case normalizeUUID(protocol.NotifyCharUUID):
				notify = char
			}
		}
	}
	if write == nil || notify == nil {
		return nil, nil, fmt.Errorf("device does not expose the desk control service %s", protocol.ServiceUUID)
	}
	return write, notify, nil
}

func normalizeUUID(uuid string) string {
	u := strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
	// Collapse Bluetooth SIG base UUIDs to their 16-bit form so ff12
	// compares equal to 0000ff12-0000-1000-8000-00805f9b34fb.
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, "00001000800000805f9b34fb") {
		return u[4:8]
	}
	return u
}

// ----------------------------
// Connection
// ----------------------------

type bleConn struct {
	client    ble.Client
	writeChar *ble.Characteristic
	logger    *logrus.Logger
	address   string

	notif     chan []byte
	closeOnce sync.Once
}

// Write sends one frame with response; the desk's command characteristic
// acks each write.
func (c *bleConn) Write(data []byte) error {
	return c.client.WriteCharacteristic(c.writeChar, data, false)
}

func (c *bleConn) Notifications() <-chan []byte {
	return c.notif
}

// handleNotification copies the stack's buffer (go-ble reuses it) and queues
// the chunk, dropping on overrun exactly as the radio would.
func (c *bleConn) handleNotification(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	defer func() {
		// Subscription callbacks can race the stream close; a send on
		// the closed channel is equivalent to a dropped notification.
		_ = recover()
	}()

	select {
	case c.notif <- cp:
	default:
		c.logger.WithField("address", c.address).Debug("Notification buffer full, dropping chunk")
	}
}

func (c *bleConn) closeStream() {
	c.closeOnce.Do(func() { close(c.notif) })
}

// Close releases the link. Idempotent.
func (c *bleConn) Close() error {
	err := c.client.CancelConnection()
	c.closeStream()
	return err
}
