package desk

import "context"

// Advertisement is one scan result delivered by the transport.
type Advertisement struct {
	Address  string
	Name     string
	Services []string
	RSSI     int
}

// Transport is the platform BLE stack contract the engine consumes. The
// production implementation lives in internal/goble; tests use an in-memory
// fake.
type Transport interface {
	// Scan streams advertisements to handler until ctx ends. Duplicate
	// advertisements from one address may be delivered repeatedly.
	Scan(ctx context.Context, handler func(Advertisement)) error

	// Connect establishes a link to address, discovers the desk's command
	// and report characteristics and subscribes to notifications. Failures
	// are reported as *ConnectError where the cause is known.
	Connect(ctx context.Context, address string) (Conn, error)
}

// Conn is one live link to a desk controller.
type Conn interface {
	// Write sends one encoded command frame to the command characteristic,
	// blocking until the transport acknowledges the write.
	Write(data []byte) error

	// Notifications returns the raw notify payload stream. The channel is
	// closed when the link drops, whatever the cause; that close is the
	// only disconnect signal the engine relies on.
	Notifications() <-chan []byte

	// Close releases the link. Idempotent.
	Close() error
}
