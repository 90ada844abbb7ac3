package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	blecrypto "github.com/KrystianD/bm2-battery-monitor/internal/ble/crypto"
	"github.com/KrystianD/bm2-battery-monitor/internal/ble/protocol"
)

// ClientOptions configures the BLE client behavior.
type ClientOptions struct {
	VoltageTimeout       time.Duration // how long GetVoltage waits for a reading
	HistoryTimeout       time.Duration // how long GetHistory waits for the whole transfer
	HistoryTransferDelay time.Duration // pause between the count response and the transfer command
	PollInterval         time.Duration // link liveness check interval
	RetryDelay           time.Duration // pause between connection attempts

	// ForceDisconnector clears stale stack state when the device is reported
	// missing. Nil disables forced disconnection.
	ForceDisconnector ForceDisconnector
	Logger            *slog.Logger
	// Now stamps decoded history. Defaults to time.Now.
	Now func() time.Time
}

// DefaultClientOptions returns the timings the BM2 firmware expects.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		VoltageTimeout:       60 * time.Second,
		HistoryTimeout:       5 * time.Second,
		HistoryTransferDelay: 1 * time.Second,
		PollInterval:         1 * time.Second,
		RetryDelay:           1 * time.Second,
	}
}

// Client manages the BLE connection to a BM2 battery monitor.
//
// The device has no request IDs, so at most one request (voltage or history)
// is outstanding at a time; further callers queue on the request slot.
type Client struct {
	adapter Adapter
	address string
	opts    ClientOptions
	log     *slog.Logger

	slot *semaphore.Weighted

	// enabled is only touched by the run goroutine.
	enabled bool

	mu          sync.Mutex
	conn        Connection
	writeChar   Characteristic
	connectedCh chan struct{} // closed and replaced on every connection signal
	stopped     bool
	ctx         context.Context
	cancel      context.CancelFunc
	loopDone    chan struct{}

	voltage   *future[float64]
	history   *future[[]protocol.HistoryReading]
	assembler protocol.HistoryAssembler
}

// NewClient creates a client for the monitor at address. The client is idle
// until Start is called.
func NewClient(adapter Adapter, address string, opts ClientOptions) (*Client, error) {
	if adapter == nil {
		return nil, errors.New("ble: nil adapter")
	}
	if address == "" {
		return nil, errors.New("ble: device address must not be empty")
	}
	def := DefaultClientOptions()
	if opts.VoltageTimeout <= 0 {
		opts.VoltageTimeout = def.VoltageTimeout
	}
	if opts.HistoryTimeout <= 0 {
		opts.HistoryTimeout = def.HistoryTimeout
	}
	if opts.HistoryTransferDelay <= 0 {
		opts.HistoryTransferDelay = def.HistoryTransferDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		adapter:     adapter,
		address:     address,
		opts:        opts,
		log:         logger,
		slot:        semaphore.NewWeighted(1),
		connectedCh: make(chan struct{}),
		stopped:     true,
	}, nil
}

// Address returns the device address the client connects to.
func (c *Client) Address() string {
	return c.address
}

// GetVoltage waits for the next voltage notification. The device pushes
// readings on its own, so nothing is written. Fails with ErrNotConnected
// when there is no link, or ErrTimeout after VoltageTimeout.
func (c *Client) GetVoltage(ctx context.Context) (float64, error) {
	if err := c.slot.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer c.slot.Release(1)

	f := newFuture[float64]()
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return 0, ErrNotConnected
	}
	c.voltage = f
	c.mu.Unlock()
	defer c.dropVoltage(f)

	v, err := f.wait(ctx, c.opts.VoltageTimeout)
	if err != nil {
		return 0, fmt.Errorf("ble: voltage: %w", err)
	}
	return v, nil
}

// GetHistory asks the device for its stored voltage log and waits for the
// transfer to finish. Readings are ordered oldest first. Fails with
// ErrNotConnected when there is no link or it drops mid-transfer, or
// ErrTimeout after HistoryTimeout.
func (c *Client) GetHistory(ctx context.Context) ([]protocol.HistoryReading, error) {
	if err := c.slot.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.slot.Release(1)

	f := newFuture[[]protocol.HistoryReading]()
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.history = f
	c.mu.Unlock()
	defer c.dropHistory(f)

	if err := c.send(protocol.HistoryCountRequest()); err != nil {
		return nil, fmt.Errorf("ble: request history count: %w", err)
	}

	readings, err := f.wait(ctx, c.opts.HistoryTimeout)
	if err != nil {
		return nil, fmt.Errorf("ble: history: %w", err)
	}
	return readings, nil
}

// VoltageStream delivers voltage readings until ctx is done or the client is
// stopped, then closes the channel. While the link is down it waits for the
// next connection; timeouts are skipped. Call it after Start.
func (c *Client) VoltageStream(ctx context.Context) <-chan float64 {
	ch := make(chan float64)
	go func() {
		defer close(ch)
		for ctx.Err() == nil {
			v, err := c.GetVoltage(ctx)
			switch {
			case err == nil:
				select {
				case ch <- v:
				case <-ctx.Done():
					return
				}
			case errors.Is(err, ErrNotConnected):
				if c.WaitForConnected(ctx) != nil {
					return
				}
			case errors.Is(err, ErrTimeout):
				c.log.Debug("[BLE] no voltage reading in time", "timeout", c.opts.VoltageTimeout)
			default:
				return
			}
		}
	}()
	return ch
}

// send encrypts and writes a command to the device.
func (c *Client) send(data []byte) error {
	c.mu.Lock()
	writeChar := c.writeChar
	c.mu.Unlock()
	if writeChar == nil {
		return ErrNotConnected
	}
	if err := writeChar.Write(blecrypto.Encrypt(data)); err != nil {
		return fmt.Errorf("%w: write: %w", ErrNotConnected, err)
	}
	return nil
}

// dropVoltage unregisters f if it is still the pending voltage request.
func (c *Client) dropVoltage(f *future[float64]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.voltage == f {
		c.voltage = nil
	}
}

func (c *Client) dropHistory(f *future[[]protocol.HistoryReading]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.history == f {
		c.history = nil
	}
}

// resolveVoltageLocked hands v to the pending voltage request, if any
// (caller must hold mu).
func (c *Client) resolveVoltageLocked(v float64) {
	f := c.voltage
	c.voltage = nil
	if f != nil {
		f.resolve(v)
	}
}

// completeHistoryLocked finishes the pending history request, if any
// (caller must hold mu).
func (c *Client) completeHistoryLocked(readings []protocol.HistoryReading, err error) {
	f := c.history
	c.history = nil
	if f != nil {
		f.complete(readings, err)
	}
}

// sleepCtx waits for d or until ctx is done. Reports whether the full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
