package ble

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	blecrypto "github.com/KrystianD/bm2-battery-monitor/internal/ble/crypto"
)

// mockCharacteristic records writes and allows subscribing.
type mockCharacteristic struct {
	mu       sync.Mutex
	writes   [][]byte
	callback func([]byte)
}

func (c *mockCharacteristic) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *mockCharacteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
	return nil
}

// SimulateNotification sends a raw notification to the subscriber.
func (c *mockCharacteristic) SimulateNotification(data []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

// Notify encrypts plaintext the way the device does and delivers it.
func (c *mockCharacteristic) Notify(plaintext []byte) {
	c.SimulateNotification(blecrypto.Encrypt(plaintext))
}

// Writes returns the decrypted commands written so far.
func (c *mockCharacteristic) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, 0, len(c.writes))
	for _, w := range c.writes {
		plain, err := blecrypto.Decrypt(w)
		if err != nil {
			panic(err)
		}
		out = append(out, plain)
	}
	return out
}

func (c *mockCharacteristic) WriteCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

// mockConnection simulates a BLE connection.
type mockConnection struct {
	writeChar    *mockCharacteristic
	notifyChar   *mockCharacteristic
	connected    atomic.Bool
	disconnected atomic.Bool
}

func newMockConnection() *mockConnection {
	c := &mockConnection{
		writeChar:  &mockCharacteristic{},
		notifyChar: &mockCharacteristic{},
	}
	c.connected.Store(true)
	return c
}

func (c *mockConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	if serviceUUID != ServiceUUID {
		return nil, fmt.Errorf("mock: unknown service UUID %q", serviceUUID)
	}
	switch charUUID {
	case WriteCharUUID:
		return c.writeChar, nil
	case NotifyCharUUID:
		return c.notifyChar, nil
	default:
		return nil, fmt.Errorf("mock: unknown characteristic UUID %q", charUUID)
	}
}

func (c *mockConnection) IsConnected() bool {
	return c.connected.Load()
}

func (c *mockConnection) Disconnect() error {
	c.disconnected.Store(true)
	c.connected.Store(false)
	return nil
}

// SimulateDisconnect drops the link as if the device went out of range.
func (c *mockConnection) SimulateDisconnect() {
	c.connected.Store(false)
}

// mockAdapter simulates the BLE adapter.
type mockAdapter struct {
	mu          sync.Mutex
	devices     []Device
	connectErrs []error // returned by successive Connect calls before succeeding
	connects    int
	connection  *mockConnection // most recent connection for test assertions
}

func newMockAdapter(devices []Device) *mockAdapter {
	return &mockAdapter{devices: devices}
}

func (a *mockAdapter) Enable() error { return nil }

func (a *mockAdapter) Scan(_ context.Context, _ string) ([]Device, error) {
	return a.devices, nil
}

func (a *mockAdapter) Connect(_ context.Context, _ string) (Connection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connects++
	if len(a.connectErrs) > 0 {
		err := a.connectErrs[0]
		a.connectErrs = a.connectErrs[1:]
		return nil, err
	}
	conn := newMockConnection()
	a.connection = conn
	return conn, nil
}

// latestConnection returns the most recently created connection (thread-safe).
func (a *mockAdapter) latestConnection() *mockConnection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connection
}

func (a *mockAdapter) connectCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}

// mockForceDisconnector records forced disconnections.
type mockForceDisconnector struct {
	mu   sync.Mutex
	macs []string
}

func (d *mockForceDisconnector) ForceDisconnect(_ context.Context, mac string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.macs = append(d.macs, mac)
	return fmt.Errorf("mock: bluetoothctl missing")
}

func (d *mockForceDisconnector) calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.macs...)
}

const testMAC = "AA:BB:CC:DD:EE:FF"

var testNow = time.Date(2024, 5, 1, 10, 30, 42, 0, time.UTC)

// testOpts shrinks every delay so tests run in milliseconds.
func testOpts() ClientOptions {
	return ClientOptions{
		VoltageTimeout:       300 * time.Millisecond,
		HistoryTimeout:       500 * time.Millisecond,
		HistoryTransferDelay: 10 * time.Millisecond,
		PollInterval:         5 * time.Millisecond,
		RetryDelay:           5 * time.Millisecond,
		Now:                  func() time.Time { return testNow },
	}
}

func mustNewClient(t *testing.T, adapter Adapter, opts ClientOptions) *Client {
	t.Helper()
	client, err := NewClient(adapter, testMAC, opts)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

// startConnected starts client and waits for its first connection.
func startConnected(t *testing.T, client *Client, adapter *mockAdapter) *mockConnection {
	t.Helper()
	client.Start()
	t.Cleanup(client.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.WaitForConnected(ctx); err != nil {
		t.Fatalf("WaitForConnected() error = %v", err)
	}
	return adapter.latestConnection()
}

// waitUntil polls cond until it holds or a second passes.
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMockAdapterImplementsInterface(t *testing.T) {
	var _ Adapter = (*mockAdapter)(nil)
}

func TestMockConnectionImplementsInterface(t *testing.T) {
	var _ Connection = (*mockConnection)(nil)
}

func TestMockCharacteristicImplementsInterface(t *testing.T) {
	var _ Characteristic = (*mockCharacteristic)(nil)
}
