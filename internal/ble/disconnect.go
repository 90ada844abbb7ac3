package ble

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/godbus/dbus/v5"
)

// ForceDisconnector tears down a connection the Bluetooth stack still holds
// for a device the client can no longer reach. Implementations are best
// effort; the client ignores their errors.
type ForceDisconnector interface {
	ForceDisconnect(ctx context.Context, mac string) error
}

// Forced disconnection strategies accepted by NewForceDisconnector.
const (
	ForceDisconnectBlueZ        = "bluez"
	ForceDisconnectBluetoothctl = "bluetoothctl"
	ForceDisconnectNone         = "none"
)

// NewForceDisconnector returns the strategy named kind. adapter is the BlueZ
// adapter name, e.g. "hci0". "none" yields a nil ForceDisconnector.
func NewForceDisconnector(kind, adapter string) (ForceDisconnector, error) {
	switch kind {
	case ForceDisconnectBlueZ:
		return NewBlueZDisconnector(adapter), nil
	case ForceDisconnectBluetoothctl:
		return &BluetoothctlDisconnector{}, nil
	case ForceDisconnectNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("ble: unknown force disconnect method %q", kind)
	}
}

// BluetoothctlDisconnector pipes "disconnect <mac>" into bluetoothctl.
type BluetoothctlDisconnector struct {
	// Path to the bluetoothctl binary. Empty means look it up in PATH.
	Path string
}

func (d *BluetoothctlDisconnector) command(ctx context.Context, mac string) *exec.Cmd {
	path := d.Path
	if path == "" {
		path = "bluetoothctl"
	}
	cmd := exec.CommandContext(ctx, path)
	cmd.Stdin = strings.NewReader("disconnect " + mac + "\n")
	// Stdout and Stderr stay nil: output goes to the null device.
	return cmd
}

func (d *BluetoothctlDisconnector) ForceDisconnect(ctx context.Context, mac string) error {
	if err := d.command(ctx, mac).Run(); err != nil {
		return fmt.Errorf("ble: bluetoothctl disconnect %s: %w", mac, err)
	}
	return nil
}

// BlueZ D-Bus names
const (
	bluezBus     = "org.bluez"
	bluezDevice1 = "org.bluez.Device1"
)

// BlueZDisconnector calls org.bluez.Device1.Disconnect on the system bus.
type BlueZDisconnector struct {
	adapter string
	bus     func() (*dbus.Conn, error)
}

// NewBlueZDisconnector creates a disconnector for devices on the given
// adapter (default "hci0").
func NewBlueZDisconnector(adapter string) *BlueZDisconnector {
	if adapter == "" {
		adapter = "hci0"
	}
	return &BlueZDisconnector{adapter: adapter, bus: dbus.SystemBus}
}

// devicePath returns the BlueZ object path of mac, e.g.
// /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF.
func devicePath(adapter, mac string) dbus.ObjectPath {
	dev := "dev_" + strings.ToUpper(strings.ReplaceAll(mac, ":", "_"))
	return dbus.ObjectPath("/org/bluez/" + adapter + "/" + dev)
}

func (d *BlueZDisconnector) ForceDisconnect(ctx context.Context, mac string) error {
	// The system bus connection is shared and cached by godbus; it is not closed here.
	conn, err := d.bus()
	if err != nil {
		return fmt.Errorf("ble: connect to system bus: %w", err)
	}
	path := devicePath(d.adapter, mac)
	call := conn.Object(bluezBus, path).CallWithContext(ctx, bluezDevice1+".Disconnect", 0)
	if call.Err != nil {
		return fmt.Errorf("ble: %s.Disconnect on %s: %w", bluezDevice1, path, call.Err)
	}
	return nil
}
