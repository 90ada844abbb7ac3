package ble

import (
	"context"
	"io"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevicePath(t *testing.T) {
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"), devicePath("hci0", "aa:bb:cc:dd:ee:ff"))
	assert.Equal(t, dbus.ObjectPath("/org/bluez/hci1/dev_A4_C1_38_00_11_22"), devicePath("hci1", "A4:C1:38:00:11:22"))
}

func TestNewForceDisconnector(t *testing.T) {
	fd, err := NewForceDisconnector(ForceDisconnectBlueZ, "")
	require.NoError(t, err)
	bz, ok := fd.(*BlueZDisconnector)
	require.True(t, ok)
	assert.Equal(t, "hci0", bz.adapter)

	fd, err = NewForceDisconnector(ForceDisconnectBluetoothctl, "hci0")
	require.NoError(t, err)
	assert.IsType(t, &BluetoothctlDisconnector{}, fd)

	fd, err = NewForceDisconnector(ForceDisconnectNone, "hci0")
	require.NoError(t, err)
	assert.Nil(t, fd)

	_, err = NewForceDisconnector("hciconfig", "hci0")
	assert.Error(t, err)
}

func TestBluetoothctlCommand(t *testing.T) {
	d := &BluetoothctlDisconnector{}
	cmd := d.command(context.Background(), testMAC)

	assert.Equal(t, "bluetoothctl", cmd.Args[0])
	assert.Nil(t, cmd.Stdout)
	input, err := io.ReadAll(cmd.Stdin)
	require.NoError(t, err)
	assert.Equal(t, "disconnect "+testMAC+"\n", string(input))
}

func TestBluetoothctlMissingBinary(t *testing.T) {
	d := &BluetoothctlDisconnector{Path: "/nonexistent/bluetoothctl"}
	assert.Error(t, d.ForceDisconnect(context.Background(), testMAC))
}

func TestBlueZDisconnectorBusError(t *testing.T) {
	d := NewBlueZDisconnector("hci0")
	d.bus = func() (*dbus.Conn, error) { return nil, io.ErrClosedPipe }
	err := d.ForceDisconnect(context.Background(), testMAC)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
