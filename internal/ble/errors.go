package ble

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConnected is returned when there is no link to the monitor, or
	// the link dropped while a request was outstanding.
	ErrNotConnected = errors.New("ble: not connected")
	// ErrTimeout is returned when the monitor does not answer in time.
	ErrTimeout = errors.New("ble: timed out waiting for device")

	// ErrDeviceNotFound marks transport errors caused by the stack not
	// knowing the device. A stale BlueZ connection record is the usual cause.
	ErrDeviceNotFound = errors.New("ble: device not found")
	// ErrNoReply marks transient D-Bus "no reply" errors.
	ErrNoReply = errors.New("ble: no reply from bluetooth stack")
)

var notFoundMarkers = []string{
	"was not found",
	"org.freedesktop.DBus.Error.UnknownObject",
	"org.bluez.Error.DoesNotExist",
}

const noReplyMarker = "org.freedesktop.DBus.Error.NoReply"

// ClassifyTransportError tags err with ErrDeviceNotFound or ErrNoReply when
// its message identifies one of those conditions. Other errors are returned
// unchanged.
func ClassifyTransportError(err error) error {
	if err == nil || errors.Is(err, ErrDeviceNotFound) || errors.Is(err, ErrNoReply) {
		return err
	}
	msg := err.Error()
	for _, m := range notFoundMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
		}
	}
	if strings.Contains(msg, noReplyMarker) {
		return fmt.Errorf("%w: %w", ErrNoReply, err)
	}
	return err
}
