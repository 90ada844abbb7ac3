package ble

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
		noReply  bool
	}{
		{"bleak style", errors.New("Device with address AA:BB:CC:DD:EE:FF was not found."), true, false},
		{"bluez unknown object", errors.New("org.freedesktop.DBus.Error.UnknownObject: Method \"Connect\" doesn't exist"), true, false},
		{"bluez does not exist", errors.New("org.bluez.Error.DoesNotExist: Does Not Exist"), true, false},
		{"no reply", errors.New("org.freedesktop.DBus.Error.NoReply: Did not receive a reply"), false, true},
		{"other", errors.New("le-connection-abort-by-local"), false, false},
		{"missing characteristic is not a missing device", errors.New("ble: characteristic 0000fff4 missing"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTransportError(tt.err)
			assert.Equal(t, tt.notFound, errors.Is(got, ErrDeviceNotFound))
			assert.Equal(t, tt.noReply, errors.Is(got, ErrNoReply))
			assert.ErrorIs(t, got, tt.err, "original error must stay in the chain")
		})
	}
}

func TestClassifyTransportErrorNil(t *testing.T) {
	assert.NoError(t, ClassifyTransportError(nil))
}

func TestClassifyTransportErrorIdempotent(t *testing.T) {
	once := ClassifyTransportError(errors.New("Device was not found"))
	assert.Same(t, once, ClassifyTransportError(once))
}
