package ble

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Start launches the connection loop. It keeps reconnecting until Stop.
// Calling Start on a running client does nothing.
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		return
	}
	c.stopped = false
	ctx, cancel := context.WithCancel(context.Background())
	c.ctx, c.cancel = ctx, cancel
	done := make(chan struct{})
	c.loopDone = done
	go c.run(ctx, done)
}

// Stop cancels the connection loop, disconnects from the device and waits for
// the loop to exit. Pending requests are not cancelled: they fail or time out
// on their own.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.cancel()
	c.conn = nil
	c.writeChar = nil
	c.signalConnectedLocked()
	done := c.loopDone
	c.mu.Unlock()

	<-done
}

// WaitForConnected blocks until the client has a live link to the device.
// Fails with ErrNotConnected if the client is stopped.
func (c *Client) WaitForConnected(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			return ErrNotConnected
		}
		if c.conn != nil {
			c.mu.Unlock()
			return nil
		}
		ch := c.connectedCh
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// IsConnected reports whether the client currently has a live link.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// run is the connection loop: connect, serve until the link drops, wait
// RetryDelay, repeat.
func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for ctx.Err() == nil {
		err := c.session(ctx)
		c.setDisconnected()
		if err != nil && ctx.Err() == nil {
			c.handleTransportError(ctx, err)
		}
		if !sleepCtx(ctx, c.opts.RetryDelay) {
			return
		}
	}
}

// session runs a single connection. It returns nil when the link drops and
// an error when it could not be set up.
func (c *Client) session(ctx context.Context) error {
	if !c.enabled {
		if err := c.adapter.Enable(); err != nil {
			return fmt.Errorf("ble: enable adapter: %w", err)
		}
		c.enabled = true
	}

	conn, err := c.adapter.Connect(ctx, c.address)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Disconnect(); err != nil {
			c.log.Debug("[BLE] disconnect failed", "error", err)
		}
	}()

	notifyChar, err := conn.DiscoverCharacteristic(ServiceUUID, NotifyCharUUID)
	if err != nil {
		return fmt.Errorf("ble: discover notify characteristic: %w", err)
	}
	writeChar, err := conn.DiscoverCharacteristic(ServiceUUID, WriteCharUUID)
	if err != nil {
		return fmt.Errorf("ble: discover write characteristic: %w", err)
	}
	if err := notifyChar.Subscribe(c.handleNotification); err != nil {
		return fmt.Errorf("ble: subscribe to notifications: %w", err)
	}

	if !c.setConnected(conn, writeChar) {
		return nil
	}
	c.log.Info("[BLE] connected", "mac", c.address)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		if !conn.IsConnected() {
			c.log.Info("[BLE] connection lost", "mac", c.address)
			return nil
		}
		c.mu.Lock()
		c.signalConnectedLocked()
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// handleTransportError logs err and performs the recovery its class needs.
func (c *Client) handleTransportError(ctx context.Context, err error) {
	err = ClassifyTransportError(err)
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		c.log.Info("[BLE] performing forceful device disconnection", "mac", c.address)
		if c.opts.ForceDisconnector != nil {
			if ferr := c.opts.ForceDisconnector.ForceDisconnect(ctx, c.address); ferr != nil {
				c.log.Debug("[BLE] forceful disconnection failed", "error", ferr)
			}
		}
	case errors.Is(err, ErrNoReply):
	default:
		c.log.Error("[BLE] connection error", "error", err)
	}
}

// setConnected records a live connection and wakes WaitForConnected callers.
// Returns false if the client was stopped in the meantime.
func (c *Client) setConnected(conn Connection, writeChar Characteristic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.conn = conn
	c.writeChar = writeChar
	c.signalConnectedLocked()
	return true
}

// setDisconnected clears the connection record, drops any partial history
// transfer and fails the pending history request. A pending voltage request
// is left to its own timeout.
func (c *Client) setDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = nil
	c.writeChar = nil
	c.assembler.Reset()
	c.completeHistoryLocked(nil, ErrNotConnected)
}

// signalConnectedLocked wakes every WaitForConnected caller so it can
// re-check the connection record (caller must hold mu).
func (c *Client) signalConnectedLocked() {
	close(c.connectedCh)
	c.connectedCh = make(chan struct{})
}
