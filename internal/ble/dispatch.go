package ble

import (
	"context"
	"encoding/hex"

	blecrypto "github.com/KrystianD/bm2-battery-monitor/internal/ble/crypto"
	"github.com/KrystianD/bm2-battery-monitor/internal/ble/protocol"
)

// handleNotification decrypts one notification and routes it. It is the
// only place inbound packets touch client state, and it runs under mu, so
// packets are handled one at a time in delivery order. Voltage and count
// packets are recognized even during a history transfer; only packets with
// no known prefix are history data.
func (c *Client) handleNotification(data []byte) {
	packet, err := blecrypto.Decrypt(data)
	if err != nil {
		c.log.Warn("[BLE] dropping undecryptable packet", "error", err, "len", len(data))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch protocol.Classify(packet) {
	case protocol.PacketVoltageReading:
		v, err := protocol.ParseVoltage(packet)
		if err != nil {
			c.log.Warn("[BLE] bad voltage reading", "error", err)
			return
		}
		c.resolveVoltageLocked(v)

	case protocol.PacketHistoryCount:
		count, err := protocol.ParseHistoryCount(packet)
		if err != nil {
			c.log.Warn("[BLE] bad history count", "error", err)
			return
		}
		c.log.Debug("[BLE] history count", "records", count)
		if count == 0 {
			c.completeHistoryLocked([]protocol.HistoryReading{}, nil)
			return
		}
		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		go c.requestHistoryTransfer(ctx, count)

	case protocol.PacketStartHistory:
		c.assembler.Start()

	case protocol.PacketEndHistory:
		if !c.assembler.Receiving() {
			c.log.Info("[BLE] unknown packet", "data", hex.EncodeToString(packet))
			return
		}
		readings, err := c.assembler.Finish(packet, c.opts.Now())
		if err != nil {
			c.log.Warn("[BLE] bad end of history", "error", err)
			return
		}
		c.log.Debug("[BLE] history received", "records", len(readings))
		c.completeHistoryLocked(readings, nil)

	default:
		if c.assembler.Receiving() {
			c.assembler.Append(packet)
			return
		}
		c.log.Info("[BLE] unknown packet", "data", hex.EncodeToString(packet))
	}
}

// requestHistoryTransfer asks the device to stream count records. The BM2
// ignores a command sent right after the count response, hence the delay.
func (c *Client) requestHistoryTransfer(ctx context.Context, count uint32) {
	if !sleepCtx(ctx, c.opts.HistoryTransferDelay) {
		return
	}
	if err := c.send(protocol.HistoryTransferRequest(count)); err != nil {
		c.log.Warn("[BLE] history transfer request failed", "error", err)
	}
}
