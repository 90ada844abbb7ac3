// Package publish delivers voltage readings to their consumers: the console
// or an MQTT broker.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Publisher delivers a single voltage reading.
type Publisher interface {
	Publish(ctx context.Context, voltage float64) error
}

// FormatVoltage renders a reading the way every publisher emits it.
func FormatVoltage(voltage float64) string {
	return fmt.Sprintf("%.2f", voltage)
}

// ConsolePublisher writes one reading per line.
type ConsolePublisher struct {
	mu sync.Mutex
	w  io.Writer
}

// Compile-time interface satisfaction check.
var _ Publisher = (*ConsolePublisher)(nil)

// NewConsolePublisher creates a ConsolePublisher writing to w, or stdout
// if w is nil.
func NewConsolePublisher(w io.Writer) *ConsolePublisher {
	if w == nil {
		w = os.Stdout
	}
	return &ConsolePublisher{w: w}
}

// Publish prints the voltage.
func (p *ConsolePublisher) Publish(_ context.Context, voltage float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintln(p.w, FormatVoltage(voltage)); err != nil {
		return fmt.Errorf("publish: write console: %w", err)
	}
	return nil
}
