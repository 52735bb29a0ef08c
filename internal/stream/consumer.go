// Package stream implements consumption of orchestrator event streams.
//
// consumer.go - Incremental frame reader
//
// This file contains:
// - Consumer: reads a streaming response body line by line, decodes
//   frames into normalized events, and accumulates the answer text
// - A read watchdog that closes the body when the gap between reads
//   exceeds the stall timeout
//
// The reader splits on newlines and lets bufio carry partial lines
// across chunk boundaries, so a frame split between two network reads
// still decodes exactly once. Malformed lines are logged, counted, and
// dropped; they never end the stream.

package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/HyphaGroup/gevulot/internal/bridge"
	"github.com/HyphaGroup/gevulot/internal/logger"
	"github.com/HyphaGroup/gevulot/internal/metrics"
)

const (
	// DefaultStallTimeout bounds the silence between successive reads
	DefaultStallTimeout = 120 * time.Second

	// NoStallTimeout disables the read watchdog
	NoStallTimeout = time.Duration(-1)

	defaultBuffer = 64
)

// Options configures a Consumer
type Options struct {
	// StallTimeout bounds the gap between reads; zero means
	// DefaultStallTimeout, NoStallTimeout disables the watchdog
	StallTimeout time.Duration

	// Buffer is the Events channel capacity; 0 uses a small default
	Buffer int
}

// Consumer decodes one streaming response body into ordered events.
//
// Events delivers every decoded event, including the terminal
// completion or error. Done closes when reading ends; Final then
// returns the answer text and how the stream ended. The text is best
// effort when the error is non-nil.
type Consumer struct {
	body  io.ReadCloser
	stall time.Duration

	events chan *bridge.StreamEvent
	done   chan struct{}

	cancel    context.CancelFunc
	closeOnce sync.Once

	mu        sync.Mutex
	acc       strings.Builder
	final     string
	err       error
	completed bool
	stalled   bool
	malformed int
}

// Consume starts reading body and returns immediately. The consumer
// owns body and closes it when reading ends. Reading stops at the first
// completion or error frame, at end of body, on stall, or on Close.
func Consume(ctx context.Context, body io.ReadCloser, opts Options) *Consumer {
	stall := opts.StallTimeout
	if stall == 0 {
		stall = DefaultStallTimeout
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Consumer{
		body:   body,
		stall:  stall,
		events: make(chan *bridge.StreamEvent, buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go c.run(ctx)
	return c
}

// Events delivers decoded events in wire order. The channel closes when
// the stream ends; consumers must drain it to keep the reader moving.
func (c *Consumer) Events() <-chan *bridge.StreamEvent {
	return c.events
}

// Done closes when reading has ended for any reason
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

// Final returns the answer text and how the stream ended. Valid once
// Done is closed.
func (c *Consumer) Final() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.final, c.err
}

// Malformed returns the number of dropped lines
func (c *Consumer) Malformed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.malformed
}

// Wait blocks until the stream ends or ctx expires
func (c *Consumer) Wait(ctx context.Context) (string, error) {
	select {
	case <-c.done:
		return c.Final()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops reading and releases the body. Safe to call repeatedly
// and after the stream has already ended.
func (c *Consumer) Close() {
	c.closeOnce.Do(c.cancel)
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)
	defer c.cancel()
	defer c.body.Close()

	// Closing the body is the only way to interrupt a blocked Read.
	go func() {
		<-ctx.Done()
		c.body.Close()
	}()

	var watchdog *time.Timer
	if c.stall > 0 {
		watchdog = time.AfterFunc(c.stall, func() {
			c.mu.Lock()
			c.stalled = true
			c.mu.Unlock()
			c.body.Close()
		})
		defer watchdog.Stop()
	}

	reader := bufio.NewReader(c.body)
	for {
		line, err := reader.ReadString('\n')
		if watchdog != nil {
			watchdog.Reset(c.stall)
		}

		if len(line) > 0 {
			if stop := c.processLine(ctx, line); stop {
				return
			}
		}

		if err != nil {
			c.finishFromReadError(ctx, err)
			return
		}
	}
}

// processLine handles one line and reports whether reading should stop
func (c *Consumer) processLine(ctx context.Context, raw string) bool {
	line := strings.TrimSpace(raw)
	if line == "" {
		return false
	}
	payload, ok := bridge.StripFramePrefix(line)
	if !ok || payload == "" {
		// Keepalives and comments carry no frame prefix.
		return false
	}

	events, err := bridge.DecodeFrame([]byte(payload))
	if err != nil {
		c.mu.Lock()
		c.malformed++
		count := c.malformed
		c.mu.Unlock()
		metrics.RecordMalformedLine()
		logger.Error("stream: dropped malformed line (%d so far): %v", count, err)
		return false
	}

	for _, ev := range events {
		metrics.RecordStreamEvent(string(ev.Type))
		c.apply(ev)
		if !c.deliver(ctx, ev) {
			c.markCancelled(ctx)
			return true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// apply folds one event into the accumulator and terminal state
func (c *Consumer) apply(ev *bridge.StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case bridge.StreamEventTokenDelta:
		c.acc.WriteString(ev.Text)
	case bridge.StreamEventCompletion:
		c.completed = true
		if ev.FinalText != "" {
			c.final = ev.FinalText
		} else {
			c.final = c.acc.String()
		}
	case bridge.StreamEventError:
		c.completed = true
		c.final = c.acc.String()
		c.err = &bridge.JobFailedError{Reason: ev.Text}
	}
}

func (c *Consumer) markCancelled(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completed {
		return
	}
	c.completed = true
	c.final = c.acc.String()
	c.err = ctx.Err()
}

// finishFromReadError settles the final state when the body ends before
// a terminal frame. A clean end of stream synthesizes a best-effort
// completion from the accumulated text.
func (c *Consumer) finishFromReadError(ctx context.Context, readErr error) {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return
	}
	c.completed = true
	c.final = c.acc.String()

	var synthesize bool
	switch {
	case c.stalled:
		c.err = &bridge.TimeoutError{Op: "stream", Elapsed: c.stall}
	case ctx.Err() != nil:
		c.err = ctx.Err()
	case errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF):
		synthesize = true
	default:
		c.err = &bridge.NetworkError{Op: "stream", Err: readErr}
	}
	final := c.final
	c.mu.Unlock()

	if synthesize {
		logger.Info("stream: body ended without completion, finalizing with %d accumulated bytes", len(final))
		ev := &bridge.StreamEvent{
			Type:      bridge.StreamEventCompletion,
			FinalText: final,
			Timestamp: time.Now().UnixMilli(),
		}
		metrics.RecordStreamEvent(string(ev.Type))
		c.deliver(ctx, ev)
	}
}

// deliver sends an event, giving up only on cancellation
func (c *Consumer) deliver(ctx context.Context, ev *bridge.StreamEvent) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
