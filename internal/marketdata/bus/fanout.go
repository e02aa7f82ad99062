// Package bus broadcasts finalized bars to multiple consumers.
package bus

import (
	"context"
	"log"
	"sync"

	"adx-systemv1/internal/model"
)

// FanOut broadcasts bars from a single input channel to N output channels.
// If an output channel is full, the bar is dropped for that consumer so a
// slow consumer never blocks the pipeline.
type FanOut struct {
	mu      sync.RWMutex
	outputs []chan model.Bar
	bufSize int

	// OnDrop is called with the slow consumer's 0-based index. Optional.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{
		bufSize: outputBufferSize,
	}
}

// Subscribe creates and returns a new output channel.
func (f *FanOut) Subscribe() <-chan model.Bar {
	ch := make(chan model.Bar, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, ch)
	f.mu.Unlock()
	return ch
}

// Run reads from the input channel and fans out to all subscribers.
// Blocks until ctx is cancelled or input is closed.
func (f *FanOut) Run(ctx context.Context, input <-chan model.Bar) {
	defer func() {
		f.mu.RLock()
		for _, ch := range f.outputs {
			close(ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, ch := range f.outputs {
				select {
				case ch <- bar:
				default:
					if f.OnDrop != nil {
						f.OnDrop(i)
					} else {
						log.Printf("[bus] output channel %d full, dropping bar %s", i, bar.Symbol)
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}

// ChannelStat reports (length, capacity) for a subscriber channel.
type ChannelStat struct {
	Len int
	Cap int
}

// ChannelStats returns saturation stats for each subscriber channel.
func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, ch := range f.outputs {
		stats[i] = ChannelStat{Len: len(ch), Cap: cap(ch)}
	}
	return stats
}
