// Package notify fans human-readable bot events out to chat sinks.
package notify

import (
	"context"
	"sync"
)

// Level sets the colour/emoji of a message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Notifier delivers a message. Delivery failures are logged, not returned.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

// Nop drops everything.
type Nop struct{}

func (Nop) Notify(context.Context, Level, string) {}

// Multi sends to every sink concurrently and waits for all of them.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, level Level, message string) {
	var wg sync.WaitGroup
	for _, n := range m {
		if n == nil {
			continue
		}
		wg.Add(1)
		go func(n Notifier) {
			defer wg.Done()
			n.Notify(ctx, level, message)
		}(n)
	}
	wg.Wait()
}
