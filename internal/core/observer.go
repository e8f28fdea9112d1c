package core

import (
	"context"
	"log/slog"
	"time"
)

// Stage identifies which part of the core emitted an event.
type Stage string

const (
	StageTransform Stage = "transform"
	StageValidate  Stage = "validate"
)

// Event is one structured progress notification from a transform step or check.
type Event struct {
	Stage   Stage
	Step    string
	Status  Status // empty for transform steps
	Message string
	Attrs   []any // slog-style key/value pairs
	Time    time.Time
}

// Observer receives progress events. Observers must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// discard is used when no observer is configured.
var discard = ObserverFunc(func(Event) {})

// LogObserver writes every event to logger. FAILED checks are logged at warn level.
func LogObserver(logger *slog.Logger) Observer {
	return ObserverFunc(func(e Event) {
		args := make([]any, 0, len(e.Attrs)+6)
		args = append(args, "stage", string(e.Stage), "step", e.Step)
		if e.Status != "" {
			args = append(args, "status", string(e.Status))
		}
		args = append(args, e.Attrs...)

		level := slog.LevelInfo
		if e.Status == StatusFailed {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, e.Message, args...)
	})
}

// MultiObserver fans events out to several observers in order.
func MultiObserver(observers ...Observer) Observer {
	return ObserverFunc(func(e Event) {
		for _, o := range observers {
			if o != nil {
				o.Observe(e)
			}
		}
	})
}
