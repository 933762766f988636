package keys

import (
	"fmt"
	"log/slog"
	"sync"

	"lwectl/internal/logging"
)

// HandlerFunc performs one action.
type HandlerFunc func() error

// Dispatcher runs the handler bound to a matched chord on its own goroutine
// so the input loop never waits on an action.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers map[Action]HandlerFunc
	wg       sync.WaitGroup
}

// NewDispatcher returns a dispatcher matching against registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "keys"),
		handlers: make(map[Action]HandlerFunc),
	}
}

// Handle registers fn for action, replacing any previous handler.
func (d *Dispatcher) Handle(action Action, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = fn
}

// Dispatch matches the chord and starts its handler. It reports whether a
// handler was started.
func (d *Dispatcher) Dispatch(key string, mods []Modifier) bool {
	action, ok := d.registry.Match(key, mods)
	if !ok {
		return false
	}
	return d.Trigger(action)
}

// Trigger starts the handler for action directly.
func (d *Dispatcher) Trigger(action Action) bool {
	d.mu.RLock()
	fn := d.handlers[action]
	d.mu.RUnlock()
	if fn == nil {
		d.logger.Debug("no handler for action", logging.String("action", string(action)))
		return false
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logging.ErrorWithContext(d.logger, "keybinding action panicked", "keybinding_panic",
					logging.String("action", string(action)),
					logging.String("panic", fmt.Sprint(rec)),
				)
			}
		}()
		d.logger.Debug("keybinding action started", logging.String("action", string(action)))
		if err := fn(); err != nil {
			logging.WarnWithContext(d.logger, "keybinding action failed", "keybinding_action_failed",
				logging.String("action", string(action)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "action had no effect"),
			)
		}
	}()
	return true
}

// Wait blocks until every started handler has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
