// Package hotplug watches udev for display changes (monitor plugged,
// unplugged or re-modeset) and re-runs the engine, which does not pick up new
// outputs on its own.
package hotplug

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"lwectl/internal/logging"
)

// DefaultSubsystem is the kernel subsystem that reports connector changes.
const DefaultSubsystem = "drm"

// Handler reacts to a settled display change.
type Handler func(ctx context.Context) error

// Monitor listens for udev netlink events and calls the handler once per
// burst of display events.
type Monitor struct {
	subsystem string
	debounce  time.Duration
	logger    *slog.Logger
	handler   Handler

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	timer   *time.Timer
	running bool
	ctx     context.Context
}

// New returns a monitor for subsystem. An empty subsystem means drm.
func New(subsystem string, debounce time.Duration, logger *slog.Logger, handler Handler) *Monitor {
	subsystem = strings.TrimSpace(subsystem)
	if subsystem == "" {
		subsystem = DefaultSubsystem
	}
	if debounce <= 0 {
		debounce = 1500 * time.Millisecond
	}
	return &Monitor{
		subsystem: subsystem,
		debounce:  debounce,
		logger:    logging.NewComponentLogger(logger, "hotplug"),
		handler:   handler,
	}
}

// Start connects to the udev netlink socket. A connect failure is logged and
// leaves the monitor stopped; it is not returned.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; display changes will not re-run the engine", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'lwectl run' after changing monitors"),
			logging.String(logging.FieldImpact, "automatic restart on display change unavailable"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true
	m.ctx = ctx
	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("display monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
		logging.String("subsystem", m.subsystem),
	)
	return nil
}

// Stop shuts the monitor down and drops any pending trigger.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.logger.Info("display monitor stopped", logging.String(logging.FieldEventType, "hotplug_monitor_stopped"))
}

// Running reports whether the monitor is connected.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}
	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "display changes may be missed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=<subsystem> with ACTION=change|add|remove.
func (m *Monitor) buildMatcher() netlink.Matcher {
	action := "change|add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": m.subsystem,
		},
	})
	return rules
}

// handleEvent restarts the debounce window; the handler runs once the
// events stop arriving.
func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	if uevent.Env["SUBSYSTEM"] != m.subsystem {
		m.logger.Debug("ignoring event for other subsystem", logging.String("subsystem", uevent.Env["SUBSYSTEM"]))
		return
	}
	m.logger.Debug("display event",
		logging.String("action", string(uevent.Action)),
		logging.String("kobj", uevent.KObj),
		logging.String("hotplug", uevent.Env["HOTPLUG"]),
	)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, func() { m.fire(ctx) })
}

func (m *Monitor) fire(ctx context.Context) {
	m.mu.Lock()
	m.timer = nil
	m.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	m.logger.Info("display configuration changed; re-running engine",
		logging.String(logging.FieldEventType, "hotplug_display_changed"),
	)
	if m.handler == nil {
		return
	}
	if err := m.handler(ctx); err != nil {
		logging.WarnWithContext(m.logger, "re-run after display change failed", "hotplug_handler_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'lwectl run' manually"),
			logging.String(logging.FieldImpact, "wallpaper may not cover the new display"),
		)
	}
}
