package quality

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"gridledger/internal/eventbus"
)

// DefaultCooldown is the minimum interval between notifications for
// the same entity and finding code.
const DefaultCooldown = 30 * time.Minute

// Clock provides time for cooldown tracking.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Monitor subscribes to aggregation observations, elevates their
// warnings through the checker, and forwards findings to a channel.
// Repeated findings inside the cooldown window are suppressed.
type Monitor struct {
	checker  *Checker
	channel  Channel
	logger   *log.Logger
	clock    Clock
	cooldown time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithCooldown overrides the per-finding cooldown.
func WithCooldown(cooldown time.Duration) MonitorOption {
	return func(m *Monitor) {
		if cooldown > 0 {
			m.cooldown = cooldown
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) MonitorOption {
	return func(m *Monitor) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewMonitor constructs a monitor.
func NewMonitor(checker *Checker, channel Channel, logger *log.Logger, opts ...MonitorOption) (*Monitor, error) {
	if checker == nil {
		return nil, errors.New("quality monitor: nil checker")
	}
	if channel == nil {
		return nil, errors.New("quality monitor: nil channel")
	}
	if logger == nil {
		return nil, errors.New("quality monitor: nil logger")
	}
	monitor := &Monitor{
		checker:  checker,
		channel:  channel,
		logger:   logger,
		clock:    systemClock{},
		cooldown: DefaultCooldown,
		lastSent: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(monitor)
	}
	return monitor, nil
}

// Register subscribes the monitor on the bus.
func (m *Monitor) Register(bus eventbus.EventBus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.EventTypeOf[eventbus.AggregationObserved](), m.handle)
}

func (m *Monitor) handle(ctx context.Context, event any) error {
	observed, ok := event.(eventbus.AggregationObserved)
	if !ok {
		return nil
	}

	findings := m.checker.Evaluate(observed)
	findings = m.filterCooldown(findings)
	if len(findings) == 0 {
		return nil
	}

	report := Report{
		EntityID: observed.EntityID,
		Findings: findings,
		SentAt:   m.clock.Now(),
	}
	if err := m.channel.Send(ctx, report); err != nil {
		// A monitoring failure never propagates into the query path.
		m.logger.Printf("quality: send report for %s: %v", observed.EntityID, err)
	}
	return nil
}

func (m *Monitor) filterCooldown(findings []Finding) []Finding {
	if len(findings) == 0 {
		return nil
	}
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Finding
	for _, finding := range findings {
		key := finding.EntityID + "|" + finding.Code
		if last, ok := m.lastSent[key]; ok && now.Sub(last) < m.cooldown {
			continue
		}
		m.lastSent[key] = now
		out = append(out, finding)
	}
	return out
}
