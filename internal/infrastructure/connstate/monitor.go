package connstate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// State of a cache store connection.
type State int32

const (
	Connecting State = iota
	Ready
	Reconnecting
	Disconnected
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Reconnecting:
		return "reconnecting"
	case Disconnected:
		return "disconnected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// ProbeFunc checks the connection once.
type ProbeFunc func(ctx context.Context) error

type Config struct {
	// Interval between background probes. Zero disables the background loop.
	Interval time.Duration
	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration
	// MaxReconnectFailures is the number of failed probes after which a
	// reconnecting store is considered disconnected.
	MaxReconnectFailures int
}

const (
	defaultProbeTimeout         = 2 * time.Second
	defaultMaxReconnectFailures = 3
)

// Monitor tracks a store's connectivity. Reads are lock-free so callers can
// check readiness before every operation.
type Monitor struct {
	name        string
	probe       ProbeFunc
	interval    time.Duration
	timeout     time.Duration
	maxFailures int
	logger      *logrus.Logger

	state    atomic.Int32
	mu       sync.Mutex
	failures int
	started  bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewMonitor(name string, probe ProbeFunc, cfg Config, logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.New()
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	maxFailures := cfg.MaxReconnectFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxReconnectFailures
	}
	m := &Monitor{
		name:        name,
		probe:       probe,
		interval:    cfg.Interval,
		timeout:     timeout,
		maxFailures: maxFailures,
		logger:      logger,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	m.state.Store(int32(Connecting))
	return m
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

func (m *Monitor) IsReady() bool {
	return m.State() == Ready
}

// Start runs the initial probe and launches the background loop. The initial
// probe error is returned for logging only; the loop keeps trying. Later calls
// only probe.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	first := !m.started
	m.started = true
	m.mu.Unlock()

	err := m.Probe(ctx)
	if !first {
		return err
	}
	if m.interval > 0 {
		go m.loop()
	} else {
		close(m.done)
	}
	return err
}

// Probe runs one check and applies the resulting transition.
func (m *Monitor) Probe(ctx context.Context) error {
	if m.State() == Closed {
		return nil
	}
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.probe(pctx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.State()
	if current == Closed {
		return err
	}
	if err == nil {
		m.failures = 0
		m.transition(current, Ready, nil)
		return nil
	}

	m.failures++
	switch current {
	case Connecting:
		m.transition(current, Disconnected, err)
	case Ready:
		m.transition(current, Reconnecting, err)
	case Reconnecting:
		if m.failures >= m.maxFailures {
			m.transition(current, Disconnected, err)
		}
	}
	return err
}

// ReportFailure lets a store flag a network error seen during an operation.
func (m *Monitor) ReportFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current := m.State(); current == Ready {
		m.failures = 1
		m.transition(current, Reconnecting, err)
	}
}

// Stop halts the background loop and marks the connection closed.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.transition(m.State(), Closed, nil)
		if !m.started {
			m.started = true
			close(m.done)
		}
		m.mu.Unlock()
		close(m.stop)
	})
	<-m.done
}

func (m *Monitor) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			_ = m.Probe(context.Background())
		}
	}
}

// transition must be called with mu held.
func (m *Monitor) transition(from, to State, cause error) {
	if from == to {
		return
	}
	m.state.Store(int32(to))
	entry := m.logger.WithFields(logrus.Fields{"store": m.name, "from": from.String(), "to": to.String()})
	if cause != nil {
		entry = entry.WithError(cause)
	}
	switch to {
	case Ready:
		entry.Info("cache connection ready")
	case Reconnecting:
		entry.Warn("cache connection lost; reconnecting")
	case Disconnected:
		entry.Warn("cache unavailable; continuing without caching")
	case Closed:
		entry.Info("cache connection closed")
	}
}
