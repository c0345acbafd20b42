package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
)

const (
	// DefaultReadyTTL is how long a Ready verdict is trusted by EnsureReady.
	DefaultReadyTTL = 30 * time.Second

	// DefaultMinKeywordEmbeddings is the number of embedded keywords search needs.
	DefaultMinKeywordEmbeddings = 1

	// DefaultProbeDimensions is the length of the vector used to probe functions.
	DefaultProbeDimensions = 1536
)

// Transition is a single state change of the machine.
type Transition struct {
	From core.ReadinessState
	To   core.ReadinessState
	At   time.Time
	Err  error // set when the transition was caused by a failure
}

// Machine is the single source of truth for search readiness.
// It is safe for concurrent use.
type Machine struct {
	schema               storage.SchemaInspector
	logger               *slog.Logger
	now                  func() time.Time
	readyTTL             time.Duration
	minKeywordEmbeddings int
	probeDimensions      int

	mu      sync.Mutex
	state   core.ReadinessState
	last    *core.ReadinessReport
	readyAt time.Time
	subs    []chan Transition
	closed  bool

	// setupMu serializes RunSetup calls.
	setupMu sync.Mutex
}

// Option configures a Machine.
type Option func(*Machine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger.With("component", "readiness")
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		m.now = now
		return nil
	}
}

// WithReadyTTL sets how long EnsureReady trusts a Ready verdict.
// Zero re-checks on every call.
func WithReadyTTL(ttl time.Duration) Option {
	return func(m *Machine) error {
		if ttl < 0 {
			return fmt.Errorf("ready ttl cannot be negative: %v", ttl)
		}
		m.readyTTL = ttl
		return nil
	}
}

// WithMinKeywordEmbeddings sets how many embedded keywords are needed for Ready.
func WithMinKeywordEmbeddings(n int) Option {
	return func(m *Machine) error {
		if n < 0 {
			return fmt.Errorf("min keyword embeddings cannot be negative: %d", n)
		}
		m.minKeywordEmbeddings = n
		return nil
	}
}

// WithProbeDimensions sets the probe vector length. It should match the
// dimension of the stored embeddings.
func WithProbeDimensions(dims int) Option {
	return func(m *Machine) error {
		if dims <= 0 {
			return fmt.Errorf("probe dimensions must be positive: %d", dims)
		}
		m.probeDimensions = dims
		return nil
	}
}

// NewMachine creates a readiness machine over a schema inspector.
func NewMachine(schema storage.SchemaInspector, opts ...Option) (*Machine, error) {
	if schema == nil {
		return nil, ErrSchemaRequired
	}
	m := &Machine{
		schema:               schema,
		logger:               slog.Default().With("component", "readiness"),
		now:                  time.Now,
		readyTTL:             DefaultReadyTTL,
		minKeywordEmbeddings: DefaultMinKeywordEmbeddings,
		probeDimensions:      DefaultProbeDimensions,
		state:                core.StateChecking,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// State returns the current state.
func (m *Machine) State() core.ReadinessState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastReport returns the most recent report, or nil before the first check.
func (m *Machine) LastReport() *core.ReadinessReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Subscribe returns a channel receiving every subsequent transition.
// Sends never block: a subscriber that falls behind misses transitions.
func (m *Machine) Subscribe(buffer int) (<-chan Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrMachineClosed
	}
	ch := make(chan Transition, buffer)
	m.subs = append(m.subs, ch)
	return ch, nil
}

// Close closes every subscriber channel.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
}

// Invalidate drops the cached Ready verdict so the next EnsureReady re-checks.
func (m *Machine) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readyAt = time.Time{}
}

// CheckReadiness inspects the store and returns a fresh report.
// Infrastructure failures return a RepositoryUnavailable error and leave the
// machine NotReady.
func (m *Machine) CheckReadiness(ctx context.Context) (*core.ReadinessReport, error) {
	const op = "check_readiness"
	m.transition(core.StateChecking, nil)

	report, err := m.inspect(ctx)
	if err != nil {
		m.logger.Error("readiness check failed", "err", err)
		m.transition(core.StateNotReady, err)
		return nil, core.RepositoryUnavailable(op, err)
	}

	m.mu.Lock()
	m.last = report
	if report.Ready() {
		m.readyAt = report.CheckedAt
	} else {
		m.readyAt = time.Time{}
	}
	m.mu.Unlock()

	m.logger.Debug("readiness checked", "state", report.State, "recommendations", len(report.Recommendations))
	m.transition(report.State, nil)
	return report, nil
}

// EnsureReady returns the cached report while a Ready verdict is fresh and
// otherwise re-checks. A store that is not ready yields a NotReady error with
// the report attached.
func (m *Machine) EnsureReady(ctx context.Context) (*core.ReadinessReport, error) {
	m.mu.Lock()
	if m.state == core.StateReady && m.last != nil && !m.readyAt.IsZero() &&
		m.now().Sub(m.readyAt) < m.readyTTL {
		report := m.last
		m.mu.Unlock()
		return report, nil
	}
	m.mu.Unlock()

	report, err := m.CheckReadiness(ctx)
	if err != nil {
		return nil, err
	}
	if !report.Ready() {
		return report, core.NotReady("ensure_ready", report)
	}
	return report, nil
}

// RunSetup installs missing search functions, probes each required function and
// re-checks readiness. The returned report reflects the final check; it may still
// be NotReady when, for example, no embeddings exist yet.
func (m *Machine) RunSetup(ctx context.Context) (*core.ReadinessReport, error) {
	const op = "run_setup"
	m.setupMu.Lock()
	defer m.setupMu.Unlock()

	m.transition(core.StateSetup, nil)
	available, err := m.schema.FunctionsAvailable(ctx, storage.RequiredFunctions)
	if err != nil {
		return nil, m.setupFailed(op, fmt.Errorf("inspect functions: %w", err))
	}
	var missing []string
	for _, name := range storage.RequiredFunctions {
		if !available[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		m.logger.Info("installing search functions", "functions", missing)
		if err := m.schema.InstallFunctions(ctx, missing); err != nil {
			return nil, m.setupFailed(op, fmt.Errorf("install functions: %w", err))
		}
	}

	m.transition(core.StateTesting, nil)
	probe := make([]float32, m.probeDimensions)
	probe[0] = 1
	for _, name := range storage.RequiredFunctions {
		if err := m.schema.ProbeFunction(ctx, name, probe); err != nil {
			return nil, m.setupFailed(op, fmt.Errorf("probe %s: %w", name, err))
		}
	}

	m.transition(core.StateComplete, nil)
	m.logger.Info("setup complete")
	return m.CheckReadiness(ctx)
}

func (m *Machine) setupFailed(op string, cause error) error {
	m.logger.Error("setup failed", "err", cause)

	m.mu.Lock()
	report := &core.ReadinessReport{
		State:           core.StateNotReady,
		SearchFunctions: map[string]bool{},
		Extensions:      []core.Extension{},
		Recommendations: []string{fmt.Sprintf("setup failed: %v", cause)},
		CheckedAt:       m.now().UTC(),
	}
	if m.last != nil {
		report.SearchFunctions = m.last.SearchFunctions
		report.Extensions = m.last.Extensions
		report.EmbeddingCounts = m.last.EmbeddingCounts
		report.TotalCounts = m.last.TotalCounts
		report.Recommendations = append(report.Recommendations, m.last.Recommendations...)
	}
	m.last = report
	m.readyAt = time.Time{}
	m.mu.Unlock()

	m.transition(core.StateNotReady, cause)
	return core.SetupFailed(op, cause, report)
}

func (m *Machine) inspect(ctx context.Context) (*core.ReadinessReport, error) {
	functions, err := m.schema.FunctionsAvailable(ctx, storage.RequiredFunctions)
	if err != nil {
		return nil, fmt.Errorf("inspect functions: %w", err)
	}
	extensions, err := m.schema.Extensions(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspect extensions: %w", err)
	}
	embedded, total, err := m.schema.EmbeddingCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}
	if extensions == nil {
		extensions = []core.Extension{}
	}

	report := &core.ReadinessReport{
		SearchFunctions: make(map[string]bool, len(storage.RequiredFunctions)),
		Extensions:      extensions,
		EmbeddingCounts: embedded,
		TotalCounts:     total,
		Recommendations: []string{},
		CheckedAt:       m.now().UTC(),
	}

	ready := true
	for _, name := range storage.RequiredFunctions {
		report.SearchFunctions[name] = functions[name]
		if !functions[name] {
			ready = false
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("install search function %s (run setup)", name))
		}
	}

	for _, name := range m.schema.RequiredExtensions() {
		if !slices.ContainsFunc(extensions, func(e core.Extension) bool { return e.Name == name }) {
			ready = false
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("install the %s extension", name))
		}
	}

	if embedded.Keywords < m.minKeywordEmbeddings {
		ready = false
		if total.Keywords == 0 {
			report.Recommendations = append(report.Recommendations,
				"add keyword variations before enabling semantic search")
		} else {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("populate embeddings for %d keyword records", total.Keywords-embedded.Keywords))
		}
	}
	if missing := total.Posts - embedded.Posts; missing > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("populate embeddings for %d content posts", missing))
	}

	report.State = core.StateNotReady
	if ready {
		report.State = core.StateReady
	}
	return report, nil
}

func (m *Machine) transition(to core.ReadinessState, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.state
	m.state = to
	t := Transition{From: from, To: to, At: m.now().UTC(), Err: cause}
	for _, ch := range m.subs {
		select {
		case ch <- t:
		default:
		}
	}
}
