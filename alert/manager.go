package alert

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nhbchain/riskengine/observability/metrics"
	"github.com/nhbchain/riskengine/riskerr"
)

const shardCount = 64

type escalationState struct {
	currentLevel     Level
	hasAlert         bool
	activeAlertIdx   int // index into Manager.log
	lastTransitionAt time.Time
	missedSweeps     int
}

// Manager is the escalation state machine and append-only alert log. It
// shards per-position state across a fixed set of mutexes so alert
// emission serializes per position without a single global lock (spec
// §5's "Alert Manager shard keyed by position id").
type Manager struct {
	thresholds Thresholds
	logMu      sync.Mutex
	log        []Alert
	counter    atomic.Uint64

	stateMu sync.Mutex
	state   map[uuid.UUID]*escalationState
	shards  [shardCount]sync.Mutex

	audit  *lumberjack.Logger
	logger *slog.Logger
}

// New constructs a Manager. auditPath, when non-empty, mirrors every
// emitted alert as an append-only JSON-lines record through a rotating
// lumberjack sink, giving the in-memory log a durable audit trail.
func New(thresholds Thresholds, auditPath string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		thresholds: thresholds,
		state:      make(map[uuid.UUID]*escalationState),
		logger:     logger,
	}
	if auditPath != "" {
		m.audit = &lumberjack.Logger{
			Filename:   auditPath,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	return m
}

func (m *Manager) shard(id uuid.UUID) *sync.Mutex {
	var h byte
	for _, b := range id {
		h ^= b
	}
	return &m.shards[int(h)%shardCount]
}

func (m *Manager) stateFor(id uuid.UUID) *escalationState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	s, ok := m.state[id]
	if !ok {
		s = &escalationState{currentLevel: LevelInfo}
		m.state[id] = s
	}
	return s
}

// Evaluate classifies hf into an escalation level for positionID and
// emits at most one Alert following the monotone-escalation / resolve-
// on-recovery rules in spec §4.4 step 3. It returns (alert, true) when
// a new alert was emitted, or (Alert{}, false) when the level held
// steady and only the last-seen timestamp moved.
func (m *Manager) Evaluate(positionID uuid.UUID, hf float64) (Alert, bool) {
	shard := m.shard(positionID)
	shard.Lock()
	defer shard.Unlock()

	state := m.stateFor(positionID)
	newLevel := m.thresholds.Classify(hf)
	now := time.Now()

	switch {
	case newLevel == state.currentLevel:
		state.lastTransitionAt = now
		return Alert{}, false

	case newLevel > state.currentLevel:
		alert := m.appendLocked(positionID, newLevel, hf, Recommendations(newLevel))
		state.currentLevel = newLevel
		state.hasAlert = true
		state.lastTransitionAt = now
		return alert, true

	default: // newLevel < state.currentLevel: recovery
		if state.hasAlert {
			m.resolveActiveLocked(state)
		}
		alert := m.appendLocked(positionID, LevelInfo, hf, RecoveryRecommendation())
		state.currentLevel = newLevel
		state.hasAlert = true
		state.lastTransitionAt = now
		return alert, true
	}
}

func (m *Manager) appendLocked(positionID uuid.UUID, level Level, hf float64, recommendations []string) Alert {
	id := m.counter.Add(1)
	threshold := m.thresholdFor(level)
	alert := Alert{
		ID:              id,
		PositionID:      positionID,
		Level:           level,
		CurrentHF:       hf,
		ThresholdHF:     threshold,
		Recommendations: recommendations,
		CreatedAt:       time.Now(),
	}

	m.logMu.Lock()
	idx := len(m.log)
	m.log = append(m.log, alert)
	m.logMu.Unlock()

	m.stateMu.Lock()
	if s, ok := m.state[positionID]; ok {
		s.activeAlertIdx = idx
	}
	m.stateMu.Unlock()

	metrics.Monitor().ObserveAlertEmitted(level.String())
	m.writeAudit(alert)
	return alert
}

func (m *Manager) resolveActiveLocked(state *escalationState) {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	if state.activeAlertIdx < len(m.log) {
		m.log[state.activeAlertIdx].Resolved = true
	}
}

func (m *Manager) thresholdFor(level Level) float64 {
	switch level {
	case LevelInfo:
		return m.thresholds.Info
	case LevelWarning:
		return m.thresholds.Warning
	case LevelCritical:
		return m.thresholds.Critical
	default:
		return m.thresholds.AlreadyLiquidatable
	}
}

// StaleData emits a Warning-level alert when a position's price
// becomes unavailable for too many consecutive sweeps (spec §4.4
// "Failure semantics").
func (m *Manager) StaleData(positionID uuid.UUID, maxMissedSweeps int) (Alert, bool) {
	shard := m.shard(positionID)
	shard.Lock()
	defer shard.Unlock()
	state := m.stateFor(positionID)
	state.missedSweeps++
	if state.missedSweeps <= maxMissedSweeps {
		return Alert{}, false
	}
	if state.hasAlert && state.currentLevel == LevelWarning {
		m.logMu.Lock()
		existing := m.log[state.activeAlertIdx]
		m.logMu.Unlock()
		return existing, false
	}
	alert := m.appendLocked(positionID, LevelWarning, 0, []string{"Price data stale: unable to compute health factor."})
	state.currentLevel = LevelWarning
	state.hasAlert = true
	return alert, true
}

// ResetMissedSweeps clears the missed-sweep counter once a fresh price
// is observed for the position's tokens.
func (m *Manager) ResetMissedSweeps(positionID uuid.UUID) {
	shard := m.shard(positionID)
	shard.Lock()
	defer shard.Unlock()
	m.stateFor(positionID).missedSweeps = 0
}

// Acknowledge marks an alert as acknowledged by its log id.
func (m *Manager) Acknowledge(alertID uint64) error {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	for i := range m.log {
		if m.log[i].ID == alertID {
			m.log[i].Acknowledged = true
			return nil
		}
	}
	return riskerr.New(riskerr.KindPositionNotFound, "alert not found")
}

// Resolve marks an alert as resolved by its log id.
func (m *Manager) Resolve(alertID uint64) error {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	for i := range m.log {
		if m.log[i].ID == alertID {
			m.log[i].Resolved = true
			return nil
		}
	}
	return riskerr.New(riskerr.KindPositionNotFound, "alert not found")
}

// ActiveAlerts returns every alert for which acknowledged=false or
// resolved=false, per spec §4.4's active_alerts() filter.
func (m *Manager) ActiveAlerts() []Alert {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	out := make([]Alert, 0, len(m.log))
	for _, a := range m.log {
		if !a.Acknowledged || !a.Resolved {
			out = append(out, a)
		}
	}
	return out
}

// ActiveAlertsByLevel groups the count of active alerts per level, for
// the statistics surface (spec §6).
func (m *Manager) ActiveAlertsByLevel() map[string]int {
	counts := map[string]int{}
	for _, a := range m.ActiveAlerts() {
		counts[a.Level.String()]++
	}
	for level, count := range counts {
		metrics.Monitor().SetActiveAlerts(level, float64(count))
	}
	return counts
}

// Log returns a snapshot of the full, totally-ordered alert log.
func (m *Manager) Log() []Alert {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	return append([]Alert(nil), m.log...)
}

func (m *Manager) writeAudit(alert Alert) {
	if m.audit == nil {
		return
	}
	line, err := json.Marshal(alert)
	if err != nil {
		m.logger.Warn("alert audit marshal failed", slog.String("error", err.Error()))
		return
	}
	line = append(line, '\n')
	if _, err := m.audit.Write(line); err != nil {
		m.logger.Warn("alert audit write failed", slog.String("error", err.Error()))
	}
}

// Close flushes and closes the rotating audit sink, if configured.
func (m *Manager) Close() error {
	if m.audit == nil {
		return nil
	}
	return m.audit.Close()
}
