package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"telecare-sos/internal/config"
	"telecare-sos/pkg/logger"
)

type SOSState string

const (
	SOSStateIdle      SOSState = "idle"
	SOSStateArming    SOSState = "arming"
	SOSStateActive    SOSState = "active"
	SOSStateResolved  SOSState = "resolved"
	SOSStateCancelled SOSState = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid sos state transition")

// AlertDispatcher is the part of EmergencyService the state machine drives.
type AlertDispatcher interface {
	SendSOSAlert(ctx context.Context, input *SOSInput) *SendResult
}

type Transition struct {
	From       SOSState    `json:"from"`
	To         SOSState    `json:"to"`
	Generation uint64      `json:"generation"`
	Result     *SendResult `json:"result,omitempty"`
	At         time.Time   `json:"at"`
}

type SOSSnapshot struct {
	State      SOSState      `json:"state"`
	Generation uint64        `json:"generation"`
	LastResult *SendResult   `json:"lastResult,omitempty"`
	Dwell      time.Duration `json:"dwell,omitempty"`
}

// SOSStateMachine is the screen-level SOS flow:
// idle -> arming -> active -> resolved|cancelled -> idle.
// Each activation gets a generation; results and timers from an older
// generation are ignored.
type SOSStateMachine struct {
	dispatcher    AlertDispatcher
	singleDwell   time.Duration
	criticalDwell time.Duration
	logger        *logger.Logger
	now           func() time.Time

	mu         sync.Mutex
	state      SOSState
	generation uint64
	lastResult *SendResult
	dwell      time.Duration
	timer      *time.Timer
	observers  []func(Transition)
}

func NewSOSStateMachine(cfg *config.EmergencyConfig, dispatcher AlertDispatcher, log *logger.Logger) *SOSStateMachine {
	if log == nil {
		log = logger.NewNop()
	}
	return &SOSStateMachine{
		dispatcher:    dispatcher,
		singleDwell:   cfg.SingleAlertDwell,
		criticalDwell: cfg.CriticalEscalationDwell,
		logger:        log.WithField("component", "sos_state"),
		now:           time.Now,
		state:         SOSStateIdle,
	}
}

// OnTransition registers an observer. Observers run outside the machine's
// lock and may call back into it.
func (m *SOSStateMachine) OnTransition(observer func(Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, observer)
}

func (m *SOSStateMachine) Snapshot() SOSSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return SOSSnapshot{
		State:      m.state,
		Generation: m.generation,
		LastResult: m.lastResult,
		Dwell:      m.dwell,
	}
}

// Activate starts a dispatch in the background. It fails with ErrSOSBusy
// unless the machine is idle.
func (m *SOSStateMachine) Activate(ctx context.Context, input *SOSInput) error {
	if input == nil {
		input = &SOSInput{}
	}

	m.mu.Lock()
	if m.state != SOSStateIdle {
		m.mu.Unlock()
		return ErrSOSBusy
	}
	m.generation++
	gen := m.generation
	m.lastResult = nil
	m.dwell = 0
	events := []Transition{m.moveLocked(SOSStateArming, nil)}
	observers := m.observers
	m.mu.Unlock()

	notify(observers, events)

	// The dispatch outlives UI cancellation.
	dispatchCtx := context.WithoutCancel(ctx)
	go func() {
		result := m.dispatcher.SendSOSAlert(dispatchCtx, input)
		m.onDispatched(gen, input, result)
	}()

	return nil
}

// ConfirmSafe resolves an active SOS before its dwell time runs out.
func (m *SOSStateMachine) ConfirmSafe() error {
	m.mu.Lock()
	if m.state != SOSStateActive {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.stopTimerLocked()
	events := []Transition{
		m.moveLocked(SOSStateResolved, m.lastResult),
		m.moveLocked(SOSStateIdle, nil),
	}
	observers := m.observers
	m.mu.Unlock()

	notify(observers, events)
	return nil
}

// Cancel suppresses further escalation. An alert already handed to the
// dispatcher is not recalled.
func (m *SOSStateMachine) Cancel() error {
	m.mu.Lock()
	if m.state != SOSStateArming && m.state != SOSStateActive {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	m.stopTimerLocked()
	events := []Transition{
		m.moveLocked(SOSStateCancelled, m.lastResult),
		m.moveLocked(SOSStateIdle, nil),
	}
	observers := m.observers
	m.mu.Unlock()

	notify(observers, events)
	return nil
}

func (m *SOSStateMachine) onDispatched(gen uint64, input *SOSInput, result *SendResult) {
	m.mu.Lock()
	if gen != m.generation || m.state != SOSStateArming {
		m.mu.Unlock()
		m.logger.WithField("generation", gen).Info("Dispatch finished after SOS was cancelled")
		return
	}

	dwell := m.singleDwell
	if input.ContactAllServices {
		dwell = m.criticalDwell
	}
	m.lastResult = result
	m.dwell = dwell
	events := []Transition{m.moveLocked(SOSStateActive, result)}
	m.timer = time.AfterFunc(dwell, func() { m.expire(gen) })
	observers := m.observers
	m.mu.Unlock()

	notify(observers, events)
}

func (m *SOSStateMachine) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state != SOSStateActive {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	events := []Transition{
		m.moveLocked(SOSStateResolved, m.lastResult),
		m.moveLocked(SOSStateIdle, nil),
	}
	observers := m.observers
	m.mu.Unlock()

	notify(observers, events)
}

func (m *SOSStateMachine) moveLocked(to SOSState, result *SendResult) Transition {
	t := Transition{
		From:       m.state,
		To:         to,
		Generation: m.generation,
		Result:     result,
		At:         m.now(),
	}
	m.state = to
	m.logger.WithFields(map[string]interface{}{
		"from":       string(t.From),
		"to":         string(t.To),
		"generation": t.Generation,
	}).Debug("SOS state changed")
	return t
}

func (m *SOSStateMachine) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func notify(observers []func(Transition), events []Transition) {
	for _, event := range events {
		for _, observer := range observers {
			observer(event)
		}
	}
}
