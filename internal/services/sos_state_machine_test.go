package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatedDispatcher struct {
	release chan struct{}
	result  *SendResult
}

func (d *gatedDispatcher) SendSOSAlert(ctx context.Context, input *SOSInput) *SendResult {
	if d.release != nil {
		<-d.release
	}
	return d.result
}

func newTestMachine(t *testing.T, dispatcher AlertDispatcher) (*SOSStateMachine, <-chan Transition) {
	t.Helper()
	cfg := testConfig()
	cfg.SingleAlertDwell = 40 * time.Millisecond
	cfg.CriticalEscalationDwell = 150 * time.Millisecond

	machine := NewSOSStateMachine(cfg, dispatcher, nil)
	events := make(chan Transition, 16)
	machine.OnTransition(func(tr Transition) { events <- tr })
	return machine, events
}

func nextTransition(t *testing.T, events <-chan Transition) Transition {
	t.Helper()
	select {
	case tr := <-events:
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("no transition")
		return Transition{}
	}
}

func TestSOSStateMachineRunsFullCycle(t *testing.T) {
	result := &SendResult{Success: true, AlertID: "SOS_1_a"}
	machine, events := newTestMachine(t, &gatedDispatcher{result: result})

	require.NoError(t, machine.Activate(context.Background(), &SOSInput{}))

	tr := nextTransition(t, events)
	assert.Equal(t, SOSStateIdle, tr.From)
	assert.Equal(t, SOSStateArming, tr.To)
	assert.Equal(t, uint64(1), tr.Generation)

	tr = nextTransition(t, events)
	assert.Equal(t, SOSStateActive, tr.To)
	assert.Same(t, result, tr.Result)

	tr = nextTransition(t, events)
	assert.Equal(t, SOSStateResolved, tr.To)
	tr = nextTransition(t, events)
	assert.Equal(t, SOSStateIdle, tr.To)

	snapshot := machine.Snapshot()
	assert.Equal(t, SOSStateIdle, snapshot.State)
	assert.Same(t, result, snapshot.LastResult)
	assert.Equal(t, 40*time.Millisecond, snapshot.Dwell)
}

func TestSOSStateMachineRejectsSecondActivation(t *testing.T) {
	dispatcher := &gatedDispatcher{release: make(chan struct{}), result: &SendResult{}}
	machine, events := newTestMachine(t, dispatcher)
	defer close(dispatcher.release)

	require.NoError(t, machine.Activate(context.Background(), nil))
	nextTransition(t, events)

	assert.ErrorIs(t, machine.Activate(context.Background(), nil), ErrSOSBusy)
	assert.Equal(t, SOSStateArming, machine.Snapshot().State)
}

func TestSOSStateMachineCriticalDwell(t *testing.T) {
	machine, events := newTestMachine(t, &gatedDispatcher{result: &SendResult{Success: true}})

	require.NoError(t, machine.Activate(context.Background(), &SOSInput{ContactAllServices: true}))
	nextTransition(t, events)
	active := nextTransition(t, events)
	require.Equal(t, SOSStateActive, active.To)
	assert.Equal(t, 150*time.Millisecond, machine.Snapshot().Dwell)

	resolved := nextTransition(t, events)
	assert.Equal(t, SOSStateResolved, resolved.To)
	assert.GreaterOrEqual(t, resolved.At.Sub(active.At), 150*time.Millisecond)
}

func TestSOSStateMachineCancelDuringArmingIgnoresLateResult(t *testing.T) {
	dispatcher := &gatedDispatcher{release: make(chan struct{}), result: &SendResult{Success: true}}
	machine, events := newTestMachine(t, dispatcher)

	require.NoError(t, machine.Activate(context.Background(), nil))
	nextTransition(t, events)

	require.NoError(t, machine.Cancel())
	assert.Equal(t, SOSStateCancelled, nextTransition(t, events).To)
	assert.Equal(t, SOSStateIdle, nextTransition(t, events).To)

	close(dispatcher.release)
	select {
	case tr := <-events:
		t.Fatalf("unexpected transition %s -> %s", tr.From, tr.To)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, SOSStateIdle, machine.Snapshot().State)
	assert.Nil(t, machine.Snapshot().LastResult)
}

func TestSOSStateMachineConfirmSafe(t *testing.T) {
	machine, events := newTestMachine(t, &gatedDispatcher{result: &SendResult{Success: true}})

	require.NoError(t, machine.Activate(context.Background(), &SOSInput{ContactAllServices: true}))
	nextTransition(t, events)
	require.Equal(t, SOSStateActive, nextTransition(t, events).To)

	require.NoError(t, machine.ConfirmSafe())
	assert.Equal(t, SOSStateResolved, nextTransition(t, events).To)
	assert.Equal(t, SOSStateIdle, nextTransition(t, events).To)

	// The stopped dwell timer must not fire a second resolution.
	select {
	case tr := <-events:
		t.Fatalf("unexpected transition %s -> %s", tr.From, tr.To)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSOSStateMachineInvalidTransitions(t *testing.T) {
	machine, _ := newTestMachine(t, &gatedDispatcher{result: &SendResult{}})

	assert.ErrorIs(t, machine.ConfirmSafe(), ErrInvalidTransition)
	assert.ErrorIs(t, machine.Cancel(), ErrInvalidTransition)
	assert.Equal(t, SOSStateIdle, machine.Snapshot().State)
}

func TestSOSStateMachineCanReactivateAfterIdle(t *testing.T) {
	machine, events := newTestMachine(t, &gatedDispatcher{result: &SendResult{Success: true}})

	require.NoError(t, machine.Activate(context.Background(), nil))
	for i := 0; i < 4; i++ {
		nextTransition(t, events)
	}

	require.NoError(t, machine.Activate(context.Background(), nil))
	tr := nextTransition(t, events)
	assert.Equal(t, SOSStateArming, tr.To)
	assert.Equal(t, uint64(2), tr.Generation)
}
