package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedStep struct {
	name          string
	execErr       error
	compErr       error
	log           *[]string
	compensations *[]string
}

func (s *recordedStep) Name() string { return s.name }

func (s *recordedStep) Execute(context.Context) error {
	*s.log = append(*s.log, s.name)
	return s.execErr
}

func (s *recordedStep) Compensate(context.Context) error {
	*s.compensations = append(*s.compensations, s.name)
	return s.compErr
}

func newSteps(names ...string) ([]Step, *[]string, *[]string) {
	log := &[]string{}
	comp := &[]string{}
	steps := make([]Step, len(names))
	for i, name := range names {
		steps[i] = &recordedStep{name: name, log: log, compensations: comp}
	}
	return steps, log, comp
}

func TestStart_RunsStepsInOrder(t *testing.T) {
	steps, log, comp := newSteps("a", "b", "c")

	require.NoError(t, NewOrchestrator(steps...).Start(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, *log)
	assert.Empty(t, *comp, "nothing to undo on success")
}

func TestStart_CompensatesInReverseOnFailure(t *testing.T) {
	steps, log, comp := newSteps("a", "b", "c")
	boom := errors.New("boom")
	steps[2].(*recordedStep).execErr = boom

	err := NewOrchestrator(steps...).Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b", "c"}, *log)
	assert.Equal(t, []string{"b", "a"}, *comp, "only completed steps, newest first")
}

func TestStart_FailedCompensationDoesNotStopRollback(t *testing.T) {
	steps, _, comp := newSteps("a", "b", "c")
	steps[2].(*recordedStep).execErr = errors.New("boom")
	steps[1].(*recordedStep).compErr = errors.New("undo failed")

	err := NewOrchestrator(steps...).Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"b", "a"}, *comp)
}

func TestStart_FirstStepFailureCompensatesNothing(t *testing.T) {
	steps, _, comp := newSteps("a", "b")
	steps[0].(*recordedStep).execErr = errors.New("boom")

	err := NewOrchestrator(steps...).Start(context.Background())
	require.Error(t, err)
	assert.Empty(t, *comp)
}
