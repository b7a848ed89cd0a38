package doubt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		from Status
		to   Status
		want bool
	}{
		{name: "pending -> in_progress", typ: TypeTrainer, from: StatusPending, to: StatusInProgress, want: true},
		{name: "pending -> closed", typ: TypeTrainer, from: StatusPending, to: StatusClosed, want: true},
		{name: "pending -> cancelled", typ: TypeTrainer, from: StatusPending, to: StatusCancelled, want: true},
		{name: "pending -> resolved", typ: TypeTrainer, from: StatusPending, to: StatusResolved, want: false},
		{name: "in_progress -> resolved", typ: TypeAI, from: StatusInProgress, to: StatusResolved, want: true},
		{name: "in_progress -> closed", typ: TypeTrainer, from: StatusInProgress, to: StatusClosed, want: true},
		{name: "in_progress -> cancelled", typ: TypeAI, from: StatusInProgress, to: StatusCancelled, want: true},
		{name: "in_progress -> pending", typ: TypeTrainer, from: StatusInProgress, to: StatusPending, want: false},
		{name: "resolved -> closed", typ: TypeAI, from: StatusResolved, to: StatusClosed, want: true},
		{name: "resolved -> in_progress (ai reopen)", typ: TypeAI, from: StatusResolved, to: StatusInProgress, want: true},
		{name: "resolved -> in_progress (trainer)", typ: TypeTrainer, from: StatusResolved, to: StatusInProgress, want: false},
		{name: "resolved -> cancelled", typ: TypeAI, from: StatusResolved, to: StatusCancelled, want: false},
		{name: "closed is terminal", typ: TypeTrainer, from: StatusClosed, to: StatusInProgress, want: false},
		{name: "cancelled is terminal", typ: TypeAI, from: StatusCancelled, to: StatusInProgress, want: false},
		{name: "self transition", typ: TypeTrainer, from: StatusInProgress, to: StatusInProgress, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.typ, tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s, %s) = %v; want %v", tt.typ, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTransitionSources(t *testing.T) {
	assert.ElementsMatch(t,
		[]Status{StatusPending, StatusInProgress, StatusResolved},
		TransitionSources(TypeTrainer, StatusClosed))
	assert.ElementsMatch(t,
		[]Status{StatusPending, StatusInProgress},
		TransitionSources(TypeAI, StatusCancelled))
	assert.ElementsMatch(t,
		[]Status{StatusPending, StatusResolved},
		TransitionSources(TypeAI, StatusInProgress))
	assert.Empty(t, TransitionSources(TypeTrainer, StatusPending))
}

func TestInitialStatus(t *testing.T) {
	if got := InitialStatus(TypeTrainer); got != StatusPending {
		t.Errorf("InitialStatus(trainer) = %s; want %s", got, StatusPending)
	}
	if got := InitialStatus(TypeAI); got != StatusInProgress {
		t.Errorf("InitialStatus(ai) = %s; want %s", got, StatusInProgress)
	}
}
