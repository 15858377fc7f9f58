package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateDisconnected

	next, err := Transition(s, EventDial)
	require.NoError(t, err)
	require.Equal(t, StateConnecting, next)

	next, err = Transition(next, EventReady)
	require.NoError(t, err)
	require.Equal(t, StateReady, next)

	next, err = Transition(next, EventEnd)
	require.NoError(t, err)
	require.Equal(t, StateDisconnected, next)

	next, err = Transition(next, EventReconnecting)
	require.NoError(t, err)
	require.Equal(t, StateConnecting, next)

	next, err = Transition(next, EventReady)
	require.NoError(t, err)
	require.Equal(t, StateReady, next)
}

func TestTransitionErrorKeepsState(t *testing.T) {
	states := []State{StateDisconnected, StateConnecting, StateReady}
	for _, state := range states {
		next, err := Transition(state, EventError)
		require.NoError(t, err)
		require.Equal(t, state, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "disconnected ready invalid", state: StateDisconnected, event: EventReady, want: StateDisconnected, wantErr: true},
		{name: "disconnected end invalid", state: StateDisconnected, event: EventEnd, want: StateDisconnected, wantErr: true},
		{name: "connecting dial invalid", state: StateConnecting, event: EventDial, want: StateConnecting, wantErr: true},
		{name: "connecting end valid", state: StateConnecting, event: EventEnd, want: StateDisconnected, wantErr: false},
		{name: "ready ready invalid", state: StateReady, event: EventReady, want: StateReady, wantErr: true},
		{name: "ready dial invalid", state: StateReady, event: EventDial, want: StateReady, wantErr: true},
		{name: "ready reconnecting invalid", state: StateReady, event: EventReconnecting, want: StateReady, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventDial)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)

	_, err = Transition(State("mystery"), EventError)
	require.Error(t, err)
}
