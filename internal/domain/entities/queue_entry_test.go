package entities

import "testing"

func TestQueueStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from QueueStatus
		to   QueueStatus
		want bool
	}{
		{"waiting to called", QueueStatusWaiting, QueueStatusCalled, true},
		{"waiting to completed", QueueStatusWaiting, QueueStatusCompleted, true},
		{"waiting to no_show", QueueStatusWaiting, QueueStatusNoShow, true},
		{"called to completed", QueueStatusCalled, QueueStatusCompleted, true},
		{"called to no_show", QueueStatusCalled, QueueStatusNoShow, true},
		{"called back to waiting", QueueStatusCalled, QueueStatusWaiting, false},
		{"completed to called", QueueStatusCompleted, QueueStatusCalled, false},
		{"completed to waiting", QueueStatusCompleted, QueueStatusWaiting, false},
		{"no_show to called", QueueStatusNoShow, QueueStatusCalled, false},
		{"waiting to waiting", QueueStatusWaiting, QueueStatusWaiting, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestQueueStatus_IsActive(t *testing.T) {
	tests := []struct {
		status QueueStatus
		want   bool
	}{
		{QueueStatusWaiting, true},
		{QueueStatusCalled, true},
		{QueueStatusCompleted, false},
		{QueueStatusNoShow, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsActive(); got != tt.want {
			t.Errorf("IsActive(%s) = %v, want %v", tt.status, got, tt.want)
		}
		if tt.status.IsTerminal() == tt.want {
			t.Errorf("IsTerminal(%s) should be the inverse of IsActive", tt.status)
		}
	}
}

func TestEstimatedWait(t *testing.T) {
	tests := []struct {
		name        string
		position    int
		perPosition int
		want        int
	}{
		{"front of the line", 1, 15, 0},
		{"second in line", 2, 15, 15},
		{"fifth in line", 5, 15, 60},
		{"custom per-position wait", 3, 10, 20},
		{"zero position", 0, 15, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimatedWait(tt.position, tt.perPosition); got != tt.want {
				t.Errorf("EstimatedWait(%d, %d) = %d, want %d", tt.position, tt.perPosition, got, tt.want)
			}
		})
	}
}
