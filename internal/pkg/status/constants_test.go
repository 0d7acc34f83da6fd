package status

import (
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		name string
		st   Status
		want string
	}{
		{st: Queued, want: "queued"},
		{st: Processing, want: "processing"},
		{st: Completed, want: "completed"},
		{st: Failed, want: "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.st.String(); got != tt.want {
				t.Errorf("Status.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrom(t *testing.T) {
	tests := []struct {
		name string
		args string
		want Status
	}{
		{args: "completed", want: Completed},
		{args: "olia", want: 0},
		{args: "processing", want: Processing},
		{args: "failed", want: Failed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := From(tt.args); got != tt.want {
				t.Errorf("From() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	tests := []struct {
		name string
		st   Status
		want bool
	}{
		{st: Queued, want: false},
		{st: Processing, want: false},
		{st: Completed, want: true},
		{st: Failed, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.st.Terminal(); got != tt.want {
				t.Errorf("Status.Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}
