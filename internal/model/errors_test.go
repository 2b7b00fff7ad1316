package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsSkippable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, true},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), true},
		{"transport timeout", &TransportError{Op: "conversations", Timeout: true, Err: errors.New("i/o timeout")}, true},
		{"transport refused", &TransportError{Op: "conversations", Err: errors.New("connection refused")}, false},
		{"server", &ServerError{Op: "conversations", Status: 500}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSkippable(tt.err); got != tt.want {
				t.Errorf("IsSkippable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestServerErrorMessageVerbatim(t *testing.T) {
	err := &ServerError{Op: "send", Status: 404, Message: "Receiver not found"}
	if err.Error() != "send: Receiver not found" {
		t.Errorf("Error() = %q", err.Error())
	}
	bare := &ServerError{Op: "send", Status: 502}
	if bare.Error() != "send: server returned 502" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestMessagePeerID(t *testing.T) {
	in := Message{SenderID: 7, ReceiverID: 1}
	if in.PeerID() != 7 {
		t.Errorf("inbound PeerID = %d, want 7", in.PeerID())
	}
	out := Message{SenderID: 1, ReceiverID: 7, IsMine: true}
	if out.PeerID() != 7 {
		t.Errorf("outbound PeerID = %d, want 7", out.PeerID())
	}
}

func TestParseRole(t *testing.T) {
	if ParseRole(" trainee ") != RoleTrainee {
		t.Error("ParseRole should be case-insensitive")
	}
	if ParseRole("coach").Valid() {
		t.Error("unknown role reported valid")
	}
	if RoleTrainer.Path() != "trainer" {
		t.Errorf("Path() = %q", RoleTrainer.Path())
	}
}
