package structs

import (
	"encoding/json"
	"testing"
)

func TestRelayStatus(t *testing.T) {
	rs := NewRelayStatus(3)
	if rs.GetLastReceivedEncryptedMessage() != nil || rs.GetLastReceivedDecryptedMessage() != nil || rs.GetLastMessageDestination() != nil {
		t.Fatalf("expected empty status before the first message")
	}

	rs.RecordReceived("envelope-1")
	rs.RecordPeeled("inner-1", 4002)
	if got := *rs.GetLastMessageDestination(); got != 4002 {
		t.Fatalf("expected destination 4002, got %d", got)
	}

	// a new envelope clears the previous decrypted view
	rs.RecordReceived("envelope-2")
	if got := *rs.GetLastReceivedEncryptedMessage(); got != "envelope-2" {
		t.Fatalf("expected envelope-2, got %s", got)
	}
	if rs.GetLastReceivedDecryptedMessage() != nil || rs.GetLastMessageDestination() != nil {
		t.Fatalf("expected decrypted view to be cleared")
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(rs.GetStatus()), &decoded); err != nil {
		t.Fatalf("GetStatus() is not JSON: %v", err)
	}
	if decoded["LastReceivedEncryptedMessage"] != "envelope-2" {
		t.Fatalf("unexpected status %v", decoded)
	}
}

func TestUserStatus(t *testing.T) {
	us := NewUserStatus(1)
	if us.GetLastSentMessage() != nil || us.GetLastReceivedMessage() != nil {
		t.Fatalf("expected empty status before the first message")
	}
	if circuit := us.GetLastCircuit(); len(circuit) != 0 {
		t.Fatalf("expected empty circuit, got %v", circuit)
	}

	msg := NewMessage(2, "hello")
	msg.Circuit = []int{4, 1, 7}
	us.RecordSent(msg)
	us.RecordReceived("hi back")

	if got := *us.GetLastSentMessage(); got != "hello" {
		t.Fatalf("expected hello, got %s", got)
	}
	if got := *us.GetLastReceivedMessage(); got != "hi back" {
		t.Fatalf("expected hi back, got %s", got)
	}

	circuit := us.GetLastCircuit()
	circuit[0] = 99
	if us.GetLastCircuit()[0] != 4 {
		t.Fatalf("GetLastCircuit() must return a copy")
	}

	if msg.ID == NewMessage(2, "hello").ID {
		t.Fatalf("message ids must be unique")
	}
}
