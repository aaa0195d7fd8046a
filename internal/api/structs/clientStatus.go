package structs

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// UserStatus is a user's view of the last message it sent and the last one it received.
type UserStatus struct {
	ID                  int
	LastSentMessage     *Message
	LastReceivedMessage *string
	TimeReceived        time.Time
	mu                  sync.RWMutex
}

func NewUserStatus(id int) *UserStatus {
	return &UserStatus{ID: id}
}

func (us *UserStatus) RecordSent(message Message) {
	us.mu.Lock()
	defer us.mu.Unlock()
	us.LastSentMessage = &message
}

func (us *UserStatus) RecordReceived(message string) {
	us.mu.Lock()
	defer us.mu.Unlock()
	us.LastReceivedMessage = &message
	us.TimeReceived = time.Now()
}

func (us *UserStatus) GetLastReceivedMessage() *string {
	us.mu.RLock()
	defer us.mu.RUnlock()
	return us.LastReceivedMessage
}

func (us *UserStatus) GetLastSentMessage() *string {
	us.mu.RLock()
	defer us.mu.RUnlock()
	if us.LastSentMessage == nil {
		return nil
	}
	msg := us.LastSentMessage.Msg
	return &msg
}

// GetLastCircuit returns the relay ids of the last sent message, entry relay first.
func (us *UserStatus) GetLastCircuit() []int {
	us.mu.RLock()
	defer us.mu.RUnlock()
	if us.LastSentMessage == nil {
		return []int{}
	}
	return append([]int(nil), us.LastSentMessage.Circuit...)
}

func (us *UserStatus) GetStatus() string {
	us.mu.RLock()
	defer us.mu.RUnlock()
	if str, err := json.Marshal(us); err != nil {
		slog.Error("Error marshalling user status", "err", err)
		return ""
	} else {
		return string(str)
	}
}
