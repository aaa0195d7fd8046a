package structs

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// RelayStatus is a relay's view of the last envelope it processed. Each Record replaces
// the previous one; no history is kept.
type RelayStatus struct {
	ID                           int
	LastReceivedEncryptedMessage *string
	LastReceivedDecryptedMessage *string
	LastMessageDestination       *int
	TimeReceived                 time.Time
	mu                           sync.RWMutex
}

func NewRelayStatus(id int) *RelayStatus {
	return &RelayStatus{ID: id}
}

// RecordReceived stores the envelope as it arrived, before peeling. The decrypted view
// and destination of the previous message are cleared so the three never disagree.
func (rs *RelayStatus) RecordReceived(encrypted string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.LastReceivedEncryptedMessage = &encrypted
	rs.LastReceivedDecryptedMessage = nil
	rs.LastMessageDestination = nil
	rs.TimeReceived = time.Now()
}

// RecordPeeled stores the inner payload and the resolved next hop.
func (rs *RelayStatus) RecordPeeled(decrypted string, destination int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.LastReceivedDecryptedMessage = &decrypted
	rs.LastMessageDestination = &destination
}

func (rs *RelayStatus) GetLastReceivedEncryptedMessage() *string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.LastReceivedEncryptedMessage
}

func (rs *RelayStatus) GetLastReceivedDecryptedMessage() *string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.LastReceivedDecryptedMessage
}

func (rs *RelayStatus) GetLastMessageDestination() *int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.LastMessageDestination
}

func (rs *RelayStatus) GetStatus() string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	if str, err := json.Marshal(rs); err != nil {
		slog.Error("Error marshalling relay status", "err", err)
		return ""
	} else {
		return string(str)
	}
}
