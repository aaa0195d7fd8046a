package structs

import (
	"time"

	"github.com/google/uuid"
)

// SendMessageApi is the body of POST /sendMessage on a user.
type SendMessageApi struct {
	Message           string `json:"message"`
	DestinationUserID int    `json:"destinationUserId"`
}

// Message is a user's record of one message it sent.
type Message struct {
	ID                string    `json:"id"`
	Msg               string    `json:"msg"`
	DestinationUserID int       `json:"destinationUserId"`
	Circuit           []int     `json:"circuit"`
	TimeSent          time.Time `json:"timeSent"`
}

func NewMessage(destinationUserID int, msg string) Message {
	return Message{
		ID:                uuid.NewString(),
		Msg:               msg,
		DestinationUserID: destinationUserID,
	}
}
