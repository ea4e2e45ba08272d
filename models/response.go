package models

import (
	"fmt"
	"strings"
	"time"
)

// ResponseStatus — статус ответа участника на приглашение.
type ResponseStatus string

const (
	ResponsePending   ResponseStatus = "pending"
	ResponseAccepted  ResponseStatus = "accepted"
	ResponseTentative ResponseStatus = "tentative"
	ResponseDeclined  ResponseStatus = "declined"
)

// ParseResponseStatus converts user input into a ResponseStatus.
func ParseResponseStatus(s string) (ResponseStatus, error) {
	switch st := ResponseStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case ResponsePending, ResponseAccepted, ResponseTentative, ResponseDeclined:
		return st, nil
	default:
		return "", fmt.Errorf("unknown response status %q", s)
	}
}

// Response is the unique (occurrence, member) RSVP row.
type Response struct {
	ID           int            `json:"id" db:"id"`
	OccurrenceID int            `json:"occurrence_id" db:"occurrence_id"`
	UserID       int            `json:"user_id" db:"user_id"`
	Status       ResponseStatus `json:"status" db:"status"`
	Comment      *string        `json:"comment,omitempty" db:"comment"`
	RespondedAt  *time.Time     `json:"responded_at,omitempty" db:"responded_at"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}
