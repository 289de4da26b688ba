// Package notify delivers dose reminders over email and Telegram push.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vcscsvcscs/adherence-engine/pkg/model"
)

// Kind distinguishes reminders sent before a dose from those sent after it
type Kind string

const (
	KindUpcoming Kind = "upcoming"
	KindOverdue  Kind = "overdue"
)

var (
	// ErrChannelUnavailable is returned when no transport is configured for a channel
	ErrChannelUnavailable = errors.New("notification channel not configured")
	// ErrNoAddress is returned when the recipient has no address for the channel
	ErrNoAddress = errors.New("recipient has no address for channel")
)

// Payload is the dispatch event for one dose instant
type Payload struct {
	Kind           Kind         `json:"kind"`
	UserID         string       `json:"user_id"`
	RegimenID      string       `json:"regimen_id"`
	MedicationName string       `json:"medication_name"`
	Dosage         model.Dosage `json:"dosage"`
	ScheduledTime  time.Time    `json:"scheduled_time"`
	MinutesLate    *int         `json:"minutes_late,omitempty"`
}

// Notifier delivers a payload to a recipient over one channel
type Notifier interface {
	Send(ctx context.Context, to model.Recipient, channel model.Channel, p Payload) error
}

// DeliveryError wraps a transport failure with who and how it was sent
type DeliveryError struct {
	UserID  string
	Channel model.Channel
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver %s notification to user %s: %v", e.Channel, e.UserID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Message is the rendered text of a notification
type Message struct {
	Subject string
	Body    string
}

// Sender is a single transport
type Sender interface {
	Deliver(ctx context.Context, to model.Recipient, msg Message) error
}
