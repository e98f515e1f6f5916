package audit

import "time"

// Event is an append-only audit record of an account or booking action.
//
// Events are never updated or deleted. Tenant is required; IP capture is
// best-effort and audit failures never fail the action being recorded.
type Event struct {
	ID     string    `json:"id"`
	Tenant string    `json:"tenant"`
	Type   EventType `json:"type"`

	// Username is the account the event is about, not necessarily the caller.
	Username  string `json:"username,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	Message string `json:"message,omitempty"`

	// Metadata is optional key/value detail, e.g. booking ids.
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeSignup        EventType = "signup"
	EventTypeLoginFailed   EventType = "login_failed"
	EventTypeFlightsBooked EventType = "flights_booked"
)
