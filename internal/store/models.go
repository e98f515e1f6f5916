package store

import "time"

// User is the per-tenant user document.
// Flights holds booking ids in insertion order; the bookings themselves are
// separate documents in the same tenant.
type User struct {
	Tenant       string    `json:"tenant" db:"tenant"`
	Username     string    `json:"name" db:"username"`
	PasswordHash string    `json:"password" db:"password_hash"`
	Flights      []string  `json:"flights" db:"flights"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Flight identifies a booked seat on a scheduled flight. Only Number is
// required; the rest is carried through as the client sent it.
type Flight struct {
	Name               string  `json:"name,omitempty"`
	Number             string  `json:"flight"`
	Price              float64 `json:"price,omitempty"`
	Date               string  `json:"date,omitempty"`
	SourceAirport      string  `json:"sourceairport,omitempty"`
	DestinationAirport string  `json:"destinationairport,omitempty"`
	BookedOn           string  `json:"bookedon,omitempty"`
}

// Booking is one flight appended to a user's collection.
type Booking struct {
	ID       string    `json:"id" db:"id"`
	Tenant   string    `json:"tenant" db:"tenant"`
	Username string    `json:"user" db:"username"`
	BookedAt time.Time `json:"booked_at" db:"booked_at"`

	Flight
}
