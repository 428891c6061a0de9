package models

import "time"

type BookingStatus string

const (
	BookingConfirmed   BookingStatus = "confirmed"
	BookingCancelled   BookingStatus = "cancelled"
	BookingRescheduled BookingStatus = "rescheduled"
	BookingCompleted   BookingStatus = "completed"
)

// Booking is a scheduled service session for a customer.
type Booking struct {
	ID              string        `json:"booking_id"`
	ServiceType     string        `json:"service_type"`
	Date            string        `json:"date"`
	Time            string        `json:"time"`
	DurationMinutes int           `json:"duration_minutes"`
	CustomerName    string        `json:"customer_name"`
	CustomerEmail   string        `json:"customer_email"`
	Notes           string        `json:"notes,omitempty"`
	Status          BookingStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
