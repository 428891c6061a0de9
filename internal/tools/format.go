package tools

import (
	"fmt"
	"strings"
)

// Summarize renders tool results as the text persisted alongside a turn.
func Summarize(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, summarizeOne(r))
	}
	return strings.Join(parts, "\n\n")
}

func summarizeOne(r Result) string {
	if r.Err != nil {
		return fmt.Sprintf("[Tool Error: %s]", errorMessage(r.Err))
	}

	switch r.Name {
	case CreateBooking:
		if b := r.Booking; b != nil {
			return fmt.Sprintf("[Booking Created Successfully]\nBooking ID: %s\nCustomer: %s\nService: %s\nDate/Time: %s at %s\nDuration: %d minutes",
				b.ID, b.CustomerName, b.ServiceType, b.Date, b.Time, b.DurationMinutes)
		}
	case UpdateBooking:
		if b := r.Booking; b != nil {
			return fmt.Sprintf("[Booking Updated Successfully]\nBooking %s updated successfully\nDate/Time: %s at %s\nStatus: %s",
				b.ID, b.Date, b.Time, b.Status)
		}
	case GetBooking:
		if b := r.Booking; b != nil {
			return fmt.Sprintf("[Booking Found]\nBooking ID: %s\nCustomer: %s\nService: %s\nDate/Time: %s at %s\nStatus: %s",
				b.ID, b.CustomerName, b.ServiceType, b.Date, b.Time, b.Status)
		}
		if len(r.Bookings) == 0 {
			return "[No bookings found matching the criteria]"
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "[Found %d booking(s)]\n", len(r.Bookings))
		for _, b := range r.Bookings {
			fmt.Fprintf(&sb, "\n• %s - %s on %s at %s (Status: %s)", b.CustomerName, b.ServiceType, b.Date, b.Time, b.Status)
		}
		return sb.String()
	}

	return fmt.Sprintf("[Tool Result: %s]", r.Content())
}
