package tools

import "github.com/mark3labs/mcp-go/mcp"

const (
	CreateBooking = "create_booking"
	UpdateBooking = "update_booking"
	GetBooking    = "get_booking"

	defaultDurationMinutes = 60
)

func declarations() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(CreateBooking,
			mcp.WithDescription("Create a new booking for a service such as a gym session, personal training, massage or consultation."),
			mcp.WithString("service_type", mcp.Required(),
				mcp.Description("Type of service, e.g. gym_session, personal_training, massage, consultation, yoga_class or swimming")),
			mcp.WithString("date", mcp.Required(), mcp.Description("Booking date in YYYY-MM-DD format")),
			mcp.WithString("time", mcp.Required(), mcp.Description("Booking time in 24-hour HH:MM format")),
			mcp.WithString("customer_name", mcp.Required(), mcp.Description("Full name of the customer")),
			mcp.WithString("customer_email", mcp.Required(), mcp.Description("Email address of the customer")),
			mcp.WithNumber("duration_minutes", mcp.Description("Session length in minutes"), mcp.DefaultNumber(defaultDurationMinutes), mcp.Min(1)),
			mcp.WithString("notes", mcp.Description("Additional notes or special requests")),
		),
		mcp.NewTool(UpdateBooking,
			mcp.WithDescription("Update an existing booking: reschedule, change its length, add notes or change its status."),
			mcp.WithString("booking_id", mcp.Required(), mcp.Description("Identifier of the booking to update")),
			mcp.WithString("date", mcp.Description("New date in YYYY-MM-DD format")),
			mcp.WithString("time", mcp.Description("New time in 24-hour HH:MM format")),
			mcp.WithNumber("duration_minutes", mcp.Description("New session length in minutes"), mcp.Min(1)),
			mcp.WithString("status", mcp.Description("New booking status"),
				mcp.Enum("confirmed", "cancelled", "rescheduled", "completed")),
			mcp.WithString("notes", mcp.Description("Replacement notes")),
		),
		mcp.NewTool(GetBooking,
			mcp.WithDescription("Retrieve a booking by its identifier, or search bookings by customer email, date or status."),
			mcp.WithString("booking_id", mcp.Description("Identifier of a specific booking")),
			mcp.WithString("customer_email", mcp.Description("Only bookings for this customer email")),
			mcp.WithString("date", mcp.Description("Only bookings on this date, YYYY-MM-DD")),
			mcp.WithString("status", mcp.Description("Only bookings with this status"), mcp.DefaultString("all"),
				mcp.Enum("all", "confirmed", "cancelled", "rescheduled", "completed")),
		),
	}
}
