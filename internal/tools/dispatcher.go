// Package tools exposes booking operations to the model as callable tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/moibraahim/gymnation-task/internal/booking"
	"github.com/moibraahim/gymnation-task/internal/llm"
	"github.com/moibraahim/gymnation-task/internal/models"
)

// Result is the outcome of one tool call. Err is nil on success and otherwise
// wraps models.ErrInvalidArguments or models.ErrNotFound.
type Result struct {
	CallID   string
	Name     string
	Payload  map[string]any
	Booking  *models.Booking
	Bookings []models.Booking
	Err      error
}

func (r Result) IsError() bool {
	return r.Err != nil
}

// Content is the JSON payload handed back to the model.
func (r Result) Content() string {
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return `{"success":false,"error":"unencodable tool result"}`
	}
	return string(data)
}

type Dispatcher struct {
	store    booking.Store
	validate *validator.Validate
	tools    []mcp.Tool
	logger   *zap.Logger
}

func NewDispatcher(store booking.Store, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:    store,
		validate: newValidator(),
		tools:    declarations(),
		logger:   logger,
	}
}

// Declarations lists the tools offered to the model.
func (d *Dispatcher) Declarations() []mcp.Tool {
	out := make([]mcp.Tool, len(d.tools))
	copy(out, d.tools)
	return out
}

// Dispatch runs call against the booking store. Failures are reported in the
// result, never returned, so they can be fed back to the model.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) Result {
	result := Result{CallID: call.ID, Name: call.Name}

	var err error
	switch call.Name {
	case CreateBooking:
		err = d.create(ctx, call, &result)
	case UpdateBooking:
		err = d.update(ctx, call, &result)
	case GetBooking:
		err = d.get(ctx, call, &result)
	default:
		err = fmt.Errorf("%w: unknown tool %q", models.ErrInvalidArguments, call.Name)
	}

	if err != nil {
		result.Err = err
		result.Payload = map[string]any{"success": false, "error": errorMessage(err)}
		d.logger.Info("tools: call failed",
			zap.String("tool", call.Name),
			zap.String("call_id", call.ID),
			zap.Error(err),
		)
		return result
	}

	d.logger.Info("tools: call succeeded", zap.String("tool", call.Name), zap.String("call_id", call.ID))
	return result
}

func (d *Dispatcher) create(ctx context.Context, call llm.ToolCall, result *Result) error {
	var args createArgs
	if err := d.decodeArgs(call, &args); err != nil {
		return err
	}

	duration := defaultDurationMinutes
	if args.DurationMinutes != nil {
		duration = *args.DurationMinutes
	}

	created, err := d.store.Create(ctx, models.Booking{
		ServiceType:     args.ServiceType,
		Date:            args.Date,
		Time:            args.Time,
		DurationMinutes: duration,
		CustomerName:    args.CustomerName,
		CustomerEmail:   args.CustomerEmail,
		Notes:           args.Notes,
		Status:          models.BookingConfirmed,
	})
	if err != nil {
		return err
	}

	result.Booking = &created
	result.Payload = map[string]any{
		"success":    true,
		"booking_id": created.ID,
		"message":    fmt.Sprintf("Booking created successfully for %s on %s at %s", created.ServiceType, created.Date, created.Time),
		"booking":    created,
	}
	return nil
}

func (d *Dispatcher) update(ctx context.Context, call llm.ToolCall, result *Result) error {
	var args updateArgs
	if err := d.decodeArgs(call, &args); err != nil {
		return err
	}

	var patch booking.Patch
	var fields []string
	if args.Date != "" {
		patch.Date = &args.Date
		fields = append(fields, "date")
	}
	if args.Time != "" {
		patch.Time = &args.Time
		fields = append(fields, "time")
	}
	if args.DurationMinutes != nil {
		patch.DurationMinutes = args.DurationMinutes
		fields = append(fields, "duration_minutes")
	}
	if args.Status != "" {
		status := models.BookingStatus(args.Status)
		patch.Status = &status
		fields = append(fields, "status")
	}
	if args.Notes != nil {
		patch.Notes = args.Notes
		fields = append(fields, "notes")
	}
	if patch.Empty() {
		return fmt.Errorf("%w: no fields to update", models.ErrInvalidArguments)
	}

	updated, err := d.store.Update(ctx, args.BookingID, patch)
	if err != nil {
		return err
	}

	result.Booking = &updated
	result.Payload = map[string]any{
		"success":        true,
		"booking_id":     updated.ID,
		"message":        fmt.Sprintf("Booking %s updated successfully", updated.ID),
		"updated_fields": fields,
		"booking":        updated,
	}
	return nil
}

func (d *Dispatcher) get(ctx context.Context, call llm.ToolCall, result *Result) error {
	var args getArgs
	if err := d.decodeArgs(call, &args); err != nil {
		return err
	}

	if args.BookingID != "" {
		found, err := d.store.Get(ctx, args.BookingID)
		if err != nil {
			return err
		}
		result.Booking = &found
		result.Payload = map[string]any{"success": true, "booking": found}
		return nil
	}

	found, err := d.store.Find(ctx, booking.Filter{
		CustomerEmail: args.CustomerEmail,
		Date:          args.Date,
		Status:        args.Status,
	})
	if err != nil {
		return err
	}
	result.Bookings = found
	result.Payload = map[string]any{"success": true, "count": len(found), "bookings": found}
	return nil
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return strings.Replace(err.Error(), ": "+models.ErrNotFound.Error(), " not found", 1)
	case errors.Is(err, models.ErrInvalidArguments):
		return err.Error()
	}
	return "booking operation failed: " + err.Error()
}
