package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moibraahim/gymnation-task/internal/models"
)

// Store persists bookings for the tool dispatcher.
type Store interface {
	Create(ctx context.Context, b models.Booking) (models.Booking, error)
	Update(ctx context.Context, id string, patch Patch) (models.Booking, error)
	Get(ctx context.Context, id string) (models.Booking, error)
	Find(ctx context.Context, filter Filter) ([]models.Booking, error)
}

// Patch lists the fields an update may change. Nil fields are left alone.
type Patch struct {
	Date            *string
	Time            *string
	DurationMinutes *int
	Status          *models.BookingStatus
	Notes           *string
}

func (p Patch) Empty() bool {
	return p.Date == nil && p.Time == nil && p.DurationMinutes == nil && p.Status == nil && p.Notes == nil
}

type Filter struct {
	CustomerEmail string
	Date          string
	Status        string
}

// MemoryStore keeps bookings in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
	now      func() time.Time
	newID    func() string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: make(map[string]models.Booking),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    newBookingID,
	}
}

func (s *MemoryStore) Create(_ context.Context, b models.Booking) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for attempts := 0; s.exists(id); attempts++ {
		if attempts >= 8 {
			return models.Booking{}, fmt.Errorf("booking: could not allocate a unique id")
		}
		id = s.newID()
	}

	now := s.now()
	b.ID = id
	if b.Status == "" {
		b.Status = models.BookingConfirmed
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	s.bookings[id] = b

	return b, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch Patch) (models.Booking, error) {
	id = normalizeID(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}

	if patch.Date != nil {
		b.Date = *patch.Date
	}
	if patch.Time != nil {
		b.Time = *patch.Time
	}
	if patch.DurationMinutes != nil {
		b.DurationMinutes = *patch.DurationMinutes
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	if patch.Notes != nil {
		b.Notes = *patch.Notes
	}
	b.UpdatedAt = s.now()
	s.bookings[id] = b

	return b, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Booking, error) {
	id = normalizeID(id)

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, fmt.Errorf("booking %s: %w", id, models.ErrNotFound)
	}
	return b, nil
}

func (s *MemoryStore) Find(_ context.Context, filter Filter) ([]models.Booking, error) {
	email := strings.ToLower(strings.TrimSpace(filter.CustomerEmail))
	status := strings.ToLower(strings.TrimSpace(filter.Status))

	s.mu.RLock()
	matches := make([]models.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		if email != "" && strings.ToLower(b.CustomerEmail) != email {
			continue
		}
		if filter.Date != "" && b.Date != filter.Date {
			continue
		}
		if status != "" && status != "all" && string(b.Status) != status {
			continue
		}
		matches = append(matches, b)
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Date != matches[j].Date {
			return matches[i].Date < matches[j].Date
		}
		if matches[i].Time != matches[j].Time {
			return matches[i].Time < matches[j].Time
		}
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})

	return matches, nil
}

// Len returns the number of stored bookings.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookings)
}

func (s *MemoryStore) exists(id string) bool {
	_, ok := s.bookings[id]
	return ok
}

func newBookingID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BK" + strings.ToUpper(raw[:8])
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
