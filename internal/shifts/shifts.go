// Package shifts enumerates the virtual slot space. Slots are never stored;
// they are merged on demand from the cron expansions of all schedules and
// annotated with existing bookings.
package shifts

import (
	"container/heap"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fermain/night-owls-go-sub006/internal/cronutil"
	"github.com/Fermain/night-owls-go-sub006/internal/logging"
	"github.com/Fermain/night-owls-go-sub006/internal/store"
)

// DefaultWindow is how far ahead ListAvailable looks when no bounds are given.
const DefaultWindow = 14 * 24 * time.Hour

// Slot is one enumerable shift, annotated with its booking when taken.
type Slot struct {
	ScheduleID   int64     `json:"schedule_id"`
	ScheduleName string    `json:"schedule_name"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	IsBooked     bool      `json:"is_booked"`
	BookingID    *int64    `json:"booking_id,omitempty"`
	UserName     *string   `json:"user_name,omitempty"`
	UserPhone    *string   `json:"user_phone,omitempty"`
	BuddyName    *string   `json:"buddy_name,omitempty"`
}

// ListParams bounds an enumeration. Zero From/To fall back to
// [now, now+DefaultWindow); Limit <= 0 means unbounded.
type ListParams struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Service merges schedule expansions into the ordered slot stream.
type Service struct {
	store  *store.Store
	logger zerolog.Logger
}

func NewService(s *store.Store) *Service {
	return &Service{
		store:  s,
		logger: logging.WithComponent("shifts"),
	}
}

// ListAvailable enumerates slots of active schedules in the window, sorted by
// start time, each annotated with booking state.
func (s *Service) ListAvailable(ctx context.Context, params ListParams) ([]Slot, error) {
	schedules, err := s.store.ListActiveSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	return s.enumerate(ctx, schedules, params)
}

// ListAllAdmin enumerates slots of every schedule, including inactive ones.
func (s *Service) ListAllAdmin(ctx context.Context, params ListParams) ([]Slot, error) {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return s.enumerate(ctx, schedules, params)
}

func (s *Service) enumerate(ctx context.Context, schedules []store.Schedule, params ListParams) ([]Slot, error) {
	from, to := params.From, params.To
	now := time.Now().UTC()
	if from.IsZero() {
		from = now
	}
	if to.IsZero() {
		to = from.Add(DefaultWindow)
	}
	from, to = from.UTC(), to.UTC()
	if !to.After(from) {
		return []Slot{}, nil
	}

	bookings, err := s.store.ListBookingsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list bookings in range: %w", err)
	}
	bookingIndex := make(map[string]store.BookingWithUser, len(bookings))
	for _, b := range bookings {
		bookingIndex[slotKey(b.ScheduleID, b.ShiftStart)] = b
	}

	streams := make(streamHeap, 0, len(schedules))
	for _, schedule := range schedules {
		windowStart, windowEnd := clampWindow(schedule, from, to)
		if !windowEnd.After(windowStart) {
			continue
		}
		exp, err := cronutil.Expand(schedule.CronExpr, windowStart, windowEnd,
			time.Duration(schedule.DurationMinutes)*time.Minute)
		if err != nil {
			// A malformed expression must not take the whole listing down.
			s.logger.Warn().
				Err(err).
				Int64("schedule_id", schedule.ScheduleID).
				Str("cron_expr", schedule.CronExpr).
				Msg("skipping schedule with invalid cron expression")
			continue
		}
		stream := &scheduleStream{schedule: schedule, expansion: exp}
		if stream.advance() {
			streams = append(streams, stream)
		}
	}
	heap.Init(&streams)

	slots := []Slot{}
	seen := make(map[string]struct{})
	for streams.Len() > 0 {
		if params.Limit > 0 && len(slots) >= params.Limit {
			break
		}
		stream := streams[0]
		occ := stream.head

		key := slotKey(stream.schedule.ScheduleID, occ.Start)
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			slots = append(slots, s.buildSlot(stream.schedule, occ, bookingIndex[key]))
		}

		if stream.advance() {
			heap.Fix(&streams, 0)
		} else {
			heap.Pop(&streams)
		}
	}
	return slots, nil
}

func (s *Service) buildSlot(schedule store.Schedule, occ cronutil.Occurrence, booking store.BookingWithUser) Slot {
	slot := Slot{
		ScheduleID:   schedule.ScheduleID,
		ScheduleName: schedule.Name,
		StartTime:    occ.Start,
		EndTime:      occ.End,
	}
	if booking.BookingID != 0 {
		slot.IsBooked = true
		slot.BookingID = &booking.BookingID
		slot.UserPhone = &booking.UserPhone
		if booking.UserName.Valid {
			slot.UserName = &booking.UserName.String
		}
		if booking.BuddyName.Valid {
			slot.BuddyName = &booking.BuddyName.String
		}
	}
	return slot
}

// clampWindow intersects the enumeration window with the schedule's date
// bounds. end_date is a date and stays bookable through its last second.
func clampWindow(schedule store.Schedule, from, to time.Time) (time.Time, time.Time) {
	windowStart, windowEnd := from, to
	if schedule.StartDate.Valid {
		if sd := schedule.StartDate.Time.UTC(); sd.After(windowStart) {
			windowStart = sd
		}
	}
	if schedule.EndDate.Valid {
		if ed := schedule.EndDate.Time.UTC().Add(24 * time.Hour); ed.Before(windowEnd) {
			windowEnd = ed
		}
	}
	return windowStart, windowEnd
}

func slotKey(scheduleID int64, start time.Time) string {
	return fmt.Sprintf("%d_%s", scheduleID, start.UTC().Format(time.RFC3339))
}

// scheduleStream is one schedule's expansion with a one-occurrence lookahead.
type scheduleStream struct {
	schedule  store.Schedule
	expansion *cronutil.Expansion
	head      cronutil.Occurrence
}

func (s *scheduleStream) advance() bool {
	occ, ok := s.expansion.Next()
	if !ok {
		return false
	}
	s.head = occ
	return true
}

// streamHeap is a min-heap over stream heads, keyed by start time with the
// schedule id as tie-break for deterministic order.
type streamHeap []*scheduleStream

func (h streamHeap) Len() int { return len(h) }

func (h streamHeap) Less(i, j int) bool {
	if h[i].head.Start.Equal(h[j].head.Start) {
		return h[i].schedule.ScheduleID < h[j].schedule.ScheduleID
	}
	return h[i].head.Start.Before(h[j].head.Start)
}

func (h streamHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *streamHeap) Push(x any) {
	*h = append(*h, x.(*scheduleStream))
}

func (h *streamHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
