// Package booking owns the page-local booking flow: draft validation and the
// state machine that walks a user from date selection to a submitted
// appointment request.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lawconnect/booking-gateway/internal/calendar"
	"github.com/lawconnect/booking-gateway/internal/upstream"
)

type State string

const (
	StateSelectingDate State = "selecting_date"
	StateSelectingSlot State = "selecting_slot"
	StateReviewing     State = "reviewing"
	StateSubmitting    State = "submitting"
	StateCompleted     State = "completed"
)

var (
	ErrPastDate         = errors.New("date is in the past or today; pick a later day")
	ErrStaleFetch       = errors.New("slot fetch superseded by a newer date selection")
	ErrUnknownSlot      = errors.New("no such slot for the selected date")
	ErrSlotBooked       = errors.New("slot is already booked")
	ErrIncompleteDraft  = errors.New("both a date and a time slot must be selected first")
	ErrNoDraft          = errors.New("no booking draft is open")
	ErrSubmitInProgress = errors.New("booking submission already in progress")
)

// ValidationError carries the per-field failures that kept a draft from
// being submitted. Nothing is sent upstream while it is non-empty.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking draft failed validation on %d field(s)", len(e.Fields))
}

// Draft is the transient appointment request assembled before submission.
// It exists only between opening the review step and submit/cancel, and is
// never persisted.
type Draft struct {
	LawyerID         string  `json:"lawyerId"`
	UserID           string  `json:"userId"`
	Date             string  `json:"date"` // YYYY-MM-DD
	Time             string  `json:"time"` // HH:MM-HH:MM
	ConsultationMode string  `json:"consultationMode"`
	Problem          string  `json:"problem"`
	Fee              float64 `json:"fee"`
}

// SlotFetcher loads the slot snapshot for one (lawyer, date) pair.
type SlotFetcher interface {
	SlotDetails(ctx context.Context, lawyerID, date string) ([]upstream.TimeSlot, error)
}

// Booker forwards a confirmed draft to the upstream.
type Booker interface {
	BookAppointment(ctx context.Context, req upstream.BookingRequest) (*upstream.BookResult, error)
}

// Controller drives one booking flow for one (user, lawyer) pair. It owns
// the draft exclusively for the lifetime of the attempt.
type Controller struct {
	fetcher SlotFetcher
	booker  Booker
	clock   func() time.Time
	logger  *zap.Logger

	lawyerID string
	userID   string
	fee      float64

	mu           sync.Mutex
	state        State
	selectedDate time.Time
	selectedTime string
	slots        []upstream.TimeSlot
	fetchGen     uint64
	draft        *Draft
	fieldErrors  FieldErrors
}

type ControllerOption func(*Controller)

// WithClock injects the time source. Tests pin it; production uses time.Now.
func WithClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) { c.clock = clock }
}

func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

func NewController(lawyerID, userID string, fee float64, fetcher SlotFetcher, booker Booker, opts ...ControllerOption) *Controller {
	c := &Controller{
		fetcher:  fetcher,
		booker:   booker,
		clock:    time.Now,
		logger:   zap.NewNop(),
		lawyerID: lawyerID,
		userID:   userID,
		fee:      fee,
		state:    StateSelectingDate,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.selectedDate = calendar.DefaultBookingDate(c.clock())
	return c
}

// SelectDate moves the flow to a new date and fetches that day's slots. The
// slot list and selected time are cleared before the fetch starts, so a
// failed fetch can never leave a previous day's slots on screen.
//
// Responses are generation-checked: if another SelectDate ran while this
// fetch was in flight, the late response is discarded and ErrStaleFetch is
// returned. Last selected date wins.
func (c *Controller) SelectDate(ctx context.Context, date time.Time) ([]upstream.TimeSlot, error) {
	day := calendar.Midnight(date)

	c.mu.Lock()
	if !day.After(calendar.Midnight(c.clock())) {
		c.mu.Unlock()
		return nil, ErrPastDate
	}
	c.fetchGen++
	gen := c.fetchGen
	c.selectedDate = day
	c.selectedTime = ""
	c.slots = nil
	c.state = StateSelectingSlot
	c.mu.Unlock()

	dateStr := day.Format(upstream.DateLayout)
	slots, err := c.fetcher.SlotDetails(ctx, c.lawyerID, dateStr)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.fetchGen {
		c.logger.Debug("discarding stale slot response",
			zap.String("lawyer_id", c.lawyerID),
			zap.String("date", dateStr))
		return nil, ErrStaleFetch
	}
	if err != nil {
		c.slots = nil
		return nil, fmt.Errorf("fetch slots for %s: %w", dateStr, err)
	}

	c.slots = slots
	return slots, nil
}

// SelectSlot picks a time slot by its start time. Booked slots never change
// the selection.
func (c *Controller) SelectSlot(startTime string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, slot := range c.slots {
		if slot.StartTime != startTime {
			continue
		}
		if slot.IsBooked {
			return ErrSlotBooked
		}
		c.selectedTime = slot.StartTime + "-" + slot.EndTime
		return nil
	}
	return ErrUnknownSlot
}

// OpenReview opens the confirmation step. It refuses until both a date and
// an unbooked slot have been selected, so an incomplete draft can never
// reach review.
func (c *Controller) OpenReview() (*Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selectedDate.IsZero() || c.selectedTime == "" {
		return nil, ErrIncompleteDraft
	}

	c.state = StateReviewing
	c.draft = &Draft{
		LawyerID: c.lawyerID,
		UserID:   c.userID,
		Date:     c.selectedDate.Format(upstream.DateLayout),
		Time:     c.selectedTime,
		Fee:      c.fee,
	}
	c.fieldErrors = nil

	d := *c.draft
	return &d, nil
}

// SetMode records the consultation mode and clears any stale error on that
// field the instant it is edited.
func (c *Controller) SetMode(mode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draft == nil {
		return ErrNoDraft
	}
	c.draft.ConsultationMode = mode
	delete(c.fieldErrors, FieldConsultationMode)
	return nil
}

// SetProblem records the problem description and clears any stale error on
// that field.
func (c *Controller) SetProblem(problem string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draft == nil {
		return ErrNoDraft
	}
	c.draft.Problem = problem
	delete(c.fieldErrors, FieldProblem)
	return nil
}

// Confirm validates the draft and submits it upstream. Validation failures
// keep the flow in review with field errors and send nothing. An upstream
// failure also returns to review with the draft intact so nothing is
// retyped. While a submission is in flight further confirms are rejected.
func (c *Controller) Confirm(ctx context.Context) (*upstream.BookResult, error) {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	if c.state != StateReviewing || c.draft == nil {
		c.mu.Unlock()
		return nil, ErrNoDraft
	}

	if errs := Validate(c.draft.ConsultationMode, c.draft.Problem); errs != nil {
		c.fieldErrors = errs
		c.mu.Unlock()
		return nil, &ValidationError{Fields: errs}
	}

	c.state = StateSubmitting
	req := upstream.BookingRequest{
		LawyerID:         c.draft.LawyerID,
		UserID:           c.draft.UserID,
		Date:             c.draft.Date,
		Time:             c.draft.Time,
		ConsultationMode: c.draft.ConsultationMode,
		Problem:          c.draft.Problem,
		Fee:              c.draft.Fee,
	}
	c.mu.Unlock()

	res, err := c.booker.BookAppointment(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state = StateReviewing
		return nil, err
	}

	c.draft = nil
	c.fieldErrors = nil
	c.state = StateCompleted
	c.logger.Info("booking flow completed",
		zap.String("lawyer_id", c.lawyerID),
		zap.String("date", req.Date),
		zap.String("time", req.Time))
	return res, nil
}

// Cancel discards the draft and its errors and returns to slot selection.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.draft = nil
	c.fieldErrors = nil
	if c.state == StateReviewing || c.state == StateSubmitting {
		c.state = StateSelectingSlot
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) SelectedDate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedDate
}

func (c *Controller) SelectedTime() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedTime
}

// Slots returns the current slot snapshot.
func (c *Controller) Slots() []upstream.TimeSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]upstream.TimeSlot, len(c.slots))
	copy(out, c.slots)
	return out
}

// Draft returns a copy of the open draft, or nil when none is open.
func (c *Controller) Draft() *Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return nil
	}
	d := *c.draft
	return &d
}

// FieldErrors returns the validation failures from the last confirm attempt.
func (c *Controller) FieldErrors() FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.fieldErrors) == 0 {
		return nil
	}
	out := make(FieldErrors, len(c.fieldErrors))
	for k, v := range c.fieldErrors {
		out[k] = v
	}
	return out
}
