package api

import (
	"encoding/json"
	"net/http"

	"github.com/lawconnect/booking-gateway/internal/booking"
	"github.com/lawconnect/booking-gateway/internal/calendar"
	"github.com/lawconnect/booking-gateway/internal/upstream"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User upstream.Profile `json:"user"`
}

type SelectDateRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
}

type SelectSlotRequest struct {
	StartTime string `json:"startTime"` // HH:MM
}

// UpdateDraftRequest patches draft fields; absent fields are untouched.
type UpdateDraftRequest struct {
	ConsultationMode *string `json:"consultationMode,omitempty"`
	Problem          *string `json:"problem,omitempty"`
}

type CalendarResponse struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Days  []*calendar.Day `json:"days"` // nil cells pad the first week
}

// BookingPageResponse is everything the booking page needs in one shot.
type BookingPageResponse struct {
	Lawyer       upstream.Lawyer     `json:"lawyer"`
	State        booking.State       `json:"state"`
	SelectedDate string              `json:"selectedDate"`
	SelectedTime string              `json:"selectedTime,omitempty"`
	Calendar     CalendarResponse    `json:"calendar"`
	Slots        []upstream.TimeSlot `json:"slots"`
	SlotsMessage string              `json:"slotsMessage,omitempty"`
	Draft        *booking.Draft      `json:"draft,omitempty"`
}

type SlotsResponse struct {
	Date    string              `json:"date"`
	Slots   []upstream.TimeSlot `json:"slots"`
	Message string              `json:"message,omitempty"`
}

type SelectSlotResponse struct {
	SelectedTime string `json:"selectedTime"`
}

type DraftResponse struct {
	Draft  *booking.Draft    `json:"draft"`
	Errors map[string]string `json:"errors,omitempty"`
}

type ConfirmResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Redirect string `json:"redirect"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ValidationErrorResponse keys inline errors by field name so the page can
// attach each message to its input.
type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
