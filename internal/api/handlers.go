package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lawconnect/booking-gateway/internal/booking"
	"github.com/lawconnect/booking-gateway/internal/calendar"
	"github.com/lawconnect/booking-gateway/internal/metrics"
	"github.com/lawconnect/booking-gateway/internal/session"
	"github.com/lawconnect/booking-gateway/internal/upstream"
)

// Handler serves the page-level endpoints the front-end consumes. Every
// state-changing action is forwarded upstream; the handler only owns the
// session and the in-flight booking flow.
type Handler struct {
	upstream *upstream.Client
	sessions *session.Store
	flows    *booking.Manager
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// client returns the upstream client bound to the caller's credentials.
func (h *Handler) client(sc *sessionContext) *upstream.Client {
	return h.upstream.WithSession(sc.sess.Token)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "email and password are required")
		return
	}

	profile, token, err := h.upstream.Login(r.Context(), upstream.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.upstreamError(w, err)
		return
	}

	sid, err := h.sessions.Create(r.Context(), session.Session{
		Token:  token,
		UserID: profile.UserID,
		Name:   profile.Name,
		Email:  profile.Email,
		Role:   profile.Role,
	})
	if err != nil {
		h.logger.Error("store session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "session_store_error", "could not create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, LoginResponse{User: *profile})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sc := sessionFrom(r.Context())

	// Best effort upstream; the gateway session dies regardless.
	if err := h.client(sc).Logout(r.Context()); err != nil {
		h.logger.Warn("upstream logout failed", zap.Error(err))
	}

	if err := h.sessions.Delete(r.Context(), sc.sid); err != nil {
		h.logger.Warn("delete session", zap.Error(err))
	}
	h.flows.RemoveSession(sc.sid)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *Handler) listLawyers(w http.ResponseWriter, r *http.Request) {
	sc := sessionFrom(r.Context())
	lawyers, err := h.client(sc).GetLawyers(r.Context())
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lawyers": lawyers})
}

func (h *Handler) lawyerDetails(w http.ResponseWriter, r *http.Request) {
	sc := sessionFrom(r.Context())
	lawyer, err := h.client(sc).GetLawyerDetails(r.Context(), chi.URLParam(r, "lawyerID"))
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lawyer": lawyer})
}

func (h *Handler) lawyerReviews(w http.ResponseWriter, r *http.Request) {
	sc := sessionFrom(r.Context())
	reviews, err := h.client(sc).GetLawyerReviews(r.Context(), chi.URLParam(r, "lawyerID"))
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	sc := sessionFrom(r.Context())
	appts, err := h.client(sc).GetAppointments(r.Context())
	if err != nil {
		h.upstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// openBooking loads the booking page: lawyer details plus the calendar
// positioned on the first selectable date (tomorrow), with that day's slots
// already fetched. Re-opening an in-progress flow returns its current
// snapshot instead of resetting it.
func (h *Handler) openBooking(w http.ResponseWriter, r *http.Request) {
	sc := sessionFrom(r.Context())
	lawyerID := chi.URLParam(r, "lawyerID")
	cli := h.client(sc)

	lawyer, err := cli.GetLawyerDetails(r.Context(), lawyerID)
	if err != nil {
		h.upstreamError(w, err)
		return
	}

	ctrl := h.flows.GetOrCreate(sc.sid, lawyerID, func() *booking.Controller {
		return booking.NewController(lawyerID, sc.sess.UserID, lawyer.Fee, cli, cli,
			booking.WithClock(h.now), booking.WithLogger(h.logger))
	})

	slotsMessage := ""
	if ctrl.State() == booking.StateSelectingDate {
		// Fresh flow: fetch the default date's slots. Tomorrow may sit in
		// the next month; the calendar below follows the selected date.
		if _, err := ctrl.SelectDate(r.Context(), ctrl.SelectedDate()); err != nil &&
			!errors.Is(err, booking.ErrStaleFetch) {
			h.metrics.ObserveSlotFetch(metrics.FetchError)
			h.logger.Warn("initial slot fetch failed", zap.String("lawyer_id", lawyerID), zap.Error(err))
			slotsMessage = "no slots available"
		}
	}

	selected := ctrl.SelectedDate()
	slots := ctrl.Slots()
	if slotsMessage == "" && len(slots) == 0 {
		slotsMessage = "no slots available"
	}

	writeJSON(w, http.StatusOK, BookingPageResponse{
		Lawyer:       *lawyer,
		State:        ctrl.State(),
		SelectedDate: selected.Format(upstream.DateLayout),
		SelectedTime: ctrl.SelectedTime(),
		Calendar: CalendarResponse{
			Year:  selected.Year(),
			Month: int(selected.Month()),
			Days:  calendar.Generate(selected.Year(), selected.Month(), h.now()),
		},
		Slots:        slots,
		SlotsMessage: slotsMessage,
		Draft:        ctrl.Draft(),
	})
}

func (h *Handler) calendarMonth(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1970 || year > 2200 {
		writeError(w, http.StatusBadRequest, "invalid_year", "year must be a sane integer")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "invalid_month", "month must be 1-12")
		return
	}

	writeJSON(w, http.StatusOK, CalendarResponse{
		Year:  year,
		Month: month,
		Days:  calendar.Generate(year, time.Month(month), h.now()),
	})
}

// flow fetches the caller's live booking flow, or replies 409 when the page
// was never opened.
func (h *Handler) flow(w http.ResponseWriter, r *http.Request) (*booking.Controller, bool) {
	sc := sessionFrom(r.Context())
	ctrl, ok := h.flows.Get(sc.sid, chi.URLParam(r, "lawyerID"))
	if !ok {
		writeError(w, http.StatusConflict, "booking_not_started", "open the booking page first")
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) selectDate(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.flow(w, r)
	if !ok {
		return
	}

	var req SelectDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	date, err := time.Parse(upstream.DateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	slots, err := ctrl.SelectDate(r.Context(), date)
	switch {
	case errors.Is(err, booking.ErrPastDate):
		writeError(w, http.StatusUnprocessableEntity, "past_date", err.Error())
		return
	case errors.Is(err, booking.ErrStaleFetch):
		// A newer date selection superseded this one; its response owns
		// the slot list.
		h.metrics.ObserveSlotFetch(metrics.FetchStale)
		writeError(w, http.StatusConflict, "superseded", "a newer date selection is in flight")
		return
	case err != nil:
		h.metrics.ObserveSlotFetch(metrics.FetchError)
		h.logger.Warn("slot fetch failed", zap.String("date", req.Date), zap.Error(err))
		writeJSON(w, http.StatusOK, SlotsResponse{
			Date:    req.Date,
			Slots:   []upstream.TimeSlot{},
			Message: "no slots available",
		})
		return
	}

	resp := SlotsResponse{Date: req.Date, Slots: slots}
	if len(slots) == 0 {
		h.metrics.ObserveSlotFetch(metrics.FetchEmpty)
		resp.Message = "no slots available for this date"
	} else {
		h.metrics.ObserveSlotFetch(metrics.FetchOK)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) selectSlot(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.flow(w, r)
	if !ok {
		return
	}

	var req SelectSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	err := ctrl.SelectSlot(req.StartTime)
	switch {
	case errors.Is(err, booking.ErrSlotBooked):
		writeError(w, http.StatusConflict, "slot_booked", err.Error())
		return
	case errors.Is(err, booking.ErrUnknownSlot):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SelectSlotResponse{SelectedTime: ctrl.SelectedTime()})
}

func (h *Handler) openReview(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.flow(w, r)
	if !ok {
		return
	}

	draft, err := ctrl.OpenReview()
	if errors.Is(err, booking.ErrIncompleteDraft) {
		writeError(w, http.StatusConflict, "incomplete_selection", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, DraftResponse{Draft: draft})
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.flow(w, r)
	if !ok {
		return
	}

	var req UpdateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	if req.ConsultationMode != nil {
		if err := ctrl.SetMode(*req.ConsultationMode); err != nil {
			writeError(w, http.StatusConflict, "no_draft", err.Error())
			return
		}
	}
	if req.Problem != nil {
		if err := ctrl.SetProblem(*req.Problem); err != nil {
			writeError(w, http.StatusConflict, "no_draft", err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, DraftResponse{
		Draft:  ctrl.Draft(),
		Errors: ctrl.FieldErrors().Messages(),
	})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	sc := sessionFrom(r.Context())
	ctrl, ok := h.flow(w, r)
	if !ok {
		return
	}

	res, err := ctrl.Confirm(r.Context())

	var verr *booking.ValidationError
	var apiErr *upstream.APIError
	switch {
	case errors.As(err, &verr):
		h.metrics.ObserveBooking(metrics.BookingRejected)
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:  "validation_failed",
			Fields: verr.Fields.Messages(),
		})
		return
	case errors.Is(err, booking.ErrSubmitInProgress):
		h.metrics.ObserveBooking(metrics.BookingDuplicate)
		writeError(w, http.StatusConflict, "submit_in_progress", err.Error())
		return
	case errors.Is(err, booking.ErrNoDraft):
		writeError(w, http.StatusConflict, "no_draft", err.Error())
		return
	case errors.As(err, &apiErr):
		// Surface the server's message verbatim; the draft is preserved so
		// the user does not retype.
		h.metrics.ObserveBooking(metrics.BookingUpstream)
		writeError(w, apiErr.Status, "booking_rejected", apiErr.Message)
		return
	case err != nil:
		h.metrics.ObserveBooking(metrics.BookingUpstream)
		h.logger.Error("booking submit failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream_unreachable", "could not reach the scheduling service")
		return
	}

	h.metrics.ObserveBooking(metrics.BookingSuccess)
	h.flows.Remove(sc.sid, chi.URLParam(r, "lawyerID"))

	writeJSON(w, http.StatusOK, ConfirmResponse{
		Success:  res.Success,
		Message:  res.Message,
		Redirect: "/appointments",
	})
}

func (h *Handler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.flow(w, r)
	if !ok {
		return
	}

	ctrl.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// upstreamError maps a failed upstream call onto the response: API errors
// keep their status and human-readable message, transport failures become a
// generic 502.
func (h *Handler) upstreamError(w http.ResponseWriter, err error) {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, "upstream_error", apiErr.Message)
		return
	}
	h.logger.Error("upstream call failed", zap.Error(err))
	writeError(w, http.StatusBadGateway, "upstream_unreachable", "could not reach the scheduling service")
}
