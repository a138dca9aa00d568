package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawconnect/booking-gateway/internal/booking"
	"github.com/lawconnect/booking-gateway/internal/metrics"
	"github.com/lawconnect/booking-gateway/internal/session"
	"github.com/lawconnect/booking-gateway/internal/upstream"
)

// fakeUpstream is an in-memory stand-in for the legal-consultation API.
type fakeUpstream struct {
	mu       sync.Mutex
	slots    map[string][]upstream.TimeSlot // keyed by date
	bookReqs []map[string]any
	bookFail string // when set, book-appointment replies 409 with this message
}

func (f *fakeUpstream) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /user/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "token", Value: "tok-1"})
		_, _ = w.Write([]byte(`{"success":true,"user":{"_id":"u-9","name":"Asha","email":"asha@example.com","role":"user"}}`))
	})
	mux.HandleFunc("POST /user/logout", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("GET /user/get-lawyer-details/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"lawyer":{"_id":"lw-1","name":"Adv. Rao","practiceArea":"Property","fee":1500}}`))
	})
	mux.HandleFunc("GET /user/get-slot-details/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		date := parts[len(parts)-1]
		f.mu.Lock()
		slots := f.slots[date]
		f.mu.Unlock()
		if slots == nil {
			slots = []upstream.TimeSlot{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"timeSlots": slots})
	})
	mux.HandleFunc("POST /user/book-appointment", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.bookReqs = append(f.bookReqs, body)
		fail := f.bookFail
		f.mu.Unlock()
		if fail != "" {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": fail})
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"Booked"}`))
	})
	mux.HandleFunc("GET /user/appointments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"appointments":[{"_id":"ap-1","lawyerId":"lw-1","date":"2025-07-10","time":"10:00-10:30","status":"Pending"}]}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeUpstream) bookings() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.bookReqs))
	copy(out, f.bookReqs)
	return out
}

// testGateway wires a full router against the fake upstream with "today"
// pinned to 2025-07-09.
func testGateway(t *testing.T, fake *fakeUpstream) *httptest.Server {
	t.Helper()

	up := fake.server(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	router := NewRouter(RouterConfig{
		Upstream: upstream.NewClient(up.URL),
		Sessions: session.NewStore(rdb, time.Hour),
		Flows:    booking.NewManager(),
		Redis:    rdb,
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Env:      "test",
		Version:  "test",
		Now: func() time.Time {
			return time.Date(2025, time.July, 9, 11, 0, 0, 0, time.UTC)
		},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func loggedInClient(t *testing.T, gw *httptest.Server) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp := postJSON(t, client, gw.URL+"/auth/login", map[string]string{
		"email":    "asha@example.com",
		"password": "secret",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return client
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func patchJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestBookingEndToEnd(t *testing.T) {
	fake := &fakeUpstream{slots: map[string][]upstream.TimeSlot{
		"2025-07-10": {{StartTime: "10:00", EndTime: "10:30", IsBooked: false}},
	}}
	gw := testGateway(t, fake)
	client := loggedInClient(t, gw)

	// Opening the page lands on tomorrow (2025-07-10) with its slots.
	resp, err := client.Get(gw.URL + "/booking/lw-1")
	require.NoError(t, err)
	page := decode[BookingPageResponse](t, resp)
	assert.Equal(t, "2025-07-10", page.SelectedDate)
	assert.Equal(t, 2025, page.Calendar.Year)
	assert.Equal(t, 7, page.Calendar.Month)
	require.Len(t, page.Slots, 1)
	assert.Equal(t, "Adv. Rao", page.Lawyer.Name)

	// Pick the 10:00 slot.
	resp = postJSON(t, client, gw.URL+"/booking/lw-1/slot", SelectSlotRequest{StartTime: "10:00"})
	sel := decode[SelectSlotResponse](t, resp)
	assert.Equal(t, "10:00-10:30", sel.SelectedTime)

	// Open the confirmation step.
	resp = postJSON(t, client, gw.URL+"/booking/lw-1/review", nil)
	draft := decode[DraftResponse](t, resp)
	require.NotNil(t, draft.Draft)
	assert.Equal(t, "2025-07-10", draft.Draft.Date)
	assert.Equal(t, "10:00-10:30", draft.Draft.Time)

	// Fill in mode and a 60-character problem description.
	problem := strings.Repeat("p", 60)
	mode := "online"
	resp = patchJSON(t, client, gw.URL+"/booking/lw-1/draft", UpdateDraftRequest{
		ConsultationMode: &mode,
		Problem:          &problem,
	})
	resp.Body.Close()

	// Confirm.
	resp = postJSON(t, client, gw.URL+"/booking/lw-1/confirm", nil)
	conf := decode[ConfirmResponse](t, resp)
	assert.True(t, conf.Success)
	assert.Equal(t, "Booked", conf.Message)
	assert.Equal(t, "/appointments", conf.Redirect)

	// Exactly one POST reached the booking endpoint, with the right payload.
	reqs := fake.bookings()
	require.Len(t, reqs, 1)
	assert.Equal(t, "2025-07-10", reqs[0]["date"])
	assert.Equal(t, "10:00-10:30", reqs[0]["time"])
	assert.Equal(t, "online", reqs[0]["consultationMode"])
	assert.Equal(t, "lw-1", reqs[0]["lawyerId"])
	assert.Equal(t, "u-9", reqs[0]["userId"])

	// The flow is gone: review without reopening the page is rejected.
	resp = postJSON(t, client, gw.URL+"/booking/lw-1/review", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// The appointments listing is reachable for the redirect target.
	resp2, err := client.Get(gw.URL + "/appointments")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestConfirmValidationFailure(t *testing.T) {
	fake := &fakeUpstream{slots: map[string][]upstream.TimeSlot{
		"2025-07-10": {{StartTime: "10:00", EndTime: "10:30"}},
	}}
	gw := testGateway(t, fake)
	client := loggedInClient(t, gw)

	resp, err := client.Get(gw.URL + "/booking/lw-1")
	require.NoError(t, err)
	resp.Body.Close()
	postJSON(t, client, gw.URL+"/booking/lw-1/slot", SelectSlotRequest{StartTime: "10:00"}).Body.Close()
	postJSON(t, client, gw.URL+"/booking/lw-1/review", nil).Body.Close()

	// Confirm with an untouched draft: both fields fail, nothing is sent.
	resp = postJSON(t, client, gw.URL+"/booking/lw-1/confirm", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	verr := decode[ValidationErrorResponse](t, resp)
	assert.Equal(t, "validation_failed", verr.Error)
	assert.Contains(t, verr.Fields, "consultationMode")
	assert.Contains(t, verr.Fields, "problem")
	assert.Empty(t, fake.bookings())
}

func TestConfirmUpstreamRejectionKeepsDraft(t *testing.T) {
	fake := &fakeUpstream{
		slots: map[string][]upstream.TimeSlot{
			"2025-07-10": {{StartTime: "10:00", EndTime: "10:30"}},
		},
		bookFail: "slot already booked",
	}
	gw := testGateway(t, fake)
	client := loggedInClient(t, gw)

	resp, err := client.Get(gw.URL + "/booking/lw-1")
	require.NoError(t, err)
	resp.Body.Close()
	postJSON(t, client, gw.URL+"/booking/lw-1/slot", SelectSlotRequest{StartTime: "10:00"}).Body.Close()
	postJSON(t, client, gw.URL+"/booking/lw-1/review", nil).Body.Close()

	mode := "in-person"
	problem := strings.Repeat("p", 80)
	patchJSON(t, client, gw.URL+"/booking/lw-1/draft", UpdateDraftRequest{
		ConsultationMode: &mode,
		Problem:          &problem,
	}).Body.Close()

	resp = postJSON(t, client, gw.URL+"/booking/lw-1/confirm", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	errResp := decode[ErrorResponse](t, resp)
	assert.Equal(t, "slot already booked", errResp.Details, "server message surfaces verbatim")

	// The draft survived: reopening the page still shows it.
	resp, err = client.Get(gw.URL + "/booking/lw-1")
	require.NoError(t, err)
	page := decode[BookingPageResponse](t, resp)
	require.NotNil(t, page.Draft)
	assert.Equal(t, problem, page.Draft.Problem)
}

func TestSelectDateValidation(t *testing.T) {
	fake := &fakeUpstream{slots: map[string][]upstream.TimeSlot{}}
	gw := testGateway(t, fake)
	client := loggedInClient(t, gw)

	resp, err := client.Get(gw.URL + "/booking/lw-1")
	require.NoError(t, err)
	resp.Body.Close()

	// Today (2025-07-09) is unselectable.
	resp = postJSON(t, client, gw.URL+"/booking/lw-1/date", SelectDateRequest{Date: "2025-07-09"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = postJSON(t, client, gw.URL+"/booking/lw-1/date", SelectDateRequest{Date: "not-a-date"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A valid future date with no availability is an explicit empty state.
	resp = postJSON(t, client, gw.URL+"/booking/lw-1/date", SelectDateRequest{Date: "2025-07-20"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots := decode[SlotsResponse](t, resp)
	assert.Empty(t, slots.Slots)
	assert.NotEmpty(t, slots.Message)
}

func TestBookedSlotClickIsRejected(t *testing.T) {
	fake := &fakeUpstream{slots: map[string][]upstream.TimeSlot{
		"2025-07-10": {
			{StartTime: "10:00", EndTime: "10:30", IsBooked: true},
			{StartTime: "11:00", EndTime: "11:30", IsBooked: false},
		},
	}}
	gw := testGateway(t, fake)
	client := loggedInClient(t, gw)

	resp, err := client.Get(gw.URL + "/booking/lw-1")
	require.NoError(t, err)
	resp.Body.Close()

	resp = postJSON(t, client, gw.URL+"/booking/lw-1/slot", SelectSlotRequest{StartTime: "10:00"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Review is still blocked: the booked click selected nothing.
	resp = postJSON(t, client, gw.URL+"/booking/lw-1/review", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	fake := &fakeUpstream{}
	gw := testGateway(t, fake)

	resp, err := http.Get(gw.URL + "/lawyers")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCalendarEndpoint(t *testing.T) {
	fake := &fakeUpstream{}
	gw := testGateway(t, fake)
	client := loggedInClient(t, gw)

	resp, err := client.Get(gw.URL + "/booking/lw-1/calendar?year=2025&month=7")
	require.NoError(t, err)
	cal := decode[CalendarResponse](t, resp)
	assert.Equal(t, 2025, cal.Year)

	var real int
	for _, d := range cal.Days {
		if d != nil {
			real++
		}
	}
	assert.Equal(t, 31, real)
	// 2025-07-01 is a Tuesday: two leading null cells.
	require.Greater(t, len(cal.Days), 2)
	assert.Nil(t, cal.Days[0])
	assert.Nil(t, cal.Days[1])
	assert.NotNil(t, cal.Days[2])

	resp, err = client.Get(gw.URL + "/booking/lw-1/calendar?year=2025&month=13")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogoutDropsSessionAndFlows(t *testing.T) {
	fake := &fakeUpstream{slots: map[string][]upstream.TimeSlot{}}
	gw := testGateway(t, fake)
	client := loggedInClient(t, gw)

	resp, err := client.Get(gw.URL + "/booking/lw-1")
	require.NoError(t, err)
	resp.Body.Close()

	postJSON(t, client, gw.URL+"/auth/logout", nil).Body.Close()

	resp, err = client.Get(gw.URL + "/lawyers")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
