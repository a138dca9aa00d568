package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/get-slot-details/lw-1/2025-07-10", r.URL.Path)
		if ck, err := r.Cookie("token"); assert.NoError(t, err) {
			assert.Equal(t, "tok-abc", ck.Value)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"timeSlots": []TimeSlot{
				{StartTime: "10:00", EndTime: "10:30", IsBooked: false},
				{StartTime: "10:30", EndTime: "11:00", IsBooked: true},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL).WithSession("tok-abc")
	slots, err := c.SlotDetails(context.Background(), "lw-1", "2025-07-10")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "10:00", slots[0].StartTime)
	assert.True(t, slots[1].IsBooked)
}

func TestSlotDetailsEmptyDayIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"timeSlots": null}`))
	}))
	defer srv.Close()

	slots, err := NewClient(srv.URL).SlotDetails(context.Background(), "lw-1", "2025-07-10")
	require.NoError(t, err)
	require.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestSlotDetailsRejectsBadDate(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SlotDetails(context.Background(), "lw-1", "07/10/2025")
	require.Error(t, err)
	assert.False(t, called, "malformed dates must never reach the wire")
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"slot already booked"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SlotDetails(context.Background(), "lw-1", "2025-07-10")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "slot already booked", apiErr.Error())
}

func TestBookAppointmentPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/user/book-appointment", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"message":"Booked"}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).BookAppointment(context.Background(), BookingRequest{
		LawyerID:         "lw-1",
		UserID:           "u-9",
		Date:             "2025-07-10",
		Time:             "10:00-10:30",
		ConsultationMode: "online",
		Problem:          "details of the matter",
		Fee:              1500,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Booked", res.Message)

	assert.Equal(t, "lw-1", got["lawyerId"])
	assert.Equal(t, "2025-07-10", got["date"])
	assert.Equal(t, "10:00-10:30", got["time"])
	assert.Equal(t, "online", got["consultationMode"])
	assert.Equal(t, float64(1500), got["fee"])
	assert.NotContains(t, got, "CaseID", "case id travels in the path, not the body")
}

func TestBookAppointmentWithCaseID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/book-appointment/case-42", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"message":"Booked"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).BookAppointment(context.Background(), BookingRequest{
		LawyerID: "lw-1",
		CaseID:   "case-42",
	})
	require.NoError(t, err)
}

func TestLoginExtractsSessionToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "token", Value: "tok-xyz"})
		_, _ = w.Write([]byte(`{"success":true,"user":{"_id":"u-9","name":"Asha","role":"user"}}`))
	}))
	defer srv.Close()

	profile, token, err := NewClient(srv.URL).Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok-xyz", token)
	assert.Equal(t, "u-9", profile.UserID)
}

func TestLoginFailureSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL).Login(context.Background(), Credentials{Email: "a@b.c", Password: "nope"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid credentials", apiErr.Message)
}
