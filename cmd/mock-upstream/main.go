// mock-upstream is a local stand-in for the remote legal-consultation API.
// It fabricates lawyers and slot grids so the gateway and simulator can run
// without the real backend.
package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lawconnect/booking-gateway/internal/upstream"
)

var practiceAreas = []string{
	"Property",
	"Family",
	"Criminal Defense",
	"Corporate",
	"Immigration",
	"Tax",
	"Employment",
	"Intellectual Property",
}

type store struct {
	mu       sync.Mutex
	lawyers  []upstream.Lawyer
	reviews  map[string][]upstream.Review
	sessions map[string]upstream.Profile          // token -> profile
	booked   map[string]bool                      // lawyerID|date|start -> taken
	appts    map[string][]upstream.Appointment    // userID -> appointments
}

func newStore(lawyerCount int) *store {
	s := &store{
		reviews:  make(map[string][]upstream.Review),
		sessions: make(map[string]upstream.Profile),
		booked:   make(map[string]bool),
		appts:    make(map[string][]upstream.Appointment),
	}

	for i := 0; i < lawyerCount; i++ {
		lw := upstream.Lawyer{
			ID:              fmt.Sprintf("lw-%03d", i+1),
			Name:            "Adv. " + gofakeit.Name(),
			Email:           gofakeit.Email(),
			PracticeArea:    practiceAreas[gofakeit.Number(0, len(practiceAreas)-1)],
			ExperienceYears: gofakeit.Number(2, 30),
			City:            gofakeit.City(),
			Fee:             float64(gofakeit.Number(10, 60)) * 50,
			Rating:          float64(gofakeit.Number(30, 50)) / 10,
		}
		s.lawyers = append(s.lawyers, lw)

		nReviews := gofakeit.Number(0, 6)
		for j := 0; j < nReviews; j++ {
			s.reviews[lw.ID] = append(s.reviews[lw.ID], upstream.Review{
				ID:        uuid.NewString(),
				UserName:  gofakeit.Name(),
				Rating:    float64(gofakeit.Number(2, 5)),
				Comment:   gofakeit.Sentence(12),
				CreatedAt: gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now()).Format(time.RFC3339),
			})
		}
	}
	return s
}

func (s *store) lawyer(id string) (*upstream.Lawyer, bool) {
	for i := range s.lawyers {
		if s.lawyers[i].ID == id {
			return &s.lawyers[i], true
		}
	}
	return nil, false
}

func bookedKey(lawyerID, date, start string) string {
	return lawyerID + "|" + date + "|" + start
}

// slotGrid generates the half-hour working-day grid for one (lawyer, date)
// pair. A stable hash pre-books a third of the slots so days never look
// uniformly empty.
func (s *store) slotGrid(lawyerID, date string) []upstream.TimeSlot {
	var slots []upstream.TimeSlot
	for hour := 9; hour < 17; hour++ {
		for _, min := range []int{0, 30} {
			start := fmt.Sprintf("%02d:%02d", hour, min)
			endMin := min + 30
			endHour := hour
			if endMin == 60 {
				endMin = 0
				endHour++
			}
			end := fmt.Sprintf("%02d:%02d", endHour, endMin)

			h := fnv.New32a()
			_, _ = h.Write([]byte(bookedKey(lawyerID, date, start)))
			preBooked := h.Sum32()%3 == 0

			slots = append(slots, upstream.TimeSlot{
				StartTime: start,
				EndTime:   end,
				IsBooked:  preBooked || s.booked[bookedKey(lawyerID, date, start)],
			})
		}
	}
	return slots
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (s *store) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("token")
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "not logged in")
			return
		}
		s.mu.Lock()
		_, ok := s.sessions[ck.Value]
		s.mu.Unlock()
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "session expired")
			return
		}
		next(w, r)
	}
}

func (s *store) profileFor(r *http.Request) (upstream.Profile, bool) {
	ck, err := r.Cookie("token")
	if err != nil {
		return upstream.Profile{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.sessions[ck.Value]
	return p, ok
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	port := getEnv("MOCK_PORT", "9090")
	lawyerCount := getInt("MOCK_LAWYERS", 25)
	gofakeit.Seed(42) // stable data across restarts

	s := newStore(lawyerCount)
	log.Printf("mock upstream ready: %d lawyers", lawyerCount)

	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/user/login", func(w http.ResponseWriter, r *http.Request) {
		var creds upstream.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" {
			writeMessage(w, http.StatusBadRequest, "email and password are required")
			return
		}

		name := strings.SplitN(creds.Email, "@", 2)[0]
		profile := upstream.Profile{
			UserID: "u-" + name,
			Name:   name,
			Email:  creds.Email,
			Role:   "user",
		}

		token := uuid.NewString()
		s.mu.Lock()
		s.sessions[token] = profile
		s.mu.Unlock()

		http.SetCookie(w, &http.Cookie{Name: "token", Value: token, Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": profile})
	})

	r.Post("/user/logout", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("token"); err == nil {
			s.mu.Lock()
			delete(s.sessions, ck.Value)
			s.mu.Unlock()
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))

	r.Get("/user/get-lawyers", s.requireAuth(func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		lawyers := make([]upstream.Lawyer, len(s.lawyers))
		copy(lawyers, s.lawyers)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"lawyers": lawyers})
	}))

	r.Get("/user/get-lawyer-details/{lawyerID}", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		lw, ok := s.lawyer(chi.URLParam(r, "lawyerID"))
		s.mu.Unlock()
		if !ok {
			writeMessage(w, http.StatusNotFound, "lawyer not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"lawyer": lw})
	}))

	r.Get("/user/get-lawyer-reviews/{lawyerID}", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		reviews := s.reviews[chi.URLParam(r, "lawyerID")]
		s.mu.Unlock()
		if reviews == nil {
			reviews = []upstream.Review{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
	}))

	r.Get("/user/get-slot-details/{lawyerID}/{date}", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		date := chi.URLParam(r, "date")
		if _, err := time.Parse(upstream.DateLayout, date); err != nil {
			writeMessage(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}

		s.mu.Lock()
		lw, ok := s.lawyer(chi.URLParam(r, "lawyerID"))
		var slots []upstream.TimeSlot
		if ok {
			slots = s.slotGrid(lw.ID, date)
		}
		s.mu.Unlock()

		if !ok {
			writeMessage(w, http.StatusNotFound, "lawyer not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"timeSlots": slots})
	}))

	book := s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		profile, _ := s.profileFor(r)

		var req upstream.BookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "could not parse booking request")
			return
		}
		start := strings.SplitN(req.Time, "-", 2)[0]

		s.mu.Lock()
		defer s.mu.Unlock()

		lw, ok := s.lawyer(req.LawyerID)
		if !ok {
			writeMessage(w, http.StatusNotFound, "lawyer not found")
			return
		}

		for _, slot := range s.slotGrid(lw.ID, req.Date) {
			if slot.StartTime != start {
				continue
			}
			if slot.IsBooked {
				writeMessage(w, http.StatusConflict, "slot already booked")
				return
			}

			s.booked[bookedKey(lw.ID, req.Date, start)] = true
			s.appts[profile.UserID] = append(s.appts[profile.UserID], upstream.Appointment{
				ID:               uuid.NewString(),
				LawyerID:         lw.ID,
				LawyerName:       lw.Name,
				Date:             req.Date,
				Time:             req.Time,
				ConsultationMode: req.ConsultationMode,
				Problem:          req.Problem,
				Fee:              req.Fee,
				Status:           upstream.StatusPending,
			})
			writeJSON(w, http.StatusOK, upstream.BookResult{Success: true, Message: "Appointment booked"})
			return
		}
		writeMessage(w, http.StatusNotFound, "no such slot")
	})
	r.Post("/user/book-appointment", book)
	r.Post("/user/book-appointment/{caseID}", book)

	r.Get("/user/appointments", s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		profile, _ := s.profileFor(r)
		s.mu.Lock()
		appts := s.appts[profile.UserID]
		s.mu.Unlock()
		if appts == nil {
			appts = []upstream.Appointment{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
	}))

	log.Printf("mock upstream listening on :%s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
