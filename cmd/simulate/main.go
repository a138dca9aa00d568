// simulate drives full booking flows through the gateway: login, pick a
// lawyer, pick a date, pick a slot, review, confirm. Point it at a gateway
// backed by mock-upstream to exercise the flow under load.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/lawconnect/booking-gateway/internal/api"
	"github.com/lawconnect/booking-gateway/internal/booking"
	"github.com/lawconnect/booking-gateway/internal/upstream"
)

type SimConfig struct {
	GatewayBaseURL string
	Duration       time.Duration
	Workers        int
	DateHorizon    int // how many days ahead a worker may book
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Login     OperationMetrics
	SlotFetch OperationMetrics
	Confirm   OperationMetrics
	FullFlow  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("booking-flow simulator starting")

	cfg := loadConfig()
	log.Printf("config: gateway=%s duration=%s workers=%d horizon=%d days",
		cfg.GatewayBaseURL, cfg.Duration, cfg.Workers, cfg.DateHorizon)

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{config: cfg}
	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	return SimConfig{
		GatewayBaseURL: getEnv("SIM_GATEWAY_BASE_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		DateHorizon:    getInt("SIM_DATE_HORIZON", 20),
	}
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.runWorker(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (s *Simulator) runWorker(ctx context.Context, worker int) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Printf("worker %d: cookie jar: %v", worker, err)
		return
	}
	client := &http.Client{Jar: jar, Timeout: 10 * time.Second}

	lawyers, err := s.login(ctx, client)
	if err != nil {
		log.Printf("worker %d: login: %v", worker, err)
		return
	}
	if len(lawyers) == 0 {
		log.Printf("worker %d: gateway has no lawyers to book", worker)
		return
	}

	for ctx.Err() == nil {
		lawyer := lawyers[rand.Intn(len(lawyers))]
		s.runFlow(ctx, client, lawyer.ID)
	}
}

// login authenticates with a fabricated identity and returns the lawyer
// listing the worker will book against.
func (s *Simulator) login(ctx context.Context, client *http.Client) ([]upstream.Lawyer, error) {
	start := time.Now()
	var loginResp api.LoginResponse
	status, err := s.call(ctx, client, http.MethodPost, "/auth/login", map[string]string{
		"email":    gofakeit.Email(),
		"password": gofakeit.Password(true, true, true, false, false, 12),
	}, &loginResp)
	s.metrics.Login.Record(time.Since(start), err == nil && status == http.StatusOK, false)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("login status %d", status)
	}

	var listResp struct {
		Lawyers []upstream.Lawyer `json:"lawyers"`
	}
	if status, err = s.call(ctx, client, http.MethodGet, "/lawyers", nil, &listResp); err != nil || status != http.StatusOK {
		return nil, fmt.Errorf("list lawyers: status=%d err=%v", status, err)
	}
	return listResp.Lawyers, nil
}

// runFlow walks one complete booking attempt. Conflicts (slot raced away,
// day already full) are expected outcomes under load, not errors.
func (s *Simulator) runFlow(ctx context.Context, client *http.Client, lawyerID string) {
	flowStart := time.Now()

	var page api.BookingPageResponse
	status, err := s.call(ctx, client, http.MethodGet, "/booking/"+lawyerID, nil, &page)
	if err != nil || status != http.StatusOK {
		s.metrics.FullFlow.Record(time.Since(flowStart), false, false)
		return
	}

	// Pick a random selectable date inside the horizon.
	date := time.Now().AddDate(0, 0, 1+rand.Intn(s.config.DateHorizon))
	fetchStart := time.Now()
	var slotsResp api.SlotsResponse
	status, err = s.call(ctx, client, http.MethodPost, "/booking/"+lawyerID+"/date",
		api.SelectDateRequest{Date: date.Format(upstream.DateLayout)}, &slotsResp)
	s.metrics.SlotFetch.Record(time.Since(fetchStart), err == nil && status == http.StatusOK, status == http.StatusConflict)
	if err != nil || status != http.StatusOK {
		s.metrics.FullFlow.Record(time.Since(flowStart), false, status == http.StatusConflict)
		return
	}

	var open *upstream.TimeSlot
	for i := range slotsResp.Slots {
		if !slotsResp.Slots[i].IsBooked {
			open = &slotsResp.Slots[i]
			break
		}
	}
	if open == nil {
		s.metrics.FullFlow.Record(time.Since(flowStart), false, true)
		return
	}

	if status, err = s.call(ctx, client, http.MethodPost, "/booking/"+lawyerID+"/slot",
		api.SelectSlotRequest{StartTime: open.StartTime}, nil); err != nil || status != http.StatusOK {
		s.metrics.FullFlow.Record(time.Since(flowStart), false, status == http.StatusConflict)
		return
	}

	if status, err = s.call(ctx, client, http.MethodPost, "/booking/"+lawyerID+"/review", nil, nil); err != nil || status != http.StatusOK {
		s.metrics.FullFlow.Record(time.Since(flowStart), false, false)
		return
	}

	mode := booking.ModeOnline
	if rand.Intn(2) == 0 {
		mode = booking.ModeInPerson
	}
	problem := fabricateProblem()
	if status, err = s.call(ctx, client, http.MethodPatch, "/booking/"+lawyerID+"/draft",
		api.UpdateDraftRequest{ConsultationMode: &mode, Problem: &problem}, nil); err != nil || status != http.StatusOK {
		s.metrics.FullFlow.Record(time.Since(flowStart), false, false)
		return
	}

	confirmStart := time.Now()
	status, err = s.call(ctx, client, http.MethodPost, "/booking/"+lawyerID+"/confirm", nil, nil)
	success := err == nil && status == http.StatusOK
	conflict := status == http.StatusConflict
	s.metrics.Confirm.Record(time.Since(confirmStart), success, conflict)
	s.metrics.FullFlow.Record(time.Since(flowStart), success, conflict)

	if !success && !conflict {
		// Abandon the draft so the next attempt starts clean.
		_, _ = s.call(ctx, client, http.MethodPost, "/booking/"+lawyerID+"/cancel", nil, nil)
	}
}

// fabricateProblem produces a description inside the validator's bounds.
func fabricateProblem() string {
	p := gofakeit.Paragraph(1, 3, 12, " ")
	for len(p) < booking.ProblemMinLength {
		p += " " + gofakeit.Sentence(10)
	}
	if len(p) > booking.ProblemMaxLength {
		p = strings.TrimSpace(p[:booking.ProblemMaxLength])
	}
	return p
}

func (s *Simulator) call(ctx context.Context, client *http.Client, method, path string, in, out any) (int, error) {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.GatewayBaseURL+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println("=== simulation report ===")
	printOp("login", &s.metrics.Login)
	printOp("slot fetch", &s.metrics.SlotFetch)
	printOp("confirm", &s.metrics.Confirm)
	printOp("full flow", &s.metrics.FullFlow)
}

func printOp(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		fmt.Printf("%-12s no operations recorded\n", name)
		return
	}
	avg, min, max, p50, p95 := om.Stats()
	fmt.Printf("%-12s total=%d success=%d conflict=%d error=%d\n",
		name, total,
		atomic.LoadInt64(&om.Success),
		atomic.LoadInt64(&om.Conflict),
		atomic.LoadInt64(&om.Error))
	fmt.Printf("%-12s avg=%s min=%s max=%s p50=%s p95=%s\n", "", avg, min, max, p50, p95)
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

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
