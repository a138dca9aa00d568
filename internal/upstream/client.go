// Package upstream is the HTTP client for the remote legal-consultation API.
// The upstream owns all appointment and slot state; this client only reads
// snapshots and forwards state-changing requests.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DateLayout is the locale-neutral wire format for dates. Formatting through
// this layout can never shift the date by a day the way locale-dependent
// formatting can.
const DateLayout = "2006-01-02"

// sessionCookie carries the upstream session credential on every
// authenticated request.
const sessionCookie = "token"

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	token      string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSession returns a copy of the client that sends the given upstream
// session token on every request.
func (c *Client) WithSession(token string) *Client {
	clone := *c
	clone.token = token
	return &clone
}

// Login authenticates against the upstream and returns the profile snapshot
// together with the session token the upstream set via cookie.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Profile, string, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, "", fmt.Errorf("upstream: marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/user/login", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("upstream: create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("upstream: login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", decodeAPIError(resp)
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, "", fmt.Errorf("upstream: decode login response: %w", err)
	}

	var token string
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie {
			token = ck.Value
			break
		}
	}
	if token == "" {
		return nil, "", fmt.Errorf("upstream: login response carried no session cookie")
	}

	c.logger.Info("upstream login", zap.String("user_id", out.User.UserID), zap.String("role", out.User.Role))
	return &out.User, token, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/user/logout", nil, nil)
}

func (c *Client) GetLawyers(ctx context.Context) ([]Lawyer, error) {
	var out lawyersResponse
	if err := c.do(ctx, http.MethodGet, "/user/get-lawyers", nil, &out); err != nil {
		return nil, err
	}
	if out.Lawyers == nil {
		out.Lawyers = []Lawyer{}
	}
	return out.Lawyers, nil
}

func (c *Client) GetLawyerDetails(ctx context.Context, lawyerID string) (*Lawyer, error) {
	var out lawyerDetailsResponse
	if err := c.do(ctx, http.MethodGet, "/user/get-lawyer-details/"+lawyerID, nil, &out); err != nil {
		return nil, err
	}
	return &out.Lawyer, nil
}

func (c *Client) GetLawyerReviews(ctx context.Context, lawyerID string) ([]Review, error) {
	var out reviewsResponse
	if err := c.do(ctx, http.MethodGet, "/user/get-lawyer-reviews/"+lawyerID, nil, &out); err != nil {
		return nil, err
	}
	if out.Reviews == nil {
		out.Reviews = []Review{}
	}
	return out.Reviews, nil
}

// SlotDetails returns the slot snapshot for one (lawyer, date) pair. A day
// with no configured availability is an empty slice, not an error.
func (c *Client) SlotDetails(ctx context.Context, lawyerID, date string) ([]TimeSlot, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, fmt.Errorf("upstream: date must be YYYY-MM-DD: %w", err)
	}

	var out slotDetailsResponse
	if err := c.do(ctx, http.MethodGet, "/user/get-slot-details/"+lawyerID+"/"+date, nil, &out); err != nil {
		return nil, err
	}

	c.logger.Debug("slot details fetched",
		zap.String("lawyer_id", lawyerID),
		zap.String("date", date),
		zap.Int("slots", len(out.TimeSlots)))

	if out.TimeSlots == nil {
		out.TimeSlots = []TimeSlot{}
	}
	return out.TimeSlots, nil
}

// BookAppointment submits a confirmed booking draft. The upstream remains
// the sole arbiter of slot availability.
func (c *Client) BookAppointment(ctx context.Context, breq BookingRequest) (*BookResult, error) {
	path := "/user/book-appointment"
	if breq.CaseID != "" {
		path += "/" + breq.CaseID
	}

	var out BookResult
	if err := c.do(ctx, http.MethodPost, path, breq, &out); err != nil {
		return nil, err
	}

	c.logger.Info("booking submitted",
		zap.String("lawyer_id", breq.LawyerID),
		zap.String("date", breq.Date),
		zap.String("time", breq.Time),
		zap.Bool("success", out.Success))
	return &out, nil
}

func (c *Client) GetAppointments(ctx context.Context) ([]Appointment, error) {
	var out appointmentsResponse
	if err := c.do(ctx, http.MethodGet, "/user/appointments", nil, &out); err != nil {
		return nil, err
	}
	if out.Appointments == nil {
		out.Appointments = []Appointment{}
	}
	return out.Appointments, nil
}

// Ping reports whether the upstream is reachable at all. Any HTTP response
// counts; only transport failures do not.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("upstream: create ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("upstream: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("upstream: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("upstream: decode response: %w", err)
	}
	return nil
}

// decodeAPIError lifts the upstream's {message} error body into a typed
// error. Bodies that fail to parse fall back to the status code.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Message
	}
	return apiErr
}
