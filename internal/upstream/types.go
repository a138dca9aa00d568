package upstream

import "fmt"

// AppointmentStatus values are owned by the upstream API. The gateway never
// computes transitions, it only renders what the server reports.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusAccepted  AppointmentStatus = "Accepted"
	StatusBooked    AppointmentStatus = "Booked"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
	StatusRejected  AppointmentStatus = "Rejected"
)

// TimeSlot is a read-only snapshot of one bookable interval. The server
// guarantees slots are non-overlapping and ordered by start time.
type TimeSlot struct {
	StartTime string `json:"startTime"` // HH:MM
	EndTime   string `json:"endTime"`   // HH:MM
	IsBooked  bool   `json:"isBooked"`
}

type Lawyer struct {
	ID              string   `json:"_id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	PracticeArea    string   `json:"practiceArea"`
	ExperienceYears int      `json:"experienceYears"`
	City            string   `json:"city"`
	Fee             float64  `json:"fee"`
	Rating          float64  `json:"rating"`
	Languages       []string `json:"languages,omitempty"`
}

type Review struct {
	ID        string  `json:"_id"`
	UserName  string  `json:"userName"`
	Rating    float64 `json:"rating"`
	Comment   string  `json:"comment"`
	CreatedAt string  `json:"createdAt"`
}

type Appointment struct {
	ID               string            `json:"_id"`
	LawyerID         string            `json:"lawyerId"`
	LawyerName       string            `json:"lawyerName"`
	Date             string            `json:"date"` // YYYY-MM-DD
	Time             string            `json:"time"` // HH:MM-HH:MM
	ConsultationMode string            `json:"consultationMode"`
	Problem          string            `json:"problem"`
	Fee              float64           `json:"fee"`
	Status           AppointmentStatus `json:"status"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Profile struct {
	UserID string `json:"_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// BookingRequest is the wire form of a confirmed booking draft.
type BookingRequest struct {
	LawyerID         string  `json:"lawyerId"`
	UserID           string  `json:"userId"`
	Date             string  `json:"date"` // YYYY-MM-DD
	Time             string  `json:"time"` // HH:MM-HH:MM
	ConsultationMode string  `json:"consultationMode"`
	Problem          string  `json:"problem"`
	Fee              float64 `json:"fee"`

	// CaseID links the booking to an existing case when set; it travels in
	// the URL path, not the body.
	CaseID string `json:"-"`
}

type BookResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type slotDetailsResponse struct {
	TimeSlots []TimeSlot `json:"timeSlots"`
}

type loginResponse struct {
	Success bool    `json:"success"`
	User    Profile `json:"user"`
}

type lawyerDetailsResponse struct {
	Lawyer Lawyer `json:"lawyer"`
}

type lawyersResponse struct {
	Lawyers []Lawyer `json:"lawyers"`
}

type reviewsResponse struct {
	Reviews []Review `json:"reviews"`
}

type appointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
}

// APIError is a non-2xx upstream response. Message is the human-readable
// text the UI surfaces verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("upstream returned status %d", e.Status)
}
