// Package clinic holds the data transfer objects of the clinic backend and
// the typed resource clients built over the mutation pipeline and query
// cache. Records are owned by the backend; the client treats them as
// immutable value objects within a request/response cycle.
package clinic

import (
	"time"

	"github.com/clinicore/go-clinic-client/model"
)

// User lives in the model package so the session store can hold it without
// depending on the resource clients.
type User = model.User

type Patient struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

type Appointment struct {
	ID             string            `json:"id"`
	PatientID      string            `json:"patientId"`
	PractitionerID string            `json:"practitionerId"`
	StartsAt       time.Time         `json:"startsAt"`
	EndsAt         time.Time         `json:"endsAt"`
	Status         AppointmentStatus `json:"status"`
	Reason         string            `json:"reason,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

type Consultation struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	PatientID     string    `json:"patientId"`
	Summary       string    `json:"summary"`
	Diagnosis     string    `json:"diagnosis,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Procedure struct {
	ID             string    `json:"id"`
	ConsultationID string    `json:"consultationId"`
	Code           string    `json:"code"`
	Description    string    `json:"description"`
	PriceCents     int64     `json:"priceCents"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Prescription struct {
	ID             string    `json:"id"`
	ConsultationID string    `json:"consultationId"`
	Medication     string    `json:"medication"`
	Dosage         string    `json:"dosage"`
	Instructions   string    `json:"instructions,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type TemplateKind string

const (
	TemplateReferral     TemplateKind = "referral"
	TemplateCertificate  TemplateKind = "certificate"
	TemplatePrescription TemplateKind = "prescription"
	TemplateInvoice      TemplateKind = "invoice"
)

type DocumentTemplate struct {
	ID        string       `json:"id"`
	Kind      TemplateKind `json:"kind"`
	Name      string       `json:"name"`
	Body      string       `json:"body"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// ListFilter is the common filter shape for list queries. Zero values are
// omitted from the request and from the cache key.
type ListFilter struct {
	Search   string
	Page     int
	PageSize int
	From     *time.Time
	To       *time.Time
	Status   string
}
