package clinic

import (
	"context"
	"time"

	"github.com/clinicore/go-clinic-client/mutation"
	"github.com/clinicore/go-clinic-client/querycache"
)

// AppointmentInput is the payload for booking or rescheduling an
// appointment. Conflicting time ranges come back as 422 validation errors
// with embedded timestamps; the pipeline reformats those before display.
type AppointmentInput struct {
	PatientID      string    `json:"patientId"`
	PractitionerID string    `json:"practitionerId"`
	StartsAt       time.Time `json:"startsAt"`
	EndsAt         time.Time `json:"endsAt"`
	Reason         string    `json:"reason,omitempty"`
}

type Appointments struct {
	pipe *mutation.Pipeline
}

func (s *Appointments) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	params := filter.params()
	key := querycache.ListKey(ResourceAppointments, params)
	return fetch[[]Appointment](ctx, s.pipe, key, "/appointments", params)
}

func (s *Appointments) Get(ctx context.Context, id string) (Appointment, error) {
	key := querycache.DetailKey(ResourceAppointments, id)
	return fetch[Appointment](ctx, s.pipe, key, "/appointments/"+id, nil)
}

func (s *Appointments) Book(ctx context.Context, input AppointmentInput) (Appointment, error) {
	op := mutation.Operation{Route: "/appointments", Fallback: "could not book the appointment"}
	res := mutation.Run[Appointment](ctx, s.pipe, op, mutation.Create{Payload: input})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return Appointment{}, res.Err
	}
	s.pipe.Invalidate(ResourceAppointments)
	s.pipe.NotifySuccess("appointment booked")
	return res.Value, nil
}

func (s *Appointments) Reschedule(ctx context.Context, id string, input AppointmentInput) (Appointment, error) {
	op := mutation.Operation{Route: "/appointments", Fallback: "could not reschedule the appointment"}
	res := mutation.Run[Appointment](ctx, s.pipe, op, mutation.Update{ID: id, Payload: input})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return Appointment{}, res.Err
	}
	s.pipe.Invalidate(ResourceAppointments)
	s.pipe.NotifySuccess("appointment rescheduled")
	return res.Value, nil
}

// UpdateStatus partially updates just the status field.
func (s *Appointments) UpdateStatus(ctx context.Context, id string, status AppointmentStatus) (Appointment, error) {
	op := mutation.Operation{Route: "/appointments", Fallback: "could not update the appointment"}
	payload := map[string]AppointmentStatus{"status": status}
	res := mutation.Run[Appointment](ctx, s.pipe, op, mutation.Update{ID: id, Payload: payload, Patch: true})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return Appointment{}, res.Err
	}
	s.pipe.Invalidate(ResourceAppointments)
	return res.Value, nil
}

func (s *Appointments) Cancel(ctx context.Context, id string) error {
	_, err := s.UpdateStatus(ctx, id, AppointmentCancelled)
	if err == nil {
		s.pipe.NotifySuccess("appointment cancelled")
	}
	return err
}
