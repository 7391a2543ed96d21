package clinic

import (
	"context"
	"time"

	"github.com/clinicore/go-clinic-client/mutation"
	"github.com/clinicore/go-clinic-client/querycache"
)

// PatientInput is the payload for creating or updating a patient record.
type PatientInput struct {
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type Patients struct {
	pipe *mutation.Pipeline
}

func (s *Patients) List(ctx context.Context, filter ListFilter) ([]Patient, error) {
	params := filter.params()
	key := querycache.ListKey(ResourcePatients, params)
	return fetch[[]Patient](ctx, s.pipe, key, "/patients", params)
}

func (s *Patients) Get(ctx context.Context, id string) (Patient, error) {
	key := querycache.DetailKey(ResourcePatients, id)
	return fetch[Patient](ctx, s.pipe, key, "/patients/"+id, nil)
}

func (s *Patients) Create(ctx context.Context, input PatientInput) (Patient, error) {
	op := mutation.Operation{Route: "/patients", Fallback: "could not create the patient record"}
	res := mutation.Run[Patient](ctx, s.pipe, op, mutation.Create{Payload: input})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return Patient{}, res.Err
	}
	s.pipe.Invalidate(ResourcePatients)
	s.pipe.NotifySuccess("patient record created")
	return res.Value, nil
}

func (s *Patients) Update(ctx context.Context, id string, input PatientInput) (Patient, error) {
	op := mutation.Operation{Route: "/patients", Fallback: "could not update the patient record"}
	res := mutation.Run[Patient](ctx, s.pipe, op, mutation.Update{ID: id, Payload: input})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return Patient{}, res.Err
	}
	s.pipe.Invalidate(ResourcePatients)
	s.pipe.NotifySuccess("patient record updated")
	return res.Value, nil
}

func (s *Patients) Delete(ctx context.Context, id string) error {
	op := mutation.Operation{Route: "/patients", Fallback: "could not delete the patient record"}
	res := mutation.Run[struct{}](ctx, s.pipe, op, mutation.Delete{ID: id})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return res.Err
	}
	s.pipe.Invalidate(ResourcePatients)
	s.pipe.NotifySuccess("patient record deleted")
	return nil
}
