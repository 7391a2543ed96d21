package clinic

import (
	"context"

	"github.com/clinicore/go-clinic-client/mutation"
	"github.com/clinicore/go-clinic-client/querycache"
)

type ConsultationInput struct {
	AppointmentID string `json:"appointmentId,omitempty"`
	PatientID     string `json:"patientId"`
	Summary       string `json:"summary"`
	Diagnosis     string `json:"diagnosis,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type Consultations struct {
	pipe *mutation.Pipeline
}

func (s *Consultations) List(ctx context.Context, filter ListFilter) ([]Consultation, error) {
	params := filter.params()
	key := querycache.ListKey(ResourceConsultations, params)
	return fetch[[]Consultation](ctx, s.pipe, key, "/consultations", params)
}

func (s *Consultations) Get(ctx context.Context, id string) (Consultation, error) {
	key := querycache.DetailKey(ResourceConsultations, id)
	return fetch[Consultation](ctx, s.pipe, key, "/consultations/"+id, nil)
}

func (s *Consultations) Create(ctx context.Context, input ConsultationInput) (Consultation, error) {
	op := mutation.Operation{Route: "/consultations", Fallback: "could not save the consultation"}
	res := mutation.Run[Consultation](ctx, s.pipe, op, mutation.Create{Payload: input})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return Consultation{}, res.Err
	}
	// A consultation shows up in the patient's history as well.
	s.pipe.Invalidate(ResourceConsultations, ResourcePatients)
	s.pipe.NotifySuccess("consultation saved")
	return res.Value, nil
}

func (s *Consultations) Update(ctx context.Context, id string, input ConsultationInput) (Consultation, error) {
	op := mutation.Operation{Route: "/consultations", Fallback: "could not update the consultation"}
	res := mutation.Run[Consultation](ctx, s.pipe, op, mutation.Update{ID: id, Payload: input})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return Consultation{}, res.Err
	}
	s.pipe.Invalidate(ResourceConsultations, ResourcePatients)
	s.pipe.NotifySuccess("consultation updated")
	return res.Value, nil
}

type ProcedureInput struct {
	ConsultationID string `json:"consultationId"`
	Code           string `json:"code"`
	Description    string `json:"description"`
	PriceCents     int64  `json:"priceCents"`
}

type Procedures struct {
	pipe *mutation.Pipeline
}

func (s *Procedures) List(ctx context.Context, filter ListFilter) ([]Procedure, error) {
	params := filter.params()
	key := querycache.ListKey(ResourceProcedures, params)
	return fetch[[]Procedure](ctx, s.pipe, key, "/procedures", params)
}

func (s *Procedures) Create(ctx context.Context, input ProcedureInput) (Procedure, error) {
	op := mutation.Operation{Route: "/procedures", Fallback: "could not record the procedure"}
	res := mutation.Run[Procedure](ctx, s.pipe, op, mutation.Create{Payload: input})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return Procedure{}, res.Err
	}
	s.pipe.Invalidate(ResourceProcedures, ResourceConsultations)
	s.pipe.NotifySuccess("procedure recorded")
	return res.Value, nil
}

func (s *Procedures) Delete(ctx context.Context, id string) error {
	op := mutation.Operation{Route: "/procedures", Fallback: "could not remove the procedure"}
	res := mutation.Run[struct{}](ctx, s.pipe, op, mutation.Delete{ID: id})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return res.Err
	}
	s.pipe.Invalidate(ResourceProcedures, ResourceConsultations)
	return nil
}

type PrescriptionInput struct {
	ConsultationID string `json:"consultationId"`
	Medication     string `json:"medication"`
	Dosage         string `json:"dosage"`
	Instructions   string `json:"instructions,omitempty"`
}

type Prescriptions struct {
	pipe *mutation.Pipeline
}

func (s *Prescriptions) List(ctx context.Context, filter ListFilter) ([]Prescription, error) {
	params := filter.params()
	key := querycache.ListKey(ResourcePrescriptions, params)
	return fetch[[]Prescription](ctx, s.pipe, key, "/prescriptions", params)
}

func (s *Prescriptions) Create(ctx context.Context, input PrescriptionInput) (Prescription, error) {
	op := mutation.Operation{Route: "/prescriptions", Fallback: "could not issue the prescription"}
	res := mutation.Run[Prescription](ctx, s.pipe, op, mutation.Create{Payload: input})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return Prescription{}, res.Err
	}
	s.pipe.Invalidate(ResourcePrescriptions, ResourceConsultations)
	s.pipe.NotifySuccess("prescription issued")
	return res.Value, nil
}

func (s *Prescriptions) Delete(ctx context.Context, id string) error {
	op := mutation.Operation{Route: "/prescriptions", Fallback: "could not withdraw the prescription"}
	res := mutation.Run[struct{}](ctx, s.pipe, op, mutation.Delete{ID: id})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return res.Err
	}
	s.pipe.Invalidate(ResourcePrescriptions, ResourceConsultations)
	return nil
}
