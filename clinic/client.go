package clinic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/clinicore/go-clinic-client/apierror"
	"github.com/clinicore/go-clinic-client/mutation"
	"github.com/clinicore/go-clinic-client/querycache"
)

// Cache-key roots, one per resource. Mutating a resource invalidates its
// root, which drops every list and detail entry under it.
const (
	ResourcePatients      = "patients"
	ResourceAppointments  = "appointments"
	ResourceConsultations = "consultations"
	ResourceProcedures    = "procedures"
	ResourcePrescriptions = "prescriptions"
	ResourceTemplates     = "document-templates"
)

// Client bundles the typed resource clients. Reads go through the query
// cache; mutations go through the pipeline and invalidate their resource
// root.
type Client struct {
	Patients      *Patients
	Appointments  *Appointments
	Consultations *Consultations
	Procedures    *Procedures
	Prescriptions *Prescriptions
	Templates     *Templates
}

func NewClient(pipe *mutation.Pipeline) *Client {
	return &Client{
		Patients:      &Patients{pipe: pipe},
		Appointments:  &Appointments{pipe: pipe},
		Consultations: &Consultations{pipe: pipe},
		Procedures:    &Procedures{pipe: pipe},
		Prescriptions: &Prescriptions{pipe: pipe},
		Templates:     &Templates{pipe: pipe},
	}
}

func (f ListFilter) params() map[string]string {
	params := make(map[string]string)
	if f.Search != "" {
		params["search"] = f.Search
	}
	if f.Page > 0 {
		params["page"] = strconv.Itoa(f.Page)
	}
	if f.PageSize > 0 {
		params["pageSize"] = strconv.Itoa(f.PageSize)
	}
	if f.Status != "" {
		params["status"] = f.Status
	}
	if f.From != nil {
		params["from"] = f.From.UTC().Format(time.RFC3339)
	}
	if f.To != nil {
		params["to"] = f.To.UTC().Format(time.RFC3339)
	}
	return params
}

// fetch issues a cached GET and decodes the wrapped response into T.
func fetch[T any](ctx context.Context, pipe *mutation.Pipeline, key, route string, params map[string]string) (T, error) {
	return querycache.Fetch[T](pipe.Cache(), key, 0, func() (T, error) {
		var zero T

		u := pipe.BaseURL() + route
		if len(params) > 0 {
			values := url.Values{}
			for name, value := range params {
				values.Set(name, value)
			}
			u += "?" + values.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return zero, errors.Wrapf(err, "[clinic.fetch] %s", route)
		}
		resp, err := pipe.Client().Do(req)
		if err != nil {
			return zero, apierror.ClassifyErr(err)
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			return zero, apierror.FromResponse(resp, raw)
		}

		body := raw
		var envelope mutation.Envelope
		if jsonErr := json.Unmarshal(raw, &envelope); jsonErr == nil && envelope.Data != nil {
			body = envelope.Data
		}
		if err := json.Unmarshal(body, &zero); err != nil {
			return zero, errors.Wrapf(err, "[clinic.fetch] %s decode", route)
		}
		return zero, nil
	})
}
