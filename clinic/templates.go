package clinic

import (
	"context"

	"github.com/clinicore/go-clinic-client/mutation"
	"github.com/clinicore/go-clinic-client/querycache"
)

type TemplateInput struct {
	Kind TemplateKind `json:"kind"`
	Name string       `json:"name"`
	Body string       `json:"body"`
}

type Templates struct {
	pipe *mutation.Pipeline
}

func (s *Templates) List(ctx context.Context, kind TemplateKind) ([]DocumentTemplate, error) {
	params := map[string]string{}
	if kind != "" {
		params["kind"] = string(kind)
	}
	key := querycache.ListKey(ResourceTemplates, params)
	return fetch[[]DocumentTemplate](ctx, s.pipe, key, "/document-templates", params)
}

func (s *Templates) Get(ctx context.Context, id string) (DocumentTemplate, error) {
	key := querycache.DetailKey(ResourceTemplates, id)
	return fetch[DocumentTemplate](ctx, s.pipe, key, "/document-templates/"+id, nil)
}

func (s *Templates) Create(ctx context.Context, input TemplateInput) (DocumentTemplate, error) {
	op := mutation.Operation{Route: "/document-templates", Fallback: "could not create the template"}
	res := mutation.Run[DocumentTemplate](ctx, s.pipe, op, mutation.Create{Payload: input})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return DocumentTemplate{}, res.Err
	}
	s.pipe.Invalidate(ResourceTemplates)
	s.pipe.NotifySuccess("template created")
	return res.Value, nil
}

func (s *Templates) Update(ctx context.Context, id string, input TemplateInput) (DocumentTemplate, error) {
	op := mutation.Operation{Route: "/document-templates", Fallback: "could not update the template"}
	res := mutation.Run[DocumentTemplate](ctx, s.pipe, op, mutation.Update{ID: id, Payload: input})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return DocumentTemplate{}, res.Err
	}
	s.pipe.Invalidate(ResourceTemplates)
	s.pipe.NotifySuccess("template updated")
	return res.Value, nil
}

func (s *Templates) Delete(ctx context.Context, id string) error {
	op := mutation.Operation{Route: "/document-templates", Fallback: "could not delete the template"}
	res := mutation.Run[struct{}](ctx, s.pipe, op, mutation.Delete{ID: id})
	if res.Err != nil {
		s.pipe.Report(res.Err, op.Fallback)
		return res.Err
	}
	s.pipe.Invalidate(ResourceTemplates)
	s.pipe.NotifySuccess("template deleted")
	return nil
}
