package supplier

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// Step is one CRM write of the onboarding sequence.
type Step struct {
	Name string
	Run  func(ctx context.Context, r *run) error
}

// run is the state shared by the steps of one submission.
type run struct {
	id           string
	req          supplierapi.Request
	rawCountry   string
	files        []Upload
	recordTypeID string
	refs         RecordRefs
	warnings     []string
}

func (r *run) warn(msg string) {
	r.warnings = append(r.warnings, msg)
}

// execute runs steps in order. A hard failure stops the sequence and is
// returned; everything already written stays in the CRM.
func (o *Orchestrator) execute(ctx context.Context, r *run, steps []Step) error {
	for _, step := range steps {
		stepCtx, span := o.tracer.Start(ctx, "supplier.step."+step.Name)
		span.SetAttributes(attribute.String("submission.id", r.id))
		err := step.Run(stepCtx, r)
		if err == nil {
			span.End()
			continue
		}
		span.RecordError(err)

		var se *StepError
		if errors.As(err, &se) && !se.Hard {
			se.Step = step.Name
			span.SetStatus(codes.Error, "soft failure")
			span.End()
			o.logger.Warn("supplier step failed, continuing",
				"submission_id", r.id,
				"step", step.Name,
				"account_id", r.refs.AccountID,
				"error", se.Err,
			)
			if se.Warning != "" {
				r.warn(se.Warning)
			}
			continue
		}
		span.SetStatus(codes.Error, "hard failure")
		span.End()
		o.logger.Error("supplier step failed, aborting",
			"submission_id", r.id,
			"step", step.Name,
			"account_id", r.refs.AccountID,
			"error", err,
		)
		if se != nil && se.Err != nil {
			return se.Err
		}
		return err
	}
	return nil
}
