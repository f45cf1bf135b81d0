package execution

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/campusops/placement/pkg/constants"
	"github.com/campusops/placement/pkg/serrors"
)

type PairDTO struct {
	AssignmentID uuid.UUID `json:"assignment_id" validate:"required"`
	SiteID       uuid.UUID `json:"site_id" validate:"required"`
	ProgramID    uuid.UUID `json:"program_id" validate:"required"`
	PeriodStart  time.Time `json:"period_start" validate:"required"`
	PeriodEnd    time.Time `json:"period_end" validate:"required"`
}

type ExecuteDTO struct {
	Mode  string    `json:"mode" validate:"omitempty,oneof=atomic best_effort"`
	Pairs []PairDTO `json:"pairs" validate:"required,min=1,dive"`
}

func (d *ExecuteDTO) Normalize() {
	d.Mode = strings.ToLower(strings.TrimSpace(d.Mode))
}

func (d *ExecuteDTO) Ok(ctx context.Context) (serrors.ValidationErrors, bool) {
	d.Normalize()

	errs := constants.Validate.StructCtx(ctx, d)
	if errs == nil {
		return serrors.ValidationErrors{}, true
	}
	return serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors)), false
}
