package batch

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/campusops/placement/pkg/constants"
	"github.com/campusops/placement/pkg/serrors"
)

type CreateDTO struct {
	Name          string     `json:"name" validate:"required"`
	ProgramFilter *uuid.UUID `json:"program_filter,omitempty"`
}

func (d *CreateDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
}

func (d *CreateDTO) Ok(ctx context.Context) (serrors.ValidationErrors, bool) {
	d.Normalize()

	errs := constants.Validate.StructCtx(ctx, d)
	if errs == nil {
		return serrors.ValidationErrors{}, true
	}
	return serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors)), false
}

type AddStudentsDTO struct {
	AssignmentIDs []uuid.UUID `json:"assignment_ids" validate:"required,min=1"`
}

func (d *AddStudentsDTO) Ok(ctx context.Context) (serrors.ValidationErrors, bool) {
	errs := constants.Validate.StructCtx(ctx, d)
	if errs == nil {
		return serrors.ValidationErrors{}, true
	}
	return serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors)), false
}

type TransitionDTO struct {
	Status string `json:"status" validate:"required,oneof=draft active completed archived"`
}

func (d *TransitionDTO) Normalize() {
	d.Status = strings.ToLower(strings.TrimSpace(d.Status))
}

func (d *TransitionDTO) Ok(ctx context.Context) (serrors.ValidationErrors, bool) {
	d.Normalize()

	errs := constants.Validate.StructCtx(ctx, d)
	if errs == nil {
		return serrors.ValidationErrors{}, true
	}
	return serrors.ProcessValidatorErrors(errs.(validator.ValidationErrors)), false
}
