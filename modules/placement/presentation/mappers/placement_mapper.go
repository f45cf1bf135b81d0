package mappers

import (
	"github.com/campusops/placement/modules/placement/domain/aggregates/assignment"
	"github.com/campusops/placement/modules/placement/domain/aggregates/batch"
	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/modules/placement/domain/aggregates/execution"
	"github.com/campusops/placement/modules/placement/domain/suggestion"
	"github.com/campusops/placement/modules/placement/presentation/viewmodels"
	"github.com/campusops/placement/modules/placement/services"
	"github.com/campusops/placement/pkg/serrors"
)

func WindowKeyToVM(key capacity.WindowKey) viewmodels.WindowKey {
	return viewmodels.WindowKey{
		SiteID:      key.SiteID.String(),
		ProgramID:   key.ProgramID.String(),
		PeriodStart: key.PeriodStart,
		PeriodEnd:   key.PeriodEnd,
	}
}

func WindowToVM(w capacity.Window) *viewmodels.Window {
	return &viewmodels.Window{
		Key:            WindowKeyToVM(w.Key()),
		MaxCapacity:    w.MaxCapacity(),
		AvailableSpots: w.AvailableSpots(),
		Version:        w.Version(),
		Halted:         w.Halted(),
		UpdatedAt:      w.UpdatedAt(),
	}
}

func AuditEntryToVM(e capacity.AuditEntry) viewmodels.AuditEntry {
	return viewmodels.AuditEntry{
		Delta:      e.Delta,
		Resulting:  e.Resulting,
		Actor:      e.Actor,
		OccurredAt: e.OccurredAt,
	}
}

func BatchToVM(b batch.Batch) *viewmodels.Batch {
	vm := &viewmodels.Batch{
		ID:        b.ID().String(),
		Name:      b.Name(),
		Status:    string(b.Status()),
		MemberIDs: make([]string, 0, len(b.MemberIDs())),
		CreatedAt: b.CreatedAt(),
		UpdatedAt: b.UpdatedAt(),
	}
	if filter := b.ProgramFilter(); filter != nil {
		s := filter.String()
		vm.ProgramFilter = &s
	}
	for _, id := range b.MemberIDs() {
		vm.MemberIDs = append(vm.MemberIDs, id.String())
	}
	return vm
}

func AssignmentToVM(a assignment.Assignment) *viewmodels.Assignment {
	vm := &viewmodels.Assignment{
		ID:        a.ID().String(),
		StudentID: a.StudentID().String(),
		ProgramID: a.ProgramID().String(),
		Status:    string(a.Status()),
		CreatedAt: a.CreatedAt(),
		UpdatedAt: a.UpdatedAt(),
	}
	if batchID := a.BatchID(); batchID != nil {
		s := batchID.String()
		vm.BatchID = &s
	}
	if window := a.AssignedWindow(); window != nil {
		key := WindowKeyToVM(*window)
		vm.AssignedWindow = &key
	}
	return vm
}

func SuggestionToVM(s suggestion.Suggestion) *viewmodels.Suggestion {
	vm := &viewmodels.Suggestion{
		AssignmentID: s.AssignmentID.String(),
		StudentID:    s.StudentID.String(),
		Candidates:   make([]viewmodels.Candidate, 0, len(s.Candidates)),
		Excluded:     make([]viewmodels.Exclusion, 0, len(s.Excluded)),
	}
	for _, c := range s.Candidates {
		vm.Candidates = append(vm.Candidates, viewmodels.Candidate{
			Window:   WindowKeyToVM(c.Window.Key()),
			SiteName: c.SiteName,
			Score:    c.Score,
			Reasons:  c.Reasons,
		})
	}
	for _, e := range s.Excluded {
		vm.Excluded = append(vm.Excluded, viewmodels.Exclusion{
			Window:  WindowKeyToVM(e.Window),
			Reasons: e.Reasons,
		})
	}
	return vm
}

func ResultToVM(r execution.Result) *viewmodels.ExecutionResult {
	return &viewmodels.ExecutionResult{
		ID:           r.ID().String(),
		BatchID:      r.BatchID().String(),
		AssignmentID: r.AssignmentID().String(),
		Window:       WindowKeyToVM(r.Window()),
		Outcome:      string(r.Outcome()),
		Reason:       r.Reason(),
		Actor:        r.Actor(),
		OccurredAt:   r.OccurredAt(),
	}
}

func MembershipErrorToVM(e services.MembershipError) viewmodels.MembershipError {
	return viewmodels.MembershipError{
		AssignmentID: e.AssignmentID.String(),
		Code:         serrors.Code(e.Err),
		Message:      e.Err.Error(),
	}
}
