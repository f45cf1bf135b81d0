package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/assignment"
	"github.com/campusops/placement/modules/placement/domain/aggregates/batch"
	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/modules/placement/domain/eligibility"
	"github.com/campusops/placement/modules/placement/domain/suggestion"
	"github.com/campusops/placement/pkg/configuration"
)

// SuggestionService ranks eligible capacity windows per unassigned member of
// a batch. It is read-only: generating suggestions never consumes capacity
// and never touches assignment state. Repeated calls against an unchanged
// snapshot return identical output.
type SuggestionService struct {
	batches     batch.Repository
	assignments assignment.Repository
	windows     capacity.Repository
	students    StudentDirectory
	sites       SiteRegistry
	opts        configuration.ScoringOptions
	clock       func() time.Time
}

type SuggestionOption func(*SuggestionService)

// WithClock pins the scoring snapshot time, used by tests and replays.
func WithClock(clock func() time.Time) SuggestionOption {
	return func(s *SuggestionService) {
		s.clock = clock
	}
}

func NewSuggestionService(
	batches batch.Repository,
	assignments assignment.Repository,
	windows capacity.Repository,
	students StudentDirectory,
	sites SiteRegistry,
	opts configuration.ScoringOptions,
	options ...SuggestionOption,
) *SuggestionService {
	s := &SuggestionService{
		batches:     batches,
		assignments: assignments,
		windows:     windows,
		students:    students,
		sites:       sites,
		opts:        opts,
		clock:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *SuggestionService) Generate(ctx context.Context, batchID uuid.UUID) ([]suggestion.Suggestion, error) {
	b, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	members, err := s.assignments.GetByIDs(ctx, b.MemberIDs())
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	out := make([]suggestion.Suggestion, 0, len(members))
	for _, a := range members {
		if !a.Assignable() {
			continue
		}
		sug, err := s.suggestFor(ctx, a, now)
		if err != nil {
			return nil, err
		}
		out = append(out, sug)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].AssignmentID.String() < out[j].AssignmentID.String()
	})
	return out, nil
}

func (s *SuggestionService) suggestFor(ctx context.Context, a assignment.Assignment, now time.Time) (suggestion.Suggestion, error) {
	student, err := s.students.Profile(ctx, a.StudentID())
	if err != nil {
		return suggestion.Suggestion{}, err
	}

	windows, err := s.windows.ListByProgram(ctx, a.ProgramID())
	if err != nil {
		return suggestion.Suggestion{}, err
	}
	// repository iteration order is not guaranteed
	sort.Slice(windows, func(i, j int) bool {
		ki, kj := windows[i].Key(), windows[j].Key()
		if ki.SiteID != kj.SiteID {
			return ki.SiteID.String() < kj.SiteID.String()
		}
		return ki.PeriodStart.Before(kj.PeriodStart)
	})

	sug := suggestion.Suggestion{
		AssignmentID: a.ID(),
		StudentID:    a.StudentID(),
	}
	for _, w := range windows {
		if w.Halted() {
			continue
		}
		elig := eligibility.Check(student, w, now)
		if !elig.Eligible {
			sug.Excluded = append(sug.Excluded, suggestion.Exclusion{
				Window:  w.Key(),
				Reasons: elig.Reasons,
			})
			continue
		}

		site, err := s.sites.Profile(ctx, w.Key().SiteID, w.Key().ProgramID)
		if err != nil {
			return suggestion.Suggestion{}, err
		}
		score, reasons := s.score(student, w, site, now)
		sug.Candidates = append(sug.Candidates, suggestion.Candidate{
			Window:   w,
			SiteName: site.Name,
			Score:    score,
			Reasons:  reasons,
		})
	}

	sort.SliceStable(sug.Candidates, func(i, j int) bool {
		if sug.Candidates[i].Score != sug.Candidates[j].Score {
			return sug.Candidates[i].Score > sug.Candidates[j].Score
		}
		return sug.Candidates[i].Window.Key().SiteID.String() < sug.Candidates[j].Window.Key().SiteID.String()
	})
	return sug, nil
}

type scoringFactor struct {
	value  float64
	weight float64
	reason string
	// threshold is the minimum factor value at which the reason is worth
	// showing to a human.
	threshold float64
}

// score computes the weighted confidence score 0..100 and up to three reason
// strings for the dominant factors.
func (s *SuggestionService) score(student eligibility.StudentProfile, w capacity.Window, site SiteProfile, now time.Time) (int, []string) {
	factors := []scoringFactor{
		{
			value:     w.Headroom(),
			weight:    s.opts.HeadroomWeight,
			reason:    "ample remaining capacity",
			threshold: 0.5,
		},
		{
			value:     clamp01(site.SuccessRate),
			weight:    s.opts.SuccessWeight,
			reason:    "high historical success rate",
			threshold: 0.7,
		},
		{
			value:     preferenceFit(student.PreferredLocations, site.Location),
			weight:    s.opts.PreferenceWeight,
			reason:    "matches location preference",
			threshold: 0.75,
		},
		{
			value:     s.recencyFactor(site.LastAssignedAt, now),
			weight:    s.opts.RecencyWeight,
			reason:    "site has not been assigned recently",
			threshold: 0.9,
		},
	}

	var sum, totalWeight float64
	for _, f := range factors {
		sum += f.value * f.weight
		totalWeight += f.weight
	}
	score := 0
	if totalWeight > 0 {
		score = int(math.Round(sum / totalWeight * 100))
	}

	ranked := make([]scoringFactor, len(factors))
	copy(ranked, factors)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].value*ranked[i].weight > ranked[j].value*ranked[j].weight
	})
	var reasons []string
	for _, f := range ranked {
		if len(reasons) == 3 {
			break
		}
		if f.value >= f.threshold && f.weight > 0 {
			reasons = append(reasons, f.reason)
		}
	}
	return score, reasons
}

// recencyFactor rewards sites whose last assignment is further in the past,
// balancing load across sites. A site never assigned scores 1.
func (s *SuggestionService) recencyFactor(lastAssignedAt, now time.Time) float64 {
	if lastAssignedAt.IsZero() {
		return 1
	}
	horizon := s.opts.RecencyHorizon
	if horizon <= 0 {
		return 1
	}
	elapsed := now.Sub(lastAssignedAt)
	if elapsed <= 0 {
		return 0
	}
	return clamp01(float64(elapsed) / float64(horizon))
}

// preferenceFit is 1 when the site location matches one of the student's
// preferred locations, 0 when it matches none, and neutral 0.5 when the
// student expressed no preference.
func preferenceFit(preferred []string, location string) float64 {
	if len(preferred) == 0 {
		return 0.5
	}
	loc := strings.ToLower(strings.TrimSpace(location))
	for _, p := range preferred {
		if strings.ToLower(strings.TrimSpace(p)) == loc {
			return 1
		}
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
