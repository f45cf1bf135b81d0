package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/directory/domain/aggregates/site"
	placementservices "github.com/campusops/placement/modules/placement/services"
	"github.com/campusops/placement/pkg/composables"
)

// SiteService owns host-site records and their per-program placement history.
type SiteService struct {
	repo site.Repository
}

func NewSiteService(repo site.Repository) *SiteService {
	return &SiteService{repo: repo}
}

func (s *SiteService) GetByID(ctx context.Context, id uuid.UUID) (site.Site, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *SiteService) GetAll(ctx context.Context) ([]site.Site, error) {
	return s.repo.GetAll(ctx)
}

func (s *SiteService) Create(ctx context.Context, name, location string) (site.Site, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (site.Site, error) {
		created := site.New(name, location)
		if err := s.repo.Create(txCtx, created); err != nil {
			return site.Site{}, err
		}
		return created, nil
	})
}

// Profile adapts a site and its program history into the scoring input the
// placement engine consumes.
func (s *SiteService) Profile(ctx context.Context, siteID, programID uuid.UUID) (placementservices.SiteProfile, error) {
	host, err := s.repo.GetByID(ctx, siteID)
	if err != nil {
		return placementservices.SiteProfile{}, err
	}
	stats, err := s.repo.GetStats(ctx, siteID, programID)
	if err != nil {
		return placementservices.SiteProfile{}, err
	}
	return placementservices.SiteProfile{
		SiteID:         host.ID(),
		Name:           host.Name(),
		Location:       host.Location(),
		SuccessRate:    stats.SuccessRate(),
		LastAssignedAt: stats.LastAssignedAt,
	}, nil
}

// RecordPlacement bumps the pair's history after a committed assignment.
func (s *SiteService) RecordPlacement(ctx context.Context, siteID, programID uuid.UUID, at time.Time) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		stats, err := s.repo.GetStats(txCtx, siteID, programID)
		if err != nil {
			return err
		}
		if stats.SiteID == uuid.Nil {
			stats.SiteID, stats.ProgramID = siteID, programID
		}
		return s.repo.SaveStats(txCtx, stats.RecordPlacement(at))
	})
}

// RecordCompletion bumps the success counter when a placement finishes well.
func (s *SiteService) RecordCompletion(ctx context.Context, siteID, programID uuid.UUID) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		stats, err := s.repo.GetStats(txCtx, siteID, programID)
		if err != nil {
			return err
		}
		if stats.SiteID == uuid.Nil {
			stats.SiteID, stats.ProgramID = siteID, programID
		}
		return s.repo.SaveStats(txCtx, stats.RecordCompletion())
	})
}
