package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/directory/domain/aggregates/site"
)

type statsKey struct {
	siteID    uuid.UUID
	programID uuid.UUID
}

type SiteRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]site.Site
	stats map[statsKey]site.ProgramStats
}

func NewSiteRepository() *SiteRepository {
	return &SiteRepository{
		items: map[uuid.UUID]site.Site{},
		stats: map[statsKey]site.ProgramStats{},
	}
}

func (r *SiteRepository) GetByID(_ context.Context, id uuid.UUID) (site.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return site.Site{}, site.ErrNotFound.WithDetails("site %s", id)
	}
	return s, nil
}

func (r *SiteRepository) GetAll(_ context.Context) ([]site.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]site.Site, 0, len(r.items))
	for _, s := range r.items {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID().String() < all[j].ID().String()
	})
	return all, nil
}

func (r *SiteRepository) Create(_ context.Context, s site.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.ID()] = s
	return nil
}

func (r *SiteRepository) Update(_ context.Context, s site.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID()]; !ok {
		return site.ErrNotFound.WithDetails("site %s", s.ID())
	}
	r.items[s.ID()] = s
	return nil
}

func (r *SiteRepository) GetStats(_ context.Context, siteID, programID uuid.UUID) (site.ProgramStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats[statsKey{siteID, programID}], nil
}

func (r *SiteRepository) SaveStats(_ context.Context, stats site.ProgramStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats[statsKey{stats.SiteID, stats.ProgramID}] = stats
	return nil
}
