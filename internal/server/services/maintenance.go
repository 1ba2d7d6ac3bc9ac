package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/events"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

// OrphanGracePeriod protects blobs that may belong to an in-flight create.
const OrphanGracePeriod = time.Hour

// RefreshReport summarizes a bulk logo refresh.
type RefreshReport struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// SweepReport summarizes an orphan sweep.
type SweepReport struct {
	Scanned    int      `json:"scanned"`
	Referenced int      `json:"referenced"`
	Orphans    []string `json:"orphans"`
	Deleted    int      `json:"deleted"`
	DryRun     bool     `json:"dryRun"`
}

// MaintenanceService runs the administrative bulk operations.
type MaintenanceService struct {
	repos  repomanager.RepositoryManager
	blobs  blobstore.Store
	logos  LogoResolver
	events events.Publisher
	logger logging.Logger
	now    func() time.Time
}

func NewMaintenanceService(rm repomanager.RepositoryManager, blobs blobstore.Store, logos LogoResolver,
	pub events.Publisher, l logging.Logger) *MaintenanceService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &MaintenanceService{
		repos:  rm,
		blobs:  blobs,
		logos:  logos,
		events: pub,
		logger: l.With("module", "maintenance"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RefreshLogos re-resolves the logo of every account and stores changes.
// Individual failures are counted and logged; the run continues.
func (m *MaintenanceService) RefreshLogos(ctx context.Context) (RefreshReport, error) {
	list, err := m.repos.Accounts().ListAll(ctx)
	if err != nil {
		return RefreshReport{}, err
	}

	rep := RefreshReport{Total: len(list)}
	for _, a := range list {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res := m.logos.ResolveDetailed(ctx, a.Website)
		if res.URL == a.Logo && res.Status == a.LogoStatus && res.Source == a.LogoSource {
			continue
		}
		if err := m.repos.Accounts().UpdateLogo(ctx, a.ID, res.URL, res.Status, res.Source); err != nil {
			rep.Failed++
			m.logger.Warn(ctx, "logo update failed", "account", a.ID, "error", err)
			continue
		}
		rep.Updated++

		e := events.Event{
			Type:         events.AccountLogoChanged,
			AccountID:    a.ID,
			UserID:       a.UserID,
			SerialNumber: a.SerialNumber,
			Website:      a.Website,
			OccurredAt:   m.now(),
		}
		if err := m.events.Publish(ctx, e); err != nil {
			m.logger.Warn(ctx, "publish event failed", "account", a.ID, "error", err)
		}
	}

	m.logger.Info(ctx, "logo refresh finished", "total", rep.Total, "updated", rep.Updated, "failed", rep.Failed)
	return rep, nil
}

// SweepOrphans finds blobs no account references. With apply=false it only
// reports them. Blobs younger than OrphanGracePeriod are left alone.
func (m *MaintenanceService) SweepOrphans(ctx context.Context, apply bool) (SweepReport, error) {
	stored, err := m.blobs.List(ctx)
	if err != nil {
		return SweepReport{}, err
	}
	referenced, err := m.repos.Accounts().ListBlobIDs(ctx)
	if err != nil {
		return SweepReport{}, err
	}

	refs := make(map[string]struct{}, len(referenced))
	for _, id := range referenced {
		refs[id] = struct{}{}
	}

	rep := SweepReport{Scanned: len(stored), Referenced: len(referenced), Orphans: []string{}, DryRun: !apply}
	cutoff := m.now().Add(-OrphanGracePeriod)
	for _, id := range stored {
		if _, ok := refs[id]; ok {
			continue
		}
		meta, err := m.blobs.Stat(ctx, id)
		if err != nil {
			m.logger.Warn(ctx, "stat orphan candidate failed", "blob", id, "error", err)
			continue
		}
		if meta.CreatedAt.After(cutoff) {
			continue
		}
		rep.Orphans = append(rep.Orphans, id)

		if !apply {
			continue
		}
		if err := m.blobs.Delete(ctx, id); err != nil {
			m.logger.Warn(ctx, "delete orphan failed", "blob", id, "error", err)
			continue
		}
		rep.Deleted++
	}

	m.logger.Info(ctx, "orphan sweep finished",
		"scanned", rep.Scanned, "orphans", len(rep.Orphans), "deleted", rep.Deleted, "dry_run", rep.DryRun)
	return rep, nil
}
