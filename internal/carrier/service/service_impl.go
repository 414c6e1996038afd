package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dotfilings/dotfilings/internal/cache"
	"github.com/dotfilings/dotfilings/internal/carrier/domain"
	"github.com/dotfilings/dotfilings/internal/clock"
	"github.com/dotfilings/dotfilings/internal/config"
	"github.com/dotfilings/dotfilings/pkg/format"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg     config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Fetcher domain.Fetcher
	Drafts  domain.DraftSnapshotFinder `optional:"true"`
}

// Service resolves carrier identifiers through a layered pipeline:
// in-memory cache, unexpired draft filings, the persisted snapshot
// table, then a de-duplicated remote fetch. All lookup state is
// instance-owned so concurrent sessions never share ambient globals.
type Service struct {
	cfg     config.CarrierConfig
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	fetcher domain.Fetcher
	drafts  domain.DraftSnapshotFinder

	memory cache.Cache[string, domain.Record]
	// recent holds terminal lookup errors for the debounce window so a
	// burst of keystroke-triggered retries replays the result instead
	// of refetching.
	recent cache.Cache[string, error]
	group  singleflight.Group
}

func New(p Params) domain.Service {
	return &Service{
		cfg:     p.Cfg.Carrier,
		db:      p.DB,
		log:     p.Log.Named("carrier.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		fetcher: p.Fetcher,
		drafts:  p.Drafts,
		memory:  cache.NewTTLCache[string, domain.Record](),
		recent:  cache.NewTTLCache[string, error](),
	}
}

func (s *Service) Lookup(ctx context.Context, req domain.LookupRequest) (domain.Record, error) {
	dotNumber, err := format.NormalizeDOTNumber(req.DOTNumber)
	if err != nil {
		return domain.Record{}, domain.ErrInvalidDOTNumber
	}

	if record, ok := s.memory.Get(dotNumber); ok {
		return record, nil
	}

	if record := s.fromDraft(ctx, dotNumber); record != nil {
		s.memory.Set(dotNumber, *record, s.cacheTTL())
		return *record, nil
	}

	if record := s.fromSnapshot(ctx, dotNumber); record != nil {
		s.memory.Set(dotNumber, *record, s.cacheTTL())
		return *record, nil
	}

	if lastErr, ok := s.recent.Get(dotNumber); ok {
		return domain.Record{}, lastErr
	}

	result, err, _ := s.group.Do(dotNumber, func() (any, error) {
		record, fetchErr := s.fetcher.Fetch(ctx, dotNumber, req.RequestSource)
		if fetchErr != nil {
			if errors.Is(fetchErr, domain.ErrNotFound) {
				// A definitive not-found invalidates any stale cached record.
				s.memory.Delete(dotNumber)
			}
			s.recent.Set(dotNumber, fetchErr, s.debounceWindow())
			return nil, fetchErr
		}
		s.store(ctx, record)
		return record, nil
	})
	if err != nil {
		return domain.Record{}, err
	}
	return result.(domain.Record), nil
}

func (s *Service) fromDraft(ctx context.Context, dotNumber string) *domain.Record {
	if s.drafts == nil {
		return nil
	}
	record, err := s.drafts.FindDraftCarrierSnapshot(ctx, dotNumber)
	if err != nil {
		s.log.Warn("draft snapshot lookup failed", zap.String("dot_number", dotNumber), zap.Error(err))
		return nil
	}
	return record
}

func (s *Service) fromSnapshot(ctx context.Context, dotNumber string) *domain.Record {
	snapshot, err := s.repo.FindByDOT(ctx, s.db, dotNumber)
	if err != nil {
		s.log.Warn("snapshot lookup failed", zap.String("dot_number", dotNumber), zap.Error(err))
		return nil
	}
	if snapshot == nil {
		return nil
	}
	if s.clock.Now().Sub(snapshot.FetchedAt) > s.snapshotTTL() {
		return nil
	}

	var record domain.Record
	if err := json.Unmarshal(snapshot.Data, &record); err != nil {
		s.log.Warn("snapshot decode failed", zap.String("dot_number", dotNumber), zap.Error(err))
		return nil
	}
	return &record
}

// store write-throughs a fetched record to the in-memory cache and the
// snapshot table. Persistence failures only cost future cache hits.
func (s *Service) store(ctx context.Context, record domain.Record) {
	s.memory.Set(record.USDOTNumber, record, s.cacheTTL())

	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	snapshot := &domain.Snapshot{
		ID:          s.genID.Generate(),
		USDOTNumber: record.USDOTNumber,
		Data:        data,
		FetchedAt:   s.clock.Now(),
	}
	if err := s.repo.Upsert(ctx, s.db, snapshot); err != nil {
		s.log.Warn("snapshot persist failed", zap.String("dot_number", record.USDOTNumber), zap.Error(err))
	}
}

func (s *Service) cacheTTL() time.Duration {
	if s.cfg.CacheTTL <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.cfg.CacheTTL) * time.Second
}

func (s *Service) snapshotTTL() time.Duration {
	if s.cfg.SnapshotTTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.cfg.SnapshotTTL) * time.Second
}

func (s *Service) debounceWindow() time.Duration {
	if s.cfg.DebounceMillis <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(s.cfg.DebounceMillis) * time.Millisecond
}
