package repository

import (
	"context"
	"encoding/json"

	carrierdomain "github.com/dotfilings/dotfilings/internal/carrier/domain"
	"github.com/dotfilings/dotfilings/internal/clock"
	"github.com/dotfilings/dotfilings/internal/filing/domain"
	"gorm.io/gorm"
)

// DraftSnapshotFinder lets the carrier gateway reuse the snapshot
// embedded in an unexpired draft instead of refetching upstream.
type DraftSnapshotFinder struct {
	db    *gorm.DB
	clock clock.Clock
	repo  domain.Repository
}

func NewDraftSnapshotFinder(db *gorm.DB, clk clock.Clock) carrierdomain.DraftSnapshotFinder {
	return &DraftSnapshotFinder{db: db, clock: clk, repo: Provide()}
}

func (f *DraftSnapshotFinder) FindDraftCarrierSnapshot(ctx context.Context, dotNumber string) (*carrierdomain.Record, error) {
	filing, err := f.repo.FindResumableDraftByDOT(ctx, f.db, dotNumber, f.clock.Now())
	if err != nil {
		return nil, err
	}
	if filing == nil || len(filing.CarrierSnapshot) == 0 {
		return nil, nil
	}

	var record carrierdomain.Record
	if err := json.Unmarshal(filing.CarrierSnapshot, &record); err != nil {
		return nil, err
	}
	if record.LegalName == "" && record.DBAName == "" {
		return nil, nil
	}
	return &record, nil
}
