package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dotfilings/dotfilings/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilingsFilter struct {
	USDOTNumber string
	FilingType  string
	Status      string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, filing *Filing) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Filing, error)
	FindByResumeToken(ctx context.Context, db *gorm.DB, token string) (*Filing, error)
	// FindResumableDraftByDOT returns the newest draft for the carrier
	// whose resume token has not expired at now, if any.
	FindResumableDraftByDOT(ctx context.Context, db *gorm.DB, dotNumber string, now time.Time) (*Filing, error)
	// UpdateDraft persists mutable draft fields guarded by
	// status='draft'; false means the filing was not a draft anymore.
	UpdateDraft(ctx context.Context, db *gorm.DB, filing *Filing) (bool, error)
	// MarkCompleted flips a draft to completed. False means the guard
	// failed (already completed or missing).
	MarkCompleted(ctx context.Context, db *gorm.DB, filing *Filing, completedAt time.Time) (bool, error)
	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) error
	List(ctx context.Context, db *gorm.DB, filter ListFilingsFilter, page pagination.Pagination) ([]*Filing, error)
}
