package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByDOT(ctx context.Context, db *gorm.DB, dotNumber string) (*Snapshot, error)
	Upsert(ctx context.Context, db *gorm.DB, snapshot *Snapshot) error
}
