package repository

import (
	"context"

	"github.com/dotfilings/dotfilings/internal/carrier/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByDOT(ctx context.Context, db *gorm.DB, dotNumber string) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	err := db.WithContext(ctx).
		Where("usdot_number = ?", dotNumber).
		Take(&snapshot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, snapshot *domain.Snapshot) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "usdot_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "fetched_at"}),
		}).
		Create(snapshot).Error
}
