package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dotfilings/dotfilings/internal/filing/domain"
	"github.com/dotfilings/dotfilings/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, filing *domain.Filing) error {
	return db.WithContext(ctx).Create(filing).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Filing, error) {
	var filing domain.Filing
	err := db.WithContext(ctx).Where("id = ?", id).Take(&filing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &filing, nil
}

func (r *repo) FindByResumeToken(ctx context.Context, db *gorm.DB, token string) (*domain.Filing, error) {
	var filing domain.Filing
	err := db.WithContext(ctx).Where("resume_token = ?", token).Take(&filing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &filing, nil
}

func (r *repo) FindResumableDraftByDOT(ctx context.Context, db *gorm.DB, dotNumber string, now time.Time) (*domain.Filing, error) {
	var filing domain.Filing
	err := db.WithContext(ctx).
		Where("usdot_number = ? AND status = ? AND resume_token_expires_at > ?",
			dotNumber, domain.StatusDraft, now).
		Order("created_at desc").
		Take(&filing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &filing, nil
}

func (r *repo) UpdateDraft(ctx context.Context, db *gorm.DB, filing *domain.Filing) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Filing{}).
		Where("id = ? AND status = ?", filing.ID, domain.StatusDraft).
		Updates(map[string]any{
			"form_data":           filing.FormData,
			"flat_form_data":      filing.FlatFormData,
			"attachments":         filing.Attachments,
			"last_step_completed": filing.LastStepCompleted,
			"email":               filing.Email,
			"updated_at":          filing.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkCompleted(ctx context.Context, db *gorm.DB, filing *domain.Filing, completedAt time.Time) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Filing{}).
		Where("id = ? AND status = ?", filing.ID, domain.StatusDraft).
		Updates(map[string]any{
			"status":              domain.StatusCompleted,
			"form_data":           filing.FormData,
			"flat_form_data":      filing.FlatFormData,
			"last_step_completed": filing.LastStepCompleted,
			"amount_cents":        filing.AmountCents,
			"updated_at":          completedAt,
			"completed_at":        completedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Create(txn).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilingsFilter, page pagination.Pagination) ([]*domain.Filing, error) {
	stmt := db.WithContext(ctx).Model(&domain.Filing{})
	if filter.USDOTNumber != "" {
		stmt = stmt.Where("usdot_number = ?", filter.USDOTNumber)
	}
	if filter.FilingType != "" {
		stmt = stmt.Where("filing_type = ?", filter.FilingType)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339, cursor.CreatedAt)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at, id) < (?, ?)", createdAt, cursor.ID)
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 25
	}

	var filings []*domain.Filing
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&filings).Error
	if err != nil {
		return nil, err
	}
	return filings, nil
}
