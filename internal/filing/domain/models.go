package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dotfilings/dotfilings/internal/wizard"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
)

type TransactionStatus string

const (
	TransactionSucceeded TransactionStatus = "succeeded"
	TransactionFailed    TransactionStatus = "failed"
)

// Payment methods accepted on the billing step.
const (
	PaymentMethodCard = "card"
	PaymentMethodACH  = "ach"
)

// Logical attachment names a filing accepts.
const (
	AttachmentSignature = "signature"
	AttachmentLicense   = "license"
)

// Filing is one submission, resumable while in draft.
type Filing struct {
	ID                   snowflake.ID      `gorm:"primaryKey" json:"id"`
	USDOTNumber          string            `gorm:"column:usdot_number;index;not null" json:"usdot_number"`
	FilingType           wizard.FilingType `gorm:"type:text;not null" json:"filing_type"`
	FormData             datatypes.JSON    `gorm:"type:jsonb;not null" json:"form_data"`
	FlatFormData         datatypes.JSON    `gorm:"type:jsonb;not null" json:"flat_form_data"`
	Attachments          datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"attachments"`
	CarrierSnapshot      datatypes.JSON    `gorm:"type:jsonb" json:"carrier_snapshot,omitempty"`
	Status               Status            `gorm:"type:text;not null;index" json:"status"`
	LastStepCompleted    int               `gorm:"not null" json:"last_step_completed"`
	ResumeToken          string            `gorm:"uniqueIndex;not null" json:"resume_token"`
	ResumeTokenExpiresAt time.Time         `gorm:"not null" json:"resume_token_expires_at"`
	Email                string            `json:"email"`
	AmountCents          int64             `json:"amount_cents"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
}

func (Filing) TableName() string { return "filings" }

// Resumable reports whether the draft can still be reopened at now.
func (f Filing) Resumable(now time.Time) bool {
	return f.Status == StatusDraft && now.Before(f.ResumeTokenExpiresAt)
}

// Transaction records the charge created when a filing completes.
// Exactly one exists per completed filing; only status may change
// after creation.
type Transaction struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	FilingID      snowflake.ID      `gorm:"not null;index" json:"filing_id"`
	AmountCents   int64             `gorm:"not null" json:"amount_cents"`
	Currency      string            `gorm:"type:text;not null" json:"currency"`
	Status        TransactionStatus `gorm:"type:text;not null" json:"status"`
	PaymentMethod string            `gorm:"type:text;not null" json:"payment_method"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Transaction) TableName() string { return "transactions" }
