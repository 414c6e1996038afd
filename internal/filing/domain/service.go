package domain

import (
	"context"
	"errors"
	"io"

	"github.com/dotfilings/dotfilings/internal/wizard"
	"github.com/dotfilings/dotfilings/pkg/db/pagination"
)

type Direction string

const (
	DirectionNext Direction = "next"
	DirectionBack Direction = "back"
)

type CreateFilingRequest struct {
	USDOTNumber string
	FilingType  wizard.FilingType
	Email       string
}

type AdvanceStepRequest struct {
	FilingID    string
	ResumeToken string
	CurrentStep int
	Direction   Direction
	Patch       wizard.Patch
}

// StepResult reports where the wizard landed after a transition.
type StepResult struct {
	Filing      Filing
	CurrentStep int
	FormState   wizard.FormState
}

type AttachFileRequest struct {
	FilingID    string
	ResumeToken string
	Name        string
	ContentType string
	Filename    string
	Body        io.Reader
}

type CompleteFilingRequest struct {
	FilingID       string
	ResumeToken    string
	PaymentMethod  string
	CardholderName string
	CardNumber     string
	CardExpiry     string
	CardCVV        string
	TermsAccepted  bool
}

type CompleteFilingResult struct {
	Filing      Filing
	Transaction Transaction
}

type ListFilingsRequest struct {
	PageToken   string
	PageSize    int
	USDOTNumber string
	FilingType  string
	Status      string
}

type ListFilingsResponse struct {
	pagination.PageInfo
	Filings []Filing `json:"filings"`
}

type Service interface {
	Create(ctx context.Context, req CreateFilingRequest) (Filing, error)
	Advance(ctx context.Context, req AdvanceStepRequest) (StepResult, error)
	AttachFile(ctx context.Context, req AttachFileRequest) (Filing, error)
	Complete(ctx context.Context, req CompleteFilingRequest) (CompleteFilingResult, error)
	FindByResumeToken(ctx context.Context, token string) (Filing, error)
	List(ctx context.Context, req ListFilingsRequest) (ListFilingsResponse, error)
}

var (
	ErrInvalidFilingType    = errors.New("invalid_filing_type")
	ErrInvalidID            = errors.New("invalid_filing_id")
	ErrInvalidDirection     = errors.New("invalid_direction")
	ErrInvalidResumeToken   = errors.New("invalid_resume_token")
	ErrInvalidAttachment    = errors.New("invalid_attachment_name")
	ErrNotFound             = errors.New("filing_not_found")
	ErrNotDraft             = errors.New("filing_not_draft")
	ErrResumeExpired        = errors.New("resume_token_expired")
	ErrStepIncomplete       = errors.New("step_incomplete")
	ErrTermsNotAccepted     = errors.New("terms_not_accepted")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrAttachmentRequired   = errors.New("attachment_required")
	ErrContactRequired      = errors.New("fee_requires_contact")
)
