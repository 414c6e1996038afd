package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	carrierdomain "github.com/dotfilings/dotfilings/internal/carrier/domain"
	"github.com/dotfilings/dotfilings/internal/clock"
	"github.com/dotfilings/dotfilings/internal/config"
	"github.com/dotfilings/dotfilings/internal/fees"
	"github.com/dotfilings/dotfilings/internal/filing/domain"
	"github.com/dotfilings/dotfilings/internal/storage"
	"github.com/dotfilings/dotfilings/internal/wizard"
	pkgdb "github.com/dotfilings/dotfilings/pkg/db"
	"github.com/dotfilings/dotfilings/pkg/db/pagination"
	"github.com/dotfilings/dotfilings/pkg/format"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Carrier carrierdomain.Service `optional:"true"`
	Store   storage.Store
	Fees    *fees.Calculator
	FeeCfg  *config.FeeConfigHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	carrier carrierdomain.Service
	store   storage.Store
	fees    *fees.Calculator
	feeCfg  *config.FeeConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("filing.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		carrier: p.Carrier,
		store:   p.Store,
		fees:    p.Fees,
		feeCfg:  p.FeeCfg,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateFilingRequest) (domain.Filing, error) {
	if !req.FilingType.Valid() {
		return domain.Filing{}, domain.ErrInvalidFilingType
	}
	dotNumber, err := format.NormalizeDOTNumber(req.USDOTNumber)
	if err != nil {
		return domain.Filing{}, err
	}
	email := strings.TrimSpace(req.Email)
	if email != "" {
		if err := format.Validate(format.Email, email); err != nil {
			return domain.Filing{}, err
		}
	}

	state := wizard.NewFormState()
	var snapshotJSON []byte
	if s.carrier != nil {
		// Pre-fill is best effort: a lookup failure still opens an
		// empty wizard rather than blocking the filing.
		record, lookupErr := s.carrier.Lookup(ctx, carrierdomain.LookupRequest{
			DOTNumber:     dotNumber,
			RequestSource: "filing-create",
		})
		if lookupErr != nil {
			s.log.Warn("carrier prefill unavailable",
				zap.String("dot_number", dotNumber),
				zap.Error(lookupErr),
			)
		} else {
			state = overlayCarrierDefaults(state, record)
			snapshotJSON, _ = json.Marshal(record)
		}
	}

	formData, flatData, err := marshalState(state)
	if err != nil {
		return domain.Filing{}, err
	}

	now := s.clock.Now()
	filing := domain.Filing{
		ID:                   s.genID.Generate(),
		USDOTNumber:          dotNumber,
		FilingType:           req.FilingType,
		FormData:             formData,
		FlatFormData:         flatData,
		Attachments:          map[string]any{},
		CarrierSnapshot:      snapshotJSON,
		Status:               domain.StatusDraft,
		LastStepCompleted:    0,
		ResumeToken:          uuid.NewString(),
		ResumeTokenExpiresAt: now.Add(s.resumeTokenTTL()),
		Email:                email,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Insert(ctx, s.db, &filing); err != nil {
		// Resume tokens carry a unique index; on the off chance of a
		// collision, mint a fresh token and retry once.
		if pkgdb.IsDuplicateKeyErr(err) {
			filing.ResumeToken = uuid.NewString()
			err = s.repo.Insert(ctx, s.db, &filing)
		}
		if err != nil {
			return domain.Filing{}, err
		}
	}
	return filing, nil
}

func (s *Service) Advance(ctx context.Context, req domain.AdvanceStepRequest) (domain.StepResult, error) {
	if req.Direction != domain.DirectionNext && req.Direction != domain.DirectionBack {
		return domain.StepResult{}, domain.ErrInvalidDirection
	}

	filing, state, err := s.loadDraft(ctx, req.FilingID, req.ResumeToken)
	if err != nil {
		return domain.StepResult{}, err
	}

	current := req.CurrentStep
	if current < 1 || current > wizard.StepCount(filing.FilingType) {
		current = clampStep(filing.LastStepCompleted+1, filing.FilingType)
	}

	state = wizard.Apply(state, req.Patch)
	if err := validatePatchedFields(req.Patch, s.clock.Now()); err != nil {
		return domain.StepResult{}, err
	}

	var target int
	if req.Direction == domain.DirectionBack {
		target = wizard.PrevStep(filing.FilingType, current, state)
	} else {
		if !wizard.IsStepComplete(filing.FilingType, current, state) {
			return domain.StepResult{
				Filing:      *filing,
				CurrentStep: current,
				FormState:   state,
			}, domain.ErrStepIncomplete
		}
		target = wizard.NextStep(filing.FilingType, current, state)
		if current > filing.LastStepCompleted {
			filing.LastStepCompleted = current
		}
	}

	if err := s.persistDraft(ctx, filing, state); err != nil {
		// The step index is not advanced when persistence fails; the
		// caller retries the same transition.
		return domain.StepResult{}, err
	}

	return domain.StepResult{
		Filing:      *filing,
		CurrentStep: target,
		FormState:   sanitizeState(state),
	}, nil
}

func (s *Service) AttachFile(ctx context.Context, req domain.AttachFileRequest) (domain.Filing, error) {
	if req.Name != domain.AttachmentSignature && req.Name != domain.AttachmentLicense {
		return domain.Filing{}, domain.ErrInvalidAttachment
	}

	filing, state, err := s.loadDraft(ctx, req.FilingID, req.ResumeToken)
	if err != nil {
		return domain.Filing{}, err
	}

	key := fmt.Sprintf("%d/%s", filing.ID, req.Name)
	url, err := s.store.Save(ctx, key, req.ContentType, req.Body)
	if err != nil {
		// Upload failures degrade to an omitted attachment instead of
		// failing the save; completion re-checks the hard requirements.
		s.log.Warn("attachment upload failed",
			zap.Int64("filing_id", int64(filing.ID)),
			zap.String("name", req.Name),
			zap.Error(err),
		)
		return *filing, nil
	}

	if filing.Attachments == nil {
		filing.Attachments = map[string]any{}
	}
	filing.Attachments[req.Name] = url
	if req.Name == domain.AttachmentLicense {
		state.Operator.LicenseFileURL = url
	}

	if err := s.persistDraft(ctx, filing, state); err != nil {
		return domain.Filing{}, err
	}
	return *filing, nil
}

func (s *Service) Complete(ctx context.Context, req domain.CompleteFilingRequest) (domain.CompleteFilingResult, error) {
	filing, state, err := s.loadDraft(ctx, req.FilingID, req.ResumeToken)
	if err != nil {
		return domain.CompleteFilingResult{}, err
	}

	if !req.TermsAccepted {
		return domain.CompleteFilingResult{}, domain.ErrTermsNotAccepted
	}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method != domain.PaymentMethodCard && method != domain.PaymentMethodACH {
		return domain.CompleteFilingResult{}, domain.ErrInvalidPaymentMethod
	}

	now := s.clock.Now()
	if method == domain.PaymentMethodCard {
		if strings.TrimSpace(req.CardholderName) == "" {
			return domain.CompleteFilingResult{}, &format.Error{
				Field: "cardholder_name", Code: "required", Message: "cardholder name is required",
			}
		}
		if err := format.Validate(format.CardNumber, req.CardNumber); err != nil {
			return domain.CompleteFilingResult{}, err
		}
		if err := format.ValidateAt(format.Expiry, req.CardExpiry, now); err != nil {
			return domain.CompleteFilingResult{}, err
		}
		if err := format.Validate(format.CVV, req.CardCVV); err != nil {
			return domain.CompleteFilingResult{}, err
		}
	}

	operatorStep := wizard.StepOperator
	if filing.FilingType == wizard.FilingTypeUCR {
		operatorStep = wizard.UCRStepOperator
	}
	if !wizard.IsStepComplete(filing.FilingType, operatorStep, state) {
		return domain.CompleteFilingResult{}, domain.ErrStepIncomplete
	}

	// An MCS-150 cannot be filed without the signed certification and
	// the operator's license document.
	if filing.FilingType == wizard.FilingTypeMCS150 {
		if state.Operator.Signature == "" && !hasAttachment(filing, domain.AttachmentSignature) {
			return domain.CompleteFilingResult{}, domain.ErrAttachmentRequired
		}
		if state.Operator.LicenseFileURL == "" && !hasAttachment(filing, domain.AttachmentLicense) {
			return domain.CompleteFilingResult{}, domain.ErrAttachmentRequired
		}
	}

	var amount int64
	if filing.FilingType == wizard.FilingTypeUCR {
		fee, ok := s.fees.UCRFee(state.UCR.VehicleCount)
		if !ok {
			return domain.CompleteFilingResult{}, domain.ErrContactRequired
		}
		amount = fee
	} else {
		amount = s.fees.MCS150Fee()
	}

	state.Billing.PaymentMethod = method
	state.Billing.CardholderName = strings.TrimSpace(req.CardholderName)
	state.Billing.CardNumber = req.CardNumber
	state.Billing.CardExpiry = req.CardExpiry
	state.Billing.TermsAccepted = true

	sanitized := sanitizeState(state)
	formData, flatData, err := marshalState(sanitized)
	if err != nil {
		return domain.CompleteFilingResult{}, err
	}
	filing.FormData = formData
	filing.FlatFormData = flatData
	filing.AmountCents = amount
	filing.LastStepCompleted = wizard.StepCount(filing.FilingType)

	txn := domain.Transaction{
		ID:            s.genID.Generate(),
		FilingID:      filing.ID,
		AmountCents:   amount,
		Currency:      "USD",
		Status:        domain.TransactionSucceeded,
		PaymentMethod: method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Completion and transaction creation commit or fail together so a
	// completed filing can never exist without its transaction.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, markErr := s.repo.MarkCompleted(ctx, tx, filing, now)
		if markErr != nil {
			return markErr
		}
		if !updated {
			return domain.ErrNotDraft
		}
		return s.repo.InsertTransaction(ctx, tx, &txn)
	})
	if err != nil {
		return domain.CompleteFilingResult{}, err
	}

	filing.Status = domain.StatusCompleted
	filing.CompletedAt = &now
	filing.UpdatedAt = now

	s.log.Info("filing completed",
		zap.Int64("filing_id", int64(filing.ID)),
		zap.String("filing_type", string(filing.FilingType)),
		zap.Int64("amount_cents", amount),
	)

	return domain.CompleteFilingResult{Filing: *filing, Transaction: txn}, nil
}

func (s *Service) FindByResumeToken(ctx context.Context, token string) (domain.Filing, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Filing{}, domain.ErrInvalidResumeToken
	}

	filing, err := s.repo.FindByResumeToken(ctx, s.db, token)
	if err != nil {
		return domain.Filing{}, err
	}
	if filing == nil {
		return domain.Filing{}, domain.ErrNotFound
	}
	if filing.Status != domain.StatusDraft {
		return domain.Filing{}, domain.ErrNotDraft
	}
	if !filing.Resumable(s.clock.Now()) {
		return domain.Filing{}, domain.ErrResumeExpired
	}
	return *filing, nil
}

func (s *Service) List(ctx context.Context, req domain.ListFilingsRequest) (domain.ListFilingsResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilingsFilter{
		USDOTNumber: strings.TrimSpace(req.USDOTNumber),
		FilingType:  strings.TrimSpace(req.FilingType),
		Status:      strings.TrimSpace(req.Status),
	}, pagination.Pagination{PageToken: req.PageToken, PageSize: pageSize})
	if err != nil {
		return domain.ListFilingsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(filing *domain.Filing) string {
		token, encodeErr := pagination.EncodeCursor(pagination.Cursor{
			ID:        filing.ID.String(),
			CreatedAt: filing.CreatedAt.Format(time.RFC3339),
		})
		if encodeErr != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	filings := make([]domain.Filing, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		filings = append(filings, *item)
	}

	return domain.ListFilingsResponse{PageInfo: *pageInfo, Filings: filings}, nil
}

// loadDraft fetches a filing and enforces every resume guard: the
// filing exists, the token matches, it is still a draft, and the token
// has not expired.
func (s *Service) loadDraft(ctx context.Context, filingID, resumeToken string) (*domain.Filing, wizard.FormState, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(filingID))
	if err != nil {
		return nil, wizard.FormState{}, domain.ErrInvalidID
	}

	filing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, wizard.FormState{}, err
	}
	if filing == nil {
		return nil, wizard.FormState{}, domain.ErrNotFound
	}
	if filing.ResumeToken != strings.TrimSpace(resumeToken) {
		return nil, wizard.FormState{}, domain.ErrInvalidResumeToken
	}
	if filing.Status != domain.StatusDraft {
		return nil, wizard.FormState{}, domain.ErrNotDraft
	}
	if !filing.Resumable(s.clock.Now()) {
		return nil, wizard.FormState{}, domain.ErrResumeExpired
	}

	var state wizard.FormState
	if len(filing.FormData) > 0 {
		if err := json.Unmarshal(filing.FormData, &state); err != nil {
			return nil, wizard.FormState{}, err
		}
	}
	return filing, state, nil
}

func (s *Service) persistDraft(ctx context.Context, filing *domain.Filing, state wizard.FormState) error {
	sanitized := sanitizeState(state)
	formData, flatData, err := marshalState(sanitized)
	if err != nil {
		return err
	}
	filing.FormData = formData
	filing.FlatFormData = flatData
	filing.UpdatedAt = s.clock.Now()

	updated, err := s.repo.UpdateDraft(ctx, s.db, filing)
	if err != nil {
		return err
	}
	if !updated {
		return domain.ErrNotDraft
	}
	return nil
}

func (s *Service) resumeTokenTTL() time.Duration {
	hours := s.feeCfg.Get().ResumeTokenTTLH
	if hours <= 0 {
		hours = 72
	}
	return time.Duration(hours) * time.Hour
}

func clampStep(step int, t wizard.FilingType) int {
	if step < 1 {
		return 1
	}
	if last := wizard.StepCount(t); step > last {
		return last
	}
	return step
}

func hasAttachment(filing *domain.Filing, name string) bool {
	if filing.Attachments == nil {
		return false
	}
	url, ok := filing.Attachments[name].(string)
	return ok && url != ""
}

// overlayCarrierDefaults pre-fills the wizard from the carrier record
// so returning users confirm rather than retype.
func overlayCarrierDefaults(state wizard.FormState, record carrierdomain.Record) wizard.FormState {
	state.CompanyInfo.LegalName = record.LegalName
	state.CompanyInfo.DBAName = record.DBAName
	state.CompanyInfo.Phone = format.Format(format.Phone, record.Telephone)
	state.CompanyInfo.Email = record.EmailAddress
	state.CompanyInfo.StreetAddress = record.StreetAddress
	state.CompanyInfo.City = record.City
	state.CompanyInfo.State = record.State
	state.CompanyInfo.ZipCode = record.ZipCode

	state.OperatingInfo.PowerUnits = record.PowerUnits
	state.OperatingInfo.DriverTotal = record.DriverTotal
	state.OperatingInfo.DriverCDL = record.DriverCDL
	state.OperatingInfo.Mileage = record.Mileage
	state.OperatingInfo.MileageYear = record.MileageYear

	state.UCR.VehicleCount = record.PowerUnits
	return state
}

// validatePatchedFields is the hard validation gate: any formatted
// field present and non-empty in the patch must parse, uniformly
// across all fields.
func validatePatchedFields(patch wizard.Patch, now time.Time) error {
	if patch.CompanyInfo != nil {
		if v := patch.CompanyInfo.EIN; v != "" {
			if err := format.Validate(format.EIN, v); err != nil {
				return err
			}
		}
		if v := patch.CompanyInfo.Phone; v != "" {
			if err := format.Validate(format.Phone, v); err != nil {
				return err
			}
		}
		if v := patch.CompanyInfo.Email; v != "" {
			if err := format.Validate(format.Email, v); err != nil {
				return err
			}
		}
	}
	if patch.Operator != nil {
		if v := patch.Operator.Email; v != "" {
			if err := format.Validate(format.Email, v); err != nil {
				return err
			}
		}
		if v := patch.Operator.Phone; v != "" {
			if err := format.Validate(format.Phone, v); err != nil {
				return err
			}
		}
	}
	if patch.Billing != nil {
		if v := patch.Billing.CardExpiry; v != "" {
			if err := format.ValidateAt(format.Expiry, v, now); err != nil {
				return err
			}
		}
	}
	return nil
}
