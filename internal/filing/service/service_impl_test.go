package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	carrierdomain "github.com/dotfilings/dotfilings/internal/carrier/domain"
	"github.com/dotfilings/dotfilings/internal/clock"
	"github.com/dotfilings/dotfilings/internal/config"
	"github.com/dotfilings/dotfilings/internal/fees"
	"github.com/dotfilings/dotfilings/internal/filing/domain"
	"github.com/dotfilings/dotfilings/internal/filing/repository"
	"github.com/dotfilings/dotfilings/internal/storage"
	"github.com/dotfilings/dotfilings/internal/wizard"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeCarrier struct {
	record carrierdomain.Record
	err    error
}

func (f *fakeCarrier) Lookup(ctx context.Context, req carrierdomain.LookupRequest) (carrierdomain.Record, error) {
	if f.err != nil {
		return carrierdomain.Record{}, f.err
	}
	record := f.record
	record.USDOTNumber = req.DOTNumber
	return record, nil
}

type fixture struct {
	svc   *Service
	db    *gorm.DB
	clock *clock.FakeClock
}

func newFixture(t *testing.T, carrier carrierdomain.Service) *fixture {
	t.Helper()
	return newFixtureWithStore(t, carrier, storage.NewMemory("http://localhost:8080"))
}

func newFixtureWithStore(t *testing.T, carrier carrierdomain.Service, store storage.Store) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Filing{}, &domain.Transaction{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC))
	holder := config.NewStaticFeeConfigHolder(config.DefaultFeeConfig())

	svc := New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fc,
		Repo:    repository.Provide(),
		Carrier: carrier,
		Store:   store,
		Fees:    fees.NewCalculator(holder),
		FeeCfg:  holder,
	}).(*Service)

	return &fixture{svc: svc, db: db, clock: fc}
}

func acmeCarrier() *fakeCarrier {
	return &fakeCarrier{record: carrierdomain.Record{
		LegalName:   "ACME TRUCKING LLC",
		Telephone:   "5551234567",
		City:        "Tulsa",
		State:       "OK",
		PowerUnits:  12,
		DriverTotal: 14,
	}}
}

func (f *fixture) createDraft(t *testing.T, filingType wizard.FilingType) domain.Filing {
	t.Helper()
	filing, err := f.svc.Create(context.Background(), domain.CreateFilingRequest{
		USDOTNumber: "1234567",
		FilingType:  filingType,
		Email:       "owner@example.com",
	})
	require.NoError(t, err)
	return filing
}

func stateOf(t *testing.T, filing domain.Filing) wizard.FormState {
	t.Helper()
	var state wizard.FormState
	require.NoError(t, json.Unmarshal(filing.FormData, &state))
	return state
}

func TestCreate_PrefillsFromCarrier(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	assert.Equal(t, domain.StatusDraft, filing.Status)
	assert.Equal(t, "1234567", filing.USDOTNumber)
	assert.NotEmpty(t, filing.ResumeToken)
	assert.True(t, filing.ResumeTokenExpiresAt.After(f.clock.Now()))
	assert.Equal(t, 0, filing.LastStepCompleted)
	assert.NotEmpty(t, filing.CarrierSnapshot)

	state := stateOf(t, filing)
	assert.Equal(t, "ACME TRUCKING LLC", state.CompanyInfo.LegalName)
	assert.Equal(t, "(555) 123-4567", state.CompanyInfo.Phone)
	assert.Equal(t, 12, state.OperatingInfo.PowerUnits)
	assert.Equal(t, 12, state.UCR.VehicleCount)
}

func TestCreate_LookupFailureStillOpensDraft(t *testing.T) {
	f := newFixture(t, &fakeCarrier{err: carrierdomain.ErrUnavailable})
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	assert.Equal(t, domain.StatusDraft, filing.Status)
	assert.Empty(t, filing.CarrierSnapshot)
	assert.Empty(t, stateOf(t, filing).CompanyInfo.LegalName)
}

func TestCreate_RejectsBadInput(t *testing.T) {
	f := newFixture(t, acmeCarrier())

	_, err := f.svc.Create(context.Background(), domain.CreateFilingRequest{
		USDOTNumber: "123",
		FilingType:  wizard.FilingTypeMCS150,
	})
	assert.Error(t, err)

	_, err = f.svc.Create(context.Background(), domain.CreateFilingRequest{
		USDOTNumber: "1234567",
		FilingType:  "annual",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFilingType)
}

func TestAdvance_BlocksIncompleteStep(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	result, err := f.svc.Advance(context.Background(), domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.StepReason,
		Direction:   domain.DirectionNext,
	})
	assert.ErrorIs(t, err, domain.ErrStepIncomplete)
	assert.Equal(t, wizard.StepReason, result.CurrentStep)

	// blocked advance does not touch the persisted draft
	stored, findErr := f.svc.FindByResumeToken(context.Background(), filing.ResumeToken)
	require.NoError(t, findErr)
	assert.Equal(t, 0, stored.LastStepCompleted)
}

func TestAdvance_PersistsPatchAndStep(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	reason := wizard.ReasonOutOfBusiness
	result, err := f.svc.Advance(context.Background(), domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.StepReason,
		Direction:   domain.DirectionNext,
		Patch:       wizard.Patch{ReasonForFiling: &reason},
	})
	require.NoError(t, err)
	assert.Equal(t, wizard.StepOperator, result.CurrentStep)
	assert.Equal(t, wizard.StepReason, result.Filing.LastStepCompleted)

	stored, err := f.svc.FindByResumeToken(context.Background(), filing.ResumeToken)
	require.NoError(t, err)
	assert.Equal(t, wizard.ReasonOutOfBusiness, stateOf(t, stored).ReasonForFiling)
}

func TestAdvance_BackRetracesSkip(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	reason := wizard.ReasonOutOfBusiness
	_, err := f.svc.Advance(context.Background(), domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.StepReason,
		Direction:   domain.DirectionNext,
		Patch:       wizard.Patch{ReasonForFiling: &reason},
	})
	require.NoError(t, err)

	result, err := f.svc.Advance(context.Background(), domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.StepOperator,
		Direction:   domain.DirectionBack,
	})
	require.NoError(t, err)
	assert.Equal(t, wizard.StepReason, result.CurrentStep)
}

func TestAdvance_HardValidationGate(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	_, err := f.svc.Advance(context.Background(), domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.StepCompany,
		Direction:   domain.DirectionNext,
		Patch:       wizard.Patch{CompanyInfo: &wizard.CompanySection{EIN: "12-34"}},
	})
	assert.Error(t, err)
}

func TestAdvance_RejectsWrongToken(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	_, err := f.svc.Advance(context.Background(), domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: "not-the-token",
		CurrentStep: wizard.StepReason,
		Direction:   domain.DirectionNext,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidResumeToken)
}

func TestAdvance_RejectsExpiredToken(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	f.clock.Advance(73 * time.Hour)
	_, err := f.svc.Advance(context.Background(), domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.StepReason,
		Direction:   domain.DirectionNext,
	})
	assert.ErrorIs(t, err, domain.ErrResumeExpired)
}

func TestAttachFile_RecordsURL(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	updated, err := f.svc.AttachFile(context.Background(), domain.AttachFileRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		Name:        domain.AttachmentLicense,
		ContentType: "application/pdf",
		Body:        strings.NewReader("license-bytes"),
	})
	require.NoError(t, err)

	url, ok := updated.Attachments[domain.AttachmentLicense].(string)
	require.True(t, ok)
	assert.Contains(t, url, "/attachments/")

	stored, err := f.svc.FindByResumeToken(context.Background(), filing.ResumeToken)
	require.NoError(t, err)
	assert.Equal(t, url, stateOf(t, stored).Operator.LicenseFileURL)
}

type failingStore struct{}

func (failingStore) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func (failingStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("disk full")
}

func TestAttachFile_StorageFailureDegrades(t *testing.T) {
	f := newFixtureWithStore(t, acmeCarrier(), failingStore{})
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	updated, err := f.svc.AttachFile(context.Background(), domain.AttachFileRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		Name:        domain.AttachmentLicense,
		ContentType: "application/pdf",
		Body:        strings.NewReader("license-bytes"),
	})
	require.NoError(t, err)
	assert.NotContains(t, updated.Attachments, domain.AttachmentLicense)
}

func TestAttachFile_RejectsUnknownName(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	_, err := f.svc.AttachFile(context.Background(), domain.AttachFileRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		Name:        "selfie",
		Body:        strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAttachment)
}

func TestSanitize_CardFieldsNeverPersisted(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	_, err := f.svc.Advance(context.Background(), domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.StepBilling,
		Direction:   domain.DirectionBack,
		Patch: wizard.Patch{Billing: &wizard.BillingSection{
			PaymentMethod: domain.PaymentMethodCard,
			CardNumber:    "4242 4242 4242 4242",
			CardCVV:       "123",
			TermsAccepted: true,
		}},
	})
	require.NoError(t, err)

	stored, err := f.svc.FindByResumeToken(context.Background(), filing.ResumeToken)
	require.NoError(t, err)

	assert.NotContains(t, string(stored.FormData), "4242 4242")

	state := stateOf(t, stored)
	assert.Empty(t, state.Billing.CardNumber)
	assert.Empty(t, state.Billing.CardCVV)
	assert.Equal(t, "4242", state.Billing.CardLast4)
}

// walkToOperator drives an out-of-business MCS-150 draft up to the
// operator step with a complete operator section and license upload.
func (f *fixture) walkToOperator(t *testing.T, filing domain.Filing) {
	t.Helper()
	ctx := context.Background()

	reason := wizard.ReasonOutOfBusiness
	result, err := f.svc.Advance(ctx, domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.StepReason,
		Direction:   domain.DirectionNext,
		Patch:       wizard.Patch{ReasonForFiling: &reason},
	})
	require.NoError(t, err)
	require.Equal(t, wizard.StepOperator, result.CurrentStep)

	_, err = f.svc.AttachFile(ctx, domain.AttachFileRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		Name:        domain.AttachmentLicense,
		ContentType: "application/pdf",
		Body:        strings.NewReader("license-bytes"),
	})
	require.NoError(t, err)

	result, err = f.svc.Advance(ctx, domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.StepOperator,
		Direction:   domain.DirectionNext,
		Patch: wizard.Patch{Operator: &wizard.OperatorSection{
			FirstName: "Dana",
			LastName:  "Whitfield",
			Email:     "dana@example.com",
			Signature: "Dana Whitfield",
		}},
	})
	require.NoError(t, err)
	require.Equal(t, wizard.StepBilling, result.CurrentStep)
}

func TestComplete_EndToEndOutOfBusiness(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)
	f.walkToOperator(t, filing)

	result, err := f.svc.Complete(context.Background(), domain.CompleteFilingRequest{
		FilingID:       filing.ID.String(),
		ResumeToken:    filing.ResumeToken,
		PaymentMethod:  domain.PaymentMethodCard,
		CardholderName: "Dana Whitfield",
		CardNumber:     "4242 4242 4242 4242",
		CardExpiry:     "12/30",
		CardCVV:        "123",
		TermsAccepted:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, result.Filing.Status)
	assert.NotNil(t, result.Filing.CompletedAt)
	assert.Equal(t, int64(14900), result.Transaction.AmountCents)
	assert.Equal(t, domain.TransactionSucceeded, result.Transaction.Status)

	var txnCount int64
	require.NoError(t, f.db.Model(&domain.Transaction{}).Count(&txnCount).Error)
	assert.Equal(t, int64(1), txnCount)

	// the stored snapshot holds no raw card data
	var stored domain.Filing
	require.NoError(t, f.db.Where("id = ?", filing.ID).Take(&stored).Error)
	assert.NotContains(t, string(stored.FormData), "4242 4242")

	// completion happens exactly once
	_, err = f.svc.Complete(context.Background(), domain.CompleteFilingRequest{
		FilingID:       filing.ID.String(),
		ResumeToken:    filing.ResumeToken,
		PaymentMethod:  domain.PaymentMethodCard,
		CardholderName: "Dana Whitfield",
		CardNumber:     "4242 4242 4242 4242",
		CardExpiry:     "12/30",
		CardCVV:        "123",
		TermsAccepted:  true,
	})
	assert.ErrorIs(t, err, domain.ErrNotDraft)

	require.NoError(t, f.db.Model(&domain.Transaction{}).Count(&txnCount).Error)
	assert.Equal(t, int64(1), txnCount)
}

func TestComplete_RequiresLicenseAttachment(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)

	ctx := context.Background()
	reason := wizard.ReasonOutOfBusiness
	_, err := f.svc.Advance(ctx, domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.StepReason,
		Direction:   domain.DirectionNext,
		Patch:       wizard.Patch{ReasonForFiling: &reason},
	})
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, domain.CompleteFilingRequest{
		FilingID:       filing.ID.String(),
		ResumeToken:    filing.ResumeToken,
		PaymentMethod:  domain.PaymentMethodCard,
		CardholderName: "Dana Whitfield",
		CardNumber:     "4242 4242 4242 4242",
		CardExpiry:     "12/30",
		CardCVV:        "123",
		TermsAccepted:  true,
	})
	assert.ErrorIs(t, err, domain.ErrStepIncomplete)
}

func TestComplete_RejectsExpiredCard(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)
	f.walkToOperator(t, filing)

	_, err := f.svc.Complete(context.Background(), domain.CompleteFilingRequest{
		FilingID:       filing.ID.String(),
		ResumeToken:    filing.ResumeToken,
		PaymentMethod:  domain.PaymentMethodCard,
		CardholderName: "Dana Whitfield",
		CardNumber:     "4242 4242 4242 4242",
		CardExpiry:     "01/20",
		CardCVV:        "123",
		TermsAccepted:  true,
	})
	assert.Error(t, err)
}

func TestComplete_RequiresTerms(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeMCS150)
	f.walkToOperator(t, filing)

	_, err := f.svc.Complete(context.Background(), domain.CompleteFilingRequest{
		FilingID:      filing.ID.String(),
		ResumeToken:   filing.ResumeToken,
		PaymentMethod: domain.PaymentMethodCard,
	})
	assert.ErrorIs(t, err, domain.ErrTermsNotAccepted)
}

func (f *fixture) walkUCRToBilling(t *testing.T, filing domain.Filing, vehicleCount int) {
	t.Helper()
	ctx := context.Background()

	result, err := f.svc.Advance(ctx, domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.UCRStepCarrier,
		Direction:   domain.DirectionNext,
		Patch:       wizard.Patch{UCR: &wizard.UCRSection{CarrierConfirmed: true, VehicleCount: vehicleCount}},
	})
	require.NoError(t, err)
	require.Equal(t, wizard.UCRStepVehicles, result.CurrentStep)

	result, err = f.svc.Advance(ctx, domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.UCRStepVehicles,
		Direction:   domain.DirectionNext,
	})
	require.NoError(t, err)
	require.Equal(t, wizard.UCRStepOperator, result.CurrentStep)

	_, err = f.svc.AttachFile(ctx, domain.AttachFileRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		Name:        domain.AttachmentLicense,
		ContentType: "application/pdf",
		Body:        strings.NewReader("license-bytes"),
	})
	require.NoError(t, err)

	result, err = f.svc.Advance(ctx, domain.AdvanceStepRequest{
		FilingID:    filing.ID.String(),
		ResumeToken: filing.ResumeToken,
		CurrentStep: wizard.UCRStepOperator,
		Direction:   domain.DirectionNext,
		Patch: wizard.Patch{Operator: &wizard.OperatorSection{
			FirstName: "Dana",
			LastName:  "Whitfield",
			Email:     "dana@example.com",
			Signature: "Dana Whitfield",
		}},
	})
	require.NoError(t, err)
	require.Equal(t, wizard.UCRStepBilling, result.CurrentStep)
}

func TestComplete_UCRFeeFromVehicleCount(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeUCR)
	f.walkUCRToBilling(t, filing, 4)

	result, err := f.svc.Complete(context.Background(), domain.CompleteFilingRequest{
		FilingID:       filing.ID.String(),
		ResumeToken:    filing.ResumeToken,
		PaymentMethod:  domain.PaymentMethodCard,
		CardholderName: "Dana Whitfield",
		CardNumber:     "4242 4242 4242 4242",
		CardExpiry:     "12/30",
		CardCVV:        "123",
		TermsAccepted:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(38800), result.Transaction.AmountCents)
}

func TestComplete_UCRContactBandBlocksSelfServe(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	filing := f.createDraft(t, wizard.FilingTypeUCR)
	f.walkUCRToBilling(t, filing, 1200)

	_, err := f.svc.Complete(context.Background(), domain.CompleteFilingRequest{
		FilingID:       filing.ID.String(),
		ResumeToken:    filing.ResumeToken,
		PaymentMethod:  domain.PaymentMethodCard,
		CardholderName: "Dana Whitfield",
		CardNumber:     "4242 4242 4242 4242",
		CardExpiry:     "12/30",
		CardCVV:        "123",
		TermsAccepted:  true,
	})
	assert.ErrorIs(t, err, domain.ErrContactRequired)
}

func TestList_FiltersAndPages(t *testing.T) {
	f := newFixture(t, acmeCarrier())
	for i := 0; i < 3; i++ {
		f.createDraft(t, wizard.FilingTypeMCS150)
		f.clock.Advance(time.Minute)
	}

	resp, err := f.svc.List(context.Background(), domain.ListFilingsRequest{
		USDOTNumber: "1234567",
		Status:      string(domain.StatusDraft),
		PageSize:    2,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Filings, 2)
	assert.True(t, resp.HasMore)
	assert.NotEmpty(t, resp.NextPageToken)

	resp2, err := f.svc.List(context.Background(), domain.ListFilingsRequest{
		USDOTNumber: "1234567",
		PageSize:    2,
		PageToken:   resp.NextPageToken,
	})
	require.NoError(t, err)
	assert.Len(t, resp2.Filings, 1)
	assert.False(t, resp2.HasMore)
}
