package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	carrierdomain "github.com/dotfilings/dotfilings/internal/carrier/domain"
	"github.com/dotfilings/dotfilings/internal/clock"
	"github.com/dotfilings/dotfilings/internal/config"
	"github.com/dotfilings/dotfilings/internal/fees"
	filingdomain "github.com/dotfilings/dotfilings/internal/filing/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCarrierService struct {
	record carrierdomain.Record
	err    error
	calls  int
}

func (f *fakeCarrierService) Lookup(ctx context.Context, req carrierdomain.LookupRequest) (carrierdomain.Record, error) {
	f.calls++
	if f.err != nil {
		return carrierdomain.Record{}, f.err
	}
	record := f.record
	record.USDOTNumber = req.DOTNumber
	return record, nil
}

type fakeFilingService struct {
	filing      filingdomain.Filing
	stepResult  filingdomain.StepResult
	completeRes filingdomain.CompleteFilingResult
	listRes     filingdomain.ListFilingsResponse
	err         error

	lastAdvance  filingdomain.AdvanceStepRequest
	lastComplete filingdomain.CompleteFilingRequest
}

func (f *fakeFilingService) Create(ctx context.Context, req filingdomain.CreateFilingRequest) (filingdomain.Filing, error) {
	if f.err != nil {
		return filingdomain.Filing{}, f.err
	}
	return f.filing, nil
}

func (f *fakeFilingService) Advance(ctx context.Context, req filingdomain.AdvanceStepRequest) (filingdomain.StepResult, error) {
	f.lastAdvance = req
	if f.err != nil {
		return filingdomain.StepResult{}, f.err
	}
	return f.stepResult, nil
}

func (f *fakeFilingService) AttachFile(ctx context.Context, req filingdomain.AttachFileRequest) (filingdomain.Filing, error) {
	if f.err != nil {
		return filingdomain.Filing{}, f.err
	}
	return f.filing, nil
}

func (f *fakeFilingService) Complete(ctx context.Context, req filingdomain.CompleteFilingRequest) (filingdomain.CompleteFilingResult, error) {
	f.lastComplete = req
	if f.err != nil {
		return filingdomain.CompleteFilingResult{}, f.err
	}
	return f.completeRes, nil
}

func (f *fakeFilingService) FindByResumeToken(ctx context.Context, token string) (filingdomain.Filing, error) {
	if f.err != nil {
		return filingdomain.Filing{}, f.err
	}
	return f.filing, nil
}

func (f *fakeFilingService) List(ctx context.Context, req filingdomain.ListFilingsRequest) (filingdomain.ListFilingsResponse, error) {
	if f.err != nil {
		return filingdomain.ListFilingsResponse{}, f.err
	}
	return f.listRes, nil
}

type testServer struct {
	srv     *Server
	filing  *fakeFilingService
	carrier *fakeCarrierService
	clock   *clock.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{Environment: "test"}
	engine := NewEngine(cfg, zap.NewNop())

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	filingSvc := &fakeFilingService{}
	carrierSvc := &fakeCarrierService{record: carrierdomain.Record{LegalName: "ACME TRUCKING LLC"}}
	fc := clock.NewFakeClock(time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC))
	holder := config.NewStaticFeeConfigHolder(config.DefaultFeeConfig())

	srv := NewServer(ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		Log:        zap.NewNop(),
		GenID:      node,
		FilingSvc:  filingSvc,
		CarrierSvc: carrierSvc,
		FeesCalc:   fees.NewCalculator(holder),
		FeeCfg:     holder,
		Clock:      fc,
	})

	return &testServer{srv: srv, filing: filingSvc, carrier: carrierSvc, clock: fc}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(w, req)
	return w
}
