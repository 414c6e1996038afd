package server

import (
	"net/http"
	"strconv"

	filingdomain "github.com/dotfilings/dotfilings/internal/filing/domain"
	"github.com/dotfilings/dotfilings/internal/wizard"
	"github.com/gin-gonic/gin"
)

type CreateFilingRequest struct {
	USDOTNumber string `json:"usdot_number"`
	FilingType  string `json:"filing_type"`
	Email       string `json:"email"`

	botCheckFields
}

func (s *Server) CreateFiling(c *gin.Context) {
	var req CreateFilingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.botCheckFields.suspicious(s.now()) {
		AbortWithError(c, invalidRequestError())
		return
	}

	filing, err := s.filingSvc.Create(c.Request.Context(), filingdomain.CreateFilingRequest{
		USDOTNumber: req.USDOTNumber,
		FilingType:  wizard.FilingType(req.FilingType),
		Email:       req.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"filing":       filing,
		"current_step": 1,
	})
}

func (s *Server) ResumeFiling(c *gin.Context) {
	filing, err := s.filingSvc.FindByResumeToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	current := filing.LastStepCompleted + 1
	if last := wizard.StepCount(filing.FilingType); current > last {
		current = last
	}

	c.JSON(http.StatusOK, gin.H{
		"filing":       filing,
		"current_step": current,
	})
}

type AdvanceStepRequest struct {
	ResumeToken string       `json:"resume_token"`
	CurrentStep int          `json:"current_step"`
	Direction   string       `json:"direction"`
	Patch       wizard.Patch `json:"patch"`

	botCheckFields
}

func (s *Server) AdvanceFilingStep(c *gin.Context) {
	var req AdvanceStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.botCheckFields.suspicious(s.now()) {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.filingSvc.Advance(c.Request.Context(), filingdomain.AdvanceStepRequest{
		FilingID:    c.Param("id"),
		ResumeToken: req.ResumeToken,
		CurrentStep: req.CurrentStep,
		Direction:   filingdomain.Direction(req.Direction),
		Patch:       req.Patch,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filing":       result.Filing,
		"current_step": result.CurrentStep,
		"form_state":   result.FormState,
	})
}

func (s *Server) UploadAttachment(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "file_required", "attach a file under the \"file\" form field"))
		return
	}
	defer file.Close()

	filing, err := s.filingSvc.AttachFile(c.Request.Context(), filingdomain.AttachFileRequest{
		FilingID:    c.Param("id"),
		ResumeToken: c.Query("resume_token"),
		Name:        c.Param("name"),
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
		Body:        file,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"filing": filing})
}

type CompleteFilingRequest struct {
	ResumeToken    string `json:"resume_token"`
	PaymentMethod  string `json:"payment_method"`
	CardholderName string `json:"cardholder_name"`
	CardNumber     string `json:"card_number"`
	CardExpiry     string `json:"card_expiry"`
	CardCVV        string `json:"card_cvv"`
	TermsAccepted  bool   `json:"terms_accepted"`

	botCheckFields
}

func (s *Server) CompleteFiling(c *gin.Context) {
	var req CompleteFilingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.botCheckFields.suspicious(s.now()) {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.filingSvc.Complete(c.Request.Context(), filingdomain.CompleteFilingRequest{
		FilingID:       c.Param("id"),
		ResumeToken:    req.ResumeToken,
		PaymentMethod:  req.PaymentMethod,
		CardholderName: req.CardholderName,
		CardNumber:     req.CardNumber,
		CardExpiry:     req.CardExpiry,
		CardCVV:        req.CardCVV,
		TermsAccepted:  req.TermsAccepted,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filingsCompletedTotal.WithLabelValues(string(result.Filing.FilingType)).Inc()

	c.JSON(http.StatusOK, gin.H{
		"filing":      result.Filing,
		"transaction": result.Transaction,
	})
}

func (s *Server) ListFilings(c *gin.Context) {
	pageSize := 0
	if raw := c.Query("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, newValidationError("page_size", "invalid_page_size", "page_size must be a positive integer"))
			return
		}
		pageSize = parsed
	}

	resp, err := s.filingSvc.List(c.Request.Context(), filingdomain.ListFilingsRequest{
		PageToken:   c.Query("page_token"),
		PageSize:    pageSize,
		USDOTNumber: c.Query("usdot_number"),
		FilingType:  c.Query("filing_type"),
		Status:      c.Query("status"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
