// Package handler exposes the registry's HTTP surface with gin.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/canonical"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/chain"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/recorder"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/registry/model"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/registry/service"
	"github.com/arawrdn/Stacks-Decentralized-Asset-Registry/internal/sheets"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuditHandler exposes the audit, lookup, and verify endpoints.
type AuditHandler struct {
	svc    *service.AuditService
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(svc *service.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, logger: logger}
}

// Register mounts the routes. requireAuth guards the write surface; lookup
// and verify stay public by design — anyone may check a recorded digest.
func (h *AuditHandler) Register(rg *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	rg.POST("/audits", requireAuth, h.CreateAudit)
	rg.GET("/audits", requireAuth, h.ListAudits)
	rg.GET("/assets/:asset_id", h.GetAsset)
	rg.POST("/assets/:asset_id/verify", h.VerifyAsset)
}

// CreateAudit handles POST /audits — the AuditAsset operation.
func (h *AuditHandler) CreateAudit(c *gin.Context) {
	var req model.AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "error": err.Error()})
		return
	}

	result, err := h.svc.Audit(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	RecordAudit("recorded")
	c.JSON(http.StatusCreated, result)
}

// GetAsset handles GET /assets/:asset_id — the public lookup path.
func (h *AuditHandler) GetAsset(c *gin.Context) {
	assetID := c.Param("asset_id")
	if err := recorder.ValidateAssetID(assetID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "error": err.Error()})
		return
	}

	record, err := h.svc.Lookup(c.Request.Context(), assetID)
	if err != nil {
		if errors.Is(err, recorder.ErrNoRecord) {
			c.JSON(http.StatusNotFound, gin.H{"kind": "no_record", "error": "no record for asset " + assetID})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// VerifyAsset handles POST /assets/:asset_id/verify.
func (h *AuditHandler) VerifyAsset(c *gin.Context) {
	var req model.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "error": err.Error()})
		return
	}

	result, err := h.svc.Verify(c.Request.Context(), c.Param("asset_id"), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	RecordVerify(string(result.Outcome))
	c.JSON(http.StatusOK, result)
}

// ListAudits handles GET /audits — the local journal, newest first.
func (h *AuditHandler) ListAudits(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.svc.ListAudits(c.Request.Context(), c.Query("asset_id"), limit, offset)
	if err != nil {
		h.logger.Error("list audits", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"kind": "internal", "error": "failed to list audits"})
		return
	}
	if entries == nil {
		entries = []*model.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"audits": entries})
}

// writeError maps the error taxonomy onto HTTP responses. Every body
// carries a machine-readable kind so callers can decide retry eligibility
// without parsing free text.
func (h *AuditHandler) writeError(c *gin.Context, err error) {
	var ve *model.ErrValidation

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "error": ve.Msg})

	case errors.Is(err, canonical.ErrInsufficientData):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"kind": "insufficient_data", "error": err.Error()})

	case errors.Is(err, sheets.ErrNotFound), errors.Is(err, sheets.ErrAuth), errors.Is(err, service.ErrSource):
		c.JSON(http.StatusBadGateway, gin.H{"kind": "source", "error": err.Error()})

	case errors.Is(err, recorder.ErrAlreadyRecorded):
		RecordAudit("already_recorded")
		c.JSON(http.StatusConflict, gin.H{"kind": "already_recorded", "error": err.Error()})

	case errors.Is(err, recorder.ErrNotAuthorized):
		// Deployment misconfiguration, not a caller problem.
		RecordAudit("not_authorized")
		h.logger.Error("registry authority rejected by ledger", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"kind": "not_authorized", "error": err.Error()})

	case chain.IsIndeterminate(err):
		RecordAudit("indeterminate")
		c.JSON(http.StatusBadGateway, gin.H{
			"kind":          "ledger_transport",
			"indeterminate": true,
			"error":         err.Error(),
		})

	default:
		h.logger.Error("audit request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"kind": "ledger", "error": err.Error()})
	}
}
