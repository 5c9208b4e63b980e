package drafts

import (
	"errors"
	"net/http"
	"strings"

	"frameworks/almanac/pkg/logging"
	"frameworks/almanac/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// ReviewAPI exposes the pending-entry review queue.
type ReviewAPI struct {
	manager *Manager
	logger  logging.Logger
}

func NewReviewAPI(manager *Manager, logger logging.Logger) (*ReviewAPI, error) {
	if manager == nil {
		return nil, errors.New("manager is required")
	}
	return &ReviewAPI{manager: manager, logger: logger}, nil
}

func (a *ReviewAPI) RegisterRoutes(group *gin.RouterGroup) {
	review := group.Group("/review")
	review.GET("/pending", a.handleList)
	review.POST("/pending", a.handleCreate)
	review.GET("/pending/:id", a.handleGet)
	review.POST("/pending/:id/approve", a.handleApprove)
	review.POST("/pending/:id/reject", a.handleReject)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (a *ReviewAPI) handleList(c *gin.Context) {
	entries, err := a.manager.ListPending(c.Request.Context(), c.GetString(middleware.TenantIDKey))
	if err != nil {
		a.writeError(c, err)
		return
	}
	if entries == nil {
		entries = []PendingEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (a *ReviewAPI) handleCreate(c *gin.Context) {
	var req NewEntry
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SourceType == "" {
		req.SourceType = SourceUserInput
	}
	req.TenantID = c.GetString(middleware.TenantIDKey)
	req.UserID = c.GetString(middleware.UserIDKey)
	entry, err := a.manager.CreatePendingEntry(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (a *ReviewAPI) handleGet(c *gin.Context) {
	entry, err := a.manager.Get(c.Request.Context(), c.GetString(middleware.TenantIDKey), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (a *ReviewAPI) handleApprove(c *gin.Context) {
	var edit Edit
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&edit); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	doc, err := a.manager.Approve(c.Request.Context(), c.GetString(middleware.TenantIDKey), c.Param("id"), c.GetString(middleware.UserIDKey), &edit)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

func (a *ReviewAPI) handleReject(c *gin.Context) {
	var req rejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	err := a.manager.Reject(c.Request.Context(), c.GetString(middleware.TenantIDKey), c.Param("id"), c.GetString(middleware.UserIDKey), req.Reason)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": StatusRejected})
}

func (a *ReviewAPI) writeError(c *gin.Context, err error) {
	var partial *PartialApprovalError
	switch {
	case errors.As(err, &partial):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":            "document created but entry not resolved",
			"partial_approval": true,
			"document_id":      partial.DocumentID,
		})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "pending entry not found"})
	case errors.Is(err, ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "pending entry already resolved"})
	case errors.Is(err, ErrInvalidEntry):
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), ErrInvalidEntry.Error()+": ")})
	default:
		if a.logger != nil {
			middleware.GetContextLogger(c, a.logger).WithError(err).Warn("Review request failed")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "review request failed"})
	}
}
