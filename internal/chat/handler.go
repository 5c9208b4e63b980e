package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"frameworks/almanac/internal/almanac"
	"frameworks/almanac/internal/capture"
	"frameworks/almanac/internal/drafts"
	"frameworks/almanac/pkg/llm"
	"frameworks/almanac/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxMessageRunes = 10000

// TurnRunner answers one message. *Orchestrator satisfies it.
type TurnRunner interface {
	Run(ctx context.Context, turn Turn) (TurnResult, error)
}

// EntryCreator files a pending knowledge entry. *drafts.Manager satisfies it.
type EntryCreator interface {
	CreatePendingEntry(ctx context.Context, in drafts.NewEntry) (drafts.PendingEntry, error)
}

type Handler struct {
	runner   TurnRunner
	sessions capture.Store
	entries  EntryCreator
	logger   logging.Logger

	// conversationLocks serializes turns and context edits per conversation.
	// Entries are dropped once no request holds or waits on them.
	locksMu           sync.Mutex
	conversationLocks map[string]*conversationLock
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

func NewHandler(runner TurnRunner, sessions capture.Store, entries EntryCreator, logger logging.Logger) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("turn runner is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Handler{
		runner:            runner,
		sessions:          sessions,
		entries:           entries,
		logger:            logger,
		conversationLocks: make(map[string]*conversationLock),
	}, nil
}

func (h *Handler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/chat", h.HandleChat)
	router.GET("/conversations/:id/context", h.HandleGetContext)
	router.PATCH("/conversations/:id/context", h.HandleUpdateContext)
	router.DELETE("/conversations/:id/context", h.HandleResetContext)
	router.PUT("/conversations/:id/mode", h.HandleSwitchMode)
	router.POST("/conversations/:id/draft", h.HandleCreateDraft)
}

type ChatRequest struct {
	ConversationID string        `json:"conversation_id,omitempty"`
	Message        string        `json:"message"`
	History        []llm.Message `json:"history,omitempty"`
}

type ChatResponse struct {
	ConversationID string           `json:"conversation_id"`
	Answer         string           `json:"answer"`
	Metadata       Metadata         `json:"metadata"`
	Context        capture.Snapshot `json:"context"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type draftRequest struct {
	Title      string   `json:"title,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags,omitempty"`
	SourceURLs []string `json:"source_urls,omitempty"`
}

func (h *Handler) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if len([]rune(req.Message)) > maxMessageRunes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message too long"})
		return
	}

	ctx := almanac.RequestContext(c)
	tenantID := almanac.GetTenantID(ctx)
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	ctx = almanac.WithConversationID(ctx, conversationID)

	unlock := h.lockConversation(conversationID)
	defer unlock()

	conv, err := h.sessions.Load(ctx, tenantID, conversationID)
	if err != nil {
		h.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to load conversation context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation context"})
		return
	}

	conversationsActive.Inc()
	result, err := h.runner.Run(ctx, Turn{Message: req.Message, History: req.History, Conversation: conv})
	conversationsActive.Dec()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.WithError(err).WithField("conversation_id", conversationID).Warn("Almanac turn failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "an error occurred processing your request"})
		return
	}

	// A turn whose request went away is answered to nobody; keep the stored
	// context as it was.
	if ctx.Err() != nil {
		return
	}
	if err := h.sessions.Save(ctx, tenantID, conversationID, conv); err != nil {
		h.logger.WithError(err).WithField("conversation_id", conversationID).Warn("Failed to store conversation context")
	}

	c.JSON(http.StatusOK, ChatResponse{
		ConversationID: conversationID,
		Answer:         result.Answer,
		Metadata:       result.Metadata,
		Context:        conv.Snapshot(),
	})
}

func (h *Handler) HandleGetContext(c *gin.Context) {
	h.withContext(c, false, func(_ context.Context, conv *capture.Context) (int, any) {
		return http.StatusOK, conv.Snapshot()
	})
}

func (h *Handler) HandleUpdateContext(c *gin.Context) {
	var update capture.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	h.withContext(c, true, func(_ context.Context, conv *capture.Context) (int, any) {
		if err := conv.Apply(update); err != nil {
			return http.StatusBadRequest, gin.H{"error": err.Error()}
		}
		return http.StatusOK, conv.Snapshot()
	})
}

func (h *Handler) HandleResetContext(c *gin.Context) {
	h.withContext(c, true, func(_ context.Context, conv *capture.Context) (int, any) {
		conv.Reset()
		return http.StatusOK, conv.Snapshot()
	})
}

func (h *Handler) HandleSwitchMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	mode, err := capture.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.withContext(c, true, func(_ context.Context, conv *capture.Context) (int, any) {
		if err := conv.SwitchMode(mode); err != nil {
			return http.StatusBadRequest, gin.H{"error": err.Error()}
		}
		return http.StatusOK, conv.Snapshot()
	})
}

// HandleCreateDraft turns a ready capture conversation into a pending
// knowledge entry.
func (h *Handler) HandleCreateDraft(c *gin.Context) {
	if h.entries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "knowledge review is not configured"})
		return
	}
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	h.withContext(c, true, func(ctx context.Context, conv *capture.Context) (int, any) {
		draft, err := conv.BuildDraft(capture.DraftInput{
			Title:      req.Title,
			Summary:    req.Summary,
			Content:    req.Content,
			Tags:       req.Tags,
			SourceURLs: req.SourceURLs,
		})
		switch {
		case errors.Is(err, capture.ErrNotReady):
			return http.StatusConflict, gin.H{"error": "conversation is not ready to draft", "context": conv.Snapshot()}
		case err != nil:
			return http.StatusBadRequest, gin.H{"error": err.Error()}
		}

		entry, err := h.entries.CreatePendingEntry(ctx, drafts.FromDraft(
			almanac.GetTenantID(ctx),
			almanac.GetUserID(ctx),
			almanac.GetConversationID(ctx),
			draft,
			conv.ResearchedTopics(),
		))
		if err != nil {
			if errors.Is(err, drafts.ErrInvalidEntry) {
				return http.StatusBadRequest, gin.H{"error": err.Error()}
			}
			h.logger.WithError(err).Warn("Failed to create pending entry from draft")
			return http.StatusInternalServerError, gin.H{"error": "failed to create pending entry"}
		}
		conv.AttachDraft(draft, entry.ID)
		return http.StatusCreated, gin.H{"entry": entry, "context": conv.Snapshot()}
	})
}

// withContext loads the conversation context under its lock, runs fn and,
// when persist is set and the request is still live, stores the result.
func (h *Handler) withContext(c *gin.Context, persist bool, fn func(ctx context.Context, conv *capture.Context) (int, any)) {
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	ctx := almanac.WithConversationID(almanac.RequestContext(c), conversationID)
	tenantID := almanac.GetTenantID(ctx)

	unlock := h.lockConversation(conversationID)
	defer unlock()

	conv, err := h.sessions.Load(ctx, tenantID, conversationID)
	if err != nil {
		h.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to load conversation context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation context"})
		return
	}

	status, body := fn(ctx, conv)
	if persist && status < http.StatusBadRequest {
		if ctx.Err() != nil {
			return
		}
		if err := h.sessions.Save(ctx, tenantID, conversationID, conv); err != nil {
			h.logger.WithError(err).WithField("conversation_id", conversationID).Error("Failed to store conversation context")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store conversation context"})
			return
		}
	}
	c.JSON(status, body)
}

func (h *Handler) lockConversation(conversationID string) func() {
	h.locksMu.Lock()
	lock, ok := h.conversationLocks[conversationID]
	if !ok {
		lock = &conversationLock{}
		h.conversationLocks[conversationID] = lock
	}
	lock.refs++
	h.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		h.locksMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(h.conversationLocks, conversationID)
		}
		h.locksMu.Unlock()
	}
}
