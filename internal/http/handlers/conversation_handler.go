package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pitchloop/sales-coach-backend/internal/providers"
	"github.com/pitchloop/sales-coach-backend/internal/providers/voice"
)

// ConversationBrowser exposes the voice platform's conversation data.
type ConversationBrowser interface {
	Configured() bool
	ListConversations(ctx context.Context) ([]voice.ConversationSummary, error)
	GetConversation(ctx context.Context, conversationID string) (*voice.ConversationDetail, error)
}

// ConversationHandler proxies conversation reads to the voice platform.
type ConversationHandler struct {
	Voice ConversationBrowser
}

func NewConversationHandler(v ConversationBrowser) *ConversationHandler {
	return &ConversationHandler{Voice: v}
}

// List godoc
// @Summary      List conversations
// @Description  Lists recent conversations from the voice platform.
// @Tags         conversations
// @Produce      json
// @Success      200  {object}  map[string][]voice.ConversationSummary
// @Failure      502  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	if !h.Voice.Configured() {
		fail(c, http.StatusServiceUnavailable, ErrCodeNotConfigured, "voice provider is not configured")
		return
	}

	conversations, err := h.Voice.ListConversations(c.Request.Context())
	if err != nil {
		h.upstreamError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"conversations": conversations})
}

// Get godoc
// @Summary      Get a conversation
// @Description  Returns one conversation's transcript and metadata from the voice platform.
// @Tags         conversations
// @Produce      json
// @Param        id  path  string  true  "Conversation ID"
// @Success      200  {object}  voice.ConversationDetail
// @Failure      502  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /conversations/{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "conversation id is required")
		return
	}
	if !h.Voice.Configured() {
		fail(c, http.StatusServiceUnavailable, ErrCodeNotConfigured, "voice provider is not configured")
		return
	}

	detail, err := h.Voice.GetConversation(c.Request.Context(), id)
	if err != nil {
		h.upstreamError(c, err)
		return
	}
	ok(c, http.StatusOK, detail)
}

func (h *ConversationHandler) upstreamError(c *gin.Context, err error) {
	var ue *providers.UpstreamError
	if errors.As(err, &ue) {
		if ue.Status == http.StatusNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		failWith(c, http.StatusBadGateway, ErrorResponse{
			Code:    ErrCodeUpstream,
			Message: ue.Provider + " request failed",
			Detail:  truncateDetail(ue.Body),
		})
		return
	}
	fail(c, http.StatusBadGateway, ErrCodeUpstream, "voice provider request failed")
}
