package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pitchloop/sales-coach-backend/internal/auth"
	"github.com/pitchloop/sales-coach-backend/internal/http/middleware"
	"github.com/pitchloop/sales-coach-backend/internal/providers"
	"github.com/pitchloop/sales-coach-backend/internal/services"
)

// ConversationAnalyzer runs (or replays) the AI analysis of a finished
// conversation. The boolean reports whether the result came from cache.
type ConversationAnalyzer interface {
	Analyze(ctx context.Context, conversationID, authID string) (json.RawMessage, bool, error)
}

// AnalysisStore persists a client-supplied analysis payload.
type AnalysisStore interface {
	Save(ctx context.Context, ident *auth.Identity, in services.SaveAnalysisInput) (*services.SaveAnalysisResult, error)
}

// AnalysisHandler serves conversation analysis endpoints.
type AnalysisHandler struct {
	Analyzer   ConversationAnalyzer
	Saver      AnalysisStore
	RetryAfter int // seconds, hinted to clients on transcript-not-ready
}

func NewAnalysisHandler(an ConversationAnalyzer, sv AnalysisStore, retryAfter int) *AnalysisHandler {
	return &AnalysisHandler{Analyzer: an, Saver: sv, RetryAfter: retryAfter}
}

// Analyze godoc
// @Summary      Analyze a conversation
// @Description  Fetches the conversation transcript, runs AI analysis and returns a structured report. Repeated calls for the same conversation return the stored report without re-running the model.
// @Tags         analysis
// @Produce      json
// @Param        id  path  string  true  "Conversation ID"
// @Success      200  {object}  services.AnalysisReport
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /conversations/{id}/analyze [post]
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "conversation id is required")
		return
	}

	var authID string
	if ident := middleware.IdentityFrom(c); ident != nil {
		authID = ident.UserID
	}

	payload, cached, err := h.Analyzer.Analyze(c.Request.Context(), conversationID, authID)
	if err != nil {
		h.analyzeError(c, err)
		return
	}

	middleware.CountAnalysisOutcome(cached)
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

func (h *AnalysisHandler) analyzeError(c *gin.Context, err error) {
	var ue *providers.UpstreamError
	switch {
	case errors.Is(err, services.ErrTranscriptNotReady):
		failWith(c, http.StatusBadRequest, ErrorResponse{
			Code:       ErrCodeTranscriptNotReady,
			Message:    "transcript not ready, retry shortly",
			RetryAfter: h.RetryAfter,
		})
	case errors.As(err, &ue):
		failWith(c, http.StatusBadGateway, ErrorResponse{
			Code:    ErrCodeUpstream,
			Message: ue.Provider + " request failed",
			Detail:  truncateDetail(ue.Body),
		})
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "analysis failed")
	}
}

type saveAnalysisRequest struct {
	ConversationID string          `json:"conversation_id" binding:"required"`
	AnalysisData   json.RawMessage `json:"analysis_data" binding:"required"`
}

// Save godoc
// @Summary      Save an analysis payload
// @Description  Stores an externally produced analysis for a conversation, creating a session record when one does not exist yet.
// @Tags         analysis
// @Accept       json
// @Produce      json
// @Param        request  body  saveAnalysisRequest  true  "Analysis payload"
// @Success      200  {object}  services.SaveAnalysisResult
// @Failure      400  {object}  ErrorResponse
// @Router       /analysis/save [post]
func (h *AnalysisHandler) Save(c *gin.Context) {
	var req saveAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, "conversation_id and analysis_data are required")
		return
	}

	res, err := h.Saver.Save(c.Request.Context(), middleware.IdentityFrom(c), services.SaveAnalysisInput{
		ConversationID: req.ConversationID,
		AnalysisData:   req.AnalysisData,
	})
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to save analysis")
		return
	}
	ok(c, http.StatusOK, res)
}

// truncateDetail keeps upstream bodies short enough for an error envelope.
func truncateDetail(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
