package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pitchloop/sales-coach-backend/internal/auth"
	"github.com/pitchloop/sales-coach-backend/internal/http/middleware"
	"github.com/pitchloop/sales-coach-backend/internal/services"
	"github.com/pitchloop/sales-coach-backend/internal/utils"
)

// StatsProvider assembles dashboard statistics. It never fails; callers
// without usable data get demo-tier numbers tagged with a reason.
type StatsProvider interface {
	Get(ctx context.Context, ident *auth.Identity) services.Stats
}

// RecentSessionLister returns the caller's most recent voice sessions.
type RecentSessionLister interface {
	RecentSessions(ctx context.Context, limit int) []services.RecentSession
}

// DashboardHandler serves dashboard read endpoints.
type DashboardHandler struct {
	Stats  StatsProvider
	Recent RecentSessionLister
}

func NewDashboardHandler(st StatsProvider, rc RecentSessionLister) *DashboardHandler {
	return &DashboardHandler{Stats: st, Recent: rc}
}

// GetStats godoc
// @Summary      Dashboard statistics
// @Description  Returns usage statistics for the caller. Unauthenticated or unprovisioned callers receive demo-tier defaults with a reason tag rather than an error.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  services.Stats
// @Router       /dashboard/stats [get]
func (h *DashboardHandler) GetStats(c *gin.Context) {
	stats := h.Stats.Get(c.Request.Context(), middleware.IdentityFrom(c))
	ok(c, http.StatusOK, stats)
}

// RecentSessions godoc
// @Summary      Recent training sessions
// @Description  Lists recent voice conversations with cached analysis scores attached. Returns an empty list when the voice provider is unavailable.
// @Tags         dashboard
// @Produce      json
// @Param        limit  query  int  false  "Maximum sessions to return"  default(10)
// @Success      200  {object}  map[string][]services.RecentSession
// @Router       /dashboard/recent-sessions [get]
func (h *DashboardHandler) RecentSessions(c *gin.Context) {
	limit := utils.ClampLimit(c.Query("limit"), 10, 50)
	sessions := h.Recent.RecentSessions(c.Request.Context(), limit)
	ok(c, http.StatusOK, gin.H{"sessions": sessions})
}
