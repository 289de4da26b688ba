package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/adherence-engine/internal/middleware"
)

// Handlers groups every endpoint implementation
type Handlers struct {
	Dose      *DoseHandler
	Adherence *AdherenceHandler
	Rewards   *RewardsHandler
	Report    *ReportHandler
	Scheduler *SchedulerHandler
	System    *SystemHandler
	Audit     *AuditHandler
}

// RegisterRoutes mounts the API. User routes require the X-User-ID header set by the gateway.
func RegisterRoutes(r gin.IRouter, h Handlers) {
	r.GET("/health", h.System.GetHealth)
	r.GET("/metrics", h.System.GetMetrics)
	r.GET("/openapi.json", h.System.GetOpenAPI)

	v1 := r.Group("/api/v1")

	ops := v1.Group("/scheduler")
	ops.POST("/run", h.Scheduler.Run)
	ops.GET("/status", h.Scheduler.Status)

	user := v1.Group("", middleware.UserMiddleware())

	user.POST("/doses", h.Dose.LogDose)
	user.GET("/doses", h.Dose.ListDoses)
	user.POST("/doses/quick", h.Dose.QuickMark)
	user.GET("/doses/day", h.Dose.DaySchedule)
	user.PUT("/doses/:id", h.Dose.CorrectDose)

	user.GET("/adherence/stats", h.Adherence.GetStats)
	user.GET("/adherence/streaks", h.Adherence.GetStreaks)
	user.GET("/adherence/calendar", h.Adherence.GetCalendar)
	user.GET("/adherence/trends", h.Adherence.GetTrends)
	user.GET("/achievements", h.Adherence.GetAchievements)

	user.GET("/rewards", h.Rewards.GetSummary)
	user.POST("/rewards/checkin", h.Rewards.CheckIn)

	user.POST("/reports/adherence", h.Report.ArchiveReport)
	user.GET("/reports/adherence/:name", h.Report.GetReport)

	user.GET("/audit", h.Audit.GetAuditTrail)
}
