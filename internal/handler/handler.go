package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"classattendance/internal/attendance"
	"classattendance/internal/auth"
	"classattendance/internal/location"
	"classattendance/internal/metrics"
	"classattendance/internal/notify"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/refpoint"
	"classattendance/internal/timetable"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Auth       *auth.Service
	Issuer     *auth.Issuer
	Fixes      location.Publisher
	References refpoint.Store
	Timetable  *timetable.Service
	Logs       *attendance.Service
	Inbox      notify.Inbox
	Metrics    *metrics.Metrics
	Clock      clock.Clock
	Health     map[string]HealthCheck
}

// Handler serves the device API.
type Handler struct {
	Deps
}

func New(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

// Register mounts every route on r. Middlewares in authed run after token
// verification.
func (h *Handler) Register(r gin.IRouter, metricsHandler http.Handler, authed ...gin.HandlerFunc) {
	r.GET("/healthz", h.healthz)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}
	r.POST("/v1/devices/register", h.registerDevice)
	r.POST("/v1/devices/refresh", h.refreshDevice)

	v1 := r.Group("/v1", append([]gin.HandlerFunc{auth.DeviceAuth(h.Issuer)}, authed...)...)
	v1.POST("/fixes", h.postFix)

	v1.GET("/reference-point", h.getReference)
	v1.PUT("/reference-point", h.putReference)
	v1.DELETE("/reference-point", h.deleteReference)

	v1.GET("/subjects", h.listSubjects)
	v1.POST("/subjects", h.createSubject)
	v1.DELETE("/subjects/:id", h.deleteSubject)

	v1.GET("/timetable", h.week)
	v1.POST("/timetable", h.addSlot)
	v1.DELETE("/timetable/:id", h.deleteSlot)

	v1.GET("/logs", h.listLogs)
	v1.DELETE("/logs/:id", h.deleteLog)

	v1.GET("/notifications", h.notifications)
}

func (h *Handler) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Health {
		healthy := check(ctx) == nil
		body[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

func newTokenResponse(p auth.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, ExpiresAt: p.AccessExp.Unix()}
}

func (h *Handler) registerDevice(c *gin.Context) {
	var req struct {
		DeviceID string `json:"device_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tokens, err := h.Auth.Register(c.Request.Context(), req.DeviceID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTokenResponse(tokens))
}

func (h *Handler) refreshDevice(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tokens, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(tokens))
}

// postFix accepts a device report. A report without both coordinates is
// forwarded as a null fix.
func (h *Handler) postFix(c *gin.Context) {
	var req struct {
		Latitude   *float64   `json:"latitude" binding:"omitempty,min=-90,max=90"`
		Longitude  *float64   `json:"longitude" binding:"omitempty,min=-180,max=180"`
		CapturedAt *time.Time `json:"captured_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var fix *attendance.PositionFix
	if req.Latitude != nil && req.Longitude != nil {
		fix = &attendance.PositionFix{Latitude: *req.Latitude, Longitude: *req.Longitude, CapturedAt: h.Clock.Now()}
		if req.CapturedAt != nil {
			fix.CapturedAt = *req.CapturedAt
		}
	}
	if err := h.Fixes.Publish(c.Request.Context(), fix); err != nil {
		abort(c, err)
		return
	}
	h.Metrics.ObserveFix()
	c.JSON(http.StatusAccepted, gin.H{"accepted": fix != nil})
}

func (h *Handler) getReference(c *gin.Context) {
	ref, err := h.References.Get(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"latitude": ref.Latitude, "longitude": ref.Longitude, "set": ref.IsSet()})
}

func (h *Handler) putReference(c *gin.Context) {
	var req attendance.ReferencePoint
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.References.Set(c.Request.Context(), req); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"latitude": req.Latitude, "longitude": req.Longitude, "set": true})
}

func (h *Handler) deleteReference(c *gin.Context) {
	if err := h.References.Delete(c.Request.Context()); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listSubjects(c *gin.Context) {
	subjects, err := h.Timetable.Subjects(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

func (h *Handler) createSubject(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	subj, err := h.Timetable.CreateSubject(c.Request.Context(), req.Name)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, subj)
}

func (h *Handler) deleteSubject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Timetable.DeleteSubject(c.Request.Context(), id); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) week(c *gin.Context) {
	week, err := h.Timetable.Week(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": week})
}

func (h *Handler) addSlot(c *gin.Context) {
	var req struct {
		SubjectID *int64 `json:"subject_id" binding:"required"`
		Weekday   *int   `json:"weekday" binding:"required,min=0,max=6"`
		Hour      *int   `json:"hour" binding:"required,min=0,max=23"`
		Minute    *int   `json:"minute" binding:"required,min=0,max=59"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	slot, err := h.Timetable.AddSlot(c.Request.Context(), timetable.NewSlot{
		SubjectID: *req.SubjectID,
		Weekday:   time.Weekday(*req.Weekday),
		Hour:      *req.Hour,
		Minute:    *req.Minute,
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func (h *Handler) deleteSlot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Timetable.DeleteSlot(c.Request.Context(), id); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listLogs(c *gin.Context) {
	var f attendance.LogFilter
	if v := c.Query("subject_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, err)
			return
		}
		f.SubjectID = &id
	}
	f.Limit = queryInt(c, "limit", 50)
	f.Offset = queryInt(c, "offset", 0)

	logs, err := h.Logs.Logs(c.Request.Context(), f)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *Handler) deleteLog(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Logs.DeleteLog(c.Request.Context(), id); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) notifications(c *gin.Context) {
	items, err := h.Inbox.Recent(c.Request.Context(), queryInt(c, "limit", notify.InboxLimit))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
