package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lms/internal/core/id"
	"lms/internal/domain/reports"
	"lms/internal/infrastructure/http/v1/dto"
)

// ReportHandler serves the read-only reports.
type ReportHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportHandler creates a new report handler.
func NewReportHandler(base *BaseHandler, service *reports.Service) *ReportHandler {
	return &ReportHandler{BaseHandler: base, service: service}
}

// queryID parses an optional id query parameter.
func (h *ReportHandler) queryID(c *gin.Context, key string) (*id.ID, bool) {
	raw := c.Query(key)
	v, err := dto.ParseOptionalID(key, &raw)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	return v, true
}

// queryTime parses an optional RFC 3339 query parameter.
func (h *ReportHandler) queryTime(c *gin.Context, key string) (*time.Time, bool) {
	t, err := dto.ParseTimeQuery(key, c.Query(key))
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	if t.IsZero() {
		return nil, true
	}
	return &t, true
}

// Enrollments handles GET /reports/enrollments
func (h *ReportHandler) Enrollments(c *gin.Context) {
	var (
		f  reports.EnrollmentSummaryFilter
		ok bool
	)
	if f.From, ok = h.queryTime(c, "from"); !ok {
		return
	}
	if f.To, ok = h.queryTime(c, "to"); !ok {
		return
	}
	if f.CourseID, ok = h.queryID(c, "courseId"); !ok {
		return
	}
	if f.BranchID, ok = h.queryID(c, "branchId"); !ok {
		return
	}
	f.Limit = h.ParseIntQuery(c, "limit", 100)
	f.Offset = h.ParseIntQuery(c, "offset", 0)

	out, err := h.service.EnrollmentSummary(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, out)
}

// Revenue handles GET /reports/revenue?from=...&to=...
func (h *ReportHandler) Revenue(c *gin.Context) {
	f := reports.RevenueFilter{Currency: c.Query("currency")}
	var (
		from, to *time.Time
		ok       bool
	)
	if from, ok = h.queryTime(c, "from"); !ok {
		return
	}
	if to, ok = h.queryTime(c, "to"); !ok {
		return
	}
	if from != nil {
		f.From = *from
	}
	if to != nil {
		f.To = *to
	}
	if f.CourseID, ok = h.queryID(c, "courseId"); !ok {
		return
	}
	if f.BranchID, ok = h.queryID(c, "branchId"); !ok {
		return
	}

	out, err := h.service.Revenue(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, out)
}

// Activity handles GET /reports/activity
func (h *ReportHandler) Activity(c *gin.Context) {
	f := reports.ActivityFilter{
		Limit:     h.ParseIntQuery(c, "limit", 50),
		Offset:    h.ParseIntQuery(c, "offset", 0),
		Ascending: c.Query("order") == "asc",
	}
	var ok bool
	if f.From, ok = h.queryTime(c, "from"); !ok {
		return
	}
	if f.To, ok = h.queryTime(c, "to"); !ok {
		return
	}
	if f.UserID, ok = h.queryID(c, "userId"); !ok {
		return
	}
	if f.CourseID, ok = h.queryID(c, "courseId"); !ok {
		return
	}
	for _, v := range c.QueryArray("eventType") {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				f.EventTypes = append(f.EventTypes, part)
			}
		}
	}

	out, err := h.service.ActivityJournal(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, out)
}
