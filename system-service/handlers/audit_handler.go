package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/services"
	"backoffice-backend/shared/utils/query"
)

// AuditHandler serves one account log table.
type AuditHandler struct {
	svc *services.AuditLogService
}

func NewSystemAuditHandler(d services.Deps) *AuditHandler {
	return &AuditHandler{svc: services.NewSystemAuditLogService(d)}
}

func NewCustomAuditHandler(d services.Deps) *AuditHandler {
	return &AuditHandler{svc: services.NewCustomAuditLogService(d)}
}

func (h *AuditHandler) Register(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
}

// GetAuditLogs godoc
// @Summary List account logs
// @Description Newest first. The same handler serves system-logs and custom-logs.
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param username query string false "Username contains"
// @Param isErrored query bool false "Only failed requests"
// @Param keywords query string false "Search in client id and detail, or biztype prefix"
// @Success 200 {object} Response
// @Router /audit/system-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	var filter services.AuditFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, "Invalid filter: "+err.Error())
		return
	}
	page, err := h.svc.PageList(c.Request.Context(), query.ParseQueryParams(c), filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

func (h *AuditHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	l, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, l)
}

func (h *AuditHandler) Delete(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.SoftDelete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	deleted(c)
}
