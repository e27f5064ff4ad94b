package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/services"
	"backoffice-backend/shared/utils/query"
)

type RoleHandler struct {
	svc *services.RoleService
}

type groupInput struct {
	Group string `json:"group"`
}

func NewRoleHandler(d services.Deps) *RoleHandler {
	return &RoleHandler{svc: services.NewRoleService(d)}
}

func (h *RoleHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/roles")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/status", h.SetStatus)
	g.PUT("/:id/group", h.SetGroup)
	g.PUT("/:id/default", h.SetDefault)
}

// GetRoles godoc
// @Summary List roles
// @Tags roles
// @Produce json
// @Security BearerAuth
// @Param keywords query string false "Search in name"
// @Param withDeleted query bool false "Include soft deleted roles"
// @Success 200 {object} Response
// @Router /roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), query.ParseQueryParams(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// CreateRole godoc
// @Summary Create role
// @Tags roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param role body services.RoleInput true "Role"
// @Success 201 {object} Response
// @Failure 409 {object} ErrorResponse "Role name already exists"
// @Router /roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	var in services.RoleInput
	if !bindJSON(c, &in) {
		return
	}
	role, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, role)
}

func (h *RoleHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	role, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, role)
}

func (h *RoleHandler) Update(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in services.RoleInput
	if !bindJSON(c, &in) {
		return
	}
	role, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, role)
}

func (h *RoleHandler) Delete(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	deleted(c)
}

func (h *RoleHandler) SetStatus(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	status, valid := bindStatus(c)
	if !valid {
		return
	}
	role, err := h.svc.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, role)
}

func (h *RoleHandler) SetGroup(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in groupInput
	if !bindJSON(c, &in) {
		return
	}
	role, err := h.svc.SetGroup(c.Request.Context(), id, strings.TrimSpace(in.Group))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, role)
}

// SetDefaultRole godoc
// @Summary Make role the group default
// @Tags roles
// @Produce json
// @Security BearerAuth
// @Param id path int true "Role ID"
// @Success 200 {object} Response
// @Router /roles/{id}/default [put]
func (h *RoleHandler) SetDefault(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	role, err := h.svc.SetDefault(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, role)
}
