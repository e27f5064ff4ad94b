package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/services"
)

// MenuHandler serves the admin console menu tree.
type MenuHandler struct {
	svc *services.MenuService
}

func NewMenuHandler(d services.Deps) *MenuHandler {
	return &MenuHandler{svc: services.NewMenuService(d)}
}

func (h *MenuHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/menus")
	g.GET("", h.Tree)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/move-up", h.MoveUp)
	g.POST("/:id/move-down", h.MoveDown)
	g.PUT("/:id/sortno", h.SetSortNo)
	g.PUT("/:id/status", h.SetStatus)
}

// @Summary Menu tree
// @Description Menus below pid. metajson is merged into each node's extra.
// @Tags menus
// @Produce json
// @Security BearerAuth
// @Param pid query int false "Parent id" default(0)
// @Success 200 {object} Response
// @Router /menus [get]
func (h *MenuHandler) Tree(c *gin.Context) {
	pid, valid := pidQuery(c)
	if !valid {
		return
	}
	nodes, err := h.svc.Tree(c.Request.Context(), pid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nodes)
}

// @Summary Create menu
// @Tags menus
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param menu body services.MenuInput true "Menu"
// @Success 201 {object} Response
// @Failure 409 {object} ErrorResponse "Code already exists"
// @Router /menus [post]
func (h *MenuHandler) Create(c *gin.Context) {
	var in services.MenuInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, m)
}

func (h *MenuHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	m, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, m)
}

func (h *MenuHandler) Update(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in services.MenuInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, m)
}

func (h *MenuHandler) Delete(c *gin.Context) {
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

func (h *MenuHandler) MoveUp(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	items, err := h.svc.MoveUp(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (h *MenuHandler) MoveDown(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	items, err := h.svc.MoveDown(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (h *MenuHandler) SetSortNo(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	sortNo, valid := bindSortNo(c)
	if !valid {
		return
	}
	m, err := h.svc.SetSortNo(c.Request.Context(), id, sortNo)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, m)
}

func (h *MenuHandler) SetStatus(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	status, valid := bindStatus(c)
	if !valid {
		return
	}
	m, err := h.svc.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, m)
}

// AuthGroupHandler serves the permission group tree.
type AuthGroupHandler struct {
	svc *services.AuthGroupService
}

func NewAuthGroupHandler(d services.Deps) *AuthGroupHandler {
	return &AuthGroupHandler{svc: services.NewAuthGroupService(d)}
}

func (h *AuthGroupHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/auth-groups")
	g.GET("", h.Tree)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/move-up", h.MoveUp)
	g.POST("/:id/move-down", h.MoveDown)
	g.PUT("/:id/sortno", h.SetSortNo)
	g.PUT("/:id/status", h.SetStatus)
}

// @Summary Permission group tree
// @Tags auth-groups
// @Produce json
// @Security BearerAuth
// @Param pid query int false "Parent id" default(0)
// @Success 200 {object} Response
// @Router /auth-groups [get]
func (h *AuthGroupHandler) Tree(c *gin.Context) {
	pid, valid := pidQuery(c)
	if !valid {
		return
	}
	nodes, err := h.svc.Tree(c.Request.Context(), pid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nodes)
}

// @Summary Create permission group
// @Tags auth-groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param group body services.AuthGroupInput true "Group"
// @Success 201 {object} Response
// @Failure 409 {object} ErrorResponse "Name already used under this parent"
// @Router /auth-groups [post]
func (h *AuthGroupHandler) Create(c *gin.Context) {
	var in services.AuthGroupInput
	if !bindJSON(c, &in) {
		return
	}
	g, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, g)
}

func (h *AuthGroupHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	g, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, g)
}

func (h *AuthGroupHandler) Update(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in services.AuthGroupInput
	if !bindJSON(c, &in) {
		return
	}
	g, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, g)
}

func (h *AuthGroupHandler) Delete(c *gin.Context) {
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

func (h *AuthGroupHandler) MoveUp(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	items, err := h.svc.MoveUp(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (h *AuthGroupHandler) MoveDown(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	items, err := h.svc.MoveDown(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (h *AuthGroupHandler) SetSortNo(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	sortNo, valid := bindSortNo(c)
	if !valid {
		return
	}
	g, err := h.svc.SetSortNo(c.Request.Context(), id, sortNo)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, g)
}

func (h *AuthGroupHandler) SetStatus(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	status, valid := bindStatus(c)
	if !valid {
		return
	}
	g, err := h.svc.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, g)
}
