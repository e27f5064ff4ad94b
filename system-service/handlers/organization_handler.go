package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/services"
	"backoffice-backend/shared/utils/query"
)

type OrganizationHandler struct {
	svc *services.OrganizationService
}

type moveInput struct {
	PID *int64 `json:"pid" binding:"required"`
}

func NewOrganizationHandler(d services.Deps) *OrganizationHandler {
	return &OrganizationHandler{svc: services.NewOrganizationService(d)}
}

func (h *OrganizationHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/organizations")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/tree", h.Tree)
	g.GET("/level/:pid", h.Level)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/children", h.Children)
	g.GET("/:id/subtree", h.SubTree)
	g.GET("/:id/chain", h.Chain)
	g.POST("/:id/move", h.Move)
	g.POST("/:id/move-up", h.MoveUp)
	g.POST("/:id/move-down", h.MoveDown)
	g.PUT("/:id/sortno", h.SetSortNo)
	g.PUT("/:id/status", h.SetStatus)
}

// GetOrganizations godoc
// @Summary List organizations
// @Description Paged list ordered by level and sortno. Filters: status, level, pid.
// @Tags organizations
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page" default(10)
// @Param keywords query string false "Search in name and short name, or orgno prefix"
// @Success 200 {object} Response
// @Router /organizations [get]
func (h *OrganizationHandler) List(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), query.ParseQueryParams(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// CreateOrganization godoc
// @Summary Create organization
// @Description Assigns the next free code under the parent when none is given and builds the orgno
// @Tags organizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param organization body services.OrganizationInput true "Organization"
// @Success 201 {object} Response
// @Failure 400 {object} ErrorResponse "Invalid code or level too deep"
// @Failure 409 {object} ErrorResponse "Code already used under this parent"
// @Router /organizations [post]
func (h *OrganizationHandler) Create(c *gin.Context) {
	var in services.OrganizationInput
	if !bindJSON(c, &in) {
		return
	}
	org, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, org)
}

// @Summary Organization selection tree
// @Tags organizations
// @Produce json
// @Security BearerAuth
// @Param pid query int false "Parent id" default(0)
// @Success 200 {object} Response
// @Router /organizations/tree [get]
func (h *OrganizationHandler) Tree(c *gin.Context) {
	pid, valid := pidQuery(c)
	if !valid {
		return
	}
	nodes, err := h.svc.SelectionTree(c.Request.Context(), pid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nodes)
}

// @Summary Lazy load organization level
// @Description Enabled children of pid with their leaf flag
// @Tags organizations
// @Produce json
// @Security BearerAuth
// @Param pid path int true "Parent id, 0 for top level"
// @Success 200 {object} Response
// @Router /organizations/level/{pid} [get]
func (h *OrganizationHandler) Level(c *gin.Context) {
	pid, valid := pidParam(c, "pid")
	if !valid {
		return
	}
	nodes, err := h.svc.LevelTreeNodes(c.Request.Context(), pid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nodes)
}

// GetOrganization godoc
// @Summary Get organization
// @Tags organizations
// @Produce json
// @Security BearerAuth
// @Param id path int true "Organization ID"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Router /organizations/{id} [get]
func (h *OrganizationHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	org, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, org)
}

// UpdateOrganization godoc
// @Summary Update organization
// @Description Updates attributes. Use the move route to change the parent.
// @Tags organizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Organization ID"
// @Param organization body services.OrganizationInput true "Organization"
// @Success 200 {object} Response
// @Router /organizations/{id} [put]
func (h *OrganizationHandler) Update(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in services.OrganizationInput
	if !bindJSON(c, &in) {
		return
	}
	org, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, org)
}

// DeleteOrganization godoc
// @Summary Delete organization
// @Tags organizations
// @Produce json
// @Security BearerAuth
// @Param id path int true "Organization ID"
// @Success 200 {object} Response
// @Failure 409 {object} ErrorResponse "Locked or has children"
// @Router /organizations/{id} [delete]
func (h *OrganizationHandler) Delete(c *gin.Context) {
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

func (h *OrganizationHandler) Children(c *gin.Context) {
	pid, valid := pidParam(c, "id")
	if !valid {
		return
	}
	nodes, err := h.svc.LevelTreeNodes(c.Request.Context(), pid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nodes)
}

func (h *OrganizationHandler) SubTree(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	node, err := h.svc.TreeNodes(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, node)
}

func (h *OrganizationHandler) Chain(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	chain, err := h.svc.Chain(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, chain)
}

// MoveOrganization godoc
// @Summary Move organization
// @Description Reparents the organization and rewrites level and orgno of the whole subtree
// @Tags organizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Organization ID"
// @Param move body moveInput true "New parent"
// @Success 200 {object} Response
// @Failure 409 {object} ErrorResponse "Move would create a cycle"
// @Router /organizations/{id}/move [post]
func (h *OrganizationHandler) Move(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in moveInput
	if !bindJSON(c, &in) {
		return
	}
	org, err := h.svc.Move(c.Request.Context(), id, *in.PID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, org)
}

func (h *OrganizationHandler) MoveUp(c *gin.Context) {
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

func (h *OrganizationHandler) MoveDown(c *gin.Context) {
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

func (h *OrganizationHandler) SetSortNo(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	sortNo, valid := bindSortNo(c)
	if !valid {
		return
	}
	org, err := h.svc.SetSortNo(c.Request.Context(), id, sortNo)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, org)
}

func (h *OrganizationHandler) SetStatus(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	status, valid := bindStatus(c)
	if !valid {
		return
	}
	org, err := h.svc.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, org)
}
