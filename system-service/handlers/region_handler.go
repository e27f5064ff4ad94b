package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/services"
	"backoffice-backend/shared/utils/query"
)

type RegionHandler struct {
	svc *services.RegionService
}

func NewRegionHandler(d services.Deps) *RegionHandler {
	return &RegionHandler{svc: services.NewRegionService(d)}
}

func (h *RegionHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/regions")
	g.POST("", h.Create)
	g.GET("/tree", h.Tree)
	g.GET("/level/:pid", h.Level)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/children", h.Children)
	g.GET("/:id/chain", h.Chain)
	g.POST("/:id/move-up", h.MoveUp)
	g.POST("/:id/move-down", h.MoveDown)
	g.PUT("/:id/sortno", h.SetSortNo)
	g.PUT("/:id/status", h.SetStatus)
}

// @Summary Create region
// @Tags regions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param region body services.RegionInput true "Region"
// @Success 201 {object} Response
// @Failure 409 {object} ErrorResponse "Code already used under this parent"
// @Router /regions [post]
func (h *RegionHandler) Create(c *gin.Context) {
	var in services.RegionInput
	if !bindJSON(c, &in) {
		return
	}
	r, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, r)
}

// @Summary Region tree
// @Description Every region below pid. Large trees should use the level route.
// @Tags regions
// @Produce json
// @Security BearerAuth
// @Param pid query int false "Parent id" default(0)
// @Success 200 {object} Response
// @Router /regions/tree [get]
func (h *RegionHandler) Tree(c *gin.Context) {
	pid, valid := pidQuery(c)
	if !valid {
		return
	}
	nodes, err := h.svc.LoadAll(c.Request.Context(), pid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nodes)
}

// @Summary Lazy load region level
// @Description Enabled children of pid, cached in redis
// @Tags regions
// @Produce json
// @Security BearerAuth
// @Param pid path int true "Parent id, 0 for top level"
// @Success 200 {object} Response
// @Router /regions/level/{pid} [get]
func (h *RegionHandler) Level(c *gin.Context) {
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

func (h *RegionHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	r, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, r)
}

// @Summary Update region
// @Description Only the fields present in the body are changed
// @Tags regions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Region ID"
// @Param region body services.RegionPatch true "Fields to change"
// @Success 200 {object} Response
// @Router /regions/{id} [patch]
func (h *RegionHandler) Update(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var patch services.RegionPatch
	if !bindJSON(c, &patch) {
		return
	}
	r, err := h.svc.UpdateSome(c.Request.Context(), id, patch)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, r)
}

func (h *RegionHandler) Delete(c *gin.Context) {
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

// @Summary List child regions
// @Tags regions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Parent id, 0 for top level"
// @Param keywords query string false "Search in name and value, or code prefix"
// @Success 200 {object} Response
// @Router /regions/{id}/children [get]
func (h *RegionHandler) Children(c *gin.Context) {
	pid, valid := pidParam(c, "id")
	if !valid {
		return
	}
	page, err := h.svc.SubList(c.Request.Context(), pid, query.ParseQueryParams(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

func (h *RegionHandler) Chain(c *gin.Context) {
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

func (h *RegionHandler) MoveUp(c *gin.Context) {
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

func (h *RegionHandler) MoveDown(c *gin.Context) {
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

func (h *RegionHandler) SetSortNo(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	sortNo, valid := bindSortNo(c)
	if !valid {
		return
	}
	r, err := h.svc.SetSortNo(c.Request.Context(), id, sortNo)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, r)
}

func (h *RegionHandler) SetStatus(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	status, valid := bindStatus(c)
	if !valid {
		return
	}
	r, err := h.svc.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, r)
}
