package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/services"
	"backoffice-backend/shared/utils/query"
)

type DictHandler struct {
	svc *services.DictService
}

func NewDictHandler(d services.Deps) *DictHandler {
	return &DictHandler{svc: services.NewDictService(d)}
}

func (h *DictHandler) Register(rg *gin.RouterGroup) {
	dicts := rg.Group("/dicts")
	dicts.GET("", h.ListDicts)
	dicts.POST("", h.CreateDict)
	dicts.GET("/options/:code", h.Options)
	dicts.GET("/:id", h.GetDict)
	dicts.PUT("/:id", h.UpdateDict)
	dicts.PUT("/:id/sortno", h.SetDictSortNo)
	dicts.GET("/:id/items", h.ListItems)
	dicts.POST("/:id/items", h.CreateItem)

	items := rg.Group("/dict-items")
	items.GET("/:id", h.GetItem)
	items.PUT("/:id", h.UpdateItem)
	items.PUT("/:id/sortno", h.SetItemSortNo)
	items.PUT("/:id/status", h.SetItemStatus)
	items.PUT("/:id/default", h.SetDefault)
}

// @Summary List dictionaries
// @Tags dicts
// @Produce json
// @Security BearerAuth
// @Param keywords query string false "Search in name, or code prefix"
// @Success 200 {object} Response
// @Router /dicts [get]
func (h *DictHandler) ListDicts(c *gin.Context) {
	page, err := h.svc.ListDicts(c.Request.Context(), query.ParseQueryParams(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// @Summary Create dictionary
// @Tags dicts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param dict body services.DictInput true "Dictionary"
// @Success 201 {object} Response
// @Failure 409 {object} ErrorResponse "Code already exists"
// @Router /dicts [post]
func (h *DictHandler) CreateDict(c *gin.Context) {
	var in services.DictInput
	if !bindJSON(c, &in) {
		return
	}
	d, err := h.svc.CreateDict(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, d)
}

// @Summary Dictionary select options
// @Description Enabled items of the dictionary, served from cache when possible
// @Tags dicts
// @Produce json
// @Security BearerAuth
// @Param code path string true "Dictionary code"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Router /dicts/options/{code} [get]
func (h *DictHandler) Options(c *gin.Context) {
	opts, err := h.svc.SelectionOptions(c.Request.Context(), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, opts)
}

func (h *DictHandler) GetDict(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	d, err := h.svc.GetDict(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, d)
}

func (h *DictHandler) UpdateDict(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in services.DictInput
	if !bindJSON(c, &in) {
		return
	}
	d, err := h.svc.UpdateDict(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, d)
}

func (h *DictHandler) SetDictSortNo(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	sortNo, valid := bindSortNo(c)
	if !valid {
		return
	}
	d, err := h.svc.SetDictSortNo(c.Request.Context(), id, sortNo)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, d)
}

// @Summary List dictionary items
// @Tags dicts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Dictionary ID"
// @Success 200 {object} Response
// @Router /dicts/{id}/items [get]
func (h *DictHandler) ListItems(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	page, err := h.svc.ListItems(c.Request.Context(), id, query.ParseQueryParams(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// @Summary Create dictionary item
// @Tags dicts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Dictionary ID"
// @Param item body services.DictItemInput true "Item"
// @Success 201 {object} Response
// @Failure 409 {object} ErrorResponse "Value already exists in this dictionary"
// @Router /dicts/{id}/items [post]
func (h *DictHandler) CreateItem(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in services.DictItemInput
	if !bindJSON(c, &in) {
		return
	}
	in.DictID = id
	item, err := h.svc.CreateItem(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, item)
}

func (h *DictHandler) GetItem(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	item, err := h.svc.GetItem(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, item)
}

func (h *DictHandler) UpdateItem(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in services.DictItemInput
	if !bindJSON(c, &in) {
		return
	}
	item, err := h.svc.UpdateItem(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, item)
}

func (h *DictHandler) SetItemSortNo(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	sortNo, valid := bindSortNo(c)
	if !valid {
		return
	}
	item, err := h.svc.SetItemSortNo(c.Request.Context(), id, sortNo)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, item)
}

func (h *DictHandler) SetItemStatus(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	status, valid := bindStatus(c)
	if !valid {
		return
	}
	item, err := h.svc.SetItemStatus(c.Request.Context(), id, status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, item)
}

// @Summary Make item the dictionary default
// @Description Clears the default flag on every other item of the dictionary
// @Tags dicts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Item ID"
// @Success 200 {object} Response
// @Router /dict-items/{id}/default [put]
func (h *DictHandler) SetDefault(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	item, err := h.svc.SetDefaultActived(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, item)
}
