package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/services"
	"backoffice-backend/shared/utils/query"
)

const maxImageSize = 10 << 20

type CategoryHandler struct {
	svc *services.CategoryService
}

func NewCategoryHandler(d services.Deps) *CategoryHandler {
	return &CategoryHandler{svc: services.NewCategoryService(d)}
}

func (h *CategoryHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/categories")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/tree", h.Tree)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/children", h.Children)
	g.GET("/:id/subtree", h.SubTree)
	g.GET("/:id/chain", h.Chain)
	g.POST("/:id/move-up", h.MoveUp)
	g.POST("/:id/move-down", h.MoveDown)
	g.PUT("/:id/sortno", h.SetSortNo)
	g.PUT("/:id/status", h.SetStatus)
	g.POST("/:id/image", h.UploadImage)
}

// List godoc
// @Summary List categories
// @Description Paged category list. keywords match title and tag, or a group prefix.
// @Tags categories
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page" default(10)
// @Param keywords query string false "Keywords"
// @Success 200 {object} Response
// @Failure 401 {object} ErrorResponse
// @Router /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), query.ParseQueryParams(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// Create godoc
// @Summary Create category
// @Description Appends the category after its last sibling
// @Tags categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param category body services.CategoryInput true "Category"
// @Success 201 {object} Response
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Parent not found"
// @Router /categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var in services.CategoryInput
	if !bindJSON(c, &in) {
		return
	}
	cat, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, cat)
}

// Tree godoc
// @Summary Category tree
// @Tags categories
// @Produce json
// @Security BearerAuth
// @Param pid query int false "Parent id, 0 for the whole tree" default(0)
// @Success 200 {object} Response
// @Router /categories/tree [get]
func (h *CategoryHandler) Tree(c *gin.Context) {
	pid, valid := pidQuery(c)
	if !valid {
		return
	}
	nodes, err := h.svc.TreeNodes(c.Request.Context(), pid)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nodes)
}

// Get godoc
// @Summary Get category
// @Tags categories
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category ID"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Router /categories/{id} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	cat, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cat)
}

// Update godoc
// @Summary Update category
// @Description A changed pid moves the category to the end of its new parent
// @Tags categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category ID"
// @Param category body services.CategoryInput true "Category"
// @Success 200 {object} Response
// @Failure 409 {object} ErrorResponse "Move would create a cycle"
// @Router /categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in services.CategoryInput
	if !bindJSON(c, &in) {
		return
	}
	cat, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cat)
}

// Delete godoc
// @Summary Delete category
// @Description Only leaf categories can be deleted
// @Tags categories
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category ID"
// @Success 200 {object} Response
// @Failure 409 {object} ErrorResponse "Category has children"
// @Router /categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
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

// @Summary List child categories
// @Tags categories
// @Produce json
// @Security BearerAuth
// @Param id path int true "Parent ID"
// @Success 200 {object} Response
// @Router /categories/{id}/children [get]
func (h *CategoryHandler) Children(c *gin.Context) {
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

func (h *CategoryHandler) SubTree(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	node, err := h.svc.SubTree(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, node)
}

// @Summary Category ancestor chain
// @Tags categories
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category ID"
// @Success 200 {object} Response
// @Router /categories/{id}/chain [get]
func (h *CategoryHandler) Chain(c *gin.Context) {
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

// @Summary Move category up
// @Description Swaps sortno with the previous sibling. Returns the swapped pair, or nothing at the top.
// @Tags categories
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category ID"
// @Success 200 {object} Response
// @Router /categories/{id}/move-up [post]
func (h *CategoryHandler) MoveUp(c *gin.Context) {
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

// @Summary Move category down
// @Tags categories
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category ID"
// @Success 200 {object} Response
// @Router /categories/{id}/move-down [post]
func (h *CategoryHandler) MoveDown(c *gin.Context) {
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

func (h *CategoryHandler) SetSortNo(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	sortNo, valid := bindSortNo(c)
	if !valid {
		return
	}
	cat, err := h.svc.SetSortNo(c.Request.Context(), id, sortNo)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cat)
}

func (h *CategoryHandler) SetStatus(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	status, valid := bindStatus(c)
	if !valid {
		return
	}
	cat, err := h.svc.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cat)
}

// UploadImage godoc
// @Summary Upload category image
// @Tags categories
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "Category ID"
// @Param file formData file true "Image"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Router /categories/{id}/image [post]
func (h *CategoryHandler) UploadImage(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageSize)
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "No file uploaded")
		return
	}
	src, err := file.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer src.Close()

	cat, err := h.svc.UploadImage(c.Request.Context(), id, file.Filename, src, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cat)
}
