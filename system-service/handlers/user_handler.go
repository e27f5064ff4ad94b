package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/services"
	"backoffice-backend/shared/utils/query"
)

type UserHandler struct {
	users   *services.SystemUserService
	members *services.CustomUserService
}

type passwordInput struct {
	Password string `json:"password"`
}

type userStatusInput struct {
	Status *models.UserStatus `json:"status" binding:"required"`
}

func NewUserHandler(d services.Deps) *UserHandler {
	return &UserHandler{
		users:   services.NewSystemUserService(d),
		members: services.NewCustomUserService(d),
	}
}

func (h *UserHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/users")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/userno/:userno", h.GetByUserno)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PUT("/:id/password", h.ResetPassword)
	g.PUT("/:id/status", h.SetStatus)

	members := rg.Group("/custom-users")
	members.GET("/lookup", h.LookupMember)
	members.GET("/:id", h.GetMember)
}

// GetUsers godoc
// @Summary List system users
// @Description Filters: filters[orgid], filters[status], filters[is_super]
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param keywords query string false "Search in username, nickname, phone and email"
// @Success 200 {object} Response
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	page, err := h.users.List(c.Request.Context(), query.ParseQueryParams(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}

// CreateUser godoc
// @Summary Create system user
// @Description Issues the next userno. An empty password means the configured default.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param user body services.SystemUserInput true "User"
// @Success 201 {object} Response
// @Failure 400 {object} ErrorResponse "Missing contact or weak password"
// @Failure 409 {object} ErrorResponse "Username, phone or email taken in the organization"
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var in services.SystemUserInput
	if !bindJSON(c, &in) {
		return
	}
	u, err := h.users.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, u)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

func (h *UserHandler) GetByUserno(c *gin.Context) {
	u, err := h.users.GetByUserno(c.Request.Context(), c.Param("userno"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

func (h *UserHandler) Update(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in services.SystemUserUpdate
	if !bindJSON(c, &in) {
		return
	}
	u, err := h.users.Update(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

// ResetPassword godoc
// @Summary Reset user password
// @Description An empty password resets to the configured default
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param password body passwordInput true "New password"
// @Success 200 {object} Response
// @Router /users/{id}/password [put]
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in passwordInput
	if !bindJSON(c, &in) {
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), id, in.Password); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"reset": true})
}

func (h *UserHandler) SetStatus(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var in userStatusInput
	if !bindJSON(c, &in) {
		return
	}
	u, err := h.users.SetStatus(c.Request.Context(), id, *in.Status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

func (h *UserHandler) GetMember(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	u, err := h.members.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

// @Summary Find a front end member
// @Description Matches email, phone, then username or userno
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param account query string true "Account"
// @Success 200 {object} Response
// @Failure 404 {object} ErrorResponse
// @Router /custom-users/lookup [get]
func (h *UserHandler) LookupMember(c *gin.Context) {
	account := c.Query("account")
	if account == "" {
		badRequest(c, "account is required")
		return
	}
	u, err := h.members.FindAccount(c.Request.Context(), account)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"user": u, "password_unset": h.members.PasswordUnset(u)})
}
