package handlers

import (
	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/logger"
	"backoffice-backend/shared/services"
	"backoffice-backend/shared/utils/auth"
	"backoffice-backend/system-service/middleware"
)

const bizLogin = "login"

// LoginRequest represents login request body
type LoginRequest struct {
	Account  string `json:"account" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"Admin@123456"`
}

// LoginResponse represents login response data
type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresIn int64              `json:"expires_in"`
	User      *models.SystemUser `json:"user"`
}

type AuthHandler struct {
	users *services.SystemUserService
	audit *services.AuditLogService
}

func NewAuthHandler(d services.Deps) *AuthHandler {
	return &AuthHandler{
		users: services.NewSystemUserService(d),
		audit: services.NewSystemAuditLogService(d),
	}
}

// Login godoc
// @Summary Log in
// @Description Accepts username, phone, email or userno as the account
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Credentials"
// @Success 200 {object} Response{data=LoginResponse}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Account disabled"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	u, err := h.users.Authenticate(ctx, req.Account, req.Password)
	if err != nil {
		h.record(c, req.Account, nil, err)
		fail(c, err)
		return
	}

	token, err := utils.GenerateJWT(u.ID, u.Userno, u.Username, u.OrgID, u.IsSuper)
	if err != nil {
		fail(c, err)
		return
	}
	h.record(c, u.Username, &u.ID, nil)

	ok(c, LoginResponse{
		Token:     token,
		ExpiresIn: int64(utils.GetJWTExpireDuration().Seconds()),
		User:      u,
	})
}

// record writes the login attempt to the system account log.
func (h *AuthHandler) record(c *gin.Context, username string, uid *int64, loginErr error) {
	r := services.AuditRecord{
		Biztype:  bizLogin,
		Username: username,
		UID:      uid,
		ClientID: c.GetHeader("X-Client-Id"),
		IP:       c.ClientIP(),
		Detail:   map[string]any{"user_agent": c.Request.UserAgent()},
	}
	if loginErr != nil {
		kind := apperr.KindOf(loginErr)
		r.Error = map[string]any{"status": kind.HTTPStatus(), "message": apperr.MessageOf(loginErr)}
	}
	if _, err := h.audit.CreateFromCache(c.Request.Context(), r); err != nil {
		logger.FromContext(c.Request.Context()).WithError(err).Warn("login audit failed")
	}
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, exists := middleware.CurrentClaims(c)
	if !exists {
		fail(c, apperr.Unauthorized("not logged in"))
		return
	}
	u, err := h.users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}
