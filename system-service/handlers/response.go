// Package handlers exposes the back-office services over HTTP.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/logger"
	"backoffice-backend/system-service/middleware"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error" example:"not_found"`
	Message string `json:"message" example:"category not found"`
}

// Response is the envelope of every successful request.
type Response struct {
	Success bool `json:"success" example:"true"`
	Data    any  `json:"data"`
}

type statusInput struct {
	Status *int `json:"status" binding:"required"`
}

type sortNoInput struct {
	SortNo *int `json:"sortno" binding:"required"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func deleted(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"deleted": true}})
}

// fail writes err as an ErrorResponse. Internal errors are logged and their
// detail is not sent to the client.
func fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	msg := apperr.MessageOf(err)
	if kind == apperr.KindInternal {
		logger.FromContext(c.Request.Context()).WithError(err).Error("request failed")
		msg = "Internal server error"
	}
	c.Set(middleware.ContextErrorMessage, msg)
	c.AbortWithStatusJSON(kind.HTTPStatus(), ErrorResponse{Error: kind.String(), Message: msg})
}

func badRequest(c *gin.Context, msg string) {
	fail(c, apperr.BadRequest("%s", msg))
}

// idParam parses the named path parameter as a positive id.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// pidParam parses the named path parameter as a parent id; 0 is the root.
func pidParam(c *gin.Context, name string) (int64, bool) {
	pid, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || pid < 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return pid, true
}

// pidQuery reads an optional parent id from the query string.
func pidQuery(c *gin.Context) (int64, bool) {
	raw := c.DefaultQuery("pid", "0")
	pid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || pid < 0 {
		badRequest(c, "Invalid pid")
		return 0, false
	}
	return pid, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func bindStatus(c *gin.Context) (models.Status, bool) {
	var in statusInput
	if !bindJSON(c, &in) {
		return 0, false
	}
	return models.Status(*in.Status), true
}

func bindSortNo(c *gin.Context) (int, bool) {
	var in sortNoInput
	if !bindJSON(c, &in) {
		return 0, false
	}
	return *in.SortNo, true
}
