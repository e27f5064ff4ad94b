package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"backoffice-backend/shared/config"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/services"
)

const (
	adminAccount  = "admin"
	adminPassword = "Admin@123456"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.SetConfig(&config.Config{JWT: config.JWTOptions{Secret: "handlers-test-secret", ExpireHours: 1}})
}

type apiEnv struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	root   *models.Organization
	token  string
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	for _, table := range models.LogTables() {
		require.NoError(t, db.Table(table).AutoMigrate(&models.AccountLog{}))
	}

	deps := services.Deps{
		DB: db,
		Security: config.SecurityOptions{
			EncryptRounds:   4,
			PasswordLevel:   "middle",
			UnoSeeds:        []string{"888"},
			DefaultPassword: "Welcome123",
		},
	}
	ctx := context.Background()
	root, err := services.NewOrganizationService(deps).InitRoot(ctx)
	require.NoError(t, err)
	_, _, err = services.NewSystemUserService(deps).InitSuperUser(ctx, root.ID, adminAccount, "admin@example.com", adminPassword)
	require.NoError(t, err)

	r := gin.New()
	RegisterRoutes(r, deps, nil)
	return &apiEnv{t: t, db: db, router: r, root: root}
}

func (e *apiEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) login() {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Account: adminAccount, Password: adminPassword})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	var resp LoginResponse
	decodeData(e.t, w, &resp)
	require.NotEmpty(e.t, resp.Token)
	e.token = resp.Token
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestAuth_LoginAndMe(t *testing.T) {
	e := newAPIEnv(t)

	w := e.do(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Account: adminAccount, Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w).Error)

	w = e.do(http.MethodPost, "/api/v1/auth/login", gin.H{"account": adminAccount})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.login()
	w = e.do(http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.SystemUser
	decodeData(t, w, &me)
	assert.Equal(t, adminAccount, me.Username)
	assert.True(t, me.IsSuper)
	assert.NotContains(t, w.Body.String(), "password")

	var logins int64
	require.NoError(t, e.db.Table(models.SystemUserLogTable).Where("biztype = ?", bizLogin).Count(&logins).Error)
	assert.Equal(t, int64(2), logins)
}

func TestCategories_TreeLifecycle(t *testing.T) {
	e := newAPIEnv(t)
	e.login()

	w := e.do(http.MethodPost, "/api/v1/categories", services.CategoryInput{Title: "News"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var news models.Category
	decodeData(t, w, &news)

	var kids []models.Category
	for _, title := range []string{"Local", "World"} {
		w = e.do(http.MethodPost, "/api/v1/categories", services.CategoryInput{PID: news.ID, Title: title})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var c models.Category
		decodeData(t, w, &c)
		kids = append(kids, c)
	}
	assert.Equal(t, 0, kids[0].SortNo)
	assert.Equal(t, 1, kids[1].SortNo)

	w = e.do(http.MethodPost, fmt.Sprintf("/api/v1/categories/%d/move-up", kids[1].ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var swapped []models.Category
	decodeData(t, w, &swapped)
	assert.Len(t, swapped, 2)

	w = e.do(http.MethodGet, "/api/v1/categories/tree", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tree []services.TreeOption
	decodeData(t, w, &tree)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "World", tree[0].Children[0].Label)

	w = e.do(http.MethodGet, fmt.Sprintf("/api/v1/categories/%d/chain", kids[0].ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var chain []services.TreeOption
	decodeData(t, w, &chain)
	require.Len(t, chain, 2)
	assert.Equal(t, news.ID, chain[0].ID)

	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/categories/%d", news.ID), services.CategoryInput{PID: kids[0].ID, Title: "News"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/v1/categories/%d", news.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", decodeError(t, w).Error)

	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/categories/%d/status", kids[0].ID), gin.H{"status": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var disabled models.Category
	decodeData(t, w, &disabled)
	assert.Equal(t, models.StatusForbidden, disabled.Status)

	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/categories/%d/sortno", kids[0].ID), gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/api/v1/categories/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodGet, "/api/v1/categories/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Error)

	w = e.do(http.MethodGet, "/api/v1/categories?keywords=Wor", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []models.Category `json:"items"`
	}
	decodeData(t, w, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "World", page.Items[0].Title)
}

func TestOrganizations_LevelAndMove(t *testing.T) {
	e := newAPIEnv(t)
	e.login()

	create := func(pid int64, name string) models.Organization {
		w := e.do(http.MethodPost, "/api/v1/organizations", services.OrganizationInput{PID: pid, Name: name})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var o models.Organization
		decodeData(t, w, &o)
		return o
	}
	sales := create(e.root.ID, "Sales")
	support := create(e.root.ID, "Support")
	team := create(sales.ID, "Sales Team A")
	assert.Equal(t, sales.Level+1, team.Level)

	w := e.do(http.MethodGet, fmt.Sprintf("/api/v1/organizations/level/%d", e.root.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var level []services.TreeOption
	decodeData(t, w, &level)
	require.Len(t, level, 2)
	assert.False(t, level[0].IsLeaf)
	assert.True(t, level[1].IsLeaf)

	w = e.do(http.MethodPost, fmt.Sprintf("/api/v1/organizations/%d/move", team.ID), gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, fmt.Sprintf("/api/v1/organizations/%d/move", team.ID), gin.H{"pid": support.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var moved models.Organization
	decodeData(t, w, &moved)
	assert.Equal(t, support.ID, moved.PID)
	assert.Equal(t, support.Level+1, moved.Level)
	assert.NotEqual(t, team.Orgno, moved.Orgno)

	w = e.do(http.MethodPost, fmt.Sprintf("/api/v1/organizations/%d/move", sales.ID), gin.H{"pid": sales.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/v1/organizations/%d", e.root.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDicts_Options(t *testing.T) {
	e := newAPIEnv(t)
	e.login()

	w := e.do(http.MethodPost, "/api/v1/dicts", services.DictInput{Name: "Gender", Code: "gender"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var dict models.Dict
	decodeData(t, w, &dict)

	for _, it := range []services.DictItemInput{{Label: "Male", Value: "1"}, {Label: "Female", Value: "2"}} {
		w = e.do(http.MethodPost, fmt.Sprintf("/api/v1/dicts/%d/items", dict.ID), it)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w = e.do(http.MethodPost, fmt.Sprintf("/api/v1/dicts/%d/items", dict.ID), services.DictItemInput{Label: "Again", Value: "1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodGet, "/api/v1/dicts/options/gender", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var opts []services.SelectOption
	decodeData(t, w, &opts)
	require.Len(t, opts, 2)
	assert.Equal(t, "Male", opts[0].Label)

	w = e.do(http.MethodGet, "/api/v1/dicts/options/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsers_CreateAndResetPassword(t *testing.T) {
	e := newAPIEnv(t)
	e.login()

	w := e.do(http.MethodPost, "/api/v1/users", services.SystemUserInput{Username: "bob", Phone: "13800138000", OrgID: e.root.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bob models.SystemUser
	decodeData(t, w, &bob)
	assert.Equal(t, "0888000001", bob.Userno)

	w = e.do(http.MethodPost, "/api/v1/users", services.SystemUserInput{Username: "bob", Email: "bob@example.com", OrgID: e.root.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/password", bob.ID), passwordInput{Password: "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/password", bob.ID), passwordInput{Password: "Better1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	e.token = ""
	w = e.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Account: "13800138000", Password: "Better1234"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAuditTrail_RecordsMutations(t *testing.T) {
	e := newAPIEnv(t)
	e.login()

	w := e.do(http.MethodPost, "/api/v1/roles", services.RoleInput{Name: "auditor", Group: "system"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = e.do(http.MethodPost, "/api/v1/roles", services.RoleInput{Name: "auditor"})
	require.Equal(t, http.StatusConflict, w.Code)

	countRoleLogs := func() int64 {
		var n int64
		e.db.Table(models.SystemUserLogTable).Where("biztype = ?", "post:roles").Count(&n)
		return n
	}
	require.Eventually(t, func() bool { return countRoleLogs() == 2 }, 2*time.Second, 20*time.Millisecond)

	w = e.do(http.MethodGet, "/api/v1/audit/system-logs?isErrored=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Items []models.AccountLog `json:"items"`
	}
	decodeData(t, w, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "post:roles", page.Items[0].Biztype)
	assert.Equal(t, adminAccount, page.Items[0].Username)
	assert.Equal(t, float64(http.StatusConflict), page.Items[0].ErrorJSON["status"])

	w = e.do(http.MethodGet, "/api/v1/audit/custom-logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &page)
	assert.Empty(t, page.Items)
}
