package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/utils/query"
)

func TestFromRecord_Defaults(t *testing.T) {
	l := FromRecord(AuditRecord{Biztype: "user.create", Detail: map[string]any{"path": "/users"}})
	assert.Equal(t, "unknown", l.Username)
	require.NotNil(t, l.UID)
	assert.Equal(t, int64(-1), *l.UID)
	assert.Equal(t, "user.create", l.BizDetail)
	assert.JSONEq(t, `{"path":"/users"}`, l.Detail)
	assert.Nil(t, l.Error)
}

func TestAuditLog_PageListAndSoftDelete(t *testing.T) {
	env := newTestEnv(t)
	svc := NewSystemAuditLogService(env.deps)
	custom := NewCustomAuditLogService(env.deps)
	ctx := context.Background()

	uid := int64(7)
	ok, err := svc.CreateFromCache(ctx, AuditRecord{Biztype: "category.create", Username: "alice", UID: &uid, ClientID: "web-1", Detail: map[string]any{"id": 1}})
	require.NoError(t, err)
	failed, err := svc.CreateFromCache(ctx, AuditRecord{Biztype: "category.delete", Username: "alice", Error: map[string]any{"status": 409}})
	require.NoError(t, err)
	_, err = svc.CreateFromCache(ctx, AuditRecord{Biztype: "region.update", Username: "bob"})
	require.NoError(t, err)
	_, err = custom.CreateFromCache(ctx, AuditRecord{Biztype: "login", Username: "carol"})
	require.NoError(t, err)

	page, err := svc.PageList(ctx, query.FilterParams{}, AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Pagination.Total)

	page, err = svc.PageList(ctx, query.FilterParams{}, AuditFilter{Username: "lic"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = svc.PageList(ctx, query.FilterParams{}, AuditFilter{IsErrored: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, failed.ID, page.Items[0].ID)
	assert.Equal(t, float64(409), page.Items[0].ErrorJSON["status"])

	page, err = svc.PageList(ctx, query.FilterParams{Search: "category"}, AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	got, err := svc.Get(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got.DetailJSON["id"])

	require.NoError(t, svc.SoftDelete(ctx, ok.ID))
	_, err = svc.Get(ctx, ok.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(svc.SoftDelete(ctx, ok.ID)))

	page, err = custom.PageList(ctx, query.FilterParams{}, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "carol", page.Items[0].Username)
}

func TestAuditLog_GetToleratesBrokenJSON(t *testing.T) {
	env := newTestEnv(t)
	svc := NewSystemAuditLogService(env.deps)
	ctx := context.Background()

	broken := "{oops"
	l := &models.AccountLog{Biztype: "raw", Detail: "[1,2]", Error: &broken}
	require.NoError(t, svc.Create(ctx, l))

	got, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DetailJSON)
	assert.Nil(t, got.ErrorJSON)

	assert.True(t, apperr.IsBadRequest(svc.Create(ctx, &models.AccountLog{})))
}
