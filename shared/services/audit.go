package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/utils/metajson"
	"backoffice-backend/shared/utils/query"
)

// AuditFilter narrows PageList. Keywords come from FilterParams.Search and
// match biztype as a prefix, client id or detail anywhere.
type AuditFilter struct {
	Username  string `form:"username"`
	IsErrored bool   `form:"isErrored"`
}

// AuditRecord is the in-memory form of one audited request.
type AuditRecord struct {
	Biztype   string
	BizDetail string
	Username  string
	UID       *int64
	ClientID  string
	IP        string
	Detail    map[string]any
	Error     map[string]any
	Locked    bool
}

// AuditLogService reads and writes one of the account log tables.
type AuditLogService struct {
	db    *gorm.DB
	table string
}

func NewSystemAuditLogService(d Deps) *AuditLogService {
	return &AuditLogService{db: d.DB, table: models.SystemUserLogTable}
}

func NewCustomAuditLogService(d Deps) *AuditLogService {
	return &AuditLogService{db: d.DB, table: models.CustomUserLogTable}
}

func (s *AuditLogService) Table() string { return s.table }

func (s *AuditLogService) scoped(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.AccountLog{}).Table(s.table)
}

func parseLog(l *models.AccountLog) {
	l.DetailJSON = metajson.Parse(l.Detail)
	if l.Error != nil {
		l.ErrorJSON = metajson.Parse(*l.Error)
	}
}

// PageList returns logs newest first.
func (s *AuditLogService) PageList(ctx context.Context, params query.FilterParams, filter AuditFilter) (query.PageResult[models.AccountLog], error) {
	q := s.scoped(ctx)
	if name := strings.TrimSpace(filter.Username); name != "" {
		q = q.Where("username LIKE ?", "%"+name+"%")
	}
	if filter.IsErrored {
		q = q.Where("error IS NOT NULL")
	}
	q = query.ApplySearch(q, params.Search, []string{"client_id", "detail"}, "biztype")
	page, err := query.Paginate[models.AccountLog](q, params, func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC").Order("id DESC")
	})
	if err != nil {
		return page, errors.Wrapf(err, "list %s", s.table)
	}
	for i := range page.Items {
		parseLog(&page.Items[i])
	}
	return page, nil
}

func (s *AuditLogService) Get(ctx context.Context, id int64) (*models.AccountLog, error) {
	if id <= 0 {
		return nil, apperr.BadRequest("log id is required")
	}
	var l models.AccountLog
	res := s.scoped(ctx).Where("id = ?", id).Limit(1).Find(&l)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "load %s %d", s.table, id)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("log %d not found", id)
	}
	parseLog(&l)
	return &l, nil
}

func (s *AuditLogService) Create(ctx context.Context, l *models.AccountLog) error {
	if strings.TrimSpace(l.Biztype) == "" {
		return apperr.BadRequest("biztype is required")
	}
	return errors.Wrapf(s.db.WithContext(ctx).Table(s.table).Create(l).Error, "create %s", s.table)
}

// FromRecord converts r into a row. Unknown users are logged as "unknown"
// with uid -1.
func FromRecord(r AuditRecord) models.AccountLog {
	uid := int64(-1)
	if r.UID != nil {
		uid = *r.UID
	}
	l := models.AccountLog{
		Biztype:   r.Biztype,
		BizDetail: r.BizDetail,
		Username:  r.Username,
		UID:       &uid,
		ClientID:  r.ClientID,
		IP:        r.IP,
		Locked:    r.Locked,
	}
	if l.Username == "" {
		l.Username = "unknown"
	}
	if l.BizDetail == "" {
		l.BizDetail = r.Biztype
	}
	if r.Detail != nil {
		if b, err := json.Marshal(r.Detail); err == nil {
			l.Detail = string(b)
		}
	}
	if r.Error != nil {
		if b, err := json.Marshal(r.Error); err == nil {
			e := string(b)
			l.Error = &e
		}
	}
	return l
}

func (s *AuditLogService) CreateFromCache(ctx context.Context, r AuditRecord) (*models.AccountLog, error) {
	l := FromRecord(r)
	if err := s.Create(ctx, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *AuditLogService) SoftDelete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return errors.Wrapf(s.scoped(ctx).Where("id = ?", id).Delete(&models.AccountLog{}).Error, "delete %s %d", s.table, id)
}
