package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/logger"
	"backoffice-backend/shared/utils/cache"
	"backoffice-backend/shared/utils/metajson"
	"backoffice-backend/shared/utils/query"
)

type DictInput struct {
	Name   string         `json:"name"`
	Code   string         `json:"code"`
	Group  string         `json:"group"`
	Icon   string         `json:"icon"`
	Status *models.Status `json:"status"`
	Remark string         `json:"remark"`
}

type DictItemInput struct {
	DictID int64          `json:"dict_id"`
	Label  string         `json:"label"`
	Value  string         `json:"value"`
	Icon   string         `json:"icon"`
	Extra  map[string]any `json:"extra"`
	Status *models.Status `json:"status"`
	Remark string         `json:"remark"`
}

// SelectOption is one entry of a dictionary backed select box.
type SelectOption struct {
	Label    string         `json:"label"`
	Value    string         `json:"value"`
	Disabled bool           `json:"disabled"`
	Actived  bool           `json:"actived"`
	Icon     string         `json:"icon,omitempty"`
	SortNo   int            `json:"sortno"`
	Extra    map[string]any `json:"extra"`
}

type DictService struct {
	db    *gorm.DB
	cache Cache
}

func NewDictService(d Deps) *DictService {
	return &DictService{db: d.DB, cache: d.Cache}
}

func (s *DictService) invalidate(ctx context.Context, dictID int64) {
	if s.cache == nil {
		return
	}
	var codes []string
	err := s.db.WithContext(ctx).Unscoped().Model(&models.Dict{}).Where("id = ?", dictID).Pluck("code", &codes).Error
	pattern := cache.DictOptionsKey("*")
	if err == nil && len(codes) == 1 && codes[0] != "" {
		pattern = cache.DictOptionsKey(codes[0])
	}
	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("dict cache invalidation failed")
	}
}

func (s *DictService) GetDict(ctx context.Context, id int64) (*models.Dict, error) {
	return findRow[models.Dict](ctx, s.db, "dict", id)
}

func (s *DictService) GetItem(ctx context.Context, id int64) (*models.DictItem, error) {
	item, err := findRow[models.DictItem](ctx, s.db, "dict item", id)
	if err != nil {
		return nil, err
	}
	item.Extra = sanitizeJSON(item.Extra)
	return item, nil
}

func (s *DictService) ListDicts(ctx context.Context, params query.FilterParams) (query.PageResult[models.Dict], error) {
	q := s.db.WithContext(ctx).Model(&models.Dict{})
	q = query.ApplyFilters(q, params.Filters, map[string]string{"status": "status", "group": "group_name"})
	q = query.ApplySearch(q, params.Search, []string{"name"}, "code")
	page, err := query.Paginate[models.Dict](q, params, func(db *gorm.DB) *gorm.DB {
		return query.ApplySort(db, params.Sort, map[string]string{"name": "name", "code": "code", "sortno": "sortno"}, "sortno ASC, id ASC")
	})
	return page, errors.Wrap(err, "list dicts")
}

func (s *DictService) ListItems(ctx context.Context, dictID int64, params query.FilterParams) (query.PageResult[models.DictItem], error) {
	q := s.db.WithContext(ctx).Model(&models.DictItem{}).Where("dict_id = ?", dictID)
	q = query.ApplyFilters(q, params.Filters, map[string]string{"status": "status"})
	q = query.ApplySearch(q, params.Search, []string{"label"}, "value")
	page, err := query.Paginate[models.DictItem](q, params, func(db *gorm.DB) *gorm.DB {
		return query.ApplySort(db, params.Sort, map[string]string{"label": "label", "value": "value", "sortno": "sortno"}, "sortno ASC, id ASC")
	})
	if err != nil {
		return page, errors.Wrap(err, "list dict items")
	}
	for i := range page.Items {
		page.Items[i].Extra = sanitizeJSON(page.Items[i].Extra)
	}
	return page, nil
}

// maxSortNo returns the largest sortno matched by q, or -1.
func maxSortNo(q *gorm.DB) (int, error) {
	var top int
	if err := q.Select("COALESCE(MAX(sortno), -1)").Row().Scan(&top); err != nil {
		return 0, err
	}
	return top, nil
}

func (s *DictService) CreateDict(ctx context.Context, in DictInput) (*models.Dict, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	if in.Name == "" || in.Code == "" {
		return nil, apperr.BadRequest("dict name and code are required")
	}
	status := statusOrDefault(in.Status)
	if !status.Valid() {
		return nil, apperr.BadRequest("invalid status %d", status)
	}

	d := models.Dict{Name: in.Name, Code: in.Code, Group: in.Group, Icon: in.Icon, Status: status, Remark: in.Remark}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Unscoped().Model(&models.Dict{}).Where("code = ?", in.Code).Count(&count).Error; err != nil {
			return errors.Wrap(err, "check dict code")
		}
		if count > 0 {
			return apperr.Conflict("dict code %s already exists", in.Code)
		}
		top, err := maxSortNo(tx.Model(&models.Dict{}))
		if err != nil {
			return errors.Wrap(err, "max dict sortno")
		}
		d.SortNo = top + 1
		return apperr.FromDB(tx.Create(&d).Error, "dict code "+in.Code+" already exists")
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DictService) UpdateDict(ctx context.Context, id int64, in DictInput) (*models.Dict, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	if in.Name == "" || in.Code == "" {
		return nil, apperr.BadRequest("dict name and code are required")
	}
	cur, err := s.GetDict(ctx, id)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.Dict{}).
		Where("code = ? AND id <> ?", in.Code, id).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "check dict code")
	}
	if count > 0 {
		return nil, apperr.Conflict("dict code %s already exists", in.Code)
	}

	// Drop the entry of the old code before it changes.
	s.invalidate(ctx, id)
	fields := map[string]any{
		"name":       in.Name,
		"code":       in.Code,
		"group_name": in.Group,
		"icon":       in.Icon,
		"remark":     in.Remark,
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.BadRequest("invalid status %d", *in.Status)
		}
		fields["status"] = *in.Status
	}
	if err := s.db.WithContext(ctx).Model(cur).Updates(fields).Error; err != nil {
		return nil, errors.WithMessagef(apperr.FromDB(err, "dict code "+in.Code+" already exists"), "update dict %d", id)
	}
	s.invalidate(ctx, id)
	return s.GetDict(ctx, id)
}

func (s *DictService) SetDictSortNo(ctx context.Context, id int64, sortNo int) (*models.Dict, error) {
	d, err := s.GetDict(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(d).Update("sortno", sortNo).Error; err != nil {
		return nil, errors.Wrapf(err, "update dict %d sortno", id)
	}
	d.SortNo = sortNo
	return d, nil
}

func valueTaken(tx *gorm.DB, dictID int64, value string, exceptID int64) (bool, error) {
	var count int64
	err := tx.Unscoped().Model(&models.DictItem{}).
		Where("dict_id = ? AND value = ? AND id <> ?", dictID, value, exceptID).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check dict item value")
	}
	return count > 0, nil
}

func (s *DictService) CreateItem(ctx context.Context, in DictItemInput) (*models.DictItem, error) {
	in.Label = strings.TrimSpace(in.Label)
	in.Value = strings.TrimSpace(in.Value)
	if in.Label == "" || in.Value == "" {
		return nil, apperr.BadRequest("dict item label and value are required")
	}
	status := statusOrDefault(in.Status)
	if !status.Valid() {
		return nil, apperr.BadRequest("invalid status %d", status)
	}
	extra, err := encodeExtra(in.Extra)
	if err != nil {
		return nil, err
	}

	item := models.DictItem{
		DictID: in.DictID,
		Label:  in.Label,
		Value:  in.Value,
		Icon:   in.Icon,
		Extra:  extra,
		Status: status,
		Remark: in.Remark,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findRow[models.Dict](ctx, tx, "dict", in.DictID); err != nil {
			return err
		}
		taken, err := valueTaken(tx, in.DictID, in.Value, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("dict item %s-%s already exists", in.Label, in.Value)
		}
		top, err := maxSortNo(tx.Model(&models.DictItem{}).Where("dict_id = ?", in.DictID))
		if err != nil {
			return errors.Wrap(err, "max dict item sortno")
		}
		item.SortNo = top + 1
		return apperr.FromDB(tx.Create(&item).Error, "dict item value "+in.Value+" already exists")
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, in.DictID)
	return &item, nil
}

// UpdateItem rewrites label, value, icon, remark and status. Extra is kept
// when the input carries none.
func (s *DictService) UpdateItem(ctx context.Context, id int64, in DictItemInput) (*models.DictItem, error) {
	in.Label = strings.TrimSpace(in.Label)
	in.Value = strings.TrimSpace(in.Value)
	if in.Label == "" || in.Value == "" {
		return nil, apperr.BadRequest("dict item label and value are required")
	}
	cur, err := findRow[models.DictItem](ctx, s.db, "dict item", id)
	if err != nil {
		return nil, err
	}
	taken, err := valueTaken(s.db.WithContext(ctx), cur.DictID, in.Value, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("dict item value %s already exists", in.Value)
	}

	fields := map[string]any{
		"label":  in.Label,
		"value":  in.Value,
		"icon":   in.Icon,
		"remark": in.Remark,
	}
	if in.Extra != nil {
		extra, err := encodeExtra(in.Extra)
		if err != nil {
			return nil, err
		}
		fields["extra"] = extra
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.BadRequest("invalid status %d", *in.Status)
		}
		fields["status"] = *in.Status
	}
	if err := s.db.WithContext(ctx).Model(cur).Updates(fields).Error; err != nil {
		return nil, errors.WithMessagef(apperr.FromDB(err, "dict item value "+in.Value+" already exists"), "update dict item %d", id)
	}
	s.invalidate(ctx, cur.DictID)
	return s.GetItem(ctx, id)
}

func (s *DictService) SetItemSortNo(ctx context.Context, id int64, sortNo int) (*models.DictItem, error) {
	item, err := findRow[models.DictItem](ctx, s.db, "dict item", id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(item).Update("sortno", sortNo).Error; err != nil {
		return nil, errors.Wrapf(err, "update dict item %d sortno", id)
	}
	item.SortNo = sortNo
	s.invalidate(ctx, item.DictID)
	return item, nil
}

func (s *DictService) SetItemStatus(ctx context.Context, id int64, status models.Status) (*models.DictItem, error) {
	item, err := setStatus[models.DictItem](ctx, s.db, "dict item", id, status)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, item.DictID)
	return item, nil
}

// SetDefaultActived makes itemID the only actived item of its dict.
func (s *DictService) SetDefaultActived(ctx context.Context, itemID int64) (*models.DictItem, error) {
	var item *models.DictItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if item, err = findRow[models.DictItem](ctx, tx, "dict item", itemID); err != nil {
			return err
		}
		if err := tx.Model(&models.DictItem{}).Where("dict_id = ?", item.DictID).Update("actived", false).Error; err != nil {
			return errors.Wrap(err, "clear actived dict items")
		}
		if err := tx.Model(&models.DictItem{}).Where("id = ?", itemID).Update("actived", true).Error; err != nil {
			return errors.Wrapf(err, "activate dict item %d", itemID)
		}
		item.Actived = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, item.DictID)
	return item, nil
}

// SelectionOptions returns the items of the dict with code as select options.
func (s *DictService) SelectionOptions(ctx context.Context, dictCode string) ([]SelectOption, error) {
	dictCode = strings.TrimSpace(dictCode)
	if dictCode == "" {
		return nil, apperr.BadRequest("dict code is required")
	}
	key := cache.DictOptionsKey(dictCode)
	if s.cache != nil {
		var cached []SelectOption
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("dict cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	var dict models.Dict
	res := s.db.WithContext(ctx).Where("code = ?", dictCode).Limit(1).Find(&dict)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "load dict %s", dictCode)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("dict %s not found", dictCode)
	}

	var items []models.DictItem
	if err := s.db.WithContext(ctx).Where("dict_id = ?", dict.ID).Order("sortno ASC, id ASC").Find(&items).Error; err != nil {
		return nil, errors.Wrapf(err, "load dict %s items", dictCode)
	}

	opts := make([]SelectOption, 0, len(items))
	for _, it := range items {
		opts = append(opts, SelectOption{
			Label:    it.Label,
			Value:    it.Value,
			Disabled: it.Status == models.StatusForbidden,
			Actived:  it.Actived,
			Icon:     it.Icon,
			SortNo:   it.SortNo,
			Extra: metajson.Merge(metajson.ParseBytes(it.Extra), map[string]any{
				"dictCode": dictCode,
				"id":       it.ID,
				"sortno":   it.SortNo,
			}),
		})
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, opts, cache.DictOptionsTTL); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("dict cache write failed")
		}
	}
	return opts, nil
}
