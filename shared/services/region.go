package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/logger"
	"backoffice-backend/shared/treestore"
	"backoffice-backend/shared/utils/cache"
	"backoffice-backend/shared/utils/metajson"
	"backoffice-backend/shared/utils/query"
)

const regionTree = "region"

type RegionInput struct {
	PID    int64          `json:"pid"`
	Name   string         `json:"name"`
	Code   string         `json:"code"`
	Value  string         `json:"value"`
	Tag    string         `json:"tag"`
	Status *models.Status `json:"status"`
	Extra  map[string]any `json:"extra"`
	Remark string         `json:"remark"`
}

// RegionPatch updates only the fields that are set.
type RegionPatch struct {
	Name   *string        `json:"name"`
	Code   *string        `json:"code"`
	Value  *string        `json:"value"`
	Tag    *string        `json:"tag"`
	Extra  map[string]any `json:"extra"`
	Remark *string        `json:"remark"`
}

type RegionService struct {
	db     *gorm.DB
	tree   *treestore.Store[models.Region, *models.Region]
	cache  Cache
	events TreeEventPublisher
}

func NewRegionService(d Deps) *RegionService {
	return &RegionService{
		db:     d.DB,
		tree:   treestore.New[models.Region](d.DB, treestore.Options{Name: regionTree, MaxDepth: d.MaxDepth}),
		cache:  d.Cache,
		events: d.events(),
	}
}

func regionOption(r *models.Region) TreeOption {
	value := r.Value
	if value == "" {
		value = r.Code
	}
	return TreeOption{
		ID:       r.ID,
		PID:      r.PID,
		Key:      r.Code,
		Label:    r.Name,
		Value:    value,
		Disabled: r.Status == models.StatusForbidden,
		SortNo:   r.SortNo,
		Extra:    metajson.Merge(metajson.ParseBytes(r.Extra), map[string]any{"code": r.Code, "tag": r.Tag}),
	}
}

// sanitizeJSON drops column content that is not a JSON document.
func sanitizeJSON(raw datatypes.JSON) datatypes.JSON {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return raw
}

func encodeExtra(extra map[string]any) (datatypes.JSON, error) {
	if extra == nil {
		return nil, nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, apperr.BadRequest("extra is not serializable: %v", err)
	}
	return datatypes.JSON(b), nil
}

func (s *RegionService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "region:level:*"); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("region cache invalidation failed")
	}
}

func (s *RegionService) changed(ctx context.Context, action string, r *models.Region) {
	s.invalidate(ctx)
	publish(s.events, regionTree, action, r.ID, r.PID)
}

func (s *RegionService) Get(ctx context.Context, id int64) (*models.Region, error) {
	r, err := s.tree.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Extra = sanitizeJSON(r.Extra)
	return r, nil
}

var regionSortFields = map[string]string{
	"name":   "name",
	"code":   "code",
	"sortno": "sortno",
}

// SubList pages the children of pid matching keywords in name, code or value.
func (s *RegionService) SubList(ctx context.Context, pid int64, params query.FilterParams) (query.PageResult[models.Region], error) {
	q := s.db.WithContext(ctx).Model(&models.Region{}).Where("pid = ?", pid)
	q = query.ApplyFilters(q, params.Filters, map[string]string{"status": "status", "tag": "tag"})
	q = query.ApplySearch(q, params.Search, []string{"name", "value"}, "code")
	page, err := query.Paginate[models.Region](q, params, func(db *gorm.DB) *gorm.DB {
		return query.ApplySort(db, params.Sort, regionSortFields, "sortno ASC, id ASC")
	})
	if err != nil {
		return page, errors.Wrap(err, "list regions")
	}
	for i := range page.Items {
		page.Items[i].Extra = sanitizeJSON(page.Items[i].Extra)
	}
	return page, nil
}

// LevelTreeNodes returns the enabled children of pid, served from cache when possible.
func (s *RegionService) LevelTreeNodes(ctx context.Context, pid int64) ([]TreeOption, error) {
	key := cache.RegionLevelKey(pid)
	if s.cache != nil {
		var cached []TreeOption
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("region cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	tree := s.tree.WithScope(normalOnly)
	items, err := tree.Children(ctx, pid)
	if err != nil {
		return nil, err
	}
	opts, err := levelOptions(ctx, tree, items, regionOption)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, opts, cache.RegionLevelTTL); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("region cache write failed")
		}
	}
	return opts, nil
}

// LoadAll returns every region below pid as a forest.
func (s *RegionService) LoadAll(ctx context.Context, pid int64) ([]*TreeOption, error) {
	forest, err := s.tree.Forest(ctx, pid)
	if err != nil {
		return nil, err
	}
	return buildOptions(forest, regionOption), nil
}

func (s *RegionService) Create(ctx context.Context, in RegionInput) (*models.Region, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	if in.Name == "" || in.Code == "" {
		return nil, apperr.BadRequest("region name and code are required")
	}
	status := statusOrDefault(in.Status)
	if !status.Valid() {
		return nil, apperr.BadRequest("invalid status %d", status)
	}
	extra, err := encodeExtra(in.Extra)
	if err != nil {
		return nil, err
	}

	r := models.Region{
		PID:    in.PID,
		Name:   in.Name,
		Code:   in.Code,
		Value:  in.Value,
		Tag:    in.Tag,
		Status: status,
		Extra:  extra,
		Remark: in.Remark,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		if in.PID != treestore.RootPID {
			ok, err := tree.Exists(ctx, in.PID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFound("parent region %d not found", in.PID)
			}
		}
		next, err := tree.NextSortNo(ctx, in.PID)
		if err != nil {
			return err
		}
		r.SortNo = next
		return apperr.FromDB(tx.Create(&r).Error, "region code "+in.Code+" already exists")
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, TreeActionCreated, &r)
	return &r, nil
}

func (s *RegionService) UpdateSome(ctx context.Context, id int64, patch RegionPatch) (*models.Region, error) {
	r, err := findRow[models.Region](ctx, s.db, regionTree, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, apperr.BadRequest("region name is required")
		}
		fields["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Code != nil {
		if strings.TrimSpace(*patch.Code) == "" {
			return nil, apperr.BadRequest("region code is required")
		}
		fields["code"] = strings.TrimSpace(*patch.Code)
	}
	if patch.Value != nil {
		fields["value"] = *patch.Value
	}
	if patch.Tag != nil {
		fields["tag"] = *patch.Tag
	}
	if patch.Remark != nil {
		fields["remark"] = *patch.Remark
	}
	if patch.Extra != nil {
		extra, err := encodeExtra(patch.Extra)
		if err != nil {
			return nil, err
		}
		fields["extra"] = extra
	}
	if len(fields) > 0 {
		err := s.db.WithContext(ctx).Model(&models.Region{}).Where("id = ?", id).Updates(fields).Error
		if err = apperr.FromDB(err, "region code already exists under the same parent"); err != nil {
			return nil, errors.WithMessagef(err, "update region %d", id)
		}
	}
	s.changed(ctx, TreeActionUpdated, r)
	return s.Get(ctx, id)
}

func (s *RegionService) SetSortNo(ctx context.Context, id int64, sortNo int) (*models.Region, error) {
	if id <= 0 {
		return nil, apperr.BadRequest("region id is required")
	}
	r, err := s.tree.SetOrder(ctx, id, sortNo)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, TreeActionReordered, r)
	return r, nil
}

func (s *RegionService) SetStatus(ctx context.Context, id int64, status models.Status) (*models.Region, error) {
	r, err := setStatus[models.Region](ctx, s.db, regionTree, id, status)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, TreeActionUpdated, r)
	return r, nil
}

func (s *RegionService) MoveUp(ctx context.Context, id int64) ([]models.Region, error) {
	items, err := s.tree.MoveUp(ctx, id)
	return s.reordered(ctx, items, err)
}

func (s *RegionService) MoveDown(ctx context.Context, id int64) ([]models.Region, error) {
	items, err := s.tree.MoveDown(ctx, id)
	return s.reordered(ctx, items, err)
}

func (s *RegionService) reordered(ctx context.Context, items []models.Region, err error) ([]models.Region, error) {
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.changed(ctx, TreeActionReordered, &items[i])
	}
	return items, nil
}

// Delete soft deletes a region without children.
func (s *RegionService) Delete(ctx context.Context, id int64) error {
	var r *models.Region
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		var err error
		if r, err = tree.Get(ctx, id); err != nil {
			return err
		}
		has, err := tree.HasChildren(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return apperr.Conflict("region %d has children", id)
		}
		return errors.Wrapf(tx.Delete(&models.Region{}, id).Error, "delete region %d", id)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, TreeActionDeleted, r)
	return nil
}

func (s *RegionService) Chain(ctx context.Context, id int64) ([]TreeOption, error) {
	items, err := s.tree.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	return flatOptions(items, regionOption), nil
}
