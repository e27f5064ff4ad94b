package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/logger"
	"backoffice-backend/shared/treestore"
	"backoffice-backend/shared/utils/idgen"
	"backoffice-backend/shared/utils/query"
)

const categoryTree = "category"

const RootCategoryTitle = "Root"

type CategoryInput struct {
	PID         int64          `json:"pid"`
	Title       string         `json:"title"`
	RefUUID     *int           `json:"uuid"`
	Icon        string         `json:"icon"`
	Image       string         `json:"image"`
	Group       string         `json:"group"`
	Tag         string         `json:"tag"`
	Path        string         `json:"path"`
	URL         string         `json:"url"`
	RichContent string         `json:"richcontent"`
	Remark      string         `json:"remark"`
	Status      *models.Status `json:"status"`
}

type CategoryService struct {
	db      *gorm.DB
	tree    *treestore.Store[models.Category, *models.Category]
	objects ObjectStore
	events  TreeEventPublisher
}

func NewCategoryService(d Deps) *CategoryService {
	return &CategoryService{
		db:      d.DB,
		tree:    treestore.New[models.Category](d.DB, treestore.Options{Name: categoryTree, MaxDepth: d.MaxDepth}),
		objects: d.Objects,
		events:  d.events(),
	}
}

func categoryOption(c *models.Category) TreeOption {
	return TreeOption{
		ID:       c.ID,
		PID:      c.PID,
		Key:      c.Cateno,
		Label:    c.Title,
		Value:    c.Cateno,
		Disabled: c.Status == models.StatusForbidden,
		SortNo:   c.SortNo,
		Extra: map[string]any{
			"icon":  c.Icon,
			"image": c.Image,
			"group": c.Group,
			"tag":   c.Tag,
			"path":  c.Path,
			"url":   c.URL,
		},
	}
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*models.Category, error) {
	return s.tree.Get(ctx, id)
}

var categorySortFields = map[string]string{
	"title":      "title",
	"sortno":     "sortno",
	"created_at": "created_at",
}

// List pages categories matching keywords in title and tag, or as a prefix of group.
func (s *CategoryService) List(ctx context.Context, params query.FilterParams) (query.PageResult[models.Category], error) {
	return s.list(ctx, s.db.WithContext(ctx).Model(&models.Category{}), params)
}

// SubList is List restricted to the children of pid.
func (s *CategoryService) SubList(ctx context.Context, pid int64, params query.FilterParams) (query.PageResult[models.Category], error) {
	return s.list(ctx, s.db.WithContext(ctx).Model(&models.Category{}).Where("pid = ?", pid), params)
}

func (s *CategoryService) list(ctx context.Context, q *gorm.DB, params query.FilterParams) (query.PageResult[models.Category], error) {
	q = query.ApplyFilters(q, params.Filters, map[string]string{"status": "status", "group": "group_name", "tag": "tag"})
	q = query.ApplySearch(q, params.Search, []string{"title", "tag"}, "group_name")
	page, err := query.Paginate[models.Category](q, params, func(db *gorm.DB) *gorm.DB {
		return query.ApplySort(db, params.Sort, categorySortFields, "sortno ASC, title ASC")
	})
	if err != nil {
		return page, errors.Wrap(err, "list categories")
	}
	return page, nil
}

func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*models.Category, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.BadRequest("title is required")
	}
	status := statusOrDefault(in.Status)
	if !status.Valid() {
		return nil, apperr.BadRequest("invalid status %d", status)
	}
	cateno, err := idgen.Cateno()
	if err != nil {
		return nil, errors.Wrap(err, "generate cateno")
	}
	refUUID := models.DefaultCategoryUUID
	if in.RefUUID != nil {
		refUUID = *in.RefUUID
	}

	c := models.Category{
		TreeFields:  models.TreeFields{PID: in.PID},
		Cateno:      cateno,
		Title:       in.Title,
		RefUUID:     refUUID,
		Icon:        in.Icon,
		Image:       in.Image,
		Group:       in.Group,
		Tag:         in.Tag,
		Path:        in.Path,
		URL:         in.URL,
		RichContent: in.RichContent,
		Remark:      in.Remark,
		Status:      status,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		if in.PID != treestore.RootPID {
			ok, err := tree.Exists(ctx, in.PID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFound("parent category %d not found", in.PID)
			}
		}
		next, err := tree.NextSortNo(ctx, in.PID)
		if err != nil {
			return err
		}
		c.SortNo = next
		return apperr.FromDB(tx.Create(&c).Error, "category number already exists")
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{"id": c.ID, "cateno": c.Cateno, "pid": c.PID}).Info("category created")
	publish(s.events, categoryTree, TreeActionCreated, c.ID, c.PID)
	return &c, nil
}

// Update overwrites the editable fields of id. A changed pid is applied
// through the tree store so cycles are rejected.
func (s *CategoryService) Update(ctx context.Context, id int64, in CategoryInput) (*models.Category, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperr.BadRequest("title is required")
	}
	var moved bool
	var updated *models.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		cur, err := tree.Get(ctx, id)
		if err != nil {
			return err
		}
		if in.PID != cur.PID {
			if _, err := tree.ReparentTx(ctx, tx, id, in.PID); err != nil {
				return err
			}
			moved = true
		}

		fields := map[string]any{
			"title":       in.Title,
			"icon":        in.Icon,
			"image":       in.Image,
			"group_name":  in.Group,
			"tag":         in.Tag,
			"path":        in.Path,
			"url":         in.URL,
			"richcontent": in.RichContent,
			"remark":      in.Remark,
		}
		if in.RefUUID != nil {
			fields["uuid"] = *in.RefUUID
		}
		if in.Status != nil {
			if !in.Status.Valid() {
				return apperr.BadRequest("invalid status %d", *in.Status)
			}
			fields["status"] = *in.Status
		}
		if err := tx.Model(&models.Category{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return errors.Wrapf(err, "update category %d", id)
		}
		updated, err = tree.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	action := TreeActionUpdated
	if moved {
		action = TreeActionMoved
	}
	publish(s.events, categoryTree, action, updated.ID, updated.PID)
	return updated, nil
}

func (s *CategoryService) SetSortNo(ctx context.Context, id int64, sortNo int) (*models.Category, error) {
	c, err := s.tree.SetOrder(ctx, id, sortNo)
	if err != nil {
		return nil, err
	}
	publish(s.events, categoryTree, TreeActionReordered, c.ID, c.PID)
	return c, nil
}

func (s *CategoryService) SetStatus(ctx context.Context, id int64, status models.Status) (*models.Category, error) {
	c, err := setStatus[models.Category](ctx, s.db, categoryTree, id, status)
	if err != nil {
		return nil, err
	}
	publish(s.events, categoryTree, TreeActionUpdated, c.ID, c.PID)
	return c, nil
}

func (s *CategoryService) MoveUp(ctx context.Context, id int64) ([]models.Category, error) {
	return s.reordered(s.tree.MoveUp(ctx, id))
}

func (s *CategoryService) MoveDown(ctx context.Context, id int64) ([]models.Category, error) {
	return s.reordered(s.tree.MoveDown(ctx, id))
}

func (s *CategoryService) reordered(items []models.Category, err error) ([]models.Category, error) {
	if err != nil {
		return nil, err
	}
	for i := range items {
		publish(s.events, categoryTree, TreeActionReordered, items[i].ID, items[i].PID)
	}
	return items, nil
}

// Delete soft deletes a category without children.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	var pid int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		c, err := tree.Get(ctx, id)
		if err != nil {
			return err
		}
		has, err := tree.HasChildren(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return apperr.Conflict("category %d has children", id)
		}
		pid = c.PID
		return errors.Wrapf(tx.Delete(&models.Category{}, id).Error, "delete category %d", id)
	})
	if err != nil {
		return err
	}
	publish(s.events, categoryTree, TreeActionDeleted, id, pid)
	return nil
}

// TreeNodes returns the forest below rootPID.
func (s *CategoryService) TreeNodes(ctx context.Context, rootPID int64) ([]*TreeOption, error) {
	forest, err := s.tree.Forest(ctx, rootPID)
	if err != nil {
		return nil, err
	}
	return buildOptions(forest, categoryOption), nil
}

func (s *CategoryService) SubTree(ctx context.Context, id int64) (*TreeOption, error) {
	root, err := s.tree.Subtree(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildOptions([]*treestore.TreeNode[models.Category]{root}, categoryOption)[0], nil
}

// Chain returns the path from the top level category down to id.
func (s *CategoryService) Chain(ctx context.Context, id int64) ([]TreeOption, error) {
	items, err := s.tree.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	return flatOptions(items, categoryOption), nil
}

// InitRoot creates the root category when no top level category exists.
func (s *CategoryService) InitRoot(ctx context.Context) (*models.Category, error) {
	var root models.Category
	res := s.db.WithContext(ctx).Where("pid = ?", treestore.RootPID).Order("sortno ASC, id ASC").Limit(1).Find(&root)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "load root category")
	}
	if res.RowsAffected > 0 {
		return &root, nil
	}
	return s.Create(ctx, CategoryInput{PID: treestore.RootPID, Title: RootCategoryTitle})
}

// UploadImage stores the image in the object store and points the category at it.
func (s *CategoryService) UploadImage(ctx context.Context, id int64, fileName string, r io.Reader, size int64, contentType string) (*models.Category, error) {
	if s.objects == nil {
		return nil, errors.New("object storage is not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.BadRequest("unsupported content type %q", contentType)
	}
	c, err := s.tree.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := c.Image
	url, err := s.objects.Put(ctx, fmt.Sprintf("categories/%d", id), fileName, r, size, contentType)
	if err != nil {
		return nil, errors.Wrapf(err, "upload image for category %d", id)
	}
	if err := s.db.WithContext(ctx).Model(c).Update("image", url).Error; err != nil {
		return nil, errors.Wrapf(err, "update category %d image", id)
	}
	if previous != "" && previous != url {
		if err := s.objects.Remove(ctx, previous); err != nil {
			logger.FromContext(ctx).WithError(err).WithField("url", previous).Warn("failed to remove replaced category image")
		}
	}
	c.Image = url
	publish(s.events, categoryTree, TreeActionUpdated, c.ID, c.PID)
	return c, nil
}
