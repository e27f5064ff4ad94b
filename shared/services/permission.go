package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/treestore"
	"backoffice-backend/shared/utils/metajson"
)

const (
	menuTree      = "menu"
	authGroupTree = "auth group"
)

type MenuInput struct {
	PID       int64          `json:"pid"`
	Title     string         `json:"title"`
	Code      string         `json:"code"`
	Path      string         `json:"path"`
	Component string         `json:"component"`
	Redirect  string         `json:"redirect"`
	Icon      string         `json:"icon"`
	Status    *models.Status `json:"status"`
	Meta      string         `json:"metajson"`
}

type MenuService struct {
	db     *gorm.DB
	tree   *treestore.Store[models.Menu, *models.Menu]
	events TreeEventPublisher
}

func NewMenuService(d Deps) *MenuService {
	return &MenuService{
		db:     d.DB,
		tree:   treestore.New[models.Menu](d.DB, treestore.Options{Name: menuTree, MaxDepth: d.MaxDepth}),
		events: d.events(),
	}
}

func menuOption(m *models.Menu) TreeOption {
	extra := metajson.Merge(metajson.Parse(m.MetaJSON), map[string]any{
		"path":      m.Path,
		"component": m.Component,
		"redirect":  m.Redirect,
		"icon":      m.Icon,
	})
	return TreeOption{
		ID:       m.ID,
		PID:      m.PID,
		Key:      m.Code,
		Label:    m.Title,
		Value:    m.Code,
		Disabled: m.Status == models.StatusForbidden,
		SortNo:   m.SortNo,
		Extra:    extra,
	}
}

// checkParent returns NotFound unless pid is the root sentinel or a live node.
func checkParent[T any, P treestore.NodePtr[T]](ctx context.Context, tree *treestore.Store[T, P], pid int64) error {
	if pid == treestore.RootPID {
		return nil
	}
	ok, err := tree.Exists(ctx, pid)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("parent %s %d not found", tree.Name(), pid)
	}
	return nil
}

// deleteLeaf soft deletes id unless it still has children.
func deleteLeaf[T any, P treestore.NodePtr[T]](ctx context.Context, db *gorm.DB, base *treestore.Store[T, P], id int64) (int64, error) {
	var pid int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := base.WithTx(tx)
		n, err := tree.Get(ctx, id)
		if err != nil {
			return err
		}
		has, err := tree.HasChildren(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return apperr.Conflict("%s %d has children", tree.Name(), id)
		}
		pid = P(n).GetPID()
		return errors.Wrapf(tx.Delete(new(T), id).Error, "delete %s %d", tree.Name(), id)
	})
	return pid, err
}

func (s *MenuService) Get(ctx context.Context, id int64) (*models.Menu, error) {
	return s.tree.Get(ctx, id)
}

func (s *MenuService) Create(ctx context.Context, in MenuInput) (*models.Menu, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Code = strings.TrimSpace(in.Code)
	if in.Title == "" || in.Code == "" {
		return nil, apperr.BadRequest("menu title and code are required")
	}
	status := statusOrDefault(in.Status)
	if !status.Valid() {
		return nil, apperr.BadRequest("invalid status %d", status)
	}
	m := models.Menu{
		TreeFields: models.TreeFields{PID: in.PID},
		Title:      in.Title,
		Code:       in.Code,
		Path:       in.Path,
		Component:  in.Component,
		Redirect:   in.Redirect,
		Icon:       in.Icon,
		Status:     status,
		MetaJSON:   in.Meta,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		if err := checkParent(ctx, tree, in.PID); err != nil {
			return err
		}
		next, err := tree.NextSortNo(ctx, in.PID)
		if err != nil {
			return err
		}
		m.SortNo = next
		return apperr.FromDB(tx.Create(&m).Error, "menu code "+in.Code+" already exists")
	})
	if err != nil {
		return nil, err
	}
	publish(s.events, menuTree, TreeActionCreated, m.ID, m.PID)
	return &m, nil
}

func (s *MenuService) Update(ctx context.Context, id int64, in MenuInput) (*models.Menu, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Code = strings.TrimSpace(in.Code)
	if in.Title == "" || in.Code == "" {
		return nil, apperr.BadRequest("menu title and code are required")
	}
	var updated *models.Menu
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		cur, err := tree.Get(ctx, id)
		if err != nil {
			return err
		}
		if cur.PID != in.PID {
			if _, err := tree.ReparentTx(ctx, tx, id, in.PID); err != nil {
				return err
			}
		}
		fields := map[string]any{
			"title":     in.Title,
			"code":      in.Code,
			"path":      in.Path,
			"component": in.Component,
			"redirect":  in.Redirect,
			"icon":      in.Icon,
			"metajson":  in.Meta,
		}
		if in.Status != nil {
			if !in.Status.Valid() {
				return apperr.BadRequest("invalid status %d", *in.Status)
			}
			fields["status"] = *in.Status
		}
		err = tx.Model(&models.Menu{}).Where("id = ?", id).Updates(fields).Error
		if err = apperr.FromDB(err, "menu code "+in.Code+" already exists"); err != nil {
			return errors.WithMessagef(err, "update menu %d", id)
		}
		updated, err = tree.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(s.events, menuTree, TreeActionUpdated, updated.ID, updated.PID)
	return updated, nil
}

func (s *MenuService) MoveUp(ctx context.Context, id int64) ([]models.Menu, error) {
	return s.reordered(s.tree.MoveUp(ctx, id))
}

func (s *MenuService) MoveDown(ctx context.Context, id int64) ([]models.Menu, error) {
	return s.reordered(s.tree.MoveDown(ctx, id))
}

func (s *MenuService) reordered(items []models.Menu, err error) ([]models.Menu, error) {
	if err != nil {
		return nil, err
	}
	for i := range items {
		publish(s.events, menuTree, TreeActionReordered, items[i].ID, items[i].PID)
	}
	return items, nil
}

func (s *MenuService) SetSortNo(ctx context.Context, id int64, sortNo int) (*models.Menu, error) {
	m, err := s.tree.SetOrder(ctx, id, sortNo)
	if err != nil {
		return nil, err
	}
	publish(s.events, menuTree, TreeActionReordered, m.ID, m.PID)
	return m, nil
}

func (s *MenuService) SetStatus(ctx context.Context, id int64, status models.Status) (*models.Menu, error) {
	m, err := setStatus[models.Menu](ctx, s.db, menuTree, id, status)
	if err != nil {
		return nil, err
	}
	publish(s.events, menuTree, TreeActionUpdated, m.ID, m.PID)
	return m, nil
}

func (s *MenuService) Delete(ctx context.Context, id int64) error {
	pid, err := deleteLeaf(ctx, s.db, s.tree, id)
	if err != nil {
		return err
	}
	publish(s.events, menuTree, TreeActionDeleted, id, pid)
	return nil
}

// Tree returns the menu forest below pid with metajson decoded into extra.
func (s *MenuService) Tree(ctx context.Context, pid int64) ([]*TreeOption, error) {
	forest, err := s.tree.Forest(ctx, pid)
	if err != nil {
		return nil, err
	}
	return buildOptions(forest, menuOption), nil
}

type AuthGroupInput struct {
	PID         int64          `json:"pid"`
	Groupname   string         `json:"groupname"`
	Status      *models.Status `json:"status"`
	Description string         `json:"description"`
}

type AuthGroupService struct {
	db     *gorm.DB
	tree   *treestore.Store[models.AuthGroup, *models.AuthGroup]
	events TreeEventPublisher
}

func NewAuthGroupService(d Deps) *AuthGroupService {
	return &AuthGroupService{
		db:     d.DB,
		tree:   treestore.New[models.AuthGroup](d.DB, treestore.Options{Name: authGroupTree, MaxDepth: d.MaxDepth}),
		events: d.events(),
	}
}

func authGroupOption(g *models.AuthGroup) TreeOption {
	return TreeOption{
		ID:       g.ID,
		PID:      g.PID,
		Key:      strconv.FormatInt(g.ID, 10),
		Label:    g.Groupname,
		Value:    g.Groupname,
		Disabled: g.Status == models.StatusForbidden,
		SortNo:   g.SortNo,
		Extra:    map[string]any{"description": g.Description},
	}
}

func (s *AuthGroupService) Get(ctx context.Context, id int64) (*models.AuthGroup, error) {
	return s.tree.Get(ctx, id)
}

func (s *AuthGroupService) Create(ctx context.Context, in AuthGroupInput) (*models.AuthGroup, error) {
	in.Groupname = strings.TrimSpace(in.Groupname)
	if in.Groupname == "" {
		return nil, apperr.BadRequest("group name is required")
	}
	status := statusOrDefault(in.Status)
	if !status.Valid() {
		return nil, apperr.BadRequest("invalid status %d", status)
	}
	g := models.AuthGroup{PID: in.PID, Groupname: in.Groupname, Status: status, Description: in.Description}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		if err := checkParent(ctx, tree, in.PID); err != nil {
			return err
		}
		next, err := tree.NextSortNo(ctx, in.PID)
		if err != nil {
			return err
		}
		g.SortNo = next
		return apperr.FromDB(tx.Create(&g).Error, "group "+in.Groupname+" already exists under the same parent")
	})
	if err != nil {
		return nil, err
	}
	publish(s.events, authGroupTree, TreeActionCreated, g.ID, g.PID)
	return &g, nil
}

func (s *AuthGroupService) Update(ctx context.Context, id int64, in AuthGroupInput) (*models.AuthGroup, error) {
	in.Groupname = strings.TrimSpace(in.Groupname)
	if in.Groupname == "" {
		return nil, apperr.BadRequest("group name is required")
	}
	var updated *models.AuthGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		cur, err := tree.Get(ctx, id)
		if err != nil {
			return err
		}
		if cur.PID != in.PID {
			if _, err := tree.ReparentTx(ctx, tx, id, in.PID); err != nil {
				return err
			}
		}
		fields := map[string]any{"groupname": in.Groupname, "description": in.Description}
		if in.Status != nil {
			if !in.Status.Valid() {
				return apperr.BadRequest("invalid status %d", *in.Status)
			}
			fields["status"] = *in.Status
		}
		err = tx.Model(&models.AuthGroup{}).Where("id = ?", id).Updates(fields).Error
		if err = apperr.FromDB(err, "group "+in.Groupname+" already exists under the same parent"); err != nil {
			return errors.WithMessagef(err, "update auth group %d", id)
		}
		updated, err = tree.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(s.events, authGroupTree, TreeActionUpdated, updated.ID, updated.PID)
	return updated, nil
}

func (s *AuthGroupService) MoveUp(ctx context.Context, id int64) ([]models.AuthGroup, error) {
	return s.reordered(s.tree.MoveUp(ctx, id))
}

func (s *AuthGroupService) MoveDown(ctx context.Context, id int64) ([]models.AuthGroup, error) {
	return s.reordered(s.tree.MoveDown(ctx, id))
}

func (s *AuthGroupService) reordered(items []models.AuthGroup, err error) ([]models.AuthGroup, error) {
	if err != nil {
		return nil, err
	}
	for i := range items {
		publish(s.events, authGroupTree, TreeActionReordered, items[i].ID, items[i].PID)
	}
	return items, nil
}

func (s *AuthGroupService) SetSortNo(ctx context.Context, id int64, sortNo int) (*models.AuthGroup, error) {
	g, err := s.tree.SetOrder(ctx, id, sortNo)
	if err != nil {
		return nil, err
	}
	publish(s.events, authGroupTree, TreeActionReordered, g.ID, g.PID)
	return g, nil
}

func (s *AuthGroupService) SetStatus(ctx context.Context, id int64, status models.Status) (*models.AuthGroup, error) {
	g, err := setStatus[models.AuthGroup](ctx, s.db, authGroupTree, id, status)
	if err != nil {
		return nil, err
	}
	publish(s.events, authGroupTree, TreeActionUpdated, g.ID, g.PID)
	return g, nil
}

func (s *AuthGroupService) Delete(ctx context.Context, id int64) error {
	pid, err := deleteLeaf(ctx, s.db, s.tree, id)
	if err != nil {
		return err
	}
	publish(s.events, authGroupTree, TreeActionDeleted, id, pid)
	return nil
}

func (s *AuthGroupService) Tree(ctx context.Context, pid int64) ([]*TreeOption, error) {
	forest, err := s.tree.Forest(ctx, pid)
	if err != nil {
		return nil, err
	}
	return buildOptions(forest, authGroupOption), nil
}
