package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/utils/query"
)

type RoleInput struct {
	Name        string         `json:"name"`
	Group       string         `json:"group"`
	Description string         `json:"description"`
	Status      *models.Status `json:"status"`
}

type RoleService struct {
	db *gorm.DB
}

func NewRoleService(d Deps) *RoleService {
	return &RoleService{db: d.DB}
}

func (s *RoleService) Get(ctx context.Context, id int64) (*models.Role, error) {
	return findRow[models.Role](ctx, s.db, "role", id)
}

// List orders roles by name. Soft deleted roles are included when
// params.WithDeleted is set.
func (s *RoleService) List(ctx context.Context, params query.FilterParams) (query.PageResult[models.Role], error) {
	q := s.db.WithContext(ctx).Model(&models.Role{})
	if params.WithDeleted {
		q = q.Unscoped()
	}
	q = query.ApplyFilters(q, params.Filters, map[string]string{"status": "status", "group": "group_name"})
	q = query.ApplySearch(q, params.Search, []string{"name"})
	page, err := query.Paginate[models.Role](q, params, func(db *gorm.DB) *gorm.DB {
		return query.ApplySort(db, params.Sort, map[string]string{"name": "name", "created_at": "created_at"}, "name ASC, id ASC")
	})
	return page, errors.Wrap(err, "list roles")
}

func (s *RoleService) Create(ctx context.Context, in RoleInput) (*models.Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.BadRequest("role name is required")
	}
	status := statusOrDefault(in.Status)
	if !status.Valid() {
		return nil, apperr.BadRequest("invalid status %d", status)
	}
	role := models.Role{Name: in.Name, Group: in.Group, Description: in.Description, Status: status}
	if err := s.db.WithContext(ctx).Create(&role).Error; err != nil {
		return nil, errors.WithMessage(apperr.FromDB(err, "role "+in.Name+" already exists"), "create role")
	}
	return &role, nil
}

// Update keeps the current name when in.Name is blank.
func (s *RoleService) Update(ctx context.Context, id int64, in RoleInput) (*models.Role, error) {
	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = role.Name
	}
	fields := map[string]any{
		"name":        name,
		"group_name":  in.Group,
		"description": in.Description,
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.BadRequest("invalid status %d", *in.Status)
		}
		fields["status"] = *in.Status
	}
	if err := s.db.WithContext(ctx).Model(role).Updates(fields).Error; err != nil {
		return nil, errors.WithMessagef(apperr.FromDB(err, "role "+name+" already exists"), "update role %d", id)
	}
	return s.Get(ctx, id)
}

func (s *RoleService) SetStatus(ctx context.Context, id int64, status models.Status) (*models.Role, error) {
	return setStatus[models.Role](ctx, s.db, "role", id, status)
}

func (s *RoleService) SetGroup(ctx context.Context, id int64, group string) (*models.Role, error) {
	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(role).Update("group_name", group).Error; err != nil {
		return nil, errors.Wrapf(err, "update role %d group", id)
	}
	role.Group = group
	return role, nil
}

// SetDefault marks id as the default role of its group and clears the flag
// on every other role of that group.
func (s *RoleService) SetDefault(ctx context.Context, id int64) (*models.Role, error) {
	var role *models.Role
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if role, err = findRow[models.Role](ctx, tx, "role", id); err != nil {
			return err
		}
		if err := tx.Model(&models.Role{}).Where("group_name = ? AND id <> ?", role.Group, id).
			Update("is_default", false).Error; err != nil {
			return errors.Wrap(err, "clear default roles")
		}
		if err := tx.Model(&models.Role{}).Where("id = ?", id).Update("is_default", true).Error; err != nil {
			return errors.Wrapf(err, "set role %d default", id)
		}
		role.IsDefault = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (s *RoleService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return errors.Wrapf(s.db.WithContext(ctx).Delete(&models.Role{}, id).Error, "delete role %d", id)
}
