package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/logger"
	"backoffice-backend/shared/treestore"
	"backoffice-backend/shared/utils/query"
)

const organizationTree = "organization"

const (
	RootOrganizationName      = "Group Headquarters"
	RootOrganizationShortName = "GHQ"
)

type OrganizationInput struct {
	PID         int64          `json:"pid"`
	Name        string         `json:"name"`
	Code        string         `json:"code"`
	ShortName   string         `json:"short_name"`
	Icon        string         `json:"icon"`
	Contact     string         `json:"contact"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	Description string         `json:"description"`
	Status      *models.Status `json:"status"`
	Locking     bool           `json:"locking"`
}

type OrganizationService struct {
	db     *gorm.DB
	tree   *treestore.Store[models.Organization, *models.Organization]
	events TreeEventPublisher
}

func NewOrganizationService(d Deps) *OrganizationService {
	return &OrganizationService{
		db:     d.DB,
		tree:   treestore.New[models.Organization](d.DB, treestore.Options{Name: organizationTree, MaxDepth: d.MaxDepth}),
		events: d.events(),
	}
}

func organizationOption(o *models.Organization) TreeOption {
	return TreeOption{
		ID:       o.ID,
		PID:      o.PID,
		Key:      strconv.FormatInt(o.ID, 10),
		Label:    o.Name,
		Value:    o.Orgno,
		Disabled: o.Status != models.StatusNormal || o.Locking,
		SortNo:   o.SortNo,
		Extra: map[string]any{
			"code":      o.Code,
			"shortName": o.ShortName,
			"icon":      o.Icon,
			"level":     o.Level,
			"locking":   o.Locking,
			"orgno":     o.Orgno,
		},
	}
}

func codeWidth(level int) int {
	if level <= 1 {
		return models.OrgRootCodeLen
	}
	return models.OrgCodeLen
}

// BuildOrgno joins the parent path body with code and right pads it to a
// full organization number.
func BuildOrgno(parent *models.Organization, code string) string {
	body := code
	if parent != nil {
		body = parent.PathBody() + code
	}
	if len(body) < models.OrgnoBodyLength {
		body += strings.Repeat("0", models.OrgnoBodyLength-len(body))
	}
	return models.OrgnoPrefix + body[:models.OrgnoBodyLength]
}

// normalizeCode left pads a numeric code to the width of level.
func normalizeCode(code string, level int) (string, error) {
	width := codeWidth(level)
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return "", apperr.BadRequest("organization code %q must be a positive number", code)
	}
	if len(code) > width && len(strings.TrimLeft(code, "0")) > width {
		return "", apperr.BadRequest("organization code %q is longer than %d digits", code, width)
	}
	return fmt.Sprintf("%0*d", width, n), nil
}

// nextCode returns max(code)+1 under pid, soft deleted rows included so
// their orgno is never reissued. exceptID is left out of the scan.
func nextCode(tx *gorm.DB, pid int64, level int, exceptID int64) (string, error) {
	var codes []string
	err := tx.Unscoped().Model(&models.Organization{}).
		Where("pid = ? AND id <> ?", pid, exceptID).Pluck("code", &codes).Error
	if err != nil {
		return "", errors.Wrapf(err, "load organization codes under %d", pid)
	}
	top := 0
	for _, c := range codes {
		if n, err := strconv.Atoi(c); err == nil && n > top {
			top = n
		}
	}
	width := codeWidth(level)
	next := fmt.Sprintf("%0*d", width, top+1)
	if len(next) > width {
		return "", apperr.Conflict("no organization code left under %d", pid)
	}
	return next, nil
}

func codeTaken(tx *gorm.DB, pid int64, code string, exceptID int64) (bool, error) {
	var count int64
	err := tx.Unscoped().Model(&models.Organization{}).
		Where("pid = ? AND code = ? AND id <> ?", pid, code, exceptID).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check organization code")
	}
	return count > 0, nil
}

// loadParent returns nil for the root sentinel.
func (s *OrganizationService) loadParent(ctx context.Context, tree *treestore.Store[models.Organization, *models.Organization], pid int64) (*models.Organization, error) {
	if pid == treestore.RootPID {
		return nil, nil
	}
	parent, err := tree.Get(ctx, pid)
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFound("parent organization %d not found", pid)
	}
	return parent, err
}

func levelUnder(parent *models.Organization) int {
	if parent == nil {
		return 1
	}
	return parent.Level + 1
}

func (s *OrganizationService) Get(ctx context.Context, id int64) (*models.Organization, error) {
	return s.tree.Get(ctx, id)
}

func (s *OrganizationService) Create(ctx context.Context, in OrganizationInput) (*models.Organization, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	if in.Name == "" {
		return nil, apperr.BadRequest("organization name is required")
	}
	status := statusOrDefault(in.Status)
	if !status.Valid() {
		return nil, apperr.BadRequest("invalid status %d", status)
	}

	org := models.Organization{
		TreeFields:  models.TreeFields{PID: in.PID},
		Name:        in.Name,
		ShortName:   in.ShortName,
		Icon:        in.Icon,
		Contact:     in.Contact,
		Email:       in.Email,
		Phone:       in.Phone,
		Description: in.Description,
		Status:      status,
		Locking:     in.Locking,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		parent, err := s.loadParent(ctx, tree, in.PID)
		if err != nil {
			return err
		}
		org.Level = levelUnder(parent)
		if org.Level > models.OrgMaxLevel {
			return apperr.BadRequest("organization depth cannot exceed %d levels", models.OrgMaxLevel)
		}

		if in.Code == "" {
			org.Code, err = nextCode(tx, in.PID, org.Level, 0)
		} else {
			org.Code, err = normalizeCode(in.Code, org.Level)
		}
		if err != nil {
			return err
		}
		taken, err := codeTaken(tx, in.PID, org.Code, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("organization code %s already exists", org.Code)
		}

		org.Orgno = BuildOrgno(parent, org.Code)
		if org.SortNo, err = tree.NextSortNo(ctx, in.PID); err != nil {
			return err
		}
		return apperr.FromDB(tx.Create(&org).Error, fmt.Sprintf("organization %s already exists", org.Name))
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).WithFields(logrus.Fields{"id": org.ID, "orgno": org.Orgno, "org_level": org.Level}).Info("organization created")
	publish(s.events, organizationTree, TreeActionCreated, org.ID, org.PID)
	return &org, nil
}

// Update changes the descriptive fields. Use Move to change the parent.
func (s *OrganizationService) Update(ctx context.Context, id int64, in OrganizationInput) (*models.Organization, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperr.BadRequest("organization name is required")
	}
	org, err := s.tree.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(org).Updates(map[string]any{
		"name":        in.Name,
		"short_name":  in.ShortName,
		"icon":        in.Icon,
		"contact":     in.Contact,
		"email":       in.Email,
		"phone":       in.Phone,
		"description": in.Description,
	}).Error
	if err = apperr.FromDB(err, fmt.Sprintf("organization %s already exists", in.Name)); err != nil {
		return nil, errors.WithMessagef(err, "update organization %d", id)
	}
	publish(s.events, organizationTree, TreeActionUpdated, org.ID, org.PID)
	return s.tree.Get(ctx, id)
}

// Move reparents id under newPID and rewrites code, level and orgno of the
// node and every descendant in one transaction.
func (s *OrganizationService) Move(ctx context.Context, id, newPID int64) (*models.Organization, error) {
	var moved *models.Organization
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		cur, err := tree.Get(ctx, id)
		if err != nil {
			return err
		}
		if cur.PID == newPID {
			moved = cur
			return nil
		}
		parent, err := s.loadParent(ctx, tree, newPID)
		if err != nil {
			return err
		}
		if _, err := tree.ReparentTx(ctx, tx, id, newPID); err != nil {
			return err
		}
		descendants, err := tree.Descendants(ctx, id)
		if err != nil {
			return err
		}

		level := levelUnder(parent)
		deepest := cur.Level
		for i := range descendants {
			if descendants[i].Level > deepest {
				deepest = descendants[i].Level
			}
		}
		if level+deepest-cur.Level > models.OrgMaxLevel {
			return apperr.BadRequest("organization depth cannot exceed %d levels", models.OrgMaxLevel)
		}

		code, err := nextCode(tx, newPID, level, id)
		if err != nil {
			return err
		}

		cur.PID, cur.Code, cur.Level = newPID, code, level
		cur.Orgno = BuildOrgno(parent, code)
		if err := s.rewritePath(tx, cur); err != nil {
			return err
		}

		placed := map[int64]*models.Organization{cur.ID: cur}
		for i := range descendants {
			d := &descendants[i]
			p := placed[d.PID]
			d.Level = p.Level + 1
			d.Orgno = BuildOrgno(p, d.Code)
			if err := s.rewritePath(tx, d); err != nil {
				return err
			}
			placed[d.ID] = d
		}
		moved, err = tree.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(s.events, organizationTree, TreeActionMoved, moved.ID, moved.PID)
	return moved, nil
}

func (s *OrganizationService) rewritePath(tx *gorm.DB, o *models.Organization) error {
	err := tx.Model(&models.Organization{}).Where("id = ?", o.ID).
		Updates(map[string]any{"code": o.Code, "level": o.Level, "orgno": o.Orgno}).Error
	return errors.Wrapf(apperr.FromDB(err, "organization number collision"), "rewrite organization %d", o.ID)
}

func (s *OrganizationService) MoveUp(ctx context.Context, id int64) ([]models.Organization, error) {
	return s.reordered(s.tree.MoveUp(ctx, id))
}

func (s *OrganizationService) MoveDown(ctx context.Context, id int64) ([]models.Organization, error) {
	return s.reordered(s.tree.MoveDown(ctx, id))
}

func (s *OrganizationService) reordered(items []models.Organization, err error) ([]models.Organization, error) {
	if err != nil {
		return nil, err
	}
	for i := range items {
		publish(s.events, organizationTree, TreeActionReordered, items[i].ID, items[i].PID)
	}
	return items, nil
}

func (s *OrganizationService) SetSortNo(ctx context.Context, id int64, sortNo int) (*models.Organization, error) {
	o, err := s.tree.SetOrder(ctx, id, sortNo)
	if err != nil {
		return nil, err
	}
	publish(s.events, organizationTree, TreeActionReordered, o.ID, o.PID)
	return o, nil
}

func (s *OrganizationService) SetStatus(ctx context.Context, id int64, status models.Status) (*models.Organization, error) {
	o, err := setStatus[models.Organization](ctx, s.db, organizationTree, id, status)
	if err != nil {
		return nil, err
	}
	publish(s.events, organizationTree, TreeActionUpdated, o.ID, o.PID)
	return o, nil
}

// Delete soft deletes an unlocked organization without children.
func (s *OrganizationService) Delete(ctx context.Context, id int64) error {
	var pid int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tree := s.tree.WithTx(tx)
		o, err := tree.Get(ctx, id)
		if err != nil {
			return err
		}
		if o.Locking {
			return apperr.Conflict("organization %d is locked", id)
		}
		has, err := tree.HasChildren(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return apperr.Conflict("organization %d has children", id)
		}
		pid = o.PID
		return errors.Wrapf(tx.Delete(&models.Organization{}, id).Error, "delete organization %d", id)
	})
	if err != nil {
		return err
	}
	publish(s.events, organizationTree, TreeActionDeleted, id, pid)
	return nil
}

// TreeNodes returns the subtree rooted at rootID.
func (s *OrganizationService) TreeNodes(ctx context.Context, rootID int64) (*TreeOption, error) {
	root, err := s.tree.Subtree(ctx, rootID)
	if err != nil {
		return nil, err
	}
	return buildOptions([]*treestore.TreeNode[models.Organization]{root}, organizationOption)[0], nil
}

// SelectionTree returns every organization below pid as a forest.
func (s *OrganizationService) SelectionTree(ctx context.Context, pid int64) ([]*TreeOption, error) {
	forest, err := s.tree.Forest(ctx, pid)
	if err != nil {
		return nil, err
	}
	return buildOptions(forest, organizationOption), nil
}

// LevelTreeNodes returns the enabled children of pid for lazy loading.
func (s *OrganizationService) LevelTreeNodes(ctx context.Context, pid int64) ([]TreeOption, error) {
	tree := s.tree.WithScope(normalOnly)
	items, err := tree.Children(ctx, pid)
	if err != nil {
		return nil, err
	}
	return levelOptions(ctx, tree, items, organizationOption)
}

func (s *OrganizationService) Chain(ctx context.Context, id int64) ([]TreeOption, error) {
	items, err := s.tree.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	return flatOptions(items, organizationOption), nil
}

var organizationSortFields = map[string]string{
	"name":       "name",
	"orgno":      "orgno",
	"level":      "level",
	"sortno":     "sortno",
	"created_at": "created_at",
}

func (s *OrganizationService) List(ctx context.Context, params query.FilterParams) (query.PageResult[models.Organization], error) {
	q := s.db.WithContext(ctx).Model(&models.Organization{})
	q = query.ApplyFilters(q, params.Filters, map[string]string{"status": "status", "level": "level", "pid": "pid"})
	q = query.ApplySearch(q, params.Search, []string{"name", "short_name"}, "orgno")
	page, err := query.Paginate[models.Organization](q, params, func(db *gorm.DB) *gorm.DB {
		return query.ApplySort(db, params.Sort, organizationSortFields, "level ASC, sortno ASC, id ASC")
	})
	if err != nil {
		return page, errors.Wrap(err, "list organizations")
	}
	return page, nil
}

// InitRoot creates the group headquarters when no top level organization exists.
func (s *OrganizationService) InitRoot(ctx context.Context) (*models.Organization, error) {
	var root models.Organization
	res := s.db.WithContext(ctx).Where("pid = ?", treestore.RootPID).Order("sortno ASC, id ASC").Limit(1).Find(&root)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "load root organization")
	}
	if res.RowsAffected > 0 {
		return &root, nil
	}
	return s.Create(ctx, OrganizationInput{
		PID:         treestore.RootPID,
		Name:        RootOrganizationName,
		ShortName:   RootOrganizationShortName,
		Contact:     "admin",
		Description: "Group Headquarters init",
		Locking:     true,
	})
}
