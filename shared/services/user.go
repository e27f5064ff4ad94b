package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/logger"
	utils "backoffice-backend/shared/utils/auth"
	"backoffice-backend/shared/utils/idgen"
	"backoffice-backend/shared/utils/query"
)

const PlatformSystem = "system"

type SystemUserInput struct {
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	OrgID    int64  `json:"orgid"`
	IsSuper  bool   `json:"is_super"`
	Openid   string `json:"openid"`
	Remark   string `json:"remark"`
}

type SystemUserUpdate struct {
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	OrgID    *int64 `json:"orgid"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Remark   string `json:"remark"`
}

type SystemUserService struct {
	db     *gorm.DB
	system *SystemService
}

func NewSystemUserService(d Deps) *SystemUserService {
	return &SystemUserService{db: d.DB, system: NewSystemService(d.Security)}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func validateContact(phone, email *string) error {
	if phone == nil && email == nil {
		return apperr.BadRequest("one of phone or email is required")
	}
	if phone != nil {
		if err := utils.ValidatePhone(*phone); err != nil {
			return apperr.BadRequest("the phone [%s] is invalid", *phone)
		}
	}
	if email != nil {
		if err := utils.ValidateEmail(*email); err != nil {
			return apperr.BadRequest("the email [%s] is invalid", *email)
		}
	}
	return nil
}

// checkTaken reports a Conflict when username, phone or email is already
// bound to another account of the organization. Soft deleted accounts count.
func checkTaken(tx *gorm.DB, orgID, selfID int64, username string, phone, email *string) error {
	checks := []struct {
		column, value, label string
	}{
		{"username", username, "username"},
	}
	if phone != nil {
		checks = append(checks, struct{ column, value, label string }{"phone", *phone, "phone"})
	}
	if email != nil {
		checks = append(checks, struct{ column, value, label string }{"email", *email, "email"})
	}
	for _, c := range checks {
		var n int64
		q := tx.Unscoped().Model(&models.SystemUser{}).Where("orgid = ? AND "+c.column+" = ?", orgID, c.value)
		if selfID > 0 {
			q = q.Where("id <> ?", selfID)
		}
		if err := q.Count(&n).Error; err != nil {
			return errors.Wrapf(err, "check user %s", c.label)
		}
		if n > 0 {
			return apperr.Conflict("%s [%s] is already bound to another account", c.label, c.value)
		}
	}
	return nil
}

// nextUserno issues the next userno under seed. Deleted accounts keep their
// number so the scan is unscoped.
func nextUserno(tx *gorm.DB, seed string) (string, error) {
	var last []string
	err := tx.Unscoped().Model(&models.SystemUser{}).
		Where("userno LIKE ? AND LENGTH(userno) = ?", seed+"%", len(seed)+idgen.UsernoSeqWidth).
		Order("userno DESC").Limit(1).Pluck("userno", &last).Error
	if err != nil {
		return "", errors.Wrap(err, "load last userno")
	}
	if len(last) == 0 {
		return idgen.Userno(seed, 1), nil
	}
	seq := idgen.NextSeq(seed, last[0])
	if seq > idgen.MaxUsernoSeq {
		return "", apperr.Conflict("userno space exhausted for seed %s", seed)
	}
	return idgen.Userno(seed, seq), nil
}

func (s *SystemUserService) Get(ctx context.Context, id int64) (*models.SystemUser, error) {
	return findRow[models.SystemUser](ctx, s.db, "user", id)
}

func (s *SystemUserService) GetByUserno(ctx context.Context, userno string) (*models.SystemUser, error) {
	var u models.SystemUser
	res := s.db.WithContext(ctx).Where("userno = ?", userno).Limit(1).Find(&u)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "load user %s", userno)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("user %s not found", userno)
	}
	return &u, nil
}

// FindByAccount matches account against username, phone, email and userno.
// The oldest match wins when the account exists in several organizations.
func (s *SystemUserService) FindByAccount(ctx context.Context, account string) (*models.SystemUser, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, apperr.BadRequest("account is required")
	}
	var u models.SystemUser
	res := s.db.WithContext(ctx).
		Where("username = ? OR phone = ? OR email = ? OR userno = ?", account, account, account, account).
		Order("id ASC").Limit(1).Find(&u)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "find user by account")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("account %s not found", account)
	}
	return &u, nil
}

func (s *SystemUserService) Authenticate(ctx context.Context, account, password string) (*models.SystemUser, error) {
	u, err := s.FindByAccount(ctx, account)
	if apperr.IsNotFound(err) || apperr.IsBadRequest(err) {
		return nil, apperr.Unauthorized("invalid account or password")
	}
	if err != nil {
		return nil, err
	}
	if !s.system.ComparePassword(u.Password, password) {
		return nil, apperr.Unauthorized("invalid account or password")
	}
	if u.Status == models.UserStatusForbidden {
		return nil, apperr.Forbidden("account %s is disabled", u.Username)
	}
	return u, nil
}

func (s *SystemUserService) List(ctx context.Context, params query.FilterParams) (query.PageResult[models.SystemUser], error) {
	q := s.db.WithContext(ctx).Model(&models.SystemUser{})
	q = query.ApplyFilters(q, params.Filters, map[string]string{"orgid": "orgid", "status": "status", "is_super": "is_super"})
	q = query.ApplySearch(q, params.Search, []string{"username", "nickname", "phone", "email"})
	page, err := query.Paginate[models.SystemUser](q, params, func(db *gorm.DB) *gorm.DB {
		return query.ApplySort(db, params.Sort, map[string]string{
			"userno":     "userno",
			"username":   "username",
			"created_at": "created_at",
		}, "id ASC")
	})
	return page, errors.Wrap(err, "list users")
}

func (s *SystemUserService) Create(ctx context.Context, in SystemUserInput) (*models.SystemUser, error) {
	phone, email := optional(in.Phone), optional(in.Email)
	if err := validateContact(phone, email); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		if phone != nil {
			username = *phone
		} else {
			username = *email
		}
	}

	password := in.Password
	if password == "" {
		password = s.system.DefaultPassword()
	} else if err := s.system.CheckPassword(password); err != nil {
		return nil, err
	}
	hashed, err := s.system.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := models.SystemUser{
		Username: username,
		Phone:    phone,
		Email:    email,
		Password: hashed,
		Nickname: in.Nickname,
		Avatar:   in.Avatar,
		Status:   models.UserStatusNormal,
		IsSuper:  in.IsSuper,
		Platform: PlatformSystem,
		Openid:   in.Openid,
		OrgID:    in.OrgID,
		Remark:   in.Remark,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkTaken(tx, in.OrgID, 0, username, phone, email); err != nil {
			return err
		}
		if u.Userno, err = nextUserno(tx, s.system.PickUnoSeed()); err != nil {
			return err
		}
		return apperr.FromDB(tx.Create(&u).Error, "account "+username+" already exists")
	})
	if err != nil {
		return nil, errors.WithMessage(err, "create user")
	}
	logger.FromContext(ctx).WithField("userno", u.Userno).Info("system user created")
	return &u, nil
}

func (s *SystemUserService) Update(ctx context.Context, id int64, in SystemUserUpdate) (*models.SystemUser, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, apperr.BadRequest("username is required")
	}
	phone, email := optional(in.Phone), optional(in.Email)
	if err := validateContact(phone, email); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := findRow[models.SystemUser](ctx, tx, "user", id)
		if err != nil {
			return err
		}
		orgID := u.OrgID
		if in.OrgID != nil {
			orgID = *in.OrgID
		}
		if err := checkTaken(tx, orgID, id, username, phone, email); err != nil {
			return err
		}
		err = tx.Model(u).Updates(map[string]any{
			"username": username,
			"phone":    phone,
			"email":    email,
			"orgid":    orgID,
			"nickname": in.Nickname,
			"avatar":   in.Avatar,
			"remark":   in.Remark,
		}).Error
		return apperr.FromDB(err, "account "+username+" already exists")
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "update user %d", id)
	}
	return s.Get(ctx, id)
}

// ResetPassword stores password, or the default password when it is empty.
func (s *SystemUserService) ResetPassword(ctx context.Context, id int64, password string) error {
	if password == "" {
		password = s.system.DefaultPassword()
	} else if err := s.system.CheckPassword(password); err != nil {
		return err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	hashed, err := s.system.HashPassword(password)
	if err != nil {
		return err
	}
	return errors.Wrapf(s.db.WithContext(ctx).Model(u).Update("password", hashed).Error, "reset user %d password", id)
}

func (s *SystemUserService) SetStatus(ctx context.Context, id int64, status models.UserStatus) (*models.SystemUser, error) {
	if !status.Valid() {
		return nil, apperr.BadRequest("invalid user status %d", status)
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(u).Update("status", status).Error; err != nil {
		return nil, errors.Wrapf(err, "update user %d status", id)
	}
	u.Status = status
	return u, nil
}

// InitSuperUser creates the super administrator of orgID unless a super
// user already exists, deleted or not. created reports which case applied.
func (s *SystemUserService) InitSuperUser(ctx context.Context, orgID int64, username, email, password string) (u *models.SystemUser, created bool, err error) {
	var existing models.SystemUser
	res := s.db.WithContext(ctx).Unscoped().Where("is_super = ?", true).Order("id ASC").Limit(1).Find(&existing)
	if res.Error != nil {
		return nil, false, errors.Wrap(res.Error, "load super user")
	}
	if res.RowsAffected > 0 {
		return &existing, false, nil
	}

	hashed, err := s.system.HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	seed := s.system.PickUnoSeed()
	su := models.SystemUser{
		Userno:   idgen.Userno(seed, 0),
		Username: username,
		Email:    optional(email),
		Password: hashed,
		Nickname: "Super Admin",
		Status:   models.UserStatusNormal,
		IsSuper:  true,
		Platform: PlatformSystem,
		OrgID:    orgID,
		Remark:   "Super Admin",
	}
	if err := s.db.WithContext(ctx).Create(&su).Error; err != nil {
		return nil, false, errors.WithMessage(apperr.FromDB(err, "super user "+username+" already exists"), "create super user")
	}
	logger.FromContext(ctx).WithField("username", su.Username).Info("super user created")
	return &su, true, nil
}
