package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/database/models"
	utils "backoffice-backend/shared/utils/auth"
)

// CustomUserService looks up end-customer accounts. Lookups include soft
// deleted accounts so a number, phone or openid is never issued twice.
type CustomUserService struct {
	db *gorm.DB
}

func NewCustomUserService(d Deps) *CustomUserService {
	return &CustomUserService{db: d.DB}
}

func (s *CustomUserService) findOne(ctx context.Context, label string, where string, args ...any) (*models.CustomUser, error) {
	var u models.CustomUser
	res := s.db.WithContext(ctx).Unscoped().Where(where, args...).Order("id ASC").Limit(1).Find(&u)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "load custom user by %s", label)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("custom user %s not found", label)
	}
	return &u, nil
}

func (s *CustomUserService) Get(ctx context.Context, id int64) (*models.CustomUser, error) {
	return s.findOne(ctx, "id", "id = ?", id)
}

func (s *CustomUserService) GetByUserno(ctx context.Context, userno string) (*models.CustomUser, error) {
	return s.findOne(ctx, "userno", "userno = ?", userno)
}

func (s *CustomUserService) GetByUsername(ctx context.Context, username string) (*models.CustomUser, error) {
	return s.findOne(ctx, "username", "username = ?", username)
}

func (s *CustomUserService) GetByOpenid(ctx context.Context, openid string) (*models.CustomUser, error) {
	return s.findOne(ctx, "openid", "openid = ?", openid)
}

func (s *CustomUserService) GetByPhone(ctx context.Context, phone string) (*models.CustomUser, error) {
	return s.findOne(ctx, "phone", "phone = ?", phone)
}

func (s *CustomUserService) GetByEmail(ctx context.Context, email string) (*models.CustomUser, error) {
	return s.findOne(ctx, "email", "email = ?", email)
}

// InsertNew stores u with the already hashed password. A zero status is
// stored as NORMAL.
func (s *CustomUserService) InsertNew(ctx context.Context, u models.CustomUser, hashedPassword string) (*models.CustomUser, error) {
	if strings.TrimSpace(hashedPassword) == "" {
		return nil, apperr.BadRequest("password required")
	}
	if strings.TrimSpace(u.Userno) == "" {
		return nil, apperr.BadRequest("userno required")
	}
	if u.Openid != nil && *u.Openid != "" {
		_, err := s.GetByOpenid(ctx, *u.Openid)
		if err == nil {
			return nil, apperr.Conflict("openid %s already exists", *u.Openid)
		}
		if !apperr.IsNotFound(err) {
			return nil, err
		}
	}
	if u.Phone != nil && *u.Phone != "" {
		_, err := s.GetByPhone(ctx, *u.Phone)
		if err == nil {
			return nil, apperr.Conflict("phone %s already exists", *u.Phone)
		}
		if !apperr.IsNotFound(err) {
			return nil, err
		}
	}

	u.ID = 0
	u.Password = &hashedPassword
	if u.Status == 0 {
		u.Status = models.UserStatusNormal
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, errors.WithMessage(apperr.FromDB(err, "custom user "+u.Userno+" already exists"), "create custom user")
	}
	return &u, nil
}

// FindAccount resolves an email or a phone directly. Anything else is
// looked up as a username first, then as a userno.
func (s *CustomUserService) FindAccount(ctx context.Context, account string) (*models.CustomUser, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, apperr.BadRequest("account is required")
	}
	if utils.ValidateEmail(account) == nil {
		return s.GetByEmail(ctx, account)
	}
	if utils.ValidatePhone(account) == nil {
		return s.GetByPhone(ctx, account)
	}
	u, err := s.GetByUsername(ctx, account)
	if apperr.IsNotFound(err) {
		return s.GetByUserno(ctx, account)
	}
	return u, err
}

func (s *CustomUserService) PasswordUnset(u *models.CustomUser) bool {
	return u == nil || u.PasswordUnset()
}
