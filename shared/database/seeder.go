package database

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/config"
	"backoffice-backend/shared/services"
)

type seedItem struct {
	Label string
	Value string
}

type seedDict struct {
	Name  string
	Code  string
	Items []seedItem
}

var defaultDicts = []seedDict{
	{
		Name: "Gender",
		Code: "gender",
		Items: []seedItem{
			{Label: "Male", Value: "1"},
			{Label: "Female", Value: "2"},
			{Label: "Unknown", Value: "0"},
		},
	},
	{
		Name: "Status",
		Code: "status",
		Items: []seedItem{
			{Label: "Normal", Value: "1"},
			{Label: "Forbidden", Value: "0"},
		},
	},
}

var defaultRoles = []services.RoleInput{
	{Name: "Admin", Group: "system", Description: "Back-office administrator"},
	{Name: "Operator", Group: "system", Description: "Day to day content and data maintenance"},
	{Name: "Viewer", Group: "system", Description: "Read only access"},
}

// SeedDatabase creates the root organization and category, the super
// administrator, the default dictionaries and the base roles. Rows that
// already exist are left untouched.
func SeedDatabase(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	log := logrus.WithField("component", "seeder")
	deps := services.Deps{DB: db, Security: cfg.Security, MaxDepth: cfg.Tree.MaxDepth}

	org, err := services.NewOrganizationService(deps).InitRoot(ctx)
	if err != nil {
		return errors.WithMessage(err, "seed root organization")
	}
	if _, err := services.NewCategoryService(deps).InitRoot(ctx); err != nil {
		return errors.WithMessage(err, "seed root category")
	}

	sec := cfg.Security
	su, created, err := services.NewSystemUserService(deps).InitSuperUser(ctx, org.ID, sec.SuperAdminUsername, sec.SuperAdminEmail, sec.SuperAdminPassword)
	if err != nil {
		return errors.WithMessage(err, "seed super user")
	}
	if created {
		log.WithField("username", su.Username).Info("super user created")
	} else {
		log.WithField("username", su.Username).Debug("super user already exists")
	}

	dicts, err := seedDicts(ctx, services.NewDictService(deps))
	if err != nil {
		return err
	}
	roles, err := seedRoles(ctx, services.NewRoleService(deps))
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{"dicts": dicts, "roles": roles}).Info("database seeding completed")
	return nil
}

func seedDicts(ctx context.Context, svc *services.DictService) (int, error) {
	created := 0
	for _, sd := range defaultDicts {
		d, err := svc.CreateDict(ctx, services.DictInput{Name: sd.Name, Code: sd.Code})
		if apperr.IsConflict(err) {
			continue
		}
		if err != nil {
			return created, errors.WithMessagef(err, "seed dict %s", sd.Code)
		}
		for _, it := range sd.Items {
			if _, err := svc.CreateItem(ctx, services.DictItemInput{DictID: d.ID, Label: it.Label, Value: it.Value}); err != nil {
				return created, errors.WithMessagef(err, "seed dict %s item %s", sd.Code, it.Value)
			}
		}
		created++
	}
	return created, nil
}

func seedRoles(ctx context.Context, svc *services.RoleService) (int, error) {
	created := 0
	for i, in := range defaultRoles {
		role, err := svc.Create(ctx, in)
		if apperr.IsConflict(err) {
			continue
		}
		if err != nil {
			return created, errors.WithMessagef(err, "seed role %s", in.Name)
		}
		if i == 0 {
			if _, err := svc.SetDefault(ctx, role.ID); err != nil {
				return created, err
			}
		}
		created++
	}
	return created, nil
}

// ResetDatabase drops every table owned by this service.
func ResetDatabase(db *gorm.DB) error {
	tables, err := TableNames(db)
	if err != nil {
		return err
	}
	for _, table := range tables {
		if err := db.Migrator().DropTable(table); err != nil {
			return errors.Wrapf(err, "drop %s", table)
		}
		logrus.WithField("table", table).Info("table dropped")
	}
	return nil
}
