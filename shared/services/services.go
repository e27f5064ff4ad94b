// Package services implements the back-office domain operations on top of
// gorm and the ordered tree store. Every method returns apperr typed errors
// for client mistakes and wrapped errors for everything else.
package services

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"backoffice-backend/shared/apperr"
	"backoffice-backend/shared/config"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/treestore"
)

// Cache is the read-through cache used for option lists.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, patterns ...string) error
}

// ObjectStore keeps uploaded files and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, folder, fileName string, r io.Reader, size int64, contentType string) (string, error)
	Remove(ctx context.Context, objectURL string) error
}

const (
	TreeActionCreated   = "created"
	TreeActionUpdated   = "updated"
	TreeActionMoved     = "moved"
	TreeActionReordered = "reordered"
	TreeActionDeleted   = "deleted"
)

// TreeEvent describes a change to one node of a tree.
type TreeEvent struct {
	Tree   string    `json:"tree"`
	Action string    `json:"action"`
	ID     int64     `json:"id"`
	PID    int64     `json:"pid"`
	At     time.Time `json:"at"`
}

type TreeEventPublisher interface {
	PublishTreeEvent(ev TreeEvent)
}

type noopPublisher struct{}

func (noopPublisher) PublishTreeEvent(TreeEvent) {}

// Deps carries the collaborators shared by the services.
// Only DB is required.
type Deps struct {
	DB       *gorm.DB
	Cache    Cache
	Objects  ObjectStore
	Events   TreeEventPublisher
	Security config.SecurityOptions
	MaxDepth int
}

func (d Deps) events() TreeEventPublisher {
	if d.Events == nil {
		return noopPublisher{}
	}
	return d.Events
}

func publish(p TreeEventPublisher, tree, action string, id, pid int64) {
	p.PublishTreeEvent(TreeEvent{Tree: tree, Action: action, ID: id, PID: pid, At: time.Now().UTC()})
}

// TreeOption is the client facing shape of a tree node.
type TreeOption struct {
	ID       int64          `json:"id"`
	PID      int64          `json:"pid"`
	Key      string         `json:"key"`
	Label    string         `json:"label"`
	Value    string         `json:"value"`
	Disabled bool           `json:"disabled"`
	SortNo   int            `json:"sortno"`
	IsLeaf   bool           `json:"isLeaf"`
	Extra    map[string]any `json:"extra,omitempty"`
	Children []*TreeOption  `json:"children,omitempty"`
}

func buildOptions[T any](nodes []*treestore.TreeNode[T], conv func(*T) TreeOption) []*TreeOption {
	out := make([]*TreeOption, 0, len(nodes))
	for _, n := range nodes {
		opt := conv(&n.Node)
		opt.IsLeaf = n.IsLeaf
		if len(n.Children) > 0 {
			opt.Children = buildOptions(n.Children, conv)
		}
		out = append(out, &opt)
	}
	return out
}

func flatOptions[T any](items []T, conv func(*T) TreeOption) []TreeOption {
	out := make([]TreeOption, 0, len(items))
	for i := range items {
		out = append(out, conv(&items[i]))
	}
	return out
}

// levelOptions converts one level of children, asking the store which of
// them have children of their own.
func levelOptions[T any, P treestore.NodePtr[T]](ctx context.Context, store *treestore.Store[T, P], items []T, conv func(*T) TreeOption) ([]TreeOption, error) {
	ids := make([]int64, 0, len(items))
	for i := range items {
		ids = append(ids, P(&items[i]).GetID())
	}
	counts, err := store.ChildCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := flatOptions(items, conv)
	for i := range out {
		out[i].IsLeaf = counts[out[i].ID] == 0
	}
	return out, nil
}

func normalOnly(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", models.StatusNormal)
}

func statusOrDefault(s *models.Status) models.Status {
	if s == nil {
		return models.StatusNormal
	}
	return *s
}

// findRow loads one live row of T by id, or returns NotFound naming it.
func findRow[T any](ctx context.Context, db *gorm.DB, name string, id int64) (*T, error) {
	if id <= 0 {
		return nil, apperr.BadRequest("%s id is required", name)
	}
	var row T
	res := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&row)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "load %s %d", name, id)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("%s %d not found", name, id)
	}
	return &row, nil
}

// setStatus validates status and writes it to the row id of T.
func setStatus[T any](ctx context.Context, db *gorm.DB, name string, id int64, status models.Status) (*T, error) {
	if !status.Valid() {
		return nil, apperr.BadRequest("invalid status %d", status)
	}
	row, err := findRow[T](ctx, db, name, id)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(row).Update("status", status).Error; err != nil {
		return nil, errors.Wrapf(err, "update %s %d status", name, id)
	}
	return findRow[T](ctx, db, name, id)
}
