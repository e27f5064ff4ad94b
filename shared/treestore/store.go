// Package treestore keeps ordered trees stored as flat tables with a pid
// parent column and a sortno sibling order column.
package treestore

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"backoffice-backend/shared/apperr"
)

// RootPID is the parent id of top level nodes.
const RootPID int64 = 0

const DefaultMaxDepth = 32

const siblingOrder = "sortno ASC, id ASC"

// Node is implemented by the pointer type of every tree entity.
type Node interface {
	GetID() int64
	GetPID() int64
	GetSortNo() int
	SetSortNo(int)
}

// NodePtr constrains P to be *T implementing Node.
type NodePtr[T any] interface {
	*T
	Node
}

type Options struct {
	// Name is used in error messages and metric labels.
	Name     string
	MaxDepth int
	// Scope filters reads made by Children, Subtree, Forest and ChildCounts.
	Scope func(*gorm.DB) *gorm.DB
}

type Store[T any, P NodePtr[T]] struct {
	db   *gorm.DB
	opts Options
}

// TreeNode is a materialized node with its children attached.
type TreeNode[T any] struct {
	Node     T
	Depth    int
	IsLeaf   bool
	Children []*TreeNode[T]
}

func New[T any, P NodePtr[T]](db *gorm.DB, opts Options) *Store[T, P] {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Name == "" {
		opts.Name = "node"
	}
	return &Store[T, P]{db: db, opts: opts}
}

// WithTx returns a copy of the store bound to tx.
func (s *Store[T, P]) WithTx(tx *gorm.DB) *Store[T, P] {
	return &Store[T, P]{db: tx, opts: s.opts}
}

// WithScope returns a copy of the store whose reads are filtered by scope.
func (s *Store[T, P]) WithScope(scope func(*gorm.DB) *gorm.DB) *Store[T, P] {
	opts := s.opts
	opts.Scope = scope
	return &Store[T, P]{db: s.db, opts: opts}
}

func (s *Store[T, P]) DB() *gorm.DB { return s.db }

func (s *Store[T, P]) Name() string { return s.opts.Name }

func (s *Store[T, P]) read(ctx context.Context) *gorm.DB {
	q := s.db.WithContext(ctx).Model(new(T))
	if s.opts.Scope != nil {
		q = q.Scopes(s.opts.Scope)
	}
	return q
}

// lockForUpdate adds FOR UPDATE on dialects with row level locks.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (s *Store[T, P]) notFound(id int64) error {
	return apperr.NotFound("%s %d not found", s.opts.Name, id)
}

// find loads one row by id. ok is false when no row matches.
func (s *Store[T, P]) find(db *gorm.DB, id int64) (T, bool, error) {
	var n T
	res := db.Where("id = ?", id).Limit(1).Find(&n)
	if res.Error != nil {
		return n, false, errors.Wrapf(res.Error, "load %s %d", s.opts.Name, id)
	}
	return n, res.RowsAffected > 0, nil
}

// Get returns the node with id, or NotFound.
func (s *Store[T, P]) Get(ctx context.Context, id int64) (*T, error) {
	n, ok, err := s.find(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.notFound(id)
	}
	return &n, nil
}

// Exists reports whether a live node with id exists.
func (s *Store[T, P]) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, errors.Wrapf(err, "check %s %d", s.opts.Name, id)
	}
	return count > 0, nil
}

// Children returns the direct children of pid ordered by sortno then id.
func (s *Store[T, P]) Children(ctx context.Context, pid int64) ([]T, error) {
	var items []T
	if err := s.read(ctx).Where("pid = ?", pid).Order(siblingOrder).Find(&items).Error; err != nil {
		return nil, errors.Wrapf(err, "list %s children of %d", s.opts.Name, pid)
	}
	return items, nil
}

// HasChildren reports whether any live node has pid == id.
func (s *Store[T, P]) HasChildren(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(new(T)).Where("pid = ?", id).Count(&count).Error; err != nil {
		return false, errors.Wrapf(err, "count %s children of %d", s.opts.Name, id)
	}
	return count > 0, nil
}

// ChildCounts returns the number of children of every pid in one grouped query.
// Parents without children are absent from the map.
func (s *Store[T, P]) ChildCounts(ctx context.Context, pids []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(pids))
	if len(pids) == 0 {
		return counts, nil
	}
	var rows []struct {
		PID   int64 `gorm:"column:pid"`
		Total int64 `gorm:"column:total"`
	}
	err := s.read(ctx).
		Select("pid, COUNT(*) AS total").
		Where("pid IN ?", pids).
		Group("pid").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "count %s children", s.opts.Name)
	}
	for _, r := range rows {
		counts[r.PID] = r.Total
	}
	return counts, nil
}

// NextSortNo returns max(sortno)+1 among the children of pid, or 0 when there are none.
func (s *Store[T, P]) NextSortNo(ctx context.Context, pid int64) (int, error) {
	var top int64
	row := s.db.WithContext(ctx).Model(new(T)).
		Select("COALESCE(MAX(sortno), -1)").
		Where("pid = ?", pid).
		Row()
	if err := row.Scan(&top); err != nil {
		return 0, errors.Wrapf(err, "max %s sortno under %d", s.opts.Name, pid)
	}
	return int(top) + 1, nil
}

// Subtree materializes rootID and everything below it.
func (s *Store[T, P]) Subtree(ctx context.Context, rootID int64) (*TreeNode[T], error) {
	root, err := s.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}
	tree := &TreeNode[T]{Node: *root}
	if err := s.expand(ctx, []*TreeNode[T]{tree}, map[int64]bool{rootID: true}); err != nil {
		return nil, err
	}
	return tree, nil
}

// Forest materializes every direct child of pid.
func (s *Store[T, P]) Forest(ctx context.Context, pid int64) ([]*TreeNode[T], error) {
	children, err := s.Children(ctx, pid)
	if err != nil {
		return nil, err
	}
	visited := map[int64]bool{pid: true}
	forest := make([]*TreeNode[T], 0, len(children))
	for i := range children {
		id := P(&children[i]).GetID()
		if visited[id] {
			return nil, s.cycleErr(id)
		}
		visited[id] = true
		forest = append(forest, &TreeNode[T]{Node: children[i]})
	}
	if err := s.expand(ctx, forest, visited); err != nil {
		return nil, err
	}
	return forest, nil
}

// Descendants returns every node below id in breadth first order.
func (s *Store[T, P]) Descendants(ctx context.Context, id int64) ([]T, error) {
	tree, err := s.Subtree(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []T
	queue := tree.Children
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n.Node)
		queue = append(queue, n.Children...)
	}
	return out, nil
}

// expand attaches children level by level, one query per level.
func (s *Store[T, P]) expand(ctx context.Context, frontier []*TreeNode[T], visited map[int64]bool) error {
	depth := 0
	if len(frontier) > 0 {
		depth = frontier[0].Depth
	}
	for len(frontier) > 0 {
		depth++
		byID := make(map[int64]*TreeNode[T], len(frontier))
		ids := make([]int64, 0, len(frontier))
		for _, n := range frontier {
			id := P(&n.Node).GetID()
			byID[id] = n
			ids = append(ids, id)
		}

		var rows []T
		if err := s.read(ctx).Where("pid IN ?", ids).Order(siblingOrder).Find(&rows).Error; err != nil {
			return errors.Wrapf(err, "expand %s tree", s.opts.Name)
		}
		if len(rows) > 0 && depth > s.opts.MaxDepth {
			recordRejection(s.opts.Name, "depth")
			return apperr.Conflict("%s tree exceeds the maximum depth of %d", s.opts.Name, s.opts.MaxDepth)
		}

		next := make([]*TreeNode[T], 0, len(rows))
		for i := range rows {
			p := P(&rows[i])
			if visited[p.GetID()] {
				return s.cycleErr(p.GetID())
			}
			visited[p.GetID()] = true
			child := &TreeNode[T]{Node: rows[i], Depth: depth}
			parent := byID[p.GetPID()]
			parent.Children = append(parent.Children, child)
			next = append(next, child)
		}
		for _, n := range frontier {
			n.IsLeaf = len(n.Children) == 0
		}
		frontier = next
	}
	return nil
}

func (s *Store[T, P]) cycleErr(id int64) error {
	recordRejection(s.opts.Name, "cycle")
	return apperr.Conflict("%s %d is part of a parent cycle", s.opts.Name, id)
}

// Ancestors returns the chain from the top level node down to id.
// An unknown id yields an empty chain.
func (s *Store[T, P]) Ancestors(ctx context.Context, id int64) ([]T, error) {
	db := s.db.WithContext(ctx)
	var chain []T
	seen := make(map[int64]bool)
	for cur := id; ; {
		if seen[cur] {
			return nil, s.cycleErr(cur)
		}
		if len(chain) > s.opts.MaxDepth {
			recordRejection(s.opts.Name, "depth")
			return nil, apperr.Conflict("%s ancestor chain exceeds the maximum depth of %d", s.opts.Name, s.opts.MaxDepth)
		}
		n, ok, err := s.find(db, cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		seen[cur] = true
		chain = append(chain, n)
		pid := P(&n).GetPID()
		if pid <= RootPID {
			break
		}
		cur = pid
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// MoveUp swaps id with its preceding sibling. When both share a sortno the
// node's sortno is decremented instead, never below zero. Moving the first
// sibling is a no-op returning no rows.
func (s *Store[T, P]) MoveUp(ctx context.Context, id int64) ([]T, error) {
	return s.move(ctx, id, -1)
}

// MoveDown swaps id with its following sibling. When both share a sortno the
// node's sortno is incremented instead.
func (s *Store[T, P]) MoveDown(ctx context.Context, id int64) ([]T, error) {
	return s.move(ctx, id, 1)
}

func (s *Store[T, P]) move(ctx context.Context, id int64, dir int) ([]T, error) {
	var updated []T
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		node, ok, err := s.find(lockForUpdate(tx), id)
		if err != nil {
			return err
		}
		if !ok {
			return s.notFound(id)
		}

		var siblings []T
		err = lockForUpdate(tx).Where("pid = ?", P(&node).GetPID()).Order(siblingOrder).Find(&siblings).Error
		if err != nil {
			return errors.Wrapf(err, "load %s siblings", s.opts.Name)
		}
		idx := -1
		for i := range siblings {
			if P(&siblings[i]).GetID() == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return s.notFound(id)
		}
		other := idx + dir
		if other < 0 || other >= len(siblings) {
			return nil
		}

		cur, next := P(&siblings[idx]), P(&siblings[other])
		curSort, otherSort := cur.GetSortNo(), next.GetSortNo()
		if curSort == otherSort {
			if dir < 0 {
				curSort = max(curSort-1, 0)
			} else {
				curSort++
			}
		} else {
			curSort, otherSort = otherSort, curSort
		}

		if err := s.writeSortNo(tx, cur.GetID(), curSort); err != nil {
			return err
		}
		if err := s.writeSortNo(tx, next.GetID(), otherSort); err != nil {
			return err
		}
		cur.SetSortNo(curSort)
		next.SetSortNo(otherSort)
		updated = []T{siblings[idx], siblings[other]}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(updated) > 0 {
		recordMove(s.opts.Name, dir)
	}
	return updated, nil
}

func (s *Store[T, P]) writeSortNo(tx *gorm.DB, id int64, sortNo int) error {
	if err := tx.Model(new(T)).Where("id = ?", id).Update("sortno", sortNo).Error; err != nil {
		return errors.Wrapf(err, "update %s %d sortno", s.opts.Name, id)
	}
	return nil
}

// SetOrder overwrites the sortno of id without touching its siblings.
func (s *Store[T, P]) SetOrder(ctx context.Context, id int64, sortNo int) (*T, error) {
	var node T
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, ok, err := s.find(lockForUpdate(tx), id)
		if err != nil {
			return err
		}
		if !ok {
			return s.notFound(id)
		}
		if err := s.writeSortNo(tx, id, sortNo); err != nil {
			return err
		}
		P(&n).SetSortNo(sortNo)
		node = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// Reparent moves id under newPID, appending it after the existing children.
// Moving a node under itself or one of its descendants is a Conflict.
func (s *Store[T, P]) Reparent(ctx context.Context, id, newPID int64) (*T, error) {
	var node T
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		node, err = s.WithTx(tx).reparent(ctx, id, newPID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// reparent expects s to be bound to an open transaction.
func (s *Store[T, P]) reparent(ctx context.Context, id, newPID int64) (T, error) {
	tx := s.db.WithContext(ctx)
	node, ok, err := s.find(lockForUpdate(tx), id)
	if err != nil {
		return node, err
	}
	if !ok {
		return node, s.notFound(id)
	}
	if P(&node).GetPID() == newPID {
		return node, nil
	}
	if newPID == id {
		recordRejection(s.opts.Name, "cycle")
		return node, apperr.Conflict("%s %d cannot be its own parent", s.opts.Name, id)
	}
	if newPID != RootPID {
		chain, err := s.Ancestors(ctx, newPID)
		if err != nil {
			return node, err
		}
		if len(chain) == 0 {
			return node, apperr.NotFound("parent %s %d not found", s.opts.Name, newPID)
		}
		for i := range chain {
			if P(&chain[i]).GetID() == id {
				recordRejection(s.opts.Name, "cycle")
				return node, apperr.Conflict("%s %d cannot move under its own descendant %d", s.opts.Name, id, newPID)
			}
		}
	}

	sortNo, err := s.NextSortNo(ctx, newPID)
	if err != nil {
		return node, err
	}
	err = tx.Model(new(T)).Where("id = ?", id).
		Updates(map[string]any{"pid": newPID, "sortno": sortNo}).Error
	if err != nil {
		return node, errors.Wrapf(err, "reparent %s %d", s.opts.Name, id)
	}
	node, _, err = s.find(tx, id)
	return node, err
}

// ReparentTx is Reparent for callers that already hold a transaction.
func (s *Store[T, P]) ReparentTx(ctx context.Context, tx *gorm.DB, id, newPID int64) (*T, error) {
	node, err := s.WithTx(tx).reparent(ctx, id, newPID)
	if err != nil {
		return nil, err
	}
	return &node, nil
}
