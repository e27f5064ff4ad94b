package treestore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"backoffice-backend/shared/apperr"
)

type testNode struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	PID       int64          `gorm:"column:pid;not null;index"`
	SortNo    int            `gorm:"column:sortno;not null"`
	Code      string         `gorm:"size:32;uniqueIndex"`
	Label     string         `gorm:"size:64"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (testNode) TableName() string { return "test_nodes" }

func (n *testNode) GetID() int64    { return n.ID }
func (n *testNode) GetPID() int64   { return n.PID }
func (n *testNode) GetSortNo() int  { return n.SortNo }
func (n *testNode) SetSortNo(v int) { n.SortNo = v }

type testStore = Store[testNode, *testNode]

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&testNode{}))
	return db
}

func newTestStore(t *testing.T, opts Options) (*testStore, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	if opts.Name == "" {
		opts.Name = "node"
	}
	return New[testNode, *testNode](db, opts), db
}

func insert(t *testing.T, db *gorm.DB, pid int64, sortNo int, code string) *testNode {
	t.Helper()
	n := &testNode{PID: pid, SortNo: sortNo, Code: code, Label: code}
	require.NoError(t, db.Create(n).Error)
	return n
}

func childCodes(t *testing.T, s *testStore, pid int64) []string {
	t.Helper()
	children, err := s.Children(context.Background(), pid)
	require.NoError(t, err)
	codes := make([]string, 0, len(children))
	for _, c := range children {
		codes = append(codes, c.Code)
	}
	return codes
}

func TestChildren_OrderedBySortNoThenID(t *testing.T) {
	s, db := newTestStore(t, Options{})
	p := insert(t, db, RootPID, 0, "p")
	insert(t, db, p.ID, 2, "c")
	insert(t, db, p.ID, 1, "b1")
	insert(t, db, p.ID, 1, "b2")
	insert(t, db, p.ID, 0, "a")
	insert(t, db, RootPID, 1, "other")

	children, err := s.Children(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, children, 4)
	for i, c := range children {
		assert.Equal(t, p.ID, c.PID)
		if i > 0 {
			prev := children[i-1]
			assert.True(t, prev.SortNo < c.SortNo || (prev.SortNo == c.SortNo && prev.ID < c.ID))
		}
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, childCodes(t, s, p.ID))

	empty, err := s.Children(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMoveUp_SwapsWithPredecessor(t *testing.T) {
	s, db := newTestStore(t, Options{})
	p := insert(t, db, RootPID, 0, "p")
	insert(t, db, p.ID, 1, "A")
	insert(t, db, p.ID, 2, "B")
	c := insert(t, db, p.ID, 3, "C")

	updated, err := s.MoveUp(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Len(t, updated, 2)
	assert.Equal(t, []string{"A", "C", "B"}, childCodes(t, s, p.ID))

	_, err = s.MoveUp(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, childCodes(t, s, p.ID))
}

func TestMoveUp_FirstSiblingIsNoop(t *testing.T) {
	s, db := newTestStore(t, Options{})
	a := insert(t, db, RootPID, 1, "A")
	insert(t, db, RootPID, 2, "B")

	updated, err := s.MoveUp(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, updated)

	got, err := s.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SortNo)
	assert.Equal(t, []string{"A", "B"}, childCodes(t, s, RootPID))
}

func TestMoveDown_LastSiblingIsNoop(t *testing.T) {
	s, db := newTestStore(t, Options{})
	insert(t, db, RootPID, 1, "A")
	b := insert(t, db, RootPID, 2, "B")

	updated, err := s.MoveDown(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Empty(t, updated)
	assert.Equal(t, []string{"A", "B"}, childCodes(t, s, RootPID))
}

func TestMoveUpThenDown_RestoresOrder(t *testing.T) {
	tests := []struct {
		name  string
		sorts []int
	}{
		{"distinct", []int{1, 2, 3, 4}},
		{"collision", []int{1, 2, 2, 3}},
		{"all equal", []int{5, 5, 5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, db := newTestStore(t, Options{})
			var nodes []*testNode
			for i, so := range tt.sorts {
				nodes = append(nodes, insert(t, db, RootPID, so, string(rune('A'+i))))
			}
			before := childCodes(t, s, RootPID)

			_, err := s.MoveUp(context.Background(), nodes[2].ID)
			require.NoError(t, err)
			_, err = s.MoveDown(context.Background(), nodes[2].ID)
			require.NoError(t, err)

			assert.Equal(t, before, childCodes(t, s, RootPID))
		})
	}
}

func TestMove_CollisionAdjustsOnlyTheNode(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t, Options{})
	a := insert(t, db, RootPID, 1, "A")
	b := insert(t, db, RootPID, 1, "B")

	_, err := s.MoveUp(ctx, b.ID)
	require.NoError(t, err)
	gotA, _ := s.Get(ctx, a.ID)
	gotB, _ := s.Get(ctx, b.ID)
	assert.Equal(t, 1, gotA.SortNo)
	assert.Equal(t, 0, gotB.SortNo)
	assert.Equal(t, []string{"B", "A"}, childCodes(t, s, RootPID))

	require.NoError(t, db.Model(&testNode{}).Where("id IN ?", []int64{a.ID, b.ID}).Update("sortno", 4).Error)
	_, err = s.MoveDown(ctx, a.ID)
	require.NoError(t, err)
	gotA, _ = s.Get(ctx, a.ID)
	gotB, _ = s.Get(ctx, b.ID)
	assert.Equal(t, 5, gotA.SortNo)
	assert.Equal(t, 4, gotB.SortNo)
}

func TestMoveUp_CollisionClampsAtZero(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t, Options{})
	insert(t, db, RootPID, 0, "A")
	b := insert(t, db, RootPID, 0, "B")

	_, err := s.MoveUp(ctx, b.ID)
	require.NoError(t, err)
	got, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SortNo)
}

func TestMutations_NotFound(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t, Options{})
	gone := insert(t, db, RootPID, 0, "gone")
	require.NoError(t, db.Delete(gone).Error)

	for _, id := range []int64{404, gone.ID} {
		_, err := s.MoveUp(ctx, id)
		assert.True(t, apperr.IsNotFound(err))
		_, err = s.MoveDown(ctx, id)
		assert.True(t, apperr.IsNotFound(err))
		_, err = s.SetOrder(ctx, id, 3)
		assert.True(t, apperr.IsNotFound(err))
		_, err = s.Get(ctx, id)
		assert.True(t, apperr.IsNotFound(err))
	}
}

func TestSoftDeletedSiblingsAreIgnored(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t, Options{})
	a := insert(t, db, RootPID, 1, "A")
	b := insert(t, db, RootPID, 2, "B")
	c := insert(t, db, RootPID, 3, "C")
	require.NoError(t, db.Delete(b).Error)

	_, err := s.MoveUp(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, childCodes(t, s, RootPID))
	got, _ := s.Get(ctx, a.ID)
	assert.Equal(t, 3, got.SortNo)
}

func TestSetOrder_Overwrites(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t, Options{})
	a := insert(t, db, RootPID, 1, "A")
	insert(t, db, RootPID, 2, "B")

	got, err := s.SetOrder(ctx, a.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SortNo)
	assert.Equal(t, []string{"A", "B"}, childCodes(t, s, RootPID))

	_, err = s.SetOrder(ctx, a.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, childCodes(t, s, RootPID))
}

func TestNextSortNo(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t, Options{})

	next, err := s.NextSortNo(ctx, RootPID)
	require.NoError(t, err)
	assert.Equal(t, 0, next)

	insert(t, db, RootPID, 4, "A")
	insert(t, db, RootPID, 2, "B")
	next, err = s.NextSortNo(ctx, RootPID)
	require.NoError(t, err)
	assert.Equal(t, 5, next)
}

func buildTree(t *testing.T, db *gorm.DB) map[string]*testNode {
	t.Helper()
	n := map[string]*testNode{}
	n["root"] = insert(t, db, RootPID, 0, "root")
	n["a"] = insert(t, db, n["root"].ID, 1, "a")
	n["b"] = insert(t, db, n["root"].ID, 0, "b")
	n["a1"] = insert(t, db, n["a"].ID, 0, "a1")
	n["a2"] = insert(t, db, n["a"].ID, 1, "a2")
	n["a11"] = insert(t, db, n["a1"].ID, 0, "a11")
	return n
}

func TestSubtree_VisitsEveryNodeOnce(t *testing.T) {
	s, db := newTestStore(t, Options{})
	n := buildTree(t, db)
	insert(t, db, RootPID, 1, "unrelated")

	tree, err := s.Subtree(context.Background(), n["root"].ID)
	require.NoError(t, err)

	seen := map[string]int{}
	var walk func(*TreeNode[testNode])
	walk = func(node *TreeNode[testNode]) {
		seen[node.Node.Code]++
		children, err := s.Children(context.Background(), node.Node.ID)
		require.NoError(t, err)
		assert.Equal(t, len(children) == 0, node.IsLeaf, node.Node.Code)
		assert.Len(t, node.Children, len(children))
		for _, c := range node.Children {
			assert.Equal(t, node.Depth+1, c.Depth)
			walk(c)
		}
	}
	walk(tree)

	assert.Equal(t, map[string]int{"root": 1, "a": 1, "b": 1, "a1": 1, "a2": 1, "a11": 1}, seen)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "b", tree.Children[0].Node.Code)
	assert.Equal(t, "a", tree.Children[1].Node.Code)

	_, err = s.Subtree(context.Background(), 404)
	assert.True(t, apperr.IsNotFound(err))
}

func TestForest(t *testing.T) {
	s, db := newTestStore(t, Options{})
	n := buildTree(t, db)

	forest, err := s.Forest(context.Background(), n["a"].ID)
	require.NoError(t, err)
	require.Len(t, forest, 2)
	assert.Equal(t, "a1", forest[0].Node.Code)
	assert.False(t, forest[0].IsLeaf)
	assert.Equal(t, "a11", forest[0].Children[0].Node.Code)
	assert.Equal(t, "a2", forest[1].Node.Code)
	assert.True(t, forest[1].IsLeaf)

	empty, err := s.Forest(context.Background(), n["b"].ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSubtree_DepthCap(t *testing.T) {
	s, db := newTestStore(t, Options{MaxDepth: 2})
	r := insert(t, db, RootPID, 0, "r")
	c1 := insert(t, db, r.ID, 0, "c1")
	c2 := insert(t, db, c1.ID, 0, "c2")

	_, err := s.Subtree(context.Background(), r.ID)
	require.NoError(t, err)

	insert(t, db, c2.ID, 0, "c3")
	_, err = s.Subtree(context.Background(), r.ID)
	assert.True(t, apperr.IsConflict(err))
}

func makeCycle(t *testing.T, db *gorm.DB) (*testNode, *testNode) {
	t.Helper()
	a := insert(t, db, RootPID, 0, "a")
	b := insert(t, db, a.ID, 0, "b")
	require.NoError(t, db.Model(&testNode{}).Where("id = ?", a.ID).Update("pid", b.ID).Error)
	return a, b
}

func TestCyclesFailFast(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t, Options{})
	a, b := makeCycle(t, db)

	_, err := s.Subtree(ctx, a.ID)
	assert.True(t, apperr.IsConflict(err))

	_, err = s.Ancestors(ctx, b.ID)
	assert.True(t, apperr.IsConflict(err))
}

func TestAncestors(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t, Options{})
	n := buildTree(t, db)

	chain, err := s.Ancestors(ctx, n["a11"].ID)
	require.NoError(t, err)
	require.Len(t, chain, 4)
	assert.Equal(t, RootPID, chain[0].PID)
	for i := 1; i < len(chain); i++ {
		assert.Equal(t, chain[i-1].ID, chain[i].PID)
	}
	assert.Equal(t, "a11", chain[3].Code)

	chain, err = s.Ancestors(ctx, n["root"].ID)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, n["root"].ID, chain[0].ID)

	chain, err = s.Ancestors(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestReparent(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t, Options{})
	n := buildTree(t, db)

	_, err := s.Reparent(ctx, n["a"].ID, n["a11"].ID)
	assert.True(t, apperr.IsConflict(err))
	_, err = s.Reparent(ctx, n["a"].ID, n["a"].ID)
	assert.True(t, apperr.IsConflict(err))
	_, err = s.Reparent(ctx, n["a"].ID, 404)
	assert.True(t, apperr.IsNotFound(err))
	_, err = s.Reparent(ctx, 404, n["b"].ID)
	assert.True(t, apperr.IsNotFound(err))

	moved, err := s.Reparent(ctx, n["a2"].ID, n["b"].ID)
	require.NoError(t, err)
	assert.Equal(t, n["b"].ID, moved.PID)
	assert.Equal(t, 0, moved.SortNo)

	moved, err = s.Reparent(ctx, n["a1"].ID, n["b"].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.SortNo)
	assert.Equal(t, []string{"a2", "a1"}, childCodes(t, s, n["b"].ID))

	desc, err := s.Descendants(ctx, n["b"].ID)
	require.NoError(t, err)
	assert.Len(t, desc, 3)
}

func TestChildCountsAndScope(t *testing.T) {
	ctx := context.Background()
	s, db := newTestStore(t, Options{})
	n := buildTree(t, db)

	counts, err := s.ChildCounts(ctx, []int64{n["root"].ID, n["a"].ID, n["b"].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[n["root"].ID])
	assert.Equal(t, int64(2), counts[n["a"].ID])
	_, ok := counts[n["b"].ID]
	assert.False(t, ok)

	scoped := s.WithScope(func(db *gorm.DB) *gorm.DB { return db.Where("code <> ?", "a2") })
	children, err := scoped.Children(ctx, n["a"].ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "a1", children[0].Code)

	has, err := s.HasChildren(ctx, n["a2"].ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDuplicateCodeIsConflictAndLeavesStoreUnchanged(t *testing.T) {
	_, db := newTestStore(t, Options{})
	insert(t, db, RootPID, 0, "dup")

	var before, after int64
	require.NoError(t, db.Model(&testNode{}).Count(&before).Error)
	err := apperr.FromDB(db.Create(&testNode{PID: RootPID, Code: "dup"}).Error, "code already exists")
	require.NoError(t, db.Model(&testNode{}).Count(&after).Error)

	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, before, after)
}

func TestMoveUp_LocksRowsOnPostgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s := New[testNode, *testNode](db, Options{Name: "node"})

	cols := []string{"id", "pid", "sortno", "code", "label", "deleted_at"}
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "test_nodes" WHERE id = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(2, 0, 2, "B", "B", nil))
	mock.ExpectQuery(`SELECT .* FROM "test_nodes" WHERE pid = .* ORDER BY sortno ASC, id ASC FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 0, 1, "A", "A", nil).
			AddRow(2, 0, 2, "B", "B", nil))
	mock.ExpectExec(`UPDATE "test_nodes" SET "sortno"=.* WHERE id = .*`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "test_nodes" SET "sortno"=.* WHERE id = .*`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := s.MoveUp(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, 1, updated[0].SortNo)
	assert.Equal(t, 2, updated[1].SortNo)
	assert.NoError(t, mock.ExpectationsWereMet())
}
