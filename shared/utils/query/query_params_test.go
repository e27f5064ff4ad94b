package query

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func contextFor(target string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", target, nil)
	return c
}

func TestParseQueryParams(t *testing.T) {
	p := ParseQueryParams(contextFor("/x?page=3&pageSize=20&keywords=%20east%20&sort=name&order=DESC&filters[status]=1&withDeleted=true"))

	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, "east", p.Search)
	assert.Equal(t, SortParams{Field: "name", Order: "desc"}, p.Sort)
	assert.Equal(t, map[string]string{"status": "1"}, p.Filters)
	assert.True(t, p.WithDeleted)
}

func TestParseQueryParams_Defaults(t *testing.T) {
	p := ParseQueryParams(contextFor("/x?page=-2&limit=1000&sort[order]=sideways"))

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.Limit)
	assert.Equal(t, "asc", p.Sort.Order)
	assert.False(t, p.WithDeleted)

	p = ParseQueryParams(contextFor("/x"))
	assert.Equal(t, DefaultPageSize, p.Limit)
}

func TestBuildPaginationResponse(t *testing.T) {
	r := BuildPaginationResponse(2, 10, 25)
	assert.Equal(t, int64(3), r.TotalPages)
	assert.True(t, r.HasNext)
	assert.True(t, r.HasPrev)

	r = BuildPaginationResponse(1, 10, 0)
	assert.Equal(t, int64(0), r.TotalPages)
	assert.False(t, r.HasNext)
	assert.False(t, r.HasPrev)
}

type place struct {
	ID    int64 `gorm:"primaryKey"`
	Name  string
	Group string `gorm:"column:group_name"`
}

func TestPaginateWithSearch(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&place{}))
	for _, r := range []place{
		{Name: "north gate", Group: "x"},
		{Name: "south gate", Group: "x"},
		{Name: "lobby", Group: "gate-keepers"},
		{Name: "office", Group: "staff-gate"},
	} {
		require.NoError(t, db.Create(&r).Error)
	}

	q := ApplySearch(db.Model(&place{}), "gate", []string{"name"}, "group_name")
	page, err := Paginate[place](q, FilterParams{Page: 1, Limit: 2}, func(db *gorm.DB) *gorm.DB {
		return ApplySort(db, SortParams{Field: "name", Order: "asc"}, map[string]string{"name": "name"}, "id ASC")
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), page.Pagination.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "lobby", page.Items[0].Name)
	assert.Equal(t, "north gate", page.Items[1].Name)
}
