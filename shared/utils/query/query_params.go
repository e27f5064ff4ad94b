package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// FilterParams is the parsed list query of a request.
type FilterParams struct {
	Filters     map[string]string `json:"filters"`
	Sort        SortParams        `json:"sort"`
	Page        int               `json:"page"`
	Limit       int               `json:"limit"`
	Search      string            `json:"search"`
	WithDeleted bool              `json:"with_deleted"`
}

// SortParams names one sort column and direction.
type SortParams struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// PaginationResponse is the pagination block of a paged list.
type PaginationResponse struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// PageResult is one page of a list query.
type PageResult[T any] struct {
	Items      []T                `json:"items"`
	Pagination PaginationResponse `json:"pagination"`
}

// Normalize clamps page and limit into their valid ranges.
func (p FilterParams) Normalize() FilterParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	p.Search = strings.TrimSpace(p.Search)
	if p.Sort.Order != "asc" && p.Sort.Order != "desc" {
		p.Sort.Order = "asc"
	}
	return p
}

// ParseQueryParams extracts standardized query parameters from Gin context.
// pageSize and keywords are accepted as aliases of limit and search.
func ParseQueryParams(c *gin.Context) FilterParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(firstQuery(c, "pageSize", "limit"))

	// filters[field]=value
	filters := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if strings.HasPrefix(key, "filters[") && strings.HasSuffix(key, "]") {
			fieldName := key[8 : len(key)-1]
			if len(values) > 0 && values[0] != "" {
				filters[fieldName] = values[0]
			}
		}
	}

	// sort[field]=name&sort[order]=asc|desc
	sortField := firstQuery(c, "sort[field]", "sort")
	sortOrder := strings.ToLower(firstQuery(c, "sort[order]", "order"))

	withDeleted, _ := strconv.ParseBool(c.Query("withDeleted"))

	return FilterParams{
		Filters: filters,
		Sort: SortParams{
			Field: sortField,
			Order: sortOrder,
		},
		Page:        page,
		Limit:       limit,
		Search:      firstQuery(c, "keywords", "search"),
		WithDeleted: withDeleted,
	}.Normalize()
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}

// ApplyFilters adds an equality condition for every whitelisted filter.
func ApplyFilters(query *gorm.DB, filters map[string]string, allowedFields map[string]string) *gorm.DB {
	for field, value := range filters {
		if dbField, allowed := allowedFields[field]; allowed && value != "" {
			query = query.Where(fmt.Sprintf("%s = ?", dbField), value)
		}
	}
	return query
}

func likeOperator(db *gorm.DB) string {
	if db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}

// ApplySearch matches search anywhere in searchFields, or as a prefix of prefixFields.
func ApplySearch(query *gorm.DB, search string, searchFields []string, prefixFields ...string) *gorm.DB {
	search = strings.TrimSpace(search)
	if search == "" || len(searchFields)+len(prefixFields) == 0 {
		return query
	}

	op := likeOperator(query)
	conditions := make([]string, 0, len(searchFields)+len(prefixFields))
	args := make([]interface{}, 0, cap(conditions))

	for _, field := range searchFields {
		conditions = append(conditions, fmt.Sprintf("%s %s ?", field, op))
		args = append(args, "%"+search+"%")
	}
	for _, field := range prefixFields {
		conditions = append(conditions, fmt.Sprintf("%s %s ?", field, op))
		args = append(args, search+"%")
	}

	whereClause := strings.Join(conditions, " OR ")
	return query.Where("("+whereClause+")", args...)
}

// ApplySort applies sorting to a GORM query, falling back to defaultOrder
// when the requested field is not allowed.
func ApplySort(query *gorm.DB, sort SortParams, allowedSortFields map[string]string, defaultOrder string) *gorm.DB {
	if dbField, allowed := allowedSortFields[sort.Field]; allowed {
		order := strings.ToUpper(sort.Order)
		if order != "DESC" {
			order = "ASC"
		}
		return query.Order(fmt.Sprintf("%s %s", dbField, order)).Order("id ASC")
	}
	return query.Order(defaultOrder)
}

// ApplyPagination limits q to one page.
func ApplyPagination(query *gorm.DB, page, limit int) *gorm.DB {
	offset := (page - 1) * limit
	return query.Offset(offset).Limit(limit)
}

// Paginate counts the rows matched by q and loads the requested page.
// Ordering must be applied by the caller through order.
func Paginate[T any](q *gorm.DB, params FilterParams, order func(*gorm.DB) *gorm.DB) (PageResult[T], error) {
	params = params.Normalize()
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return PageResult[T]{}, err
	}

	items := make([]T, 0)
	pageQuery := q
	if order != nil {
		pageQuery = order(pageQuery)
	}
	if err := ApplyPagination(pageQuery, params.Page, params.Limit).Find(&items).Error; err != nil {
		return PageResult[T]{}, err
	}

	return PageResult[T]{
		Items:      items,
		Pagination: BuildPaginationResponse(params.Page, params.Limit, total),
	}, nil
}

// BuildPaginationResponse derives page counts from total.
func BuildPaginationResponse(page, limit int, total int64) PaginationResponse {
	if limit < 1 {
		limit = DefaultPageSize
	}
	totalPages := (total + int64(limit) - 1) / int64(limit)
	hasNext := page < int(totalPages)
	hasPrev := page > 1

	return PaginationResponse{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    hasNext,
		HasPrev:    hasPrev,
	}
}
