package query

import (
	"context"
	"net/url"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var courseFilters = map[string]Field{
	"price":  {Column: "price", Kind: KindFloat},
	"status": {Column: "status", Kind: KindText},
	"level":  {Column: "level", Kind: KindText},
}

func TestBuilderFilterEqualityAndRange(t *testing.T) {
	values := url.Values{}
	values.Set("status", "published")
	values.Set("price[gte]", "10")
	values.Set("price[lte]", "50")
	values.Set("unknown", "ignored")

	sql, args := New("courses").Filter(values, courseFilters).SQL()

	assert.Equal(t, "SELECT * FROM courses WHERE price >= $1 AND price <= $2 AND status = $3 ORDER BY created_at DESC, id ASC LIMIT 10 OFFSET 0", sql)
	assert.Equal(t, []interface{}{float64(10), float64(50), "published"}, args)
}

func TestBuilderFilterUncoercibleValueMatchesNothing(t *testing.T) {
	values := url.Values{}
	values.Set("price[gte]", "cheap")

	sql, args := New("courses").Filter(values, courseFilters).SQL()

	assert.Contains(t, sql, "WHERE 1=0")
	assert.Empty(t, args)
}

func TestBuilderFilterDoesNotMutateValues(t *testing.T) {
	values := url.Values{}
	values.Set("status", "draft")
	values.Set("search", "go")

	New("courses").Filter(values, courseFilters).Search(values, "title")

	assert.Equal(t, "draft", values.Get("status"))
	assert.Equal(t, "go", values.Get("search"))
	assert.Len(t, values, 2)
}

func TestBuilderSearchMinimumLength(t *testing.T) {
	values := url.Values{}
	values.Set("search", "a")

	sql, args := New("courses").Search(values, "title", "description").SQL()

	assert.NotContains(t, sql, "ILIKE")
	assert.Empty(t, args)
}

func TestBuilderSearchDisjunctive(t *testing.T) {
	values := url.Values{}
	values.Set("search", "go basics")

	sql, args := New("courses").Search(values, "title", "description").SQL()

	assert.Contains(t, sql, "(title ILIKE $1 OR description ILIKE $2)")
	assert.Equal(t, []interface{}{"%go basics%", "%go basics%"}, args)
}

func TestBuilderSearchEscapesWildcards(t *testing.T) {
	values := url.Values{}
	values.Set("search", "50%_off")

	_, args := New("courses").Search(values, "title").SQL()

	require.Len(t, args, 1)
	assert.Equal(t, `%50\%\_off%`, args[0])
}

func TestBuilderSortDirectionsAndUnknownFields(t *testing.T) {
	values := url.Values{}
	values.Set("sort", "-price,title,bogus")

	sql, _ := New("courses").Sort(values, map[string]string{"price": "price", "title": "title"}).SQL()

	assert.Contains(t, sql, "ORDER BY price DESC, title ASC, id ASC")
	assert.NotContains(t, sql, "bogus")
}

func TestBuilderDefaultSort(t *testing.T) {
	sql, _ := New("courses").SQL()
	assert.Contains(t, sql, "ORDER BY created_at DESC, id ASC")
}

func TestBuilderProjectInclusionKeepsID(t *testing.T) {
	values := url.Values{}
	values.Set("fields", "title,price,password")

	allowed := map[string]string{"title": "title", "price": "price"}
	sql, _ := New("courses").Project(values, allowed, []string{"id", "title", "price", "status"}).SQL()

	assert.Contains(t, sql, "SELECT id, title, price FROM courses")
	assert.NotContains(t, sql, "password")
}

func TestBuilderProjectExclusion(t *testing.T) {
	values := url.Values{}
	values.Set("fields", "-price")

	allowed := map[string]string{"title": "title", "price": "price", "status": "status"}
	sql, _ := New("courses").Project(values, allowed, []string{"id", "title", "price", "status"}).SQL()

	assert.Contains(t, sql, "SELECT id, title, status FROM courses")
}

func TestBuilderPaginateClamps(t *testing.T) {
	values := url.Values{}
	values.Set("page", "0")
	values.Set("limit", "500")

	sql, _ := New("courses").Paginate(values).SQL()
	assert.Contains(t, sql, "LIMIT 100 OFFSET 0")

	values.Set("page", "3")
	values.Set("limit", "25")
	sql, _ = New("courses").Paginate(values).SQL()
	assert.Contains(t, sql, "LIMIT 25 OFFSET 50")
}

func TestBuilderActiveOnly(t *testing.T) {
	sql, _ := New("courses").ActiveOnly().SQL()
	assert.Contains(t, sql, "WHERE active = TRUE")
}

type courseRow struct {
	ID    string `db:"id"`
	Title string `db:"title"`
}

func newQueryMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestExecuteReturnsRowsAndPagination(t *testing.T) {
	db, mock, cleanup := newQueryMock(t)
	defer cleanup()

	values := url.Values{}
	values.Set("page", "2")
	values.Set("limit", "2")

	b := New("courses").ActiveOnly().Paginate(values)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM courses WHERE active = TRUE ORDER BY created_at DESC, id ASC LIMIT 2 OFFSET 2")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow("c3", "Gophers").AddRow("c4", "Channels"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	rows, pagination, err := Execute[courseRow](context.Background(), db, b)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, &Pagination{Page: 2, Limit: 2, Total: 5, TotalPages: 3, HasNext: true, HasPrevious: true}, pagination)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutePastLastPage(t *testing.T) {
	db, mock, cleanup := newQueryMock(t)
	defer cleanup()

	values := url.Values{}
	values.Set("page", "9")
	values.Set("limit", "10")

	b := New("courses").Paginate(values)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM courses ORDER BY created_at DESC, id ASC LIMIT 10 OFFSET 80")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	rows, pagination, err := Execute[courseRow](context.Background(), db, b)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.False(t, pagination.HasNext)
	assert.True(t, pagination.HasPrevious)
	assert.Equal(t, 1, pagination.TotalPages)
	assert.NoError(t, mock.ExpectationsWereMet())
}
