// Package store - Persistence gateway
// Table-scoped CRUD over gorm with validated filters and a context-bound
// unit of work
package store

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/a2s-dz/gestion/internal/errors"
	"github.com/a2s-dz/gestion/internal/security"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns the database handle shared by every table
type Store struct {
	db *gorm.DB
}

// New creates a new store
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

type txKey struct{}

// Conn returns the handle to use for ctx: the open transaction when ctx was
// produced by Transaction, the root handle otherwise
func (s *Store) Conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// Transaction runs fn in a single database transaction. Every table call
// made with the ctx passed to fn joins it. Nested calls reuse the outer
// transaction.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// =============================================================================
// QUERY OPTIONS
// =============================================================================

// Option narrows or shapes a query
type Option interface {
	apply(db *gorm.DB) (*gorm.DB, error)
}

// Filter is a column predicate
type Filter struct {
	Column   string
	Operator string
	Value    interface{}
}

func (f Filter) apply(db *gorm.DB) (*gorm.DB, error) {
	expr, err := security.BuildFilterCondition(f.Column, f.Operator, f.Value)
	if err != nil {
		return nil, apperrors.NewValidationError(f.Column, fmt.Sprintf("filtre invalide: %v", err))
	}
	return db.Where(expr), nil
}

func Eq(column string, value interface{}) Filter  { return Filter{column, "eq", value} }
func Ne(column string, value interface{}) Filter  { return Filter{column, "ne", value} }
func Gt(column string, value interface{}) Filter  { return Filter{column, "gt", value} }
func Gte(column string, value interface{}) Filter { return Filter{column, "gte", value} }
func Lt(column string, value interface{}) Filter  { return Filter{column, "lt", value} }
func Lte(column string, value interface{}) Filter { return Filter{column, "lte", value} }
func Like(column, value string) Filter            { return Filter{column, "like", value} }
func IsNull(column string) Filter                 { return Filter{column, "null", nil} }

// In matches any of values
func In[V any](column string, values ...V) Filter {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return Filter{column, "in", vals}
}

// AnyOf matches when at least one of filters matches
type AnyOf []Filter

func (a AnyOf) apply(db *gorm.DB) (*gorm.DB, error) {
	exprs := make([]clause.Expression, 0, len(a))
	for _, f := range a {
		expr, err := security.BuildFilterCondition(f.Column, f.Operator, f.Value)
		if err != nil {
			return nil, apperrors.NewValidationError(f.Column, fmt.Sprintf("filtre invalide: %v", err))
		}
		exprs = append(exprs, expr)
	}
	if len(exprs) == 0 {
		return db, nil
	}
	return db.Where(clause.Or(exprs...)), nil
}

// OrderBy sorts results
type OrderBy struct {
	Column string
	Desc   bool
}

func (o OrderBy) apply(db *gorm.DB) (*gorm.DB, error) {
	if err := security.ValidateIdentifier(o.Column); err != nil {
		return nil, apperrors.NewValidationError("sort", err.Error())
	}
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc}), nil
}

// Asc and Desc are shorthands for OrderBy
func Asc(column string) OrderBy  { return OrderBy{Column: column} }
func Desc(column string) OrderBy { return OrderBy{Column: column, Desc: true} }

// Preload loads a relation as a nested selection
type Preload string

func (p Preload) apply(db *gorm.DB) (*gorm.DB, error) {
	return db.Preload(string(p)), nil
}

// Page limits and offsets results
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(db *gorm.DB) (*gorm.DB, error) {
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	return db, nil
}

// ParseFilter turns a query-string key such as "date_fin__lte" into a
// Filter. A key without operator suffix is an equality; "in" values are
// comma separated.
func ParseFilter(key, value string) (Filter, error) {
	column, op := key, "eq"
	if i := strings.LastIndex(key, "__"); i > 0 {
		column, op = key[:i], key[i+2:]
	}
	if _, ok := security.AllowedFilterOperators[op]; !ok {
		return Filter{}, apperrors.NewValidationError(key, fmt.Sprintf("opérateur de filtre inconnu: %s", op))
	}
	if err := security.ValidateIdentifier(column); err != nil {
		return Filter{}, apperrors.NewValidationError(key, err.Error())
	}
	if op == "in" {
		parts := strings.Split(value, ",")
		vals := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				vals = append(vals, p)
			}
		}
		return Filter{column, op, vals}, nil
	}
	return Filter{column, op, value}, nil
}

// =============================================================================
// TABLE
// =============================================================================

// Table is the gateway to the rows of one model
type Table[T any] struct {
	store    *Store
	resource string
}

// NewTable returns the table of T; resource names it in error messages
func NewTable[T any](s *Store, resource string) *Table[T] {
	return &Table[T]{store: s, resource: resource}
}

// Resource returns the name used in error messages
func (t *Table[T]) Resource() string {
	return t.resource
}

func (t *Table[T]) query(ctx context.Context, opts []Option) (*gorm.DB, error) {
	db := t.store.Conn(ctx).Model(new(T))
	for _, opt := range opts {
		var err error
		if db, err = opt.apply(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Find returns every row matching opts
func (t *Table[T]) Find(ctx context.Context, opts ...Option) ([]T, error) {
	db, err := t.query(ctx, opts)
	if err != nil {
		return nil, err
	}
	rows := []T{}
	if err := db.Find(&rows).Error; err != nil {
		return nil, apperrors.FromDB(t.resource, err)
	}
	return rows, nil
}

// First returns the first row matching opts or a not-found error
func (t *Table[T]) First(ctx context.Context, opts ...Option) (*T, error) {
	db, err := t.query(ctx, opts)
	if err != nil {
		return nil, err
	}
	row := new(T)
	if err := db.Take(row).Error; err != nil {
		return nil, apperrors.FromDB(t.resource, err)
	}
	return row, nil
}

// Get returns the row with id
func (t *Table[T]) Get(ctx context.Context, id uuid.UUID, opts ...Option) (*T, error) {
	return t.First(ctx, append([]Option{Eq("id", id)}, opts...)...)
}

// Insert creates row; its ID is assigned by the model hook when empty
func (t *Table[T]) Insert(ctx context.Context, row *T) error {
	if err := t.store.Conn(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		return apperrors.FromDB(t.resource, err)
	}
	return nil
}

// Update writes every column of row, matched by its primary key
func (t *Table[T]) Update(ctx context.Context, row *T) error {
	res := t.store.Conn(ctx).Model(row).Select("*").Omit("id", "created_at", clause.Associations).Updates(row)
	if res.Error != nil {
		return apperrors.FromDB(t.resource, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError(t.resource)
	}
	return nil
}

// UpdateFields sets the given columns on the row with id
func (t *Table[T]) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := t.store.Conn(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return apperrors.FromDB(t.resource, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError(t.resource)
	}
	return nil
}

// Delete removes the row with id
func (t *Table[T]) Delete(ctx context.Context, id uuid.UUID) error {
	res := t.store.Conn(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return apperrors.FromDB(t.resource, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError(t.resource)
	}
	return nil
}

// DeleteWhere removes every row matching filters and returns how many went.
// At least one filter is required.
func (t *Table[T]) DeleteWhere(ctx context.Context, filters ...Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("%s: refusing to delete without filters", t.resource)
	}
	db := t.store.Conn(ctx)
	for _, f := range filters {
		var err error
		if db, err = f.apply(db); err != nil {
			return 0, err
		}
	}
	res := db.Delete(new(T))
	if res.Error != nil {
		return 0, apperrors.FromDB(t.resource, res.Error)
	}
	return res.RowsAffected, nil
}

// Count returns the number of rows matching opts
func (t *Table[T]) Count(ctx context.Context, opts ...Option) (int64, error) {
	db, err := t.query(ctx, opts)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, apperrors.FromDB(t.resource, err)
	}
	return n, nil
}

// Exists reports whether any row matches opts
func (t *Table[T]) Exists(ctx context.Context, opts ...Option) (bool, error) {
	n, err := t.Count(ctx, opts...)
	return n > 0, err
}

// Sum adds column over the rows matching opts
func (t *Table[T]) Sum(ctx context.Context, column string, opts ...Option) (decimal.Decimal, error) {
	if err := security.ValidateIdentifier(column); err != nil {
		return decimal.Zero, err
	}
	db, err := t.query(ctx, opts)
	if err != nil {
		return decimal.Zero, err
	}
	// SQLite sums NUMERIC columns as floats, so add the values here instead
	if db.Dialector.Name() == "sqlite" {
		var values []decimal.NullDecimal
		if err := db.Pluck(column, &values).Error; err != nil {
			return decimal.Zero, apperrors.FromDB(t.resource, err)
		}
		total := decimal.Zero
		for _, v := range values {
			if v.Valid {
				total = total.Add(v.Decimal)
			}
		}
		return total, nil
	}
	var total decimal.NullDecimal
	if err := db.Select("SUM(?)", clause.Column{Name: column}).Row().Scan(&total); err != nil {
		return decimal.Zero, apperrors.FromDB(t.resource, err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
