package data

import (
	"context"

	"github.com/google/uuid"
)

// StringData binds a table and a target so callers only name columns.
type StringData struct {
	service  *Service
	table    string
	target   string
	useCache bool
}

// StringData returns an accessor for one target of table, using the
// default cache mode.
func (s *Service) StringData(table, target string) *StringData {
	return &StringData{
		service:  s,
		table:    table,
		target:   target,
		useCache: s.opts.UseCacheDefault,
	}
}

// WithCache returns a copy of d that uses or bypasses the cache.
func (d *StringData) WithCache(useCache bool) *StringData {
	c := *d
	c.useCache = useCache
	return &c
}

// Table returns the bound table.
func (d *StringData) Table() string { return d.table }

// Target returns the bound target.
func (d *StringData) Target() string { return d.target }

// Get returns a value of the target.
func (d *StringData) Get(ctx context.Context, column string) (string, bool, error) {
	return d.service.get(ctx, d.table, d.target, column, d.useCache)
}

// GetOr returns a value of the target, or def when it is absent.
func (d *StringData) GetOr(ctx context.Context, column, def string) string {
	v, ok, err := d.Get(ctx, column)
	if err != nil || !ok {
		return def
	}
	return v
}

// Set stores a value of the target.
func (d *StringData) Set(ctx context.Context, column, value string) error {
	return d.service.setAll(ctx, d.table, d.target, map[string]string{column: value}, d.useCache)
}

// SetAll stores several values of the target.
func (d *StringData) SetAll(ctx context.Context, values map[string]string) error {
	return d.service.setAll(ctx, d.table, d.target, values, d.useCache)
}

// Remove makes a value of the target absent.
func (d *StringData) Remove(ctx context.Context, column string) error {
	return d.service.remove(ctx, d.table, d.target, column, d.useCache)
}

// Save flushes the cached changes of the target.
func (d *StringData) Save(ctx context.Context) error {
	if !d.service.IsEnabled() {
		return ErrNotEnabled
	}
	return d.service.cache.FlushTarget(ctx, d.table, d.target)
}

// EntityData is StringData for one entity in the entities table.
type EntityData struct {
	*StringData
	ID uuid.UUID
}

// EntityData returns the accessor of an entity.
func (s *Service) EntityData(id uuid.UUID) *EntityData {
	return &EntityData{
		StringData: s.StringData(EntitiesTable, id.String()),
		ID:         id,
	}
}

// ParseEntityData returns the accessor of the entity with the given UUID
// string.
func (s *Service) ParseEntityData(id string) (*EntityData, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return s.EntityData(parsed), nil
}
