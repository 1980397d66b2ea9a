package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"reflect"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"casei/internal/cache"
	apperrors "casei/internal/errors"
	"casei/internal/logger"
	"casei/internal/metrics"
	"casei/internal/registry"
)

// publishedService reads live domain rows for the public API.
type publishedService struct {
	db    *gorm.DB
	cache cache.Service
}

// NewPublishedService creates a new PublishedServicer.
func NewPublishedService(db *gorm.DB, c cache.Service) PublishedServicer {
	return &publishedService{db: db, cache: c}
}

// List returns the JSON array of live rows of a content type. Query
// parameters filter by column equality; unknown columns are rejected.
func (s *publishedService) List(ctx context.Context, contentType string, query url.Values) (json.RawMessage, error) {
	ct, ok := registry.Lookup(contentType)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownModel, "unknown model %s", contentType)
	}

	key := query.Encode()
	if cached, err := s.cache.GetPublished(ctx, ct.Name, key); err == nil {
		metrics.PublishedCache.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.PublishedCache.WithLabelValues("miss").Inc()

	q, err := s.filtered(ctx, ct, query)
	if err != nil {
		return nil, err
	}
	rows := ct.NewSlice()
	if err := q.Order("created_at ASC").Find(rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	slice := reflect.ValueOf(rows).Elem()
	out := make([]map[string]interface{}, 0, slice.Len())
	for i := 0; i < slice.Len(); i++ {
		item, err := serialize(ct, slice.Index(i).Addr().Interface())
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		out = append(out, item)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.cache.SetPublished(ctx, ct.Name, key, data); err != nil {
		logger.Get().Warnw("failed to cache published listing", "error", err, "content_type", ct.Name)
	}
	return data, nil
}

// Get returns one live row with relations reduced to id lists.
func (s *publishedService) Get(contentType, id string) (interface{}, error) {
	ct, ok := registry.Lookup(contentType)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownModel, "unknown model %s", contentType)
	}
	obj, err := loadObject(s.db, ct, id, true)
	if err != nil {
		if errors.Is(err, apperrors.ErrObjectMissing) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	out, err := serialize(ct, obj)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return out, nil
}

func (s *publishedService) filtered(ctx context.Context, ct *registry.ContentType, query url.Values) (*gorm.DB, error) {
	q := s.db.WithContext(ctx).Model(ct.New())
	for _, r := range ct.Relations {
		q = q.Preload(r.Field)
	}
	if len(query) == 0 {
		return q, nil
	}

	stmt := &gorm.Statement{DB: s.db}
	if err := stmt.Parse(ct.New()); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for _, name := range sortedValues(query) {
		field := stmt.Schema.LookUpField(name)
		if field == nil || field.DBName == "" || field.DBName == "deleted_at" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "unknown filter field %s", name)
		}
		value, err := filterValue(field, query.Get(name))
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, name+": "+err.Error())
		}
		q = q.Where(stmt.Quote(field.DBName)+" = ?", value)
	}
	return q, nil
}

func filterValue(field *schema.Field, raw string) (interface{}, error) {
	switch field.DataType {
	case schema.Bool:
		return strconv.ParseBool(raw)
	case schema.Int, schema.Uint:
		return strconv.ParseInt(raw, 10, 64)
	case schema.Float:
		return strconv.ParseFloat(raw, 64)
	}
	return raw, nil
}

func sortedValues(v url.Values) []string {
	m := make(map[string]interface{}, len(v))
	for k := range v {
		m[k] = nil
	}
	return sortedKeys(m)
}
