// Package pagination implements the page/page_size query pair used by the
// change, approval log and user listings.
package pagination

import (
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Request is bound from the page and page_size query parameters.
type Request struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Normalize fills in the first page and the default page size.
func (r Request) Normalize() Request {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	return r
}

// Offset is the SQL OFFSET of the request's page.
func (r Request) Offset() int {
	r = r.Normalize()
	return (r.Page - 1) * r.PageSize
}

// Meta describes where a page sits in the full result. Next and Previous
// are page numbers, null at either end.
type Meta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	Next       *int  `json:"next"`
	Previous   *int  `json:"previous"`
}

// Page is one page of items plus its metadata.
type Page[T any] struct {
	Data []T `json:"data"`
	Meta
}

// NewPage builds a Page. A nil slice becomes empty so it encodes as [].
func NewPage[T any](items []T, page, pageSize int, totalItems int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	meta := Meta{Page: page, PageSize: pageSize, TotalItems: totalItems}
	if pageSize > 0 {
		meta.TotalPages = int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	}
	if page < meta.TotalPages {
		next := page + 1
		meta.Next = &next
	}
	if page > 1 {
		prev := page - 1
		meta.Previous = &prev
	}
	return Page[T]{Data: items, Meta: meta}
}

// Map converts the items of a page, keeping its metadata.
func Map[T, U any](p *Page[T], fn func(*T) U) *Page[U] {
	out := make([]U, len(p.Data))
	for i := range p.Data {
		out[i] = fn(&p.Data[i])
	}
	return &Page[U]{Data: out, Meta: p.Meta}
}

// Find counts the rows matched by q and loads the requested page of them.
// Preloads apply only to the page query.
func Find[T any](q *gorm.DB, req Request, order string, preloads ...string) (*Page[T], error) {
	req = req.Normalize()

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var items []T
	find := q.Session(&gorm.Session{}).Offset(req.Offset()).Limit(req.PageSize)
	for _, rel := range preloads {
		find = find.Preload(rel)
	}
	if order != "" {
		find = find.Order(order)
	}
	if err := find.Find(&items).Error; err != nil {
		return nil, err
	}

	page := NewPage(items, req.Page, req.PageSize, total)
	return &page, nil
}
