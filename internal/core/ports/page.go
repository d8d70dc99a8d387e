package ports

// MaxPageLimit caps the page size of every list endpoint.
const MaxPageLimit = 100

const defaultPageLimit = 20

// Page is one page of a list result.
type Page[T any] struct {
	Items      []T
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// NormalizePaging clamps page and limit to sane values.
func NormalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// NewPage assembles a Page and computes TotalPages.
func NewPage[T any](items []T, total int64, page, limit int) *Page[T] {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Total: total, Page: page, Limit: limit, TotalPages: pages}
}
