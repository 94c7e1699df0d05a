package shared

// PageWindow is a normalized page request for windowed listings.
type PageWindow struct {
	Page     int
	PageSize int
}

// NormalizePage clamps raw page inputs to a usable window. Zero or
// negative values fall back to the defaults, oversized pages are capped
// so a single request cannot drag the whole table.
func NormalizePage(page, pageSize, defaultSize, maxSize int) PageWindow {
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if maxSize > 0 && pageSize > maxSize {
		pageSize = maxSize
	}
	if page <= 0 {
		page = 1
	}
	return PageWindow{Page: page, PageSize: pageSize}
}

// Offset returns the row offset for the window.
func (w PageWindow) Offset() int {
	return (w.Page - 1) * w.PageSize
}
