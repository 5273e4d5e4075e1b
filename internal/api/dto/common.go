package dto

// Page is the paged collection envelope shared by list endpoints.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	PageSize      int   `json:"page_size"`
	TotalPages    int   `json:"total_pages"`
	TotalElements int64 `json:"total_elements"`
}

// NewPage assembles a page envelope from one page of content and the unpaged
// total.
func NewPage[T any](content []T, page, pageSize int, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Page[T]{
		Content:       content,
		Page:          page,
		PageSize:      pageSize,
		TotalPages:    totalPages,
		TotalElements: total,
	}
}
