package pagination

const (
	// DefaultPageSize is the standard page size when one is not provided.
	DefaultPageSize = 50
	// MaxPageSize caps how many rows any page query can request.
	MaxPageSize = 100
)

// Params holds zero-based page pagination inputs from controllers or services.
type Params struct {
	Page     int
	PageSize int
}

// Normalize enforces the configured defaults and bounds.
func Normalize(params Params) Params {
	if params.Page < 0 {
		params.Page = 0
	}
	if params.PageSize <= 0 {
		params.PageSize = DefaultPageSize
	}
	if params.PageSize > MaxPageSize {
		params.PageSize = MaxPageSize
	}
	return params
}

// Offset returns the row offset for the normalized params.
func (p Params) Offset() int {
	return p.Page * p.PageSize
}

// TotalPages computes how many pages a result set of totalElements spans.
func TotalPages(totalElements int64, pageSize int) int {
	if pageSize <= 0 || totalElements <= 0 {
		return 0
	}
	pages := totalElements / int64(pageSize)
	if totalElements%int64(pageSize) != 0 {
		pages++
	}
	return int(pages)
}
