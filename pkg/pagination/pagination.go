package pagination

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage = 0
	DefaultSize = 20
	MaxSize     = 50
	MinSize     = 1
)

// Params holds clamped, zero-based pagination parameters
type Params struct {
	Page   int
	Size   int
	Offset int
}

// New clamps page and size to the accepted ranges.
func New(page, size int) Params {
	if page < 0 {
		page = DefaultPage
	}
	if size < MinSize {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	if page > math.MaxInt/size {
		page = math.MaxInt / size
	}

	return Params{
		Page:   page,
		Size:   size,
		Offset: page * size,
	}
}

// Parse extracts page/size from query parameters
func Parse(c *gin.Context) Params {
	page, err := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	if err != nil {
		page = DefaultPage
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(DefaultSize)))
	if err != nil {
		size = DefaultSize
	}
	return New(page, size)
}

// Page is one slice of a larger ordered result.
type Page[T any] struct {
	Items         []T   `json:"items"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}

// NewPage assembles a page from items and the total row count.
func NewPage[T any](items []T, params Params, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if params.Size > 0 {
		pages = int((total + int64(params.Size) - 1) / int64(params.Size))
	}
	return Page[T]{
		Items:         items,
		Page:          params.Page,
		Size:          params.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}
