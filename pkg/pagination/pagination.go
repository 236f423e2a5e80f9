package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const MaxLimit = 100

// MaxOffset caps offsets so Offset+Limit never overflows.
const MaxOffset = math.MaxInt32

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit and offset from the query string. A page
// parameter (1-based) is accepted instead of offset. Missing, non-numeric
// or out-of-range values fall back to defaultLimit and offset 0; limit is
// capped at MaxLimit and offset at MaxOffset.
func FromContext(c echo.Context, defaultLimit int) Params {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	if c.QueryParam("offset") == "" {
		if page, err := strconv.Atoi(c.QueryParam("page")); err == nil && page > 1 {
			if page-1 > MaxOffset/limit {
				offset = MaxOffset
			} else {
				offset = (page - 1) * limit
			}
		}
	}
	if offset > MaxOffset {
		offset = MaxOffset
	}

	return Params{Limit: limit, Offset: offset}
}

// Response is the envelope for list endpoints.
type Response struct {
	Items   interface{} `json:"items"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(items interface{}, total int, p Params) *Response {
	return &Response{
		Items:   items,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// Window applies p to an in-memory slice length, returning the bounds of
// the requested page.
func (p Params) Window(n int) (start, end int) {
	start = p.Offset
	if start > n {
		start = n
	}
	end = start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
