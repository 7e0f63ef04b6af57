package forge

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/tomnomnom/linkheader"

	"cidash/internal/pagestate"
	"cidash/internal/params"
	"cidash/internal/transport"
)

// PerPageKey is the query key for the page size.
const PerPageKey = "per_page"

// DefaultPerPage is the server's page size when per_page is unset.
const DefaultPerPage = 25

// decodePage decodes a JSON array body and derives pagination from the Link
// header, or from page arithmetic when the server sends none.
func decodePage[W, T any](resp *transport.Response, current params.Params, conv func(W) T) (*pagestate.Result[T], error) {
	var wire []W
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	data := make([]T, len(wire))
	for i, w := range wire {
		data[i] = conv(w)
	}
	return &pagestate.Result[T]{
		Data:       data,
		Pagination: paginate(resp, current, len(data)),
	}, nil
}

func paginate(resp *transport.Response, current params.Params, n int) pagestate.Pagination {
	var pg pagestate.Pagination

	if header := resp.Header.Get("Link"); header != "" {
		for _, l := range linkheader.Parse(header) {
			switch l.Rel {
			case "next":
				pg.HasNext = true
				pg.NextParams = cursorParams(l.URL)
			case "previous", "prev":
				pg.HasPrevious = true
				pg.PrevParams = cursorParams(l.URL)
			}
		}
		return pg
	}

	page := current.Page()
	if page > params.FirstPage {
		pg.HasPrevious = true
		pg.PrevParams = params.Params{params.PageKey: page - 1}
	}
	if n >= current.Int(PerPageKey, DefaultPerPage) {
		pg.HasNext = true
		pg.NextParams = params.Params{params.PageKey: page + 1}
	}
	return pg
}

// cursorParams keeps only the pagination keys of a link target, so merging
// it never drags the endpoint's own query into the view's params.
func cursorParams(target string) params.Params {
	u, err := url.Parse(target)
	if err != nil {
		return nil
	}
	all, err := params.Decode(u.RawQuery)
	if err != nil {
		return nil
	}
	out := params.Params{}
	for _, key := range []string{params.PageKey, PerPageKey} {
		if v, ok := all[key]; ok {
			out[key] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
