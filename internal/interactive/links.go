package interactive

import "cidash/internal/params"

// Link is a clickable pagination affordance.
type Link struct {
	Label   string
	Enabled bool
	// OnClick is nil when the link is disabled.
	OnClick func()
}

// PaginationLinks always returns the previous and next links, disabled when
// the displayed page has no neighbour in that direction.
func (c *Controller[T]) PaginationLinks() []Link {
	prev := Link{Label: "« Previous"}
	next := Link{Label: "Next »"}

	r := c.DataToShow()
	if r == nil {
		return []Link{prev, next}
	}
	page := c.CurrentParams().Page()

	if r.Pagination.HasPrevious {
		patch := r.Pagination.PrevParams
		if patch == nil {
			patch = params.Params{params.PageKey: page - 1}
		}
		prev.Enabled = true
		prev.OnClick = func() { c.UpdateWithParams(patch, false) }
	}
	if r.Pagination.HasNext {
		patch := r.Pagination.NextParams
		if patch == nil {
			patch = params.Params{params.PageKey: page + 1}
		}
		next.Enabled = true
		next.OnClick = func() { c.UpdateWithParams(patch, false) }
	}
	return []Link{prev, next}
}

// PagingLinks returns only the links that can be followed.
func (c *Controller[T]) PagingLinks() []Link {
	var out []Link
	for _, l := range c.PaginationLinks() {
		if l.Enabled {
			out = append(out, l)
		}
	}
	return out
}

// NextPage follows the next link. It reports false when there is none.
func (c *Controller[T]) NextPage() bool {
	return c.follow(1)
}

// PreviousPage follows the previous link. It reports false when there is none.
func (c *Controller[T]) PreviousPage() bool {
	return c.follow(0)
}

func (c *Controller[T]) follow(i int) bool {
	l := c.PaginationLinks()[i]
	if !l.Enabled {
		return false
	}
	l.OnClick()
	return true
}
