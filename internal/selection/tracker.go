// Package selection tracks which rows of a server-paginated table are checked.
//
// Selections are stored as global indices (page start offset plus page-local
// position) rather than row identities, so the set survives re-rendering of the
// same page but is cleared whenever the page window changes.
package selection

import "sort"

// Tracker is not safe for concurrent use; it is driven from a single UI event loop.
type Tracker struct {
	offset   int
	pageSize int
	selected map[int]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{selected: make(map[int]struct{})}
}

func (t *Tracker) Offset() int   { return t.offset }
func (t *Tracker) PageSize() int { return t.pageSize }

// OnPageChanged installs a new page window and drops every selection.
// Global indices from the old layout are not guaranteed to point at the same rows.
func (t *Tracker) OnPageChanged(offset, pageSize int) {
	if pageSize < 0 {
		pageSize = 0
	}
	t.offset = offset
	t.pageSize = pageSize
	t.ClearAll()
}

// Toggle flips the row at a page-local position. Positions outside the page are ignored.
func (t *Tracker) Toggle(local int) {
	if !t.inPage(local) {
		return
	}
	global := t.offset + local
	if _, ok := t.selected[global]; ok {
		delete(t.selected, global)
		return
	}
	t.selected[global] = struct{}{}
}

// SelectAllOnPage deselects the visible page when it is fully selected and
// selects all of it otherwise. Selections outside the page are left alone.
func (t *Tracker) SelectAllOnPage() {
	if t.pageSize == 0 {
		return
	}
	all := t.IsAllSelected()
	for g := t.offset; g < t.offset+t.pageSize; g++ {
		if all {
			delete(t.selected, g)
		} else {
			t.selected[g] = struct{}{}
		}
	}
}

func (t *Tracker) ClearAll() {
	clear(t.selected)
}

func (t *Tracker) IsSelected(local int) bool {
	if !t.inPage(local) {
		return false
	}
	_, ok := t.selected[t.offset+local]
	return ok
}

func (t *Tracker) IsAllSelected() bool {
	return t.pageSize > 0 && t.countInPage() == t.pageSize
}

func (t *Tracker) IsIndeterminate() bool {
	c := t.countInPage()
	return c > 0 && c < t.pageSize
}

// Count is the size of the whole selection set, including indices off the page.
func (t *Tracker) Count() int {
	return len(t.selected)
}

// Selected returns the global indices in ascending order.
func (t *Tracker) Selected() []int {
	out := make([]int, 0, len(t.selected))
	for g := range t.selected {
		out = append(out, g)
	}
	sort.Ints(out)
	return out
}

// SelectedLocal returns the page-local positions of selections on the current page.
func (t *Tracker) SelectedLocal() []int {
	out := make([]int, 0, len(t.selected))
	for _, g := range t.Selected() {
		if local := g - t.offset; t.inPage(local) {
			out = append(out, local)
		}
	}
	return out
}

func (t *Tracker) inPage(local int) bool {
	return local >= 0 && local < t.pageSize
}

func (t *Tracker) countInPage() int {
	n := 0
	for g := range t.selected {
		if g >= t.offset && g < t.offset+t.pageSize {
			n++
		}
	}
	return n
}
