package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackerAt(offset, size int) *Tracker {
	t := NewTracker()
	t.OnPageChanged(offset, size)
	return t
}

func TestToggleUsesGlobalIndex(t *testing.T) {
	tr := trackerAt(20, 10)

	tr.Toggle(3)
	assert.Equal(t, []int{23}, tr.Selected())
	assert.True(t, tr.IsSelected(3))

	tr.Toggle(3)
	assert.Empty(t, tr.Selected())
}

func TestToggleIsSelfInverse(t *testing.T) {
	for size := 1; size <= 12; size++ {
		tr := trackerAt(size*7, size)
		// Seed with every other row so the starting set is not empty.
		for i := 0; i < size; i += 2 {
			tr.Toggle(i)
		}
		before := tr.Selected()

		subset := []int{0, size - 1, size / 2}
		for _, i := range subset {
			tr.Toggle(i)
		}
		for _, i := range subset {
			tr.Toggle(i)
		}

		assert.Equal(t, before, tr.Selected(), "page size %d", size)
	}
}

func TestToggleIgnoresOutOfRange(t *testing.T) {
	tr := trackerAt(0, 5)

	tr.Toggle(-1)
	tr.Toggle(5)
	tr.Toggle(100)

	assert.Zero(t, tr.Count())
	assert.False(t, tr.IsSelected(5))
}

func TestSelectAllOnPage(t *testing.T) {
	tr := trackerAt(40, 5)

	tr.SelectAllOnPage()

	assert.Equal(t, []int{40, 41, 42, 43, 44}, tr.Selected())
	assert.True(t, tr.IsAllSelected())
	assert.False(t, tr.IsIndeterminate())
}

func TestSelectAllOnPageTwiceRestores(t *testing.T) {
	tests := []struct {
		name    string
		toggled []int
	}{
		{name: "empty page selection"},
		{name: "partial selection", toggled: []int{1, 3}},
		{name: "full selection", toggled: []int{0, 1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := trackerAt(8, 4)
			for _, i := range tt.toggled {
				tr.Toggle(i)
			}
			before := tr.Selected()

			tr.SelectAllOnPage()
			tr.SelectAllOnPage()

			if len(tt.toggled) == 0 || len(tt.toggled) == 4 {
				assert.Equal(t, before, tr.Selected())
				return
			}
			// A partial page first becomes full, then the second call clears the page.
			assert.Empty(t, tr.Selected())
		})
	}
}

func TestSelectAllOnPageLeavesOtherIndicesAlone(t *testing.T) {
	tr := trackerAt(10, 3)
	// An index outside the visible window, e.g. left behind by a caller that
	// narrowed the page size in place.
	tr.selected[2] = struct{}{}

	tr.SelectAllOnPage()
	assert.Equal(t, []int{2, 10, 11, 12}, tr.Selected())

	tr.SelectAllOnPage()
	assert.Equal(t, []int{2}, tr.Selected())
	assert.Equal(t, []int{}, tr.SelectedLocal())
}

func TestSelectAllOnEmptyPage(t *testing.T) {
	tr := trackerAt(0, 0)

	tr.SelectAllOnPage()

	assert.Zero(t, tr.Count())
	assert.False(t, tr.IsAllSelected())
	assert.False(t, tr.IsIndeterminate())
}

func TestHeaderStateFollowsCount(t *testing.T) {
	for size := 1; size <= 6; size++ {
		for c := 0; c <= size; c++ {
			tr := trackerAt(100, size)
			for i := 0; i < c; i++ {
				tr.Toggle(i)
			}

			assert.Equal(t, c == size, tr.IsAllSelected(), "size=%d count=%d", size, c)
			assert.Equal(t, c > 0 && c < size, tr.IsIndeterminate(), "size=%d count=%d", size, c)
			assert.False(t, tr.IsAllSelected() && tr.IsIndeterminate())
			if c == 0 {
				assert.False(t, tr.IsAllSelected())
				assert.False(t, tr.IsIndeterminate())
			}
		}
	}
}

func TestPageChangeClearsSelection(t *testing.T) {
	tr := trackerAt(0, 10)
	tr.SelectAllOnPage()
	require.Equal(t, 10, tr.Count())

	tr.OnPageChanged(10, 10)

	assert.Zero(t, tr.Count())
	assert.Equal(t, 10, tr.Offset())
	assert.Equal(t, 10, tr.PageSize())
}

func TestRefreshOfSamePageAlsoClears(t *testing.T) {
	tr := trackerAt(0, 10)
	tr.Toggle(4)

	tr.OnPageChanged(0, 9)

	assert.Zero(t, tr.Count())
}

func TestClearAll(t *testing.T) {
	tr := trackerAt(0, 3)
	tr.SelectAllOnPage()

	tr.ClearAll()

	assert.Zero(t, tr.Count())
	assert.False(t, tr.IsAllSelected())
}

func TestSelectedLocal(t *testing.T) {
	tr := trackerAt(30, 10)
	tr.Toggle(9)
	tr.Toggle(0)
	tr.Toggle(4)

	assert.Equal(t, []int{0, 4, 9}, tr.SelectedLocal())
	assert.Equal(t, []int{30, 34, 39}, tr.Selected())
}

func TestNegativePageSizeIsEmptyPage(t *testing.T) {
	tr := trackerAt(0, -3)

	tr.Toggle(0)

	assert.Zero(t, tr.PageSize())
	assert.Zero(t, tr.Count())
}
