package scratch

import (
	"testing"

	"github.com/blackscorpionster/rubits/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	kind     string
	from, to Point
}

type recordingTarget struct {
	calls []call
}

func (r *recordingTarget) ApplyScratch(p Point) {
	r.calls = append(r.calls, call{kind: "scratch", to: p})
}

func (r *recordingTarget) ApplyStroke(from, to Point) {
	r.calls = append(r.calls, call{kind: "stroke", from: from, to: to})
}

func newRecordingGrid(t *testing.T) (*Router, []*recordingTarget) {
	t.Helper()
	recs := make([]*recordingTarget, 9)
	targets := make([]Target, 9)
	for i := range recs {
		recs[i] = &recordingTarget{}
		targets[i] = recs[i]
	}
	r, err := NewRouter(Rect{X: 0, Y: 0, Width: 300, Height: 300}, 3, 3, targets)
	require.NoError(t, err)
	return r, recs
}

func TestRouter_EntryThenStrokeWithinCell(t *testing.T) {
	r, recs := newRecordingGrid(t)

	r.Down(Point{X: 10, Y: 10})
	r.Move(Point{X: 50, Y: 10})

	require.Len(t, recs[0].calls, 2)
	assert.Equal(t, call{kind: "scratch", to: Point{X: 10, Y: 10}}, recs[0].calls[0])
	assert.Equal(t, call{kind: "stroke", from: Point{X: 10, Y: 10}, to: Point{X: 50, Y: 10}}, recs[0].calls[1])
}

func TestRouter_CrossingIntoNewCellIsFreshEntry(t *testing.T) {
	r, recs := newRecordingGrid(t)

	r.Down(Point{X: 90, Y: 10})
	r.Move(Point{X: 110, Y: 10})
	r.Move(Point{X: 120, Y: 20})

	require.Len(t, recs[0].calls, 1)
	require.Len(t, recs[1].calls, 2)
	assert.Equal(t, call{kind: "scratch", to: Point{X: 10, Y: 10}}, recs[1].calls[0])
	assert.Equal(t, call{kind: "stroke", from: Point{X: 10, Y: 10}, to: Point{X: 20, Y: 20}}, recs[1].calls[1])
}

func TestRouter_IgnoresPointsOutsideGrid(t *testing.T) {
	r, recs := newRecordingGrid(t)

	r.Down(Point{X: 10, Y: 10})
	r.Move(Point{X: -5, Y: 10})
	r.Move(Point{X: 10, Y: 301})
	r.Move(Point{X: 20, Y: 10})

	require.Len(t, recs[0].calls, 2)
	assert.Equal(t, "scratch", recs[0].calls[1].kind, "re-entry after leaving the grid starts fresh")
	for i := 1; i < 9; i++ {
		assert.Empty(t, recs[i].calls)
	}
}

func TestRouter_MoveWithoutDownIsIgnored(t *testing.T) {
	r, recs := newRecordingGrid(t)

	r.Move(Point{X: 10, Y: 10})
	r.Down(Point{X: 10, Y: 10})
	r.Up()
	r.Move(Point{X: 20, Y: 10})

	assert.Len(t, recs[0].calls, 1)
}

func TestRouter_LocateClampsFarEdge(t *testing.T) {
	r, _ := newRecordingGrid(t)

	idx, local, ok := r.Locate(Point{X: 300, Y: 300})
	require.True(t, ok)
	assert.Equal(t, 8, idx)
	assert.Equal(t, Point{X: 100, Y: 100}, local)

	idx, local, ok = r.Locate(Point{X: 150, Y: 250})
	require.True(t, ok)
	assert.Equal(t, 7, idx)
	assert.Equal(t, Point{X: 50, Y: 50}, local)
}

func TestRouter_OffsetBounds(t *testing.T) {
	rec := &recordingTarget{}
	r, err := NewRouter(Rect{X: 40, Y: 60, Width: 100, Height: 100}, 1, 1, []Target{rec})
	require.NoError(t, err)

	r.Down(Point{X: 45, Y: 70})

	require.Len(t, rec.calls, 1)
	assert.Equal(t, Point{X: 5, Y: 10}, rec.calls[0].to)
}

func TestNewRouter_Errors(t *testing.T) {
	_, err := NewRouter(Rect{Width: 10, Height: 10}, 0, 3, nil)
	assert.Error(t, err)

	_, err = NewRouter(Rect{Width: 10, Height: 10}, 3, 3, make([]Target, 4))
	assert.Error(t, err)

	_, err = NewRouter(Rect{}, 1, 1, make([]Target, 1))
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestBoard_DragRevealsEveryCellOnce(t *testing.T) {
	ticket := &game.Ticket{
		ID:           "t-1",
		GridElements: []int{7, 3, 8, 7, 5, 2, 7, 4, 9},
		Draw:         &game.Draw{GridSizeX: 3, GridSizeY: 3},
	}
	revealed := map[string]int{}
	fired := 0
	board, err := NewBoard(ticket, Rect{Width: 300, Height: 300}, Config{}, func(id string, v int) {
		fired++
		revealed[id] = v
	})
	require.NoError(t, err)

	router := board.Router()
	for y := 0.0; y <= 300; y += 20 {
		router.Down(Point{X: 0, Y: y})
		for x := 5.0; x <= 300; x += 5 {
			router.Move(Point{X: x, Y: y})
		}
		router.Up()
	}

	assert.True(t, board.Complete())
	assert.Equal(t, 9, fired)
	assert.Equal(t, map[string]int{
		"0-0": 7, "0-1": 3, "0-2": 8,
		"1-0": 7, "1-1": 5, "1-2": 2,
		"2-0": 7, "2-1": 4, "2-2": 9,
	}, revealed)
}

func TestBoard_RestoreRevealsSavedCells(t *testing.T) {
	ticket := &game.Ticket{
		ID:           "t-2",
		GridElements: []int{1, 2, 3, 4},
		Draw:         &game.Draw{GridSizeX: 2, GridSizeY: 2},
	}
	fired := 0
	board, err := NewBoard(ticket, Rect{Width: 200, Height: 200}, Config{}, func(string, int) { fired++ })
	require.NoError(t, err)

	state := game.NewRevealState()
	state.Reveal("0-1", 2)
	state.Reveal("1-0", 4)
	board.Restore(state)
	board.Restore(state)

	assert.Equal(t, 2, fired)
	tr, ok := board.Tracker("0-1")
	require.True(t, ok)
	assert.Equal(t, Revealed, tr.State())
	assert.False(t, board.Complete())
	assert.Equal(t, 100.0, board.Progress()["1-0"])
}
