package gesture

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(cx, cy float64) Rect {
	return Rect{X: cx - 20, Y: cy - 20, W: 40, H: 40}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(300, 500)

	tgt, err := r.Register(Target{Pool: PoolTemplate, Label: "lipstick", Bounds: box(10, 10)})
	require.NoError(t, err)
	assert.NotEmpty(t, tgt.ID, "ID is generated")

	_, err = r.Register(Target{ID: tgt.ID, Pool: PoolInstance})
	assert.True(t, errors.Is(err, ErrDuplicateTarget))

	_, err = r.Register(Target{Pool: "shelf"})
	assert.True(t, errors.Is(err, ErrInvalidTarget))

	_, err = r.Register(Target{Pool: PoolInstance, Bounds: Rect{W: -1}})
	assert.True(t, errors.Is(err, ErrInvalidTarget))

	assert.NoError(t, r.Remove(tgt.ID))
	assert.True(t, errors.Is(r.Remove(tgt.ID), ErrTargetNotFound))
}

func TestRegistry_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		targets []Target
		anchor  Point
		wantID  string
		wantOK  bool
	}{
		{
			name: "template wins over closer instance",
			targets: []Target{
				{ID: "tmpl", Pool: PoolTemplate, Bounds: box(250, 0)},
				{ID: "inst", Pool: PoolInstance, Bounds: box(10, 0)},
			},
			anchor: Point{},
			wantID: "tmpl", wantOK: true,
		},
		{
			name: "template out of radius falls through to instances",
			targets: []Target{
				{ID: "tmpl", Pool: PoolTemplate, Bounds: box(350, 0)},
				{ID: "inst", Pool: PoolInstance, Bounds: box(450, 0)},
			},
			anchor: Point{},
			wantID: "inst", wantOK: true,
		},
		{
			name: "nearest instance",
			targets: []Target{
				{ID: "far", Pool: PoolInstance, Bounds: box(200, 0)},
				{ID: "near", Pool: PoolInstance, Bounds: box(100, 0)},
			},
			anchor: Point{},
			wantID: "near", wantOK: true,
		},
		{
			name: "ties keep registration order",
			targets: []Target{
				{ID: "first", Pool: PoolInstance, Bounds: box(100, 0)},
				{ID: "second", Pool: PoolInstance, Bounds: box(-100, 0)},
			},
			anchor: Point{},
			wantID: "first", wantOK: true,
		},
		{
			name: "nothing within radius",
			targets: []Target{
				{ID: "inst", Pool: PoolInstance, Bounds: box(501, 0)},
			},
			anchor: Point{},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(300, 500)
			for _, tgt := range tt.targets {
				_, err := r.Register(tgt)
				require.NoError(t, err)
			}
			got, ok := r.Resolve(tt.anchor)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestRegistry_InstantiateAndMove(t *testing.T) {
	r := NewRegistry(300, 500)
	tmpl, err := r.Register(Target{ID: "tmpl", Pool: PoolTemplate, Label: "blush", Bounds: box(0, 0)})
	require.NoError(t, err)

	inst, err := r.Instantiate(tmpl.ID, Point{X: 200, Y: 100})
	require.NoError(t, err)
	assert.Equal(t, PoolInstance, inst.Pool)
	assert.Equal(t, "tmpl", inst.TemplateID)
	assert.Equal(t, "blush", inst.Label)
	assert.Equal(t, Point{X: 200, Y: 100}, inst.Bounds.Center())

	moved, err := r.MoveTo(inst.ID, Point{X: 50, Y: 60})
	require.NoError(t, err)
	assert.Equal(t, Point{X: 50, Y: 60}, moved.Bounds.Center())

	_, err = r.MoveTo(tmpl.ID, Point{})
	assert.True(t, errors.Is(err, ErrTargetNotFound), "templates never move")

	_, err = r.Instantiate("missing", Point{})
	assert.True(t, errors.Is(err, ErrTargetNotFound))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, PoolTemplate, list[0].Pool)
}
