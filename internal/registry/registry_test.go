package registry

import (
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nido-racing/trackcam/internal/geo"
	"github.com/nido-racing/trackcam/internal/model"
	"github.com/nido-racing/trackcam/internal/store"
)

type capturePersister struct {
	mu  sync.Mutex
	ops []store.Op
}

func (c *capturePersister) Enqueue(op store.Op) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, op)
}

func (c *capturePersister) all() []store.Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]store.Op(nil), c.ops...)
}

type stubGateway struct {
	store.Gateway
	rows []model.Camera
	err  error
}

func (s *stubGateway) ListCameras() ([]model.Camera, error) {
	return s.rows, s.err
}

func testLocator(t *testing.T) *geo.Locator {
	t.Helper()
	near, err := geo.BuildTrack(geo.TrackDef{
		ID: 1, Name: "near", Centerline: [][]float64{{0, 0}, {100, 0}},
	})
	require.NoError(t, err)
	far, err := geo.BuildTrack(geo.TrackDef{
		ID: 2, Name: "far", Centerline: [][]float64{{0, 5000}, {100, 5000}},
	})
	require.NoError(t, err)
	return geo.NewLocator([]geo.Track{near, far})
}

func testCamera(trackID uint, index int) Camera {
	return Camera{
		TrackID:  trackID,
		Index:    index,
		Region:   geo.Region{MinX: 0, MinY: 0, MinZ: 0, MaxX: 10, MaxY: 10, MaxZ: 10},
		Position: geo.Position3D{X: 5, Y: 5, Z: 5},
	}
}

func TestRegistry_UpsertAndGet(t *testing.T) {
	p := &capturePersister{}
	r := New(p, testLocator(t), zerolog.Nop())

	replaced := r.Upsert(testCamera(1, 0))
	assert.False(t, replaced)

	cam, ok := r.Get(1, 0)
	require.True(t, ok)
	assert.Equal(t, uint(1), cam.TrackID)
	assert.Equal(t, 0, cam.Index)

	ops := p.all()
	require.Len(t, ops, 1)
	assert.Equal(t, store.OpUpsertCamera, ops[0].Kind)
	assert.Equal(t, uint(1), ops[0].Camera.TrackID)
}

func TestRegistry_UpsertReplacesSlot(t *testing.T) {
	p := &capturePersister{}
	r := New(p, testLocator(t), zerolog.Nop())

	r.Upsert(testCamera(1, 0))

	updated := testCamera(1, 0)
	updated.Label = "pit entry"
	replaced := r.Upsert(updated)
	assert.True(t, replaced)

	cam, ok := r.Get(1, 0)
	require.True(t, ok)
	assert.Equal(t, "pit entry", cam.Label)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_SameIndexDifferentTracks(t *testing.T) {
	p := &capturePersister{}
	r := New(p, testLocator(t), zerolog.Nop())

	r.Upsert(testCamera(1, 0))
	r.Upsert(testCamera(2, 0))

	assert.Equal(t, 2, r.Count())
	_, ok := r.Get(1, 0)
	assert.True(t, ok)
	_, ok = r.Get(2, 0)
	assert.True(t, ok)
}

func TestRegistry_Remove(t *testing.T) {
	p := &capturePersister{}
	r := New(p, testLocator(t), zerolog.Nop())

	r.Upsert(testCamera(1, 0))
	assert.True(t, r.Remove(1, 0))

	_, ok := r.Get(1, 0)
	assert.False(t, ok)

	ops := p.all()
	require.Len(t, ops, 2)
	assert.Equal(t, store.OpDeleteCamera, ops[1].Kind)
	assert.Equal(t, uint(1), ops[1].TrackID)
	assert.Equal(t, 0, ops[1].Idx)
}

func TestRegistry_RemoveMissingSlot(t *testing.T) {
	p := &capturePersister{}
	r := New(p, testLocator(t), zerolog.Nop())

	assert.False(t, r.Remove(9, 9))
	assert.Empty(t, p.all())
}

func TestRegistry_ListForTrack_OrderedByIndex(t *testing.T) {
	p := &capturePersister{}
	r := New(p, testLocator(t), zerolog.Nop())

	r.Upsert(testCamera(1, 2))
	r.Upsert(testCamera(1, 0))
	r.Upsert(testCamera(1, 1))
	r.Upsert(testCamera(2, 0))

	cams := r.ListForTrack(1)
	require.Len(t, cams, 3)
	assert.Equal(t, 0, cams[0].Index)
	assert.Equal(t, 1, cams[1].Index)
	assert.Equal(t, 2, cams[2].Index)
}

func TestRegistry_ListForTrack_Empty(t *testing.T) {
	r := New(&capturePersister{}, testLocator(t), zerolog.Nop())
	assert.Empty(t, r.ListForTrack(42))
}

func TestRegistry_ListNearby(t *testing.T) {
	p := &capturePersister{}
	r := New(p, testLocator(t), zerolog.Nop())

	r.Upsert(testCamera(1, 0))
	r.Upsert(testCamera(2, 0))

	// position close to track 1's centerline
	cams := r.ListNearby(geo.Position3D{X: 50, Y: 10, Z: 0})
	require.Len(t, cams, 1)
	assert.Equal(t, uint(1), cams[0].TrackID)

	// position close to track 2's centerline
	cams = r.ListNearby(geo.Position3D{X: 50, Y: 4990, Z: 0})
	require.Len(t, cams, 1)
	assert.Equal(t, uint(2), cams[0].TrackID)
}

func TestRegistry_ListNearby_NoTracks(t *testing.T) {
	r := New(&capturePersister{}, geo.NewLocator(nil), zerolog.Nop())
	r.Upsert(testCamera(1, 0))

	assert.Empty(t, r.ListNearby(geo.Position3D{X: 1, Y: 1, Z: 1}))
}

func TestRegistry_LoadAll(t *testing.T) {
	gw := &stubGateway{rows: []model.Camera{
		{TrackID: 1, Idx: 0, Region: "0,0,0;10,10,10", Position: "5,5,5", Label: sql.NullString{String: "start", Valid: true}},
		{TrackID: 1, Idx: 1, Region: "20,0,0;30,10,10", Position: "25,5,5"},
	}}
	r := New(&capturePersister{}, testLocator(t), zerolog.Nop())

	require.NoError(t, r.LoadAll(gw))
	assert.Equal(t, 2, r.Count())

	cam, ok := r.Get(1, 0)
	require.True(t, ok)
	assert.Equal(t, "start", cam.Label)
	assert.Equal(t, 5.0, cam.Position.X)
}

func TestRegistry_LoadAll_QueryFailure(t *testing.T) {
	gw := &stubGateway{err: errors.New("connection refused")}
	r := New(&capturePersister{}, testLocator(t), zerolog.Nop())

	err := r.LoadAll(gw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading cameras")
}

func TestRegistry_LoadAll_SkipsUnreadableRows(t *testing.T) {
	gw := &stubGateway{rows: []model.Camera{
		{TrackID: 1, Idx: 0, Region: "garbage", Position: "5,5,5"},
		{TrackID: 1, Idx: 1, Region: "0,0,0;10,10,10", Position: "5,5,5"},
	}}
	r := New(&capturePersister{}, testLocator(t), zerolog.Nop())

	require.NoError(t, r.LoadAll(gw))
	assert.Equal(t, 1, r.Count())

	_, ok := r.Get(1, 1)
	assert.True(t, ok)
}

func TestRegistry_LoadAll_DuplicateSlotLastWins(t *testing.T) {
	gw := &stubGateway{rows: []model.Camera{
		{TrackID: 1, Idx: 0, Region: "0,0,0;10,10,10", Position: "1,1,1"},
		{TrackID: 1, Idx: 0, Region: "0,0,0;10,10,10", Position: "2,2,2"},
	}}
	r := New(&capturePersister{}, testLocator(t), zerolog.Nop())

	require.NoError(t, r.LoadAll(gw))
	assert.Equal(t, 1, r.Count())

	cam, _ := r.Get(1, 0)
	assert.Equal(t, 2.0, cam.Position.X)
}

func TestRegistry_RoundTripThroughModel(t *testing.T) {
	cam := Camera{
		TrackID:  3,
		Index:    2,
		Region:   geo.Region{MinX: -5, MinY: 0, MinZ: -5, MaxX: 5, MaxY: 10, MaxZ: 5},
		Position: geo.Position3D{X: 1.5, Y: 2, Z: -3, Yaw: 90, Pitch: -10},
		Label:    "hairpin",
	}

	row := cam.toModel()
	back, err := fromModel(row)
	require.NoError(t, err)
	assert.Equal(t, cam, back)
}
