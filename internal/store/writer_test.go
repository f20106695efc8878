package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/nido-racing/trackcam/internal/model"
)

type fakeGateway struct {
	mu      sync.Mutex
	ops     []Op
	failAll bool
}

func (f *fakeGateway) record(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("gateway down")
	}
	f.ops = append(f.ops, op)
	return nil
}

func (f *fakeGateway) UpsertCamera(cam model.Camera) error {
	return f.record(Op{Kind: OpUpsertCamera, Camera: cam})
}

func (f *fakeGateway) DeleteCamera(trackID uint, idx int) error {
	return f.record(Op{Kind: OpDeleteCamera, TrackID: trackID, Idx: idx})
}

func (f *fakeGateway) ListCameras() ([]model.Camera, error) { return nil, nil }

func (f *fakeGateway) InsertPlayer(p model.CameraPlayer) error {
	return f.record(Op{Kind: OpInsertPlayer, PlayerUUID: p.UUID})
}

func (f *fakeGateway) SavePlayerDisabled(playerUUID string, disabled datatypes.JSON) error {
	return f.record(Op{Kind: OpSavePlayer, PlayerUUID: playerUUID, Disabled: disabled})
}

func (f *fakeGateway) FindPlayer(playerUUID string) (*model.CameraPlayer, error) {
	return nil, nil
}

func (f *fakeGateway) applied() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Op(nil), f.ops...)
}

func TestAsyncWriter_DrainsOnClose(t *testing.T) {
	gw := &fakeGateway{}
	w := NewAsyncWriter(gw, 100, time.Hour, zerolog.Nop())
	w.Start()

	w.Enqueue(Op{Kind: OpUpsertCamera, Camera: model.Camera{TrackID: 1, Idx: 0}})
	w.Enqueue(Op{Kind: OpDeleteCamera, TrackID: 1, Idx: 0})
	w.Close()

	ops := gw.applied()
	require.Len(t, ops, 2)
	assert.Equal(t, OpUpsertCamera, ops[0].Kind)
	assert.Equal(t, OpDeleteCamera, ops[1].Kind)
}

func TestAsyncWriter_FlushesPeriodically(t *testing.T) {
	gw := &fakeGateway{}
	w := NewAsyncWriter(gw, 100, 10*time.Millisecond, zerolog.Nop())
	w.Start()
	defer w.Close()

	w.Enqueue(Op{Kind: OpInsertPlayer, PlayerUUID: "abc"})

	assert.Eventually(t, func() bool {
		return len(gw.applied()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, w.Backlog())
}

func TestAsyncWriter_DropsWhenFull(t *testing.T) {
	gw := &fakeGateway{}
	w := NewAsyncWriter(gw, 2, time.Hour, zerolog.Nop())

	w.Enqueue(Op{Kind: OpInsertPlayer, PlayerUUID: "a"})
	w.Enqueue(Op{Kind: OpInsertPlayer, PlayerUUID: "b"})
	w.Enqueue(Op{Kind: OpInsertPlayer, PlayerUUID: "c"})

	assert.Equal(t, 2, w.Backlog())
}

func TestAsyncWriter_FailureDoesNotStopFlush(t *testing.T) {
	gw := &fakeGateway{failAll: true}
	w := NewAsyncWriter(gw, 100, time.Hour, zerolog.Nop())
	w.Start()

	w.Enqueue(Op{Kind: OpSavePlayer, PlayerUUID: "a"})
	w.Enqueue(Op{Kind: OpSavePlayer, PlayerUUID: "b"})
	w.Close()

	// all operations attempted and dropped, nothing left queued
	assert.Empty(t, gw.applied())
	assert.Equal(t, 0, w.Backlog())

	// writer keeps accepting after failures
	gw.mu.Lock()
	gw.failAll = false
	gw.mu.Unlock()
}
