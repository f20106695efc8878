package registry

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nido-racing/trackcam/internal/geo"
	"github.com/nido-racing/trackcam/internal/model"
	"github.com/nido-racing/trackcam/internal/store"
)

// Camera is a spectator camera placed on a track. A camera is addressed by
// its track and index, unique together.
type Camera struct {
	TrackID  uint
	Index    int
	Region   geo.Region
	Position geo.Position3D
	Label    string
}

// Key addresses a camera slot.
type Key struct {
	TrackID uint
	Index   int
}

// Persister accepts queued persistence operations.
type Persister interface {
	Enqueue(op store.Op)
}

// CameraRegistry caches all cameras in memory. The cache is authoritative;
// database writes trail behind it and never block a lookup.
type CameraRegistry struct {
	m       sync.Mutex
	cameras map[Key]Camera
	writer  Persister
	locator *geo.Locator
	logger  zerolog.Logger
}

// New creates an empty registry.
func New(writer Persister, locator *geo.Locator, log zerolog.Logger) *CameraRegistry {
	return &CameraRegistry{
		cameras: make(map[Key]Camera),
		writer:  writer,
		locator: locator,
		logger:  log,
	}
}

// Upsert adds a camera or replaces the one already at its slot. The write
// is queued for persistence. Returns true when an existing camera was
// replaced.
func (r *CameraRegistry) Upsert(cam Camera) bool {
	key := Key{TrackID: cam.TrackID, Index: cam.Index}

	r.m.Lock()
	_, replaced := r.cameras[key]
	r.cameras[key] = cam
	r.m.Unlock()

	r.writer.Enqueue(store.Op{
		Kind:   store.OpUpsertCamera,
		Camera: cam.toModel(),
	})
	return replaced
}

// Get returns the camera at the given slot.
func (r *CameraRegistry) Get(trackID uint, index int) (Camera, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	cam, ok := r.cameras[Key{TrackID: trackID, Index: index}]
	return cam, ok
}

// Remove deletes the camera at the given slot and queues the row deletion.
// Returns false if the slot was empty.
func (r *CameraRegistry) Remove(trackID uint, index int) bool {
	key := Key{TrackID: trackID, Index: index}

	r.m.Lock()
	_, ok := r.cameras[key]
	if ok {
		delete(r.cameras, key)
	}
	r.m.Unlock()

	if !ok {
		return false
	}

	r.writer.Enqueue(store.Op{
		Kind:    store.OpDeleteCamera,
		TrackID: trackID,
		Idx:     index,
	})
	return true
}

// ListForTrack returns all cameras on a track ordered by index.
func (r *CameraRegistry) ListForTrack(trackID uint) []Camera {
	r.m.Lock()
	cams := make([]Camera, 0)
	for key, cam := range r.cameras {
		if key.TrackID == trackID {
			cams = append(cams, cam)
		}
	}
	r.m.Unlock()

	sort.Slice(cams, func(i, j int) bool {
		return cams[i].Index < cams[j].Index
	})
	return cams
}

// ListNearby returns the cameras of the track nearest to the given
// position. When no track can be resolved the result is empty, never an
// error.
func (r *CameraRegistry) ListNearby(pos geo.Position3D) []Camera {
	trackID, err := r.locator.NearestTrack(pos)
	if err != nil {
		r.logger.Debug().Err(err).Msg("No track resolved for position")
		return []Camera{}
	}
	return r.ListForTrack(trackID)
}

// Count returns the number of registered cameras.
func (r *CameraRegistry) Count() int {
	r.m.Lock()
	defer r.m.Unlock()
	return len(r.cameras)
}

// LoadAll replaces the cache with the persisted cameras. Startup cannot
// proceed without the load, so a query failure is returned to the caller.
// Rows that fail to parse are skipped with a warning; a duplicate slot
// keeps the last row read.
func (r *CameraRegistry) LoadAll(gw store.Gateway) error {
	rows, err := gw.ListCameras()
	if err != nil {
		return fmt.Errorf("loading cameras: %w", err)
	}

	cams := make(map[Key]Camera, len(rows))
	for _, row := range rows {
		cam, err := fromModel(row)
		if err != nil {
			r.logger.Warn().Err(err).
				Uint("trackId", row.TrackID).
				Int("index", row.Idx).
				Msg("Skipping unreadable camera row")
			continue
		}
		cams[Key{TrackID: cam.TrackID, Index: cam.Index}] = cam
	}

	r.m.Lock()
	r.cameras = cams
	r.m.Unlock()

	r.logger.Info().Int("cameras", len(cams)).Msg("Loaded cameras from database")
	return nil
}

func (c Camera) toModel() model.Camera {
	label := sql.NullString{}
	if c.Label != "" {
		label = sql.NullString{String: c.Label, Valid: true}
	}
	return model.Camera{
		TrackID:  c.TrackID,
		Idx:      c.Index,
		Region:   c.Region.String(),
		Position: c.Position.String(),
		Label:    label,
	}
}

func fromModel(row model.Camera) (Camera, error) {
	region, err := geo.ParseRegion(row.Region)
	if err != nil {
		return Camera{}, fmt.Errorf("region: %w", err)
	}
	pos, err := geo.ParsePosition(row.Position)
	if err != nil {
		return Camera{}, fmt.Errorf("position: %w", err)
	}
	return Camera{
		TrackID:  row.TrackID,
		Index:    row.Idx,
		Region:   region,
		Position: pos,
		Label:    row.Label.String,
	}, nil
}
