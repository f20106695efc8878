package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrNoTracks is returned when the locator has no track geometry to search
var ErrNoTracks = errors.New("no tracks configured")

// TrackDef is the on-disk shape of a track entry in the tracks file.
// Centerlines are given either in planar world coordinates or, when
// Geographic is set, as EPSG:4326 longitude/latitude pairs.
type TrackDef struct {
	ID         uint        `json:"id"`
	Name       string      `json:"name"`
	Geographic bool        `json:"geographic"`
	Centerline [][]float64 `json:"centerline"`
}

// Track is a race course with a planar centerline used for proximity lookups.
type Track struct {
	ID         uint
	Name       string
	Centerline geom.LineString
}

// BuildTrack converts a TrackDef into a Track. Geographic centerlines are
// projected from EPSG:4326 to EPSG:3857 so distance math stays planar.
func BuildTrack(def TrackDef) (Track, error) {
	if len(def.Centerline) < 2 {
		return Track{}, fmt.Errorf("track %d: centerline must have at least 2 points, got %d", def.ID, len(def.Centerline))
	}

	var project func(x, y float64) (float64, float64)
	if def.Geographic {
		f := wgs84.EPSG().Transform(4326, 3857)
		project = func(x, y float64) (float64, float64) {
			px, py, _ := f(x, y, 0)
			return px, py
		}
	} else {
		project = func(x, y float64) (float64, float64) { return x, y }
	}

	flat := make([]float64, 0, len(def.Centerline)*2)
	for i, coord := range def.Centerline {
		if len(coord) < 2 {
			return Track{}, fmt.Errorf("track %d: coordinate %d has insufficient values", def.ID, i)
		}
		x, y := project(coord[0], coord[1])
		flat = append(flat, x, y)
	}

	seq := geom.NewSequence(flat, geom.DimXY)
	return Track{
		ID:         def.ID,
		Name:       def.Name,
		Centerline: geom.NewLineString(seq),
	}, nil
}

// LoadTracks reads a JSON tracks file into Track values.
func LoadTracks(path string) ([]Track, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading tracks file: %w", err)
	}

	var defs []TrackDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("error parsing tracks file: %w", err)
	}

	tracks := make([]Track, 0, len(defs))
	for _, def := range defs {
		track, err := BuildTrack(def)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// Locator resolves world positions to the nearest track centerline.
type Locator struct {
	tracks []Track
}

// NewLocator creates a Locator over the given tracks.
func NewLocator(tracks []Track) *Locator {
	return &Locator{tracks: tracks}
}

// NearestTrack returns the ID of the track whose centerline is closest to
// the given position. Elevation is ignored; proximity is planar.
func (l *Locator) NearestTrack(pos Position3D) (uint, error) {
	point := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: pos.X, Y: pos.Y},
		Type: geom.DimXY,
	})

	var (
		best     uint
		bestDist float64
		found    bool
	)
	for _, track := range l.tracks {
		dist, ok := geom.Distance(point.AsGeometry(), track.Centerline.AsGeometry())
		if !ok {
			continue
		}
		if !found || dist < bestDist {
			best = track.ID
			bestDist = dist
			found = true
		}
	}
	if !found {
		return 0, ErrNoTracks
	}
	return best, nil
}
