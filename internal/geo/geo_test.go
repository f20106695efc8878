package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Position3D
		wantErr bool
	}{
		{
			name:  "three components",
			input: "100.5,64,-200.25",
			want:  Position3D{X: 100.5, Y: 64, Z: -200.25},
		},
		{
			name:  "five components",
			input: "1,2,3,90,-45.5",
			want:  Position3D{X: 1, Y: 2, Z: 3, Yaw: 90, Pitch: -45.5},
		},
		{
			name:  "whitespace tolerated",
			input: " 1 , 2 , 3 ",
			want:  Position3D{X: 1, Y: 2, Z: 3},
		},
		{
			name:    "too few components",
			input:   "1,2",
			wantErr: true,
		},
		{
			name:    "four components",
			input:   "1,2,3,4",
			wantErr: true,
		},
		{
			name:    "non-numeric",
			input:   "1,2,abc",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePosition(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCoordinates)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPositionString_RoundTrip(t *testing.T) {
	pos := Position3D{X: 100.5, Y: 64, Z: -200.25, Yaw: 180, Pitch: -12.5}
	parsed, err := ParsePosition(pos.String())
	require.NoError(t, err)
	assert.Equal(t, pos, parsed)
}

func TestParseRegion(t *testing.T) {
	region, err := ParseRegion("10,0,10;-10,20,-10")
	require.NoError(t, err)

	// corners normalized so Min <= Max on every axis
	assert.Equal(t, Region{
		MinX: -10, MinY: 0, MinZ: -10,
		MaxX: 10, MaxY: 20, MaxZ: 10,
	}, region)
}

func TestParseRegion_Invalid(t *testing.T) {
	for _, input := range []string{"", "1,2,3", "1,2,3;4,5", "a,b,c;1,2,3", "1,2,3;4,5,6;7,8,9"} {
		_, err := ParseRegion(input)
		assert.ErrorIs(t, err, ErrInvalidRegion, "input %q", input)
	}
}

func TestRegionContains(t *testing.T) {
	region := Region{MinX: -5, MinY: 0, MinZ: -5, MaxX: 5, MaxY: 10, MaxZ: 5}

	assert.True(t, region.Contains(Position3D{X: 0, Y: 5, Z: 0}))
	assert.True(t, region.Contains(Position3D{X: 5, Y: 10, Z: 5}), "boundary is inclusive")
	assert.False(t, region.Contains(Position3D{X: 6, Y: 5, Z: 0}))
	assert.False(t, region.Contains(Position3D{X: 0, Y: -1, Z: 0}))
}

func TestRegionString_RoundTrip(t *testing.T) {
	region := Region{MinX: -10, MinY: 0, MinZ: -10, MaxX: 10, MaxY: 20, MaxZ: 10}
	parsed, err := ParseRegion(region.String())
	require.NoError(t, err)
	assert.Equal(t, region, parsed)
}

func TestBuildTrack(t *testing.T) {
	track, err := BuildTrack(TrackDef{
		ID:         7,
		Name:       "Sunrise Circuit",
		Centerline: [][]float64{{0, 0}, {100, 0}, {100, 100}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), track.ID)
	assert.Equal(t, "Sunrise Circuit", track.Name)
	assert.Equal(t, 3, track.Centerline.Coordinates().Length())
}

func TestBuildTrack_TooFewPoints(t *testing.T) {
	_, err := BuildTrack(TrackDef{ID: 1, Centerline: [][]float64{{0, 0}}})
	assert.Error(t, err)
}

func TestBuildTrack_Geographic(t *testing.T) {
	// geographic centerlines are projected to planar meters; the projected
	// coordinates must differ from the raw lon/lat input
	track, err := BuildTrack(TrackDef{
		ID:         2,
		Geographic: true,
		Centerline: [][]float64{{9.281, 45.618}, {9.290, 45.620}},
	})
	require.NoError(t, err)

	seq := track.Centerline.Coordinates()
	assert.Greater(t, seq.GetXY(0).X, 100000.0, "expected projected easting in meters")
}

func TestNearestTrack(t *testing.T) {
	trackA, err := BuildTrack(TrackDef{ID: 1, Centerline: [][]float64{{0, 0}, {100, 0}}})
	require.NoError(t, err)
	trackB, err := BuildTrack(TrackDef{ID: 2, Centerline: [][]float64{{0, 500}, {100, 500}}})
	require.NoError(t, err)

	locator := NewLocator([]Track{trackA, trackB})

	id, err := locator.NearestTrack(Position3D{X: 50, Y: 20})
	require.NoError(t, err)
	assert.Equal(t, uint(1), id)

	id, err = locator.NearestTrack(Position3D{X: 50, Y: 480})
	require.NoError(t, err)
	assert.Equal(t, uint(2), id)
}

func TestNearestTrack_NoTracks(t *testing.T) {
	locator := NewLocator(nil)
	_, err := locator.NearestTrack(Position3D{})
	assert.ErrorIs(t, err, ErrNoTracks)
}
