package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Positions and regions are stored as delimited strings in the database so
// rows stay readable during migrations and in ad-hoc queries. These codecs
// are the single place the wire format is defined.

// ErrInvalidCoordinates is returned when a position string cannot be parsed
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ErrInvalidRegion is returned when a region string cannot be parsed
var ErrInvalidRegion = errors.New("invalid region provided")

// Position3D is a point in world space with view orientation.
type Position3D struct {
	X     float64
	Y     float64
	Z     float64
	Yaw   float64
	Pitch float64
}

// ParsePosition parses a string in the format "x,y,z" or "x,y,z,yaw,pitch"
// into a Position3D. Orientation components default to zero when absent.
func ParsePosition(coords string) (Position3D, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 3 && len(parts) != 5 {
		return Position3D{}, ErrInvalidCoordinates
	}
	vals := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Position3D{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	pos := Position3D{X: vals[0], Y: vals[1], Z: vals[2]}
	if len(vals) == 5 {
		pos.Yaw = vals[3]
		pos.Pitch = vals[4]
	}
	return pos, nil
}

// String formats the position in the stored wire format "x,y,z,yaw,pitch".
func (p Position3D) String() string {
	return fmt.Sprintf("%s,%s,%s,%s,%s",
		formatCoord(p.X), formatCoord(p.Y), formatCoord(p.Z),
		formatCoord(p.Yaw), formatCoord(p.Pitch))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Region is an axis-aligned box bounding a camera's valid viewing area.
type Region struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// ParseRegion parses a string in the format "x1,y1,z1;x2,y2,z2" into a
// Region. The two corners may be given in any order; the result is
// normalized so Min <= Max on every axis.
func ParseRegion(s string) (Region, error) {
	corners := strings.Split(s, ";")
	if len(corners) != 2 {
		return Region{}, ErrInvalidRegion
	}
	a, err := ParsePosition(corners[0])
	if err != nil {
		return Region{}, ErrInvalidRegion
	}
	b, err := ParsePosition(corners[1])
	if err != nil {
		return Region{}, ErrInvalidRegion
	}
	return Region{
		MinX: min(a.X, b.X), MinY: min(a.Y, b.Y), MinZ: min(a.Z, b.Z),
		MaxX: max(a.X, b.X), MaxY: max(a.Y, b.Y), MaxZ: max(a.Z, b.Z),
	}, nil
}

// String formats the region in the stored wire format "x1,y1,z1;x2,y2,z2".
func (r Region) String() string {
	return fmt.Sprintf("%s,%s,%s;%s,%s,%s",
		formatCoord(r.MinX), formatCoord(r.MinY), formatCoord(r.MinZ),
		formatCoord(r.MaxX), formatCoord(r.MaxY), formatCoord(r.MaxZ))
}

// Contains reports whether the position lies inside the region, inclusive
// of the boundary.
func (r Region) Contains(p Position3D) bool {
	return p.X >= r.MinX && p.X <= r.MaxX &&
		p.Y >= r.MinY && p.Y <= r.MaxY &&
		p.Z >= r.MinZ && p.Z <= r.MaxZ
}
