package model

import (
	"database/sql"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Camera{},
	&CameraPlayer{},
}

// Camera is a fixed spectator viewpoint on a track.
// Identity is the (TrackID, Idx) pair; both are immutable once assigned.
type Camera struct {
	gorm.Model
	TrackID  uint           `json:"trackId" gorm:"uniqueIndex:idx_cameras_track_idx;not null"`
	Idx      int            `json:"index" gorm:"column:idx;uniqueIndex:idx_cameras_track_idx;not null"`
	Region   string         `json:"region" gorm:"size:255;not null"`
	Position string         `json:"position" gorm:"size:255;not null"`
	Label    sql.NullString `json:"label" gorm:"size:255"`
}

func (*Camera) TableName() string {
	return "cameras"
}

// CameraPlayer is the persisted per-player viewing state.
// Disabled holds the player's disabled camera indices as a JSON array.
type CameraPlayer struct {
	gorm.Model
	UUID     string         `json:"uuid" gorm:"size:36;uniqueIndex;not null"`
	Disabled datatypes.JSON `json:"disabled"`
}

func (*CameraPlayer) TableName() string {
	return "camera_players"
}

// EncodeDisabled serializes a set of disabled camera indices for storage.
func EncodeDisabled(indices []int) datatypes.JSON {
	if indices == nil {
		indices = []int{}
	}
	raw, err := json.Marshal(indices)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}

// DecodeDisabled parses a stored disabled-index column. A missing or
// malformed column decodes to an empty set rather than an error, so a
// damaged row never blocks a player from connecting.
func DecodeDisabled(raw datatypes.JSON) []int {
	if len(raw) == 0 {
		return nil
	}
	var indices []int
	if err := json.Unmarshal(raw, &indices); err != nil {
		return nil
	}
	return indices
}
