package store

import (
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nido-racing/trackcam/internal/model"
)

// Gateway is the persistence boundary for cameras and players. All queries
// are parameterized through the ORM.
type Gateway interface {
	UpsertCamera(cam model.Camera) error
	DeleteCamera(trackID uint, idx int) error
	ListCameras() ([]model.Camera, error)
	InsertPlayer(p model.CameraPlayer) error
	SavePlayerDisabled(playerUUID string, disabled datatypes.JSON) error
	FindPlayer(playerUUID string) (*model.CameraPlayer, error)
}

// GormGateway implements Gateway on a gorm.DB connection.
type GormGateway struct {
	db *gorm.DB
}

// NewGormGateway creates a gateway on the given connection.
func NewGormGateway(db *gorm.DB) *GormGateway {
	return &GormGateway{db: db}
}

// UpsertCamera inserts a camera row or updates the existing one with the
// same track and index.
func (g *GormGateway) UpsertCamera(cam model.Camera) error {
	err := g.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "track_id"}, {Name: "idx"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"region", "position", "label", "updated_at",
		}),
	}).Create(&cam).Error
	if err != nil {
		return fmt.Errorf("upserting camera %d:%d: %w", cam.TrackID, cam.Idx, err)
	}
	return nil
}

// DeleteCamera removes the camera row for the given track and index.
// Rows are hard deleted so the slot can be reused.
func (g *GormGateway) DeleteCamera(trackID uint, idx int) error {
	err := g.db.Unscoped().
		Where("track_id = ? AND idx = ?", trackID, idx).
		Delete(&model.Camera{}).Error
	if err != nil {
		return fmt.Errorf("deleting camera %d:%d: %w", trackID, idx, err)
	}
	return nil
}

// ListCameras returns all persisted cameras ordered by track and index.
func (g *GormGateway) ListCameras() ([]model.Camera, error) {
	var cams []model.Camera
	err := g.db.Order("track_id, idx").Find(&cams).Error
	if err != nil {
		return nil, fmt.Errorf("listing cameras: %w", err)
	}
	return cams, nil
}

// InsertPlayer creates a player row. A concurrent insert for the same UUID
// is treated as already-present rather than an error.
func (g *GormGateway) InsertPlayer(p model.CameraPlayer) error {
	err := g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoNothing: true,
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("inserting player %s: %w", p.UUID, err)
	}
	return nil
}

// SavePlayerDisabled updates the disabled camera set for a player.
func (g *GormGateway) SavePlayerDisabled(playerUUID string, disabled datatypes.JSON) error {
	err := g.db.Model(&model.CameraPlayer{}).
		Where("uuid = ?", playerUUID).
		Update("disabled", disabled).Error
	if err != nil {
		return fmt.Errorf("saving player %s: %w", playerUUID, err)
	}
	return nil
}

// FindPlayer returns the row for the given UUID, or nil if none exists.
func (g *GormGateway) FindPlayer(playerUUID string) (*model.CameraPlayer, error) {
	var p model.CameraPlayer
	err := g.db.Where("uuid = ?", playerUUID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding player %s: %w", playerUUID, err)
	}
	return &p, nil
}
