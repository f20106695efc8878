package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nido-racing/trackcam/internal/dispatcher"
	"github.com/nido-racing/trackcam/internal/geo"
	"github.com/nido-racing/trackcam/internal/registry"
	"github.com/nido-racing/trackcam/internal/session"
)

// Dependencies holds the collaborators the command handlers need.
type Dependencies struct {
	Registry *registry.CameraRegistry
	Sessions *session.Manager
	Logger   zerolog.Logger
}

// Service bridges dispatcher commands to the registry and session manager.
// Handlers only parse arguments and format replies; all state lives behind
// the dependencies.
type Service struct {
	deps Dependencies
}

// NewService creates a handler service.
func NewService(deps Dependencies) *Service {
	return &Service{deps: deps}
}

// RegisterHandlers wires every command into the dispatcher. Player lifecycle
// commands are buffered so a database lookup on connect never stalls the
// caller.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(":PLAYER:CONNECT:", s.PlayerConnect, dispatcher.Buffered(256), dispatcher.Logged())
	d.Register(":PLAYER:DISCONNECT:", s.PlayerDisconnect, dispatcher.Buffered(256), dispatcher.Logged())

	d.Register(":CAM:SAVE:", s.CameraSave, dispatcher.Logged())
	d.Register(":CAM:REMOVE:", s.CameraRemove, dispatcher.Logged())
	d.Register(":CAM:LIST:", s.CameraList, dispatcher.Logged())
	d.Register(":CAM:NEAR:", s.CameraNear, dispatcher.Logged())
	d.Register(":CAM:FOLLOW:", s.Follow, dispatcher.Logged())
	d.Register(":CAM:UNFOLLOW:", s.Unfollow, dispatcher.Logged())
	d.Register(":CAM:TOGGLE:", s.Toggle, dispatcher.Logged())
}

// PlayerConnect handles [playerUUID].
func (s *Service) PlayerConnect(e dispatcher.Event) (any, error) {
	id, err := parsePlayerID(e.Args, 0)
	if err != nil {
		return nil, err
	}
	s.deps.Sessions.Connect(id)
	return "connected", nil
}

// PlayerDisconnect handles [playerUUID].
func (s *Service) PlayerDisconnect(e dispatcher.Event) (any, error) {
	id, err := parsePlayerID(e.Args, 0)
	if err != nil {
		return nil, err
	}
	s.deps.Sessions.Disconnect(id)
	return "disconnected", nil
}

// CameraSave handles [trackID, index, region, position, label?].
func (s *Service) CameraSave(e dispatcher.Event) (any, error) {
	if len(e.Args) < 4 {
		return nil, fmt.Errorf("expected at least 4 args, got %d", len(e.Args))
	}
	trackID, index, err := parseSlot(e.Args[0], e.Args[1])
	if err != nil {
		return nil, err
	}
	region, err := geo.ParseRegion(e.Args[2])
	if err != nil {
		return nil, fmt.Errorf("region: %w", err)
	}
	pos, err := geo.ParsePosition(e.Args[3])
	if err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}
	label := ""
	if len(e.Args) > 4 {
		label = e.Args[4]
	}

	replaced := s.deps.Registry.Upsert(registry.Camera{
		TrackID:  trackID,
		Index:    index,
		Region:   region,
		Position: pos,
		Label:    label,
	})
	if replaced {
		return "replaced", nil
	}
	return "saved", nil
}

// CameraRemove handles [trackID, index].
func (s *Service) CameraRemove(e dispatcher.Event) (any, error) {
	if len(e.Args) < 2 {
		return nil, fmt.Errorf("expected 2 args, got %d", len(e.Args))
	}
	trackID, index, err := parseSlot(e.Args[0], e.Args[1])
	if err != nil {
		return nil, err
	}
	if !s.deps.Registry.Remove(trackID, index) {
		return nil, fmt.Errorf("no camera at track %d index %d", trackID, index)
	}
	return "removed", nil
}

// CameraList handles [trackID] and returns the player-facing index listing.
func (s *Service) CameraList(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("expected 1 arg, got %d", len(e.Args))
	}
	trackID, err := strconv.ParseUint(e.Args[0], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("trackId: %w", err)
	}
	return listMessage(s.deps.Registry.ListForTrack(uint(trackID))), nil
}

// CameraNear handles [position] and lists the cameras of the nearest track.
func (s *Service) CameraNear(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("expected 1 arg, got %d", len(e.Args))
	}
	pos, err := geo.ParsePosition(e.Args[0])
	if err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}
	return listMessage(s.deps.Registry.ListNearby(pos)), nil
}

// Follow handles [followerUUID, targetUUID].
func (s *Service) Follow(e dispatcher.Event) (any, error) {
	follower, err := parsePlayerID(e.Args, 0)
	if err != nil {
		return nil, err
	}
	target, err := parsePlayerID(e.Args, 1)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Sessions.Follow(follower, target); err != nil {
		return nil, err
	}
	return "following", nil
}

// Unfollow handles [playerUUID].
func (s *Service) Unfollow(e dispatcher.Event) (any, error) {
	id, err := parsePlayerID(e.Args, 0)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Sessions.StopFollowing(id); err != nil {
		return nil, err
	}
	return "stopped", nil
}

// Toggle handles [playerUUID, cameraIndex].
func (s *Service) Toggle(e dispatcher.Event) (any, error) {
	id, err := parsePlayerID(e.Args, 0)
	if err != nil {
		return nil, err
	}
	if len(e.Args) < 2 {
		return nil, fmt.Errorf("expected 2 args, got %d", len(e.Args))
	}
	index, err := strconv.Atoi(e.Args[1])
	if err != nil {
		return nil, fmt.Errorf("cameraIndex: %w", err)
	}
	disabled, err := s.deps.Sessions.ToggleCamera(id, index)
	if err != nil {
		return nil, err
	}
	if disabled {
		return "disabled", nil
	}
	return "enabled", nil
}

func parsePlayerID(args []string, pos int) (uuid.UUID, error) {
	if len(args) <= pos {
		return uuid.Nil, fmt.Errorf("missing player uuid at arg %d", pos)
	}
	id, err := uuid.Parse(args[pos])
	if err != nil {
		return uuid.Nil, fmt.Errorf("player uuid: %w", err)
	}
	return id, nil
}

func parseSlot(trackArg, indexArg string) (uint, int, error) {
	trackID, err := strconv.ParseUint(trackArg, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("trackId: %w", err)
	}
	index, err := strconv.Atoi(indexArg)
	if err != nil {
		return 0, 0, fmt.Errorf("index: %w", err)
	}
	return uint(trackID), index, nil
}

func listMessage(cams []registry.Camera) string {
	if len(cams) == 0 {
		return "This track has no cameras"
	}
	indices := make([]string, len(cams))
	for i, cam := range cams {
		indices[i] = strconv.Itoa(cam.Index)
	}
	return "This track has cameras with index " + strings.Join(indices, ",")
}
