package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nido-racing/trackcam/internal/model"
	"github.com/nido-racing/trackcam/internal/store"
)

var (
	// ErrNotConnected is returned when the player has no active session.
	ErrNotConnected = errors.New("player not connected")
	// ErrInvalidTarget is returned when the follow target cannot be followed.
	ErrInvalidTarget = errors.New("invalid follow target")
	// ErrSelfFollow is returned when a player tries to view themselves.
	// Matches ErrInvalidTarget under errors.Is.
	ErrSelfFollow = fmt.Errorf("%w: cannot follow yourself", ErrInvalidTarget)
)

// PlayerSession is the per-player viewing state. Follow relationships are
// held as player IDs, never object references, so a stale session can never
// be reached through another one.
type PlayerSession struct {
	PlayerID  uuid.UUID
	Disabled  map[int]struct{}
	Following uuid.UUID
	Followers map[uuid.UUID]struct{}
}

// Persister accepts queued persistence operations.
type Persister interface {
	Enqueue(op store.Op)
}

// Manager owns all player sessions and the follow graph between them.
// Every edge mutation happens under the manager lock so the graph is
// always bidirectionally consistent.
type Manager struct {
	m        sync.Mutex
	sessions map[uuid.UUID]*PlayerSession
	writer   Persister
	gateway  store.Gateway
	logger   zerolog.Logger
}

// NewManager creates an empty session manager.
func NewManager(writer Persister, gw store.Gateway, log zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[uuid.UUID]*PlayerSession),
		writer:   writer,
		gateway:  gw,
		logger:   log,
	}
}

// Connect creates a session for the player, restoring their disabled camera
// set from the database when a row exists. First-time players get a fresh
// session and a queued insert. Reconnecting an already-connected player is
// a no-op. A failed lookup falls back to a fresh session so a database
// outage never blocks a join.
func (m *Manager) Connect(playerID uuid.UUID) *PlayerSession {
	m.m.Lock()
	if s, ok := m.sessions[playerID]; ok {
		m.m.Unlock()
		return s
	}
	m.m.Unlock()

	disabled := make(map[int]struct{})
	fresh := true

	row, err := m.gateway.FindPlayer(playerID.String())
	if err != nil {
		m.logger.Warn().Err(err).
			Str("player", playerID.String()).
			Msg("Player lookup failed, starting fresh session")
	} else if row != nil {
		fresh = false
		for _, idx := range model.DecodeDisabled(row.Disabled) {
			disabled[idx] = struct{}{}
		}
	}

	s := &PlayerSession{
		PlayerID:  playerID,
		Disabled:  disabled,
		Following: uuid.Nil,
		Followers: make(map[uuid.UUID]struct{}),
	}

	m.m.Lock()
	if existing, ok := m.sessions[playerID]; ok {
		// lost the race to another connect
		m.m.Unlock()
		return existing
	}
	m.sessions[playerID] = s
	m.m.Unlock()

	if fresh && err == nil {
		m.writer.Enqueue(store.Op{
			Kind:       store.OpInsertPlayer,
			PlayerUUID: playerID.String(),
			Disabled:   model.EncodeDisabled(nil),
		})
	}

	m.logger.Debug().Str("player", playerID.String()).Bool("fresh", fresh).Msg("Player connected")
	return s
}

// Get returns the session for a connected player.
func (m *Manager) Get(playerID uuid.UUID) (*PlayerSession, bool) {
	m.m.Lock()
	defer m.m.Unlock()
	s, ok := m.sessions[playerID]
	return s, ok
}

// Follow points the follower's view at the target. A player following
// someone else first has that edge removed, so a player always follows at
// most one target.
func (m *Manager) Follow(followerID, targetID uuid.UUID) error {
	if followerID == targetID {
		return ErrSelfFollow
	}

	m.m.Lock()
	defer m.m.Unlock()

	follower, ok := m.sessions[followerID]
	if !ok {
		return ErrNotConnected
	}
	target, ok := m.sessions[targetID]
	if !ok {
		return ErrInvalidTarget
	}

	m.unfollowLocked(follower)
	follower.Following = targetID
	target.Followers[followerID] = struct{}{}
	return nil
}

// StopFollowing clears the player's outgoing follow edge, if any.
func (m *Manager) StopFollowing(playerID uuid.UUID) error {
	m.m.Lock()
	defer m.m.Unlock()

	s, ok := m.sessions[playerID]
	if !ok {
		return ErrNotConnected
	}
	m.unfollowLocked(s)
	return nil
}

// Following returns the ID of the player being viewed, or uuid.Nil.
func (m *Manager) Following(playerID uuid.UUID) (uuid.UUID, error) {
	m.m.Lock()
	defer m.m.Unlock()

	s, ok := m.sessions[playerID]
	if !ok {
		return uuid.Nil, ErrNotConnected
	}
	return s.Following, nil
}

// Followers returns the IDs of the players currently viewing this player.
func (m *Manager) Followers(playerID uuid.UUID) ([]uuid.UUID, error) {
	m.m.Lock()
	defer m.m.Unlock()

	s, ok := m.sessions[playerID]
	if !ok {
		return nil, ErrNotConnected
	}
	ids := make([]uuid.UUID, 0, len(s.Followers))
	for id := range s.Followers {
		ids = append(ids, id)
	}
	return ids, nil
}

// ToggleCamera flips a camera index in the player's disabled set and
// returns true when the camera is now disabled.
func (m *Manager) ToggleCamera(playerID uuid.UUID, cameraIndex int) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	s, ok := m.sessions[playerID]
	if !ok {
		return false, ErrNotConnected
	}
	if _, disabled := s.Disabled[cameraIndex]; disabled {
		delete(s.Disabled, cameraIndex)
		return false, nil
	}
	s.Disabled[cameraIndex] = struct{}{}
	return true, nil
}

// DisabledCameras returns the player's disabled camera indices.
func (m *Manager) DisabledCameras(playerID uuid.UUID) ([]int, error) {
	m.m.Lock()
	defer m.m.Unlock()

	s, ok := m.sessions[playerID]
	if !ok {
		return nil, ErrNotConnected
	}
	return disabledSlice(s), nil
}

// Disconnect tears down the player's session. The player's own follow edge
// and every incoming edge are removed before the session is dropped, then
// the disabled set is queued for a final save. Unknown players are a no-op.
func (m *Manager) Disconnect(playerID uuid.UUID) {
	m.m.Lock()
	s, ok := m.sessions[playerID]
	if !ok {
		m.m.Unlock()
		return
	}

	m.unfollowLocked(s)
	for followerID := range s.Followers {
		if follower, ok := m.sessions[followerID]; ok {
			follower.Following = uuid.Nil
		}
	}
	s.Followers = make(map[uuid.UUID]struct{})

	disabled := disabledSlice(s)
	delete(m.sessions, playerID)
	m.m.Unlock()

	m.writer.Enqueue(store.Op{
		Kind:       store.OpSavePlayer,
		PlayerUUID: playerID.String(),
		Disabled:   model.EncodeDisabled(disabled),
	})

	m.logger.Debug().Str("player", playerID.String()).Msg("Player disconnected")
}

// Count returns the number of connected players.
func (m *Manager) Count() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.sessions)
}

// FollowEdges returns the number of active follow relationships.
func (m *Manager) FollowEdges() int {
	m.m.Lock()
	defer m.m.Unlock()
	edges := 0
	for _, s := range m.sessions {
		if s.Following != uuid.Nil {
			edges++
		}
	}
	return edges
}

// unfollowLocked removes the session's outgoing edge. Caller holds m.m.
func (m *Manager) unfollowLocked(s *PlayerSession) {
	if s.Following == uuid.Nil {
		return
	}
	if target, ok := m.sessions[s.Following]; ok {
		delete(target.Followers, s.PlayerID)
	}
	s.Following = uuid.Nil
}

func disabledSlice(s *PlayerSession) []int {
	out := make([]int, 0, len(s.Disabled))
	for idx := range s.Disabled {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
