package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/nido-racing/trackcam/internal/model"
	"github.com/nido-racing/trackcam/internal/queue"
)

// OpKind identifies a persistence operation.
type OpKind int

const (
	OpUpsertCamera OpKind = iota
	OpDeleteCamera
	OpInsertPlayer
	OpSavePlayer
)

// String returns the operation name for logging.
func (k OpKind) String() string {
	switch k {
	case OpUpsertCamera:
		return "upsertCamera"
	case OpDeleteCamera:
		return "deleteCamera"
	case OpInsertPlayer:
		return "insertPlayer"
	case OpSavePlayer:
		return "savePlayer"
	default:
		return "unknown"
	}
}

// Op is a single queued persistence operation.
type Op struct {
	Kind       OpKind
	Camera     model.Camera
	TrackID    uint
	Idx        int
	PlayerUUID string
	Disabled   datatypes.JSON
}

// AsyncWriter applies persistence operations in the background. Writes are
// best effort: a failed operation is logged and skipped, never retried, and
// never surfaces to the caller.
type AsyncWriter struct {
	gateway  Gateway
	queue    *queue.Queue[Op]
	maxQueue int
	interval time.Duration
	logger   zerolog.Logger

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewAsyncWriter creates a writer draining to the given gateway. maxQueue
// bounds the backlog; operations beyond it are dropped with a warning.
func NewAsyncWriter(gw Gateway, maxQueue int, interval time.Duration, log zerolog.Logger) *AsyncWriter {
	return &AsyncWriter{
		gateway:  gw,
		queue:    queue.New[Op](),
		maxQueue: maxQueue,
		interval: interval,
		logger:   log,
		done:     make(chan struct{}),
	}
}

// Start launches the background flush loop.
func (w *AsyncWriter) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.flush()
			case <-w.done:
				w.flush()
				return
			}
		}
	}()
}

// Enqueue queues an operation without blocking the caller.
func (w *AsyncWriter) Enqueue(op Op) {
	if w.queue.Len() >= w.maxQueue {
		w.logger.Warn().
			Str("op", op.Kind.String()).
			Int("backlog", w.queue.Len()).
			Msg("Write queue full, dropping operation")
		return
	}
	w.queue.Push(op)
}

// Backlog returns the number of queued operations.
func (w *AsyncWriter) Backlog() int {
	return w.queue.Len()
}

// Close stops the flush loop after draining the remaining backlog.
func (w *AsyncWriter) Close() {
	w.once.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}

func (w *AsyncWriter) flush() {
	ops := w.queue.GetAndEmpty()
	for _, op := range ops {
		if err := w.apply(op); err != nil {
			w.logger.Error().Err(err).
				Str("op", op.Kind.String()).
				Uint("trackId", op.TrackID).
				Int("index", op.Idx).
				Str("player", op.PlayerUUID).
				Msg("Persistence operation failed")
		}
	}
}

func (w *AsyncWriter) apply(op Op) error {
	switch op.Kind {
	case OpUpsertCamera:
		return w.gateway.UpsertCamera(op.Camera)
	case OpDeleteCamera:
		return w.gateway.DeleteCamera(op.TrackID, op.Idx)
	case OpInsertPlayer:
		return w.gateway.InsertPlayer(model.CameraPlayer{
			UUID:     op.PlayerUUID,
			Disabled: op.Disabled,
		})
	case OpSavePlayer:
		return w.gateway.SavePlayerDisabled(op.PlayerUUID, op.Disabled)
	}
	return nil
}
