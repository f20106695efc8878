package metrics

import (
	"context"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
)

// PointWriter accepts measurement points. Satisfied by Manager.
type PointWriter interface {
	WritePoint(ctx context.Context, point *influxdb2_write.Point) error
}

// Sources expose the runtime counts sampled by the monitor.
type Sources struct {
	Sessions    func() int
	FollowEdges func() int
	Cameras     func() int
	WriteQueue  func() int
}

// Monitor samples service state on an interval and ships it as a single
// measurement per tick.
type Monitor struct {
	writer   PointWriter
	sources  Sources
	interval time.Duration
	logger   zerolog.Logger

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewMonitor creates a monitor sampling the given sources.
func NewMonitor(writer PointWriter, sources Sources, interval time.Duration, log zerolog.Logger) *Monitor {
	return &Monitor{
		writer:   writer,
		sources:  sources,
		interval: interval,
		logger:   log,
		done:     make(chan struct{}),
	}
}

// Start launches the sampling loop.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.done:
				return
			}
		}
	}()
}

// Stop halts the sampling loop.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

func (m *Monitor) sample() {
	point := influxdb2.NewPointWithMeasurement("trackcam_state").
		AddField("sessions", m.sources.Sessions()).
		AddField("follow_edges", m.sources.FollowEdges()).
		AddField("cameras", m.sources.Cameras()).
		AddField("write_queue", m.sources.WriteQueue()).
		SetTime(time.Now())

	if err := m.writer.WritePoint(context.Background(), point); err != nil {
		m.logger.Error().Err(err).Msg("Error writing state sample")
	}
}
