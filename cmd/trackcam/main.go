package main

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/nido-racing/trackcam/internal/config"
	"github.com/nido-racing/trackcam/internal/database"
	"github.com/nido-racing/trackcam/internal/dispatcher"
	"github.com/nido-racing/trackcam/internal/geo"
	"github.com/nido-racing/trackcam/internal/handlers"
	"github.com/nido-racing/trackcam/internal/logging"
	"github.com/nido-racing/trackcam/internal/metrics"
	"github.com/nido-racing/trackcam/internal/model"
	"github.com/nido-racing/trackcam/internal/registry"
	"github.com/nido-racing/trackcam/internal/session"
	"github.com/nido-racing/trackcam/internal/store"
)

func main() {
	sessionStart := time.Now().UTC()

	if err := config.Load("."); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logs dir:", err)
		os.Exit(1)
	}
	logFile, err := os.Create(logging.LogFilePath(logsDir, "trackcam", sessionStart))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create log file:", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logger := logging.New(logFile, config.GetString("logLevel"))

	mode := "run"
	if len(os.Args) > 1 {
		mode = strings.ToLower(os.Args[1])
	}

	switch mode {
	case "run":
		err = run(logger)
	case "setupdb":
		err = setupDB(logger)
	case "demo":
		err = demo(logger)
	default:
		err = fmt.Errorf("unknown mode %q (expected run, setupdb or demo)", mode)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Exiting")
	}
}

// connectDatabase opens the primary store and migrates the schema.
func connectDatabase(logger zerolog.Logger) (*database.Manager, error) {
	dbm := database.NewManager(logger)
	if err := dbm.Connect(); err != nil {
		return nil, err
	}
	if err := dbm.Setup(); err != nil {
		return nil, err
	}
	return dbm, nil
}

func run(logger zerolog.Logger) error {
	dbm, err := connectDatabase(logger)
	if err != nil {
		return err
	}

	gateway := store.NewGormGateway(dbm.DB)

	flushInterval, err := time.ParseDuration(config.GetString("writer.flushInterval"))
	if err != nil {
		return fmt.Errorf("writer.flushInterval: %w", err)
	}
	writer := store.NewAsyncWriter(gateway, config.GetInt("writer.queueSize"), flushInterval, logger)
	writer.Start()
	defer writer.Close()

	locator, err := buildLocator(logger)
	if err != nil {
		return err
	}

	reg := registry.New(writer, locator, logger)
	if err := reg.LoadAll(gateway); err != nil {
		return err
	}
	sessions := session.NewManager(writer, gateway, logger)

	disp, err := dispatcher.New(logging.NewDispatcherLogger(logger))
	if err != nil {
		return err
	}
	svc := handlers.NewService(handlers.Dependencies{
		Registry: reg,
		Sessions: sessions,
		Logger:   logger,
	})
	svc.RegisterHandlers(disp)

	if viper.GetBool("influx.enabled") {
		influx := metrics.NewManager(logger, logging.LogFilePath(config.GetString("logsDir"), "trackcam_metrics_backup", time.Now().UTC())+".gz")
		if err := influx.Connect(); err != nil {
			logger.Warn().Err(err).Msg("Metrics reporting unavailable")
		} else {
			defer influx.Close()
			monitor := metrics.NewMonitor(influx, metrics.Sources{
				Sessions:    sessions.Count,
				FollowEdges: sessions.FollowEdges,
				Cameras:     reg.Count,
				WriteQueue:  writer.Backlog,
			}, 10*time.Second, logger)
			monitor.Start()
			defer monitor.Stop()
		}
	}

	logger.Info().Msg("Ready, reading commands from stdin")
	return serve(disp, logger)
}

// serve reads pipe-delimited commands from stdin until EOF or SIGINT.
// Line format: COMMAND|arg1|arg2|...
func serve(disp *dispatcher.Dispatcher, logger zerolog.Logger) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigs:
			logger.Info().Str("signal", sig.String()).Msg("Shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				logger.Info().Msg("Input closed, shutting down")
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			parts := strings.Split(line, "|")
			result, err := disp.Dispatch(dispatcher.Event{
				Command:   parts[0],
				Args:      parts[1:],
				Timestamp: time.Now().UTC(),
			})
			if err != nil {
				fmt.Println("ERR", err)
				continue
			}
			fmt.Println("OK", result)
		}
	}
}

func buildLocator(logger zerolog.Logger) (*geo.Locator, error) {
	tracksFile := config.GetString("tracksFile")
	tracks, err := geo.LoadTracks(tracksFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("tracksFile", tracksFile).
				Msg("No tracks file, nearest-track lookups will return nothing")
			return geo.NewLocator(nil), nil
		}
		return nil, err
	}
	logger.Info().Int("tracks", len(tracks)).Msg("Loaded track geometry")
	return geo.NewLocator(tracks), nil
}

func setupDB(logger zerolog.Logger) error {
	_, err := connectDatabase(logger)
	if err != nil {
		return err
	}
	logger.Info().Msg("Database schema ready")
	return nil
}

// demo seeds a couple of tracks and cameras so a fresh install has
// something to point a spectator at.
func demo(logger zerolog.Logger) error {
	dbm, err := connectDatabase(logger)
	if err != nil {
		return err
	}
	gateway := store.NewGormGateway(dbm.DB)

	tracksFile := config.GetString("tracksFile")
	if _, err := os.Stat(tracksFile); os.IsNotExist(err) {
		seed := `[
  {"id": 1, "name": "Oval", "centerline": [[0,0],[400,0],[400,200],[0,200],[0,0]]},
  {"id": 2, "name": "Hillclimb", "centerline": [[1000,1000],[1400,1250],[1800,1700]]}
]`
		if err := os.WriteFile(tracksFile, []byte(seed), 0644); err != nil {
			return fmt.Errorf("writing demo tracks file: %w", err)
		}
		logger.Info().Str("tracksFile", tracksFile).Msg("Wrote demo tracks file")
	}

	cams := []registry.Camera{
		{TrackID: 1, Index: 0, Region: mustRegion("0,0,0;50,30,20"), Position: mustPosition("25,15,10,180,-15"), Label: "start straight"},
		{TrackID: 1, Index: 1, Region: mustRegion("350,0,0;400,30,200"), Position: mustPosition("380,20,100,270,-20"), Label: "back corner"},
		{TrackID: 2, Index: 0, Region: mustRegion("1000,990,0;1100,1050,40"), Position: mustPosition("1050,1020,25"), Label: "hill base"},
	}
	for _, cam := range cams {
		row := model.Camera{
			TrackID:  cam.TrackID,
			Idx:      cam.Index,
			Region:   cam.Region.String(),
			Position: cam.Position.String(),
			Label:    sql.NullString{String: cam.Label, Valid: cam.Label != ""},
		}
		if err := gateway.UpsertCamera(row); err != nil {
			return err
		}
		logger.Info().Uint("trackId", cam.TrackID).Int("index", cam.Index).Str("label", cam.Label).
			Msg("Seeded camera")
	}

	logger.Info().Msg("Demo data seeded, start with: trackcam run")
	return nil
}

func mustRegion(s string) geo.Region {
	r, err := geo.ParseRegion(s)
	if err != nil {
		panic(err)
	}
	return r
}

func mustPosition(s string) geo.Position3D {
	p, err := geo.ParsePosition(s)
	if err != nil {
		panic(err)
	}
	return p
}
