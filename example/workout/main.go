/*
Example workout counts exercise repetitions per person in a video source.  The
annotated stream is served as MJPEG and further sessions can be pushed over
websocket to /ingest.
*/
package main

import (
	"context"
	"flag"
	"github.com/rs/zerolog"
	"github.com/swdee/go-framewatch"
	"github.com/swdee/go-framewatch/alert"
	"github.com/swdee/go-framewatch/config"
	"github.com/swdee/go-framewatch/detector"
	"github.com/swdee/go-framewatch/server"
	"github.com/swdee/go-framewatch/source"
	"github.com/swdee/go-framewatch/workout"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {

	// read in cli flags
	cfgFile := flag.String("c", "", "YAML configuration file, built in defaults are used when empty")
	device := flag.String("v", "../data/workout.mp4", "Video file, stream URL or camera index to monitor, empty to only accept websocket sessions")
	modelFile := flag.String("m", "", "YOLOv8 pose ONNX model file, overrides the configuration")
	pace := flag.Bool("p", true, "Pace video file playback at the file's frame rate")

	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	cfg := config.DefaultWorkout()

	if *cfgFile != "" {
		loaded, err := config.Load(*cfgFile)

		if err != nil {
			log.Fatal().Err(err).Msg("Error loading configuration")
		}

		cfg = *loaded
	}

	if cfg.Variant != config.Workout {
		log.Fatal().Str("variant", string(cfg.Variant)).Msg("Configuration is not for the workout variant")
	}

	if *modelFile != "" {
		cfg.Detector.Model = *modelFile
	}

	lvl, err := cfg.Level()

	if err != nil {
		log.Fatal().Err(err).Msg("Invalid log level")
	}

	log = log.Level(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pub alert.Publisher = alert.Nop

	if cfg.MQTT.Broker != "" {
		m, err := alert.NewMQTT(cfg.MQTT, log)

		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to MQTT broker")
		}

		defer m.Close()
		pub = m
	}

	var debug *framewatch.DebugSink

	if cfg.Debug.Dir != "" {
		debug, err = framewatch.NewDebugSink(cfg.Debug.Dir, log)

		if err != nil {
			log.Fatal().Err(err).Msg("Error creating debug directory")
		}
	}

	// every session gets its own detector and analyser
	newAnalyser := func() (*workout.Analyser, error) {

		det, err := detector.New(cfg.Detector)

		if err != nil {
			return nil, err
		}

		a, err := workout.New(det, cfg.Workout, pub, log)

		if err != nil {
			det.Close()
			return nil, err
		}

		return a, nil
	}

	factory := func() (framewatch.Analyser, error) {
		return newAnalyser()
	}

	hub := framewatch.NewHub(log)
	opts := cfg.SessionOptions(debug)
	srv := server.New(ctx, hub, factory, opts, log)

	if *device != "" {
		src, err := source.OpenCapture(*device, *pace, log)

		if err != nil {
			log.Fatal().Err(err).Msg("Error opening video source")
		}

		defer src.Close()

		a, err := newAnalyser()

		if err != nil {
			log.Fatal().Err(err).Msg("Error creating analyser")
		}

		sess := framewatch.NewSession(a, opts, log)
		a.SetSession(sess.ID())

		if err := hub.Start(ctx, sess, src); err != nil {
			log.Fatal().Err(err).Msg("Error starting session")
		}

		srv.Attach(sess)

		log.Info().Msgf("Open browser and view video at http://%s/stream/%s",
			cfg.Server.Addr, sess.ID())
	}

	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		log.Error().Err(err).Msg("Server stopped")
	}

	stop()
	hub.Wait()
}
