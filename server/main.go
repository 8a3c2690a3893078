package main

/*
 * Server exposes the beacon workflow over HTTP: GET /scan runs one
 * discovery pass and returns a {status, info} JSON pair.
 */

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/BiekeSurfOrg/palm-BLE-GATT-scanner/gattlink"
	"github.com/BiekeSurfOrg/palm-BLE-GATT-scanner/palmki"
)

var (
	configPath *string
	listen     *string
	level      *string
	consoleLog *bool
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	configPath = flag.String("config", "", "Path to YAML config file")
	listen = flag.String("listen", "", "Listen address, overrides the config file")
	level = flag.String("level", "", "Logging level, eg: panic, fatal, error, warn, info, debug, trace")
	consoleLog = flag.Bool("console-log", true, "Pass true to enable colorized console logging, false for JSON style logging")
}

type scanResult struct {
	Status string `json:"status"`
	Info   string `json:"info"`
}

// scanHandler runs at most one workflow at a time; the radio hardware
// cannot interleave two scans, so a second request is rejected with a
// Busy status instead of queued.
type scanHandler struct {
	radio   *gattlink.Radio
	cfg     palmki.Config
	timeout time.Duration
	gate    *semaphore.Weighted
	log     zerolog.Logger
}

func (h *scanHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !h.gate.TryAcquire(1) {
		h.log.Warn().Msg("scan rejected, another scan is in progress")
		h.respond(w, palmki.Report{Status: palmki.StatusBusy, Info: "a scan is already in progress"})
		return
	}
	defer h.gate.Release(1)

	ctx, cancel := context.WithTimeout(req.Context(), h.timeout)
	defer cancel()

	report := palmki.NewWorkflow(h.radio, h.cfg, h.log).Run(ctx)
	h.log.Info().Stringer("status", report.Status).Msg("scan finished")
	h.respond(w, report)
}

func (h *scanHandler) respond(w http.ResponseWriter, report palmki.Report) {
	w.Header().Set("Content-Type", "application/json")
	body, err := jsoniter.Marshal(scanResult{Status: report.Status.String(), Info: report.Info})
	if err != nil {
		h.log.Err(err).Msg("encode response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(body); err != nil {
		h.log.Err(err).Msg("write response")
	}
}

func main() {
	flag.Parse()

	if *consoleLog {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("config")
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *level != "" {
		cfg.Level = *level
	}
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Fatal().Str("level", cfg.Level).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(lvl)

	var opts []gattlink.Option
	if cfg.AvailabilityProbe != nil {
		opts = append(opts, gattlink.WithAvailabilityProbe(*cfg.AvailabilityProbe))
	}
	if cfg.EventDrivenScan != nil {
		opts = append(opts, gattlink.WithEventDrivenScan(*cfg.EventDrivenScan))
	}
	radio, err := gattlink.New(log.Logger, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("open radio")
	}

	mux := http.NewServeMux()
	mux.Handle("/scan", &scanHandler{
		radio:   radio,
		cfg:     cfg.workflow(),
		timeout: time.Duration(cfg.RequestTimeout),
		gate:    semaphore.NewWeighted(1),
		log:     log.Logger,
	})

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: cors.AllowAll().Handler(mux),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("listen", cfg.Listen).Msg("serving")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("serve")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Err(err).Msg("shutdown")
	}
}
