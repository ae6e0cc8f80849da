// Command voxeld runs a voxel map engine: it loads the map, ticks it until
// interrupted and saves it on exit.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voxel-mapper/voxelcore/engine"
)

func main() {
	path := flag.String("config", "config.toml", "path of the TOML or YAML configuration file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	chk := func(err error) {
		if err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
	}

	uc, err := engine.LoadUserConfig(*path)
	chk(err)
	conf, err := uc.Config(log)
	chk(err)
	conf.Registerer = prometheus.DefaultRegisterer

	e, err := conf.New()
	chk(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := uc.Metrics.Address; addr != "" {
		var mux http.ServeMux
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: &mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server: " + err.Error())
			}
		}()
		defer srv.Close()
	}

	log.Info("Engine running.", "palette_types", e.Palette().Len())
	if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("run: " + err.Error())
	}
	log.Info("Shutting down...", "ticks", e.CurrentTick())
	chk(e.Close())
}
