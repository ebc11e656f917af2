package main

import (
	"fmt"
	"log"

	"github.com/douglaz/feeaugur/collect"
	"github.com/douglaz/feeaugur/collect/corerpc"
	"github.com/douglaz/feeaugur/engine"
	"github.com/douglaz/feeaugur/httpapi"
	"github.com/douglaz/feeaugur/snapshotstore"
)

// App ties the collector, the on-disk snapshot store, the estimation
// engine and the HTTP server together into one running daemon, the
// successor to the teacher's FeeSim/Service pair.
type App struct {
	collector *collect.Collector
	store     *snapshotstore.Store
	server    *httpapi.Server
	logger    *log.Logger
}

// NewApp wires an App from cfg. It opens the snapshot store and validates
// the engine configuration, but does not start polling or serving; call
// Run for that.
func NewApp(cfg config, logger *log.Logger) (*App, error) {
	store, err := snapshotstore.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store: %v", err)
	}

	estimator, err := engine.NewFeeEstimator(cfg.Engine.toEngineConfig())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building fee estimator: %v", err)
	}

	rpcClient := corerpc.NewClient(cfg.BitcoinRPC)
	collector := collect.NewCollector(collect.Config{
		PollPeriod:      cfg.Collect.PollPeriod,
		RetentionWindow: cfg.Collect.RetentionWindow,
		Fetch:           rpcClient.FetchSnapshot,
		Store:           store,
		Logger:          logger,
	})

	server := httpapi.NewServer(httpapi.Config{
		Addr:      cfg.HTTPServer.Host + ":" + cfg.HTTPServer.Port,
		Estimator: estimator,
		Live:      collector,
		History:   store,
		Logger:    logger,
	})

	return &App{collector: collector, store: store, server: server, logger: logger}, nil
}

// Run starts the collector (performing an initial synchronous poll) and
// then blocks serving the HTTP API. It returns once the server stops,
// which in practice means it failed to bind or was killed.
func (a *App) Run() error {
	if err := a.collector.Run(); err != nil {
		return fmt.Errorf("starting collector: %v", err)
	}
	return a.server.ListenAndServe()
}

// Stop halts the collector and closes the snapshot store. It does not stop
// the HTTP listener, which has no graceful shutdown hook in this version.
func (a *App) Stop() {
	a.collector.Stop()
	a.store.Close()
}
