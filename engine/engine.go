// Package engine wires the ledger, logging, metrics and protocol services
// into one handle. Command line tools and daemons call Engine methods.
package engine

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/optifreight/liboptifreight-go/config"
	"github.com/optifreight/liboptifreight-go/derive"
	"github.com/optifreight/liboptifreight-go/governance"
	"github.com/optifreight/liboptifreight-go/keystore"
	"github.com/optifreight/liboptifreight-go/ledger"
	"github.com/optifreight/liboptifreight-go/logging"
	"github.com/optifreight/liboptifreight-go/market"
	"github.com/optifreight/liboptifreight-go/metrics"
	"github.com/optifreight/liboptifreight-go/protocol"
	"github.com/optifreight/liboptifreight-go/registry"
	"github.com/optifreight/liboptifreight-go/returns"
	"github.com/optifreight/liboptifreight-go/sale"
	"github.com/optifreight/liboptifreight-go/service"
)

// Engine is the settlement engine over one ledger.
type Engine struct {
	Env        *service.Env
	Registry   *registry.Registry
	Sales      *sale.Ledger
	Market     *market.Market
	Returns    *returns.Pools
	Governance *governance.Governance
	Keys       *keystore.Store // nil unless opened from a data directory

	gatherer prometheus.Gatherer
}

// New builds an Engine on an existing environment.
func New(env *service.Env) (*Engine, error) {
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Engine{
		Env:        env,
		Registry:   registry.New(env),
		Sales:      sale.New(env),
		Market:     market.New(env),
		Returns:    returns.New(env),
		Governance: governance.New(env),
	}, nil
}

// LedgerPath returns the ledger database path inside dataDir.
func LedgerPath(dataDir string) string {
	return filepath.Join(dataDir, "ledger.db")
}

// KeysDir returns the key store directory inside dataDir.
func KeysDir(dataDir string) string {
	return filepath.Join(dataDir, "keys")
}

// Open validates cfg and opens the engine persisted under cfg.DataDir.
func Open(cfg config.Config) (*Engine, error) {
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	programID, err := cfg.ProgramKey()
	if err != nil {
		return nil, err
	}
	platform, err := cfg.PlatformKey()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("engine: init logging: %w", err)
	}

	// fail flushes the log before reporting a failure past logger startup.
	fail := func(err error) (*Engine, error) {
		log.Error("engine open failed", zap.String("data_dir", cfg.DataDir), zap.Error(err))
		_ = log.Sync()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(reg)
	if err != nil {
		return fail(fmt.Errorf("engine: init metrics: %w", err))
	}

	keys, err := keystore.Open(KeysDir(cfg.DataDir))
	if err != nil {
		return fail(err)
	}

	d := derive.New(programID)
	clock := protocol.RealClock{}
	l, err := ledger.OpenBoltLedger(LedgerPath(cfg.DataDir), d, clock)
	if err != nil {
		return fail(fmt.Errorf("engine: open ledger: %w", err))
	}

	e, err := New(&service.Env{
		Ledger:   l,
		Derive:   d,
		Params:   cfg.Protocol,
		Platform: platform,
		Clock:    clock,
		Log:      log,
		Metrics:  rec,
	})
	if err != nil {
		_ = l.Close()
		return fail(err)
	}
	e.Keys = keys
	e.gatherer = reg

	log.Debug("engine opened",
		zap.String("data_dir", cfg.DataDir),
		zap.String("program_id", programID.String()),
		zap.String("platform", platform.String()))
	return e, nil
}

// MetricsHandler serves the engine's metrics registry. An engine built with
// New has no registry of its own and serves the default one.
func (e *Engine) MetricsHandler() http.Handler {
	if e.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{})
}

// Close flushes the logger and closes the ledger.
func (e *Engine) Close() error {
	_ = e.Env.Logger().Sync()
	if e.Env.Ledger == nil {
		return nil
	}
	return e.Env.Ledger.Close()
}
