package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/OpenTraceBench/internal/config"
	"github.com/OpenTraceLab/OpenTraceBench/internal/logging"
	"github.com/OpenTraceLab/OpenTraceBench/internal/metrics"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/drivers"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/idn"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/resource"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/simulator"
)

// session wires configuration, logging, metrics, the resource cache and
// the driver registry for one command invocation.
type session struct {
	cfg      *config.Config
	log      *logrus.Logger
	metrics  *metrics.Metrics
	cache    *resource.Cache
	dialer   *instrument.Dialer
	registry *driver.Registry

	stop context.CancelFunc
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(configPath)
}

func newSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		cfg.Transport.Timeout = timeout
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = metricsAddr
	}
	cfg.Resources.Simulated = append(cfg.Resources.Simulated, simModels...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	scanner, err := buildScanner(cfg, log)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	cache := resource.NewCache(scanner, cfg.Resources.CacheTTL)
	cache.SetLogger(log)
	cache.SetObserver(m)

	reg := drivers.NewRegistry(drivers.Options{
		ChunkSize: cfg.Transport.ChunkSize,
		Generic:   useGeneric,
	})
	reg.SetLogger(log)
	reg.SetCaptureObserver(m)

	s := &session{
		cfg:     cfg,
		log:     log,
		metrics: m,
		cache:   cache,
		dialer: &instrument.Dialer{
			Config:    cfg.TransportSettings(),
			Log:       log,
			Simulator: simulator.Conn,
			Observer:  m,
		},
		registry: reg,
		stop:     func() {},
	}

	if cfg.Metrics.Enabled {
		serveCtx, cancel := context.WithCancel(ctx)
		s.stop = cancel
		go func() {
			if err := m.Serve(serveCtx, cfg.Metrics.Addr, log); err != nil {
				log.WithError(err).Error("metrics server failed")
			}
		}()
	}
	return s, nil
}

// buildScanner combines the configured static and simulated locators with
// the enabled bus scanners.
func buildScanner(cfg *config.Config, log logrus.FieldLogger) (resource.Scanner, error) {
	static := append([]string(nil), cfg.Resources.Static...)
	for _, model := range cfg.Resources.Simulated {
		if _, ok := simulator.Lookup(model); !ok {
			return nil, fmt.Errorf("no simulator for model %q (have %v)", model, simulator.Models())
		}
		static = append(static, "SIM::"+model+"::INSTR")
	}
	list, err := resource.NewStaticScanner(static)
	if err != nil {
		return nil, err
	}

	multi := resource.MultiScanner{Scanners: []resource.Scanner{list}, Log: log}
	if !noScan {
		if cfg.Resources.USB.Enabled {
			multi.Scanners = append(multi.Scanners, resource.USBScanner{})
		}
		if cfg.Resources.Serial.Enabled {
			multi.Scanners = append(multi.Scanners, resource.SerialScanner{Patterns: cfg.Resources.Serial.Patterns})
		}
	}
	return multi, nil
}

func (s *session) Close() {
	s.stop()
}

func (s *session) discoverer(refresh bool) *driver.Discoverer {
	return &driver.Discoverer{
		Registry:  s.registry,
		Resources: s.cache,
		Opener:    s.dialer,
		Log:       s.log,
		Refresh:   refresh,
	}
}

// open parses locator and opens a session on it.
func (s *session) open(ctx context.Context, locator string) (*instrument.Handle, error) {
	loc, err := resource.Parse(locator)
	if err != nil {
		return nil, err
	}
	return s.dialer.Open(ctx, loc)
}

// identify opens locator and builds the driver for it. The driver owns the
// session.
func (s *session) identify(ctx context.Context, locator string) (idn.Identity, driver.Driver, error) {
	h, err := s.open(ctx, locator)
	if err != nil {
		return idn.Identity{}, nil, err
	}
	id, drv, err := s.registry.Identify(ctx, h)
	if err != nil {
		h.Close()
		return id, nil, err
	}
	return id, drv, nil
}

// driverName is the descriptor that handles id, or "" when none does.
func (s *session) driverName(id idn.Identity) string {
	desc, ok := s.registry.Select(id)
	if !ok {
		return ""
	}
	return desc.Name
}
