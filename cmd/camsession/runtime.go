package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"camsession/internal/adapter/catalog"
	"camsession/internal/adapter/engine"
	"camsession/internal/adapter/gateway"
	"camsession/internal/adapter/renderer"
	"camsession/internal/infra/config"
	"camsession/internal/infra/middleware"
	"camsession/internal/security"
	"camsession/internal/usecase/camera"
	"camsession/internal/usecase/eventbus"
	"camsession/internal/usecase/scheduling"
)

// buildDriver returns the capture driver for the configured backend.
func buildDriver(cfg config.CaptureConfig) (engine.Driver, error) {
	switch cfg.Backend {
	case "synthetic", "":
		drv, err := engine.NewSyntheticDriver(cfg.Synthetic.Devices, cfg.Synthetic.FPS, cfg.Synthetic.Sizes)
		if err != nil {
			return nil, err
		}
		return drv, nil
	case "mediadevices":
		return engine.NewMediaDevicesDriver(), nil
	case "v4l2":
		return engine.NewV4L2Driver()
	default:
		return nil, fmt.Errorf("unknown capture backend: %s", cfg.Backend)
	}
}

// captureStack is everything needed to run camera sessions.
type captureStack struct {
	Platform *engine.Platform
	Renderer *renderer.Renderer
	Bus      *eventbus.Bus
	Cameras  *camera.Manager
}

func initCapture(cfg *config.Config, log *slog.Logger) (*captureStack, error) {
	if cfg.Capture.AudioBackend == "portaudio" && !engine.PortAudioSupported {
		return nil, fmt.Errorf("capture.audio_backend is portaudio but this binary was built without -tags portaudio")
	}
	drv, err := buildDriver(cfg.Capture)
	if err != nil {
		return nil, err
	}
	platform := engine.NewPlatform(drv, engine.Options{
		AudioBackend:    cfg.Capture.AudioBackend,
		AudioSampleRate: cfg.Capture.AudioSampleRate,
		JPEGQuality:     cfg.Renderer.JPEGQuality,
		Breaker:         cfg.Breaker,
	}, log.With("component", "engine"))

	rend := renderer.New(cfg.Renderer, log.With("component", "renderer"))
	bus := eventbus.New(log)
	cameras := camera.NewManager(cfg.Capture.MediaDir, platform, rend, bus, log)

	log.Debug("capture stack ready", "driver", drv.Name(), "media_dir", cfg.Capture.MediaDir)
	return &captureStack{Platform: platform, Renderer: rend, Bus: bus, Cameras: cameras}, nil
}

// Close disposes every camera, then stops the renderer and drains the bus.
func (s *captureStack) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Cameras.Close(ctx)
	s.Renderer.Close()
	s.Bus.Close()
}

// runtimeComponents holds the optional services around the capture stack.
type runtimeComponents struct {
	Catalog   *catalog.Store
	Scheduler *scheduling.Scheduler
	Gateway   *gateway.Server
	Metrics   *gateway.Metrics

	detachCatalog func()
	cancel        context.CancelFunc
}

func initRuntime(cfg *config.Config, stack *captureStack, log *slog.Logger) (*runtimeComponents, error) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &runtimeComponents{cancel: cancel}

	if cfg.Catalog.Enabled {
		store, err := catalog.Open(cfg.Catalog.Path)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("catalog: %w", err)
		}
		rt.Catalog = store
		rt.detachCatalog = catalog.Attach(stack.Bus, store, log.With("component", "catalog"))
		log.Info("media catalog enabled", "path", cfg.Catalog.Path)
	}

	if cfg.Scheduler.Enabled {
		sched := scheduling.NewScheduler(stack.Bus, log.With("component", "scheduler"))
		sched.RegisterAction(scheduling.ActionSnapshot, scheduling.SnapshotAction(stack.Cameras))
		if rt.Catalog != nil {
			sched.RegisterAction(scheduling.ActionCatalogRetention, scheduling.RetentionAction(rt.Catalog, log))
		}
		for _, task := range scheduling.TasksFromConfig(cfg.Scheduler.Tasks) {
			if err := sched.AddTask(task); err != nil {
				rt.Close(context.Background())
				return nil, err
			}
		}
		rt.Scheduler = sched
	}

	if cfg.Gateway.Enabled {
		auth, err := gateway.NewAuthenticator(cfg.Gateway.Auth)
		if err != nil {
			rt.Close(context.Background())
			return nil, fmt.Errorf("gateway auth: %w", err)
		}
		paths, err := security.NewSandbox(cfg.Capture.MediaDir)
		if err != nil {
			rt.Close(context.Background())
			return nil, fmt.Errorf("media dir: %w", err)
		}
		srv := gateway.NewServer(stack.Bus, auth, cfg.Gateway.Addr, log.With("component", "gateway"))
		srv.Use(middleware.SecurityHeaders, middleware.RateLimit(ctx, cfg.Gateway.RateLimit))
		deps := gateway.HandlerDeps{
			Cameras: stack.Cameras,
			Capture: cfg.Capture,
			Paths:   paths,
			Logger:  log,
		}
		if rt.Catalog != nil {
			deps.Catalog = rt.Catalog
		}
		if err := gateway.RegisterDefaultHandlers(srv, deps); err != nil {
			rt.Close(context.Background())
			return nil, fmt.Errorf("gateway handlers: %w", err)
		}
		rt.Metrics = gateway.RegisterRESTHandlers(srv, gateway.RESTDeps{
			Cameras:  stack.Cameras,
			Renderer: stack.Renderer,
			Bus:      stack.Bus,
		})
		rt.Gateway = srv
	}
	return rt, nil
}

// Close stops the scheduler and gateway and closes the catalog.
func (rt *runtimeComponents) Close(ctx context.Context) error {
	var errs []error
	defer rt.cancel()
	if rt.Scheduler != nil {
		errs = append(errs, rt.Scheduler.Stop())
	}
	if rt.Gateway != nil {
		errs = append(errs, rt.Gateway.Stop(ctx))
	}
	if rt.detachCatalog != nil {
		rt.detachCatalog()
	}
	if rt.Catalog != nil {
		errs = append(errs, rt.Catalog.Close())
	}
	return errors.Join(errs...)
}

// advertise announces the gateway on the LAN until ctx ends.
func advertise(ctx context.Context, cfg *config.Config, stack *captureStack, log *slog.Logger) {
	_, portStr, err := net.SplitHostPort(cfg.Gateway.Addr)
	if err != nil {
		log.Warn("mdns: bad gateway address", "addr", cfg.Gateway.Addr, "error", err)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		log.Warn("mdns: gateway port is not fixed", "addr", cfg.Gateway.Addr)
		return
	}
	var ids []string
	if devices, err := stack.Cameras.AvailableCameras(); err == nil {
		for _, d := range devices {
			ids = append(ids, d.ID)
		}
	}
	if err := buildDiscoverer(log).Advertise(ctx, cfg.Discovery.Name, port, ids); err != nil {
		log.Warn("mdns advertise failed", "error", err)
	}
}
