package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"camsession/cmd/camsession/daemon"
	"camsession/internal/adapter/gateway"
	"camsession/internal/domain"
	"camsession/internal/infra/config"
	"camsession/internal/infra/logger"
	"camsession/internal/infra/tracer"
	"camsession/internal/usecase/pending"
	"camsession/pkg/camclient"
)

var version = "dev"

func main() {
	cmd := "serve"
	if len(os.Args) >= 2 && !strings.HasPrefix(os.Args[1], "-") {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "--help", "-h", "help":
		showUsage()
		return
	case "serve":
		err = run()
	case "devices":
		err = runDevices()
	case "snapshot":
		err = runSnapshot()
	case "peers":
		err = runPeers()
	case "daemon":
		err = runDaemon()
	case "hash-token":
		err = runHashToken()
	case "version":
		fmt.Println("camsession", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'camsession --help' for usage information.\n", cmd)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`camsession - camera capture session service

USAGE:
    camsession [COMMAND] [FLAGS]

COMMANDS:
    serve       Run the gateway, renderer and scheduler (default)
    devices     List capture devices of the configured backend
    snapshot    Take one picture and print its path
                Flags: --device ID, --out PATH, --remote WS_URL, --token T
    peers       List camsession instances on the local network
    daemon      Manage the system service
                Subcommands: install, uninstall, status
    hash-token  Print an argon2id token_hash for gateway auth
                Reads the token from the argument or stdin
    version     Print the version

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./camsession.yaml)

CONFIGURATION:
    Config file: ./camsession.yaml
    Environment: CAMSESSION_* variables override config; a .env file is loaded first`)
}

// flagValue returns the value of --name or --name=value.
func flagValue(name string) string {
	for i, arg := range os.Args {
		if arg == "--"+name && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if v, ok := strings.CutPrefix(arg, "--"+name+"="); ok {
			return v
		}
	}
	return ""
}

func configPath() string {
	if p := flagValue("config"); p != "" {
		return p
	}
	if p := os.Getenv("CAMSESSION_CONFIG"); p != "" {
		return p
	}
	return "camsession.yaml"
}

// loadConfig reads .env (if any) and the config file.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("dotenv: %w", err)
	}
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, domain.NewDomainError("loadConfig", domain.ErrConfigLoad, err.Error())
	}
	return cfg, nil
}

func run() error {
	// 1. Config
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Capture stack
	stack, err := initCapture(cfg, log)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	defer stack.Close()

	// 4. Catalog, scheduler and gateway
	rt, err := initRuntime(cfg, stack, log)
	if err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Close(shutdownCtx); err != nil {
			log.Error("runtime cleanup error", "error", err)
		}
	}()

	// 5. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if rt.Scheduler != nil {
		if err := rt.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
	}

	errCh := make(chan error, 1)
	if rt.Gateway != nil {
		go func() {
			if err := rt.Gateway.Start(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	if cfg.Discovery.MDNS && rt.Gateway != nil {
		go advertise(ctx, cfg, stack, log)
	}

	log.Info("camsession starting",
		"version", version,
		"backend", cfg.Capture.Backend,
		"gateway", cfg.Gateway.Enabled,
		"catalog", cfg.Catalog.Enabled,
		"scheduler", cfg.Scheduler.Enabled,
	)

	select {
	case <-ctx.Done():
		log.Info("camsession stopping")
		return nil
	case err := <-errCh:
		return fmt.Errorf("gateway: %w", err)
	}
}

func runDevices() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	drv, err := buildDriver(cfg.Capture)
	if err != nil {
		return err
	}
	devices, err := drv.Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("no capture devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%-24s %s\n", d.ID, d.Label)
	}
	return nil
}

// runSnapshot opens one camera, takes a picture and disposes it.
func runSnapshot() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Logger.Level = "warn"
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	if url := flagValue("remote"); url != "" {
		return remoteSnapshot(url, cfg, log)
	}

	stack, err := initCapture(cfg, log)
	if err != nil {
		return err
	}
	defer stack.Close()

	deviceID := flagValue("device")
	if deviceID == "" {
		deviceID = cfg.Capture.DefaultDevice
	}
	if deviceID == "" {
		devices, err := stack.Cameras.AvailableCameras()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			return domain.NewDomainError("snapshot", domain.ErrDeviceUnavailable, "no capture devices found")
		}
		deviceID = devices[0].ID
	}
	preset, err := domain.ParseResolutionPreset(cfg.Capture.ResolutionPreset)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := pending.NewFuture()
	stack.Cameras.Create(ctx, deviceID, false, preset, created)
	if _, err := created.Wait(ctx); err != nil {
		return err
	}
	cam, err := stack.Cameras.Get(deviceID)
	if err != nil {
		return err
	}
	shot := pending.NewFuture()
	cam.TakePicture(ctx, flagValue("out"), shot)
	path, err := shot.Wait(ctx)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// remoteSnapshot takes the picture through a running gateway. The camera
// is initialized first unless the gateway already has it open.
func remoteSnapshot(url string, cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token := flagValue("token")
	if token == "" {
		token = os.Getenv("CAMSESSION_TOKEN")
	}
	c, err := camclient.Dial(ctx, url, camclient.WithToken(token), camclient.WithLogger(log))
	if err != nil {
		return err
	}
	defer c.Close()

	deviceID := flagValue("device")
	if deviceID == "" {
		deviceID = cfg.Capture.DefaultDevice
	}
	_, err = c.Initialize(ctx, camclient.CreateOptions{DeviceID: deviceID})
	if err != nil && !camclient.IsCode(err, string(domain.CodeCameraExists)) {
		return err
	}
	path, err := c.TakePicture(ctx, deviceID, flagValue("out"))
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runPeers() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	peers, err := buildDiscoverer(log).Scan(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(peers)
}

func runHashToken() error {
	var token string
	if len(os.Args) >= 3 {
		token = os.Args[2]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		token = strings.TrimSpace(line)
	}
	hash, err := gateway.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func runDaemon() error {
	sub := ""
	if len(os.Args) >= 3 {
		sub = os.Args[2]
	}
	cfg := daemon.DefaultConfig()
	switch sub {
	case "install":
		if p := flagValue("config"); p != "" {
			abs, err := filepath.Abs(p)
			if err != nil {
				return err
			}
			cfg.ConfigPath = abs
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := daemon.Install(cfg); err != nil {
			return err
		}
		fmt.Printf("installed %s (config %s)\n", cfg.Name, cfg.ConfigPath)
		return nil
	case "uninstall":
		return daemon.Uninstall(cfg.Name)
	case "status":
		st, err := daemon.ServiceStatus(cfg.Name)
		if err != nil {
			return err
		}
		if !st.Running {
			fmt.Printf("%s is not running\n", cfg.Name)
			return nil
		}
		fmt.Printf("%s is running (pid %d)\n", cfg.Name, st.PID)
		return nil
	default:
		return fmt.Errorf("usage: camsession daemon install|uninstall|status")
	}
}
