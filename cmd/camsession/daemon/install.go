// Package daemon installs camsession as a system service.
package daemon

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/template"
)

// Config holds parameters for service installation.
type Config struct {
	Name       string
	BinaryPath string
	ConfigPath string
	WorkDir    string
	User       string
	// Group grants access to the capture devices; "video" on most distros.
	Group   string
	LogPath string
	HomeDir string
}

// Status is the state of an installed service.
type Status struct {
	Running bool
	PID     int
}

// DefaultConfig returns a Config with auto-detected defaults.
func DefaultConfig() Config {
	const name = "camsession"
	binary, _ := os.Executable()
	if binary == "" {
		binary = "/usr/local/bin/" + name
	}
	username, homeDir := "root", "/root"
	if u, err := user.Current(); err == nil {
		username, homeDir = u.Username, u.HomeDir
	}
	dataDir := filepath.Join(homeDir, "."+name)
	return Config{
		Name:       name,
		BinaryPath: binary,
		ConfigPath: filepath.Join(dataDir, name+".yaml"),
		WorkDir:    dataDir,
		User:       username,
		Group:      "video",
		LogPath:    filepath.Join(dataDir, "logs"),
		HomeDir:    homeDir,
	}
}

// Validate checks that the binary exists and is executable.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("service name is required")
	}
	info, err := os.Stat(c.BinaryPath)
	if err != nil {
		return fmt.Errorf("binary %q: %w", c.BinaryPath, err)
	}
	if info.Mode()&0o111 == 0 {
		return fmt.Errorf("binary %q is not executable", c.BinaryPath)
	}
	return nil
}

// Install writes and starts the service for the current platform.
func Install(cfg Config) error {
	for _, dir := range []string{cfg.LogPath, cfg.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	switch runtime.GOOS {
	case "linux":
		return installSystemd(cfg)
	case "darwin":
		return installLaunchd(cfg)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Uninstall stops and removes the service. Removal is best effort.
func Uninstall(name string) error {
	switch runtime.GOOS {
	case "linux":
		run("systemctl", "stop", name)
		run("systemctl", "disable", name)
		os.Remove(systemdUnitPath(name))
		run("systemctl", "daemon-reload")
		return nil
	case "darwin":
		plist := launchdPlistPath(os.Getenv("HOME"), name)
		run("launchctl", "unload", plist)
		os.Remove(plist)
		return nil
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// ServiceStatus reports whether the service is running.
func ServiceStatus(name string) (*Status, error) {
	switch runtime.GOOS {
	case "linux":
		out, _ := exec.Command("systemctl", "is-active", name).Output()
		st := &Status{Running: strings.TrimSpace(string(out)) == "active"}
		if pidOut, err := exec.Command("systemctl", "show", "--property=MainPID", name).Output(); err == nil {
			st.PID = parseMainPID(string(pidOut))
		}
		return st, nil
	case "darwin":
		out, err := exec.Command("launchctl", "list", launchdLabel(name)).CombinedOutput()
		if err != nil {
			return &Status{}, nil
		}
		return &Status{Running: true, PID: parseLaunchdPID(string(out))}, nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func run(name string, args ...string) {
	exec.Command(name, args...).Run()
}

// --- systemd ---

var systemdUnit = template.Must(template.New("systemd").Parse(`[Unit]
Description={{.Name}} camera capture service
After=network.target

[Service]
Type=simple
ExecStart={{.BinaryPath}} serve --config {{.ConfigPath}}
WorkingDirectory={{.WorkDir}}
User={{.User}}
{{- if .Group}}
SupplementaryGroups={{.Group}}
{{- end}}
Restart=on-failure
RestartSec=5
StandardOutput=append:{{.LogPath}}/{{.Name}}.log
StandardError=append:{{.LogPath}}/{{.Name}}.log
Environment=HOME={{.HomeDir}}

[Install]
WantedBy=multi-user.target
`))

// RenderSystemdUnit renders the systemd service file.
func RenderSystemdUnit(cfg Config) (string, error) {
	var buf bytes.Buffer
	if err := systemdUnit.Execute(&buf, cfg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func systemdUnitPath(name string) string {
	return filepath.Join("/etc/systemd/system", name+".service")
}

func installSystemd(cfg Config) error {
	content, err := RenderSystemdUnit(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(systemdUnitPath(cfg.Name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}
	for _, args := range [][]string{
		{"systemctl", "daemon-reload"},
		{"systemctl", "enable", cfg.Name},
		{"systemctl", "start", cfg.Name},
	} {
		if out, err := exec.Command(args[0], args[1:]...).CombinedOutput(); err != nil {
			return fmt.Errorf("%s: %s: %w", strings.Join(args, " "), out, err)
		}
	}
	return nil
}

func parseMainPID(out string) int {
	_, v, ok := strings.Cut(strings.TrimSpace(out), "=")
	if !ok {
		return 0
	}
	pid, _ := strconv.Atoi(v)
	return pid
}

// --- launchd ---

var launchdPlist = template.Must(template.New("launchd").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.BinaryPath}}</string>
        <string>serve</string>
        <string>--config</string>
        <string>{{.ConfigPath}}</string>
    </array>
    <key>WorkingDirectory</key>
    <string>{{.WorkDir}}</string>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.LogPath}}/{{.Name}}.log</string>
    <key>StandardErrorPath</key>
    <string>{{.LogPath}}/{{.Name}}.log</string>
</dict>
</plist>
`))

func launchdLabel(name string) string { return "io.camsession." + name }

func launchdPlistPath(home, name string) string {
	return filepath.Join(home, "Library", "LaunchAgents", launchdLabel(name)+".plist")
}

// RenderLaunchdPlist renders the launchd agent definition.
func RenderLaunchdPlist(cfg Config) (string, error) {
	var buf bytes.Buffer
	err := launchdPlist.Execute(&buf, struct {
		Config
		Label string
	}{cfg, launchdLabel(cfg.Name)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func installLaunchd(cfg Config) error {
	content, err := RenderLaunchdPlist(cfg)
	if err != nil {
		return err
	}
	plist := launchdPlistPath(cfg.HomeDir, cfg.Name)
	if err := os.MkdirAll(filepath.Dir(plist), 0o755); err != nil {
		return fmt.Errorf("create LaunchAgents dir: %w", err)
	}
	if err := os.WriteFile(plist, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}
	if out, err := exec.Command("launchctl", "load", plist).CombinedOutput(); err != nil {
		return fmt.Errorf("launchctl load: %s: %w", out, err)
	}
	return nil
}

// parseLaunchdPID reads the "PID" = N line of launchctl list output.
func parseLaunchdPID(out string) int {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, `"PID"`) {
			continue
		}
		_, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		pid, _ := strconv.Atoi(strings.Trim(strings.TrimSpace(v), ";"))
		return pid
	}
	return 0
}
