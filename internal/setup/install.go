package setup

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

//go:embed plist.tmpl
var plistTemplateStr string

//go:embed unit.tmpl
var unitTemplateStr string

const (
	// BinaryName is the name of the installed binary.
	BinaryName = "prayerrelay"

	// InstallDir is the default install directory for the binary.
	InstallDir = "/usr/local/bin"

	// PlistLabel is the launchd job label.
	PlistLabel = "com.github.njoerd114.prayerrelay"

	// UnitName is the systemd user unit.
	UnitName = "prayerrelay.service"
)

// goos selects the service manager. Replaced in tests.
var goos = runtime.GOOS

// serviceData holds template values for the plist and the unit file.
type serviceData struct {
	Label      string
	BinaryPath string
	LogDir     string
}

// ServiceSupported reports whether the daemon can be installed as a login
// service on this OS: launchd on macOS, a systemd user unit on Linux.
func ServiceSupported() bool {
	return goos == "darwin" || goos == "linux"
}

// BinaryInstallPath returns the full path to the installed binary.
func BinaryInstallPath() string {
	return filepath.Join(InstallDir, BinaryName)
}

// PlistPath returns the launchd plist destination path.
func PlistPath(homeDir string) string {
	return filepath.Join(homeDir, "Library", "LaunchAgents", PlistLabel+".plist")
}

// UnitPath returns the systemd user unit destination path.
func UnitPath(homeDir string) string {
	return filepath.Join(homeDir, ".config", "systemd", "user", UnitName)
}

// ServiceFilePath returns the plist on macOS and the unit file elsewhere.
func ServiceFilePath(homeDir string) string {
	if goos == "darwin" {
		return PlistPath(homeDir)
	}
	return UnitPath(homeDir)
}

// LogDir returns the log directory path: ~/Library/Logs/prayerrelay on macOS,
// ~/.local/state/prayerrelay elsewhere.
func LogDir(homeDir string) string {
	if goos == "darwin" {
		return filepath.Join(homeDir, "Library", "Logs", BinaryName)
	}
	return filepath.Join(homeDir, ".local", "state", BinaryName)
}

// InstallBinary copies the currently-running binary to /usr/local/bin.
// Uses sudo if the target directory is not writable by the current user.
func InstallBinary() error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving current executable path: %w", err)
	}

	// Resolve symlinks so we copy the actual binary.
	self, err = filepath.EvalSymlinks(self)
	if err != nil {
		return fmt.Errorf("resolving executable symlinks: %w", err)
	}

	dest := BinaryInstallPath()
	if self == dest {
		return nil
	}

	if isWritable(InstallDir) {
		return copyFile(self, dest, 0o755)
	}

	//nolint:gosec // sudo is intentional here, the user is prompted for a password.
	cmd := exec.Command("sudo", "install", "-m", "755", self, dest)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo install to %s: %w", dest, err)
	}
	return nil
}

// WriteServiceFile renders the launchd plist (macOS) or the systemd unit
// (Linux) from the embedded templates.
func WriteServiceFile(homeDir string) error {
	name, src := "unit", unitTemplateStr
	if goos == "darwin" {
		name, src = "plist", plistTemplateStr
	}
	tmpl, err := template.New(name).Parse(src)
	if err != nil {
		return fmt.Errorf("parsing %s template: %w", name, err)
	}

	data := serviceData{
		Label:      PlistLabel,
		BinaryPath: BinaryInstallPath(),
		LogDir:     LogDir(homeDir),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("executing %s template: %w", name, err)
	}

	dest := ServiceFilePath(homeDir)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}
	if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s to %s: %w", name, dest, err)
	}
	return nil
}

// CreateLogDir creates the directory returned by [LogDir].
func CreateLogDir(homeDir string) error {
	dir := LogDir(homeDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log directory %s: %w", dir, err)
	}
	return nil
}

// LoadDaemon starts the service and enables it at login. A loaded launchd
// job is unloaded first.
func LoadDaemon(homeDir string) error {
	if goos != "darwin" {
		if err := run("systemctl", "--user", "daemon-reload"); err != nil {
			return err
		}
		return run("systemctl", "--user", "enable", "--now", UnitName)
	}
	_ = UnloadDaemon(homeDir) // ignore error if not loaded
	return run("launchctl", "load", PlistPath(homeDir))
}

// UnloadDaemon stops the service. A missing service file is not an error.
func UnloadDaemon(homeDir string) error {
	if _, err := os.Stat(ServiceFilePath(homeDir)); os.IsNotExist(err) {
		return nil // nothing to unload
	}
	if goos != "darwin" {
		return run("systemctl", "--user", "disable", "--now", UnitName)
	}
	return run("launchctl", "unload", PlistPath(homeDir))
}

// RemoveServiceFile deletes the plist or unit file.
func RemoveServiceFile(homeDir string) error {
	path := ServiceFilePath(homeDir)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// RemoveBinary deletes the installed binary from /usr/local/bin.
// Uses sudo if the directory is not writable.
func RemoveBinary() error {
	path := BinaryInstallPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // already gone
	}

	if isWritable(InstallDir) {
		return os.Remove(path)
	}

	//nolint:gosec // sudo is intentional
	cmd := exec.Command("sudo", "rm", "-f", path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// IsDaemonLoaded checks whether the service is currently running.
func IsDaemonLoaded() bool {
	switch goos {
	case "darwin":
		return exec.Command("launchctl", "list", PlistLabel).Run() == nil
	case "linux":
		return exec.Command("systemctl", "--user", "is-active", "--quiet", UnitName).Run() == nil
	default:
		return false
	}
}

// ServiceManager names the service manager for status output.
func ServiceManager() string {
	if goos == "darwin" {
		return "launchd"
	}
	return "systemd"
}

// PurgeUserData removes config, .env, state database, and log files.
func PurgeUserData(homeDir string) error {
	dirs := []string{
		filepath.Join(homeDir, ".config", BinaryName),
		filepath.Join(homeDir, ".local", "share", BinaryName),
		LogDir(homeDir),
	}
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	}
	return nil
}

// --- helpers -----------------------------------------------------------------

func run(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %s: %w", name, strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return nil
}

// isWritable checks if the given directory is writable by the current user.
func isWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".pr-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

// copyFile copies src to dst with the given permissions.
func copyFile(src, dst string, perm os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, perm); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}
