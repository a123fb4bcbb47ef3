package setup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func withGOOS(t *testing.T, os string) {
	t.Helper()
	prev := goos
	goos = os
	t.Cleanup(func() { goos = prev })
}

func TestWriteServiceFile(t *testing.T) {
	tests := []struct {
		goos     string
		path     func(string) string
		contains []string
	}{
		{
			goos: "darwin",
			path: PlistPath,
			contains: []string{
				"<string>" + PlistLabel + "</string>",
				"<string>" + BinaryInstallPath() + "</string>",
				"<string>daemon</string>",
				filepath.Join("Library", "Logs", "prayerrelay", "prayerrelay.log"),
			},
		},
		{
			goos: "linux",
			path: UnitPath,
			contains: []string{
				"ExecStart=" + BinaryInstallPath() + " daemon",
				filepath.Join(".local", "state", "prayerrelay", "prayerrelay.log"),
				"WantedBy=default.target",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			withGOOS(t, tt.goos)
			home := t.TempDir()

			if err := WriteServiceFile(home); err != nil {
				t.Fatalf("WriteServiceFile: %v", err)
			}
			if got := ServiceFilePath(home); got != tt.path(home) {
				t.Errorf("ServiceFilePath = %q, want %q", got, tt.path(home))
			}
			data, err := os.ReadFile(tt.path(home))
			if err != nil {
				t.Fatalf("reading service file: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(string(data), want) {
					t.Errorf("service file missing %q:\n%s", want, data)
				}
			}
		})
	}
}

func TestServiceSupported(t *testing.T) {
	for goosName, want := range map[string]bool{"darwin": true, "linux": true, "windows": false} {
		withGOOS(t, goosName)
		if got := ServiceSupported(); got != want {
			t.Errorf("ServiceSupported on %s = %v, want %v", goosName, got, want)
		}
	}
}

func TestRemoveServiceFile_Missing(t *testing.T) {
	if err := RemoveServiceFile(t.TempDir()); err != nil {
		t.Errorf("RemoveServiceFile on missing file = %v, want nil", err)
	}
}

func TestUnloadDaemon_NotInstalled(t *testing.T) {
	withGOOS(t, "linux")
	if err := UnloadDaemon(t.TempDir()); err != nil {
		t.Errorf("UnloadDaemon without unit = %v, want nil", err)
	}
}

func TestPurgeUserData(t *testing.T) {
	home := t.TempDir()
	cfgDir := filepath.Join(home, ".config", BinaryName)
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte("region: Xiva\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := PurgeUserData(home); err != nil {
		t.Fatalf("PurgeUserData: %v", err)
	}
	if _, err := os.Stat(cfgDir); !os.IsNotExist(err) {
		t.Errorf("config dir still present: %v", err)
	}
}
