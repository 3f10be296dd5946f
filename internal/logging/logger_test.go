package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestAllCategoriesLog tests that all categories create log files when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()

	configDir := filepath.Join(tempDir, ".stenv")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configContent := `logging:
  level: debug
  debug_mode: true
  categories:
    boot: true
    conda: true
    exec: true
    bootstrap: true
    store: true
`
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	categories := []Category{
		CategoryBoot, CategoryConda, CategoryExec, CategoryBootstrap, CategoryStore,
	}
	for _, cat := range categories {
		Get(cat).Info("test message for %s", cat)
	}
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(tempDir, ".stenv", "logs"))
	if err != nil {
		t.Fatalf("Failed to read logs dir: %v", err)
	}

	found := make(map[Category]bool)
	for _, entry := range entries {
		for _, cat := range categories {
			if strings.HasSuffix(entry.Name(), "_"+string(cat)+".log") {
				found[cat] = true
			}
		}
	}
	for _, cat := range categories {
		if !found[cat] {
			t.Errorf("no log file created for category %s", cat)
		}
	}
}

// TestNoLogsWithoutDebugMode tests that no logs are written in production mode
func TestNoLogsWithoutDebugMode(t *testing.T) {
	tempDir := t.TempDir()

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if IsDebugMode() {
		t.Fatalf("expected debug mode off without config")
	}

	Boot("this should be a no-op")
	Conda("so should this")

	if _, err := os.Stat(filepath.Join(tempDir, ".stenv", "logs")); !os.IsNotExist(err) {
		t.Errorf("logs directory should not exist in production mode")
	}
}

// TestCategoryFilter tests that disabled categories return no-op loggers
func TestCategoryFilter(t *testing.T) {
	tempDir := t.TempDir()

	configDir := filepath.Join(tempDir, ".stenv")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}

	configContent := `logging:
  level: info
  debug_mode: true
  categories:
    boot: true
    conda: false
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if !IsCategoryEnabled(CategoryBoot) {
		t.Errorf("boot category should be enabled")
	}
	if IsCategoryEnabled(CategoryConda) {
		t.Errorf("conda category should be disabled")
	}
	// Unlisted categories default to enabled in debug mode
	if !IsCategoryEnabled(CategoryExec) {
		t.Errorf("unlisted category should default to enabled")
	}
}

func TestTimerStop(t *testing.T) {
	tempDir := t.TempDir()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	timer := StartTimer(CategoryExec, "noop")
	if d := timer.Stop(); d < 0 {
		t.Fatalf("negative duration: %v", d)
	}
}
