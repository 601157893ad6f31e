package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies the shipped defaults match the tool names and
// scratch layout the pipeline documents.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Tools.CompositeTransformUtil != "CompositeTransformUtil" {
		t.Errorf("unexpected default disassembly tool: %q", cfg.Tools.CompositeTransformUtil)
	}
	if cfg.Tools.WbCommand != "wb_command" {
		t.Errorf("unexpected default workbench tool: %q", cfg.Tools.WbCommand)
	}
	if cfg.Tools.C3DAffineTool != "c3d_affine_tool" {
		t.Errorf("unexpected default affine tool: %q", cfg.Tools.C3DAffineTool)
	}
	if cfg.Tools.Convertwarp != "convertwarp" {
		t.Errorf("unexpected default composer tool: %q", cfg.Tools.Convertwarp)
	}
	if cfg.Pipeline.ScratchDirName != "tmp_ants2fsl" {
		t.Errorf("unexpected default scratch dir name: %q", cfg.Pipeline.ScratchDirName)
	}
	if cfg.Pipeline.KeepScratch {
		t.Error("KeepScratch should default to false")
	}

	names := cfg.ToolNames()
	if len(names) != 4 {
		t.Fatalf("ToolNames() returned %d names, want 4", len(names))
	}
}

// TestLoadConfigMissingFile verifies that a missing config file falls back
// to the defaults rather than failing.
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfig with missing file failed: %v", err)
	}
	if cfg.Pipeline.ScratchDirName != "tmp_ants2fsl" {
		t.Errorf("expected default scratch dir name, got %q", cfg.Pipeline.ScratchDirName)
	}
}

// TestConfigRoundTrip verifies that a saved configuration loads back with
// the same values.
func TestConfigRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "ants2fsl-config-test-*")
	if err != nil {
		t.Fatalf("Failed to create temporary directory: %v", err)
	}
	defer os.RemoveAll(dir)

	cfg := DefaultConfig()
	cfg.Tools.WbCommand = "wb_command_wrapper"
	cfg.Pipeline.KeepScratch = true
	cfg.Pipeline.Verbose = false

	path := filepath.Join(dir, "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Tools.WbCommand != "wb_command_wrapper" {
		t.Errorf("WbCommand = %q, want %q", loaded.Tools.WbCommand, "wb_command_wrapper")
	}
	if !loaded.Pipeline.KeepScratch {
		t.Error("KeepScratch was not preserved")
	}
	if loaded.Pipeline.Verbose {
		t.Error("Verbose was not preserved")
	}
}

// TestLoadConfigPartialOverride verifies that a config file overriding only
// some fields keeps the defaults for the rest.
func TestLoadConfigPartialOverride(t *testing.T) {
	dir, err := os.MkdirTemp("", "ants2fsl-config-test-*")
	if err != nil {
		t.Fatalf("Failed to create temporary directory: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "config.yaml")
	partial := "tools:\n  convertwarp: convertwarp5\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Tools.Convertwarp != "convertwarp5" {
		t.Errorf("Convertwarp = %q, want override %q", cfg.Tools.Convertwarp, "convertwarp5")
	}
	if cfg.Tools.WbCommand != "wb_command" {
		t.Errorf("WbCommand = %q, want default %q", cfg.Tools.WbCommand, "wb_command")
	}
}

// TestCreateDefaultConfigFile verifies the bootstrap helper writes a
// loadable file.
func TestCreateDefaultConfigFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "ants2fsl-config-test-*")
	if err != nil {
		t.Fatalf("Failed to create temporary directory: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "sub", "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}

	if _, err := LoadConfig(path); err != nil {
		t.Fatalf("generated config file does not load: %v", err)
	}
}
