package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/limbo/config"
	"github.com/artpar/limbo/core/interpolate"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	mkdir(t, dir, "project")
	mkdir(t, dir, "shared")

	cfg := writeAndLoad(t, dir, `
project: project
paths:
  shared: shared
generators: [custom.uuid]
logging:
  level: debug
  format: json
metrics:
  textfile: out/limbo.prom
`)

	if cfg.Project != filepath.Join(dir, "project") {
		t.Errorf("Project = %s", cfg.Project)
	}
	if !cfg.ProjectIsDir {
		t.Error("ProjectIsDir = false, want true")
	}
	if cfg.Paths["shared"] != filepath.Join(dir, "shared") {
		t.Errorf("Paths[shared] = %s", cfg.Paths["shared"])
	}
	if cfg.Paths[config.ThisAlias] != filepath.Join(dir, "project") {
		t.Errorf("Paths[this] = %s, want project dir", cfg.Paths[config.ThisAlias])
	}
	if len(cfg.Generators) != 1 || cfg.Generators[0] != "custom.uuid" {
		t.Errorf("Generators = %v", cfg.Generators)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Textfile != filepath.Join(dir, "out", "limbo.prom") {
		t.Errorf("Metrics.Textfile = %s", cfg.Metrics.Textfile)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg := writeAndLoad(t, dir, "{}\n")

	if cfg.Project != dir {
		t.Errorf("Project = %s, want config dir %s", cfg.Project, dir)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %s, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %s, want console", cfg.Logging.Format)
	}
	if cfg.Paths[config.ThisAlias] != dir {
		t.Errorf("Paths[this] = %s", cfg.Paths[config.ThisAlias])
	}
}

func TestLoad_ProjectFile(t *testing.T) {
	dir := t.TempDir()
	mkdir(t, dir, "proj")
	writeFile(t, filepath.Join(dir, "proj", "project.yaml"), "tables: []\n")

	cfg := writeAndLoad(t, dir, "project: proj/project.yaml\n")

	if cfg.ProjectIsDir {
		t.Error("ProjectIsDir = true for a file")
	}
	if cfg.ProjectDir() != filepath.Join(dir, "proj") {
		t.Errorf("ProjectDir() = %s", cfg.ProjectDir())
	}
	if cfg.Paths[config.ThisAlias] != filepath.Join(dir, "proj") {
		t.Errorf("Paths[this] = %s", cfg.Paths[config.ThisAlias])
	}
}

func TestLoad_ExplicitThisAlias(t *testing.T) {
	dir := t.TempDir()
	mkdir(t, dir, "elsewhere")

	cfg := writeAndLoad(t, dir, "paths:\n  this: elsewhere\n")

	if cfg.Paths[config.ThisAlias] != filepath.Join(dir, "elsewhere") {
		t.Errorf("Paths[this] = %s, configured value should win", cfg.Paths[config.ThisAlias])
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	dir := t.TempDir()
	mkdir(t, dir, "data")
	t.Setenv("LIMBO_TEST_DATA", "data")

	cfg := writeAndLoad(t, dir, `
paths:
  data: ${env:LIMBO_TEST_DATA}
logging:
  level: ${env:LIMBO_TEST_UNSET_LEVEL:-warn}
`)

	if cfg.Paths["data"] != filepath.Join(dir, "data") {
		t.Errorf("Paths[data] = %s", cfg.Paths["data"])
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %s, want warn", cfg.Logging.Level)
	}
}

func TestLoad_MissingEnv(t *testing.T) {
	_, err := writeAndLoadErr(t, t.TempDir(), "project: ${env:LIMBO_TEST_DEFINITELY_UNSET}\n")

	var missing *interpolate.MissingEnvError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingEnvError", err)
	}
	if missing.Name != "LIMBO_TEST_DEFINITELY_UNSET" {
		t.Errorf("Name = %s", missing.Name)
	}
}

func TestLoad_EnvInCommentsIgnored(t *testing.T) {
	cfg := writeAndLoad(t, t.TempDir(), `
# project: ${env:LIMBO_TEST_DEFINITELY_UNSET}
logging:
  level: info # was ${env:LIMBO_TEST_DEFINITELY_UNSET}
`)

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %s, want info", cfg.Logging.Level)
	}
}

func TestLoad_EnvValueNotReparsed(t *testing.T) {
	dir := t.TempDir()
	mkdir(t, dir, "data")
	t.Setenv("LIMBO_TEST_LEVEL", "debug\nformat: xml")

	_, err := writeAndLoadErr(t, dir, "logging:\n  level: ${env:LIMBO_TEST_LEVEL}\n")
	if err == nil {
		t.Fatal("Load should fail")
	}
	if !strings.Contains(err.Error(), "logging.level") {
		t.Errorf("err = %q, want it to name logging.level", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg := writeAndLoad(t, t.TempDir(), "# nothing configured\n")

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %s, want info", cfg.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad level", "logging: { level: loud }\n", "logging.level"},
		{"bad format", "logging: { format: xml }\n", "logging.format"},
		{"dotted alias", "paths: { a.b: . }\n", `invalid alias "a.b"`},
		{"empty generator", "generators: [\"  \"]\n", "generators[0]"},
		{"missing project", "project: nope\n", "does not exist"},
		{"invalid yaml", "project: [\n", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeAndLoadErr(t, t.TempDir(), tt.content)
			if err == nil {
				t.Fatal("Load should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	mkdir(t, dir, "from_env")

	t.Setenv("LIMBO_PROJECT", filepath.Join(dir, "from_env"))
	t.Setenv("LIMBO_LOG_LEVEL", "error")
	t.Setenv("LIMBO_LOG_FORMAT", "json")
	t.Setenv("LIMBO_GENERATORS", "a.one, b.two,,")
	t.Setenv("LIMBO_METRICS_TEXTFILE", "metrics.prom")

	cfg := writeAndLoad(t, dir, `
project: .
generators: [base.gen]
logging:
  level: debug
`)

	if cfg.Project != filepath.Join(dir, "from_env") {
		t.Errorf("Project = %s, want env override", cfg.Project)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if strings.Join(cfg.Generators, ",") != "base.gen,a.one,b.two" {
		t.Errorf("Generators = %v", cfg.Generators)
	}
	if cfg.Metrics.Textfile != filepath.Join(dir, "metrics.prom") {
		t.Errorf("Metrics.Textfile = %s", cfg.Metrics.Textfile)
	}
}

func TestLoadWithFallback_FileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultFile)
	writeFile(t, path, "logging: { level: warn }\n")

	cfg, err := config.LoadWithFallback(path, "")
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %s, want warn from file", cfg.Logging.Level)
	}
}

func TestLoadWithFallback_ProjectArgumentWins(t *testing.T) {
	dir := t.TempDir()
	mkdir(t, dir, "a")
	mkdir(t, dir, "b")
	path := filepath.Join(dir, config.DefaultFile)
	writeFile(t, path, "project: a\n")
	t.Setenv("LIMBO_PROJECT", filepath.Join(dir, "a"))

	cfg, err := config.LoadWithFallback(path, filepath.Join(dir, "b"))
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Project != filepath.Join(dir, "b") {
		t.Errorf("Project = %s, want explicit argument", cfg.Project)
	}
	if cfg.Paths[config.ThisAlias] != filepath.Join(dir, "b") {
		t.Errorf("Paths[this] = %s", cfg.Paths[config.ThisAlias])
	}
}

func TestLoadWithFallback_NoFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := config.LoadWithFallback(filepath.Join(dir, "absent.yaml"), dir)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Project != dir {
		t.Errorf("Project = %s, want %s", cfg.Project, dir)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %s", cfg.Logging.Level)
	}
}

func TestLoadWithFallback_EmptyPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := config.LoadWithFallback("", "")
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	// t.TempDir may sit behind a symlink, compare resolved paths
	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(cfg.Project)
	if got != want {
		t.Errorf("Project = %s, want working directory %s", got, want)
	}
}

// Helpers

func mkdir(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeAndLoad(t *testing.T, dir, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, dir, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, dir, content string) (*config.Config, error) {
	t.Helper()

	path := filepath.Join(dir, config.DefaultFile)
	writeFile(t, path, content)

	return config.Load(path)
}
