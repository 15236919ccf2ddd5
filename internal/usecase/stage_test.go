package usecase

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/V4T54L/hekad-gateway/internal/adapter/metrics"
	"github.com/V4T54L/hekad-gateway/internal/domain"
)

const testTemplate = `[hekad]
base_dir = "$WORKING_DIR$"

[GelfInput]
type = "LogstreamerInput"
log_directory = "$LOG_DIR$"

[TcpOutput]
address = "$SERVER_URL$"
`

func testBundle() fstest.MapFS {
	return fstest.MapFS{
		"hekad/hekad":                {Data: []byte("#!/bin/sh\n")},
		"hekad/hekad.template":       {Data: []byte(testTemplate)},
		"hekad/lua_modules/gelf.lua": {Data: []byte("-- decoder\n")},
	}
}

func newTestStager(bundle fs.FS) (*Stager, *metrics.GatewayMetrics) {
	m := metrics.NewGatewayMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStager(bundle, "hekad", logger, m), m
}

// failingFS lists a file but refuses to open it.
type failingFS struct {
	fstest.MapFS
	broken string
}

func (f failingFS) Open(name string) (fs.File, error) {
	if name == f.broken {
		return nil, fs.ErrPermission
	}
	return f.MapFS.Open(name)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		subs     Substitutions
		want     string
	}{
		{
			name:     "All placeholders",
			template: "dir=$WORKING_DIR$ logs=$LOG_DIR$ url=$SERVER_URL$",
			subs:     Substitutions{WorkingDir: "/tmp/hekad-bin", LogDir: "/var/log/app", ServerURL: "tcp://collector:5565"},
			want:     "dir=/tmp/hekad-bin logs=/var/log/app url=tcp://collector:5565",
		},
		{
			name:     "Backslashes become forward slashes",
			template: "$WORKING_DIR$|$LOG_DIR$",
			subs:     Substitutions{WorkingDir: `C:\Temp\hekad-bin`, LogDir: `C:\logs`},
			want:     "C:/Temp/hekad-bin|C:/logs",
		},
		{
			name:     "Unknown placeholders are untouched",
			template: "$WORKING_DIR$ $OTHER$",
			subs:     Substitutions{WorkingDir: "/w"},
			want:     "/w $OTHER$",
		},
		{
			name:     "Substituted values are not rescanned",
			template: "$WORKING_DIR$",
			subs:     Substitutions{WorkingDir: "/w/$LOG_DIR$", LogDir: "/l"},
			want:     "/w/$LOG_DIR$",
		},
		{
			name:     "Every occurrence is replaced",
			template: "$SERVER_URL$,$SERVER_URL$",
			subs:     Substitutions{ServerURL: "u"},
			want:     "u,u",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, tt.subs); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStager_ExtractBundledAssets(t *testing.T) {
	t.Run("Copies assets with prefix stripped", func(t *testing.T) {
		stager, m := newTestStager(testBundle())
		dir := t.TempDir()

		if err := stager.ExtractBundledAssets(dir); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := os.ReadFile(filepath.Join(dir, "lua_modules", "gelf.lua"))
		if err != nil {
			t.Fatalf("nested asset not extracted: %v", err)
		}
		if string(got) != "-- decoder\n" {
			t.Errorf("unexpected content %q", got)
		}
		info, err := os.Stat(filepath.Join(dir, "hekad"))
		if err != nil {
			t.Fatalf("executable not extracted: %v", err)
		}
		if !info.Mode().IsRegular() {
			t.Errorf("expected %s to be a regular file, got %v", info.Name(), info.Mode())
		}
		if _, err := os.Stat(filepath.Join(dir, TemplateName)); err != nil {
			t.Errorf("template not extracted at the top level: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "lua_modules", "hekad")); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("unexpected nested namespace directory")
		}
		if n := testutil.ToFloat64(m.AssetsExtracted); n != 3 {
			t.Errorf("expected 3 extracted assets, got %v", n)
		}
	})

	t.Run("Executable gets exec permission", func(t *testing.T) {
		if os.PathSeparator == '\\' {
			t.Skip("file modes are not meaningful on windows")
		}
		stager, _ := newTestStager(testBundle())
		dir := t.TempDir()

		if err := stager.ExtractBundledAssets(dir); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info, err := os.Stat(filepath.Join(dir, "hekad"))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm()&0100 == 0 {
			t.Errorf("expected executable mode, got %v", info.Mode())
		}
	})

	t.Run("Running twice overwrites", func(t *testing.T) {
		bundle := testBundle()
		stager, _ := newTestStager(bundle)
		dir := t.TempDir()

		if err := stager.ExtractBundledAssets(dir); err != nil {
			t.Fatal(err)
		}
		bundle["hekad/lua_modules/gelf.lua"] = &fstest.MapFile{Data: []byte("-- v2\n")}
		if err := stager.ExtractBundledAssets(dir); err != nil {
			t.Fatalf("second extraction failed: %v", err)
		}
		got, _ := os.ReadFile(filepath.Join(dir, "lua_modules", "gelf.lua"))
		if string(got) != "-- v2\n" {
			t.Errorf("expected overwritten content, got %q", got)
		}
	})

	t.Run("Wrong prefix fails before copying anything", func(t *testing.T) {
		bundle := testBundle()
		bundle["other/stray.txt"] = &fstest.MapFile{Data: []byte("x")}
		stager, _ := newTestStager(bundle)
		dir := t.TempDir()

		err := stager.ExtractBundledAssets(dir)
		if !errors.Is(err, domain.ErrUnexpectedAsset) {
			t.Fatalf("expected ErrUnexpectedAsset, got %v", err)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 0 {
			t.Errorf("expected no files copied, found %d", len(entries))
		}
	})

	t.Run("Unreadable asset fails", func(t *testing.T) {
		stager, _ := newTestStager(failingFS{MapFS: testBundle(), broken: "hekad/hekad.template"})

		err := stager.ExtractBundledAssets(t.TempDir())
		if !errors.Is(err, domain.ErrEmptyAsset) {
			t.Fatalf("expected ErrEmptyAsset, got %v", err)
		}
	})
}

func TestStager_Prepare(t *testing.T) {
	creds := domain.Credentials{
		CertificateAuthority: "-----BEGIN CERTIFICATE-----\nca\n-----END CERTIFICATE-----\n",
		Certificate:          "client-cert",
		PrivateKey:           "client-key",
	}

	t.Run("Stages a complete working directory", func(t *testing.T) {
		stager, _ := newTestStager(testBundle())
		dir := filepath.Join(t.TempDir(), "hekad-bin")
		subs := Substitutions{WorkingDir: dir, LogDir: `C:\logs\app`, ServerURL: "tcp://collector.example.com:5565"}

		configPath, err := stager.Prepare(dir, creds, subs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if configPath != filepath.Join(dir, ConfigName) {
			t.Errorf("unexpected config path %s", configPath)
		}

		for name, want := range map[string]string{
			CertificateAuthorityFile: creds.CertificateAuthority,
			CertificateFile:          creds.Certificate,
			PrivateKeyFile:           creds.PrivateKey,
		} {
			got, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				t.Fatalf("missing %s: %v", name, err)
			}
			if string(got) != want {
				t.Errorf("%s = %q, want %q", name, got, want)
			}
		}

		rendered, err := os.ReadFile(configPath)
		if err != nil {
			t.Fatal(err)
		}
		config := string(rendered)
		for _, want := range []string{strings.ReplaceAll(dir, `\`, "/"), "C:/logs/app", "tcp://collector.example.com:5565"} {
			if !strings.Contains(config, want) {
				t.Errorf("rendered config missing %q:\n%s", want, config)
			}
		}
		for _, placeholder := range []string{PlaceholderWorkingDir, PlaceholderLogDir, PlaceholderServerURL} {
			if strings.Contains(config, placeholder) {
				t.Errorf("rendered config still contains %s", placeholder)
			}
		}
	})

	t.Run("Existing working directory is reused", func(t *testing.T) {
		stager, _ := newTestStager(testBundle())
		dir := t.TempDir()
		subs := Substitutions{WorkingDir: dir, LogDir: dir, ServerURL: "u"}

		if _, err := stager.Prepare(dir, creds, subs); err != nil {
			t.Fatal(err)
		}
		first, _ := os.ReadDir(dir)
		if _, err := stager.Prepare(dir, creds, subs); err != nil {
			t.Fatalf("second Prepare failed: %v", err)
		}
		second, _ := os.ReadDir(dir)
		if len(first) != len(second) {
			t.Errorf("expected %d entries after restaging, got %d", len(first), len(second))
		}
	})

	t.Run("Missing template fails", func(t *testing.T) {
		bundle := testBundle()
		delete(bundle, "hekad/hekad.template")
		stager, _ := newTestStager(bundle)
		dir := t.TempDir()

		if _, err := stager.Prepare(dir, creds, Substitutions{}); err == nil {
			t.Fatal("expected an error")
		}
		if _, err := os.Stat(filepath.Join(dir, ConfigName)); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("config must not be written")
		}
	})
}
