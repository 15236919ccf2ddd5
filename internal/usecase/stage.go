package usecase

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/V4T54L/hekad-gateway/internal/adapter/metrics"
	"github.com/V4T54L/hekad-gateway/internal/domain"
)

const (
	// BundlePrefix is the namespace every bundled asset must live under.
	BundlePrefix = "hekad/"

	TemplateName = "hekad.template"
	ConfigName   = "hekad.toml"

	CertificateAuthorityFile = "ca.crt"
	CertificateFile          = "client.crt"
	PrivateKeyFile           = "client.key"

	PlaceholderWorkingDir = "$WORKING_DIR$"
	PlaceholderLogDir     = "$LOG_DIR$"
	PlaceholderServerURL  = "$SERVER_URL$"
)

// Substitutions are the runtime values rendered into the daemon config.
type Substitutions struct {
	WorkingDir string
	LogDir     string
	ServerURL  string
}

// Render replaces the placeholders in template in a single left-to-right
// pass. Substituted values are not scanned again, and unknown placeholders
// are left as they are. Paths are written with forward slashes.
func Render(template string, subs Substitutions) string {
	return strings.NewReplacer(
		PlaceholderWorkingDir, forwardSlashes(subs.WorkingDir),
		PlaceholderLogDir, forwardSlashes(subs.LogDir),
		PlaceholderServerURL, subs.ServerURL,
	).Replace(template)
}

func forwardSlashes(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Stager materializes the daemon's working directory.
type Stager struct {
	bundle     fs.FS
	executable string
	logger     *slog.Logger
	metrics    *metrics.GatewayMetrics
}

// NewStager creates a Stager that extracts assets from bundle. executable
// is the daemon's file name inside the working directory; it is made
// executable after extraction.
func NewStager(bundle fs.FS, executable string, logger *slog.Logger, m *metrics.GatewayMetrics) *Stager {
	return &Stager{
		bundle:     bundle,
		executable: executable,
		logger:     logger.With("component", "stager"),
		metrics:    m,
	}
}

// Prepare runs every staging step and returns the rendered config path.
// Any failure leaves the directory unfit for launch and is returned as is.
func (s *Stager) Prepare(workingDir string, creds domain.Credentials, subs Substitutions) (string, error) {
	if err := EnsureWorkingDir(workingDir); err != nil {
		return "", err
	}
	if err := s.WriteCredentials(workingDir, creds); err != nil {
		return "", err
	}
	if err := s.ExtractBundledAssets(workingDir); err != nil {
		return "", err
	}
	return s.Stage(workingDir, filepath.Join(workingDir, TemplateName), subs)
}

// EnsureWorkingDir creates dir if missing. An existing directory is reused.
func EnsureWorkingDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create working directory %s: %w", dir, err)
	}
	return nil
}

// WriteCredentials writes the three credential files verbatim.
func (s *Stager) WriteCredentials(workingDir string, creds domain.Credentials) error {
	files := []struct {
		name    string
		content string
		perm    os.FileMode
	}{
		{CertificateAuthorityFile, creds.CertificateAuthority, 0644},
		{CertificateFile, creds.Certificate, 0644},
		{PrivateKeyFile, creds.PrivateKey, 0600},
	}
	for _, f := range files {
		target := filepath.Join(workingDir, f.name)
		if err := os.WriteFile(target, []byte(f.content), f.perm); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
	}
	s.logger.Info("Wrote credentials", "dir", workingDir)
	return nil
}

// ExtractBundledAssets copies every bundled asset into workingDir with the
// namespace prefix stripped, overwriting existing files. All names are
// checked before anything is copied; an asset outside the namespace or one
// that cannot be opened aborts the extraction.
func (s *Stager) ExtractBundledAssets(workingDir string) error {
	names, err := s.assetNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := s.extract(workingDir, name); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.AssetsExtracted.Inc()
		}
	}
	s.logger.Info("Extracted bundled assets", "dir", workingDir, "count", len(names))
	return nil
}

func (s *Stager) assetNames() ([]string, error) {
	var names []string
	err := fs.WalkDir(s.bundle, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to enumerate bundled assets at %s: %w", name, err)
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasPrefix(name, BundlePrefix) {
			return fmt.Errorf("%w: %s", domain.ErrUnexpectedAsset, name)
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Stager) extract(workingDir, name string) error {
	clean := strings.TrimPrefix(name, BundlePrefix)
	target := filepath.Join(workingDir, filepath.FromSlash(clean))

	src, err := s.bundle.Open(name)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrEmptyAsset, name, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}

	perm := os.FileMode(0644)
	if path.Base(clean) == s.executable {
		perm = 0755
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", name, target, err)
	}
	// OpenFile keeps the mode of an existing file.
	if err := os.Chmod(target, perm); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", target, err)
	}

	s.logger.Debug("Extracted asset", "asset", name, "target", target, "size", humanize.Bytes(uint64(n)))
	return nil
}

// Stage renders the template at templatePath into ConfigName inside
// workingDir and returns the written path.
func (s *Stager) Stage(workingDir, templatePath string, subs Substitutions) (string, error) {
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read config template: %w", err)
	}

	configPath := filepath.Join(workingDir, ConfigName)
	if err := os.WriteFile(configPath, []byte(Render(string(template), subs)), 0644); err != nil {
		return "", fmt.Errorf("failed to write rendered config: %w", err)
	}
	s.logger.Info("Rendered daemon config", "path", configPath, "server_url", subs.ServerURL)
	return configPath, nil
}
