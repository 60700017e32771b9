// Package texconv wraps Microsoft's texconv executable, the external
// compressor used to regenerate block-compressed textures and mip chains
// from portable images.
//
// The executable resolves lazily, once per Tool: an existing file at the
// configured path is reused, otherwise the published release binary is
// downloaded there. Every conversion runs in its own temporary output
// directory that is removed on all exit paths.
package texconv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DownloadURL is the release artifact fetched when no local executable
// exists.
const DownloadURL = "https://github.com/microsoft/DirectXTex/releases/download/oct2025/texconv.exe"

const (
	defaultPath            = "texconv.exe"
	defaultDownloadTimeout = 30 * time.Second
)

// ErrUnavailable is returned when the executable cannot be found or
// fetched. Callers treat it as "no usable output" for the slot at hand.
var ErrUnavailable = errors.New("texconv: executable unavailable")

// ErrNoOutput is returned when a run exits cleanly but produces no DDS.
var ErrNoOutput = errors.New("texconv: no output produced")

// Tool is a handle to the external converter. Acquire one per run and
// thread it to wherever conversions happen; it is safe for concurrent use.
type Tool struct {
	path            string
	url             string
	client          *http.Client
	logger          *slog.Logger
	downloadTimeout time.Duration

	ensureOnce sync.Once
	ensureErr  error
	resolved   string
}

// Option configures a Tool.
type Option func(*Tool)

// WithPath sets the executable path. The file does not have to exist;
// a missing path is where the download lands.
func WithPath(path string) Option {
	return func(t *Tool) {
		t.path = path
	}
}

// WithClient sets the HTTP client used for the download.
func WithClient(client *http.Client) Option {
	return func(t *Tool) {
		t.client = client
	}
}

// WithLogger sets a logger for download and conversion events.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tool) {
		t.logger = logger
	}
}

// WithDownloadTimeout bounds the release download (default 30s).
// Zero disables the bound.
func WithDownloadTimeout(d time.Duration) Option {
	return func(t *Tool) {
		t.downloadTimeout = d
	}
}

// WithDownloadURL overrides the release URL, for mirrors or pinned builds.
func WithDownloadURL(url string) Option {
	return func(t *Tool) {
		t.url = url
	}
}

// New returns a Tool handle. Nothing is resolved or downloaded until the
// first use.
func New(opts ...Option) *Tool {
	t := &Tool{
		path:            defaultPath,
		url:             DownloadURL,
		client:          http.DefaultClient,
		downloadTimeout: defaultDownloadTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = http.DefaultClient
	}
	if t.url == "" {
		t.url = DownloadURL
	}
	return t
}

func (t *Tool) log() *slog.Logger {
	if t.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.logger
}

// Ensure resolves the executable path, downloading the release binary when
// nothing exists at the configured path. Resolution happens once per Tool;
// later calls return the first outcome.
func (t *Tool) Ensure(ctx context.Context) (string, error) {
	t.ensureOnce.Do(func() {
		t.resolved, t.ensureErr = t.resolve(ctx)
	})
	if t.ensureErr != nil {
		return "", t.ensureErr
	}
	return t.resolved, nil
}

func (t *Tool) resolve(ctx context.Context) (string, error) {
	if _, err := os.Stat(t.path); err == nil {
		return t.path, nil
	}

	if t.downloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.downloadTimeout)
		defer cancel()
	}
	t.log().Info("downloading texconv", "url", t.url, "dest", t.path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: download: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: download status %s", ErrUnavailable, resp.Status)
	}

	if err := saveExecutable(t.path, resp.Body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	t.log().Info("saved texconv", "dest", t.path)
	return t.path, nil
}

// saveExecutable streams r to a temp file then renames it into place, so a
// failed download never leaves a half-written executable behind.
func saveExecutable(target string, r io.Reader) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".texconv-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Convert compresses the image at imagePath into a DDS of the given
// texconv format name with mipCount mip levels and returns the produced
// bytes. srgb requests sRGB-correct filtering.
func (t *Tool) Convert(ctx context.Context, imagePath, format string, mipCount int, srgb bool) ([]byte, error) {
	exe, err := t.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	outDir, err := os.MkdirTemp("", "texconv-out-")
	if err != nil {
		return nil, fmt.Errorf("texconv: temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{"-ft", "DDS", "-f", format, "-m", strconv.Itoa(mipCount)}
	if srgb {
		args = append(args, "-srgb")
	}
	args = append(args, "-y", "-o", outDir, imagePath)
	if err := t.run(ctx, exe, args); err != nil {
		return nil, err
	}

	produced, err := producedDDS(outDir, imagePath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(produced)
	if err != nil {
		return nil, fmt.Errorf("texconv: read output: %w", err)
	}
	return data, nil
}

// RegenerateMips rewrites the DDS at ddsPath in place with a freshly
// generated mipCount-level mip chain. Counts below two are a no-op.
func (t *Tool) RegenerateMips(ctx context.Context, ddsPath string, mipCount int) error {
	if mipCount <= 1 {
		return nil
	}
	exe, err := t.Ensure(ctx)
	if err != nil {
		return err
	}
	outDir, err := os.MkdirTemp(filepath.Dir(ddsPath), ".texconv-mips-")
	if err != nil {
		return fmt.Errorf("texconv: temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{"-m", strconv.Itoa(mipCount), "-nologo", "-y", "-o", outDir, ddsPath}
	t.log().Debug("regenerating mip chain", "dds", ddsPath, "mips", mipCount)
	if err := t.run(ctx, exe, args); err != nil {
		return err
	}

	produced, err := producedDDS(outDir, ddsPath)
	if err != nil {
		return err
	}
	if err := os.Rename(produced, ddsPath); err != nil {
		return fmt.Errorf("texconv: replace %s: %w", ddsPath, err)
	}
	return nil
}

// run executes the tool, folding trimmed output into the returned error so
// per-slot diagnostics carry the tool's own message.
func (t *Tool) run(ctx context.Context, exe string, args []string) error {
	cmd := exec.CommandContext(ctx, exe, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("texconv: %w: %s", err, msg)
		}
		return fmt.Errorf("texconv: %w", err)
	}
	return nil
}

// producedDDS locates the run's output: the source base name with a .dds
// extension when present, else the first .dds in dir.
func producedDDS(dir, srcPath string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath)) + ".dds"
	expected := filepath.Join(dir, base)
	if _, err := os.Stat(expected); err == nil {
		return expected, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("texconv: scan output: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".dds") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", ErrNoOutput
}
