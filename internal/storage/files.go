// Package storage manages upload, output and temp directories.
package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/logging"
)

const maxNameLength = 100

// Config describes the managed directories.
type Config struct {
	UploadDir      string
	OutputDir      string
	TempDir        string
	MaxFileSize    int64
	AllowedFormats []string
}

// Upload describes a saved upload.
type Upload struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// DirStats summarizes one directory.
type DirStats struct {
	FileCount int   `json:"file_count"`
	TotalSize int64 `json:"total_size"`
}

// Stats summarizes all managed directories.
type Stats struct {
	Uploads    DirStats `json:"upload_dir"`
	Outputs    DirStats `json:"output_dir"`
	Temp       DirStats `json:"temp_dir"`
	TotalFiles int      `json:"total_files"`
	TotalSize  int64    `json:"total_size"`
}

// Manager owns the on-disk layout of job files. Every job file is named
// "<jobID>_<suffix>" so a job's files can be found by prefix.
type Manager struct {
	cfg     Config
	allowed map[string]bool
	logger  *logging.Logger
}

// NewManager creates the directories in cfg and returns a manager.
func NewManager(cfg Config, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{cfg: cfg, allowed: make(map[string]bool), logger: logger.WithComponent("storage")}
	for _, f := range cfg.AllowedFormats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && !strings.HasPrefix(f, ".") {
			f = "." + f
		}
		m.allowed[f] = true
	}
	for _, dir := range m.Dirs() {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, core.ErrStorage("creating " + dir).WithCause(err)
		}
	}
	return m, nil
}

// Dirs returns the managed directories in upload, output, temp order.
func (m *Manager) Dirs() []string {
	return []string{m.cfg.UploadDir, m.cfg.OutputDir, m.cfg.TempDir}
}

// UploadDir returns the upload directory.
func (m *Manager) UploadDir() string { return m.cfg.UploadDir }

// OutputDir returns the output directory.
func (m *Manager) OutputDir() string { return m.cfg.OutputDir }

// MaxFileSize returns the upload limit in bytes.
func (m *Manager) MaxFileSize() int64 { return m.cfg.MaxFileSize }

// AllowedFormats returns the accepted extensions.
func (m *Manager) AllowedFormats() []string {
	return append([]string(nil), m.cfg.AllowedFormats...)
}

// CheckFormat validates the extension of filename against the allowlist.
func (m *Manager) CheckFormat(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(m.allowed) > 0 && !m.allowed[ext] {
		return core.ErrValidation(core.CodeUnsupportedFormat,
			fmt.Sprintf("unsupported file format %q; allowed: %s", ext, strings.Join(m.cfg.AllowedFormats, ", ")))
	}
	return nil
}

// SaveUpload streams r into "<upload_dir>/<jobID>_<sanitized filename>".
// The partial file is removed when the size limit is exceeded.
func (m *Manager) SaveUpload(jobID, filename string, r io.Reader) (*Upload, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, core.ErrValidation("MISSING_JOB_ID", "job id is required")
	}
	if err := m.CheckFormat(filename); err != nil {
		return nil, err
	}

	name := jobID + "_" + SanitizeFilename(filename)
	root, err := os.OpenRoot(m.cfg.UploadDir)
	if err != nil {
		return nil, core.ErrStorage("opening upload dir").WithCause(err)
	}
	defer func() { _ = root.Close() }()

	f, err := root.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, core.ErrStorage("creating upload file").WithCause(err)
	}

	size, contentType, err := m.copyLimited(f, r)
	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = core.ErrStorage("closing upload file").WithCause(closeErr)
	}
	if err != nil {
		_ = root.Remove(name)
		return nil, err
	}

	path := filepath.Join(m.cfg.UploadDir, name)
	m.logger.Info("saved upload", "job_id", jobID, "path", path, "size", size)
	return &Upload{Path: path, Name: name, Size: size, ContentType: contentType}, nil
}

func (m *Manager) copyLimited(w io.Writer, r io.Reader) (int64, string, error) {
	var sniff [512]byte
	n, err := io.ReadFull(r, sniff[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, "", core.ErrStorage("reading upload").WithCause(err)
	}
	if n == 0 {
		return 0, "", core.ErrValidation("EMPTY_FILE", "uploaded file is empty")
	}
	contentType := http.DetectContentType(sniff[:n])
	if _, err := w.Write(sniff[:n]); err != nil {
		return 0, "", core.ErrStorage("writing upload").WithCause(err)
	}

	limit := m.cfg.MaxFileSize
	if limit <= 0 {
		written, err := io.Copy(w, r)
		if err != nil {
			return 0, "", core.ErrStorage("writing upload").WithCause(err)
		}
		return int64(n) + written, contentType, nil
	}

	remaining := limit - int64(n)
	if remaining < 0 {
		return 0, "", tooLarge(limit)
	}
	written, err := io.Copy(w, io.LimitReader(r, remaining+1))
	if err != nil {
		return 0, "", core.ErrStorage("writing upload").WithCause(err)
	}
	if written > remaining {
		return 0, "", tooLarge(limit)
	}
	return int64(n) + written, contentType, nil
}

func tooLarge(limit int64) error {
	return core.ErrValidation(core.CodeFileTooLarge,
		fmt.Sprintf("file too large; maximum size is %d MB", limit/(1024*1024)))
}

// JobFiles lists every managed file that belongs to jobID.
func (m *Manager) JobFiles(jobID string) ([]string, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, nil
	}
	var out []string
	for _, dir := range m.Dirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, core.ErrStorage("listing " + dir).WithCause(err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasPrefix(e.Name(), jobID+"_") {
				out = append(out, filepath.Join(dir, e.Name()))
			}
		}
	}
	return out, nil
}

// DeleteJobFiles removes every file of jobID and returns the removed paths.
func (m *Manager) DeleteJobFiles(jobID string) ([]string, error) {
	files, err := m.JobFiles(jobID)
	if err != nil {
		return nil, err
	}
	deleted := make([]string, 0, len(files))
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return deleted, core.ErrStorage("deleting " + f).WithCause(err)
		}
		deleted = append(deleted, f)
	}
	if len(deleted) > 0 {
		m.logger.Info("deleted job files", "job_id", jobID, "count", len(deleted))
	}
	return deleted, nil
}

// Stats reports file counts and sizes per directory.
func (m *Manager) Stats() (Stats, error) {
	var s Stats
	var err error
	if s.Uploads, err = dirStats(m.cfg.UploadDir); err != nil {
		return s, err
	}
	if s.Outputs, err = dirStats(m.cfg.OutputDir); err != nil {
		return s, err
	}
	if s.Temp, err = dirStats(m.cfg.TempDir); err != nil {
		return s, err
	}
	s.TotalFiles = s.Uploads.FileCount + s.Outputs.FileCount + s.Temp.FileCount
	s.TotalSize = s.Uploads.TotalSize + s.Outputs.TotalSize + s.Temp.TotalSize
	return s, nil
}

func dirStats(dir string) (DirStats, error) {
	var s DirStats
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, core.ErrStorage("reading " + dir).WithCause(err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		s.FileCount++
		s.TotalSize += info.Size()
	}
	return s, nil
}

// SanitizeFilename keeps [A-Za-z0-9._-], replaces everything else with '_',
// prefixes "upload" to empty or dot-leading names and caps the length.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || strings.HasPrefix(out, ".") {
		out = "upload" + out
	}
	if len(out) > maxNameLength {
		out = out[:maxNameLength]
	}
	return out
}

// ReadFileScoped reads a file through an os.Root opened on its directory so
// symlinks cannot escape it.
func ReadFileScoped(path string) ([]byte, error) {
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid file path: %q", path)
	}
	root, err := os.OpenRoot(filepath.Dir(cleaned))
	if err != nil {
		return nil, err
	}
	defer root.Close()

	f, err := root.Open(base)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
