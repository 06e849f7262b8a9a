package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/nfe-monitor/constants"
)

// LocalSource treats a directory as the inbox. File.ID is the base name of the file.
type LocalSource struct {
	inbox     string
	processed string
	debounce  time.Duration
	logger    *slog.Logger
}

type LocalOption func(*LocalSource)

// WithDebounce sets how long Watch waits for inbox activity to settle; 0 signals on every event.
func WithDebounce(d time.Duration) LocalOption {
	return func(s *LocalSource) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// NewLocalSource creates the processed directory if needed.
func NewLocalSource(inbox, processed string, logger *slog.Logger, opts ...LocalOption) (*LocalSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(inbox) == "" || strings.TrimSpace(processed) == "" {
		return nil, errors.New("inbox and processed directories are required")
	}
	st, err := os.Stat(inbox)
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("inbox %s is not a directory", inbox)
	}
	if err := os.MkdirAll(processed, 0o755); err != nil {
		return nil, fmt.Errorf("processed dir: %w", err)
	}
	s := &LocalSource{inbox: inbox, processed: processed, debounce: 2 * time.Second, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// List returns supported files directly inside the inbox, sorted by name.
func (s *LocalSource) List(ctx context.Context) ([]File, error) {
	var out []File
	err := filepath.WalkDir(s.inbox, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path == s.inbox {
				return nil
			}
			return filepath.SkipDir
		}
		if IsHidden(path) || !d.Type().IsRegular() {
			return nil
		}
		ext := filepath.Ext(path)
		if !AllowedExt(ext) {
			return nil
		}
		name := d.Name()
		out = append(out, File{ID: name, Name: name, MimeType: constants.MimeForExt(ext)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return out, nil
}

func (s *LocalSource) path(f File) (string, error) {
	if f.ID == "" || filepath.Base(f.ID) != f.ID || f.ID == "." || f.ID == ".." {
		return "", fmt.Errorf("invalid local file id %q", f.ID)
	}
	return filepath.Join(s.inbox, f.ID), nil
}

func (s *LocalSource) Download(_ context.Context, f File) ([]byte, error) {
	p, err := s.path(f)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.ID, err)
	}
	return data, nil
}

// Archive renames the file into the processed directory. A name clash gets a numeric suffix.
func (s *LocalSource) Archive(_ context.Context, f File) error {
	src, err := s.path(f)
	if err != nil {
		return err
	}
	dst := filepath.Join(s.processed, f.ID)
	ext := filepath.Ext(f.ID)
	stem := strings.TrimSuffix(f.ID, ext)
	for i := 1; fileExists(dst); i++ {
		dst = filepath.Join(s.processed, stem+"-"+strconv.Itoa(i)+ext)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %s to processed: %w", f.ID, err)
	}
	s.logger.Info("archived file", "file_id", f.ID, "dest", dst)
	return nil
}

func fileExists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
