// Package assets stores uploaded post images on the content-serving filesystem.
package assets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// AllowedExtensions is the fixed allow-list of image extensions, lower case without dot.
var AllowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
}

var (
	// ErrRejected is wrapped by every rejection of an uploaded file.
	ErrRejected = errors.New("image rejected")
	// ErrNoExtension is returned for file names without an extension.
	ErrNoExtension = fmt.Errorf("%w: file name has no extension", ErrRejected)
	// ErrExtensionNotAllowed is returned for extensions outside AllowedExtensions.
	ErrExtensionNotAllowed = fmt.Errorf("%w: only png, jpg, jpeg and gif are allowed", ErrRejected)
	// ErrTooLarge is returned when the upload exceeds the size limit.
	ErrTooLarge = fmt.Errorf("%w: file is too large", ErrRejected)
	// ErrInvalidRef is returned for references that are not plain file names.
	ErrInvalidRef = errors.New("invalid asset reference")
)

// AssetIOError wraps a filesystem failure while saving or removing an asset.
type AssetIOError struct {
	Op  string
	Ref string
	Err error
}

func (e *AssetIOError) Error() string {
	return fmt.Sprintf("%s asset %q: %v", e.Op, e.Ref, e.Err)
}

func (e *AssetIOError) Unwrap() error { return e.Err }

// Manager maps uploads to uniquely named files in Dir.
type Manager struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger
	newToken func() string
	now      func() time.Time
}

// NewManager creates the upload directory if missing and returns a Manager.
// maxBytes <= 0 disables the size limit.
func NewManager(dir string, maxBytes int64, logger *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger,
		newToken: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		now:      time.Now,
	}, nil
}

// Dir returns the upload directory.
func (m *Manager) Dir() string { return m.dir }

func checkExtension(filename string) error {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		return ErrNoExtension
	}
	if _, ok := AllowedExtensions[strings.ToLower(ext)]; !ok {
		return ErrExtensionNotAllowed
	}
	return nil
}

// Accept validates filename, stores src under "<token>_<sanitized name>" and
// returns that name as the asset reference.
func (m *Manager) Accept(filename string, src io.Reader) (string, error) {
	base := baseName(filename)
	if err := checkExtension(base); err != nil {
		return "", err
	}

	ref := m.newToken() + "_" + SanitizeFilename(base)
	dst := filepath.Join(m.dir, ref)

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", &AssetIOError{Op: "save", Ref: ref, Err: err}
	}

	reader := src
	if m.maxBytes > 0 {
		reader = &io.LimitedReader{R: src, N: m.maxBytes + 1}
	}
	written, err := io.Copy(out, reader)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", &AssetIOError{Op: "save", Ref: ref, Err: err}
	}
	if m.maxBytes > 0 && written > m.maxBytes {
		_ = os.Remove(dst)
		return "", ErrTooLarge
	}

	m.logger.Info("asset stored", zap.String("ref", ref), zap.Int64("bytes", written))
	return ref, nil
}

// Remove deletes the asset named ref. A missing file is not an error.
func (m *Manager) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	if ref != filepath.Base(ref) || ref == "." || ref == ".." || strings.ContainsAny(ref, `/\`) {
		return ErrInvalidRef
	}
	if err := os.Remove(filepath.Join(m.dir, ref)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &AssetIOError{Op: "remove", Ref: ref, Err: err}
	}
	m.logger.Info("asset removed", zap.String("ref", ref))
	return nil
}

// Sweep removes files no post references that are older than grace. It returns
// the removed names.
func (m *Manager) Sweep(referenced map[string]struct{}, grace time.Duration) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload directory: %w", err)
	}
	cutoff := m.now().Add(-grace)
	var removed []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, ok := referenced[name]; ok {
			continue
		}
		if strings.HasPrefix(name, ".") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := m.Remove(name); err != nil {
			m.logger.Warn("orphan removal failed", zap.String("ref", name), zap.Error(err))
			continue
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// baseName strips directories using both separators since browsers may send
// Windows paths.
func baseName(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	return filename
}

// SanitizeFilename reduces a file name to ASCII letters, digits, '.', '_' and
// '-', keeping the extension. Names that sanitise to nothing become "image".
func SanitizeFilename(filename string) string {
	name := baseName(filename)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	stem = strings.Trim(cleanPart(stem), "._-")
	if stem == "" {
		stem = "image"
	}
	return stem + cleanPart(ext)
}

func cleanPart(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range norm.NFKD.String(s) {
		switch {
		case r > unicode.MaxASCII:
			continue
		case unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			continue
		}
		lastUnderscore = r == '_'
	}
	return b.String()
}
