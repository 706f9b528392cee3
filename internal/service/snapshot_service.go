package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/provalab/examguard-backend/internal/config"
)

// Sentinel errors for snapshot storage.
var (
	ErrUnsupportedSnapshot = errors.New("unsupported snapshot type")
	ErrSnapshotTooLarge    = errors.New("snapshot too large")
)

// Sniffed content types accepted as violation snapshots.
var allowedSnapshotTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// SnapshotService stores client-captured violation snapshots on disk.
// Snapshot storage is advisory: callers treat every error here as a
// degraded write, never as a reason to drop the violation itself.
type SnapshotService struct {
	cfg *config.Config
}

// NewSnapshotService creates a new SnapshotService.
func NewSnapshotService(cfg *config.Config) *SnapshotService {
	return &SnapshotService{cfg: cfg}
}

// Store decodes a base64 snapshot, verifies it is a real image within the
// size cap and writes it under a UUID filename. Returns the stored path.
func (s *SnapshotService) Store(encoded string) (string, error) {
	// Tolerate data URI prefixes from canvas.toDataURL().
	if idx := strings.Index(encoded, ","); idx != -1 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode snapshot: %w", err)
	}

	if int64(len(raw)) > s.cfg.MaxSnapshotBytes {
		return "", fmt.Errorf("%w: %d bytes (max: %d)", ErrSnapshotTooLarge, len(raw), s.cfg.MaxSnapshotBytes)
	}

	// Sniff the actual bytes; the client's claimed type is not trusted.
	contentType := http.DetectContentType(raw)
	ext, ok := allowedSnapshotTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSnapshot, contentType)
	}

	if err := os.MkdirAll(s.cfg.SnapshotDir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	filename := uuid.New().String() + ext
	destPath := filepath.Join(s.cfg.SnapshotDir, filename)
	if err := os.WriteFile(destPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return "/snapshots/" + filename, nil
}
