package camera

import (
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"camsession/internal/domain"
)

// Extension returns the file extension written for kind.
func Extension(kind domain.MediaKind) string {
	if kind == domain.MediaVideo {
		return ".mjpeg"
	}
	return ".jpg"
}

// MediaPath returns dir/<device>-<kind>-<ulid><ext>. ULIDs sort by creation time.
func MediaPath(dir, deviceID string, kind domain.MediaKind) string {
	name := sanitize(deviceID) + "-" + string(kind) + "-" + newID() + Extension(kind)
	return filepath.Join(dir, name)
}

func newID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// sanitize keeps device ids usable as file name prefixes.
func sanitize(s string) string {
	if s == "" {
		return "camera"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
