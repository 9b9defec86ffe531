package graphstore

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

const keySeparator = "\x1f"

// Key is the opaque cache identifier of one (school, college, major) graph. The parts are
// kept alongside the id because the external backend and the legacy file tier address
// graphs by name.
type Key struct {
	ID      string `json:"key"`
	School  string `json:"school"`
	College string `json:"college"`
	Major   string `json:"major"`
}

// DeriveKey is pure: the same trimmed triple always yields the same id, across processes.
func DeriveKey(school, college, major string) Key {
	school = strings.TrimSpace(school)
	college = strings.TrimSpace(college)
	major = strings.TrimSpace(major)
	sum := sha256.Sum256([]byte(school + keySeparator + college + keySeparator + major))
	return Key{
		ID:      hex.EncodeToString(sum[:])[:32],
		School:  school,
		College: college,
		Major:   major,
	}
}

func KeyFor(ref types.GraphRef) Key {
	return DeriveKey(ref.School, ref.College, ref.Major)
}

func (k Key) Ref() types.GraphRef {
	return types.GraphRef{School: k.School, College: k.College, Major: k.Major}
}

func (k Key) valid() bool {
	return k.ID != ""
}
