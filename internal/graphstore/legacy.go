package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

const legacySuffix = "_graph.json"

// LegacyTier reads and writes the uncompressed JSON files produced by earlier deployments,
// named after the (school, college, major) triple rather than the key id. The name drops
// punctuation, so two triples can share a file name; files written here carry their key
// and a second triple mapping to a taken name is written to "<name>_<id prefix>_graph.json".
type LegacyTier struct {
	dir   string
	locks keyLocks
}

func NewLegacyTier(dir string) *LegacyTier {
	return &LegacyTier{dir: dir}
}

func (l *LegacyTier) Name() string { return "legacy" }

// SafeFilename keeps letters, digits, spaces, hyphens and underscores.
func SafeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

func legacyBase(key Key) string {
	return SafeFilename(key.School) + "_" + SafeFilename(key.College) + "_" + SafeFilename(key.Major)
}

func (l *LegacyTier) primaryPath(key Key) string {
	return filepath.Join(l.dir, legacyBase(key)+legacySuffix)
}

func (l *LegacyTier) altPath(key Key) string {
	id := key.ID
	if len(id) > 12 {
		id = id[:12]
	}
	return filepath.Join(l.dir, legacyBase(key)+"_"+id+legacySuffix)
}

// legacyDoc is the on-disk shape: the graph plus the key it was saved under. Files from
// earlier deployments have no key fields.
type legacyDoc struct {
	CacheKey string `json:"cache_key,omitempty"`
	School   string `json:"school,omitempty"`
	College  string `json:"college,omitempty"`
	Major    string `json:"major,omitempty"`
	types.Graph
}

// key returns the key recorded in the file when it is complete and consistent.
func (d *legacyDoc) key() (Key, bool) {
	if d.CacheKey == "" {
		return Key{}, false
	}
	k := DeriveKey(d.School, d.College, d.Major)
	return k, k.ID == d.CacheKey
}

// resolve finds the file holding key's graph. An unkeyed file at the primary name is
// accepted since nothing better is known about it.
func (l *LegacyTier) resolve(key Key) (string, *legacyDoc, error) {
	primary := l.primaryPath(key)
	for _, p := range []string{primary, l.altPath(key)} {
		doc, err := readLegacyDoc(p)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return "", nil, err
		}
		if doc.CacheKey == key.ID || (doc.CacheKey == "" && p == primary) {
			return p, doc, nil
		}
	}
	return "", nil, ErrNotFound
}

func (l *LegacyTier) Exists(key Key) bool {
	_, _, err := l.resolve(key)
	return err == nil
}

// Path reports the file currently holding key's graph.
func (l *LegacyTier) Path(key Key) (string, bool) {
	p, _, err := l.resolve(key)
	return p, err == nil
}

func (l *LegacyTier) Save(ctx context.Context, key Key, g *types.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := l.locks.lock(key.ID)
	defer unlock()

	target := l.primaryPath(key)
	if doc, err := readLegacyDoc(target); err == nil && doc.CacheKey != "" && doc.CacheKey != key.ID {
		target = l.altPath(key)
	}
	doc := legacyDoc{
		CacheKey: key.ID,
		School:   key.School,
		College:  key.College,
		Major:    key.Major,
		Graph:    *ensureSlices(g.Clone()),
	}
	err := writeFileAtomic(target, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	})
	if err != nil {
		return fmt.Errorf("legacy save %s: %w", key.ID, err)
	}
	if target == l.primaryPath(key) {
		if err := removeIfExists(l.altPath(key)); err != nil {
			return fmt.Errorf("legacy save %s: drop alternate: %w", key.ID, err)
		}
	}
	return nil
}

func (l *LegacyTier) Load(ctx context.Context, key Key) (*types.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, doc, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	return ensureSlices(&doc.Graph), nil
}

// Delete removes only files that belong to key; a same-named file of another triple stays.
func (l *LegacyTier) Delete(_ context.Context, key Key) error {
	unlock := l.locks.lock(key.ID)
	defer unlock()
	primary := l.primaryPath(key)
	for _, p := range []string{primary, l.altPath(key)} {
		doc, err := readLegacyDoc(p)
		if err == ErrNotFound {
			continue
		}
		if err == nil && doc.CacheKey != key.ID && !(doc.CacheKey == "" && p == primary) {
			continue
		}
		if err := removeIfExists(p); err != nil {
			return fmt.Errorf("legacy delete %s: %w", key.ID, err)
		}
	}
	return nil
}

func readLegacyDoc(path string) (*legacyDoc, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("legacy load %s: %w", filepath.Base(path), err)
	}
	var doc legacyDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("legacy decode %s: %w", filepath.Base(path), err)
	}
	ensureSlices(&doc.Graph)
	return &doc, nil
}
