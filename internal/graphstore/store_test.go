package graphstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

type fakeBackend struct {
	connected bool
	graphs    map[string]*types.Graph
	loadErr   error
	saveErr   error
	deleteErr error
	// onLoad runs before LoadGraph answers.
	onLoad func()
	saves  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{connected: true, graphs: map[string]*types.Graph{}}
}

func (f *fakeBackend) Connected() bool { return f.connected }

func (f *fakeBackend) SaveGraph(_ context.Context, id string, _ types.GraphRef, g *types.Graph) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.graphs[id] = g.Clone()
	return nil
}

func (f *fakeBackend) LoadGraph(_ context.Context, id string) (*types.Graph, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	g, ok := f.graphs[id]
	if f.onLoad != nil {
		f.onLoad()
	}
	if !ok {
		return nil, nil
	}
	return g.Clone(), nil
}

func (f *fakeBackend) DeleteGraph(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.graphs, id)
	return nil
}

func (f *fakeBackend) HasGraph(_ context.Context, id string) (bool, error) {
	_, ok := f.graphs[id]
	return ok, nil
}

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	s, err := NewStore(opts)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestStoreRoundTripThroughCompressedTier(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})
	k := DeriveKey("示例大学", "信息学院", "软件工程")
	g := graphWith("Python", "SQL")
	g.Relationships = append(g.Relationships, types.Relationship{Head: "ea", Relation: types.RelIncludesSkill, Tail: "eb"})

	if err := s.Save(ctx, k, g); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), k.ID+compressedExt)); err != nil {
		t.Fatalf("compressed file missing: %v", err)
	}
	if s.legacy.Exists(k) {
		t.Fatalf("legacy file written although compression succeeded")
	}

	s.ClearMemory()
	got, err := s.Load(ctx, k)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Entities) != 2 || got.Entities[1].Name != "SQL" {
		t.Fatalf("entities: got=%+v", got.Entities)
	}
	if len(got.Relationships) != 1 || got.Relationships[0].Relation != types.RelIncludesSkill {
		t.Fatalf("relationships: got=%+v", got.Relationships)
	}
	if !s.memory.Has(k) {
		t.Fatalf("disk hit should be promoted into memory")
	}
}

func TestStoreEmptyGraphKeepsShape(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})
	k := DeriveKey("s", "c", "empty")
	if err := s.Save(ctx, k, &types.Graph{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.ClearMemory()
	got, err := s.Load(ctx, k)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Entities == nil || got.Relationships == nil {
		t.Fatalf("empty graph should decode with empty, non-nil slices")
	}
}

func TestStoreLegacyPrimaryWhenCompressionDisabled(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{DisableCompression: true})
	k := DeriveKey("示例大学", "信息学院", "软件工程")
	if err := s.Save(ctx, k, graphWith("Java")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !fileExists(filepath.Join(s.Dir(), "示例大学_信息学院_软件工程_graph.json")) {
		t.Fatalf("legacy file not written")
	}
	if s.compressed.Exists(k) {
		t.Fatalf("compressed file written although disabled")
	}
	s.ClearMemory()
	got, err := s.Load(ctx, k)
	if err != nil || got.Entities[0].Name != "Java" {
		t.Fatalf("legacy load: got=%+v err=%v", got, err)
	}
}

func TestStoreFallsBackToLegacyWriter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})
	k := DeriveKey("s", "c", "fallback")
	// A directory at the compressed path makes the rename fail.
	if err := os.Mkdir(filepath.Join(s.Dir(), k.ID+compressedExt), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), k.ID+compressedExt, "block"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := s.Save(ctx, k, graphWith("C++")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !s.legacy.Exists(k) {
		t.Fatalf("legacy fallback file missing")
	}
	s.ClearMemory()
	got, err := s.Load(ctx, k)
	if err != nil || got.Entities[0].Name != "C++" {
		t.Fatalf("load after fallback: got=%+v err=%v", got, err)
	}
}

func TestStoreBackendTier(t *testing.T) {
	ctx := context.Background()
	be := newFakeBackend()
	s := newTestStore(t, Options{Backend: be})
	k := DeriveKey("s", "c", "backend")

	if err := s.Save(ctx, k, graphWith("Linux")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if be.saves != 1 {
		t.Fatalf("backend saves: want=1 got=%d", be.saves)
	}

	// Backend read errors fall through to the local tiers.
	be.loadErr = errors.New("connection reset")
	s.ClearMemory()
	got, err := s.Load(ctx, k)
	if err != nil || got.Entities[0].Name != "Linux" {
		t.Fatalf("load with failing backend: got=%+v err=%v", got, err)
	}

	be.loadErr = nil
	be.connected = false
	if p := s.Inspect(ctx, k); p.BackendConfigured || p.Backend {
		t.Fatalf("disconnected backend reported present: %+v", p)
	}
}

func TestStoreBackendHitIsPromoted(t *testing.T) {
	ctx := context.Background()
	be := newFakeBackend()
	s := newTestStore(t, Options{Backend: be})
	k := DeriveKey("s", "c", "remote-only")
	be.graphs[k.ID] = graphWith("MATLAB")

	got, err := s.Load(ctx, k)
	if err != nil || got.Entities[0].Name != "MATLAB" {
		t.Fatalf("backend load: got=%+v err=%v", got, err)
	}
	if !s.memory.Has(k) {
		t.Fatalf("backend hit should be promoted")
	}
}

func TestStoreDeleteRemovesEveryTier(t *testing.T) {
	ctx := context.Background()
	be := newFakeBackend()
	s := newTestStore(t, Options{Backend: be})
	k := DeriveKey("s", "c", "gone")
	if err := s.Save(ctx, k, graphWith("Git")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.legacy.Save(ctx, k, graphWith("Git")); err != nil {
		t.Fatalf("legacy save: %v", err)
	}

	if err := s.Delete(ctx, k); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Load(ctx, k); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load after delete: want ErrNotFound got=%v", err)
	}
	if p := s.Inspect(ctx, k); p.Any() || p.Metadata != nil {
		t.Fatalf("presence after delete: %+v", p)
	}
	if err := s.Delete(ctx, k); err != nil {
		t.Fatalf("deleting an absent graph should succeed: %v", err)
	}
}

func TestStoreStatsAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})
	a := DeriveKey("甲大学", "学院", "专业一")
	b := DeriveKey("乙大学", "学院", "专业二")
	_ = s.Save(ctx, a, graphWith("x", "y"))
	_ = s.Save(ctx, b, graphWith("z"))

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.GraphCount != 2 || st.TotalEntities != 3 || st.MemoryResidentCount != 2 {
		t.Fatalf("stats: got=%+v", st)
	}
	if st.DiskBytes <= 0 {
		t.Fatalf("disk bytes should be positive: %d", st.DiskBytes)
	}
	if got := s.List("乙大学"); len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("filtered list: got=%+v", got)
	}
	if got := s.List(""); len(got) != 2 {
		t.Fatalf("list: want=2 got=%d", len(got))
	}

	// The index survives a restart.
	reopened := newTestStore(t, Options{Dir: s.Dir()})
	if got := reopened.List(""); len(got) != 2 {
		t.Fatalf("reopened list: want=2 got=%d", len(got))
	}
}

func TestStoreCompressExisting(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	legacy := NewLegacyTier(dir)
	k := DeriveKey("示例大学", "信息学院", "软件_工程")
	if err := legacy.Save(ctx, k, graphWith("SQL")); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}

	s := newTestStore(t, Options{Dir: dir})
	n, err := s.CompressExisting(ctx)
	if err != nil {
		t.Fatalf("compress existing: %v", err)
	}
	if n != 1 {
		t.Fatalf("converted: want=1 got=%d", n)
	}
	if legacy.Exists(k) {
		t.Fatalf("original should be moved aside")
	}
	if !fileExists(legacy.primaryPath(k) + ".backup") {
		t.Fatalf("backup file missing")
	}
	got, err := s.Load(ctx, k)
	if err != nil || got.Entities[0].Name != "SQL" {
		t.Fatalf("load converted: got=%+v err=%v", got, err)
	}
}

func TestStoreEachVisitsIndexedGraphs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{})
	for _, m := range []string{"a", "b", "c"} {
		_ = s.Save(ctx, DeriveKey("s", "c", m), graphWith(m))
	}
	seen := 0
	err := s.Each(ctx, func(m Meta, g *types.Graph) error {
		seen++
		if len(g.Entities) != 1 {
			t.Fatalf("graph for %s: %+v", m.Major, g)
		}
		return nil
	})
	if err != nil || seen != 3 {
		t.Fatalf("each: seen=%d err=%v", seen, err)
	}
}

func names(g *types.Graph) []string {
	out := make([]string, 0, len(g.Entities))
	for _, e := range g.Entities {
		out = append(out, e.Name)
	}
	return out
}

func TestStoreSaveReplacesPreviousGraph(t *testing.T) {
	cases := []struct {
		name        string
		opts        Options
		clearMemory bool
	}{
		{"memory", Options{}, false},
		{"compressed", Options{}, true},
		{"legacy", Options{DisableCompression: true}, true},
		{"backend", Options{Backend: newFakeBackend()}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, tc.opts)
			k := DeriveKey("示例大学", "信息学院", "k1")
			if err := s.Save(ctx, k, graphWith("Java", "Go")); err != nil {
				t.Fatalf("save g1: %v", err)
			}
			if err := s.Save(ctx, k, graphWith("Rust")); err != nil {
				t.Fatalf("save g2: %v", err)
			}
			if tc.clearMemory {
				s.ClearMemory()
			}
			got, err := s.Load(ctx, k)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if n := names(got); len(n) != 1 || n[0] != "Rust" {
				t.Fatalf("load after two saves: want=[Rust] got=%v", n)
			}
		})
	}
}

func TestStoreMemoryHitIgnoresBrokenDisk(t *testing.T) {
	cases := []struct {
		name   string
		damage func(t *testing.T, path string)
	}{
		{"corrupted", func(t *testing.T, path string) {
			if err := os.WriteFile(path, []byte("not gzip"), 0o644); err != nil {
				t.Fatalf("corrupt: %v", err)
			}
		}},
		{"missing", func(t *testing.T, path string) {
			if err := os.Remove(path); err != nil {
				t.Fatalf("remove: %v", err)
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, Options{})
			k := DeriveKey("s", "c", "resident")
			if err := s.Save(ctx, k, graphWith("Docker")); err != nil {
				t.Fatalf("save: %v", err)
			}
			tc.damage(t, filepath.Join(s.Dir(), k.ID+compressedExt))

			got, err := s.Load(ctx, k)
			if err != nil || names(got)[0] != "Docker" {
				t.Fatalf("memory load: got=%+v err=%v", got, err)
			}
		})
	}
}

func TestStoreBackendWriteFailureNeverServesOlderGraph(t *testing.T) {
	cases := []struct {
		name      string
		deleteErr error
		wantStale bool
	}{
		{"old copy purged", nil, false},
		{"purge fails too", errors.New("neo4j down"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			be := newFakeBackend()
			s := newTestStore(t, Options{Backend: be})
			k := DeriveKey("s", "c", "flaky")
			if err := s.Save(ctx, k, graphWith("G1")); err != nil {
				t.Fatalf("save g1: %v", err)
			}

			be.saveErr = errors.New("write timeout")
			be.deleteErr = tc.deleteErr
			if err := s.Save(ctx, k, graphWith("G2")); err != nil {
				t.Fatalf("save g2: %v", err)
			}
			if p := s.Inspect(ctx, k); p.BackendStale != tc.wantStale {
				t.Fatalf("backend stale: want=%v got=%v", tc.wantStale, p.BackendStale)
			}

			s.ClearMemory()
			got, err := s.Load(ctx, k)
			if err != nil || names(got)[0] != "G2" {
				t.Fatalf("load after failed backend write: want G2 got=%+v err=%v", got, err)
			}

			// The fence survives a restart.
			reopened := newTestStore(t, Options{Dir: s.Dir(), Backend: be})
			got, err = reopened.Load(ctx, k)
			if err != nil || names(got)[0] != "G2" {
				t.Fatalf("load after restart: want G2 got=%+v err=%v", got, err)
			}

			// A later successful backend write lifts the fence.
			be.saveErr, be.deleteErr = nil, nil
			if err := reopened.Save(ctx, k, graphWith("G3")); err != nil {
				t.Fatalf("save g3: %v", err)
			}
			if reopened.Inspect(ctx, k).BackendStale {
				t.Fatalf("backend should be trusted again after a successful write")
			}
		})
	}
}

func TestStoreBackendDisconnectedDuringSave(t *testing.T) {
	ctx := context.Background()
	be := newFakeBackend()
	s := newTestStore(t, Options{Backend: be})
	k := DeriveKey("s", "c", "offline")
	if err := s.Save(ctx, k, graphWith("G1")); err != nil {
		t.Fatalf("save g1: %v", err)
	}
	be.connected = false
	if err := s.Save(ctx, k, graphWith("G2")); err != nil {
		t.Fatalf("save g2: %v", err)
	}
	be.connected = true
	s.ClearMemory()
	got, err := s.Load(ctx, k)
	if err != nil || names(got)[0] != "G2" {
		t.Fatalf("load after reconnect: want G2 got=%+v err=%v", got, err)
	}
}

func TestStoreDeleteDuringReadIsNotPromoted(t *testing.T) {
	ctx := context.Background()
	be := newFakeBackend()
	s := newTestStore(t, Options{Backend: be})
	k := DeriveKey("s", "c", "rebuild")
	be.graphs[k.ID] = graphWith("old")
	be.onLoad = func() {
		be.onLoad = nil
		if err := s.Delete(ctx, k); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}

	if _, err := s.Load(ctx, k); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.memory.Has(k) {
		t.Fatalf("graph read before the delete was promoted into memory")
	}
	if _, err := s.Load(ctx, k); !errors.Is(err, ErrNotFound) {
		t.Fatalf("load after delete: want ErrNotFound got=%v", err)
	}
}

func TestLegacyTierKeepsCollidingMajorsApart(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Options{DisableCompression: true})
	joint := DeriveKey("示例大学", "信息学院", "软件工程(中外合作)")
	plain := DeriveKey("示例大学", "信息学院", "软件工程中外合作")
	if legacyBase(joint) != legacyBase(plain) {
		t.Fatalf("test keys should share a legacy file name")
	}
	if err := s.Save(ctx, joint, graphWith("joint")); err != nil {
		t.Fatalf("save joint: %v", err)
	}
	if err := s.Save(ctx, plain, graphWith("plain")); err != nil {
		t.Fatalf("save plain: %v", err)
	}
	s.ClearMemory()

	for k, want := range map[Key]string{joint: "joint", plain: "plain"} {
		got, err := s.Load(ctx, k)
		if err != nil || names(got)[0] != want {
			t.Fatalf("load %s: want %s got=%+v err=%v", k.Major, want, got, err)
		}
	}

	if err := s.Delete(ctx, joint); err != nil {
		t.Fatalf("delete joint: %v", err)
	}
	got, err := s.Load(ctx, plain)
	if err != nil || names(got)[0] != "plain" {
		t.Fatalf("neighbour after delete: got=%+v err=%v", got, err)
	}
}

func TestStoreCompressExistingKeepsPunctuatedMajor(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	k := DeriveKey("示例大学", "信息学院", "软件工程(中外合作)")
	if err := NewLegacyTier(dir).Save(ctx, k, graphWith("SQL")); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}

	s := newTestStore(t, Options{Dir: dir})
	n, err := s.CompressExisting(ctx)
	if err != nil || n != 1 {
		t.Fatalf("compress existing: n=%d err=%v", n, err)
	}
	got, err := s.Load(ctx, k)
	if err != nil || names(got)[0] != "SQL" {
		t.Fatalf("load converted: got=%+v err=%v", got, err)
	}
	if m := s.List(""); len(m) != 1 || m[0].Major != "软件工程(中外合作)" {
		t.Fatalf("index entry: got=%+v", m)
	}
}

func TestStoreCompressExistingLeavesUnknownFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// A file from an older deployment: no key inside and no index entry.
	path := filepath.Join(dir, "示例大学_信息学院_软件工程中外合作_graph.json")
	if err := os.WriteFile(path, []byte(`{"entities":[],"relationships":[]}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := newTestStore(t, Options{Dir: dir})
	n, err := s.CompressExisting(ctx)
	if err != nil || n != 0 {
		t.Fatalf("compress existing: n=%d err=%v", n, err)
	}
	if !fileExists(path) {
		t.Fatalf("unrecoverable legacy file should stay in place")
	}
}
