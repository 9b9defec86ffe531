package extractor

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

type fakeCompleter struct {
	content    string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) GenerateJSONObject(ctx context.Context, system, user string) (string, error) {
	f.lastSystem, f.lastUser = system, user
	return f.content, f.err
}

func TestDecodePayload(t *testing.T) {
	cases := []struct {
		name     string
		content  string
		entities int
		rels     int
		wantErr  bool
	}{
		{"valid", `{"entities":[{"id":"a","name":"A","type":"Skill"}],"relationships":[]}`, 1, 0, false},
		{"fenced", "```json\n{\"entities\":[{\"id\":\"a\"},{\"id\":\"b\"}]}\n```", 2, 0, false},
		{"trailing comma repaired", `{"entities":[{"id":"a","name":"A",}],"relationships":[{"head":"a","relation":"INCLUDES_SKILL","tail":"b"},]}`, 1, 1, false},
		{"null relationships", `{"entities":[],"relationships":null}`, 0, 0, false},
		{"no entities", `{"nodes":[]}`, 0, 0, true},
		{"empty", "   ", 0, 0, true},
		{"entities not a list", `{"entities":"x"}`, 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodePayload(tc.content)
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("err: want=ErrMalformedPayload got=%v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePayload: %v", err)
			}
			if len(got.Entities) != tc.entities || len(got.Relationships) != tc.rels {
				t.Fatalf("sizes: want=%d/%d got=%d/%d", tc.entities, tc.rels, len(got.Entities), len(got.Relationships))
			}
		})
	}
}

func TestLLMExtractorUsesJobPrompt(t *testing.T) {
	fc := &fakeCompleter{content: `{"entities":[{"id":"s1","name":"Python","type":"Skill","category":"Skill"}],"relationships":[]}`}
	x, err := NewLLMExtractor(fc, nil, nil)
	if err != nil {
		t.Fatalf("NewLLMExtractor: %v", err)
	}
	raw, err := x.Extract(context.Background(), "岗位一", VariantJob, "电气工程")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if raw.Len() != 1 || raw.Entities[0].Str("name") != "Python" {
		t.Fatalf("entities: got=%v", raw.Entities)
	}
	if !strings.Contains(fc.lastUser, "【电气工程】") || !strings.Contains(fc.lastUser, "岗位一") {
		t.Fatalf("user prompt not rendered: %q", fc.lastUser)
	}
	if strings.Contains(fc.lastUser, "{{") {
		t.Fatalf("unreplaced placeholder in %q", fc.lastUser)
	}
}

func TestLLMExtractorGeneralWithoutMajor(t *testing.T) {
	fc := &fakeCompleter{content: `{"entities":[]}`}
	x, err := NewLLMExtractor(fc, nil, nil)
	if err != nil {
		t.Fatalf("NewLLMExtractor: %v", err)
	}
	if _, err := x.Extract(context.Background(), "培养方案", VariantJob, " "); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasPrefix(fc.lastUser, "请分析以下文本") {
		t.Fatalf("want general prompt, got %q", fc.lastUser)
	}
}

func TestLLMExtractorErrors(t *testing.T) {
	x, err := NewLLMExtractor(&fakeCompleter{err: errors.New("boom")}, nil, nil)
	if err != nil {
		t.Fatalf("NewLLMExtractor: %v", err)
	}
	if _, err := x.Extract(context.Background(), "t", VariantGeneral, ""); err == nil {
		t.Fatalf("want completer error")
	}

	x, _ = NewLLMExtractor(&fakeCompleter{content: "not json at all"}, nil, nil)
	if _, err := x.Extract(context.Background(), "t", VariantGeneral, ""); err == nil {
		t.Fatalf("want payload error")
	}
}

func TestLoadPromptsOverride(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/prompts.yaml"
	body := "prompts:\n  general:\n    system: s\n    user: \"G {{text}}\"\n  job:\n    system: s\n    user: \"J {{major}} {{text}}\"\n"
	if err := writeFile(path, body); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PROMPT_FILE", path)
	p, err := LoadPrompts()
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	_, user := p.Render(VariantJob, "x", "m")
	if user != "J m x" {
		t.Fatalf("render: want=%q got=%q", "J m x", user)
	}

	if _, err := ParsePrompts([]byte("prompts:\n  general:\n    system: s\n")); err == nil {
		t.Fatalf("want error for incomplete prompt file")
	}
}

func TestMock(t *testing.T) {
	raw := Mock()
	counts := raw.TypeCounts()
	want := map[string]int{"Capability": 8, "Skill": 10, "Quality": 6, "Course": 8}
	for k, v := range want {
		if counts[k] != v {
			t.Fatalf("%s: want=%d got=%d", k, v, counts[k])
		}
	}
	if len(raw.Relationships) != 18 {
		t.Fatalf("relationships: want=18 got=%d", len(raw.Relationships))
	}
	ids := map[string]bool{}
	for _, e := range raw.Entities {
		ids[e.Str("id")] = true
	}
	for _, r := range raw.Relationships {
		if !ids[r.Str("head")] || !ids[r.Str("tail")] {
			t.Fatalf("mock relationship dangles: %v", r)
		}
	}
	if Mock().Entities[0]["type"] != string(types.EntityCapability) {
		t.Fatalf("first mock entity should be a capability")
	}
}

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o644)
}
