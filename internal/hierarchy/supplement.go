package hierarchy

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

//go:embed supplement.yaml
var defaultSupplement []byte

// Supplement is static hierarchy data layered over what the datasets provide.
type Supplement struct {
	Supplement types.Hierarchy `yaml:"supplement"`
	Fallback   types.Hierarchy `yaml:"fallback"`
}

// LoadSupplement reads HIERARCHY_SUPPLEMENT_FILE when set, else the embedded default.
func LoadSupplement() (*Supplement, error) {
	if path := strings.TrimSpace(os.Getenv("HIERARCHY_SUPPLEMENT_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("hierarchy: read supplement %s: %w", path, err)
		}
		return ParseSupplement(data)
	}
	return ParseSupplement(defaultSupplement)
}

func ParseSupplement(data []byte) (*Supplement, error) {
	var s Supplement
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("hierarchy: parse supplement: %w", err)
	}
	return &s, nil
}

// merge returns a copy of base with extra's majors added, each major list sorted and
// deduplicated.
func merge(base, extra types.Hierarchy) types.Hierarchy {
	out := types.Hierarchy{}
	for _, h := range []types.Hierarchy{base, extra} {
		for school, colleges := range h {
			dst, ok := out[school]
			if !ok {
				dst = map[string][]string{}
				out[school] = dst
			}
			for college, majors := range colleges {
				dst[college] = append(dst[college], majors...)
			}
		}
	}
	for _, colleges := range out {
		for college, majors := range colleges {
			colleges[college] = uniqueSorted(majors)
		}
	}
	return out
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
