package extractor

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/majorgraph-backend/internal/platform/envutil"
)

const promptFileEnv = "PROMPT_FILE"

//go:embed prompts.yaml
var defaultPromptFS embed.FS

type Prompt struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type Prompts struct {
	Version int                `yaml:"version"`
	Prompts map[Variant]Prompt `yaml:"prompts"`
}

// LoadPrompts reads PROMPT_FILE when set, else the embedded defaults.
func LoadPrompts() (*Prompts, error) {
	if path := envutil.String(promptFileEnv, ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("extractor: read prompt file: %w", err)
		}
		return ParsePrompts(data)
	}
	data, err := defaultPromptFS.ReadFile("prompts.yaml")
	if err != nil {
		return nil, fmt.Errorf("extractor: read embedded prompts: %w", err)
	}
	return ParsePrompts(data)
}

func ParsePrompts(data []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("extractor: parse prompts: %w", err)
	}
	for _, v := range []Variant{VariantGeneral, VariantJob} {
		pr, ok := p.Prompts[v]
		if !ok || strings.TrimSpace(pr.System) == "" || strings.TrimSpace(pr.User) == "" {
			return nil, fmt.Errorf("extractor: prompt %q missing system or user template", v)
		}
	}
	return &p, nil
}

// Render fills the user template for variant. {{text}} and {{major}} are substituted.
func (p *Prompts) Render(v Variant, text, major string) (system, user string) {
	pr, ok := p.Prompts[v]
	if !ok {
		pr = p.Prompts[VariantGeneral]
	}
	user = strings.NewReplacer("{{text}}", text, "{{major}}", major).Replace(pr.User)
	return strings.TrimSpace(pr.System), user
}
