package story

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/hammamikhairi/sleepylearn/internal/domain"
)

//go:embed story_pack.schema.json
var packSchemaJSON []byte

const packSchemaURL = "https://sleepylearn.local/schemas/story_pack.schema.json"

var (
	packSchemaOnce sync.Once
	packSchema     *jsonschema.Schema
	packSchemaErr  error
)

type packFile struct {
	Stories []packStory `json:"stories"`
}

type packStory struct {
	Title    string        `json:"title"`
	Segments []packSegment `json:"segments"`
}

type packSegment struct {
	Text       string `json:"text"`
	DurationMS *int64 `json:"duration_ms,omitempty"`
}

func compilePackSchema() (*jsonschema.Schema, error) {
	packSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(packSchemaURL, bytes.NewReader(packSchemaJSON)); err != nil {
			packSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		packSchema, packSchemaErr = compiler.Compile(packSchemaURL)
		if packSchemaErr != nil {
			packSchemaErr = fmt.Errorf("compile schema: %w", packSchemaErr)
		}
	})
	return packSchema, packSchemaErr
}

// LoadPack reads a story pack from a .yaml, .yml or .json file.
func LoadPack(path string) ([]*domain.Story, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read story pack: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	stories, err := ParsePack(raw, ext == ".yaml" || ext == ".yml")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stories, nil
}

// ParsePack decodes and validates a story pack. YAML input is converted
// to JSON first so one schema covers both formats. Segment text gets a
// terminal if it lacks one, and segments without duration_ms get the
// usual length-based hint.
func ParsePack(raw []byte, isYAML bool) ([]*domain.Story, error) {
	if isYAML {
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: yaml: %v", domain.ErrInvalidPack, err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: yaml to json: %v", domain.ErrInvalidPack, err)
		}
		raw = converted
	}

	schema, err := compilePackSchema()
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: json: %v", domain.ErrInvalidPack, err)
	}
	if err := schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPack, err)
	}

	var pf packFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrInvalidPack, err)
	}

	seen := make(map[string]bool, len(pf.Stories))
	out := make([]*domain.Story, 0, len(pf.Stories))
	for _, ps := range pf.Stories {
		title := strings.TrimSpace(ps.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: blank title", domain.ErrInvalidPack)
		}
		if seen[title] {
			return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateTitle, title)
		}
		seen[title] = true

		st := &domain.Story{ID: "pack-" + title, Title: title, Source: domain.SourceFallback}
		for i, seg := range ps.Segments {
			text := terminate(seg.Text)
			hint := HintFor(text)
			if seg.DurationMS != nil {
				hint = time.Duration(*seg.DurationMS) * time.Millisecond
			}
			s, err := domain.NewSegment(text, hint)
			if err != nil {
				return nil, fmt.Errorf("%w: %q segment %d: %v", domain.ErrInvalidPack, title, i+1, err)
			}
			st.Segments = append(st.Segments, s)
		}
		out = append(out, st)
	}
	return out, nil
}
