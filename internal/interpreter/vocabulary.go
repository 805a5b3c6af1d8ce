package interpreter

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary holds the fixed phrase sets the rule table matches against.
type Vocabulary struct {
	WakePhrases  []string `yaml:"wake_phrases"`
	ClosePhrases []string `yaml:"close_phrases"`
	Networks     []string `yaml:"networks"`
}

// DefaultVocabulary returns the built-in phrase sets.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		WakePhrases: []string{"hey tv", "tv assistant", "voice control", "activate voice", "start listening"},
		ClosePhrases: []string{
			"close voice", "stop listening", "exit voice", "turn off voice", "goodbye tv",
		},
		Networks: []string{
			"ABC", "CBS", "NBC", "FOX", "CW", "Discovery", "Hallmark", "HGTV", "History", "TBS",
			"TNT", "USA", "SYFY", "TLC", "E!", "NIK", "TCM", "Telemundo", "truTV", "HFAM", "HMYS",
		},
	}
}

// LoadVocabulary overlays a YAML vocabulary file on the defaults. Lists
// present in the file replace the default list; a missing file is not an error.
func LoadVocabulary(path string) (Vocabulary, error) {
	vocab := DefaultVocabulary()
	if strings.TrimSpace(path) == "" {
		return vocab, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return vocab, nil
		}
		return vocab, fmt.Errorf("failed to read vocabulary %q: %w", path, err)
	}

	var overlay Vocabulary
	if err := yaml.Unmarshal(contents, &overlay); err != nil {
		return vocab, fmt.Errorf("failed to parse vocabulary %q: %w", path, err)
	}

	if len(overlay.WakePhrases) > 0 {
		vocab.WakePhrases = lowerAll(overlay.WakePhrases)
	}
	if len(overlay.ClosePhrases) > 0 {
		vocab.ClosePhrases = lowerAll(overlay.ClosePhrases)
	}
	if len(overlay.Networks) > 0 {
		vocab.Networks = trimAll(overlay.Networks)
	}
	return vocab, nil
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.ToLower(strings.TrimSpace(value)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
