package fight

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed phrases.yaml
var defaultPhrases []byte

// Phrases are the building blocks of a fight description.
type Phrases struct {
	Verbs   []string `yaml:"verbs"`
	Weapons []string `yaml:"weapons"`
	Win     []string `yaml:"win"`
	Loss    []string `yaml:"loss"`
}

// LoadPhrases reads phrases from a YAML file, or the built-in set when path is empty.
func LoadPhrases(path string) (*Phrases, error) {
	data := defaultPhrases
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading phrases file: %w", err)
		}
	}
	return ParsePhrases(data)
}

// ParsePhrases decodes phrases from YAML. Every list must be non-empty.
func ParsePhrases(data []byte) (*Phrases, error) {
	var phrases Phrases
	if err := yaml.Unmarshal(data, &phrases); err != nil {
		return nil, fmt.Errorf("parsing phrases YAML: %w", err)
	}

	for name, list := range map[string][]string{
		"verbs":   phrases.Verbs,
		"weapons": phrases.Weapons,
		"win":     phrases.Win,
		"loss":    phrases.Loss,
	} {
		if len(list) == 0 {
			return nil, fmt.Errorf("phrases: %s list is empty", name)
		}
	}

	return &phrases, nil
}
