package bot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Special keys in the interactions table.
const (
	KeyYes       = "yes"
	KeyAnother   = "another"
	KeyGoodbye   = "goodbye"
	KeyGeneric   = "generic"
	KeyNextQuery = "nextquery"
)

var specialKeys = []string{KeyYes, KeyAnother, KeyGoodbye, KeyGeneric, KeyNextQuery}

// requiredKeys must have at least one prompt for every transition to have a
// reply.
var requiredKeys = []string{KeyAnother, KeyGoodbye, KeyGeneric}

// Interactions maps keywords to prompts and prompts to solutions.
// It is read-only once loaded.
type Interactions struct {
	prompts   map[string][]string
	solutions map[string][]string
}

// NewInteractions returns an empty table.
func NewInteractions() *Interactions {
	return &Interactions{
		prompts:   make(map[string][]string),
		solutions: make(map[string][]string),
	}
}

// Add records prompt under key and, when non-empty, solution under prompt.
// Repeated prompts are stored once.
func (in *Interactions) Add(key, prompt, solution string) {
	key = strings.ToLower(strings.TrimSpace(key))
	prompt = strings.TrimSpace(prompt)
	solution = strings.TrimSpace(solution)
	if key == "" || prompt == "" {
		return
	}

	if !slices.Contains(in.prompts[key], prompt) {
		in.prompts[key] = append(in.prompts[key], prompt)
	}
	if solution != "" && !slices.Contains(in.solutions[prompt], solution) {
		in.solutions[prompt] = append(in.solutions[prompt], solution)
	}
}

// Prompts returns the prompts for key.
func (in *Interactions) Prompts(key string) []string {
	return in.prompts[key]
}

// Solutions returns the solutions recorded for prompt.
func (in *Interactions) Solutions(prompt string) []string {
	return in.solutions[prompt]
}

// IsKeyword reports whether word starts a topic. Special keys are not
// topics.
func (in *Interactions) IsKeyword(word string) bool {
	if slices.Contains(specialKeys, word) {
		return false
	}
	_, ok := in.prompts[word]
	return ok
}

// Keywords returns the topic keywords in sorted order.
func (in *Interactions) Keywords() []string {
	var keys []string
	for key := range in.prompts {
		if !slices.Contains(specialKeys, key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys
}

// Validate checks that the special keys every conversation needs are
// present.
func (in *Interactions) Validate() error {
	var missing []string
	for _, key := range requiredKeys {
		if len(in.prompts[key]) == 0 {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("interactions: missing prompts for %s", strings.Join(missing, ", "))
	}
	if len(in.Keywords()) == 0 {
		return errors.New("interactions: no topic keywords")
	}
	return nil
}

// LoadInteractions reads a CSV (.csv) or YAML (.yaml, .yml) table.
func LoadInteractions(path string) (*Interactions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open interactions: %w", err)
	}
	defer f.Close()

	var in *Interactions
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		in, err = ParseCSV(f)
	case ".yaml", ".yml":
		in, err = ParseYAML(f)
	default:
		return nil, fmt.Errorf("interactions: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

// ParseCSV reads rows of key,prompt[,solution].
func ParseCSV(r io.Reader) (*Interactions, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	in := NewInteractions()
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("row %d: want key,prompt[,solution], got %d fields", row, len(record))
		}

		solution := ""
		if len(record) > 2 {
			solution = record[2]
		}
		in.Add(record[0], record[1], solution)
	}
	return in, nil
}

// yamlInteraction is one entry of the YAML table.
type yamlInteraction struct {
	Key       string   `yaml:"key"`
	Prompt    string   `yaml:"prompt"`
	Solutions []string `yaml:"solutions"`
}

// ParseYAML reads a document of the form
//
//	interactions:
//	  - key: printer
//	    prompt: Is the printer switched on?
//	    solutions: [Switch it on and try again.]
func ParseYAML(r io.Reader) (*Interactions, error) {
	var doc struct {
		Interactions []yamlInteraction `yaml:"interactions"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	in := NewInteractions()
	for i, entry := range doc.Interactions {
		if strings.TrimSpace(entry.Key) == "" || strings.TrimSpace(entry.Prompt) == "" {
			return nil, fmt.Errorf("entry %d: key and prompt are required", i+1)
		}
		if len(entry.Solutions) == 0 {
			in.Add(entry.Key, entry.Prompt, "")
		}
		for _, solution := range entry.Solutions {
			in.Add(entry.Key, entry.Prompt, solution)
		}
	}
	return in, nil
}
