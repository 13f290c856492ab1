package prompt

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"file-qa/internal/models"

	"gopkg.in/yaml.v3"
)

const (
	instructionLeadIn = "Your task is as follows:"
	constraintsLeadIn = "Ensure your response follows these rules:"
	styleLeadIn       = "Follow these style and tone guidelines in your response:"
	formatLeadIn      = "Structure your response as follows:"
	contentLeadIn     = "Here are the relevant contents you need to work with:"
	questionLeadIn    = "User's question:"
	closingLine       = "Now perform the task as instructed above."
	sectionSeparator  = "\n\n"
)

// Config is one named prompt template. Every field is optional.
type Config struct {
	Role              string       `yaml:"role"`
	Instruction       StringOrList `yaml:"instruction"`
	OutputConstraints StringOrList `yaml:"output_constraints"`
	StyleOrTone       StringOrList `yaml:"style_or_tone"`
	OutputFormat      StringOrList `yaml:"output_format"`
}

// StringOrList holds a yaml scalar or a sequence of scalars
type StringOrList struct {
	Text  string
	Items []string
}

func (s *StringOrList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&s.Text)
	case yaml.SequenceNode:
		return node.Decode(&s.Items)
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// Empty reports whether rendering s would produce nothing
func (s StringOrList) Empty() bool {
	return s.Text == "" && len(s.Items) == 0
}

func (s StringOrList) render() string {
	if len(s.Items) == 0 {
		return s.Text
	}
	lines := make([]string, len(s.Items))
	for i, item := range s.Items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// LoadConfig reads the template stored under key in the yaml file at path
func LoadConfig(path, key string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config: %w", err)
	}
	return ParseConfig(data, key)
}

func ParseConfig(data []byte, key string) (*Config, error) {
	var templates map[string]Config
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt config: %w", err)
	}
	cfg, ok := templates[key]
	if !ok {
		return nil, fmt.Errorf("prompt template %q not found", key)
	}
	return &cfg, nil
}

// Build renders the template, retrieved documents and question into a single prompt.
// The content block is always present, empty when nothing was retrieved.
func Build(cfg *Config, documents []string, question string) string {
	if cfg == nil {
		cfg = &Config{}
	}
	var parts []string

	if role := strings.TrimSpace(cfg.Role); role != "" {
		parts = append(parts, "You are "+lowercaseFirst(role))
	}
	parts = appendSection(parts, instructionLeadIn, cfg.Instruction)
	parts = appendSection(parts, constraintsLeadIn, cfg.OutputConstraints)
	parts = appendSection(parts, styleLeadIn, cfg.StyleOrTone)
	parts = appendSection(parts, formatLeadIn, cfg.OutputFormat)

	parts = append(parts, contentBlock(documents))

	if question != "" {
		parts = append(parts, questionLeadIn+"\n"+question)
	}
	parts = append(parts, closingLine)

	return strings.Join(parts, sectionSeparator)
}

func appendSection(parts []string, leadIn string, value StringOrList) []string {
	if value.Empty() {
		return parts
	}
	return append(parts, leadIn+"\n"+value.render())
}

func contentBlock(documents []string) string {
	var b strings.Builder
	b.WriteString(contentLeadIn + "\n")
	b.WriteString(models.ContentBeginMarker + sectionSeparator)
	if len(documents) > 0 {
		b.WriteString(strings.Join(documents, sectionSeparator))
		b.WriteString(sectionSeparator)
	}
	b.WriteString(models.ContentEndMarker)
	return b.String()
}

func lowercaseFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
