// Package markdown splits documents into frontmatter and body, rewrites
// relative image references and cleans up markup left behind by a rich text
// editor before the body is rendered.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Frontmatter is the metadata block at the head of a document. Keys outside
// the known set are kept in Extra so that they survive a rewrite.
type Frontmatter struct {
	Title       string     `yaml:"title,omitempty" json:"title,omitempty"`
	Date        string     `yaml:"date,omitempty" json:"date,omitempty"`
	Author      string     `yaml:"author,omitempty" json:"author,omitempty"`
	Avatar      string     `yaml:"avatar,omitempty" json:"avatar,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        StringList `yaml:"tags,omitempty" json:"tags,omitempty"`
	Category    string     `yaml:"category,omitempty" json:"category,omitempty"`
	ReadingTime string     `yaml:"readingTime,omitempty" json:"readingTime,omitempty"`

	Extra map[string]any `yaml:",inline" json:"extra,omitempty"`
}

// StringList is an ordered list of strings that also accepts a single scalar.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "" {
			*l = nil
			return nil
		}
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	return fmt.Errorf("tags: expected a string or a list of strings")
}

// SplitFrontmatter separates a leading frontmatter block from the body. The
// first line must be exactly "---" and the block ends at the next "---" line.
// A block that fails to parse yields nil frontmatter, but its lines are still
// dropped from the body. Without a complete block the whole input is body.
func SplitFrontmatter(raw string) (*Frontmatter, string) {
	first, rest, ok := cutLine(raw)
	if !ok || first != delim {
		return nil, raw
	}

	var block []string
	for {
		line, next, more := cutLine(rest)
		if line == delim {
			return parseBlock(block), next
		}
		if !more {
			return nil, raw
		}
		block = append(block, line)
		rest = next
	}
}

// cutLine returns the first line of s without its terminator, the remainder
// after the terminator and whether a terminator was found.
func cutLine(s string) (line, rest string, found bool) {
	line, rest, found = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest, found
}

func parseBlock(lines []string) *Frontmatter {
	src := strings.Join(lines, "\n")
	if strings.TrimSpace(src) == "" {
		return nil
	}
	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(src), &fm); err != nil {
		return nil
	}
	return &fm
}

// Marshal serializes the frontmatter as YAML without a trailing newline.
func (fm *Frontmatter) Marshal() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return "", fmt.Errorf("markdown: encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("markdown: encode frontmatter: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Compose re-embeds fm above body. A nil fm returns body unchanged.
func Compose(fm *Frontmatter, body string) (string, error) {
	if fm == nil {
		return body, nil
	}
	y, err := fm.Marshal()
	if err != nil {
		return "", err
	}
	return delim + "\n" + y + "\n" + delim + "\n" + body, nil
}

// Title returns the frontmatter title if set, otherwise the first H1 heading
// of body, otherwise "".
func Title(fm *Frontmatter, body string) string {
	if fm != nil && fm.Title != "" {
		return fm.Title
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// Tags merges frontmatter tags with inline #tags of body, deduplicated in
// order of first appearance.
func Tags(fm *Frontmatter, body string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if fm != nil {
		for _, t := range fm.Tags {
			add(t)
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}
