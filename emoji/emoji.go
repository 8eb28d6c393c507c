// Package emoji converts between platform custom emoji tags and portable
// short codes. Exported bundles and transcripts carry short codes like
// :sealed: so they survive outside the guild; import rehydrates them back
// into renderable tags using a name-to-id map.
package emoji

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed emoji.yaml
var defaultMap []byte

// customTag matches a rendered platform emoji, e.g. <:sealed:1208513041654112306>
// or the animated form <a:goldpile:1208513044505968720>.
var customTag = regexp.MustCompile(`<(a?):([A-Za-z0-9_~]+):(\d+)>`)

// shortCode matches a portable :name: code.
var shortCode = regexp.MustCompile(`:([A-Za-z0-9_~]+):`)

type entry struct {
	Name     string `yaml:"name"`
	ID       string `yaml:"id"`
	Animated bool   `yaml:"animated"`
}

type mapFile struct {
	Emoji []entry `yaml:"emoji"`
}

// Codec rehydrates short codes into platform tags. Deemojify needs no map
// and is a package function.
type Codec struct {
	tags map[string]string
}

// New builds a Codec from the embedded emoji map.
func New() (*Codec, error) {
	return parse(defaultMap)
}

// Load builds a Codec from a YAML map file. An empty path falls back to
// the embedded map.
func Load(path string) (*Codec, error) {
	if path == "" {
		return New()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read emoji map: %w", err)
	}
	codec, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse emoji map %s: %w", path, err)
	}
	return codec, nil
}

func parse(data []byte) (*Codec, error) {
	var file mapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal emoji map: %w", err)
	}
	tags := make(map[string]string, len(file.Emoji))
	for i, e := range file.Emoji {
		if e.Name == "" || e.ID == "" {
			return nil, fmt.Errorf("emoji map entry %d: name and id are required", i)
		}
		prefix := ""
		if e.Animated {
			prefix = "a"
		}
		tags[e.Name] = fmt.Sprintf("<%s:%s:%s>", prefix, e.Name, e.ID)
	}
	return &Codec{tags: tags}, nil
}

// Known reports whether the codec can rehydrate the given short code name.
func (c *Codec) Known(name string) bool {
	_, ok := c.tags[name]
	return ok
}

// Emojify replaces every :name: the codec knows with its platform tag.
// Already-rendered tags in the input are left untouched, so the call is
// safe on mixed content.
func (c *Codec) Emojify(s string) string {
	if len(c.tags) == 0 || !strings.Contains(s, ":") {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range customTag.FindAllStringIndex(s, -1) {
		b.WriteString(c.emojifySegment(s[last:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(c.emojifySegment(s[last:]))
	return b.String()
}

func (c *Codec) emojifySegment(s string) string {
	return shortCode.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		if tag, ok := c.tags[name]; ok {
			return tag
		}
		return m
	})
}

// Deemojify rewrites every rendered emoji tag to its portable :name: form.
// Unicode emoji and unknown text pass through unchanged.
func Deemojify(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	return customTag.ReplaceAllString(s, ":$2:")
}
