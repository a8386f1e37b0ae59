package resource

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseDescriptor parses one descriptor file's content, adapted from the
// teacher's ParseSkillMD section splitter: either YAML front matter
// (delimited by "---" lines) followed by a Markdown body, or a bare
// Markdown document with an H1 title and top-level "key: value" lines up
// to the first "## " heading.
func ParseDescriptor(content string) (*Resource, error) {
	r := &Resource{
		Enabled:  true,
		Priority: DefaultPriority,
		Config:   make(map[string]any),
		Sections: make(map[string]string),
	}

	body := content
	if fm, rest, ok := splitFrontMatter(content); ok {
		var meta map[string]any
		if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
			return nil, fmt.Errorf("parse front matter: %w", err)
		}
		applyMetadata(r, meta)
		body = rest
	} else {
		title, metaLines, rest := splitHeaderLines(content)
		if title != "" && r.Name == "" {
			r.Name = title
		}
		meta := parseKeyValueLines(metaLines)
		applyMetadata(r, meta)
		body = rest
	}

	r.Sections = parseSections(body)
	if r.Description == "" {
		if desc, ok := r.Sections["description"]; ok {
			r.Description = strings.TrimSpace(desc)
		}
	}

	return r, nil
}

func applyMetadata(r *Resource, meta map[string]any) {
	for key, value := range meta {
		lower := strings.ToLower(key)
		switch lower {
		case "name":
			r.Name = toStringVal(value)
		case "description":
			r.Description = toStringVal(value)
		case "enabled":
			r.Enabled = toBoolVal(value, true)
		case "priority":
			r.Priority = toIntVal(value, DefaultPriority)
		case "backend":
			r.Backend = toStringVal(value)
		case "tags":
			r.Tags = toStringListVal(value)
		case "dependencies":
			r.Dependencies = toStringListVal(value)
		case "version":
			r.Version = toStringVal(value)
		default:
			r.Config[key] = value
		}
	}
}

// splitFrontMatter returns the YAML block and remaining body when content
// begins with a "---" delimited front matter block.
func splitFrontMatter(content string) (frontMatter, rest string, ok bool) {
	trimmed := strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", false
	}
	lines := strings.Split(trimmed, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", "", false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", "", false
}

// splitHeaderLines extracts an H1 title and the top-level "key: value"
// lines that precede the first "## " heading.
func splitHeaderLines(content string) (title string, metaLines []string, rest string) {
	lines := strings.Split(content, "\n")
	restStart := 0

	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "# "):
			title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
		case strings.HasPrefix(line, "## "):
			restStart = i
			return title, metaLines, strings.Join(lines[restStart:], "\n")
		case strings.TrimSpace(line) == "":
			// blank line, not metadata
		default:
			metaLines = append(metaLines, line)
		}
		restStart = i + 1
	}
	return title, metaLines, strings.Join(lines[restStart:], "\n")
}

func parseKeyValueLines(lines []string) map[string]any {
	meta := make(map[string]any)
	for _, line := range lines {
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		meta[key] = value
	}
	return meta
}

// parseSections splits a Markdown body into "## Heading" sections,
// keeping "### " subsections folded into their parent section's text.
func parseSections(content string) map[string]string {
	sections := make(map[string]string)
	lines := strings.Split(content, "\n")

	var currentSection string
	var currentContent strings.Builder

	flush := func() {
		if currentSection != "" {
			sections[currentSection] = currentContent.String()
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			flush()
			currentSection = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			currentContent.Reset()
			continue
		}
		if currentSection == "" {
			continue
		}
		currentContent.WriteString(line)
		currentContent.WriteString("\n")
	}
	flush()

	return sections
}

func toStringVal(v any) string {
	switch t := v.(type) {
	case string:
		return strings.Trim(t, `"'`)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toBoolVal(v any, def bool) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

func toIntVal(v any, def int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

func toStringListVal(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, toStringVal(item))
		}
		return out
	case []string:
		return t
	case string:
		return splitCommaList(t)
	default:
		return nil
	}
}

func splitCommaList(s string) []string {
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.Trim(p, `"'`))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
