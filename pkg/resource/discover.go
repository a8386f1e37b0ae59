package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ternarybob/relay/internal/fileutil"
)

// directoryLayoutFiles maps a resource type to the filename its
// directory-based layout uses, e.g. skills/<name>/SKILL.md.
var directoryLayoutFiles = map[string]string{
	"skill":   "SKILL.md",
	"command": "COMMAND.md",
	"agent":   "AGENT.md",
	"prompt":  "PROMPT.md",
}

// Discover walks root looking for descriptor files under
// "<root>/<type>s/..." for each of the given resource types, recognizing
// three layouts:
//
//   - flat:        <root>/<type>s/<name>.md
//   - categorised: <root>/<type>s/<category>/<name>.md
//   - directory:   <root>/<type>s/<name>/<TYPE>.md
func Discover(root string, types []string) ([]*Resource, error) {
	var resources []*Resource

	for _, typ := range types {
		typeDir := filepath.Join(root, typ+"s")
		if !fileutil.IsDir(typeDir) {
			continue
		}

		layoutFile := directoryLayoutFiles[typ]

		matches, err := doublestar.Glob(os.DirFS(typeDir), "**/*.md")
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", typeDir, err)
		}

		for _, rel := range matches {
			fullPath := filepath.Join(typeDir, filepath.FromSlash(rel))
			name, category := resolveNameAndCategory(rel, layoutFile)
			if name == "" {
				continue
			}

			content, err := fileutil.ReadFile(fullPath)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", fullPath, err)
			}

			r, err := ParseDescriptor(string(content))
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", fullPath, err)
			}

			if r.Name == "" {
				r.Name = name
			}
			r.Type = typ
			r.Namespace = typ + ":" + r.Name
			r.Source = root
			r.Path = fullPath
			if category != "" {
				r.Config["category"] = titleCase(category)
			}

			resources = append(resources, r)
		}
	}

	return resources, nil
}

// resolveNameAndCategory derives a resource's name and category (empty
// for flat and directory-based layouts, the category segment for
// categorised) from its path relative to the type directory.
func resolveNameAndCategory(rel, layoutFile string) (name, category string) {
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")

	switch len(parts) {
	case 1:
		// flat: <name>.md
		return strings.TrimSuffix(parts[0], ".md"), ""
	case 2:
		if layoutFile != "" && parts[1] == layoutFile {
			// directory-based: <name>/<TYPE>.md
			return parts[0], ""
		}
		// categorised: <category>/<name>.md
		return strings.TrimSuffix(parts[1], ".md"), parts[0]
	default:
		// deeper categorised nesting: last segment is the name, the rest
		// joined is the category
		last := parts[len(parts)-1]
		if layoutFile != "" && last == layoutFile {
			return parts[len(parts)-2], strings.Join(parts[:len(parts)-2], "/")
		}
		return strings.TrimSuffix(last, ".md"), strings.Join(parts[:len(parts)-1], "/")
	}
}

// titleCase converts a kebab-case (or slash-separated) category segment
// into a display label, e.g. "data-science" -> "Data Science".
func titleCase(category string) string {
	words := strings.FieldsFunc(category, func(r rune) bool {
		return r == '-' || r == '/'
	})
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
