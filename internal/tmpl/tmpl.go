/*
Package tmpl provides the placeholder templates used to render notification
titles and bodies.

Templates use dollar syntax:

	$$        a literal dollar sign
	$name     the value of name
	${name}   the value of name, for use next to identifier characters

Names not present in the mapping, and any dollar sign not followed by a
valid name, are left in the output unchanged. Rendering never fails.
*/
package tmpl

import (
	"regexp"
	"strings"
)

var pattern = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\})`)

// Template is a parsed placeholder template. It is immutable and safe for
// concurrent use.
type Template struct {
	text string
}

// Parse returns a template for text. Any string is a valid template.
func Parse(text string) *Template {
	return &Template{text: text}
}

// String returns the template source.
func (t *Template) String() string {
	return t.text
}

// SafeSubstitute replaces the placeholders found in mapping and leaves
// everything else verbatim.
func (t *Template) SafeSubstitute(mapping map[string]string) string {
	if !strings.Contains(t.text, "$") {
		return t.text
	}
	return pattern.ReplaceAllStringFunc(t.text, func(match string) string {
		sub := pattern.FindStringSubmatch(match)
		switch {
		case sub[1] != "":
			return "$"
		case sub[2] != "":
			if v, ok := mapping[sub[2]]; ok {
				return v
			}
		case sub[3] != "":
			if v, ok := mapping[sub[3]]; ok {
				return v
			}
		}
		return match
	})
}

// Placeholders returns the distinct names referenced by the template, in
// order of first appearance.
func (t *Template) Placeholders() []string {
	var names []string
	seen := make(map[string]bool)
	for _, sub := range pattern.FindAllStringSubmatch(t.text, -1) {
		name := sub[2]
		if name == "" {
			name = sub[3]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
