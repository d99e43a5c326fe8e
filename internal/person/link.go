package person

import (
	"path"
	"strings"
)

// FormatLink builds a wikilink to the note at location. The path is kept only
// when the note's basename differs from the display name.
func FormatLink(location, name string) string {
	target := strings.TrimSuffix(location, ".md")
	if name == "" {
		name = path.Base(target)
	}
	if target == "" || path.Base(target) == name {
		return "[[" + name + "]]"
	}
	return "[[" + target + "|" + name + "]]"
}

// ParseLink splits [[target|alias]]. ok is false when s is not a wikilink.
func ParseLink(s string) (target, alias string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[[") || !strings.HasSuffix(s, "]]") {
		return "", "", false
	}
	inner := s[2 : len(s)-2]
	if idx := strings.Index(inner, "|"); idx != -1 {
		return strings.TrimSpace(inner[:idx]), strings.TrimSpace(inner[idx+1:]), true
	}
	return strings.TrimSpace(inner), "", true
}

// LinkName is the name a display link shows to the reader.
func LinkName(s string) string {
	target, alias, ok := ParseLink(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	if alias != "" {
		return alias
	}
	return path.Base(strings.TrimSuffix(target, ".md"))
}
