// Package utils provides utility functions.
package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/mitchellh/go-homedir"
)

var frontmatterBoundaries = regexp.MustCompile(`(?m)^---\s*$`)

// RemoveFrontmatter strips a leading YAML front matter block from note
// content.
func RemoveFrontmatter(content []byte) []byte {
	if !bytes.HasPrefix(content, []byte("---")) {
		return content
	}
	bounds := frontmatterBoundaries.FindAllIndex(content, 2)
	if len(bounds) < 2 || bounds[0][0] != 0 {
		return content
	}
	return bytes.TrimLeft(content[bounds[1][1]:], "\r\n")
}

// ExpandPath expands tilde and all environment variables from the given path.
func ExpandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}

// IsNoteFile reports whether filename looks like a note.
func IsNoteFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case "", ".md", ".markdown", ".mdown", ".mkdn", ".mkd", ".txt", ".note":
		return true
	default:
		return false
	}
}

// GlamourStyle returns a glamour.TermRendererOption based on the given style.
func GlamourStyle(style string) glamour.TermRendererOption {
	if style == styles.AutoStyle {
		return glamour.WithAutoStyle()
	}
	if _, ok := styles.DefaultStyles[style]; ok {
		return glamour.WithStandardStyle(style)
	}
	return glamour.WithStylePath(ExpandPath(style))
}
