package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed notes/*.md
var notesFS embed.FS

// notes holds the rendered markdown files keyed by base name.
type notes map[string]template.HTML

// loadNotes converts every embedded note once at startup. The sources are
// compiled into the binary, so their HTML is trusted.
func loadNotes() (notes, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	entries, err := fs.ReadDir(notesFS, "notes")
	if err != nil {
		return nil, err
	}
	out := notes{}
	for _, e := range entries {
		src, err := notesFS.ReadFile(path.Join("notes", e.Name()))
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := md.Convert(src, &buf); err != nil {
			return nil, fmt.Errorf("markdown convert %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), ".md")] = template.HTML(buf.String())
	}
	return out, nil
}

func (n notes) note(name, title string, open bool) Note {
	return Note{Title: title, Body: n[name], Open: open}
}
