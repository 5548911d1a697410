package mdadapter

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// FilesExtension resolves [[...]] file links in archive descriptions. The
// resolver is taken from the parser context (FileResolverKey).
type FilesExtension struct {
	tmpl *templates
}

// NewFilesExtension uses the built-in FILE and FILES templates when src is
// empty.
func NewFilesExtension(src string) (goldmark.Extender, error) {
	tmpl, err := newTemplates(src)
	if err != nil {
		return nil, err
	}

	return &FilesExtension{tmpl: tmpl}, nil
}

func (e *FilesExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithInlineParsers(
			util.Prioritized(NewFileDirectiveParser(e.tmpl), 199),
		),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(
			util.Prioritized(NewFileDirectiveRenderer(), 199),
		),
	)
}
