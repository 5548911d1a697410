package mdadapter

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/jgivc/browsersync/internal/entity"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

const (
	templateNameFile    = "FILE"
	templateNameFiles   = "FILES"
	templateNameMissing = "MISSING"

	defaultTemplates = `{{define "FILE"}}<a class="file-link" data-file-gri="{{.File.GRI}}">{{.Label}}</a>{{end}}` +
		`{{define "FILES"}}<ul class="file-list">{{range .}}<li>{{template "FILE" .}}</li>{{end}}</ul>{{end}}`

	// used when src does not define MISSING
	defaultMissingTemplate = `<span class="file-link missing">{{.Label}}</span>`
)

type fileLink struct {
	File  *entity.File
	Label string
}

type templates struct {
	tmpl *template.Template
}

func newTemplates(src string) (*templates, error) {
	if src == "" {
		src = defaultTemplates
	}

	tmpl, err := template.New("").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("cannot parse templates: %w", err)
	}

	for _, name := range []string{templateNameFile, templateNameFiles} {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("template %s must be defined", name)
		}
	}

	if tmpl.Lookup(templateNameMissing) == nil {
		if _, err := tmpl.New(templateNameMissing).Parse(defaultMissingTemplate); err != nil {
			return nil, fmt.Errorf("cannot parse template %s: %w", templateNameMissing, err)
		}
	}

	return &templates{tmpl: tmpl}, nil
}

func (t *templates) file(file *entity.File, label string) ([]byte, error) {
	return t.execute(templateNameFile, &fileLink{File: file, Label: label})
}

// missing renders a link to a file that is not in the archive root (yet).
func (t *templates) missing(label string) ([]byte, error) {
	return t.execute(templateNameMissing, &fileLink{Label: label})
}

func (t *templates) files(files []*entity.File) ([]byte, error) {
	links := make([]*fileLink, 0, len(files))
	for _, f := range files {
		links = append(links, &fileLink{File: f, Label: f.Name()})
	}

	return t.execute(templateNameFiles, links)
}

func (t *templates) execute(name string, data any) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := t.tmpl.ExecuteTemplate(buf, name, data); err != nil {
		return nil, fmt.Errorf("cannot execute template %s: %w", name, err)
	}

	return buf.Bytes(), nil
}

type FileDirectiveRenderer struct{}

func NewFileDirectiveRenderer() renderer.NodeRenderer {
	return &FileDirectiveRenderer{}
}

func (r *FileDirectiveRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindFileDirective, r.renderFileDirective)
}

func (r *FileDirectiveRenderer) renderFileDirective(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	directive, ok := n.(*FileDirective)
	if !ok {
		return ast.WalkStop, fmt.Errorf("unexpected node %T, expected *FileDirective", n)
	}

	if directive.Error != nil {
		return ast.WalkStop, fmt.Errorf("cannot render file directive: %w", directive.Error)
	}

	w.Write(directive.HTML)

	return ast.WalkContinue, nil
}
