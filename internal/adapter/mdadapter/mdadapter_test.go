package mdadapter

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/jgivc/browsersync/internal/entity"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

type testResolver struct {
	files []*entity.File
}

func (r *testResolver) GetFile(name string) (*entity.File, error) {
	for _, f := range r.files {
		if f.Name() == name {
			return f, nil
		}
	}

	return nil, fmt.Errorf("cannot find file: %s", name)
}

func (r *testResolver) GetFiles() []*entity.File {
	return r.files
}

func newFile(gri, name string) *entity.File {
	return &entity.File{GRI: gri, Attributes: map[string]string{entity.AttrName: name}}
}

func convert(t *testing.T, src string, resolver FileResolver) (string, error) {
	t.Helper()

	ext, err := NewFilesExtension("")
	require.NoError(t, err)

	md := goldmark.New(
		goldmark.WithExtensions(ext),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)

	pc := parser.NewContext()
	if resolver != nil {
		pc.Set(FileResolverKey, resolver)
	}

	var buf bytes.Buffer
	err = md.Convert([]byte(src), &buf, parser.WithContext(pc))

	return buf.String(), err
}

func TestFileDirectives(t *testing.T) {
	resolver := &testResolver{files: []*entity.File{
		newFile("file.a.instance:private", "a.txt"),
		newFile("file.b.instance:private", "b <1>.txt"),
	}}

	testCases := []struct {
		name     string
		src      string
		contains []string
		err      bool
	}{
		{
			name:     "single file",
			src:      "See [[a.txt]] here",
			contains: []string{`<a class="file-link" data-file-gri="file.a.instance:private">a.txt</a>`, "here"},
		},
		{
			name:     "label",
			src:      "See [[a.txt|The A file]]",
			contains: []string{`data-file-gri="file.a.instance:private">The A file</a>`},
		},
		{
			name: "all files escaped",
			src:  "[[FILES]]",
			contains: []string{
				`<ul class="file-list">`,
				`>b &lt;1&gt;.txt</a>`,
			},
		},
		{
			name:     "plain link untouched",
			src:      "[link](http://example.com)",
			contains: []string{`<a href="http://example.com">link</a>`},
		},
		{
			name:     "unknown file",
			src:      "See [[missing.txt]] and [[a.txt]]",
			contains: []string{`<span class="file-link missing">missing.txt</span>`, `>a.txt</a>`},
		},
		{
			name:     "unknown file with label",
			src:      "[[missing.txt|Later <b>]]",
			contains: []string{`<span class="file-link missing">Later &lt;b&gt;</span>`},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := convert(t, tc.src, resolver)
			if tc.err {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			for _, s := range tc.contains {
				require.Contains(t, out, s)
			}
		})
	}
}

func TestNoResolver(t *testing.T) {
	_, err := convert(t, "[[a.txt]]", nil)
	require.Error(t, err)
}

func TestCustomTemplates(t *testing.T) {
	_, err := NewFilesExtension(`{{define "FILE"}}x{{end}}`)
	require.Error(t, err)

	_, err = NewFilesExtension(`{{define "FILE"}}{{.Label}}{{end}}{{define "FILES"}}{{len .}}{{end}}`)
	require.NoError(t, err)

	ext, err := NewFilesExtension(`{{define "FILE"}}{{.Label}}{{end}}{{define "FILES"}}{{len .}}{{end}}` +
		`{{define "MISSING"}}?{{.Label}}{{end}}`)
	require.NoError(t, err)

	md := goldmark.New(goldmark.WithExtensions(ext))
	pc := parser.NewContext()
	pc.Set(FileResolverKey, &testResolver{})

	var buf bytes.Buffer
	require.NoError(t, md.Convert([]byte("[[x.txt]]"), &buf, parser.WithContext(pc)))
	require.Contains(t, buf.String(), "?x.txt")
}
