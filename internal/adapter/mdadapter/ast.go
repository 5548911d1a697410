package mdadapter

import (
	"github.com/yuin/goldmark/ast"
)

var (
	KindFileDirective = ast.NewNodeKind("FileDirective")
)

// FileDirective is a resolved [[name]], [[name|Label]] or [[FILES]] link.
type FileDirective struct {
	ast.BaseInline
	Filename string
	Label    string
	AllFiles bool
	Missing  bool

	HTML  []byte
	Error error
}

func (n *FileDirective) Kind() ast.NodeKind {
	return KindFileDirective
}

func (n *FileDirective) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Filename": n.Filename,
		"Label":    n.Label,
	}, nil)
}
