package mdadapter

import (
	"bytes"
	"fmt"

	"github.com/jgivc/browsersync/internal/entity"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var (
	startSeq = []byte{'[', '['}
	endSeq   = []byte{']', ']'}
	labelSeq = []byte{'|'}
	allFiles = []byte("FILES")

	FileResolverKey = parser.NewContextKey()
)

type FileResolver interface {
	GetFile(name string) (*entity.File, error)
	GetFiles() []*entity.File
}

/*
 * [[file.txt]]
 * [[file.txt|Label]]
 * [[FILES]] - all files of the archive root
 *
 * A name the resolver does not know is rendered with the MISSING template.
 */
type FileDirectiveParser struct {
	tmpl *templates
}

func NewFileDirectiveParser(tmpl *templates) parser.InlineParser {
	return &FileDirectiveParser{tmpl: tmpl}
}

func (s *FileDirectiveParser) Trigger() []byte {
	return startSeq[:1]
}

func (s *FileDirectiveParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	b, _ := block.PeekLine()
	if !bytes.HasPrefix(b, startSeq) {
		return nil
	}

	end := bytes.Index(b, endSeq)
	if end < 0 {
		return nil
	}

	line := bytes.TrimSpace(b[len(startSeq):end])
	if len(line) == 0 {
		return nil
	}

	block.Advance(end + len(endSeq))

	node := &FileDirective{}
	switch {
	case bytes.Equal(line, allFiles):
		node.AllFiles = true
	case bytes.Contains(line, labelSeq):
		data := bytes.SplitN(line, labelSeq, 2)
		node.Filename = string(bytes.TrimSpace(data[0]))
		node.Label = string(bytes.TrimSpace(data[1]))
	default:
		node.Filename = string(line)
	}

	resolver, ok := pc.Get(FileResolverKey).(FileResolver)
	if !ok {
		node.Error = fmt.Errorf("file resolver is not set")

		return node
	}

	if node.AllFiles {
		node.HTML, node.Error = s.tmpl.files(resolver.GetFiles())

		return node
	}

	label := node.Label
	if label == "" {
		label = node.Filename
	}

	file, err := resolver.GetFile(node.Filename)
	if err != nil {
		node.Missing = true
		node.HTML, node.Error = s.tmpl.missing(label)

		return node
	}

	node.HTML, node.Error = s.tmpl.file(file, label)

	return node
}
