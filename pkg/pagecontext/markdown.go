package pagecontext

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

type frontMatter struct {
	Title string `yaml:"title"`
}

// FromMarkdown uses the document body (without front matter) as content.
// The title is the first level-one heading outside code fences, then the
// front matter title, then the default.
func FromMarkdown(data []byte, defaults Defaults) PageContext {
	raw := strings.ReplaceAll(string(data), "\r\n", "\n")
	fm, body := splitFrontMatter(raw)

	title := firstHeading(body)
	if title == "" {
		title = strings.TrimSpace(fm.Title)
	}

	return PageContext{
		Title:   orDefault(title, defaults.Title),
		Content: orDefault(strings.TrimSpace(body), defaults.Content),
	}
}

func splitFrontMatter(doc string) (frontMatter, string) {
	var fm frontMatter
	if !strings.HasPrefix(doc, "---\n") {
		return fm, doc
	}
	rest := doc[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return fm, doc
	}
	header := rest[:end]
	body := rest[end+len("\n---"):]
	// drop the remainder of the closing delimiter line
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		log.Debug().Err(err).Msg("Ignoring unparsable front matter")
		fm = frontMatter{}
	}
	return fm, body
}

// firstHeading returns the text of the first level-one heading. ATX and
// setext headings both count; code blocks never do.
func firstHeading(body string) string {
	src := []byte(body)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Level == 1 {
			var sb strings.Builder
			inlineText(h, src, &sb)
			title = strings.TrimSpace(sb.String())
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})
	return title
}

func inlineText(n ast.Node, src []byte, sb *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		default:
			inlineText(c, src, sb)
		}
	}
}
