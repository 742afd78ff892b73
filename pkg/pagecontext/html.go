package pagecontext

import (
	"bytes"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// FromHTML uses the text of the first <article> as content and the text of
// the first <h1> as title.
func FromHTML(data []byte, defaults Defaults) PageContext {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Msg("Could not parse HTML page, using defaults")
		return PageContext{Title: defaults.Title, Content: defaults.Content}
	}

	var content, title string
	if article := findFirst(doc, "article"); article != nil {
		content = innerText(article)
	}
	if h1 := findFirst(doc, "h1"); h1 != nil {
		title = collapseSpaces(innerText(h1))
	}

	return PageContext{
		Title:   orDefault(title, defaults.Title),
		Content: orDefault(content, defaults.Content),
	}
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"figcaption": true, "figure": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "tr": true,
	"ul": true,
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "button": true, "nav": true, "footer": true,
}

// innerText approximates what a browser's innerText yields: visible text
// with block elements on their own lines and <pre> kept verbatim.
func innerText(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb, false)

	lines := strings.Split(sb.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func collectText(n *html.Node, sb *strings.Builder, pre bool) {
	switch n.Type {
	case html.TextNode:
		if pre {
			sb.WriteString(n.Data)
			return
		}
		text := collapseSpaces(n.Data)
		if text == "" {
			if strings.TrimSpace(n.Data) == "" && n.Data != "" {
				writeSpace(sb)
			}
			return
		}
		if startsWithSpace(n.Data) {
			writeSpace(sb)
		}
		sb.WriteString(text)
		if endsWithSpace(n.Data) {
			sb.WriteString(" ")
		}
		return
	case html.ElementNode:
		if skippedElements[n.Data] {
			return
		}
		if n.Data == "pre" {
			pre = true
		}
		if blockElements[n.Data] {
			writeNewline(sb)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb, pre)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		writeNewline(sb)
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s, " \t\r\n") != s
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s, " \t\r\n") != s
}

func writeSpace(sb *strings.Builder) {
	cur := sb.String()
	if cur == "" || strings.HasSuffix(cur, " ") || strings.HasSuffix(cur, "\n") {
		return
	}
	sb.WriteString(" ")
}

func writeNewline(sb *strings.Builder) {
	cur := sb.String()
	if cur == "" || strings.HasSuffix(cur, "\n") {
		return
	}
	sb.WriteString("\n")
}
