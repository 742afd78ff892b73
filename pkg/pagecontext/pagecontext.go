// Package pagecontext turns the page a learner is reading into the title and
// content sent to the assistant backend.
//
// Extraction never fails. When a page has no primary content region or no
// primary heading, the caller-supplied defaults are used instead.
package pagecontext

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const DefaultTitle = "Course Overview"

// DefaultOverview describes the whole course; it stands in for pages with no
// single article body, such as the homepage.
const DefaultOverview = "This course covers Physical AI, Humanoid Robotics, ROS 2, Isaac Sim, and VLA models. It is a comprehensive guide to building intelligent robots."

type PageContext struct {
	Title   string
	Content string
}

type Defaults struct {
	Title   string
	Content string
}

// CourseDefaults are the homepage defaults.
func CourseDefaults() Defaults {
	return Defaults{Title: DefaultTitle, Content: DefaultOverview}
}

// Extractor builds a PageContext from the current page at call time.
type Extractor interface {
	Extract() PageContext
}

// Static always returns its defaults. It serves pages without a document.
type Static Defaults

func (s Static) Extract() PageContext {
	return PageContext{Title: s.Title, Content: s.Content}
}

// FileExtractor reads a page from disk on every Extract call, so edits to
// the file show up on the next trigger. HTML files are parsed for <article>
// and <h1>; everything else is treated as Markdown/MDX.
type FileExtractor struct {
	Path     string
	Defaults Defaults
	ReadFile func(string) ([]byte, error)
}

func NewFileExtractor(path string, defaults Defaults) *FileExtractor {
	return &FileExtractor{Path: path, Defaults: defaults, ReadFile: os.ReadFile}
}

func (e *FileExtractor) Extract() PageContext {
	read := e.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(e.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", e.Path).Msg("Could not read page, using defaults")
		return PageContext{Title: e.Defaults.Title, Content: e.Defaults.Content}
	}
	if IsHTML(e.Path) {
		return FromHTML(data, e.Defaults)
	}
	return FromMarkdown(data, e.Defaults)
}

func IsHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	default:
		return false
	}
}

func orDefault(v string, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
