package panel

import (
	"context"
	"fmt"

	"github.com/go-go-golems/lectern/pkg/assistant"
	"github.com/go-go-golems/lectern/pkg/pagecontext"
	"github.com/go-go-golems/lectern/pkg/session"
)

const (
	TranslateFallback   = "Could not translate content at this time. Please try again."
	PersonalizeFallback = "Could not generate personal insights at this time. Please try again."

	DefaultTargetLanguage = "Urdu"
)

type Translator interface {
	Translate(ctx context.Context, content string, targetLanguage string) (*assistant.TranslateResponse, error)
}

type Personalizer interface {
	Personalize(ctx context.Context, title string, content string, profile assistant.Profile) (*assistant.PersonalizeResponse, error)
}

type TranslationRequest struct {
	Page           pagecontext.PageContext
	TargetLanguage string
}

type InsightRequest struct {
	Page    pagecontext.PageContext
	Profile assistant.Profile
}

type (
	TranslationPanel = Lifecycle[TranslationRequest, string]
	InsightPanel     = Lifecycle[InsightRequest, string]
)

func NewTranslationPanel(t Translator, opts ...Option) *TranslationPanel {
	op := func(ctx context.Context, req TranslationRequest) (string, error) {
		lang := req.TargetLanguage
		if lang == "" {
			lang = DefaultTargetLanguage
		}
		resp, err := t.Translate(ctx, req.Page.Content, lang)
		if err != nil {
			return "", err
		}
		return resp.TranslatedContent, nil
	}
	return New[TranslationRequest, string]("translation", op, TranslateFallback, opts...)
}

func NewInsightPanel(p Personalizer, opts ...Option) *InsightPanel {
	op := func(ctx context.Context, req InsightRequest) (string, error) {
		resp, err := p.Personalize(ctx, req.Page.Title, req.Page.Content, req.Profile)
		if err != nil {
			return "", err
		}
		return resp.Insight, nil
	}
	return New[InsightRequest, string]("insight", op, PersonalizeFallback, opts...)
}

// ProfileOf builds the personalization profile of a session, with blanks
// defaulted.
func ProfileOf(s *session.Session) assistant.Profile {
	if s == nil {
		return assistant.Profile{}.WithDefaults()
	}
	return assistant.Profile{
		Software: s.User.Software(),
		Hardware: s.User.Hardware(),
	}.WithDefaults()
}

// TranslateLabel is the collapsed translation panel's button text.
func TranslateLabel(targetLanguage string) string {
	if targetLanguage == "" {
		targetLanguage = DefaultTargetLanguage
	}
	return fmt.Sprintf("🌐 Translate to %s", targetLanguage)
}

// PersonalizeLabel is the collapsed insight panel's button text. The course
// overview page gets a course-wide wording.
func PersonalizeLabel(pageTitle string, s *session.Session) string {
	name := "Me"
	if s != nil {
		name = s.User.FirstName()
	}
	if pageTitle == pagecontext.DefaultTitle {
		return fmt.Sprintf("✨ Personalize Course for %s", name)
	}
	return fmt.Sprintf("✨ Personalize for %s", name)
}

// InsightMeta is the "Using <software> on <hardware>" line of an expanded
// insight panel.
func InsightMeta(p assistant.Profile) string {
	p = p.WithDefaults()
	return fmt.Sprintf("Using %s on %s", p.Software, p.Hardware)
}
