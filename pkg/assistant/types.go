package assistant

// SourceReference points at a documentation page used to ground an answer.
type SourceReference struct {
	Source   string `json:"source"`
	Filename string `json:"filename"`
}

// HistoryEntry is one message of the backend-side conversation history.
type HistoryEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Profile carries the learner background used for personalization.
type Profile struct {
	Software string
	Hardware string
}

type ChatRequest struct {
	Query    string `json:"query"`
	Software string `json:"software,omitempty"`
	Hardware string `json:"hardware,omitempty"`
}

type ChatResponse struct {
	Answer  string
	Sources []SourceReference
	History []HistoryEntry
}

type TranslateResponse struct {
	TranslatedContent string
}

type PersonalizeResponse struct {
	Insight string
}

type HistoryResponse struct {
	History []HistoryEntry
}

// wire shapes; pointer fields mark the members a response must carry.

type chatWire struct {
	Answer  *string           `json:"answer"`
	Sources []SourceReference `json:"sources"`
	History []HistoryEntry    `json:"conversation_history"`
}

type translateRequestWire struct {
	Content        string `json:"content"`
	TargetLanguage string `json:"target_language"`
}

type translateWire struct {
	TranslatedContent *string `json:"translated_content"`
}

type personalizeRequestWire struct {
	ChapterTitle   string `json:"chapter_title"`
	ChapterContent string `json:"chapter_content"`
	Software       string `json:"software"`
	Hardware       string `json:"hardware"`
}

type personalizeWire struct {
	Insight *string `json:"insight"`
}

type historyWire struct {
	History *[]HistoryEntry `json:"conversation_history"`
}

// DefaultProfileValue stands in for a background the learner did not provide.
const DefaultProfileValue = "General"

// WithDefaults fills blank fields with DefaultProfileValue.
func (p Profile) WithDefaults() Profile {
	if p.Software == "" {
		p.Software = DefaultProfileValue
	}
	if p.Hardware == "" {
		p.Hardware = DefaultProfileValue
	}
	return p
}
