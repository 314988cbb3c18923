// Package triage classifies free-text captures with fixed keyword rule tables
// and derives follow-up suggestions from the classification.
package triage

// DetectedType is the kind of item a capture most likely describes.
type DetectedType string

const (
	TypeTask    DetectedType = "task"
	TypeEvent   DetectedType = "event"
	TypeStudy   DetectedType = "study"
	TypeProject DetectedType = "project"
	TypeIdea    DetectedType = "idea"
)

// Priority tiers, lowest to highest.
type Priority string

const (
	PriorityBaixa   Priority = "baixa"
	PriorityMedia   Priority = "media"
	PriorityAlta    Priority = "alta"
	PriorityUrgente Priority = "urgente"
)

// Category is the life area a capture belongs to.
type Category string

const (
	CategorySaude    Category = "saude"
	CategoryTrabalho Category = "trabalho"
	CategoryNegocio  Category = "negocio"
	CategoryPessoal  Category = "pessoal"
	CategoryDev      Category = "dev"
	CategoryGeral    Category = "geral"
)

// SuggestionType is the kind of follow-up a suggestion proposes.
type SuggestionType string

const (
	SuggestTask    SuggestionType = "task"
	SuggestHealth  SuggestionType = "health"
	SuggestProject SuggestionType = "project"
	SuggestNote    SuggestionType = "note"
	SuggestEvent   SuggestionType = "event"
)

// Source tells callers whether a result came from the assistant service or
// from the local rule tables.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Valid reports whether t is one of the closed vocabulary values.
func (t DetectedType) Valid() bool {
	switch t {
	case TypeTask, TypeEvent, TypeStudy, TypeProject, TypeIdea:
		return true
	}
	return false
}

// Valid reports whether p is one of the closed vocabulary values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityBaixa, PriorityMedia, PriorityAlta, PriorityUrgente:
		return true
	}
	return false
}

// Valid reports whether c is one of the closed vocabulary values.
func (c Category) Valid() bool {
	switch c {
	case CategorySaude, CategoryTrabalho, CategoryNegocio, CategoryPessoal, CategoryDev, CategoryGeral:
		return true
	}
	return false
}

// Valid reports whether s is one of the closed vocabulary values.
func (s SuggestionType) Valid() bool {
	switch s {
	case SuggestTask, SuggestHealth, SuggestProject, SuggestNote, SuggestEvent:
		return true
	}
	return false
}

// Analysis is the classification of one capture. Every field is always one
// of the closed values above.
type Analysis struct {
	DetectedType    DetectedType `json:"detected_type"`
	Priority        Priority     `json:"priority"`
	Category        Category     `json:"category"`
	SuggestedAction string       `json:"suggested_action"`
}

// Valid reports whether every enum field holds a known value.
func (a Analysis) Valid() bool {
	return a.DetectedType.Valid() && a.Priority.Valid() && a.Category.Valid()
}

// Suggestion is a proposed follow-up action.
type Suggestion struct {
	Type     SuggestionType `json:"type"`
	Message  string         `json:"message"`
	Action   string         `json:"action"`
	Priority Priority       `json:"priority,omitempty"`
}

// Valid reports whether the suggestion type (and priority, when set) are known.
func (s Suggestion) Valid() bool {
	if !s.Type.Valid() {
		return false
	}
	return s.Priority == "" || s.Priority.Valid()
}

// Result is what every analyze path hands back to callers.
type Result struct {
	Analysis    Analysis     `json:"analysis"`
	Suggestions []Suggestion `json:"suggestions"`
	Source      Source       `json:"source"`
}
