package triage

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	taskPreviewChars = 30

	ActionCreateTask    = "create_task"
	ActionAddToHealth   = "add_to_health"
	ActionCreateProject = "create_project"

	healthPrompt  = "Adicionar ao arquivo de saúde?"
	projectPrompt = "Criar novo projeto para isso?"
)

// Suggest derives follow-up suggestions from a classification.
// Order is fixed: task, then health, then project. The result may be empty
// and never holds more than three entries.
func Suggest(text string, a Analysis) []Suggestion {
	suggestions := make([]Suggestion, 0, 3)

	if a.DetectedType == TypeTask {
		suggestions = append(suggestions, Suggestion{
			Type:     SuggestTask,
			Message:  fmt.Sprintf(`Criar tarefa: "%s..."`, truncateRunes(text, taskPreviewChars)),
			Action:   ActionCreateTask,
			Priority: a.Priority,
		})
	}

	if a.Category == CategorySaude {
		suggestions = append(suggestions, Suggestion{
			Type:    SuggestHealth,
			Message: healthPrompt,
			Action:  ActionAddToHealth,
		})
	}

	if a.DetectedType == TypeProject {
		suggestions = append(suggestions, Suggestion{
			Type:    SuggestProject,
			Message: projectPrompt,
			Action:  ActionCreateProject,
		})
	}

	return suggestions
}

// Analyze runs Classify and Suggest and tags the result as local.
func Analyze(text string) *Result {
	a := Classify(text)
	return &Result{
		Analysis:    a,
		Suggestions: Suggest(text, a),
		Source:      SourceLocal,
	}
}

// SuggestDueDate proposes a due date for a task of the given priority.
// Low-priority tasks get no due date.
func SuggestDueDate(p Priority, now time.Time) *time.Time {
	var due time.Time
	switch p {
	case PriorityUrgente:
		due = now
	case PriorityAlta:
		due = now.AddDate(0, 0, 1)
	case PriorityMedia:
		due = now.AddDate(0, 0, 7)
	default:
		return nil
	}
	return &due
}

// truncateRunes returns the first n characters of s.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
