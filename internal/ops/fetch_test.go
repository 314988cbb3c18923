package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/jarvis/internal/config"
	"github.com/hpungsan/jarvis/internal/errors"
	"github.com/hpungsan/jarvis/internal/triage"
)

func TestFetch(t *testing.T) {
	database := openTestDB(t)

	stored, err := Store(context.Background(), database, config.DefaultConfig(), LocalAnalyzer{}, StoreInput{
		Content: "consulta **médica** urgente",
		Source:  stringPtr("web"),
	})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	out, err := Fetch(database, FetchInput{ID: stored.ID})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if out.Content != "consulta **médica** urgente" || out.PlainText != "consulta médica urgente" {
		t.Errorf("Content/PlainText = %q / %q", out.Content, out.PlainText)
	}
	if out.HTML != "" {
		t.Errorf("HTML should be empty unless requested")
	}
	if out.Analysis.Category != triage.CategorySaude {
		t.Errorf("Category = %q", out.Analysis.Category)
	}
	if len(out.Suggestions) != 1 || out.Suggestions[0].Type != triage.SuggestHealth {
		t.Errorf("Suggestions = %+v", out.Suggestions)
	}

	out, err = Fetch(database, FetchInput{ID: stored.ID, IncludeHTML: true})
	if err != nil {
		t.Fatalf("Fetch with HTML failed: %v", err)
	}
	if out.HTML != "<p>consulta <strong>médica</strong> urgente</p>\n" {
		t.Errorf("HTML = %q", out.HTML)
	}
}

func TestFetch_Errors(t *testing.T) {
	database := openTestDB(t)

	if _, err := Fetch(database, FetchInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty id: expected INVALID_REQUEST, got %v", err)
	}
	if _, err := Fetch(database, FetchInput{ID: "01NOPE"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing: expected NOT_FOUND, got %v", err)
	}
}
