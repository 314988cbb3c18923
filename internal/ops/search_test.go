package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/hpungsan/jarvis/internal/errors"
)

func TestSearch_CaseAndAccentInsensitive(t *testing.T) {
	database := openTestDB(t)
	ids := storeAll(t, database, "Consulta MÉDICA amanhã", "comprar leite", "médico da família")

	out, err := Search(context.Background(), database, SearchInput{Query: "médic"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if out.Pagination.Total != 2 || len(out.Items) != 2 {
		t.Fatalf("got %d items (total %d), want 2", len(out.Items), out.Pagination.Total)
	}
	if out.Items[0].ID != ids[2] || out.Items[1].ID != ids[0] {
		t.Errorf("order = %s,%s", out.Items[0].ID, out.Items[1].ID)
	}
	if out.Items[1].Snippet != "Consulta <b>MÉDIC</b>A amanhã" {
		t.Errorf("Snippet = %q", out.Items[1].Snippet)
	}
}

func TestSearch_Filters(t *testing.T) {
	database := openTestDB(t)
	storeAll(t, database, "comprar remédio", "consulta com o médico sobre remédio")

	out, err := Search(context.Background(), database, SearchInput{Query: "remédio", Type: "event"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(out.Items) != 1 || !strings.HasPrefix(out.Items[0].Preview, "consulta") {
		t.Errorf("items = %+v", out.Items)
	}
}

func TestSearch_Validation(t *testing.T) {
	database := openTestDB(t)

	if _, err := Search(context.Background(), database, SearchInput{Query: "  "}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty query: expected INVALID_REQUEST, got %v", err)
	}
	long := strings.Repeat("á", MaxQueryLength+1)
	if _, err := Search(context.Background(), database, SearchInput{Query: long}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("long query: expected INVALID_REQUEST, got %v", err)
	}
	if _, err := Search(context.Background(), database, SearchInput{Query: "x", Type: "chore"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad type: expected INVALID_REQUEST, got %v", err)
	}
}

func TestSearch_NoMatches(t *testing.T) {
	database := openTestDB(t)
	storeAll(t, database, "comprar leite")

	out, err := Search(context.Background(), database, SearchInput{Query: "zzz"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if out.Items == nil || len(out.Items) != 0 || out.Pagination.HasMore {
		t.Errorf("out = %+v", out)
	}
}

func TestBuildSnippet(t *testing.T) {
	tests := []struct {
		name, text, query string
		ctx               int
		want              string
	}{
		{"middle", "abc def ghi", "def", 2, "...c <b>def</b> g..."},
		{"start", "def ghi", "DEF", 10, "<b>def</b> ghi"},
		{"escapes", "<a> & <b>", "&", 10, "&lt;a&gt; <b>&amp;</b> &lt;b&gt;"},
		{"no match falls back to preview", "abcdef", "zz", 2, "abcd..."},
		{"multibyte context", "ção xyz ção", "xyz", 2, "...o <b>xyz</b> ç..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSnippet(tt.text, tt.query, tt.ctx); got != tt.want {
				t.Errorf("buildSnippet = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIndexFold(t *testing.T) {
	if i := indexFold([]rune("Olá MUNDO"), []rune("mundo")); i != 4 {
		t.Errorf("indexFold = %d, want 4", i)
	}
	if i := indexFold([]rune("AÇÃO"), []rune("ação")); i != 0 {
		t.Errorf("indexFold = %d, want 0", i)
	}
	if i := indexFold([]rune("ab"), []rune("abc")); i != -1 {
		t.Errorf("indexFold = %d, want -1", i)
	}
	if i := indexFold([]rune("ab"), nil); i != -1 {
		t.Errorf("indexFold = %d, want -1", i)
	}
}
