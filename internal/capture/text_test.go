package capture

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/jarvis/internal/triage"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple lowercase", "Saúde", "saúde"},
		{"trim whitespace", "  casa  ", "casa"},
		{"collapse internal whitespace", "plantão \t\n  noturno", "plantão noturno"},
		{"empty string", "", ""},
		{"only whitespace", "   \t\n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	require.Equal(t, []string{"saude", "trabalho"}, NormalizeTags([]string{" Saude", "trabalho", "SAUDE", "", "  "}))
	require.Nil(t, NormalizeTags(nil))
	require.Nil(t, NormalizeTags([]string{" "}))
}

func TestCountChars(t *testing.T) {
	require.Equal(t, 5, CountChars("saúde"))
	require.Equal(t, 0, CountChars(""))
	require.Equal(t, 2, CountChars("🔥🔥"))
}

func TestPreview(t *testing.T) {
	require.Equal(t, "curto", Preview("curto", 10))
	require.Equal(t, "açã...", Preview("açãozinha", 3))
	require.Equal(t, "ação...", Preview("açãozinha", 4))
	require.Equal(t, "", Preview("", 3))
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain passes through", "comprar leite hoje", "comprar leite hoje"},
		{"emphasis dropped", "Comprar **leite** _hoje_", "Comprar leite hoje"},
		{"heading and paragraph", "# Plantão\n\nLevar uniforme", "Plantão Levar uniforme"},
		{"list items", "- pão\n- café\n- leite", "pão café leite"},
		{"link keeps label", "ver [a agenda](https://example.test/a)", "ver a agenda"},
		{"autolink keeps url", "<https://example.test>", "https://example.test"},
		{"inline code kept", "rodar `go test`", "rodar go test"},
		{"fenced code kept", "corrigir:\n\n```\nfmt.Println(x)\n```\n", "corrigir: fmt.Println(x)"},
		{"soft line breaks", "linha um\nlinha dois", "linha um linha dois"},
		{"raw html dropped", "<div>oi</div>\n\nfim", "fim"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, PlainText(tt.input))
		})
	}
}

func TestPlainText_FeedsClassifier(t *testing.T) {
	// Markup must not break whole-word matching.
	a := triage.Classify(PlainText("**Comprar** remédio _hoje_"))
	require.Equal(t, triage.TypeTask, a.DetectedType)
	require.Equal(t, triage.PriorityAlta, a.Priority)
	require.Equal(t, triage.CategorySaude, a.Category)
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("**urgente**")
	require.NoError(t, err)
	require.Equal(t, "<p><strong>urgente</strong></p>\n", html)

	html, err = RenderHTML("<script>alert(1)</script>")
	require.NoError(t, err)
	require.NotContains(t, html, "<script>")
}

func TestToSummary(t *testing.T) {
	src := "cli"
	c := &Capture{
		ID:        "01H",
		Content:   "**x**",
		PlainText: "x",
		Source:    &src,
		Analysis: triage.Analysis{
			DetectedType: triage.TypeIdea,
			Priority:     triage.PriorityMedia,
			Category:     triage.CategoryGeral,
		},
		AnalyzedBy: triage.SourceLocal,
		CreatedAt:  10,
	}
	s := c.ToSummary()
	require.Equal(t, "01H", s.ID)
	require.Equal(t, "x", s.Preview)
	require.Equal(t, triage.TypeIdea, s.DetectedType)
	require.Equal(t, triage.SourceLocal, s.AnalyzedBy)
	require.Equal(t, int64(10), s.CreatedAt)
}
