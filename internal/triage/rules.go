package triage

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// rule maps a keyword set to the label it yields. Rules are evaluated in
// slice order and the first one with any matching keyword wins.
type rule[L ~string] struct {
	label    L
	keywords []string
}

var typeRules = []rule[DetectedType]{
	{TypeTask, []string{"comprar", "fazer", "ligar", "enviar", "chamar"}},
	{TypeEvent, []string{"reunião", "consulta", "encontro"}},
	{TypeStudy, []string{"estudar", "aprender", "ler", "pesquisar"}},
	{TypeProject, []string{"projeto", "criar", "desenvolver", "implementar"}},
}

var priorityRules = []rule[Priority]{
	{PriorityUrgente, []string{"emergência", "fire", "fogo", "socorro"}},
	{PriorityAlta, []string{"urgente", "agora", "hoje", "importante", "crítico"}},
	{PriorityBaixa, []string{"quando puder", "depois", "futuro", "eventualmente"}},
}

var categoryRules = []rule[Category]{
	{CategorySaude, []string{"saúde", "médico", "exame", "remédio", "consulta", "hospital"}},
	{CategoryTrabalho, []string{"trabalho", "bombeiro", "plantão", "corporação"}},
	{CategoryNegocio, []string{"biojoias", "galvanoplastia", "loja", "venda", "cliente"}},
	{CategoryPessoal, []string{"katiane", "família", "casa", "lar"}},
	{CategoryDev, []string{"código", "programar", "desenvolver", "api", "bug"}},
}

// Classify maps capture text to a type, priority and category.
// It is pure and deterministic; unmatched axes fall back to idea, media and
// geral respectively.
func Classify(text string) Analysis {
	normalized := normalizeText(text)

	a := Analysis{
		DetectedType: firstMatch(normalized, typeRules, TypeIdea),
		Priority:     firstMatch(normalized, priorityRules, PriorityMedia),
		Category:     firstMatch(normalized, categoryRules, CategoryGeral),
	}
	a.SuggestedAction = SuggestedAction(a.DetectedType, a.Category)
	return a
}

// SuggestedAction renders the human-readable next step for a classification.
func SuggestedAction(t DetectedType, c Category) string {
	return fmt.Sprintf("Transformar em %s na categoria %s", t, c)
}

// normalizeText lowercases and collapses whitespace so multi-word keywords
// match regardless of spacing.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func firstMatch[L ~string](text string, rules []rule[L], fallback L) L {
	for _, r := range rules {
		for _, kw := range r.keywords {
			if containsWord(text, kw) {
				return r.label
			}
		}
	}
	return fallback
}

// containsWord reports whether kw occurs in text delimited by non-word runes
// or the string edges. Letters and digits of any script count as word runes,
// so accented keywords like "saúde" match as whole words.
func containsWord(text, kw string) bool {
	if kw == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(kw); {
		i := strings.Index(text[offset:], kw)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(kw)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
