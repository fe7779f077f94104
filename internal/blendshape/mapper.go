// Package blendshape maps a mesh's blend-shape names onto facial expression
// ids by comparing tokenized names.
package blendshape

import (
	"strings"
	"unicode"
)

// ExpressionID identifies a target expression.
type ExpressionID int

// Invalid marks a blend shape with no acceptable expression.
const Invalid ExpressionID = -1

// minScore is the shared-token length a match has to exceed.
const minScore = 2

// Candidate is one expression a blend shape may map to.
type Candidate struct {
	Name string       `json:"name" yaml:"name"`
	ID   ExpressionID `json:"id" yaml:"id"`
}

// Shapes with these suffixes may share an expression even when duplicates
// are disallowed.
var duplicateSuffixes = []string{
	"lipsToward_LB",
	"lipsToward_RB",
	"lipsToward_LT",
	"lipsToward_RT",
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '_', '-', ',', '.', ';':
		return true
	}
	return false
}

// Tokenize splits name on separators and camel-case boundaries and returns
// the lowercased tokens. "left"/"l" also yield "L", "right"/"r" also yield "R".
func Tokenize(name string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(name, isSeparator) {
		for _, part := range splitCamel(field) {
			tok := strings.ToLower(part)
			tokens[tok] = struct{}{}
			switch tok {
			case "left", "l":
				tokens["L"] = struct{}{}
			case "right", "r":
				tokens["R"] = struct{}{}
			}
		}
	}
	return tokens
}

// splitCamel starts a new part before every uppercase letter.
func splitCamel(s string) []string {
	var parts []string
	start := 0
	for i, r := range s {
		if i > start && unicode.IsUpper(r) {
			parts = append(parts, s[start:i])
			start = i
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

// Score sums the lengths of the tokens present in both sets.
func Score(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	score := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			score += len(tok)
		}
	}
	return score
}

// AutoGenerateMapping returns one expression id per blend shape, in input
// order. A shape maps to Invalid when no candidate scores above the threshold,
// or when its best candidate is already taken and duplicates are not allowed.
func AutoGenerateMapping(shapes []string, candidates []Candidate, allowDuplicates bool) []ExpressionID {
	candTokens := make([]map[string]struct{}, len(candidates))
	for i, c := range candidates {
		candTokens[i] = Tokenize(c.Name)
	}

	used := make(map[ExpressionID]struct{})
	out := make([]ExpressionID, len(shapes))
	for i, shape := range shapes {
		shapeTokens := Tokenize(shape)
		best, bestScore := -1, 0
		for j := range candidates {
			if s := Score(shapeTokens, candTokens[j]); s > minScore && s > bestScore {
				best, bestScore = j, s
			}
		}
		if best < 0 {
			out[i] = Invalid
			continue
		}

		id := candidates[best].ID
		if _, taken := used[id]; taken && !allowDuplicates && !mayDuplicate(shape) {
			out[i] = Invalid
			continue
		}
		used[id] = struct{}{}
		out[i] = id
	}
	return out
}

func mayDuplicate(shape string) bool {
	for _, suffix := range duplicateSuffixes {
		if strings.HasSuffix(shape, suffix) {
			return true
		}
	}
	return false
}
