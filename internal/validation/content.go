package validation

import (
	"strings"
	"unicode/utf8"

	"artenis/internal/models"
)

const (
	maxTags      = 20
	maxTagLength = 30
	maxStyles    = 10
)

// Styles is the closed tattoo style vocabulary.
var Styles = []string{
	"realismo", "tradicional", "neotradicional", "acuarela", "geométrico",
	"minimalista", "blackwork", "dotwork", "tribal", "japonés", "oldschool",
	"newschool", "biomecánico", "surrealista", "línea fina", "lettering",
}

// styleAliases maps legacy spellings to their canonical style.
var styleAliases = map[string]string{
	"neotradional": "neotradicional",
}

// BodyParts lists accepted tattoo placements.
var BodyParts = []string{
	"brazo", "pierna", "espalda", "pecho", "cuello", "cara", "mano", "pie",
	"antebrazo", "pantorrilla", "muslo", "hombro", "abdomen", "costilla",
}

// Sizes lists accepted tattoo sizes.
var Sizes = []string{"pequeño", "mediano", "grande", "muy grande"}

// styleExtraTags are appended by SuggestTags when the style is present.
var styleExtraTags = map[string][]string{
	"realismo":    {"realista", "hiperrealismo"},
	"acuarela":    {"colorido", "artístico"},
	"minimalista": {"simple", "línea fina"},
}

const maxDurationHours = 24

var (
	styleSet    = toSet(Styles)
	bodyPartSet = toSet(BodyParts)
	sizeSet     = toSet(Sizes)
)

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeTags lower-cases and trims tags, drops empty and over-long
// entries, removes duplicates keeping the first occurrence and caps the
// result at 20 entries.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		tag := clean(raw)
		if tag == "" || utf8.RuneCountInString(tag) > maxTagLength {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// NormalizeStyles keeps the recognized styles in input order, deduplicated
// and capped at 10.
func NormalizeStyles(styles []string) []string {
	out := make([]string, 0, len(styles))
	seen := make(map[string]struct{}, len(styles))
	for _, raw := range styles {
		style := clean(raw)
		if canonical, ok := styleAliases[style]; ok {
			style = canonical
		}
		if _, ok := styleSet[style]; !ok {
			continue
		}
		if _, dup := seen[style]; dup {
			continue
		}
		seen[style] = struct{}{}
		out = append(out, style)
		if len(out) == maxStyles {
			break
		}
	}
	return out
}

// ValidateTattooDetails reports whether every present field is within its
// allowed domain. A nil record is valid.
func ValidateTattooDetails(d *models.TattooDetails) bool {
	if d == nil {
		return true
	}
	if d.BodyPart != "" {
		if _, ok := bodyPartSet[clean(d.BodyPart)]; !ok {
			return false
		}
	}
	if d.Size != "" {
		if _, ok := sizeSet[clean(d.Size)]; !ok {
			return false
		}
	}
	if d.Duration != nil && (*d.Duration < 0 || *d.Duration > maxDurationHours) {
		return false
	}
	if d.Price != nil && *d.Price < 0 {
		return false
	}
	return true
}

// SuggestTags proposes tags derived from the post's styles, tattoo details
// and location.
func SuggestTags(post *models.Post) []string {
	if post == nil {
		return []string{}
	}

	var raw []string
	for _, style := range post.Styles {
		raw = append(raw, style)
		raw = append(raw, styleExtraTags[clean(style)]...)
	}
	if d := post.TattooDetails; d != nil {
		if d.BodyPart != "" {
			raw = append(raw, d.BodyPart)
		}
		if d.Size != "" {
			raw = append(raw, "tatuaje "+d.Size)
		}
	}
	if post.Location != nil && post.Location.City != "" {
		raw = append(raw, post.Location.City)
	}
	return NormalizeTags(raw)
}
