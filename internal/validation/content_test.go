package validation

import (
	"strings"
	"testing"

	"artenis/internal/models"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func TestNormalizeTags(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"Lowercases And Trims", []string{"  Rosa ", "LEÓN"}, []string{"rosa", "león"}},
		{"Drops Empty", []string{"", "   ", "ok"}, []string{"ok"}},
		{"Dedup Keeps First Order", []string{"b", "a", "B", "c", "a"}, []string{"b", "a", "c"}},
		{"Drops Over 30 Runes", []string{strings.Repeat("x", 31), strings.Repeat("ñ", 30)}, []string{strings.Repeat("ñ", 30)}},
		{"Nil Input", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.in))
		})
	}
}

func TestNormalizeTagsCapsAtTwenty(t *testing.T) {
	t.Parallel()
	in := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		in = append(in, "tag"+string(rune('a'+i)))
	}

	out := NormalizeTags(in)
	assert.Len(t, out, 20)
	assert.Equal(t, in[:20], out)
}

func TestNormalizeStyles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"Keeps Vocabulary Only", []string{"Realismo", "cubismo", " Tribal "}, []string{"realismo", "tribal"}},
		{"Multiword Style", []string{"Línea Fina"}, []string{"línea fina"}},
		{"Legacy Alias", []string{"neotradional", "neotradicional"}, []string{"neotradicional"}},
		{"Dedup", []string{"dotwork", "DOTWORK"}, []string{"dotwork"}},
		{"Nothing Recognized", []string{"foo"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStyles(tt.in))
		})
	}
}

func TestNormalizeStylesCapsAtTen(t *testing.T) {
	t.Parallel()
	out := NormalizeStyles(Styles)
	assert.Len(t, out, 10)
	assert.Equal(t, Styles[:10], out)
}

func TestValidateTattooDetails(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		details *models.TattooDetails
		want    bool
	}{
		{"Nil", nil, true},
		{"Empty", &models.TattooDetails{}, true},
		{"Full Valid", &models.TattooDetails{BodyPart: "Brazo", Size: "muy grande", Duration: floatPtr(3.5), Price: floatPtr(200)}, true},
		{"Zero Duration And Price", &models.TattooDetails{Duration: floatPtr(0), Price: floatPtr(0)}, true},
		{"Max Duration", &models.TattooDetails{Duration: floatPtr(24)}, true},
		{"Unknown Body Part", &models.TattooDetails{BodyPart: "oreja"}, false},
		{"Unknown Size", &models.TattooDetails{Size: "enorme"}, false},
		{"Negative Duration", &models.TattooDetails{Duration: floatPtr(-1)}, false},
		{"Duration Over Day", &models.TattooDetails{Duration: floatPtr(24.5)}, false},
		{"Negative Price", &models.TattooDetails{Price: floatPtr(-0.01)}, false},
		{"Duration 25", &models.TattooDetails{Duration: floatPtr(25)}, false},
		{"Price Minus One", &models.TattooDetails{Price: floatPtr(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateTattooDetails(tt.details))
		})
	}
}

func TestSuggestTags(t *testing.T) {
	t.Parallel()
	post := &models.Post{
		Styles:        []string{"realismo", "minimalista"},
		TattooDetails: &models.TattooDetails{BodyPart: "brazo", Size: "mediano"},
		Location:      &models.Location{City: "Madrid"},
	}

	got := SuggestTags(post)
	assert.Equal(t, []string{
		"realismo", "realista", "hiperrealismo",
		"minimalista", "simple", "línea fina",
		"brazo", "tatuaje mediano", "madrid",
	}, got)
}

func TestSuggestTagsEmptyPost(t *testing.T) {
	t.Parallel()
	assert.Empty(t, SuggestTags(&models.Post{}))
	assert.Empty(t, SuggestTags(nil))
}
