package quality

import (
	"strings"

	"resolvr/models"
)

// classifyRules is checked in order; the first rule with a matching token wins,
// so "2160p Remux 1080p-upscale" still classifies as 4K.
var classifyRules = []struct {
	tier   models.QualityTier
	tokens []string
}{
	{models.Quality4K, []string{"2160p", "4k", "uhd"}},
	{models.Quality1080p, []string{"1080p", "fhd"}},
	{models.Quality720p, []string{"720p", "hd"}},
	{models.Quality480p, []string{"480p", "sd"}},
}

// Classify maps a free-text release label to a quality tier. It is a total
// function: any input, including the empty string, yields a tier.
func Classify(text string) models.QualityTier {
	lowered := strings.ToLower(text)
	for _, rule := range classifyRules {
		for _, token := range rule.tokens {
			if strings.Contains(lowered, token) {
				return rule.tier
			}
		}
	}
	return models.QualityUnknown
}
