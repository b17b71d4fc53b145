package quiz

import (
	"math/rand/v2"

	"voka/internal/models"
)

// distractorCount is the number of wrong options shown next to the correct one.
const distractorCount = 3

// BuildOptions returns the answer options for correct: its meaning plus up to three other
// distinct meanings drawn from words, in random order.
func BuildOptions(words []models.Word, correct models.Word) []string {
	pool := make([]string, 0, len(words))
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w.Meaning == correct.Meaning {
			continue
		}
		if _, ok := unique[w.Meaning]; ok {
			continue
		}
		unique[w.Meaning] = struct{}{}
		pool = append(pool, w.Meaning)
	}

	shuffle(pool)
	if len(pool) > distractorCount {
		pool = pool[:distractorCount]
	}

	options := append(pool, correct.Meaning)
	shuffle(options)
	return options
}

func shuffle(s []string) {
	rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}
