// Package matching ранжирует менторов для ученика. Функции пакета чистые:
// без ввода-вывода и побочных эффектов.
package matching

import (
	"fmt"
	"sort"

	"github.com/magabrotheeeer/mentor-exchange/internal/lib/apperr"
	"github.com/magabrotheeeer/mentor-exchange/internal/models"
)

const (
	// DefaultTopK — размер выдачи, если клиент его не указал.
	DefaultTopK = 5

	languageWeight = 3
	skillWeight    = 5
)

// Ranked — ментор с посчитанным баллом.
type Ranked struct {
	Mentor *models.Profile `json:"mentor"`
	Score  int             `json:"score"`
}

// ScoreMatch считает балл совпадения: 3 за каждый общий язык, 5 за каждый
// общий навык плюс репутация ментора. Повторы в списках учитываются один раз.
func ScoreMatch(learner, mentor *models.Profile) int {
	if learner == nil || mentor == nil {
		return 0
	}
	score := languageWeight*overlap(learner.Languages, mentor.Languages) +
		skillWeight*overlap(learner.Skills, mentor.Skills)
	return score + mentor.Reputation
}

// PickTopMentors возвращает не более k менторов по убыванию балла. При равных
// баллах сохраняется входной порядок. Входной срез не изменяется.
func PickTopMentors(learner *models.Profile, mentors []*models.Profile, k int) ([]Ranked, error) {
	if k <= 0 {
		return nil, fmt.Errorf("matching.PickTopMentors: k must be positive, got %d: %w", k, apperr.ErrInvalidArgument)
	}

	ranked := make([]Ranked, 0, len(mentors))
	for _, m := range mentors {
		ranked = append(ranked, Ranked{Mentor: m, Score: ScoreMatch(learner, m)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

func overlap(want, have []string) int {
	if len(want) == 0 || len(have) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(want))
	for _, v := range want {
		set[v] = struct{}{}
	}
	n := 0
	for _, v := range have {
		if _, ok := set[v]; ok {
			n++
			delete(set, v)
		}
	}
	return n
}
