package strategy

import (
	"sort"

	"signal_bot/internal/models"
)

// DefaultTieEpsilon: разница скоров, которую считаем шумом.
const DefaultTieEpsilon = 0.01

// Rank сортирует по скору по убыванию. При равных скорах предпочтительная
// биржа идёт первой, дальше: лексикографически, чтобы порядок не зависел
// от того, в каком порядке пришли результаты.
func Rank(props []models.Proposal, preferred string) {
	sort.SliceStable(props, func(i, j int) bool {
		a, b := props[i], props[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if ap, bp := a.Source == preferred, b.Source == preferred; ap != bp {
			return ap
		}
		if a.Instrument != b.Instrument {
			return a.Instrument < b.Instrument
		}
		if a.Market != b.Market {
			return a.Market < b.Market
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Side < b.Side
	})
}

// Arbitrate выбирает одного победителя среди кандидатов по инструменту/рынку
// со всех бирж. Если лидер не с preferred, а кандидат с preferred отстаёт
// меньше чем на eps: берём его.
func Arbitrate(props []models.Proposal, preferred string, eps float64) (models.Proposal, bool) {
	if len(props) == 0 {
		return models.Proposal{}, false
	}
	ranked := make([]models.Proposal, len(props))
	copy(ranked, props)
	Rank(ranked, preferred)

	top := ranked[0]
	if preferred == "" || top.Source == preferred {
		return top, true
	}
	for _, p := range ranked[1:] {
		if top.Score-p.Score >= eps {
			break
		}
		if p.Source == preferred {
			return p, true
		}
	}
	return top, true
}

// PickMarket: второй уровень: spot против futures по одному инструменту.
// Побеждает больший скор, при равенстве: тот, что раньше в списке.
func PickMarket(winners ...models.Proposal) (models.Proposal, bool) {
	if len(winners) == 0 {
		return models.Proposal{}, false
	}
	best := winners[0]
	for _, w := range winners[1:] {
		if w.Score > best.Score {
			best = w
		}
	}
	return best, true
}
