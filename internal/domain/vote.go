package domain

import "github.com/google/uuid"

// VoteKind различает голос за конкретного игрока и воздержание.
type VoteKind string

const (
	VoteKindPlayer VoteKind = "Player"
	VoteKindSkip   VoteKind = "Skip"
)

// VoteTarget - цель голоса. Сравнимая структура: используется как ключ
// при подсчете голосов.
type VoteTarget struct {
	Kind   VoteKind  `json:"kind"`
	Player uuid.UUID `json:"player,omitempty"`
}

func VoteSkip() VoteTarget {
	return VoteTarget{Kind: VoteKindSkip}
}

func VoteFor(id uuid.UUID) VoteTarget {
	return VoteTarget{Kind: VoteKindPlayer, Player: id}
}

func (t VoteTarget) IsSkip() bool {
	return t.Kind == VoteKindSkip
}

// TallyVotes определяет победителя голосования.
// Побеждает цель с наибольшим числом голосов. Ничья (в том числе пустое
// голосование) трактуется как Skip - никого не выбрасываем.
//
// Правило подсчета - часть семантики записей: в запись попадают сами
// голоса, а не исход, и при воспроизведении исход считается заново.
// Менять правило нельзя, не сломав верность старых записей.
func TallyVotes(votes map[uuid.UUID]VoteTarget) VoteTarget {
	counts := make(map[VoteTarget]int)
	for _, target := range votes {
		counts[target]++
	}

	winner := VoteSkip()
	best := 0
	tie := false
	for target, n := range counts {
		switch {
		case n > best:
			winner, best, tie = target, n, false
		case n == best:
			tie = true
		}
	}
	if tie || best == 0 {
		return VoteSkip()
	}
	return winner
}
