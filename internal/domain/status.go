package domain

import (
	"time"

	"github.com/google/uuid"
)

// Team - одна из двух сторон конфликта.
type Team string

const (
	TeamCrew      Team = "Crew"
	TeamImpostors Team = "Impostors"
)

// StatusKind - дискриминант машины состояний сессии.
type StatusKind string

const (
	StatusConnecting     StatusKind = "Connecting"
	StatusLobby          StatusKind = "Lobby"
	StatusNight          StatusKind = "Night"
	StatusDay            StatusKind = "Day"
	StatusTallyingVotes  StatusKind = "TallyingVotes"
	StatusViewingOutcome StatusKind = "ViewingOutcome"
	StatusWon            StatusKind = "Won"
	StatusDisconnected   StatusKind = "Disconnected"
)

// DayState - накопленные голоса и таймер дневной фазы.
// Голоса принимаются только пока статус Day.
type DayState struct {
	Votes         map[uuid.UUID]VoteTarget `json:"votes"`
	TimeRemaining time.Duration            `json:"timeRemaining"`
}

// OutcomeState показывает результат голосования перед возвратом в ночь.
type OutcomeState struct {
	Ejected       VoteTarget    `json:"ejected"`
	TimeRemaining time.Duration `json:"timeRemaining"`
}

// GameStatus - состояние сессии целиком.
// Переходы однонаправленные, кроме цикла день/ночь внутри игры:
// Connecting -> Lobby -> (Night <-> Day/TallyingVotes/ViewingOutcome) -> Won.
// Disconnected достижим из любого состояния и терминален.
type GameStatus struct {
	Kind    StatusKind    `json:"kind"`
	Day     *DayState     `json:"day,omitempty"`
	Outcome *OutcomeState `json:"outcome,omitempty"`
	Winner  Team          `json:"winner,omitempty"`
}

func StatusOf(kind StatusKind) GameStatus {
	return GameStatus{Kind: kind}
}

// NewDay открывает дневную фазу (собрание) с полным таймером.
func NewDay(votingTime time.Duration) GameStatus {
	return GameStatus{
		Kind: StatusDay,
		Day:  &DayState{Votes: make(map[uuid.UUID]VoteTarget), TimeRemaining: votingTime},
	}
}

// NewOutcome показывает вердикт собрания.
func NewOutcome(ejected VoteTarget, showTime time.Duration) GameStatus {
	return GameStatus{
		Kind:    StatusViewingOutcome,
		Outcome: &OutcomeState{Ejected: ejected, TimeRemaining: showTime},
	}
}

// WonBy - терминальное состояние победы.
func WonBy(team Team) GameStatus {
	return GameStatus{Kind: StatusWon, Winner: team}
}

// Finished сообщает, достигла ли сессия терминального состояния.
func (s GameStatus) Finished() bool {
	return s.Kind == StatusWon || s.Kind == StatusDisconnected
}

// IsPlaying - любая под-фаза активной партии.
func (s GameStatus) IsPlaying() bool {
	switch s.Kind {
	case StatusNight, StatusDay, StatusTallyingVotes, StatusViewingOutcome:
		return true
	}
	return false
}

// IsSameKind сравнивает только дискриминанты (без таймеров и голосов).
func (s GameStatus) IsSameKind(other GameStatus) bool {
	return s.Kind == other.Kind
}

// ProgressTime уменьшает таймеры фаз. Сама по себе смена фазы здесь
// не происходит - это работа GameState.Simulate.
func (s *GameStatus) ProgressTime(elapsed time.Duration) {
	switch s.Kind {
	case StatusDay:
		s.Day.TimeRemaining -= elapsed
		if s.Day.TimeRemaining < 0 {
			s.Day.TimeRemaining = 0
		}
	case StatusViewingOutcome:
		s.Outcome.TimeRemaining -= elapsed
		if s.Outcome.TimeRemaining < 0 {
			s.Outcome.TimeRemaining = 0
		}
	}
}
