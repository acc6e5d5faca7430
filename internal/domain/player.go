package domain

import "github.com/google/uuid"

// Task - одно задание экипажа. Принадлежит ровно одному игроку,
// назначается при старте партии.
type Task struct {
	Position Position `json:"position"`
	Finished bool     `json:"finished"`
}

// Player - состояние одного игрока. Создается при успешном Join,
// удаляется только при дисконнекте.
type Player struct {
	UUID     uuid.UUID `json:"uuid"`
	Name     string    `json:"name"`
	Color    Color     `json:"color"`
	Position Position  `json:"position"`
	Velocity Velocity  `json:"velocity"`
	Dead     bool      `json:"dead"`
	Impostor bool      `json:"impostor"`
	Tasks    []Task    `json:"tasks"`
}

func NewPlayer(id uuid.UUID, name string, color Color, pos Position) *Player {
	return &Player{
		UUID:     id,
		Name:     name,
		Color:    color,
		Position: pos,
		// Задания и роль появятся при старте партии.
		Tasks: []Task{},
	}
}

// EligibleToVote - голосуют только живые.
func (p *Player) EligibleToVote() bool {
	return !p.Dead
}

// AllTasksFinished сообщает, закрыл ли игрок все свои задания.
func (p *Player) AllTasksFinished() bool {
	for _, t := range p.Tasks {
		if !t.Finished {
			return false
		}
	}
	return true
}

// DeadBody - труп на карте. Список тел только растет: он нужен для
// проверки дистанции репорта и для отрисовки, а чистится целиком
// при переходе день -> ночь.
type DeadBody struct {
	Color    Color    `json:"color"`
	Position Position `json:"position"`
}

// PlayerStartInfo - стартовая раздача для одного игрока: команда и задания.
type PlayerStartInfo struct {
	Team  Team   `json:"team"`
	Tasks []Task `json:"tasks"`
}

// StartInfo - полная стартовая раздача партии. Генерируется сервером
// ОДИН раз (с использованием рандома) и фиксируется в записи как Decision,
// чтобы повтор партии получил ровно те же роли и задания.
type StartInfo struct {
	Assignments map[uuid.UUID]PlayerStartInfo `json:"assignments"`
}
