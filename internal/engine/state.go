package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"airlock-server/internal/domain"
	"airlock-server/pkg/logger"
)

// GameState - чистое авторитетное состояние партии. Никакого ввода-вывода,
// никакого рандома: все недетерминированное приходит снаружи готовым
// (StartInfo, стартовые позиции). Одна и та же последовательность вызовов
// всегда дает одно и то же состояние - на этом держится воспроизведение.
type GameState struct {
	Status   domain.GameStatus
	Settings domain.Settings
	Map      domain.Map
	Players  map[uuid.UUID]*domain.Player
	Bodies   []domain.DeadBody
}

func NewGameState() *GameState {
	return &GameState{
		Status:   domain.StatusOf(domain.StatusConnecting),
		Settings: domain.DefaultSettings(),
		Map:      domain.FirstMap(),
		Players:  make(map[uuid.UUID]*domain.Player),
		Bodies:   nil,
	}
}

// Simulate продвигает состояние на elapsed. Возвращает true, когда
// партия закончена (Won или Disconnected).
func (g *GameState) Simulate(elapsed time.Duration) bool {
	g.Status.ProgressTime(elapsed)

	switch g.Status.Kind {
	case domain.StatusLobby, domain.StatusNight:
		g.simulateMovement(elapsed)

	case domain.StatusDay:
		if g.isDayOver() {
			g.tallyDay()
		}

	case domain.StatusViewingOutcome:
		if g.Status.Outcome.TimeRemaining <= 0 {
			g.endOutcome()
		}

	case domain.StatusConnecting, domain.StatusTallyingVotes,
		domain.StatusWon, domain.StatusDisconnected:
		// Нечего симулировать
	}

	return g.Status.Finished()
}

// simulateMovement интегрирует скорости игроков. Шаг нормирован на
// базовый тик, чтобы результат не зависел от частоты вызовов.
func (g *GameState) simulateMovement(elapsed time.Duration) {
	steps := float64(elapsed.Nanoseconds()) / float64(domain.TickUnit.Nanoseconds())

	for _, p := range g.Players {
		p.Position.X = p.Position.X + p.Velocity.Dx*steps
		p.Position.Y = p.Position.Y + p.Velocity.Dy*steps
		p.Position = g.Map.Clamp(p.Position)
	}
}

// isDayOver - день кончается по таймеру или когда проголосовали все,
// кто имел право.
func (g *GameState) isDayOver() bool {
	day := g.Status.Day
	if day.TimeRemaining <= 0 {
		return true
	}
	for id, p := range g.Players {
		if !p.EligibleToVote() {
			continue
		}
		if _, voted := day.Votes[id]; !voted {
			return false
		}
	}
	return true
}

// tallyDay подводит итог голосования: казнит избранного, проверяет
// победы и переходит к показу результата. TallyingVotes - вычисляемая
// фаза, наружу она попадает только если снапшот случится ровно сейчас.
func (g *GameState) tallyDay() {
	votes := g.Status.Day.Votes
	g.Status = domain.StatusOf(domain.StatusTallyingVotes)

	target := domain.TallyVotes(votes)
	if !target.IsSkip() {
		if p, ok := g.Players[target.Player]; ok {
			p.Dead = true
		}
	}
	logger.Log.WithField("ejected", target).Info("Day is over, votes tallied")

	g.checkForVictories()
	if g.Status.Finished() {
		return
	}
	g.Status = domain.NewOutcome(target, g.Settings.OutcomeTime)
}

// endOutcome закрывает экран результата: тела убираются, всех
// рассаживают вокруг стола, наступает ночь.
func (g *GameState) endOutcome() {
	g.Bodies = nil
	g.PlacePlayersAroundTable()
	g.Status = domain.StatusOf(domain.StatusNight)
}

// PlacePlayersAroundTable расставляет игроков по кругу у стола
// переговоров и гасит их скорости.
func (g *GameState) PlacePlayersAroundTable() {
	ids := g.SortedPlayerIDs()
	num := float64(len(ids))
	for i, id := range ids {
		p := g.Players[id]
		offset := (float64(i) / num) * 2.0 * math.Pi
		p.Position = domain.Position{
			X: 275.0 + 100.0*math.Sin(offset),
			Y: 275.0 + 100.0*math.Cos(offset),
		}
		p.Velocity = domain.Velocity{}
	}
}

// NoteGameStarted применяет розыгрыш ролей и заданий. Вызывается
// только из лобби; при ошибке состояние не меняется.
func (g *GameState) NoteGameStarted(info *domain.StartInfo) error {
	if g.Status.Kind != domain.StatusLobby {
		return fmt.Errorf("got a message to start a game when not in the lobby, status: %s", g.Status.Kind)
	}
	for id := range info.Assignments {
		if _, ok := g.Players[id]; !ok {
			return fmt.Errorf("unable to find player %s when starting game", id)
		}
	}
	for id, start := range info.Assignments {
		p := g.Players[id]
		p.Impostor = start.Team == domain.TeamImpostors
		p.Tasks = append([]domain.Task(nil), start.Tasks...)
	}
	g.Status = domain.StatusOf(domain.StatusNight)
	g.PlacePlayersAroundTable()
	return nil
}

// NoteDeath фиксирует убийство: игрок этого цвета мертв, тело лежит
// на карте. Повторное убийство того же цвета добавит второе тело -
// так и задумано, репорт снимет оба.
func (g *GameState) NoteDeath(body domain.DeadBody) error {
	for _, p := range g.Players {
		if p.Color == body.Color {
			p.Dead = true
		}
	}
	g.Bodies = append(g.Bodies, body)
	g.checkForImpostorWin()
	return nil
}

func (g *GameState) checkForImpostorWin() {
	impostors, crew := 0, 0
	for _, p := range g.Players {
		if p.Dead {
			continue
		}
		if p.Impostor {
			impostors++
		} else {
			crew++
		}
	}
	if impostors >= crew {
		g.win(domain.TeamImpostors)
	}
}

// NoteFinishedTask отмечает задание выполненным. Индекс вне диапазона
// молча игнорируется: клиент мог отстать от снапшота.
func (g *GameState) NoteFinishedTask(playerID uuid.UUID, index int) error {
	if p, ok := g.Players[playerID]; ok {
		if index >= 0 && index < len(p.Tasks) {
			p.Tasks[index].Finished = true
		}
	}
	g.checkForCrewWin()
	return nil
}

func (g *GameState) checkForCrewWin() {
	for _, p := range g.Players {
		if p.Impostor {
			continue
		}
		if !p.AllTasksFinished() {
			return
		}
	}
	g.win(domain.TeamCrew)
}

func (g *GameState) checkForVictories() {
	switch g.Status.Kind {
	case domain.StatusConnecting, domain.StatusDisconnected,
		domain.StatusLobby, domain.StatusWon:
		return
	}
	// Экипаж мог дожать задания
	g.checkForCrewWin()
	// Или импосторы добрали большинство
	g.checkForImpostorWin()
}

func (g *GameState) win(team domain.Team) {
	g.Status = domain.WonBy(team)
}

// NoteVote записывает голос. Голосовать можно один раз, только живым,
// только днем и только за живого игрока или пропуск.
func (g *GameState) NoteVote(voter uuid.UUID, target domain.VoteTarget) error {
	if g.Status.Kind != domain.StatusDay {
		return fmt.Errorf("got a vote while status is %s", g.Status.Kind)
	}
	p, ok := g.Players[voter]
	if !ok || !p.EligibleToVote() {
		return fmt.Errorf("player %s is not eligible to vote", voter)
	}
	if !target.IsSkip() {
		candidate, ok := g.Players[target.Player]
		if !ok || candidate.Dead {
			return fmt.Errorf("vote target %s is not a living player", target.Player)
		}
	}
	// Первый голос окончателен
	if _, voted := g.Status.Day.Votes[voter]; voted {
		return nil
	}
	g.Status.Day.Votes[voter] = target
	return nil
}

// NoteBodyReported созывает дневное собрание.
func (g *GameState) NoteBodyReported() {
	g.Status = domain.NewDay(g.Settings.VotingTime)
}

// HandleDisconnection убирает игрока из партии. Его голоса и голоса
// ЗА него снимаются, чтобы оставшиеся могли переголосовать.
func (g *GameState) HandleDisconnection(disconnected uuid.UUID) {
	delete(g.Players, disconnected)
	if len(g.Players) == 0 {
		g.Status = domain.StatusOf(domain.StatusDisconnected)
	}
	g.checkForVictories()

	if g.Status.Kind == domain.StatusDay {
		day := g.Status.Day
		delete(day.Votes, disconnected)
		for voter, target := range day.Votes {
			if !target.IsSkip() && target.Player == disconnected {
				delete(day.Votes, voter)
			}
		}
	}
}

// SortedPlayerIDs - детерминированный порядок обхода игроков.
func (g *GameState) SortedPlayerIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(g.Players))
	for id := range g.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// PlayersSorted - игроки в детерминированном порядке, копиями.
func (g *GameState) PlayersSorted() []domain.Player {
	ids := g.SortedPlayerIDs()
	players := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		p := *g.Players[id]
		p.Tasks = append([]domain.Task(nil), p.Tasks...)
		players = append(players, p)
	}
	return players
}
