package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"airlock-server/internal/domain"
	"airlock-server/internal/engine"
	"airlock-server/pkg/api"
	"airlock-server/pkg/logger"
)

// InputState - какие кнопки зажаты у локального игрока прямо сейчас.
type InputState struct {
	Up       bool
	Down     bool
	Left     bool
	Right    bool
	Kill     bool
	Activate bool
	Report   bool
	Play     bool
}

// Tx - канал отправки сообщений на сервер. Вживую это websocket,
// в тестах - буфер, при воспроизведении - заглушка.
type Tx interface {
	Send(msg api.ClientMessage) error
}

// GameAsPlayer - партия глазами одного игрока. Держит локальное
// зеркало состояния: ввод применяется сразу (предсказание), а
// серверные снапшоты аккуратно вмердживаются, не дергая картинку.
// Ввод и входящие сообщения сериализуются мьютексом.
type GameAsPlayer struct {
	mu sync.Mutex

	// My - uuid локального игрока. Нулевой до Welcome.
	My    uuid.UUID
	State *engine.GameState

	inputs    InputState
	tx        Tx
	displayed []api.DisplayMessage
	cursor    voteCursor

	// LastReplay - последняя полученная запись партии. Ядро ее не
	// разбирает, только отдает наружу на сохранение.
	LastReplay *api.RecordedGame
}

func NewGameAsPlayer(tx Tx) *GameAsPlayer {
	return &GameAsPlayer{
		State: engine.NewGameState(),
		tx:    tx,
	}
}

// Connected шлет рукопожатие. Версию подставляет вызывающий: она
// должна быть версией сборки, а не чем-то придуманным.
func (g *GameAsPlayer) Connected(ver string, details api.JoinRequest) error {
	return g.tx.Send(api.JoinMessage{Version: ver, Details: details})
}

// Disconnected - транспорт оборвался. Выигранная партия остается
// выигранной, все остальное превращается в Disconnected.
func (g *GameAsPlayer) Disconnected() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.State.Status.Kind != domain.StatusWon {
		g.State.Status = domain.StatusOf(domain.StatusDisconnected)
	}
}

// LocalPlayer - наш игрок в локальном зеркале. nil для зрителей.
func (g *GameAsPlayer) LocalPlayer() *domain.Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.localPlayer()
}

func (g *GameAsPlayer) localPlayer() *domain.Player {
	return g.State.Players[g.My]
}

// TakeInput применяет новое состояние кнопок. Повторный вызов с тем же
// состоянием - ноль эффекта и ноль трафика.
func (g *GameAsPlayer) TakeInput(newInput InputState) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	current := g.inputs
	if newInput == current {
		return nil
	}
	g.inputs = newInput

	if g.State.Status.Kind == domain.StatusDay {
		return g.takeVotingInput(current, newInput)
	}

	player := g.localPlayer()
	if player == nil {
		return nil
	}

	if g.State.Status.Kind == domain.StatusLobby && pressed(current.Play, newInput.Play) {
		if err := g.tx.Send(api.StartGameMessage{}); err != nil {
			return err
		}
	}

	// Разовые действия срабатывают по фронту нажатия, не пока держат.
	if player.Impostor && pressed(current.Kill, newInput.Kill) {
		if err := g.killPlayerNear(player.Position); err != nil {
			return err
		}
	}
	if pressed(current.Activate, newInput.Activate) {
		if err := g.activateNear(player.Position); err != nil {
			return err
		}
	}
	if pressed(current.Report, newInput.Report) {
		if err := g.reportNear(player.Position); err != nil {
			return err
		}
	}

	// Move уходит на сервер только если вектор реально поменялся:
	// меньше трафика и меньше утечек тем, кто слушает канал.
	newVelocity := g.velocityFromInputs()
	player = g.localPlayer()
	if player != nil && newVelocity != player.Velocity {
		player.Velocity = newVelocity
		return g.tx.Send(api.MoveMessage{
			Velocity: player.Velocity,
			Position: player.Position,
		})
	}
	return nil
}

func pressed(old, now bool) bool {
	return !old && now
}

func (g *GameAsPlayer) velocityFromInputs() domain.Velocity {
	var dx, dy float64
	speed := g.State.Settings.Speed
	if g.inputs.Up && !g.inputs.Down {
		dy = -speed
	} else if g.inputs.Down {
		dy = speed
	}
	if g.inputs.Left && !g.inputs.Right {
		dx = -speed
	} else if g.inputs.Right {
		dx = speed
	}
	return domain.Velocity{Dx: dx, Dy: dy}
}

// killPlayerNear убивает ближайшего живого члена экипажа в радиусе
// удара. Убийца встает на тело - классическое алиби.
func (g *GameAsPlayer) killPlayerNear(position domain.Position) error {
	var victim *domain.Player
	closest := g.State.Settings.KillDistance

	for _, id := range g.State.SortedPlayerIDs() {
		p := g.State.Players[id]
		if p.Impostor || p.UUID == g.My || p.Dead {
			continue
		}
		if d := position.Distance(p.Position); d < closest {
			victim = p
			closest = d
		}
	}
	if victim == nil {
		return nil
	}

	body := domain.DeadBody{Color: victim.Color, Position: victim.Position}
	if err := g.State.NoteDeath(body); err != nil {
		return err
	}
	if err := g.tx.Send(api.KilledMessage{Body: body}); err != nil {
		return err
	}
	if me := g.localPlayer(); me != nil {
		me.Position = body.Position
	}
	return nil
}

// activateNear закрывает ближайшее задание в радиусе активации.
// Импостор может жать кнопку для вида, но задания у него фальшивые.
func (g *GameAsPlayer) activateNear(position domain.Position) error {
	player := g.localPlayer()
	if player == nil {
		return nil
	}

	finished := -1
	closest := g.State.Settings.TaskDistance
	for i, task := range player.Tasks {
		if d := position.Distance(task.Position); d < closest {
			finished = i
			closest = d
		}
	}
	if finished < 0 || player.Impostor {
		return nil
	}

	if err := g.State.NoteFinishedTask(g.My, finished); err != nil {
		return err
	}
	return g.tx.Send(api.FinishedTaskMessage{Index: finished})
}

// reportNear созывает собрание, если рядом лежит тело. Переход в день
// делает сервер - мы только сообщаем.
func (g *GameAsPlayer) reportNear(position domain.Position) error {
	var found *domain.DeadBody
	closest := g.State.Settings.ReportDistance
	for i := range g.State.Bodies {
		body := &g.State.Bodies[i]
		if d := position.Distance(body.Position); d < closest {
			found = body
			closest = d
		}
	}
	if found == nil {
		return nil
	}
	return g.tx.Send(api.ReportBodyMessage{Color: found.Color})
}

// takeVotingInput - дневная фаза, ввод управляет курсором таблицы
// голосования вместо движения.
func (g *GameAsPlayer) takeVotingInput(current, newInput InputState) error {
	player := g.localPlayer()
	if player == nil || player.Dead {
		return nil
	}

	entries := g.voteEntries()
	if len(entries) == 0 {
		return nil
	}

	switch {
	case pressed(current.Up, newInput.Up):
		g.cursor.move(moveUp, len(entries))
	case pressed(current.Down, newInput.Down):
		g.cursor.move(moveDown, len(entries))
	case pressed(current.Left, newInput.Left):
		g.cursor.move(moveLeft, len(entries))
	case pressed(current.Right, newInput.Right):
		g.cursor.move(moveRight, len(entries))
	}

	if pressed(current.Activate, newInput.Activate) && g.cursor.highlighted {
		target := entries[g.cursor.index]
		g.cursor.clear()
		// Локально тоже записываем: сервер все равно примет только
		// первый голос, так что предсказание безопасно.
		if err := g.State.NoteVote(g.My, target); err != nil {
			logger.Log.WithError(err).Debug("Local vote prediction rejected")
		}
		return g.tx.Send(api.VoteMessage{Target: target})
	}
	return nil
}

// voteEntries - кандидаты в порядке таблицы: живые игроки по uuid,
// пропуск последним.
func (g *GameAsPlayer) voteEntries() []domain.VoteTarget {
	var entries []domain.VoteTarget
	for _, id := range g.State.SortedPlayerIDs() {
		if !g.State.Players[id].Dead {
			entries = append(entries, domain.VoteFor(id))
		}
	}
	return append(entries, domain.VoteSkip())
}

// VoteHighlight - что сейчас подсвечено в таблице голосования.
func (g *GameAsPlayer) VoteHighlight() (domain.VoteTarget, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.cursor.highlighted {
		return domain.VoteTarget{}, false
	}
	entries := g.voteEntries()
	if g.cursor.index >= len(entries) {
		return domain.VoteTarget{}, false
	}
	return entries[g.cursor.index], true
}

// HandleMessage - вход с сервера (или от проигрывателя).
func (g *GameAsPlayer) HandleMessage(msg api.ServerMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Replay приходит уже ПОСЛЕ победы, его нельзя отсекать.
	if replay, ok := msg.(*api.ReplayMessage); ok {
		recording := replay.Recording
		g.LastReplay = &recording
		return nil
	}

	if g.State.Status.Finished() {
		return nil
	}

	switch m := msg.(type) {
	case *api.WelcomeMessage:
		g.My = m.ConnectionID

	case *api.SnapshotMessage:
		g.reconcile(m.Snapshot)

	case *api.DisplayMessage:
		g.displayed = append(g.displayed, *m)

	default:
		return fmt.Errorf("unexpected server message %T", msg)
	}
	return nil
}

// reconcile вмердживает серверный снапшот в локальное зеркало:
// состав и роли берем у сервера, мелкую разницу позиций - нет.
func (g *GameAsPlayer) reconcile(snapshot api.Snapshot) {
	g.State.Status = snapshot.Status
	g.State.Bodies = append([]domain.DeadBody(nil), snapshot.Bodies...)

	incoming := make(map[uuid.UUID]bool, len(snapshot.Players))
	for _, p := range snapshot.Players {
		incoming[p.UUID] = true
	}
	// Кого сервер больше не знает, того нет и у нас
	for id := range g.State.Players {
		if !incoming[id] {
			delete(g.State.Players, id)
		}
	}

	for _, p := range snapshot.Players {
		local, known := g.State.Players[p.UUID]
		if !known {
			copied := p
			g.State.Players[p.UUID] = &copied
			continue
		}
		local.Name = p.Name
		local.Color = p.Color
		local.Dead = p.Dead
		local.Impostor = p.Impostor
		local.Tasks = append([]domain.Task(nil), p.Tasks...)
		// Свою скорость знаем лучше сервера
		if p.UUID != g.My {
			local.Velocity = p.Velocity
		}
		// Мелкое расхождение позиций гасим локальной экстраполяцией,
		// иначе картинка дергается на каждом снапшоте.
		if p.Position.Distance(local.Position) > reconcileThreshold {
			local.Position = p.Position
		}
	}
}

// Порог, после которого серверной позиции верим больше своей.
const reconcileThreshold = 30.0

// Simulate продвигает локальное зеркало и таймеры сообщений.
func (g *GameAsPlayer) Simulate(elapsed time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.State.Simulate(elapsed)

	kept := g.displayed[:0]
	for i := range g.displayed {
		g.displayed[i].PassTime(elapsed)
		if !g.displayed[i].Expired() {
			kept = append(kept, g.displayed[i])
		}
	}
	g.displayed = kept
}

// DisplayedMessages - тексты, которые пора показывать на экране.
func (g *GameAsPlayer) DisplayedMessages() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var texts []string
	for i := range g.displayed {
		if g.displayed[i].ReadyToDisplay() {
			texts = append(texts, g.displayed[i].Message)
		}
	}
	return texts
}

// Vision - радиус видимости локального игрока. nil - видно все
// (лобби, день за столом, зрители, мертвые). Туман есть только ночью.
func (g *GameAsPlayer) Vision() *float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.State.Status.Kind != domain.StatusNight {
		return nil
	}
	p := g.localPlayer()
	if p == nil || p.Dead {
		return nil
	}
	v := g.State.Settings.CrewVision
	if p.Impostor {
		v = g.State.Settings.ImpostorVision
	}
	return &v
}

// HasWon - выиграла ли наша команда. nil, пока партия идет или если
// мы зритель.
func (g *GameAsPlayer) HasWon() *bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.State.Status.Kind != domain.StatusWon {
		return nil
	}
	p := g.localPlayer()
	if p == nil {
		return nil
	}
	won := (g.State.Status.Winner == domain.TeamImpostors) == p.Impostor
	return &won
}

// Restart сбрасывает зеркало к чистому лобби. Нужен проигрывателю
// при перемотке назад.
func (g *GameAsPlayer) Restart() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.State = engine.NewGameState()
	g.State.Status = domain.StatusOf(domain.StatusLobby)
	g.inputs = InputState{}
	g.cursor.clear()
	g.displayed = nil
}
