package client

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"airlock-server/internal/domain"
	"airlock-server/internal/engine"
	"airlock-server/pkg/api"
)

const clientTestVersion = "build-test"

// testWorld - сервер и несколько клиентов на общей шине в памяти.
// Сообщения складываются в очереди и доставляются явным pump:
// так видно каждый шаг обмена, и нет рекурсивных вызовов.
type testWorld struct {
	t       *testing.T
	srv     *engine.GameServer
	clients map[uuid.UUID]*GameAsPlayer
	queues  map[uuid.UUID][]api.ServerMessage
	order   []uuid.UUID
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()
	w := &testWorld{
		t:       t,
		clients: map[uuid.UUID]*GameAsPlayer{},
		queues:  map[uuid.UUID][]api.ServerMessage{},
	}
	w.srv = engine.NewGameServer(uuid.New(), clientTestVersion, w, false, 7)
	return w
}

func (w *testWorld) SendTo(id uuid.UUID, msg api.ServerMessage) {
	w.queues[id] = append(w.queues[id], msg)
}

func (w *testWorld) Broadcast(msg api.ServerMessage) {
	for id := range w.queues {
		w.queues[id] = append(w.queues[id], msg)
	}
}

// worldTx гонит клиентские сообщения в сервер и попутно их считает.
type worldTx struct {
	w    *testWorld
	id   uuid.UUID
	sent []api.ClientMessage
}

func (tx *worldTx) Send(msg api.ClientMessage) error {
	tx.sent = append(tx.sent, msg)
	env, err := api.NewClientEnvelope(msg)
	if err != nil {
		return err
	}
	tx.w.srv.HandleMessage(tx.id, env)
	return nil
}

func (tx *worldTx) take() []api.ClientMessage {
	out := tx.sent
	tx.sent = nil
	return out
}

func (w *testWorld) addPlayer(name string) (*GameAsPlayer, *worldTx) {
	w.t.Helper()
	id := uuid.New()
	tx := &worldTx{w: w, id: id}
	game := NewGameAsPlayer(tx)
	w.clients[id] = game
	w.queues[id] = nil
	w.order = append(w.order, id)

	err := game.Connected(clientTestVersion, api.JoinRequest{Kind: api.JoinAsPlayer, Name: name})
	if err != nil {
		w.t.Fatalf("join %s: %v", name, err)
	}
	w.pump()
	if game.My != id {
		w.t.Fatalf("после Welcome у %s чужой uuid", name)
	}
	return game, tx
}

// pump доставляет все скопившиеся сообщения клиентам до опустошения.
func (w *testWorld) pump() {
	w.t.Helper()
	for {
		delivered := false
		for _, id := range w.order {
			pending := w.queues[id]
			w.queues[id] = nil
			for _, msg := range pending {
				delivered = true
				if err := w.clients[id].HandleMessage(msg); err != nil {
					w.t.Fatalf("client %s: %v", id, err)
				}
			}
		}
		if !delivered {
			return
		}
	}
}

// startGame запускает партию и возвращает клиентов, разложенных по ролям.
func (w *testWorld) startGame(games ...*GameAsPlayer) (impostor, crew *GameAsPlayer) {
	w.t.Helper()
	if err := games[0].TakeInput(InputState{Play: true}); err != nil {
		w.t.Fatal(err)
	}
	w.pump()
	for _, g := range games {
		p := g.LocalPlayer()
		if p == nil {
			w.t.Fatal("игрок пропал из снапшота после старта")
		}
		if p.Impostor {
			impostor = g
		} else if crew == nil {
			crew = g
		}
	}
	if impostor == nil || crew == nil {
		w.t.Fatal("в партии нет обеих ролей")
	}
	return impostor, crew
}

func countMoves(sent []api.ClientMessage) int {
	n := 0
	for _, msg := range sent {
		if _, ok := msg.(api.MoveMessage); ok {
			n++
		}
	}
	return n
}

func TestTakeInput_SameInputSendsNothing(t *testing.T) {
	w := newTestWorld(t)
	game, tx := w.addPlayer("alice")
	tx.take()

	if err := game.TakeInput(InputState{Right: true}); err != nil {
		t.Fatal(err)
	}
	if got := countMoves(tx.take()); got != 1 {
		t.Fatalf("первое нажатие дало %d Move, ожидался 1", got)
	}

	// Тот же ввод повторно - тишина в канале
	if err := game.TakeInput(InputState{Right: true}); err != nil {
		t.Fatal(err)
	}
	if got := len(tx.take()); got != 0 {
		t.Errorf("повторный ввод отправил %d сообщений", got)
	}
}

func TestTakeInput_MoveOnlyWhenVelocityChanges(t *testing.T) {
	w := newTestWorld(t)
	game, tx := w.addPlayer("alice")
	tx.take()

	if err := game.TakeInput(InputState{Right: true}); err != nil {
		t.Fatal(err)
	}
	if err := game.TakeInput(InputState{Right: true, Up: true}); err != nil {
		t.Fatal(err)
	}
	if got := countMoves(tx.take()); got != 2 {
		t.Fatalf("две смены вектора дали %d Move", got)
	}

	// Кнопка изменилась, вектор нет: Report в лобби ничего не находит
	if err := game.TakeInput(InputState{Right: true, Up: true, Report: true}); err != nil {
		t.Fatal(err)
	}
	if got := countMoves(tx.take()); got != 0 {
		t.Errorf("ввод без смены вектора дал %d Move", got)
	}
}

func TestTakeInput_VelocityUsesSettingsSpeed(t *testing.T) {
	w := newTestWorld(t)
	game, _ := w.addPlayer("alice")

	if err := game.TakeInput(InputState{Down: true, Left: true}); err != nil {
		t.Fatal(err)
	}
	p := game.LocalPlayer()
	speed := game.State.Settings.Speed
	want := domain.Velocity{Dx: -speed, Dy: speed}
	if p.Velocity != want {
		t.Errorf("Velocity = %+v, want %+v", p.Velocity, want)
	}
}

func TestKill_EdgeTriggeredAndMovesOntoBody(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.addPlayer("alice")
	b, _ := w.addPlayer("bob")
	c, _ := w.addPlayer("carol")
	impostor, _ := w.startGame(a, b, c)

	// Подтаскиваем жертву в радиус удара в локальном зеркале импостора
	var victim *domain.Player
	me := impostor.LocalPlayer()
	for _, id := range impostor.State.SortedPlayerIDs() {
		p := impostor.State.Players[id]
		if !p.Impostor {
			victim = p
			break
		}
	}
	victim.Position = domain.Position{
		X: me.Position.X + impostor.State.Settings.KillDistance/2,
		Y: me.Position.Y,
	}
	wantBody := victim.Position

	if err := impostor.TakeInput(InputState{Kill: true}); err != nil {
		t.Fatal(err)
	}
	if !victim.Dead {
		t.Error("жертва жива после удара")
	}
	if len(impostor.State.Bodies) != 1 {
		t.Fatalf("Bodies = %d, want 1", len(impostor.State.Bodies))
	}
	if impostor.LocalPlayer().Position != wantBody {
		t.Error("убийца не встал на тело")
	}

	// Кнопку держат - повторного удара нет
	if err := impostor.TakeInput(InputState{Kill: true, Up: true}); err != nil {
		t.Fatal(err)
	}
	if len(impostor.State.Bodies) != 1 {
		t.Error("зажатая кнопка добавила второе тело")
	}
}

func TestKill_CrewmateCannotKill(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.addPlayer("alice")
	b, _ := w.addPlayer("bob")
	c, _ := w.addPlayer("carol")
	_, crew := w.startGame(a, b, c)

	me := crew.LocalPlayer()
	for _, p := range crew.State.Players {
		if p.UUID != me.UUID {
			p.Position = me.Position
		}
	}
	if err := crew.TakeInput(InputState{Kill: true}); err != nil {
		t.Fatal(err)
	}
	if len(crew.State.Bodies) != 0 {
		t.Error("член экипажа кого-то убил")
	}
}

func TestActivate_FinishesNearestTask(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.addPlayer("alice")
	b, _ := w.addPlayer("bob")
	c, _ := w.addPlayer("carol")
	_, crew := w.startGame(a, b, c)

	me := crew.LocalPlayer()
	me.Tasks[2].Position = me.Position
	if err := crew.TakeInput(InputState{Activate: true}); err != nil {
		t.Fatal(err)
	}
	w.pump()
	if !crew.LocalPlayer().Tasks[2].Finished {
		t.Error("задание рядом не закрылось")
	}
	for i, task := range crew.LocalPlayer().Tasks {
		if i != 2 && task.Finished {
			t.Errorf("закрылось чужое задание %d", i)
		}
	}
}

func TestActivate_ImpostorTasksAreFake(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.addPlayer("alice")
	b, _ := w.addPlayer("bob")
	c, _ := w.addPlayer("carol")
	impostor, _ := w.startGame(a, b, c)

	me := impostor.LocalPlayer()
	me.Tasks[0].Position = me.Position
	if err := impostor.TakeInput(InputState{Activate: true}); err != nil {
		t.Fatal(err)
	}
	if impostor.LocalPlayer().Tasks[0].Finished {
		t.Error("фальшивое задание импостора закрылось")
	}
}

func TestReconcile_SmallDriftKeepsLocalPosition(t *testing.T) {
	w := newTestWorld(t)
	game, _ := w.addPlayer("alice")
	me := game.LocalPlayer()
	local := domain.Position{X: 100, Y: 100}
	me.Position = local

	snapshotWith := func(pos domain.Position) *api.SnapshotMessage {
		copied := *me
		copied.Position = pos
		copied.Tasks = append([]domain.Task(nil), me.Tasks...)
		return &api.SnapshotMessage{Snapshot: api.Snapshot{
			Status:  game.State.Status,
			Players: []domain.Player{copied},
		}}
	}

	// Дрейф ровно на пороге: локальная позиция важнее серверной
	if err := game.HandleMessage(snapshotWith(domain.Position{X: 130, Y: 100})); err != nil {
		t.Fatal(err)
	}
	if game.LocalPlayer().Position != local {
		t.Errorf("малый дрейф перетер локальную позицию: %+v", game.LocalPlayer().Position)
	}

	// Единицей дальше: сервер прав
	far := domain.Position{X: 131, Y: 100}
	if err := game.HandleMessage(snapshotWith(far)); err != nil {
		t.Fatal(err)
	}
	if game.LocalPlayer().Position != far {
		t.Errorf("большое расхождение не принято: %+v", game.LocalPlayer().Position)
	}
}

func TestReconcile_OwnVelocityIsTrusted(t *testing.T) {
	w := newTestWorld(t)
	game, _ := w.addPlayer("alice")
	if err := game.TakeInput(InputState{Right: true}); err != nil {
		t.Fatal(err)
	}
	myVelocity := game.LocalPlayer().Velocity

	copied := *game.LocalPlayer()
	copied.Velocity = domain.Velocity{}
	if err := game.HandleMessage(&api.SnapshotMessage{Snapshot: api.Snapshot{
		Status:  game.State.Status,
		Players: []domain.Player{copied},
	}}); err != nil {
		t.Fatal(err)
	}
	if game.LocalPlayer().Velocity != myVelocity {
		t.Error("снапшот перетер нашу скорость")
	}
}

func TestVoting_CursorVotesOnce(t *testing.T) {
	w := newTestWorld(t)
	a, atx := w.addPlayer("alice")
	w.addPlayer("bob")
	atx.take()

	a.State.Status = domain.NewDay(time.Minute)

	// Вниз подсвечивает первую клетку
	if err := a.TakeInput(InputState{Down: true}); err != nil {
		t.Fatal(err)
	}
	target, ok := a.VoteHighlight()
	if !ok {
		t.Fatal("курсор не подсветился")
	}

	if err := a.TakeInput(InputState{}); err != nil {
		t.Fatal(err)
	}
	if err := a.TakeInput(InputState{Activate: true}); err != nil {
		t.Fatal(err)
	}
	sent := atx.take()
	if len(sent) != 1 {
		t.Fatalf("голосование отправило %d сообщений", len(sent))
	}
	vote, ok := sent[0].(api.VoteMessage)
	if !ok || vote.Target != target {
		t.Errorf("ушло %+v, подсвечено было %+v", sent[0], target)
	}
	if _, still := a.VoteHighlight(); still {
		t.Error("подсветка не снялась после голоса")
	}

	// Повторный Activate без подсветки - не голос
	if err := a.TakeInput(InputState{}); err != nil {
		t.Fatal(err)
	}
	if err := a.TakeInput(InputState{Activate: true}); err != nil {
		t.Fatal(err)
	}
	if got := len(atx.take()); got != 0 {
		t.Errorf("второй Activate отправил %d сообщений", got)
	}
}

func TestVoting_DeadPlayerHasNoCursor(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.addPlayer("alice")
	w.addPlayer("bob")

	a.State.Status = domain.NewDay(time.Minute)
	a.LocalPlayer().Dead = true

	if err := a.TakeInput(InputState{Down: true}); err != nil {
		t.Fatal(err)
	}
	if _, ok := a.VoteHighlight(); ok {
		t.Error("мертвый игрок двигает курсор")
	}
}

func TestHandleMessage_ReplayArrivesAfterWin(t *testing.T) {
	game := NewGameAsPlayer(NopTx{})
	game.State.Status = domain.WonBy(domain.TeamImpostors)

	rec := api.RecordedGame{GameID: uuid.New(), Version: "v"}
	if err := game.HandleMessage(&api.ReplayMessage{Recording: rec}); err != nil {
		t.Fatal(err)
	}
	if game.LastReplay == nil || game.LastReplay.GameID != rec.GameID {
		t.Error("запись после победы потерялась")
	}

	// А вот снапшоты после конца партии игнорируются
	if err := game.HandleMessage(&api.SnapshotMessage{Snapshot: api.Snapshot{
		Status: domain.StatusOf(domain.StatusLobby),
	}}); err != nil {
		t.Fatal(err)
	}
	if game.State.Status.Kind != domain.StatusWon {
		t.Error("снапшот перетер финальный статус")
	}
}

func TestDisplayedMessages_DelayAndExpiry(t *testing.T) {
	game := NewGameAsPlayer(NopTx{})
	if err := game.HandleMessage(&api.DisplayMessage{
		Message:         "Вы импостор",
		Duration:        100 * time.Millisecond,
		DelayBeforeShow: 50 * time.Millisecond,
	}); err != nil {
		t.Fatal(err)
	}

	if got := game.DisplayedMessages(); len(got) != 0 {
		t.Errorf("сообщение показалось до задержки: %v", got)
	}
	game.Simulate(60 * time.Millisecond)
	got := game.DisplayedMessages()
	if len(got) != 1 || got[0] != "Вы импостор" {
		t.Fatalf("после задержки показано %v", got)
	}
	game.Simulate(200 * time.Millisecond)
	if got := game.DisplayedMessages(); len(got) != 0 {
		t.Errorf("истекшее сообщение осталось: %v", got)
	}
}

func TestVision_DependsOnRoleAndPhase(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.addPlayer("alice")
	b, _ := w.addPlayer("bob")
	c, _ := w.addPlayer("carol")

	if a.Vision() != nil {
		t.Error("в лобби видимость не ограничена")
	}
	impostor, crew := w.startGame(a, b, c)

	if v := crew.Vision(); v == nil || *v != crew.State.Settings.CrewVision {
		t.Errorf("видимость экипажа = %v", v)
	}
	if v := impostor.Vision(); v == nil || *v != impostor.State.Settings.ImpostorVision {
		t.Errorf("видимость импостора = %v", v)
	}

	// Днем все сидят за столом и видят всех
	crew.State.Status = domain.NewDay(time.Minute)
	if crew.Vision() != nil {
		t.Error("днем туман должен сниматься")
	}
	crew.State.Status = domain.StatusOf(domain.StatusViewingOutcome)
	if crew.Vision() != nil {
		t.Error("при показе результата туман должен сниматься")
	}

	crew.State.Status = domain.StatusOf(domain.StatusNight)
	crew.LocalPlayer().Dead = true
	if crew.Vision() != nil {
		t.Error("мертвым видно все")
	}
}

func TestHasWon_PerTeam(t *testing.T) {
	w := newTestWorld(t)
	a, _ := w.addPlayer("alice")
	b, _ := w.addPlayer("bob")
	c, _ := w.addPlayer("carol")
	impostor, crew := w.startGame(a, b, c)

	if impostor.HasWon() != nil {
		t.Error("HasWon до конца партии должен быть nil")
	}

	for _, g := range []*GameAsPlayer{impostor, crew} {
		g.State.Status = domain.WonBy(domain.TeamImpostors)
	}
	if won := impostor.HasWon(); won == nil || !*won {
		t.Error("импостор не узнал о своей победе")
	}
	if won := crew.HasWon(); won == nil || *won {
		t.Error("экипаж решил, что выиграл")
	}
}

func TestDisconnected_PreservesVictory(t *testing.T) {
	game := NewGameAsPlayer(NopTx{})
	game.State.Status = domain.WonBy(domain.TeamCrew)
	game.Disconnected()
	if game.State.Status.Kind != domain.StatusWon {
		t.Error("обрыв связи стер победу")
	}

	game.State.Status = domain.StatusOf(domain.StatusNight)
	game.Disconnected()
	if game.State.Status.Kind != domain.StatusDisconnected {
		t.Error("обрыв связи посреди партии не отразился в статусе")
	}
}

func TestRestart_ResetsMirrorButKeepsIdentity(t *testing.T) {
	w := newTestWorld(t)
	game, _ := w.addPlayer("alice")
	if err := game.TakeInput(InputState{Right: true}); err != nil {
		t.Fatal(err)
	}
	my := game.My

	game.Restart()
	if game.My != my {
		t.Error("Restart потерял uuid соединения")
	}
	if len(game.State.Players) != 0 {
		t.Error("Restart оставил игроков в зеркале")
	}
	if game.State.Status.Kind != domain.StatusLobby {
		t.Errorf("после Restart статус %v", game.State.Status.Kind)
	}
	if (game.inputs != InputState{}) {
		t.Error("Restart не сбросил ввод")
	}
}
