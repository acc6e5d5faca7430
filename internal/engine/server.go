package engine

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"airlock-server/internal/domain"
	"airlock-server/internal/network"
	"airlock-server/pkg/api"
	"airlock-server/pkg/logger"
)

// Сколько сессия живет без единого сообщения, прежде чем мы ее хороним.
const idleTimeout = 15 * time.Minute

// GameServer - авторитетный сервер одной сессии. Ничего не знает про
// транспорт: снаружи ему скармливают конверты и тики, наружу он шлет
// сообщения через Broadcaster. Одна горутина-цикл на сессию, все входы
// сериализуются мьютексом.
type GameServer struct {
	mu sync.Mutex

	GameID  uuid.UUID
	Version string
	State   *GameState

	broadcaster network.Broadcaster
	handlers    map[string]handlerFunc
	rng         *rand.Rand

	// Счетчик простоя в симулированном времени: детерминирован
	// и при живой игре, и при воспроизведении.
	idleFor time.Duration

	// Запись партии. Пишем входы, не снапшоты.
	recording        []api.RecordingEntry
	recordingEnabled bool
	recordingClock   time.Duration
	sentReplay       bool

	// Кто подключен как зритель. На state не влияет, нужно только
	// чтобы не пытаться удалять их из партии при отключении.
	spectators map[uuid.UUID]bool
}

// NewGameServer собирает сервер сессии. seed определяет все броски
// костей; снаружи его передают ради воспроизводимых тестов.
func NewGameServer(gameID uuid.UUID, ver string, b network.Broadcaster, recordingEnabled bool, seed int64) *GameServer {
	s := &GameServer{
		GameID:           gameID,
		Version:          ver,
		State:            NewGameState(),
		broadcaster:      b,
		rng:              rand.New(rand.NewSource(seed)),
		recordingEnabled: recordingEnabled,
		spectators:       make(map[uuid.UUID]bool),
	}
	s.State.Status = domain.StatusOf(domain.StatusLobby)
	s.registerHandlers()
	return s
}

func (s *GameServer) registerHandlers() {
	s.handlers = map[string]handlerFunc{
		api.KindJoin:         withPayload(s.handleJoin),
		api.KindMove:         withPayload(s.handleMove),
		api.KindKilled:       withPayload(s.handleKilled),
		api.KindFinishedTask: withPayload(s.handleFinishedTask),
		api.KindVote:         withPayload(s.handleVote),
		api.KindReportBody:   withPayload(s.handleReportBody),
		api.KindStartGame:    withPayload(s.handleStartGame),
	}
}

// HandleMessage - вход живой игры. Ошибки обработки логируются и
// глотаются: кривое сообщение не роняет сессию.
func (s *GameServer) HandleMessage(sender uuid.UUID, env api.ClientEnvelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idleFor = 0
	dc := &decisionContext{}
	if err := s.dispatch(sender, env, dc); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"sender": sender,
			"kind":   env.Kind,
		}).WithError(err).Warn("Rejected client message")
		return
	}
	s.recordMessage(sender, env, dc.made)
}

// HandleMessagePlayback - вход проигрывателя. Решение не бросается,
// а берется из записи; любая нестыковка фатальна для воспроизведения.
func (s *GameServer) HandleMessagePlayback(msg *api.PlaybackMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idleFor = 0
	dc := &decisionContext{playback: true, recorded: msg.Decision}
	return s.dispatch(msg.Sender, msg.Message, dc)
}

func (s *GameServer) dispatch(sender uuid.UUID, env api.ClientEnvelope, dc *decisionContext) error {
	handler, ok := s.handlers[env.Kind]
	if !ok {
		return fmt.Errorf("unknown message kind %q", env.Kind)
	}
	return handler(dispatchContext{sender: sender, decisions: dc}, env.Payload)
}

// Simulate продвигает сессию на elapsed. Возвращает true, когда
// сессия закончена и цикл может останавливаться.
func (s *GameServer) Simulate(elapsed time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idleFor += elapsed
	if s.State.Status.Kind != domain.StatusConnecting && s.idleFor > idleTimeout {
		logger.Log.WithField("game_id", s.GameID).Info("Session idle for too long, disconnecting")
		s.State.Status = domain.StatusOf(domain.StatusDisconnected)
	}

	if s.recordingEnabled {
		s.recordingClock += elapsed
	}

	before := s.State.Status.Kind
	finished := s.State.Simulate(elapsed)
	if s.State.Status.Kind != before {
		// Таймерные переходы (конец дня, конец показа результата)
		// случаются без клиентских сообщений, снапшот нужен и тут.
		s.broadcastSnapshot()
	}

	if finished && s.recordingEnabled && !s.sentReplay && s.State.Status.Kind == domain.StatusWon {
		s.broadcaster.Broadcast(&api.ReplayMessage{Recording: s.recordingSnapshot()})
		s.sentReplay = true
	}

	return finished
}

// Disconnected убирает пира из сессии (транспорт заметил обрыв).
func (s *GameServer) Disconnected(peer uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spectators[peer] {
		delete(s.spectators, peer)
		return
	}

	s.recordDisconnect(peer)
	s.State.HandleDisconnection(peer)
	s.broadcastSnapshot()
}

// BroadcastSnapshot - принудительная рассылка слепка. Нужна
// проигрывателю после перемотки.
func (s *GameServer) BroadcastSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastSnapshot()
}

func (s *GameServer) broadcastSnapshot() {
	s.broadcaster.Broadcast(&api.SnapshotMessage{Snapshot: api.Snapshot{
		Status:  s.State.Status,
		Bodies:  append([]domain.DeadBody(nil), s.State.Bodies...),
		Players: s.State.PlayersSorted(),
	}})
}

// CurrentStatus - статус партии на текущий момент.
func (s *GameServer) CurrentStatus() domain.GameStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State.Status
}

// Recording - копия накопленной записи партии.
func (s *GameServer) Recording() api.RecordedGame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordingSnapshot()
}

func (s *GameServer) recordingSnapshot() api.RecordedGame {
	return api.RecordedGame{
		Version: s.Version,
		GameID:  s.GameID,
		Entries: append([]api.RecordingEntry(nil), s.recording...),
	}
}

func (s *GameServer) recordMessage(sender uuid.UUID, env api.ClientEnvelope, decision *api.Decision) {
	if !s.recordingEnabled {
		return
	}
	s.recording = append(s.recording, api.RecordingEntry{
		SinceStart: s.recordingClock,
		Event: api.RecordingEvent{
			Message: &api.PlaybackMessage{Sender: sender, Message: env, Decision: decision},
		},
	})
}

func (s *GameServer) recordDisconnect(peer uuid.UUID) {
	if !s.recordingEnabled {
		return
	}
	p := peer
	s.recording = append(s.recording, api.RecordingEntry{
		SinceStart: s.recordingClock,
		Event:      api.RecordingEvent{Disconnect: &p},
	})
}

// --- РЕШЕНИЯ ---

// decisionContext - единственная недетерминированная точка обработки.
// Вживую решение бросается и захватывается в made; при воспроизведении
// оно обязано лежать в recorded, иначе запись битая.
type decisionContext struct {
	playback bool
	recorded *api.Decision
	made     *api.Decision
}

func (s *GameServer) decideStartPosition(dc *decisionContext) (domain.Position, error) {
	if dc.playback {
		if dc.recorded == nil || dc.recorded.Kind != api.DecisionNewPlayerPosition || dc.recorded.Position == nil {
			return domain.Position{}, fmt.Errorf("recording is missing a %s decision", api.DecisionNewPlayerPosition)
		}
		return *dc.recorded.Position, nil
	}
	// Спавн с отступом от края, чтобы никто не рождался прижатым к стене
	const inset = 30.0
	pos := domain.Position{
		X: inset + s.rng.Float64()*(s.State.Map.Width-2*inset),
		Y: inset + s.rng.Float64()*(s.State.Map.Height-2*inset),
	}
	dc.made = &api.Decision{Kind: api.DecisionNewPlayerPosition, Position: &pos}
	return pos, nil
}

func (s *GameServer) decideStartInfo(dc *decisionContext) (*domain.StartInfo, error) {
	if dc.playback {
		if dc.recorded == nil || dc.recorded.Kind != api.DecisionStartInfo || dc.recorded.StartInfo == nil {
			return nil, fmt.Errorf("recording is missing a %s decision", api.DecisionStartInfo)
		}
		return dc.recorded.StartInfo, nil
	}

	ids := s.State.SortedPlayerIDs()
	info := &domain.StartInfo{Assignments: make(map[uuid.UUID]domain.PlayerStartInfo, len(ids))}
	for _, id := range ids {
		tasks := make([]domain.Task, s.State.Settings.TasksPerPlayer)
		for i := range tasks {
			tasks[i] = domain.Task{Position: domain.Position{
				X: s.rng.Float64() * s.State.Map.Width,
				Y: s.rng.Float64() * s.State.Map.Height,
			}}
		}
		info.Assignments[id] = domain.PlayerStartInfo{Team: domain.TeamCrew, Tasks: tasks}
	}
	impostor := ids[s.rng.Intn(len(ids))]
	assignment := info.Assignments[impostor]
	assignment.Team = domain.TeamImpostors
	info.Assignments[impostor] = assignment

	dc.made = &api.Decision{Kind: api.DecisionStartInfo, StartInfo: info}
	return info, nil
}
