package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"airlock-server/internal/domain"
	"airlock-server/internal/engine"
	"airlock-server/internal/infrastructure/storage"
	"airlock-server/internal/network"
	"airlock-server/pkg/logger"
)

// Session - одна партия: игровой сервер, хаб рассылки и цикл
// симуляции. Живет от создания до терминального статуса.
type Session struct {
	ID   uuid.UUID
	Game *engine.GameServer
	Hub  *network.Hub

	done chan struct{}
}

// Finished - дошла ли сессия до терминального состояния.
func (s *Session) Finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Manager раздает подключающимся текущую сессию. Закончилась -
// следующий подключившийся получит свежую.
type Manager struct {
	mu      sync.Mutex
	current *Session

	version    string
	recordings *storage.Service
	archive    *storage.Archive
}

func NewManager(ver string, recordings *storage.Service, archive *storage.Archive) *Manager {
	return &Manager{
		version:    ver,
		recordings: recordings,
		archive:    archive,
	}
}

// Current возвращает живую сессию, создавая новую при необходимости.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && !m.current.Finished() {
		return m.current
	}

	id := uuid.New()
	hub := network.NewHub()
	session := &Session{
		ID:   id,
		Game: engine.NewGameServer(id, m.version, hub, true, time.Now().UnixNano()),
		Hub:  hub,
		done: make(chan struct{}),
	}
	m.current = session

	logger.Log.WithField("game_id", id).Info("Starting a new game session")
	go m.runSession(session)
	return session
}

// runSession - цикл симуляции сессии с фиксированным тиком.
// Останавливается сам, когда партия доходит до терминального статуса.
func (m *Manager) runSession(session *Session) {
	ticker := time.NewTicker(domain.TickUnit)
	defer ticker.Stop()

	last := time.Now()
	for now := range ticker.C {
		elapsed := now.Sub(last)
		last = now

		if session.Game.Simulate(elapsed) {
			break
		}
	}

	m.finishSession(session)
}

func (m *Manager) finishSession(session *Session) {
	defer close(session.done)

	status := session.Game.CurrentStatus()
	logger.Log.WithFields(logrus.Fields{
		"game_id": session.ID,
		"status":  status.Kind,
		"winner":  status.Winner,
	}).Info("Game session finished")

	// Сохраняем запись только доигранных партий: брошенные по
	// таймауту лобби никому не интересны.
	if status.Kind == domain.StatusWon {
		m.persistRecording(session)
	}

	// Все каналы закрываются, writePump каждого пира завершается и
	// рвет соединение. Следующий Join попадет в новую сессию.
	session.Hub.CloseAll()
}

func (m *Manager) persistRecording(session *Session) {
	rec := session.Game.Recording()

	if m.recordings != nil {
		path, err := m.recordings.Save(rec)
		if err != nil {
			logger.Log.WithError(err).Error("Failed to save recording file")
		} else {
			logger.Log.WithField("path", path).Info("Recording saved")
		}
	}

	if m.archive != nil {
		if err := m.archive.Save(rec); err != nil {
			logger.Log.WithError(err).Error("Failed to archive recording")
		}
	}
}
