package api

import (
	"time"

	"github.com/google/uuid"

	"airlock-server/internal/domain"
)

// Формат записи партии. Запись - это не лог снапшотов, а лог ВХОДОВ:
// клиентские конверты плюс захваченные решения сервера. Проигрыватель
// скармливает их чистой логике заново и получает побайтово ту же партию.

// Виды решений. Решение - единственная недетерминированная точка
// обработки сообщения; вживую сервер бросает кости и записывает
// результат, при воспроизведении берет записанное.
const (
	DecisionStartInfo         = "StartInfo"
	DecisionNewPlayerPosition = "NewPlayerPosition"
)

// Decision - захваченный результат серверного рандома.
type Decision struct {
	Kind      string            `json:"kind"`
	StartInfo *domain.StartInfo `json:"startInfo,omitempty"`
	Position  *domain.Position  `json:"position,omitempty"`
}

// PlaybackMessage - одно клиентское сообщение вместе с решением,
// которое сервер принял при его обработке (если принимал).
type PlaybackMessage struct {
	Sender   uuid.UUID      `json:"sender"`
	Message  ClientEnvelope `json:"message"`
	Decision *Decision      `json:"decision,omitempty"`
}

// RecordingEvent - событие записи: либо сообщение, либо отключение.
// Заполнено ровно одно поле.
type RecordingEvent struct {
	Message    *PlaybackMessage `json:"message,omitempty"`
	Disconnect *uuid.UUID       `json:"disconnect,omitempty"`
}

// RecordingEntry - событие с отметкой времени от старта записи.
type RecordingEntry struct {
	SinceStart time.Duration  `json:"sinceStart"`
	Event      RecordingEvent `json:"event"`
}

// RecordedGame - полная запись партии.
type RecordedGame struct {
	Version string           `json:"version"`
	GameID  uuid.UUID        `json:"gameId"`
	Entries []RecordingEntry `json:"entries"`
}

// Duration - отметка последнего события; длительность записи.
func (r RecordedGame) Duration() time.Duration {
	if len(r.Entries) == 0 {
		return 0
	}
	return r.Entries[len(r.Entries)-1].SinceStart
}
