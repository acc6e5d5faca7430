package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"airlock-server/internal/domain"
	"airlock-server/pkg/api"
)

// Observer - локальный потребитель сообщений проигрывателя, обычно
// клиентское зеркало. Проигрыватель кормит его тем же потоком, что
// живой сервер слал бы по сети.
type Observer interface {
	HandleMessage(msg api.ServerMessage) error
	Simulate(elapsed time.Duration)
	Restart()
}

// captureBroadcaster буферизует исходящие сообщения сервера вместо
// отправки в сеть. Unicast при воспроизведении тоже уходит в общий
// буфер: наблюдатель один.
type captureBroadcaster struct {
	mu      sync.Mutex
	pending []api.ServerMessage
}

func (b *captureBroadcaster) Broadcast(msg api.ServerMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, msg)
}

func (b *captureBroadcaster) SendTo(_ uuid.UUID, msg api.ServerMessage) {
	b.Broadcast(msg)
}

func (b *captureBroadcaster) drain() []api.ServerMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.pending
	b.pending = nil
	return msgs
}

// PlaybackServer скармливает запись партии обычному GameServer.
// Решения берутся из записи, поэтому партия разворачивается ровно
// так же, как шла вживую.
type PlaybackServer struct {
	currentTime time.Duration
	index       int
	paused      bool
	recording   api.RecordedGame
	srv         *GameServer
	buffer      *captureBroadcaster
}

func NewPlaybackServer(recording api.RecordedGame) *PlaybackServer {
	p := &PlaybackServer{recording: recording}
	p.reset()
	return p
}

func (p *PlaybackServer) reset() {
	p.buffer = &captureBroadcaster{}
	// Запись при воспроизведении выключена: переписывать нечего.
	p.srv = NewGameServer(p.recording.GameID, p.recording.Version, p.buffer, false, 0)
	p.currentTime = 0
	p.index = 0
}

// Restart отматывает воспроизведение к самому началу.
func (p *PlaybackServer) Restart() {
	p.reset()
}

// State - текущее состояние воспроизводимой партии.
func (p *PlaybackServer) State() *GameState {
	return p.srv.State
}

// Duration - длительность записи по отметке последнего события.
func (p *PlaybackServer) Duration() time.Duration {
	return p.recording.Duration()
}

func (p *PlaybackServer) CurrentTime() time.Duration {
	return p.currentTime
}

func (p *PlaybackServer) TogglePause() {
	p.paused = !p.paused
}

func (p *PlaybackServer) Paused() bool {
	return p.paused
}

// Simulate продвигает воспроизведение на elapsed, скармливая серверу
// все записанные события, чье время наступило. Возвращает true, когда
// двигаться дальше некуда (пауза или конец записи).
func (p *PlaybackServer) Simulate(elapsed time.Duration, observer Observer, force bool) (bool, error) {
	if p.paused && !force {
		return true, nil
	}

	// Отметка события - показание часов записи, которые вживую двигает
	// тот же Simulate, что и состояние. Событие с отметкой K тиков было
	// применено к состоянию после K тиков, поэтому здесь оно подается
	// строго до очередного тика, а не вместе с ним.
	newTime := p.currentTime + elapsed
	served := 0
	for p.index < len(p.recording.Entries) {
		entry := p.recording.Entries[p.index]
		if entry.SinceStart > p.currentTime {
			break
		}
		p.index++
		switch {
		case entry.Event.Message != nil:
			if err := p.srv.HandleMessagePlayback(entry.Event.Message); err != nil {
				return false, err
			}
		case entry.Event.Disconnect != nil:
			p.srv.Disconnected(*entry.Event.Disconnect)
		}
		served++
	}

	if p.srv.State.Status.Finished() && served == 0 {
		return true, nil
	}

	p.srv.Simulate(elapsed)
	p.currentTime = newTime
	if err := p.deliverMessages(observer); err != nil {
		return false, err
	}
	return false, nil
}

// SkipTo перематывает к отметке fromStart. Назад мотать нельзя -
// только начать сначала и догнать.
func (p *PlaybackServer) SkipTo(fromStart time.Duration, observer Observer) error {
	if fromStart < p.currentTime {
		p.Restart()
		observer.Restart()
	}
	for p.currentTime < fromStart {
		elapsed := domain.TickUnit
		finished, err := p.Simulate(elapsed, observer, true)
		if err != nil {
			return err
		}
		observer.Simulate(elapsed)
		if finished {
			// Дальше этой точки симуляция не идет
			break
		}
	}
	p.srv.BroadcastSnapshot()
	return p.deliverMessages(observer)
}

func (p *PlaybackServer) deliverMessages(observer Observer) error {
	for _, msg := range p.buffer.drain() {
		if err := observer.HandleMessage(msg); err != nil {
			return err
		}
	}
	return nil
}
