package network

import (
	"sync"

	"github.com/google/uuid"

	"airlock-server/pkg/api"
	"airlock-server/pkg/logger"
)

// Broadcaster - то, через что движок шлет сообщения наружу.
// Доставка best-effort: ошибок нет, потерянный пир просто отвалится
// и переподключится к свежему снапшоту.
type Broadcaster interface {
	// Broadcast отправляет сообщение всем подключенным пирам.
	Broadcast(msg api.ServerMessage)
	// SendTo отправляет сообщение конкретному пиру (Unicast).
	SendTo(peerID uuid.UUID, msg api.ServerMessage)
}

// Hub занимается только рассылкой сообщений подписчикам
type Hub struct {
	mu sync.RWMutex
	// Мапа: PeerID -> Личный канал
	subscribers map[uuid.UUID]chan api.ServerMessage
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]chan api.ServerMessage),
	}
}

// Register создает личный канал для пира
func (h *Hub) Register(peerID uuid.UUID) chan api.ServerMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Если канал был, закрываем
	if old, ok := h.subscribers[peerID]; ok {
		close(old)
	}

	ch := make(chan api.ServerMessage, 100)
	h.subscribers[peerID] = ch
	return ch
}

// Unregister удаляет подписчика
func (h *Hub) Unregister(peerID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[peerID]; ok {
		close(ch)
		delete(h.subscribers, peerID)
	}
}

// SendTo отправляет сообщение конкретному ID (Unicast)
func (h *Hub) SendTo(peerID uuid.UUID, msg api.ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if ch, ok := h.subscribers[peerID]; ok {
		select {
		case ch <- msg:
		default:
			logger.Log.WithField("peer_id", peerID).Warn("Hub: channel full, dropping message")
		}
	}
}

// Broadcast отправляет всем (нужен для зрителей/игроков)
func (h *Hub) Broadcast(msg api.ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
			logger.Log.WithField("peer_id", id).Warn("Hub: channel full, dropping broadcast")
		}
	}
}

// CloseAll закрывает все личные каналы. Зовется при завершении
// сессии, чтобы цикл записи каждого пира остановился сам.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}

// HasSubscriber проверяет, подключен ли пир
func (h *Hub) HasSubscriber(peerID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subscribers[peerID]
	return ok
}

// SubscriberCount возвращает количество активных подписчиков.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
