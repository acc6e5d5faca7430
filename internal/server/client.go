package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"airlock-server/pkg/api"
	"airlock-server/pkg/logger"
)

// Настройки WebSocket
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Peer - посредник между Websocket и GameServer одной сессии.
// Идентичность пира живет ровно одно соединение: переподключение -
// это новый пир и новый Join.
type Peer struct {
	session *Session
	conn    *websocket.Conn
	send    chan api.ServerMessage
	id      uuid.UUID
}

func NewPeer(session *Session, conn *websocket.Conn) *Peer {
	return &Peer{
		session: session,
		conn:    conn,
		send:    make(chan api.ServerMessage, 256),
		id:      uuid.New(),
	}
}

// readPump читает конверты от клиента и скармливает их сессии
func (p *Peer) readPump() {
	defer func() {
		p.session.Hub.Unregister(p.id)
		if err := p.conn.Close(); err != nil {
			logger.Log.WithError(err).Debug("failed to close websocket connection")
		}
		p.session.Game.Disconnected(p.id)
		logger.Log.WithField("peer_id", p.id).Info("Peer disconnected")
	}()

	p.conn.SetReadLimit(maxMessageSize)
	if err := p.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Log.WithError(err).Warn("failed to set read deadline")
	}
	p.conn.SetPongHandler(func(string) error {
		if err := p.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			logger.Log.WithError(err).Warn("failed to set pong read deadline")
		}
		return nil
	})

	// Подписка на рассылку сессии. Канал закроет хаб - либо при
	// нашем уходе, либо при конце партии.
	updates := p.session.Hub.Register(p.id)
	go forwardUpdates(updates, p.send, p.id)

	for {
		var env api.ClientEnvelope
		if err := p.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.WithError(err).Warn("WS read error")
			}
			break
		}
		p.session.Game.HandleMessage(p.id, env)
	}
}

// forwardUpdates перекачивает рассылку хаба в буфер пира. Если
// writePump умер и буфер забился, сообщения отбрасываются: иначе
// горутина повиснет на записи навсегда, а клиент все равно догонит
// по следующему снапшоту.
func forwardUpdates(updates <-chan api.ServerMessage, send chan<- api.ServerMessage, peerID uuid.UUID) {
	for msg := range updates {
		select {
		case send <- msg:
		default:
			logger.Log.WithField("peer_id", peerID).Warn("Peer buffer full, dropping message")
		}
	}
	close(send)
}

// writePump отправляет конверты клиенту + Ping
func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := p.conn.Close(); err != nil {
			logger.Log.WithError(err).Debug("failed to close websocket connection in writePump")
		}
	}()

	for {
		select {
		case message, ok := <-p.send:
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set write deadline")
			}
			if !ok {
				if err := p.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logger.Log.WithError(err).Debug("write close message failed")
				}
				return
			}
			env, err := api.NewServerEnvelope(message)
			if err != nil {
				logger.Log.WithError(err).Error("failed to encode server message")
				continue
			}
			if err := p.conn.WriteJSON(env); err != nil {
				logger.Log.WithError(err).Debug("write json message failed")
				return
			}

		case <-ticker.C:
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
