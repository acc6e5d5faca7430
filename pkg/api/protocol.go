package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"airlock-server/internal/domain"
)

// Пакет api описывает протокол клиент <-> сервер на уровне логических
// сообщений. Транспорт (websocket, in-memory очередь в тестах, буфер
// playback-а) возит конверты и ничего не знает про их содержимое.

// --- КЛИЕНТ -> СЕРВЕР ---

// Виды клиентских сообщений.
const (
	KindMove         = "Move"
	KindKilled       = "Killed"
	KindFinishedTask = "FinishedTask"
	KindJoin         = "Join"
	KindVote         = "Vote"
	KindReportBody   = "ReportBody"
	KindStartGame    = "StartGame"
)

// ClientMessage реализуют все сообщения клиент -> сервер.
type ClientMessage interface {
	ClientKind() string
}

// MoveMessage - новая скорость и предсказанная позиция игрока.
// Шлется только когда вектор движения реально изменился.
type MoveMessage struct {
	Velocity domain.Velocity `json:"velocity"`
	Position domain.Position `json:"position"`
}

// KilledMessage - клиент импостора сообщает об убийстве.
// Сервер доверяет отправителю (известное ограничение, см. DESIGN.md).
type KilledMessage struct {
	Body domain.DeadBody `json:"body"`
}

// FinishedTaskMessage - игрок закрыл задание с этим индексом.
type FinishedTaskMessage struct {
	Index int `json:"index"`
}

// JoinRequest - как именно клиент хочет войти в сессию.
type JoinRequest struct {
	Kind           string       `json:"kind"` // JoinAsPlayer | JoinAsSpectator
	PreferredColor domain.Color `json:"preferredColor,omitempty"`
	Name           string       `json:"name,omitempty"`
}

const (
	JoinAsPlayer    = "JoinAsPlayer"
	JoinAsSpectator = "JoinAsSpectator"
)

// JoinMessage - рукопожатие. Version обязана побайтово совпадать
// с версией сборки сервера, иначе Join отклоняется.
type JoinMessage struct {
	Version string      `json:"version"`
	Details JoinRequest `json:"details"`
}

// VoteMessage - голос на дневном собрании.
type VoteMessage struct {
	Target domain.VoteTarget `json:"target"`
}

// ReportBodyMessage - игрок нашел тело и созывает собрание.
type ReportBodyMessage struct {
	Color domain.Color `json:"color"`
}

// StartGameMessage - нажатие "play" в лобби. Данных не несет.
type StartGameMessage struct{}

func (MoveMessage) ClientKind() string         { return KindMove }
func (KilledMessage) ClientKind() string       { return KindKilled }
func (FinishedTaskMessage) ClientKind() string { return KindFinishedTask }
func (JoinMessage) ClientKind() string         { return KindJoin }
func (VoteMessage) ClientKind() string         { return KindVote }
func (ReportBodyMessage) ClientKind() string   { return KindReportBody }
func (StartGameMessage) ClientKind() string    { return KindStartGame }

// ClientEnvelope - транспортная обертка клиентского сообщения.
// Payload остается сырым JSON до момента диспетчеризации: так же
// конверт ложится в запись партии без повторной сериализации.
type ClientEnvelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewClientEnvelope упаковывает типизированное сообщение в конверт.
func NewClientEnvelope(msg ClientMessage) (ClientEnvelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return ClientEnvelope{}, fmt.Errorf("encode %s payload: %w", msg.ClientKind(), err)
	}
	return ClientEnvelope{Kind: msg.ClientKind(), Payload: payload}, nil
}

// Decode разворачивает конверт обратно в типизированное сообщение.
func (e ClientEnvelope) Decode() (ClientMessage, error) {
	var msg ClientMessage
	switch e.Kind {
	case KindMove:
		msg = &MoveMessage{}
	case KindKilled:
		msg = &KilledMessage{}
	case KindFinishedTask:
		msg = &FinishedTaskMessage{}
	case KindJoin:
		msg = &JoinMessage{}
	case KindVote:
		msg = &VoteMessage{}
	case KindReportBody:
		msg = &ReportBodyMessage{}
	case KindStartGame:
		msg = &StartGameMessage{}
	default:
		return nil, fmt.Errorf("unknown client message kind %q", e.Kind)
	}
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, msg); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
	}
	return msg, nil
}

// --- СЕРВЕР -> КЛИЕНТ ---

const (
	KindWelcome        = "Welcome"
	KindSnapshot       = "Snapshot"
	KindReplay         = "Replay"
	KindDisplayMessage = "DisplayMessage"
)

// ServerMessage реализуют все сообщения сервер -> клиент.
type ServerMessage interface {
	ServerKind() string
}

// WelcomeMessage сообщает клиенту его connection id.
// Отправляется в ответ на любой Join, даже если игрок стал зрителем.
type WelcomeMessage struct {
	ConnectionID uuid.UUID `json:"connectionId"`
}

// Snapshot - ПОЛНЫЙ слепок авторитетного состояния. Единственный
// механизм синхронизации: никаких дельт.
type Snapshot struct {
	Status  domain.GameStatus `json:"status"`
	Bodies  []domain.DeadBody `json:"bodies"`
	Players []domain.Player   `json:"players"`
}

// SnapshotMessage - рассылка слепка всем пирам.
type SnapshotMessage struct {
	Snapshot Snapshot `json:"snapshot"`
}

// ReplayMessage - готовая запись завершенной партии. Ядро относится
// к ней как к непрозрачному артефакту: клиент сохраняет, не разбирая.
type ReplayMessage struct {
	Recording RecordedGame `json:"recording"`
}

// DisplayMessage - текст для показа игроку с таймерами показа.
// Чисто косметика: на состояние игры не влияет.
type DisplayMessage struct {
	Message         string        `json:"message"`
	Duration        time.Duration `json:"duration"`
	DelayBeforeShow time.Duration `json:"delayBeforeShow"`
}

// PassTime продвигает таймеры сообщения.
func (d *DisplayMessage) PassTime(elapsed time.Duration) {
	if d.DelayBeforeShow > 0 {
		d.DelayBeforeShow -= elapsed
		if d.DelayBeforeShow < 0 {
			d.DelayBeforeShow = 0
		}
		return
	}
	d.Duration -= elapsed
	if d.Duration < 0 {
		d.Duration = 0
	}
}

func (d *DisplayMessage) Expired() bool        { return d.Duration <= 0 }
func (d *DisplayMessage) ReadyToDisplay() bool { return d.DelayBeforeShow <= 0 }

func (WelcomeMessage) ServerKind() string  { return KindWelcome }
func (SnapshotMessage) ServerKind() string { return KindSnapshot }
func (ReplayMessage) ServerKind() string   { return KindReplay }
func (DisplayMessage) ServerKind() string  { return KindDisplayMessage }

// ServerEnvelope - транспортная обертка серверного сообщения.
type ServerEnvelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewServerEnvelope(msg ServerMessage) (ServerEnvelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return ServerEnvelope{}, fmt.Errorf("encode %s payload: %w", msg.ServerKind(), err)
	}
	return ServerEnvelope{Kind: msg.ServerKind(), Payload: payload}, nil
}

func (e ServerEnvelope) Decode() (ServerMessage, error) {
	var msg ServerMessage
	switch e.Kind {
	case KindWelcome:
		msg = &WelcomeMessage{}
	case KindSnapshot:
		msg = &SnapshotMessage{}
	case KindReplay:
		msg = &ReplayMessage{}
	case KindDisplayMessage:
		msg = &DisplayMessage{}
	default:
		return nil, fmt.Errorf("unknown server message kind %q", e.Kind)
	}
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, msg); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
	}
	return msg, nil
}
