package api

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"airlock-server/internal/domain"
)

func TestClientEnvelope_Decode(t *testing.T) {
	original := MoveMessage{
		Velocity: domain.Velocity{Dx: 2, Dy: -2},
		Position: domain.Position{X: 100, Y: 200},
	}
	env, err := NewClientEnvelope(original)
	if err != nil {
		t.Fatal(err)
	}
	if env.Kind != KindMove {
		t.Errorf("Kind = %q", env.Kind)
	}

	decoded, err := env.Decode()
	if err != nil {
		t.Fatal(err)
	}
	move, ok := decoded.(*MoveMessage)
	if !ok {
		t.Fatalf("Decode вернул %T", decoded)
	}
	if *move != original {
		t.Errorf("после конверта %+v, было %+v", *move, original)
	}
}

func TestClientEnvelope_DecodeEmptyPayload(t *testing.T) {
	// StartGame не несет данных, Payload может отсутствовать вовсе
	env := ClientEnvelope{Kind: KindStartGame}
	decoded, err := env.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded.(*StartGameMessage); !ok {
		t.Errorf("Decode вернул %T", decoded)
	}
}

func TestClientEnvelope_UnknownKind(t *testing.T) {
	env := ClientEnvelope{Kind: "Teleport"}
	if _, err := env.Decode(); err == nil {
		t.Error("неизвестный kind прошел без ошибки")
	}
}

func TestServerEnvelope_Decode(t *testing.T) {
	id := uuid.New()
	env, err := NewServerEnvelope(&WelcomeMessage{ConnectionID: id})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := env.Decode()
	if err != nil {
		t.Fatal(err)
	}
	welcome, ok := decoded.(*WelcomeMessage)
	if !ok {
		t.Fatalf("Decode вернул %T", decoded)
	}
	if welcome.ConnectionID != id {
		t.Errorf("ConnectionID = %s, want %s", welcome.ConnectionID, id)
	}
}

func TestDisplayMessage_Timers(t *testing.T) {
	msg := DisplayMessage{
		Message:         "hello",
		Duration:        100 * time.Millisecond,
		DelayBeforeShow: 50 * time.Millisecond,
	}
	if msg.ReadyToDisplay() {
		t.Error("сообщение показалось до истечения задержки")
	}

	// Сначала тает задержка, длительность не трогаем
	msg.PassTime(50 * time.Millisecond)
	if !msg.ReadyToDisplay() || msg.Expired() {
		t.Errorf("после задержки: ready=%v expired=%v", msg.ReadyToDisplay(), msg.Expired())
	}
	if msg.Duration != 100*time.Millisecond {
		t.Errorf("задержка съела длительность: %v", msg.Duration)
	}

	msg.PassTime(100 * time.Millisecond)
	if !msg.Expired() {
		t.Error("сообщение не истекло")
	}
}

func TestJoinMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     JoinMessage
		wantErr bool
	}{
		{"обычный игрок", JoinMessage{Details: JoinRequest{Kind: JoinAsPlayer, Name: "alice"}}, false},
		{"зритель", JoinMessage{Details: JoinRequest{Kind: JoinAsSpectator}}, false},
		{"цвет из палитры", JoinMessage{Details: JoinRequest{Kind: JoinAsPlayer, PreferredColor: domain.ColorBlue}}, false},
		{"мусорный kind", JoinMessage{Details: JoinRequest{Kind: "Admin"}}, true},
		{"мусорный цвет", JoinMessage{Details: JoinRequest{Kind: JoinAsPlayer, PreferredColor: "Magenta"}}, true},
		{"слишком длинное имя", JoinMessage{Details: JoinRequest{Kind: JoinAsPlayer, Name: string(make([]byte, 33))}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.msg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
