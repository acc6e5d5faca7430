package storage

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"airlock-server/internal/domain"
	"airlock-server/pkg/api"
)

// Небольшая запись с обоими видами событий и решением сервера.
func sampleRecording() api.RecordedGame {
	gameID := uuid.New()
	player := uuid.New()
	pos := domain.Position{X: 12, Y: 34}

	return api.RecordedGame{
		Version: "build-42-abc",
		GameID:  gameID,
		Entries: []api.RecordingEntry{
			{
				SinceStart: 0,
				Event: api.RecordingEvent{Message: &api.PlaybackMessage{
					Sender:   player,
					Message:  api.ClientEnvelope{Kind: api.KindJoin, Payload: []byte(`{"version":"build-42-abc","details":{"kind":"JoinAsPlayer","name":"alice"}}`)},
					Decision: &api.Decision{Kind: api.DecisionNewPlayerPosition, Position: &pos},
				}},
			},
			{
				SinceStart: 160 * time.Millisecond,
				Event: api.RecordingEvent{Message: &api.PlaybackMessage{
					Sender:  player,
					Message: api.ClientEnvelope{Kind: api.KindMove, Payload: []byte(`{"velocity":{"dx":2,"dy":0},"position":{"x":12,"y":34}}`)},
				}},
			},
			{
				SinceStart: 320 * time.Millisecond,
				Event:      api.RecordingEvent{Disconnect: &player},
			},
		},
	}
}

func TestWriteRead_Roundtrip(t *testing.T) {
	rec := sampleRecording()

	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		t.Fatal(err)
	}

	got, err := Read(&buf, rec.Version)
	if err != nil {
		t.Fatal(err)
	}
	if got.GameID != rec.GameID || got.Version != rec.Version {
		t.Errorf("заголовок разъехался: %+v", got)
	}
	if len(got.Entries) != len(rec.Entries) {
		t.Fatalf("Entries = %d, want %d", len(got.Entries), len(rec.Entries))
	}

	first := got.Entries[0]
	if first.Event.Message == nil || first.Event.Message.Decision == nil {
		t.Fatal("решение сервера потерялось при сериализации")
	}
	if *first.Event.Message.Decision.Position != (domain.Position{X: 12, Y: 34}) {
		t.Errorf("Decision.Position = %+v", *first.Event.Message.Decision.Position)
	}
	if got.Entries[1].SinceStart != 160*time.Millisecond {
		t.Errorf("SinceStart = %v", got.Entries[1].SinceStart)
	}

	last := got.Entries[2]
	if last.Event.Disconnect == nil || last.Event.Message != nil {
		t.Errorf("событие отключения разъехалось: %+v", last.Event)
	}
}

func TestRead_VersionMismatch(t *testing.T) {
	rec := sampleRecording()
	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		t.Fatal(err)
	}

	_, err := Read(&buf, "build-43-def")
	var mismatch *VersionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, ожидался VersionMismatchError", err)
	}
	if mismatch.Found != rec.Version || mismatch.Want != "build-43-def" {
		t.Errorf("mismatch = %+v", mismatch)
	}
}

func TestRead_EmptyWantSkipsVersionGate(t *testing.T) {
	rec := sampleRecording()
	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		t.Fatal(err)
	}

	got, err := Read(&buf, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != rec.Version {
		t.Errorf("Version = %q", got.Version)
	}
}

func TestRead_RejectsForeignFiles(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"пустой файл", ""},
		{"не JSON", "definitely not json\n"},
		{"чужой fileType", `{"fileType":"savegame","version":"v"}` + "\n"},
		{"битое событие", `{"fileType":"airlock replay","version":"v","gameId":"` + uuid.Nil.String() + `"}` + "\nnot an entry\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tc.input), ""); err == nil {
				t.Error("ожидалась ошибка")
			}
		})
	}
}

func TestService_SaveLoad(t *testing.T) {
	svc := NewService(t.TempDir())
	rec := sampleRecording()

	path, err := svc.Save(rec)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, ".airlock") {
		t.Errorf("неожиданное имя файла %q", path)
	}

	got, err := svc.Load(path, rec.Version)
	if err != nil {
		t.Fatal(err)
	}
	if got.GameID != rec.GameID || len(got.Entries) != len(rec.Entries) {
		t.Errorf("запись с диска не совпала: %+v", got)
	}
}
