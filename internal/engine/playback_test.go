package engine

import (
	"testing"
	"time"

	"airlock-server/internal/domain"
	"airlock-server/pkg/api"
)

// Helper: короткая записанная партия - три игрока, старт, убийство.
func recordShortGame(t *testing.T) api.RecordedGame {
	t.Helper()

	env := newServerEnv(t)
	a := env.join("a", "")
	b := env.join("b", "")
	env.join("c", "")

	env.send(a, api.StartGameMessage{})
	env.srv.Simulate(20 * domain.TickUnit)

	victim := env.srv.State.Players[b]
	env.send(a, api.KilledMessage{Body: domain.DeadBody{Color: victim.Color, Position: victim.Position}})
	env.srv.Simulate(domain.TickUnit)

	return env.srv.Recording()
}

func TestPlayback_Duration(t *testing.T) {
	rec := recordShortGame(t)
	want := rec.Entries[len(rec.Entries)-1].SinceStart
	if got := NewPlaybackServer(rec).Duration(); got != want {
		t.Errorf("Duration = %v, want %v", got, want)
	}

	if got := NewPlaybackServer(api.RecordedGame{}).Duration(); got != 0 {
		t.Errorf("Duration of an empty recording = %v, want 0", got)
	}
}

func TestPlayback_PauseBlocksProgress(t *testing.T) {
	rec := recordShortGame(t)
	p := NewPlaybackServer(rec)

	p.TogglePause()
	if !p.Paused() {
		t.Fatal("TogglePause did not pause")
	}

	done, err := p.Simulate(domain.TickUnit, nopObserver{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if !done || p.CurrentTime() != 0 {
		t.Errorf("paused playback advanced to %v", p.CurrentTime())
	}

	// force прокручивает даже на паузе (так работает перемотка)
	if _, err := p.Simulate(domain.TickUnit, nopObserver{}, true); err != nil {
		t.Fatal(err)
	}
	if p.CurrentTime() != domain.TickUnit {
		t.Errorf("forced simulate did not advance: %v", p.CurrentTime())
	}

	p.TogglePause()
	if p.Paused() {
		t.Error("TogglePause did not resume")
	}
}

func TestPlayback_IsDeterministic(t *testing.T) {
	rec := recordShortGame(t)

	run := func() *GameState {
		p := NewPlaybackServer(rec)
		for i := 0; i < 30; i++ {
			if done, err := p.Simulate(domain.TickUnit, nopObserver{}, true); err != nil {
				t.Fatalf("playback: %v", err)
			} else if done {
				break
			}
		}
		return p.State()
	}

	first := run()
	second := run()

	if first.Status.Kind != second.Status.Kind {
		t.Fatalf("status diverged between runs: %v vs %v", first.Status.Kind, second.Status.Kind)
	}
	for id, p1 := range first.Players {
		p2, ok := second.Players[id]
		if !ok {
			t.Fatalf("player %s missing in second run", id)
		}
		if p1.Position != p2.Position || p1.Impostor != p2.Impostor || p1.Dead != p2.Dead {
			t.Errorf("player %s diverged between runs", id)
		}
	}
}

func TestPlayback_SkipToRestartsOnBackwardSeek(t *testing.T) {
	rec := recordShortGame(t)
	p := NewPlaybackServer(rec)

	if err := p.SkipTo(300*time.Millisecond, nopObserver{}); err != nil {
		t.Fatal(err)
	}
	if p.CurrentTime() < 300*time.Millisecond {
		t.Fatalf("SkipTo stopped at %v", p.CurrentTime())
	}
	forward := p.State().PlayersSorted()

	// Назад: проигрыватель начинает сначала и догоняет
	if err := p.SkipTo(100*time.Millisecond, nopObserver{}); err != nil {
		t.Fatal(err)
	}
	if p.CurrentTime() < 100*time.Millisecond || p.CurrentTime() >= 300*time.Millisecond {
		t.Errorf("backward SkipTo landed at %v", p.CurrentTime())
	}

	// И вперед к той же отметке - состояние совпадает
	if err := p.SkipTo(300*time.Millisecond, nopObserver{}); err != nil {
		t.Fatal(err)
	}
	again := p.State().PlayersSorted()
	if len(forward) != len(again) {
		t.Fatalf("player count diverged after seek: %d vs %d", len(forward), len(again))
	}
	for i := range forward {
		if forward[i].Position != again[i].Position || forward[i].Dead != again[i].Dead {
			t.Errorf("player %s diverged after seek", forward[i].UUID)
		}
	}
}
