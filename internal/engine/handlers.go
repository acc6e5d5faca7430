package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"airlock-server/internal/domain"
	"airlock-server/pkg/api"
	"airlock-server/pkg/logger"
)

// dispatchContext передает хендлеру отправителя и контекст решений.
type dispatchContext struct {
	sender    uuid.UUID
	decisions *decisionContext
}

// handlerFunc - контракт для любого клиентского сообщения.
type handlerFunc func(ctx dispatchContext, payload json.RawMessage) error

// withPayload берет "чистый" хендлер и превращает его в стандартный
// handlerFunc. Она берет на себя Unmarshal и Validate.
func withPayload[T any](handler func(ctx dispatchContext, payload T) error) handlerFunc {
	return func(ctx dispatchContext, raw json.RawMessage) error {
		var payload T

		// 1. Распаковка JSON
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("invalid payload format: %w", err)
			}
		}

		// 2. Автоматическая валидация
		// Проверяем, реализует ли структура T интерфейс Validator
		if v, ok := any(payload).(api.Validator); ok {
			if err := v.Validate(); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
		}

		// 3. Вызов чистой логики
		return handler(ctx, payload)
	}
}

// handleJoin - рукопожатие. Версии обязаны совпасть; дальше пытаемся
// посадить игрока за стол, а если мест (или лобби) нет - он зритель.
// Welcome и снапшот уходят в любом исходе.
func (s *GameServer) handleJoin(ctx dispatchContext, msg api.JoinMessage) error {
	if msg.Version != s.Version {
		return fmt.Errorf("version mismatch: client %q, server %q", msg.Version, s.Version)
	}

	joined := false
	if msg.Details.Kind == api.JoinAsPlayer && s.State.Status.Kind == domain.StatusLobby {
		if _, known := s.State.Players[ctx.sender]; known {
			// Повторный Join известного игрока: молча подтверждаем
			joined = true
		} else {
			color, ok := s.allocateColor(msg.Details.PreferredColor)
			if ok {
				pos, err := s.decideStartPosition(ctx.decisions)
				if err != nil {
					return err
				}
				s.State.Players[ctx.sender] = domain.NewPlayer(ctx.sender, msg.Details.Name, color, pos)
				joined = true
			} else {
				logger.Log.WithField("sender", ctx.sender).Info("All colors taken, joining as spectator")
			}
		}
	}
	if !joined {
		s.spectators[ctx.sender] = true
	}

	s.broadcaster.SendTo(ctx.sender, &api.WelcomeMessage{ConnectionID: ctx.sender})
	s.broadcastSnapshot()
	return nil
}

// allocateColor отдает предпочтенный цвет, если он свободен, иначе
// первый свободный из палитры.
func (s *GameServer) allocateColor(preferred domain.Color) (domain.Color, bool) {
	taken := make(map[domain.Color]bool, len(s.State.Players))
	for _, p := range s.State.Players {
		taken[p.Color] = true
	}
	if preferred.Valid() && !taken[preferred] {
		return preferred, true
	}
	return domain.FirstFreeColor(taken)
}

// handleStartGame - розыгрыш ролей и заданий, старт первой ночи.
func (s *GameServer) handleStartGame(ctx dispatchContext, _ api.StartGameMessage) error {
	if s.State.Status.Kind != domain.StatusLobby {
		return fmt.Errorf("player %s tried to start a game from state %s", ctx.sender, s.State.Status.Kind)
	}
	if len(s.State.Players) == 0 {
		return fmt.Errorf("can't start a game with no players")
	}

	info, err := s.decideStartInfo(ctx.decisions)
	if err != nil {
		return err
	}
	if err := s.State.NoteGameStarted(info); err != nil {
		return err
	}
	s.broadcastSnapshot()

	// Объявляем каждому его роль. Косметика, на state не влияет.
	for id, start := range info.Assignments {
		text := "You're a crewmate. Finish your tasks, and watch your back."
		if start.Team == domain.TeamImpostors {
			text = "You're an impostor. Kill the crew, and don't get caught."
		}
		s.broadcaster.SendTo(id, &api.DisplayMessage{
			Message:  text,
			Duration: 10 * time.Second,
		})
	}
	return nil
}

// handleMove - клиент прислал новую скорость и предсказанную позицию.
// Позиции верим (клиентское предсказание), но в пределах карты.
func (s *GameServer) handleMove(ctx dispatchContext, msg api.MoveMessage) error {
	if p, ok := s.State.Players[ctx.sender]; ok {
		p.Velocity = msg.Velocity
		p.Position = s.State.Map.Clamp(msg.Position)
	}
	s.broadcastSnapshot()
	return nil
}

// handleKilled - клиент импостора отчитался об убийстве.
func (s *GameServer) handleKilled(ctx dispatchContext, msg api.KilledMessage) error {
	if err := s.State.NoteDeath(msg.Body); err != nil {
		return err
	}
	s.broadcastSnapshot()
	return nil
}

func (s *GameServer) handleFinishedTask(ctx dispatchContext, msg api.FinishedTaskMessage) error {
	if err := s.State.NoteFinishedTask(ctx.sender, msg.Index); err != nil {
		return err
	}
	s.broadcastSnapshot()
	return nil
}

func (s *GameServer) handleVote(ctx dispatchContext, msg api.VoteMessage) error {
	if err := s.State.NoteVote(ctx.sender, msg.Target); err != nil {
		return err
	}
	s.broadcastSnapshot()
	return nil
}

// handleReportBody - игрок нашел тело. Проверяем, что репортер жив и
// действительно стоит рядом с телом этого цвета, и созываем собрание.
func (s *GameServer) handleReportBody(ctx dispatchContext, msg api.ReportBodyMessage) error {
	reporter, ok := s.State.Players[ctx.sender]
	if !ok || reporter.Dead {
		return fmt.Errorf("player %s can't report a body", ctx.sender)
	}
	if s.State.Status.Kind != domain.StatusNight {
		return fmt.Errorf("got a body report while status is %s", s.State.Status.Kind)
	}

	found := false
	for _, body := range s.State.Bodies {
		if body.Color == msg.Color && reporter.Position.Distance(body.Position) <= s.State.Settings.ReportDistance {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no %s body within report distance of %s", msg.Color, ctx.sender)
	}

	s.State.NoteBodyReported()
	s.broadcastSnapshot()
	return nil
}
