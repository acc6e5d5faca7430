package domain

import "time"

// TickUnit - базовый шаг симуляции. Скорости заданы в единицах за тик,
// поэтому интеграция движения не зависит от частоты кадров.
const TickUnit = 16 * time.Millisecond

// Settings - параметры партии. Пока они глобальные и не настраиваются
// из лобби, но живут отдельной структурой, чтобы тесты могли их крутить.
type Settings struct {
	Speed          float64       // единиц за тик
	KillDistance   float64
	TaskDistance   float64
	ReportDistance float64
	VotingTime     time.Duration // длительность дневной фазы
	OutcomeTime    time.Duration // показ вердикта собрания
	CrewVision     float64       // радиус обзора ночью
	ImpostorVision float64
	TasksPerPlayer int
}

func DefaultSettings() Settings {
	return Settings{
		Speed:          2.0,
		KillDistance:   64.0,
		TaskDistance:   32.0,
		ReportDistance: 96.0,
		VotingTime:     120 * time.Second,
		OutcomeTime:    5 * time.Second,
		CrewVision:     128.0,
		ImpostorVision: 192.0,
		TasksPerPlayer: 6,
	}
}
