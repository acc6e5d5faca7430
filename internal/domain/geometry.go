package domain

import "math"

// Position - точка на карте в игровых единицах.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance возвращает евклидово расстояние до другой точки.
func (p Position) Distance(other Position) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Velocity - скорость игрока в единицах за тик (16ms).
type Velocity struct {
	Dx float64 `json:"dx"`
	Dy float64 `json:"dy"`
}

// IsZero сообщает, стоит ли игрок на месте.
func (v Velocity) IsZero() bool {
	return v.Dx == 0 && v.Dy == 0
}

// Map описывает границы игрового поля. Стен нет, только края.
type Map struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FirstMap возвращает единственную (пока) карту.
func FirstMap() Map {
	return Map{Width: 1024, Height: 768}
}

// Clamp прижимает точку к границам карты.
func (m Map) Clamp(p Position) Position {
	return Position{
		X: math.Min(math.Max(p.X, 0), m.Width),
		Y: math.Min(math.Max(p.Y, 0), m.Height),
	}
}
