package domain

// Color - цвет игрока. Ровно один живой игрок может носить цвет в каждый
// момент времени, поэтому палитра ограничивает размер сессии семью игроками.
type Color string

const (
	ColorRed    Color = "Red"
	ColorPink   Color = "Pink"
	ColorBlue   Color = "Blue"
	ColorOrange Color = "Orange"
	ColorWhite  Color = "White"
	ColorBlack  Color = "Black"
	ColorGreen  Color = "Green"
)

// Palette возвращает все цвета в каноническом порядке.
// ВАЖНО: порядок фиксирован. От него зависит выбор замены при коллизии,
// а значит и воспроизводимость записанных партий.
var palette = [...]Color{
	ColorRed,
	ColorPink,
	ColorBlue,
	ColorOrange,
	ColorWhite,
	ColorBlack,
	ColorGreen,
}

func Palette() []Color {
	return palette[:]
}

// Valid проверяет, что цвет входит в палитру (защита от мусора с клиента).
func (c Color) Valid() bool {
	for _, p := range palette {
		if p == c {
			return true
		}
	}
	return false
}

// Hex возвращает отображаемое значение цвета.
func (c Color) Hex() string {
	switch c {
	case ColorRed:
		return "#ff0102"
	case ColorPink:
		return "#ff69b4"
	case ColorBlue:
		return "#1601ff"
	case ColorOrange:
		return "#ffa502"
	case ColorWhite:
		return "#ffffff"
	case ColorBlack:
		return "#000000"
	case ColorGreen:
		return "#01ff02"
	}
	return "#888888"
}

// FirstFreeColor выбирает первый незанятый цвет в каноническом порядке.
// Возвращает false, если вся палитра разобрана.
func FirstFreeColor(taken map[Color]bool) (Color, bool) {
	for _, c := range palette {
		if !taken[c] {
			return c, true
		}
	}
	return "", false
}
