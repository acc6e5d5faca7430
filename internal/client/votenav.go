package client

// Таблица голосования рисуется в две колонки, построчно:
//
//	0 1
//	2 3
//	4 ...
//
// Курсор живет только в UI: серверу уходит уже готовый Vote.
type voteCursor struct {
	highlighted bool
	index       int
}

type voteMove int

const (
	moveUp voteMove = iota
	moveDown
	moveLeft
	moveRight
)

func rowOf(i int) int { return i / 2 }
func colOf(i int) int { return i % 2 }

// move двигает подсветку. Из пустого состояния любое направление
// подсвечивает первую клетку. Вверх и вниз ходят по своей колонке,
// а если там клетки нет - на ближайшую строку в соседней. Влево и
// вправо работают только от соответствующего края.
func (c *voteCursor) move(dir voteMove, count int) {
	if count == 0 {
		c.clear()
		return
	}
	if !c.highlighted {
		c.highlighted = true
		c.index = 0
		return
	}
	if c.index >= count {
		// Список мог сжаться, пока курсор стоял на месте
		c.index = count - 1
	}

	switch dir {
	case moveUp:
		if c.index-2 >= 0 {
			c.index -= 2
		} else if c.index-1 >= 0 && rowOf(c.index-1) < rowOf(c.index) {
			c.index--
		}
	case moveDown:
		if c.index+2 < count {
			c.index += 2
		} else if c.index+1 < count && rowOf(c.index+1) > rowOf(c.index) {
			c.index++
		}
	case moveLeft:
		if colOf(c.index) == 1 {
			c.index--
		}
	case moveRight:
		if colOf(c.index) == 0 && c.index+1 < count {
			c.index++
		}
	}
}

func (c *voteCursor) clear() {
	c.highlighted = false
	c.index = 0
}
