package api

import "fmt"

// Validator реализуют сообщения, у которых есть что проверить до
// попадания в логику. Диспетчер зовет Validate автоматически.
type Validator interface {
	Validate() error
}

const maxNameLength = 32

func (m JoinMessage) Validate() error {
	switch m.Details.Kind {
	case JoinAsPlayer, JoinAsSpectator:
	default:
		return fmt.Errorf("unknown join kind %q", m.Details.Kind)
	}
	if m.Details.PreferredColor != "" && !m.Details.PreferredColor.Valid() {
		return fmt.Errorf("unknown color %q", m.Details.PreferredColor)
	}
	if len(m.Details.Name) > maxNameLength {
		return fmt.Errorf("name longer than %d characters", maxNameLength)
	}
	return nil
}

func (m KilledMessage) Validate() error {
	if !m.Body.Color.Valid() {
		return fmt.Errorf("unknown color %q", m.Body.Color)
	}
	return nil
}

func (m ReportBodyMessage) Validate() error {
	if !m.Color.Valid() {
		return fmt.Errorf("unknown color %q", m.Color)
	}
	return nil
}

func (m FinishedTaskMessage) Validate() error {
	if m.Index < 0 {
		return fmt.Errorf("negative task index %d", m.Index)
	}
	return nil
}
