package client

import "airlock-server/pkg/api"

// NopTx - заглушка отправки для воспроизведения: зеркало смотрит
// запись, ему некому и незачем писать.
type NopTx struct{}

func (NopTx) Send(api.ClientMessage) error { return nil }
