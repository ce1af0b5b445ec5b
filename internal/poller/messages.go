package poller

import (
	"errors"
	"fmt"

	"hwbot/internal/homework"
)

const (
	MsgNoPending     = "Отсутствие в ответе новых статусов"
	MsgTransport     = "Нет возможности получить информацию с сервера"
	MsgBadStatus     = "Эндпоинт API недоступен. Код ответа: %d"
	MsgMalformed     = "Сбой в работе программы: некорректный ответ API"
	MsgUnknownStatus = "Недокументированный статус домашней работы: %s"
	MsgFailure       = "Сбой в работе программы: %v"
)

// messageFor renders the chat text for a failed or quiet cycle.
// Equal kinds with equal details render equal text, which is what the gate
// deduplicates on.
func messageFor(kind homework.Kind, err error) string {
	switch kind {
	case homework.KindTransport:
		return MsgTransport
	case homework.KindBadStatus:
		var bs *homework.BadStatusError
		if errors.As(err, &bs) {
			return fmt.Sprintf(MsgBadStatus, bs.Code)
		}
		return MsgTransport
	case homework.KindMalformed:
		return MsgMalformed
	case homework.KindNoPending:
		return MsgNoPending
	case homework.KindUnknownStatus:
		var us *homework.UnknownStatusError
		if errors.As(err, &us) {
			return fmt.Sprintf(MsgUnknownStatus, us.Status)
		}
		return fmt.Sprintf(MsgFailure, err)
	default:
		return fmt.Sprintf(MsgFailure, err)
	}
}
