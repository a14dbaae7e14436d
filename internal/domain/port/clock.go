package port

import "time"

// Clock источник времени для меток и расчёта паузы между алертами
type Clock interface {
	Now() time.Time
}
