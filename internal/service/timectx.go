package service

import (
	"fmt"
	"time"
)

const DefaultUTCOffsetHours = -5

var (
	spanishWeekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	spanishMonths   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

// TimeContext renders the user's local wall-clock time for prompts.
// It uses a fixed offset so no timezone database is needed at runtime.
type TimeContext struct {
	zone *time.Location
	now  func() time.Time
}

func NewTimeContext(offsetHours int) *TimeContext {
	return NewTimeContextWithClock(offsetHours, time.Now)
}

// NewTimeContextWithClock creates a TimeContext with a custom clock (for testing)
func NewTimeContextWithClock(offsetHours int, now func() time.Time) *TimeContext {
	return &TimeContext{
		zone: time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600),
		now:  now,
	}
}

// LocalNow returns e.g. "lunes 19 de octubre del 2026, 03:04 PM (Hora Perú)".
func (t *TimeContext) LocalNow() string {
	local := t.now().In(t.zone)
	return fmt.Sprintf("%s %02d de %s del %d, %s (Hora Perú)",
		spanishWeekdays[local.Weekday()],
		local.Day(),
		spanishMonths[local.Month()-1],
		local.Year(),
		local.Format("03:04 PM"),
	)
}
