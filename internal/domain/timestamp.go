package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// isoLayouts son los formatos ISO que se han visto en la API y en trades.jsonl antiguos.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// maxUnixMillis es 9999-12-31T23:59:59.999Z. Cualquier número mayor (en
// segundos o en ms) no produce un año de 4 cifras.
const maxUnixMillis = 253402300799999

// ParseTimestamp interpreta s como Unix (segundos o milisegundos, entero o
// decimal) o como fecha ISO. ok=false si no es parseable o si el instante
// cae fuera de los años 1..9999.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		if sec > maxUnixMillis || sec < -maxUnixMillis {
			return time.Time{}, false
		}
		if sec > 1e12 {
			return inRange(time.UnixMilli(sec).UTC())
		}
		return inRange(time.Unix(sec, 0).UTC())
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		// ParseFloat acepta "NaN" e "Inf"; int64(NaN) no está definido.
		if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > maxUnixMillis {
			return time.Time{}, false
		}
		if math.Abs(f) > 1e12 {
			return inRange(time.UnixMilli(int64(f)).UTC())
		}
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return inRange(time.Unix(sec, nsec).UTC())
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// inRange descarta instantes que RFC 3339 no puede representar.
func inRange(t time.Time) (time.Time, bool) {
	if y := t.Year(); y < 1 || y > 9999 {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp es el formato ISO-8601 canónico de todas las salidas.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// DateKey es la fecha de calendario (YYYY-MM-DD) de t en loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01-02")
}
