// Package timeutil приводит разнородные представления дат к time.Time.
//
// Данные в хранилище и во входящих запросах встречаются в разных форматах:
// нативные даты, ISO строки, unix epoch (секунды или миллисекунды), обёртки
// вида {"$date": ...}. ToInstant никогда не паникует; вызывающий код,
// получив ok=false, подставляет безопасное значение через OrNow.
package timeutil

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// epochMillisThreshold значения больше считаются миллисекундами
const epochMillisThreshold = 1e12

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ToInstant нормализует значение в time.Time. ok=false для нераспознанного ввода.
func ToInstant(v any) (t time.Time, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t, ok = time.Time{}, false
		}
	}()

	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	case pgtype.Timestamptz:
		if !x.Valid || x.InfinityModifier != pgtype.Finite {
			return time.Time{}, false
		}
		return x.Time, true
	case pgtype.Timestamp:
		if !x.Valid || x.InfinityModifier != pgtype.Finite {
			return time.Time{}, false
		}
		return x.Time, true
	case pgtype.Date:
		if !x.Valid || x.InfinityModifier != pgtype.Finite {
			return time.Time{}, false
		}
		return x.Time, true
	case string:
		return parseString(x)
	case *string:
		if x == nil {
			return time.Time{}, false
		}
		return parseString(*x)
	case json.Number:
		return parseString(x.String())
	case int:
		return fromEpoch(float64(x))
	case int32:
		return fromEpoch(float64(x))
	case int64:
		return fromEpoch(float64(x))
	case uint32:
		return fromEpoch(float64(x))
	case uint64:
		return fromEpoch(float64(x))
	case float32:
		return fromEpoch(float64(x))
	case float64:
		return fromEpoch(x)
	case map[string]any:
		return fromWrapped(x)
	case map[string]string:
		if d, found := x["$date"]; found {
			return parseString(d)
		}
		return time.Time{}, false
	case json.RawMessage:
		return parseJSON(x)
	case []byte:
		return parseJSON(x)
	default:
		return time.Time{}, false
	}
}

// OrNow возвращает нормализованное значение или now, если его не удалось разобрать.
// Это осознанная политика для повреждённых данных: сессия с нераспознанной датой
// обрабатывается так, будто момент наступил сейчас, а обход не прерывается.
func OrNow(v any, now time.Time) time.Time {
	if t, ok := ToInstant(v); ok {
		return t
	}
	return now
}

func parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if s[0] == '{' || s[0] == '"' {
		return parseJSON([]byte(s))
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}

	return time.Time{}, false
}

func parseJSON(raw []byte) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return time.Time{}, false
	}

	// строка внутри JSON не должна снова разбираться как JSON
	if s, ok := v.(string); ok {
		if strings.HasPrefix(strings.TrimSpace(s), "{") {
			return time.Time{}, false
		}
		return parseString(s)
	}
	return ToInstant(v)
}

// fromWrapped разбирает обёртки {"$date": ...} и {"$numberLong": "..."}
func fromWrapped(m map[string]any) (time.Time, bool) {
	if d, found := m["$date"]; found {
		if _, nested := d.(map[string]any); nested {
			return fromWrapped(d.(map[string]any))
		}
		return ToInstant(d)
	}
	if n, found := m["$numberLong"]; found {
		return ToInstant(n)
	}
	return time.Time{}, false
}

func fromEpoch(v float64) (time.Time, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return time.Time{}, false
	}
	if v >= epochMillisThreshold {
		ms := int64(v)
		return time.UnixMilli(ms).UTC(), true
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
