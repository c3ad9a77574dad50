package timeutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLike дата во входящем JSON в любом поддерживаемом формате
type DateLike struct {
	Time  time.Time
	Valid bool
}

func (d *DateLike) UnmarshalJSON(raw []byte) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		*d = DateLike{}
		return nil
	}
	t, ok := ToInstant(json.RawMessage(raw))
	if !ok {
		return fmt.Errorf("unrecognized date value %s", raw)
	}
	*d = DateLike{Time: t, Valid: true}
	return nil
}

func (d DateLike) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time)
}
