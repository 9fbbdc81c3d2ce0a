package booking

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// DefaultDepartureTime is used when no usable departure or return time is configured.
const DefaultDepartureTime = "09:00"

// TimeOption is a selectable clock time.
type TimeOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// DepartureTime is the dashboard's departure_time field. The backend sends
// either a single clock string or a list of options.
type DepartureTime struct {
	single  string
	options []TimeOption
	list    bool
}

// SingleDeparture holds one configured time.
func SingleDeparture(v string) DepartureTime {
	return DepartureTime{single: v}
}

// DepartureOptions holds a list of configured times.
func DepartureOptions(opts ...TimeOption) DepartureTime {
	return DepartureTime{options: opts, list: true}
}

// Options returns the configured times as options. A single time becomes a
// one-element list; blank entries are dropped.
func (d DepartureTime) Options() []TimeOption {
	if !d.list {
		if strings.TrimSpace(d.single) == "" {
			return nil
		}
		return []TimeOption{{Label: d.single, Value: d.single}}
	}
	out := make([]TimeOption, 0, len(d.options))
	for _, o := range d.options {
		if strings.TrimSpace(o.Value) == "" {
			continue
		}
		if o.Label == "" {
			o.Label = o.Value
		}
		out = append(out, o)
	}
	return out
}

// Resolve returns the departure time to submit: the single value, or the
// first option's value. Anything absent or not a clock time yields
// DefaultDepartureTime.
func (d DepartureTime) Resolve() string {
	v := d.single
	if d.list {
		if len(d.options) == 0 {
			return DefaultDepartureTime
		}
		v = d.options[0].Value
	}
	if clock, ok := NormalizeClock(v); ok {
		return clock
	}
	return DefaultDepartureTime
}

// UnmarshalJSON accepts a string, a list of strings or a list of
// {label, value} objects. Any other shape decodes to the zero value.
func (d *DepartureTime) UnmarshalJSON(data []byte) error {
	*d = DepartureTime{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = SingleDeparture(s)
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	opts := make([]TimeOption, 0, len(raw))
	for _, item := range raw {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			opts = append(opts, TimeOption{Label: str, Value: str})
			continue
		}
		var opt TimeOption
		if err := json.Unmarshal(item, &opt); err == nil {
			opts = append(opts, opt)
		}
	}
	*d = DepartureOptions(opts...)
	return nil
}

// MarshalJSON writes the field back in the shape it was read.
func (d DepartureTime) MarshalJSON() ([]byte, error) {
	if d.list {
		if d.options == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(d.options)
	}
	return json.Marshal(d.single)
}

var clockLayouts = []string{"15:04", "15:04:05", "15:04:05.000"}

// NormalizeClock parses a clock time and renders it as HH:MM.
func NormalizeClock(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), true
		}
	}
	return "", false
}
