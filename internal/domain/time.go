package domain

import (
	"encoding/json/v2"
	"strconv"
	"time"
)

// FlexTime is a time value that tolerates the timestamp formats other clients
// have written into user documents over time:
//   - RFC3339 / RFC3339Nano strings
//   - epoch milliseconds as a number
//   - epoch milliseconds as a string
//
// A value that parses as none of these becomes the zero time, which compares
// as the oldest possible value. Merge comparisons then let the well-formed
// side win instead of failing the whole sync.
type FlexTime struct {
	time.Time
}

// Now returns the current time as a FlexTime.
func Now() FlexTime {
	return FlexTime{Time: time.Now().UTC()}
}

// At wraps a time.Time.
func At(t time.Time) FlexTime {
	return FlexTime{Time: t}
}

// UnmarshalJSON parses the supported formats and never returns an error for
// malformed timestamps.
func (ft *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			ft.Time = t
			return nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			ft.Time = t
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			ft.Time = time.UnixMilli(ms)
			return nil
		}
		ft.Time = time.Time{}
		return nil
	}

	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		ft.Time = time.UnixMilli(ms)
		return nil
	}

	var msFloat float64
	if err := json.Unmarshal(data, &msFloat); err == nil {
		ft.Time = time.UnixMilli(int64(msFloat))
		return nil
	}

	ft.Time = time.Time{}
	return nil
}

// MarshalJSON writes RFC3339 so every document we produce is well-formed.
func (ft FlexTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Format(time.RFC3339))
}

// After reports whether ft is strictly later than other.
// Zero (malformed) times are never later than anything.
func (ft FlexTime) After(other FlexTime) bool {
	return ft.Time.After(other.Time)
}
