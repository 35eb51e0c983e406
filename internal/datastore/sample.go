package datastore

import (
	"time"

	"github.com/your-org/bikeshare-demand/internal/features"
)

// Sample は学習・評価に使う1時間分のレコードと実測レンタル数です。
type Sample struct {
	features.Record
	Dteday string  `json:"dteday,omitempty"`
	Cnt    float64 `json:"cnt"`
}

// Date parses Dteday. ok is false when the sample carries no day.
func (s Sample) Date() (t time.Time, ok bool) {
	if s.Dteday == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s.Dteday)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
