package features

import "math"

// SchemaVersion identifies the column layout produced by Engineer.
// Any change to the columns or their encoding needs a new version so that
// stale artifacts are rejected on load.
const SchemaVersion = "hourly-v1"

var columns = []string{
	"hr_sin", "hr_cos", "mnth_sin", "mnth_cos",
	"yr", "holiday", "workingday", "weekday",
	"is_weekend", "is_rush_hour",
	"season_1", "season_2", "season_3", "season_4",
	"weather_1", "weather_2", "weather_3", "weather_4",
	"temp", "hum", "windspeed", "temp_feel", "temp_x_hum",
}

// Columns returns the engineered column names in vector order.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// NumColumns is the length of every engineered vector.
func NumColumns() int { return len(columns) }

var rushHours = map[int]bool{7: true, 8: true, 9: true, 17: true, 18: true, 19: true}

// Engineer produces the unscaled feature vector of r.
func Engineer(r Record) []float64 {
	v := make([]float64, 0, len(columns))

	hrAngle := 2 * math.Pi * float64(r.Hr) / 24
	mnthAngle := 2 * math.Pi * float64(r.Mnth) / 12
	v = append(v, math.Sin(hrAngle), math.Cos(hrAngle), math.Sin(mnthAngle), math.Cos(mnthAngle))

	v = append(v, float64(r.Yr), float64(r.Holiday), float64(r.Workingday), float64(r.Weekday))
	// is_weekend covers every non-working day, holidays included.
	v = append(v, flag(r.Workingday == 0), flag(rushHours[r.Hr]))

	for s := 1; s <= 4; s++ {
		v = append(v, flag(r.Season == s))
	}
	for w := 1; w <= 4; w++ {
		v = append(v, flag(r.Weathersit == w))
	}

	v = append(v, r.Temp, r.Hum, r.Windspeed, FeelTemp(r.Temp, r.Hum, r.Windspeed), r.Temp*r.Hum)
	return v
}

// FeelTemp estimates the normalized apparent temperature from the
// normalized temperature, humidity and wind speed of a record.
//
// Steadman's apparent temperature without the radiation term. The dataset
// scales temp by 41 degC, windspeed by 67 km/h and atemp as (t+16)/66, the
// result uses the atemp scale.
func FeelTemp(temp, hum, windspeed float64) float64 {
	t := temp * 41
	rh := hum * 100
	ws := windspeed * 67 / 3.6

	e := rh / 100 * 6.105 * math.Exp(17.27*t/(237.7+t))
	at := t + 0.33*e - 0.70*ws - 4
	return (at + 16) / 66
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
