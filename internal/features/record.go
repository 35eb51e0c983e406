// Package features turns hourly rental records into model-ready vectors.
package features

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Record is one hour of weather and calendar inputs, without the target.
type Record struct {
	Season     int     `json:"season" validate:"min=1,max=4"`
	Yr         int     `json:"yr" validate:"min=0,max=1"`
	Mnth       int     `json:"mnth" validate:"min=1,max=12"`
	Hr         int     `json:"hr" validate:"min=0,max=23"`
	Holiday    int     `json:"holiday" validate:"min=0,max=1"`
	Weekday    int     `json:"weekday" validate:"min=0,max=6"`
	Workingday int     `json:"workingday" validate:"min=0,max=1"`
	Weathersit int     `json:"weathersit" validate:"min=1,max=4"`
	Temp       float64 `json:"temp" validate:"min=0,max=1"`
	Hum        float64 `json:"hum" validate:"min=0,max=1"`
	Windspeed  float64 `json:"windspeed" validate:"min=0,max=1"`
}

// SchemaError reports a record field outside its allowed domain.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

type inputColumn struct {
	name        string
	categorical bool
	lo, hi      float64
}

// inputColumns lists the raw inputs in their canonical order.
var inputColumns = []inputColumn{
	{name: "season", categorical: true, lo: 1, hi: 4},
	{name: "yr", categorical: true, lo: 0, hi: 1},
	{name: "mnth", categorical: true, lo: 1, hi: 12},
	{name: "hr", categorical: true, lo: 0, hi: 23},
	{name: "holiday", categorical: true, lo: 0, hi: 1},
	{name: "weekday", categorical: true, lo: 0, hi: 6},
	{name: "workingday", categorical: true, lo: 0, hi: 1},
	{name: "weathersit", categorical: true, lo: 1, hi: 4},
	{name: "temp", lo: 0, hi: 1},
	{name: "hum", lo: 0, hi: 1},
	{name: "windspeed", lo: 0, hi: 1},
}

// InputColumns returns the raw input column names in canonical order.
func InputColumns() []string {
	names := make([]string, len(inputColumns))
	for i, c := range inputColumns {
		names[i] = c.name
	}
	return names
}

// IsCategorical reports whether the named input holds integer codes.
func IsCategorical(name string) bool {
	for _, c := range inputColumns {
		if c.name == name {
			return c.categorical
		}
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field against its categorical or numeric range.
func Validate(r Record) error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"temp", r.Temp}, {"hum", r.Hum}, {"windspeed", r.Windspeed}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &SchemaError{Field: f.name, Reason: "must be a finite number"}
		}
	}

	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		switch fe.Tag() {
		case "min":
			reason = "must be >= " + fe.Param()
		case "max":
			reason = "must be <= " + fe.Param()
		}
		return &SchemaError{Field: fe.Field(), Reason: reason}
	}
	return err
}

// Value returns the named input as a float, NaN for an unknown name.
func (r Record) Value(name string) float64 {
	switch name {
	case "season":
		return float64(r.Season)
	case "yr":
		return float64(r.Yr)
	case "mnth":
		return float64(r.Mnth)
	case "hr":
		return float64(r.Hr)
	case "holiday":
		return float64(r.Holiday)
	case "weekday":
		return float64(r.Weekday)
	case "workingday":
		return float64(r.Workingday)
	case "weathersit":
		return float64(r.Weathersit)
	case "temp":
		return r.Temp
	case "hum":
		return r.Hum
	case "windspeed":
		return r.Windspeed
	}
	return math.NaN()
}

func (r *Record) set(name string, v float64) {
	switch name {
	case "season":
		r.Season = int(v)
	case "yr":
		r.Yr = int(v)
	case "mnth":
		r.Mnth = int(v)
	case "hr":
		r.Hr = int(v)
	case "holiday":
		r.Holiday = int(v)
	case "weekday":
		r.Weekday = int(v)
	case "workingday":
		r.Workingday = int(v)
	case "weathersit":
		r.Weathersit = int(v)
	case "temp":
		r.Temp = v
	case "hum":
		r.Hum = v
	case "windspeed":
		r.Windspeed = v
	}
}

// RecordFromValues builds a validated Record from raw column values.
// Categorical inputs must be whole numbers.
func RecordFromValues(get func(name string) float64) (Record, error) {
	var r Record
	for _, c := range inputColumns {
		v := get(c.name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Record{}, &SchemaError{Field: c.name, Reason: "must be a finite number"}
		}
		if c.categorical && v != math.Trunc(v) {
			return Record{}, &SchemaError{Field: c.name, Reason: "must be an integer"}
		}
		r.set(c.name, v)
	}
	if err := Validate(r); err != nil {
		return Record{}, err
	}
	return r, nil
}
