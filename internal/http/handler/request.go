package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/your-org/bikeshare-demand/internal/features"
)

// defaultYear is used when a prediction request omits yr. It stands for the
// second (higher demand) year of the dataset.
const defaultYear = 1

const maxBodyBytes = 1 << 16

// requestError is a malformed prediction request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

// predictRequest is a decoded POST /api/predict body.
type predictRequest struct {
	Record features.Record
	Actual *float64
}

// decodePredictRequest accepts numbers, booleans and numeric strings for
// every field. Every input column except yr is required.
func decodePredictRequest(r io.Reader) (predictRequest, error) {
	raw, err := io.ReadAll(r)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return predictRequest{}, &requestError{msg: "Request body too large"}
	}
	if err != nil {
		return predictRequest{}, fmt.Errorf("failed to read body: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil || body == nil {
		return predictRequest{}, &requestError{msg: "Request body must be a JSON object"}
	}
	// exactly one value per body
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return predictRequest{}, &requestError{msg: "Request body must be a JSON object"}
	}

	values := make(map[string]float64, len(features.InputColumns()))
	for _, name := range features.InputColumns() {
		v, ok := body[name]
		if !ok || v == nil {
			if name == "yr" {
				values[name] = defaultYear
				continue
			}
			return predictRequest{}, &requestError{msg: "Missing field: " + name}
		}
		f, err := toFloat(v)
		if err != nil {
			return predictRequest{}, &requestError{msg: fmt.Sprintf("Invalid field: %s: %v", name, err)}
		}
		values[name] = f
	}

	rec, err := features.RecordFromValues(func(name string) float64 { return values[name] })
	if err != nil {
		return predictRequest{}, err
	}

	out := predictRequest{Record: rec}
	if v, ok := body["actual"]; ok && v != nil {
		a, err := toFloat(v)
		if err != nil {
			return predictRequest{}, &requestError{msg: fmt.Sprintf("Invalid field: actual: %v", err)}
		}
		out.Actual = &a
	}
	return out, nil
}

var errNotNumeric = errors.New("not a number")

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, errNotNumeric
		}
		return f, nil
	}
	return 0, errNotNumeric
}
