// Package experiment runs repeated optimization trials and records their
// results.
package experiment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/copyleftdev/optilab/internal/optimization"
)

// Metadata describes how an experiment was run.
type Metadata struct {
	ID                       string         `json:"id"`
	MethodName               string         `json:"method_name"`
	MethodHyperparameters    map[string]any `json:"method_hyperparameters"`
	MetamodelName            string         `json:"metamodel_name"`
	MetamodelHyperparameters map[string]any `json:"metamodel_hyperparameters"`
	BenchmarkName            string         `json:"benchmark_name"`
	TimeBegin                string         `json:"time_begin,omitempty"`
	TimeEnd                  string         `json:"time_end,omitempty"`
}

// BeginNow sets the beginning timestamp to the current time.
func (m *Metadata) BeginNow() { m.TimeBegin = time.Now().Format(time.RFC3339) }

// EndNow sets the ending timestamp to the current time.
func (m *Metadata) EndNow() { m.TimeEnd = time.Now().Format(time.RFC3339) }

// Series holds the error logs of every trial of one method on one problem
// dimensionality.
type Series struct {
	Name string      `json:"name"`
	Dim  int         `json:"dim"`
	Logs [][]float64 `json:"logs"`
}

// Results is the record of one experiment.
type Results struct {
	Metadata Metadata `json:"metadata"`
	Data     []Series `json:"data"`
}

// NewResults creates an empty record. A missing ID is generated and a missing
// beginning timestamp is set to now.
func NewResults(md Metadata) *Results {
	if md.ID == "" {
		md.ID = uuid.NewString()
	}
	if md.TimeBegin == "" {
		md.BeginNow()
	}
	return &Results{Metadata: md}
}

// AddData appends a series.
func (r *Results) AddData(name string, dim int, logs [][]float64) {
	r.Data = append(r.Data, Series{Name: name, Dim: dim, Logs: logs})
}

// AddTrials appends a series built from the error logs of the successful
// trials. Failed trials are skipped.
func (r *Results) AddTrials(name string, dim int, trials []TrialResult) {
	logs := make([][]float64, 0, len(trials))
	for _, t := range trials {
		if t.Err == nil && t.Result != nil {
			logs = append(logs, t.ErrorLog())
		}
	}
	r.AddData(name, dim, logs)
}

// SaveJSON writes the record to path, setting the end timestamp if it is
// missing. The file is replaced atomically.
func (r *Results) SaveJSON(path string) error {
	if r.Metadata.TimeEnd == "" {
		r.Metadata.EndNow()
	}

	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to serialize results: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create results directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp results file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename results file: %w", err)
	}
	return nil
}

// LoadJSON reads a record written by SaveJSON. The data section is
// validated before decoding.
func LoadJSON(path string) (*Results, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	return DecodeJSON(raw)
}

// DecodeJSON decodes and validates a serialized record.
func DecodeJSON(raw []byte) (*Results, error) {
	var envelope struct {
		Metadata json.RawMessage `json:"metadata"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to deserialize results: %w", err)
	}
	if envelope.Metadata == nil {
		return nil, invalidResults("missing metadata")
	}
	if err := validateData(envelope.Data); err != nil {
		return nil, err
	}

	var r Results
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to deserialize results: %w", err)
	}
	return &r, nil
}

// validateData checks that data is an array of objects with a string name,
// an integer dim and logs made of arrays of numbers.
func validateData(data json.RawMessage) error {
	if data == nil {
		return invalidResults("missing data")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return invalidResults("data must be an array: %v", err)
	}

	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return invalidResults("data[%d] must be an object", i)
		}
		for _, field := range []string{"name", "dim", "logs"} {
			if _, ok := obj[field]; !ok {
				return invalidResults("data[%d]: missing required field %q", i, field)
			}
		}
		if _, ok := obj["name"].(string); !ok {
			return invalidResults("data[%d].name must be a string", i)
		}
		dim, ok := obj["dim"].(json.Number)
		if !ok {
			return invalidResults("data[%d].dim must be an integer", i)
		}
		if _, err := dim.Int64(); err != nil {
			return invalidResults("data[%d].dim must be an integer", i)
		}
		logs, ok := obj["logs"].([]any)
		if !ok {
			return invalidResults("data[%d].logs must be an array", i)
		}
		for j, log := range logs {
			values, ok := log.([]any)
			if !ok {
				return invalidResults("data[%d].logs[%d] must be an array", i, j)
			}
			for k, v := range values {
				if _, ok := v.(json.Number); !ok {
					return invalidResults("data[%d].logs[%d][%d] must be a number", i, j, k)
				}
			}
		}
	}
	return nil
}

func invalidResults(format string, args ...any) error {
	return optimization.NewErrorf(optimization.ErrInvalidArgument, format, args...).
		WithComponent("experiment").WithOperation("LoadJSON")
}
