package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/itchyny/gojq"
)

// jqMatcher requires every compiled filter to evaluate truthy against an event.
type jqMatcher struct {
	filters []string
	codes   []*gojq.Code
	logger  *slog.Logger
}

// newJQMatcher compiles the --must-jq filters. No filters matches everything.
func newJQMatcher(filters []string, logger *slog.Logger) (*jqMatcher, error) {
	m := &jqMatcher{filters: filters, logger: logger}
	for _, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
		m.codes = append(m.codes, code)
	}
	return m, nil
}

// MatchJSON decodes data and applies the filters to it.
func (m *jqMatcher) MatchJSON(data []byte) bool {
	if len(m.codes) == 0 {
		return true
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return false
	}
	return m.Match(v)
}

// Match applies the filters to a decoded JSON value.
func (m *jqMatcher) Match(v interface{}) bool {
	for _, code := range m.codes {
		iter := code.Run(v)
		result, ok := iter.Next()
		if !ok {
			return false
		}
		if err, isErr := result.(error); isErr {
			if m.logger != nil {
				m.logger.Debug("jq filter error", "error", err)
			}
			return false
		}
		if !isTruthy(result) {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
