package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJQFilterMatching(t *testing.T) {
	tests := []struct {
		name        string
		event       string
		filters     []string
		expectMatch bool
	}{
		{
			name:        "no filters matches everything",
			event:       `{"campaign_id": "1"}`,
			expectMatch: true,
		},
		{
			name:        "campaign match",
			event:       `{"campaign_id": "1", "amount_algo": 5}`,
			filters:     []string{`.campaign_id == "1"`},
			expectMatch: true,
		},
		{
			name:        "campaign mismatch",
			event:       `{"campaign_id": "2", "amount_algo": 5}`,
			filters:     []string{`.campaign_id == "1"`},
			expectMatch: false,
		},
		{
			name:        "all filters must match",
			event:       `{"source": "onchain", "amount_algo": 5}`,
			filters:     []string{`.source == "onchain"`, `.amount_algo >= 10`},
			expectMatch: false,
		},
		{
			name:        "every filter truthy",
			event:       `{"source": "onchain", "amount_algo": 12.5}`,
			filters:     []string{`.source == "onchain"`, `.amount_algo >= 10`},
			expectMatch: true,
		},
		{
			name:        "contains object",
			event:       `{"donor": "ADDR", "txid": "TX1"}`,
			filters:     []string{`. | contains({donor: "ADDR"})`},
			expectMatch: true,
		},
		{
			name:        "null result is falsy",
			event:       `{"campaign_id": "1"}`,
			filters:     []string{`.txid`},
			expectMatch: false,
		},
		{
			name:        "non-boolean value is truthy",
			event:       `{"txid": "TX1"}`,
			filters:     []string{`.txid`},
			expectMatch: true,
		},
		{
			name:        "runtime error does not match",
			event:       `{"amount_algo": "lots"}`,
			filters:     []string{`.amount_algo - 1 > 0`},
			expectMatch: false,
		},
		{
			name:        "invalid JSON",
			event:       `not-json`,
			filters:     []string{`.campaign_id == "1"`},
			expectMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matcher, err := newJQMatcher(tt.filters, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expectMatch, matcher.MatchJSON([]byte(tt.event)))
		})
	}
}

func TestNewJQMatcher_InvalidFilter(t *testing.T) {
	_, err := newJQMatcher([]string{`.amount >`}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0))
	assert.True(t, isTruthy(""))
	assert.True(t, isTruthy([]interface{}{}))
}

func TestEventSubject(t *testing.T) {
	assert.Equal(t, "campaigns.1.donations", eventSubject("1", false))
	assert.Equal(t, "campaigns.*.donations", eventSubject("", false))
	assert.Equal(t, "campaigns.1.created", eventSubject("1", true))
	assert.Equal(t, "campaigns.*.created", eventSubject("", true))
}
