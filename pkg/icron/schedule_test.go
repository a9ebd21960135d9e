package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "five fields", expr: "0 3 * * *"},
		{name: "with seconds", expr: "30 0 3 * * *"},
		{name: "descriptor", expr: "@daily"},
		{name: "every", expr: "@every 6h"},
		{name: "empty", expr: "  ", wantErr: true},
		{name: "garbage", expr: "not a cron", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGetTriggerInfo_Daily(t *testing.T) {
	ref := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	info, err := GetTriggerInfo("0 3 * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 11, 3, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 9*time.Hour, info.TimeSinceLast)
	assert.Equal(t, 15*time.Hour, info.TimeUntilNext)
}

func TestGetTriggerInfo_Invalid(t *testing.T) {
	_, err := GetTriggerInfo("61 * * * *", time.Now())
	assert.Error(t, err)
}
