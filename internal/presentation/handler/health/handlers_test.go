package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCount int

func (c fixedCount) Count() int { return int(c) }

type brokerFlag bool

func (b brokerFlag) Connected() bool { return bool(b) }

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		wantCode   int
		wantStatus string
		wantBroker string
	}{
		{"broker connected", true, http.StatusOK, "ok", "connected"},
		{"broker down", false, http.StatusServiceUnavailable, "degraded", "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(fixedCount(3), brokerFlag(tt.connected))
			rec := httptest.NewRecorder()

			h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.Equal(t, tt.wantBroker, body.RabbitMQ)
			assert.Equal(t, 3, body.ActiveConnections)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}
