// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghosttype/ghosttype/inference"
	"github.com/ghosttype/ghosttype/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealthReportsOK(t *testing.T) {
	s := New(zerolog.Nop(), inference.NewStubEngine(), false, "", nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := New(zerolog.Nop(), inference.NewStubEngine(), false, "", nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ghosttype_sessions_started_total")
}

func TestWebsocketAuthRejectsMissingToken(t *testing.T) {
	rejectAll := func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
	}
	s := New(zerolog.Nop(), inference.NewStubEngine(), false, "", rejectAll)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocketFullRoundTrip(t *testing.T) {
	s := New(zerolog.Nop(), inference.NewStubEngine(), false, "", nil)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(session.InboundMessage{Type: "ping"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong session.OutboundMessage
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)

	require.NoError(t, conn.WriteJSON(session.InboundMessage{Type: "start", TraceID: "abcdef"}))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x00, 0x00}))
	require.NoError(t, conn.WriteJSON(session.InboundMessage{Type: "stop"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var result session.OutboundMessage
	require.NoError(t, conn.ReadJSON(&result))
	assert.Equal(t, "fast_text", result.Type)
	assert.Equal(t, "abcdef", result.TraceID)
	assert.True(t, result.IsFinal)
}
