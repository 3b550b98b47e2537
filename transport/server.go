// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package transport wires the gin HTTP server: the `/ws` duplex
// session endpoint, `/health`, `/metrics`, and `/swagger/*any`, per
// spec §6.
package transport

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ghosttype/ghosttype/inference"
	"github.com/ghosttype/ghosttype/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server owns the gin engine and the collaborators every session
// needs.
type Server struct {
	engine *gin.Engine
	log    zerolog.Logger
	deps   session.Dependencies
}

// New builds a Server. authHandler may be nil when bearer-token auth
// is disabled.
func New(log zerolog.Logger, recognizer inference.Recognizer, dumpWav bool, dumpWavDir string, authHandler gin.HandlerFunc) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		engine: r,
		log:    log,
		deps: session.Dependencies{
			Recognizer: recognizer,
			Log:        log,
			DumpWav:    dumpWav,
			DumpWavDir: dumpWavDir,
		},
	}

	wsHandlers := []gin.HandlerFunc{}
	if authHandler != nil {
		wsHandlers = append(wsHandlers, authHandler)
	}
	wsHandlers = append(wsHandlers, s.handleWebsocket)

	r.GET("/ws", wsHandlers...)
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return s
}

// Run starts the HTTP server, blocking until it exits.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// connID never reaches the client or the wire protocol — trace_id
	// (session package) is what correlates one utterance's lines. This
	// only groups one connection's own lines; each reconnect gets a new
	// id, even from the same remote address.
	connID := uuid.NewString()
	connLog := s.log.With().Str("conn_id", connID).Logger()

	var writeMu sync.Mutex
	sess := session.New(s.deps, func(msg session.OutboundMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	})

	connLog.Info().Str("remote", c.Request.RemoteAddr).Msg("Client connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			connLog.Info().Err(err).Msg("Client disconnected")
			return
		}

		switch msgType {
		case websocket.TextMessage:
			if err := sess.HandleText(data); err != nil {
				connLog.Warn().Err(err).Msg("failed to send response")
			}
		case websocket.BinaryMessage:
			sess.HandleBinary(data)
		}
	}
}
