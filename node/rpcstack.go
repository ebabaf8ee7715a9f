// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package node

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/cors"
)

// httpServer serves JSON-RPC over HTTP and, if enabled, WebSocket on the
// same listener.
// httpServer 在同一个监听器上提供 HTTP 以及（启用时）WebSocket JSON-RPC 服务。
type httpServer struct {
	log      log.Logger
	timeouts rpc.HTTPTimeouts

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener // non-nil when server is running

	httpHandler http.Handler
	wsHandler   http.Handler // nil when websocket is disabled

	endpoint string
}

func newHTTPServer(log log.Logger, timeouts rpc.HTTPTimeouts) *httpServer {
	CheckTimeouts(&timeouts)
	return &httpServer{log: log, timeouts: timeouts}
}

// enableRPC sets the handlers serving srv.
func (h *httpServer) enableRPC(srv *rpc.Server, cors []string, ws bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.httpHandler = newCorsHandler(srv, cors)
	if ws {
		h.wsHandler = srv.WebsocketHandler(cors)
	}
}

// start opens the listener on endpoint and starts serving.
// start 在 endpoint 上打开监听器并开始服务。
func (h *httpServer) start(endpoint string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener != nil {
		return nil // already running
	}
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}
	h.listener = listener
	h.endpoint = listener.Addr().String()
	h.server = &http.Server{
		Handler:           h,
		ReadTimeout:       h.timeouts.ReadTimeout,
		ReadHeaderTimeout: h.timeouts.ReadHeaderTimeout,
		WriteTimeout:      h.timeouts.WriteTimeout,
		IdleTimeout:       h.timeouts.IdleTimeout,
	}
	go h.server.Serve(listener)

	h.log.Info("HTTP server started", "endpoint", h.endpoint, "ws", h.wsHandler != nil)
	if h.wsHandler != nil {
		h.log.Info("WebSocket enabled", "url", fmt.Sprintf("ws://%v", h.endpoint))
	}
	return nil
}

// ServeHTTP dispatches websocket upgrades to the websocket handler and
// everything else to the HTTP handler.
func (h *httpServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.wsHandler != nil && isWebsocket(r) {
		h.wsHandler.ServeHTTP(w, r)
		return
	}
	if h.httpHandler == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// stop shuts down the HTTP server.
func (h *httpServer) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listener == nil {
		return // not running
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		h.server.Close()
	}
	h.listener.Close()
	h.log.Info("HTTP server stopped", "endpoint", h.endpoint)

	h.server, h.listener = nil, nil
}

// isWebsocket checks the header of an http request for a websocket upgrade request.
// isWebsocket 检查 HTTP 请求的头部是否为 WebSocket 升级请求。
func isWebsocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// newCorsHandler wraps srv with CORS headers for allowedOrigins.
func newCorsHandler(srv http.Handler, allowedOrigins []string) http.Handler {
	// disable CORS support if user has not specified a custom CORS configuration
	// 如果用户未指定自定义 CORS 配置，则禁用 CORS 支持
	if len(allowedOrigins) == 0 {
		return srv
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodGet},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	})
	return c.Handler(srv)
}

// CheckTimeouts ensures that timeout values are meaningful
// CheckTimeouts 确保超时值是合理的
func CheckTimeouts(timeouts *rpc.HTTPTimeouts) {
	if timeouts.ReadTimeout < time.Second {
		log.Warn("Sanitizing invalid HTTP read timeout", "provided", timeouts.ReadTimeout, "updated", rpc.DefaultHTTPTimeouts.ReadTimeout)
		timeouts.ReadTimeout = rpc.DefaultHTTPTimeouts.ReadTimeout
	}
	if timeouts.ReadHeaderTimeout < time.Second {
		log.Warn("Sanitizing invalid HTTP read header timeout", "provided", timeouts.ReadHeaderTimeout, "updated", rpc.DefaultHTTPTimeouts.ReadHeaderTimeout)
		timeouts.ReadHeaderTimeout = rpc.DefaultHTTPTimeouts.ReadHeaderTimeout
	}
	if timeouts.WriteTimeout < time.Second {
		log.Warn("Sanitizing invalid HTTP write timeout", "provided", timeouts.WriteTimeout, "updated", rpc.DefaultHTTPTimeouts.WriteTimeout)
		timeouts.WriteTimeout = rpc.DefaultHTTPTimeouts.WriteTimeout
	}
	if timeouts.IdleTimeout < time.Second {
		log.Warn("Sanitizing invalid HTTP idle timeout", "provided", timeouts.IdleTimeout, "updated", rpc.DefaultHTTPTimeouts.IdleTimeout)
		timeouts.IdleTimeout = rpc.DefaultHTTPTimeouts.IdleTimeout
	}
}
