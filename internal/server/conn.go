package server

import (
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"hybridserver/internal/protocol"
	"hybridserver/internal/router"
	"hybridserver/internal/slogutil"
	"hybridserver/internal/version"
)

// RequestIDHeader carries the id each response is logged under.
const RequestIDHeader = "X-Request-Id"

// handleConn serves exactly one request and closes the connection.
func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	start := time.Now()
	reqID := uuid.NewString()
	logger := s.logger.With(slogutil.RequestIDKey, reqID)

	req, resp := s.serve(conn, logger)
	resp.SetHeader("Server", version.Product())
	resp.SetHeader(RequestIDHeader, reqID)

	if _, err := resp.WriteTo(conn); err != nil {
		logger.Warn("Failed to write response", "error", err.Error())
		return
	}

	attrs := []any{
		"status", resp.Status.Code(),
		"duration", time.Since(start).String(),
	}
	if req != nil {
		attrs = append(attrs, "method", string(req.Method), "path", "/"+req.Path)
	}
	logger.Info("Request handled", attrs...)
}

// serve parses and dispatches one request. Any failure, including a
// panic in the dispatcher, is answered with a 500 page.
func (s *Server) serve(conn net.Conn, logger *slog.Logger) (req *protocol.Request, resp *protocol.Response) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Panic recovered",
				"error", fmt.Sprintf("%v", p),
				"stack", string(debug.Stack()),
			)
			resp = router.ErrorPage(protocol.StatusInternalServerError, "")
		}
	}()

	req, err := protocol.ReadRequest(conn)
	if err != nil {
		logger.Warn("Malformed request", "remote", remoteAddr(conn), "error", err.Error())
		return nil, router.ErrorPage(protocol.StatusInternalServerError, "")
	}

	resp, err = s.dispatcher.Dispatch(s.ctx, req)
	if err != nil {
		logger.Error("Request failed",
			"method", string(req.Method),
			"path", "/"+req.Path,
			"error", err.Error(),
		)
		return req, router.ErrorPage(protocol.StatusInternalServerError, "")
	}
	if resp == nil {
		logger.Error("Dispatcher returned no response", "path", "/"+req.Path)
		return req, router.ErrorPage(protocol.StatusInternalServerError, "")
	}
	return req, resp
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
