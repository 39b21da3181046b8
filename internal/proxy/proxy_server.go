package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/sessions"
	"github.com/feastline/feast-gateway/internal/upstream"
	"github.com/feastline/feast-gateway/internal/utils"
	"github.com/labstack/echo/v4"
)

const maxRequestBody = 8 << 20

// hop-by-hop and session-internal headers never cross the gateway
var strippedRequestHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Authorization",
	"Cookie",
	"Host",
}

var strippedResponseHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"Trailer",
	"Upgrade",
}

// ProxyServer serves /api/*, forwarding each call to the upstream through
// the interceptor so that bearer injection and refresh coordination apply.
type ProxyServer struct {
	interceptor    *Interceptor
	upstream       *upstream.Client
	sessionHandler *sessions.SessionHandler
}

type ProxyServerOption func(*ProxyServer) error

func WithInterceptor(i *Interceptor) ProxyServerOption {
	return func(p *ProxyServer) error {
		p.interceptor = i
		return nil
	}
}

func WithClient(client *upstream.Client) ProxyServerOption {
	return func(p *ProxyServer) error {
		p.upstream = client
		return nil
	}
}

func WithSessionHandler(sh *sessions.SessionHandler) ProxyServerOption {
	return func(p *ProxyServer) error {
		p.sessionHandler = sh
		return nil
	}
}

func NewProxyServer(options ...ProxyServerOption) (*ProxyServer, error) {
	server := ProxyServer{}
	for _, opt := range options {
		if err := opt(&server); err != nil {
			return nil, err
		}
	}
	if server.interceptor == nil {
		return nil, fmt.Errorf("proxy server interceptor not provided")
	}
	if server.upstream == nil {
		return nil, fmt.Errorf("proxy server upstream client not provided")
	}
	if server.sessionHandler == nil {
		return nil, fmt.Errorf("proxy server session handler not provided")
	}
	return &server, nil
}

func (p *ProxyServer) RegisterHandlers(server *echo.Echo, commonMiddlewares ...echo.MiddlewareFunc) {
	api := server.Group("/api")
	api.Use(commonMiddlewares...)
	api.Any("/*", p.Forward)
}

func (p *ProxyServer) Forward(c echo.Context) error {
	session, err := p.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	req := c.Request()
	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read the request body")
	}
	path := strings.TrimPrefix(req.URL.Path, "/api")
	header := req.Header.Clone()
	for _, name := range strippedRequestHeaders {
		header.Del(name)
	}

	resp, err := p.interceptor.Do(req.Context(), session.ID, func(ctx context.Context, accessToken string) (*http.Response, error) {
		return p.upstream.Forward(ctx, req.Method, path, req.URL.Query(), header, body, accessToken)
	})
	if err != nil {
		if errors.Is(err, gwerrors.ErrAuthenticationExpired) {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"detail":   "authentication expired",
				"redirect": "/login",
			})
		}
		slog.Error(
			"PROXY",
			"message",
			"upstream call failed",
			"sessionID",
			session.ID,
			"requestID",
			utils.GetRequestID(c),
			"traceID",
			utils.GetTraceIDFromHTTPRequest(req),
			"error",
			err,
		)
		return echo.NewHTTPError(http.StatusBadGateway, "cannot reach the upstream service")
	}
	defer resp.Body.Close()

	responseHeader := c.Response().Header()
	for name, values := range resp.Header {
		if stripped(name) {
			continue
		}
		for _, value := range values {
			responseHeader.Add(name, value)
		}
	}
	return c.Stream(resp.StatusCode, resp.Header.Get("Content-Type"), resp.Body)
}

func stripped(name string) bool {
	for _, candidate := range strippedResponseHeaders {
		if strings.EqualFold(name, candidate) {
			return true
		}
	}
	return false
}
