package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Accounts
	s.echo.GET("/v1/accounts", s.handleListAccounts)
	s.echo.GET("/v1/accounts/:userID", s.handleGetAccount)
	s.echo.PUT("/v1/accounts/:userID/session", s.handleCreateAccountSession)
	s.echo.PUT("/v1/accounts/:userID/state", s.handleUpdateAccountState)
	s.echo.POST("/v1/accounts/:userID/primary", s.handleSetAsPrimary)
	s.echo.DELETE("/v1/accounts/:userID", s.handleDeleteAccount)
	s.echo.GET("/v1/primary", s.handleGetPrimary)

	// Sessions
	s.echo.GET("/v1/sessions", s.handleListSessions)
	s.echo.GET("/v1/sessions/:sessionID", s.handleGetSession)
	s.echo.DELETE("/v1/sessions/:sessionID", s.handleDeleteSession)
	s.echo.PUT("/v1/sessions/:sessionID/state", s.handleUpdateSessionState)
	s.echo.PUT("/v1/sessions/:sessionID/scopes", s.handleUpdateSessionScopes)
	s.echo.PUT("/v1/sessions/:sessionID/headers", s.handleUpdateSessionHeaders)
	s.echo.PUT("/v1/sessions/:sessionID/tokens", s.handleUpdateSessionToken)
	s.echo.GET("/v1/sessions/:sessionID/account", s.handleGetAccountBySession)
	s.echo.PUT("/v1/sessions/:sessionID/account/state", s.handleUpdateAccountStateBySession)
	s.echo.GET("/v1/sessions/:sessionID/details", s.handleGetSessionDetails)
	s.echo.PUT("/v1/sessions/:sessionID/details", s.handleSetSessionDetails)
	s.echo.DELETE("/v1/sessions/:sessionID/details/password", s.handleClearSessionDetails)
	s.echo.GET("/v1/sessions/:sessionID/human-verification", s.handleGetHumanVerification)
	s.echo.PUT("/v1/sessions/:sessionID/human-verification", s.handleSetHumanVerification)
	s.echo.POST("/v1/sessions/:sessionID/human-verification/complete", s.handleHumanVerificationCompleted)

	// Event streams (WebSocket)
	s.echo.GET("/ws/accounts", s.handleAccountStream)
	s.echo.GET("/ws/sessions", s.handleSessionStream)
}
