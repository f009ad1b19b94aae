package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/accounthub/internal/domain"
	apperrors "github.com/pscheid92/accounthub/internal/errors"
)

type updateSessionStateRequest struct {
	State domain.SessionState `json:"state"`
}

type updateScopesRequest struct {
	Scopes []string `json:"scopes"`
}

type updateHeadersRequest struct {
	TokenType string `json:"token_type"`
	TokenCode string `json:"token_code"`
}

type updateTokensRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.app.ListSessions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleGetSession(c echo.Context) error {
	session, err := s.app.GetSession(c.Request().Context(), c.Param("sessionID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	if err := s.app.DeleteSession(c.Request().Context(), c.Param("sessionID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUpdateSessionState(c echo.Context) error {
	var req updateSessionStateRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.State == "" {
		return apperrors.ValidationError("state is required")
	}

	account, err := s.app.UpdateSessionState(c.Request().Context(), c.Param("sessionID"), req.State)
	if err != nil {
		return err
	}
	if account == nil {
		// Session not bound to an account: the update is a no-op.
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, account)
}

func (s *Server) handleUpdateSessionScopes(c echo.Context) error {
	var req updateScopesRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if err := s.app.UpdateSessionScopes(c.Request().Context(), c.Param("sessionID"), req.Scopes); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUpdateSessionHeaders(c echo.Context) error {
	var req updateHeadersRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if err := s.app.UpdateSessionHeaders(c.Request().Context(), c.Param("sessionID"), req.TokenType, req.TokenCode); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUpdateSessionToken(c echo.Context) error {
	var req updateTokensRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.AccessToken == "" || req.RefreshToken == "" {
		return apperrors.ValidationError("access_token and refresh_token are required")
	}

	if err := s.app.UpdateSessionToken(c.Request().Context(), c.Param("sessionID"), req.AccessToken, req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetAccountBySession(c echo.Context) error {
	account, err := s.app.GetAccountBySession(c.Request().Context(), c.Param("sessionID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, account)
}

func (s *Server) handleUpdateAccountStateBySession(c echo.Context) error {
	var req updateAccountStateRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.State == "" {
		return apperrors.ValidationError("state is required")
	}

	account, err := s.app.UpdateAccountStateBySession(c.Request().Context(), c.Param("sessionID"), req.State)
	if err != nil {
		return err
	}
	if account == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, account)
}

func (s *Server) handleGetSessionDetails(c echo.Context) error {
	details, err := s.app.GetSessionDetails(c.Request().Context(), c.Param("sessionID"))
	if err != nil {
		return err
	}
	if details == nil {
		return apperrors.NotFoundError("no session details")
	}
	return c.JSON(http.StatusOK, details)
}

func (s *Server) handleSetSessionDetails(c echo.Context) error {
	var details domain.SessionDetails
	if err := c.Bind(&details); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	details.SessionID = c.Param("sessionID")

	if err := s.app.SetSessionDetails(c.Request().Context(), details); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleClearSessionDetails(c echo.Context) error {
	if err := s.app.ClearSessionDetails(c.Request().Context(), c.Param("sessionID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetHumanVerification(c echo.Context) error {
	details, err := s.app.GetHumanVerificationDetails(c.Request().Context(), c.Param("sessionID"))
	if err != nil {
		return err
	}
	if details == nil {
		return apperrors.NotFoundError("no pending human verification")
	}
	return c.JSON(http.StatusOK, details)
}

func (s *Server) handleSetHumanVerification(c echo.Context) error {
	var details domain.HumanVerificationDetails
	if err := c.Bind(&details); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	details.SessionID = c.Param("sessionID")

	if err := s.app.SetHumanVerificationDetails(c.Request().Context(), details); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleHumanVerificationCompleted(c echo.Context) error {
	if err := s.app.UpdateHumanVerificationCompleted(c.Request().Context(), c.Param("sessionID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
