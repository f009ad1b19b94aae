package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/accounthub/internal/domain"
	apperrors "github.com/pscheid92/accounthub/internal/errors"
)

type createAccountSessionRequest struct {
	Username     string                 `json:"username"`
	State        domain.AccountState    `json:"state"`
	SessionState domain.SessionState    `json:"session_state"`
	Session      domain.Session         `json:"session"`
	Details      *domain.SessionDetails `json:"details"`

	HumanVerification *domain.HumanVerificationDetails `json:"human_verification"`
}

type updateAccountStateRequest struct {
	State domain.AccountState `json:"state"`
}

func (s *Server) handleListAccounts(c echo.Context) error {
	accounts, err := s.app.ListAccounts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, accounts)
}

func (s *Server) handleGetAccount(c echo.Context) error {
	account, err := s.app.GetAccount(c.Request().Context(), c.Param("userID"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, account)
}

func (s *Server) handleCreateAccountSession(c echo.Context) error {
	var req createAccountSessionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.State == "" {
		return apperrors.ValidationError("state is required")
	}

	userID := c.Param("userID")
	session := req.Session
	session.UserID = userID

	account := domain.Account{
		UserID:       userID,
		Username:     req.Username,
		State:        req.State,
		SessionState: req.SessionState,
		Details: domain.AccountDetails{
			Session:           req.Details,
			HumanVerification: req.HumanVerification,
		},
	}

	fresh, err := s.app.CreateOrUpdateAccountSession(c.Request().Context(), account, session)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fresh)
}

func (s *Server) handleUpdateAccountState(c echo.Context) error {
	var req updateAccountStateRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.State == "" {
		return apperrors.ValidationError("state is required")
	}

	account, err := s.app.UpdateAccountState(c.Request().Context(), c.Param("userID"), req.State)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, account)
}

func (s *Server) handleSetAsPrimary(c echo.Context) error {
	if err := s.app.SetAsPrimary(c.Request().Context(), c.Param("userID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(c echo.Context) error {
	if err := s.app.DeleteAccount(c.Request().Context(), c.Param("userID")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetPrimary(c echo.Context) error {
	userID, err := s.app.GetPrimaryUserID(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"user_id": userID})
}
