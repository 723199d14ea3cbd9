package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// registerHandler handles POST /auth/register.
func (s *Server) registerHandler(c *echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.auth.Register(c.Request().Context(), req.Email, req.Password); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message": "verification code sent",
	})
}

// verifyHandler handles POST /auth/verify.
func (s *Server) verifyHandler(c *echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.auth.Verify(c.Request().Context(), req.Email, req.Code); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "email verified"})
}

// loginHandler handles POST /auth/login.
func (s *Server) loginHandler(c *echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	token, err := s.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token})
}
