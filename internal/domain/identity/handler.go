package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/termbridge/internal/platform/auth"
)

// TokenIssuer mints access tokens for authenticated identities.
type TokenIssuer interface {
	Issue(identity string) (string, error)
}

type Handler struct {
	dir    *Directory
	tokens TokenIssuer
}

func NewHandler(dir *Directory, tokens TokenIssuer) *Handler {
	return &Handler{dir: dir, tokens: tokens}
}

func (h *Handler) RegisterRoutes(g *echo.Group, requireToken echo.MiddlewareFunc) {
	g.POST("/login", h.Login)
	g.GET("/profile", h.GetProfile, requireToken)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ABHAID == "" || req.Phone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "abha_id and phone are required")
	}

	profile, err := h.dir.Authenticate(req.ABHAID, req.Phone)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid ABHA ID or phone number")
	}

	token, err := h.tokens.Issue(profile.ABHAID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue access token").SetInternal(err)
	}

	return c.JSON(http.StatusOK, LoginResponse{
		Message:     "Login successful",
		ABHAUser:    profile,
		AccessToken: token,
	})
}

func (h *Handler) GetProfile(c echo.Context) error {
	profile, err := h.dir.Get(auth.UserIDFromContext(c.Request().Context()))
	if errors.Is(err, ErrUserNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}
