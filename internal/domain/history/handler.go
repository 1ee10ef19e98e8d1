package history

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/termbridge/internal/platform/auth"
	"github.com/ehr/termbridge/pkg/pagination"
)

type Handler struct {
	ledger Ledger
}

func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes mounts the history endpoints. Every route requires a
// verified bearer token.
func (h *Handler) RegisterRoutes(g *echo.Group, requireToken echo.MiddlewareFunc) {
	g.POST("/save-translation", h.SaveTranslation, requireToken)
	g.GET("/translation-history", h.ListHistory, requireToken)
}

// SaveRequest is the body of POST /abha/save-translation.
type SaveRequest struct {
	SourceSystem string `json:"source_system"`
	SourceCode   string `json:"source_code"`
	TargetSystem string `json:"target_system"`
	TargetCode   string `json:"target_code"`
	SNOMEDCode   string `json:"snomed_ct_code"`
	LOINCCode    string `json:"loinc_code"`
}

func (h *Handler) SaveTranslation(c echo.Context) error {
	var req SaveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id, err := h.ledger.Append(c.Request().Context(), Entry{
		ABHAID:       auth.UserIDFromContext(c.Request().Context()),
		SourceSystem: req.SourceSystem,
		SourceCode:   req.SourceCode,
		TargetSystem: req.TargetSystem,
		TargetCode:   req.TargetCode,
		SNOMEDCode:   req.SNOMEDCode,
		LOINCCode:    req.LOINCCode,
	})
	if err != nil {
		return storageHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message":  "Translation history saved successfully",
		"entry_id": id,
	})
}

// ListHistory returns the caller's entries oldest first. Without limit or
// offset parameters the whole history is returned; with them the response
// also carries total, limit, offset and has_more.
func (h *Handler) ListHistory(c echo.Context) error {
	entries, err := h.ledger.ListBy(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return storageHTTPError(err)
	}

	p, paged := pagination.FromContext(c)
	if !paged {
		return c.JSON(http.StatusOK, map[string]interface{}{"history": entries})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"history":  pagination.Page(entries, p),
		"total":    len(entries),
		"limit":    p.Limit,
		"offset":   p.Offset,
		"has_more": p.HasNext(len(entries)),
	})
}

func storageHTTPError(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "translation history is unavailable").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
