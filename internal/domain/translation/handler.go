package translation

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/termbridge/internal/domain/conceptmap"
	"github.com/ehr/termbridge/internal/platform/fhir"
)

const unsupportedSystemMsg = "Unsupported system. Use NAM or TM2."

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts GET /translate on mapping and the FHIR $translate
// operation on fhirGroup. Neither requires a token.
func (h *Handler) RegisterRoutes(mapping *echo.Group, fhirGroup *echo.Group) {
	mapping.GET("/translate", h.Translate)
	fhirGroup.GET("/ConceptMap/$translate", h.FHIRTranslate)
	fhirGroup.POST("/ConceptMap/$translate", h.FHIRTranslatePost)
}

// Translate handles GET /mapping/translate. The Authorization header is
// optional and only matters for save_history; a malformed one is treated as
// an invalid credential, never as a 401.
func (h *Handler) Translate(c echo.Context) error {
	system := c.QueryParam("system")
	if _, err := conceptmap.ParseSystem(system); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, unsupportedSystemMsg)
	}
	code := strings.TrimSpace(c.QueryParam("code"))
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Parameter 'code' is required")
	}

	save := false
	if raw := c.QueryParam("save_history"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Parameter 'save_history' must be true or false")
		}
		save = v
	}

	result, err := h.svc.Translate(c.Request().Context(), Request{
		System:      system,
		Code:        code,
		SaveHistory: save,
		Credential:  c.Request().Header.Get("Authorization"),
	})
	if errors.Is(err, conceptmap.ErrUnsupportedSystem) {
		return echo.NewHTTPError(http.StatusBadRequest, unsupportedSystemMsg)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// FHIRTranslate handles GET /fhir/ConceptMap/$translate?system=&code=. It
// never records history.
func (h *Handler) FHIRTranslate(c echo.Context) error {
	return h.fhirTranslate(c, c.QueryParam("system"), c.QueryParam("code"))
}

// FHIRTranslatePost handles POST /fhir/ConceptMap/$translate with a
// Parameters resource carrying code and system.
func (h *Handler) FHIRTranslatePost(c echo.Context) error {
	var params struct {
		ResourceType string `json:"resourceType"`
		Parameter    []struct {
			Name        string `json:"name"`
			ValueCode   string `json:"valueCode,omitempty"`
			ValueURI    string `json:"valueUri,omitempty"`
			ValueString string `json:"valueString,omitempty"`
		} `json:"parameter"`
	}
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(
			fhir.IssueSeverityError, fhir.IssueTypeInvalid, "Invalid Parameters body"))
	}
	if params.ResourceType != "" && params.ResourceType != "Parameters" {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(
			fhir.IssueSeverityError, fhir.IssueTypeInvalid, "Expected a Parameters resource"))
	}

	var system, code string
	for _, p := range params.Parameter {
		switch p.Name {
		case "code":
			code = firstNonEmpty(p.ValueCode, p.ValueString)
		case "system":
			system = firstNonEmpty(p.ValueURI, p.ValueString)
		}
	}
	return h.fhirTranslate(c, system, code)
}

func (h *Handler) fhirTranslate(c echo.Context, rawSystem, code string) error {
	if strings.TrimSpace(code) == "" {
		return c.JSON(http.StatusBadRequest, fhir.RequiredParamOutcome("code"))
	}
	if strings.TrimSpace(rawSystem) == "" {
		return c.JSON(http.StatusBadRequest, fhir.RequiredParamOutcome("system"))
	}
	sys, err := conceptmap.ParseSystemURI(rawSystem)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome(
			fhir.IssueSeverityError, fhir.IssueTypeNotSupported, unsupportedSystemMsg))
	}

	result, err := h.svc.Translate(c.Request().Context(), Request{System: string(sys), Code: code})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result.ToParameters(sys, strings.TrimSpace(code)))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
