package translation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/termbridge/internal/domain/conceptmap"
	"github.com/ehr/termbridge/internal/platform/auth"
	"github.com/ehr/termbridge/internal/platform/fhir"
)

func newTestServer(ledger *memLedger) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = fhir.ErrorHandler(zerolog.New(io.Discard))
	NewHandler(newTestService(ledger)).RegisterRoutes(e.Group("/mapping"), e.Group("/fhir"))
	return e
}

func doGet(e *echo.Echo, target, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Translate(t *testing.T) {
	e := newTestServer(&memLedger{})
	rec := doGet(e, "/mapping/translate?system=NAM&code=NAM001", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cm conceptmap.ConceptMap
	if err := json.Unmarshal(rec.Body.Bytes(), &cm); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cm.ID != "ConceptMap" || len(cm.Mappings) != 1 || cm.Mappings[0].LOINCCode != "8867-4" {
		t.Errorf("unexpected result %+v", cm)
	}
}

func TestHandler_Translate_EmptyResultIsArray(t *testing.T) {
	e := newTestServer(&memLedger{})
	rec := doGet(e, "/mapping/translate?system=NAM&code=NOPE", "")
	if !strings.Contains(rec.Body.String(), `"mappings":[]`) {
		t.Errorf("expected empty mappings array, got %s", rec.Body.String())
	}
}

func TestHandler_Translate_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
		detail string
	}{
		{"unsupported system", "/mapping/translate?system=ICD10&code=X", "Unsupported system. Use NAM or TM2."},
		{"missing system", "/mapping/translate?code=X", "Unsupported system. Use NAM or TM2."},
		{"missing code", "/mapping/translate?system=NAM", "Parameter 'code' is required"},
		{"bad save_history", "/mapping/translate?system=NAM&code=NAM001&save_history=maybe", "Parameter 'save_history' must be true or false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(newTestServer(&memLedger{}), tt.target, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			var body map[string]string
			json.Unmarshal(rec.Body.Bytes(), &body)
			if body["detail"] != tt.detail {
				t.Errorf("expected detail %q, got %q", tt.detail, body["detail"])
			}
		})
	}
}

func TestHandler_Translate_SaveHistory(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		authz     string
		wantSaved int
	}{
		{"valid bearer", "save_history=true", "Bearer good", 1},
		{"save not requested", "save_history=false", "Bearer good", 0},
		{"no header", "save_history=true", "", 0},
		{"forged token", "save_history=true", "Bearer forged", 0},
		{"malformed header", "save_history=true", "good", 0},
		{"wrong scheme", "save_history=true", "Basic Z29vZA==", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &memLedger{}
			rec := doGet(newTestServer(ledger), "/mapping/translate?system=NAM&code=NAM001&"+tt.query, tt.authz)
			if rec.Code != http.StatusOK {
				t.Fatalf("history problems must never fail the request, got %d", rec.Code)
			}
			if ledger.count() != tt.wantSaved {
				t.Errorf("expected %d saved entries, got %d", tt.wantSaved, ledger.count())
			}
		})
	}
}

func TestHandler_Translate_StorageDownStillAnswers(t *testing.T) {
	ledger := &memLedger{err: errors.New("unreachable")}
	rec := doGet(newTestServer(ledger), "/mapping/translate?system=NAM&code=NAM001&save_history=true", "Bearer good")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_Translate_RealTokens(t *testing.T) {
	verifier := auth.NewTokenVerifier([]byte("test-secret"), 0)
	token, err := verifier.Issue("ABHA777")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ledger := &memLedger{}
	e := echo.New()
	svc := NewService(testTable(), verifier, ledger, zerolog.New(io.Discard))
	NewHandler(svc).RegisterRoutes(e.Group("/mapping"), e.Group("/fhir"))

	doGet(e, "/mapping/translate?system=TM2&code=TM2-B1&save_history=true", "Bearer "+token)

	got, _ := ledger.ListBy(context.Background(), "ABHA777")
	if len(got) != 1 || got[0].TargetSystem != "NAMASTE" || got[0].TargetCode != "NAM002" {
		t.Errorf("unexpected history %+v", got)
	}
}

type parameters struct {
	ResourceType string `json:"resourceType"`
	Parameter    []struct {
		Name         string `json:"name"`
		ValueBoolean *bool  `json:"valueBoolean"`
		ValueString  string `json:"valueString"`
		Part         []struct {
			Name        string `json:"name"`
			ValueCode   string `json:"valueCode"`
			ValueCoding *struct {
				System string `json:"system"`
				Code   string `json:"code"`
			} `json:"valueCoding"`
		} `json:"part"`
	} `json:"parameter"`
}

func TestHandler_FHIRTranslate(t *testing.T) {
	ledger := &memLedger{}
	rec := doGet(newTestServer(ledger), "/fhir/ConceptMap/$translate?system="+conceptmap.SystemURINAMASTE+"&code=NAM002", "Bearer good")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var p parameters
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ResourceType != "Parameters" {
		t.Errorf("expected Parameters, got %s", p.ResourceType)
	}
	if p.Parameter[0].Name != "result" || p.Parameter[0].ValueBoolean == nil || !*p.Parameter[0].ValueBoolean {
		t.Errorf("expected result=true, got %+v", p.Parameter[0])
	}
	matches := 0
	for _, param := range p.Parameter {
		if param.Name != "match" {
			continue
		}
		matches++
		for _, part := range param.Part {
			if part.Name == "concept" && part.ValueCoding.System != conceptmap.SystemURITM2 {
				t.Errorf("expected TM2 coding, got %s", part.ValueCoding.System)
			}
		}
	}
	if matches != 2 {
		t.Errorf("expected 2 matches, got %d", matches)
	}
	if ledger.count() != 0 {
		t.Error("$translate must not record history")
	}
}

func TestHandler_FHIRTranslate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantCode string
	}{
		{"missing code", "/fhir/ConceptMap/$translate?system=NAM", fhir.IssueTypeRequired},
		{"missing system", "/fhir/ConceptMap/$translate?code=NAM001", fhir.IssueTypeRequired},
		{"unknown system", "/fhir/ConceptMap/$translate?system=http://snomed.info/sct&code=1", fhir.IssueTypeNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doGet(newTestServer(&memLedger{}), tt.target, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			var oo fhir.OperationOutcome
			json.Unmarshal(rec.Body.Bytes(), &oo)
			if oo.ResourceType != "OperationOutcome" || len(oo.Issue) != 1 || oo.Issue[0].Code != tt.wantCode {
				t.Errorf("unexpected outcome %+v", oo)
			}
		})
	}
}

func TestHandler_FHIRTranslatePost(t *testing.T) {
	e := newTestServer(&memLedger{})
	body := `{"resourceType":"Parameters","parameter":[
		{"name":"code","valueCode":"TM2-A1"},
		{"name":"system","valueUri":"` + conceptmap.SystemURITM2 + `"}]}`
	req := httptest.NewRequest(http.MethodPost, "/fhir/ConceptMap/$translate", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var p parameters
	json.Unmarshal(rec.Body.Bytes(), &p)
	var codes []string
	for _, param := range p.Parameter {
		for _, part := range param.Part {
			if part.Name == "concept" && part.ValueCoding != nil {
				codes = append(codes, part.ValueCoding.Code)
			}
		}
	}
	if len(codes) != 1 || codes[0] != "NAM001" {
		t.Errorf("expected NAM001, got %v", codes)
	}
}

func TestHandler_FHIRTranslatePost_WrongResource(t *testing.T) {
	e := newTestServer(&memLedger{})
	req := httptest.NewRequest(http.MethodPost, "/fhir/ConceptMap/$translate", strings.NewReader(`{"resourceType":"Patient"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
