package translation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ehr/termbridge/internal/domain/conceptmap"
	"github.com/ehr/termbridge/internal/domain/history"
	"github.com/ehr/termbridge/internal/platform/auth"
)

// Reasons a requested history save was skipped. None of them affect the
// translation result.
var (
	ErrNoCredential = errors.New("no credential supplied")
	ErrNoMappings   = errors.New("no mappings to record")
)

// Verifier resolves a bearer credential to an identity.
type Verifier interface {
	Verify(token string) (string, error)
}

// Request is one translation query. Credential is the raw Authorization
// header value ("Bearer <token>"), empty when the caller sent none.
type Request struct {
	System      string
	Code        string
	SaveHistory bool
	Credential  string
}

type Service struct {
	table    *conceptmap.Table
	verifier Verifier
	ledger   history.Ledger
	logger   zerolog.Logger
}

func NewService(table *conceptmap.Table, verifier Verifier, ledger history.Ledger, logger zerolog.Logger) *Service {
	return &Service{table: table, verifier: verifier, ledger: ledger, logger: logger}
}

// Translate looks the code up and, when asked to and the caller proves an
// identity, records the first mapping in that identity's history. The only
// error it returns is conceptmap.ErrUnsupportedSystem; history problems are
// logged and dropped.
func (s *Service) Translate(ctx context.Context, req Request) (*conceptmap.ConceptMap, error) {
	mappings, err := s.table.Lookup(req.System, req.Code)
	if err != nil {
		return nil, err
	}
	result := conceptmap.NewConceptMap(mappings)

	if req.SaveHistory {
		sys, _ := conceptmap.ParseSystem(req.System)
		id, err := s.recordHistory(ctx, sys, req.Credential, mappings)
		switch {
		case err == nil:
			s.logger.Debug().Str("entry_id", id).Str("system", string(sys)).Msg("translation recorded")
		case errors.Is(err, ErrNoCredential), errors.Is(err, ErrNoMappings):
			s.logger.Debug().Err(err).Msg("history save skipped")
		default:
			s.logger.Warn().Err(err).Str("system", string(sys)).Msg("history save failed")
		}
	}
	return result, nil
}

func (s *Service) recordHistory(ctx context.Context, sys conceptmap.System, credential string, mappings []conceptmap.Mapping) (string, error) {
	if credential == "" {
		return "", ErrNoCredential
	}
	token, err := auth.BearerToken(credential)
	if err != nil {
		return "", err
	}
	identity, err := s.verifier.Verify(token)
	if err != nil {
		return "", fmt.Errorf("verify credential: %w", err)
	}
	if len(mappings) == 0 {
		return "", ErrNoMappings
	}

	first := mappings[0]
	return s.ledger.Append(ctx, history.Entry{
		ABHAID:       identity,
		SourceSystem: string(sys),
		SourceCode:   first.SourceCode,
		TargetSystem: sys.Other().Label(),
		TargetCode:   first.TargetCode,
		SNOMEDCode:   first.SNOMEDCode,
		LOINCCode:    first.LOINCCode,
	})
}
