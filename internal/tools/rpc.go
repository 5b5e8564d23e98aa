package tools

import (
	"context"
	"encoding/json"

	apperrors "github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/rpc"
)

// RPC method names.
const (
	MethodSearch             = "Tools.Search"
	MethodLookupCaseStudy    = "Tools.LookupCaseStudy"
	MethodLookupGlossaryTerm = "Tools.LookupGlossaryTerm"
	MethodStats              = "Tools.Stats"
)

// GlossaryParams are the inputs of the glossary tool.
type GlossaryParams struct {
	Name string `json:"name"`
}

// RegisterRPC exposes the tools of svc on s.
func RegisterRPC(s *rpc.Server, svc *Service) {
	s.Register(MethodSearch, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p SearchParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return svc.Search(ctx, p)
	})
	s.Register(MethodLookupCaseStudy, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p CaseStudyParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return svc.LookupCaseStudy(ctx, p)
	})
	s.Register(MethodLookupGlossaryTerm, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p GlossaryParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return svc.LookupGlossaryTerm(ctx, p.Name)
	})
	s.Register(MethodStats, func(context.Context, json.RawMessage) (any, error) {
		return svc.Stats(), nil
	})
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.InvalidArgument("malformed params: %v", err)
	}
	return nil
}
