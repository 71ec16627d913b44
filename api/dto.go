package api

import (
	"time"

	"github.com/warp/subscription-engine/factory"
	"github.com/warp/subscription-engine/generic"
	"github.com/warp/subscription-engine/partner"
	"github.com/warp/subscription-engine/subscription"
)

// =============================================================================
// REQUEST DTOs
// =============================================================================

// ComputeRequest carries everything one computation needs. Users has the
// same shape as accounts.json; each partner's Data the shape of a
// partner file.
type ComputeRequest struct {
	Users    []factory.AccountJSON `json:"users"`
	Partners []PartnerDTO          `json:"partners"`
}

type PartnerDTO struct {
	Name string             `json:"name"`
	Data factory.SourceJSON `json:"data"`
}

func (req ComputeRequest) accounts() []generic.Account {
	return factory.AccountsJSON{Users: req.Users}.ToAccounts()
}

func (req ComputeRequest) specs() []subscription.Spec {
	specs := make([]subscription.Spec, 0, len(req.Partners))
	for _, p := range req.Partners {
		specs = append(specs, subscription.Spec{
			Name: generic.PartnerName(p.Name),
			Data: p.Data.ToSource(),
		})
	}
	return specs
}

// =============================================================================
// RESPONSE DTOs
// =============================================================================

type ComputeResponse struct {
	RunID         string                   `json:"run_id"`
	CreatedAt     string                   `json:"created_at"`
	Partners      []string                 `json:"partners"`
	Subscriptions map[string]generic.Tally `json:"subscriptions"`
	LoadStats     []LoadStatsDTO           `json:"load_stats"`
}

// LoadStatsDTO reports what ingestion did with one partner's records.
type LoadStatsDTO struct {
	Partner string `json:"partner"`
	Granted int    `json:"granted"`
	Revoked int    `json:"revoked"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toComputeResponse(run generic.Run, stats []partner.LoadStats) ComputeResponse {
	resp := ComputeResponse{
		RunID:         string(run.ID),
		CreatedAt:     run.CreatedAt.Format(time.RFC3339),
		Partners:      make([]string, len(run.Partners)),
		Subscriptions: run.Report.Subscriptions,
		LoadStats:     make([]LoadStatsDTO, len(stats)),
	}
	for i, p := range run.Partners {
		resp.Partners[i] = string(p)
	}
	for i, s := range stats {
		resp.LoadStats[i] = LoadStatsDTO{
			Partner: resp.Partners[i],
			Granted: s.Granted,
			Revoked: s.Revoked,
			Skipped: s.Skipped,
			Failed:  s.Failed,
		}
	}
	return resp
}
