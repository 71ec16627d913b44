/*
Package subscription resolves free days across partners.

PURPOSE:
  A Subscription owns every Partner that shares one account directory.
  For each beneficiary it flattens offers from all partners, runs the
  cross-partner validity pass (resolve.go) and sums the surviving days
  per partner.

PARTNER PRIORITY:
  Partners keep the order the caller gave. That order breaks ties between
  offers starting at the same instant, so it is part of the contract.

PURITY:
  Subscriptions() never mutates stored offers. Each call flattens fresh
  snapshots and resolves them, so repeated calls give identical reports.

CONCURRENCY:
  Beneficiaries are independent. WithWorkers(n) resolves them on an
  errgroup with at most n goroutines; the report is the same either way.

USAGE:
  report, err := subscription.Compute(accounts, []subscription.Spec{
      {Name: "Wondertel", Data: wondertel},
      {Name: "Amazecom", Data: amazecom},
  }, subscription.WithLogger(sugar))

SEE ALSO:
  - resolve.go: The validity pass
  - partner/partner.go: Per-partner ingestion
*/
package subscription

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/warp/subscription-engine/generic"
	"github.com/warp/subscription-engine/partner"
)

// Spec names a partner and carries its source records.
type Spec struct {
	Name generic.PartnerName `json:"name"`
	Data partner.Source      `json:"data"`
}

// Subscription is the query surface over all partners.
type Subscription struct {
	accounts *generic.Directory
	partners []*partner.Partner
	stats    []partner.LoadStats
	log      generic.Logger
	workers  int
}

type Option func(*Subscription)

// WithLogger routes ingestion and resolution warnings to l.
func WithLogger(l generic.Logger) Option {
	return func(s *Subscription) {
		if l != nil {
			s.log = l
		}
	}
}

// WithWorkers resolves up to n beneficiaries concurrently. n <= 1 is sequential.
func WithWorkers(n int) Option {
	return func(s *Subscription) {
		s.workers = n
	}
}

// New validates the directory and partner specs, then builds and loads one
// Partner per spec in the given order. Only shape errors fail; bad records
// inside a partner's data are logged and skipped.
func New(accounts []generic.Account, specs []Spec, opts ...Option) (*Subscription, error) {
	dir, err := generic.NewDirectory(accounts)
	if err != nil {
		return nil, err
	}
	if err := validateSpecs(specs); err != nil {
		return nil, err
	}

	s := &Subscription{accounts: dir, log: generic.NopLogger{}, workers: 1}
	for _, opt := range opts {
		opt(s)
	}

	for _, spec := range specs {
		p := partner.New(generic.PartnerName(strings.TrimSpace(string(spec.Name))), dir, partner.WithLogger(s.log))
		s.stats = append(s.stats, p.Load(spec.Data))
		s.partners = append(s.partners, p)
	}
	return s, nil
}

// Compute is the single entry point: build a Subscription and report on it.
func Compute(accounts []generic.Account, specs []Spec, opts ...Option) (generic.Report, error) {
	s, err := New(accounts, specs, opts...)
	if err != nil {
		return generic.Report{}, err
	}
	return s.Subscriptions(), nil
}

func validateSpecs(specs []Spec) error {
	seen := make(map[generic.PartnerName]bool, len(specs))
	for i, spec := range specs {
		name := generic.PartnerName(strings.TrimSpace(string(spec.Name)))
		if name == "" {
			return fmt.Errorf("%w: partner %d has no name", generic.ErrInvalidSpec, i)
		}
		if seen[name] {
			return fmt.Errorf("%w: partner %s listed twice", generic.ErrInvalidSpec, name)
		}
		seen[name] = true
	}
	return nil
}

// Partners returns the partners in priority order.
func (s *Subscription) Partners() []*partner.Partner {
	out := make([]*partner.Partner, len(s.partners))
	copy(out, s.partners)
	return out
}

// LoadStats returns what each partner's Load did, in partner order.
func (s *Subscription) LoadStats() []partner.LoadStats {
	out := make([]partner.LoadStats, len(s.stats))
	copy(out, s.stats)
	return out
}

// =============================================================================
// FLATTEN
// =============================================================================

// Beneficiaries returns each beneficiary once. Canonical integer ids
// ("0", "42", never "0042") come first in ascending numeric order; every
// other id follows in order of first appearance across partners. When two
// accounts share a display name, the later one in this order is reported.
func (s *Subscription) Beneficiaries() []*generic.Beneficiary {
	seen := make(map[generic.AccountID]bool)
	var out []*generic.Beneficiary
	for _, p := range s.partners {
		for _, b := range p.Beneficiaries() {
			if !seen[b.ID] {
				seen[b.ID] = true
				out = append(out, b)
			}
		}
	}

	slices.SortStableFunc(out, func(a, b *generic.Beneficiary) int {
		ai, aok := integerID(a.ID)
		bi, bok := integerID(b.ID)
		switch {
		case aok && bok:
			return cmp.Compare(ai, bi)
		case aok:
			return -1
		case bok:
			return 1
		}
		return 0
	})
	return out
}

// integerID reports whether id is a canonical unsigned integer below
// 2^32-1: only digits, no leading zero, no sign.
func integerID(id generic.AccountID) (uint64, bool) {
	s := string(id)
	if s == "" || len(s) > 10 || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n >= math.MaxUint32 {
		return 0, false
	}
	return n, true
}

// Flatten collects snapshots of every offer held for id, partner by
// partner in priority order, each partner's offers in list order.
func (s *Subscription) Flatten(id generic.AccountID) []Record {
	var records []Record
	for pi, p := range s.partners {
		b, ok := p.Beneficiary(id)
		if !ok {
			continue
		}
		for oi, o := range b.Offers() {
			records = append(records, Record{
				Partner:      p.Name,
				PartnerIndex: pi,
				OfferIndex:   oi,
				Offer:        o.Clone(),
			})
		}
	}
	return records
}

// Resolve runs the validity pass for id and logs every invalidated offer.
func (s *Subscription) Resolve(id generic.AccountID) Resolution {
	res := Resolve(s.Flatten(id))
	s.logVerdicts(id, res)
	return res
}

func (s *Subscription) logVerdicts(id generic.AccountID, res Resolution) {
	name := s.displayName(id)
	for i, v := range res.Verdicts {
		if v == Valid {
			continue
		}
		rec, by := res.Records[i], res.Records[res.BlockedBy[i]]

		msg := "offer shadowed by an earlier offer"
		if v == Blocked {
			msg = "offer blocked by unrevoked offer from another partner"
		}
		s.log.Warnw(msg,
			"partner", string(rec.Partner),
			"beneficiary", name,
			"start", generic.FormatInstant(rec.Offer.Start()),
			"period", rec.Offer.Period(),
			"blocked_by", string(by.Partner),
		)
	}
}

func (s *Subscription) displayName(id generic.AccountID) string {
	if acc, ok := s.accounts.Lookup(id); ok {
		return acc.Name
	}
	return string(id)
}

// =============================================================================
// AGGREGATE
// =============================================================================

// Subscriptions reports, for every beneficiary seen by any partner, the
// positive valid days earned from each partner, keyed by display name.
func (s *Subscription) Subscriptions() generic.Report {
	beneficiaries := s.Beneficiaries()
	tallies := make([]generic.Tally, len(beneficiaries))

	if s.workers > 1 {
		var g errgroup.Group
		g.SetLimit(s.workers)
		for i, b := range beneficiaries {
			i, b := i, b
			g.Go(func() error {
				tallies[i] = s.Resolve(b.ID).Tally()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			s.log.Errorw("resolve beneficiaries", "error", err)
		}
	} else {
		for i, b := range beneficiaries {
			tallies[i] = s.Resolve(b.ID).Tally()
		}
	}

	report := generic.Report{Subscriptions: make(map[string]generic.Tally, len(beneficiaries))}
	for i, b := range beneficiaries {
		if _, dup := report.Subscriptions[b.Name]; dup {
			s.log.Warnw("beneficiary name reported twice, keeping the later entry",
				"beneficiary", b.Name, "account", string(b.ID))
		}
		report.Subscriptions[b.Name] = tallies[i]
	}
	return report
}
