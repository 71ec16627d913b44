/*
Package partner ingests one partner's grant and revocation records.

PURPOSE:
  A Partner binds a partner name to the shared account directory and turns
  raw records into Beneficiary offers. Same-partner overlap resolution
  happens in generic.Beneficiary; this package only dispatches records and
  keeps one bad record from sinking the batch.

ISOLATION POLICY:
  Load never fails. For each record:
  - grant without a period:   warn, skip (never reaches Grant)
  - grant/revoke that errors: log error with partner + account, continue
  - a field of the wrong JSON type decodes to its literal text (Text) and
    then fails validation like any other bad value
  Grant and Revoke themselves DO return errors to direct callers.

ORDER:
  All grants are applied before any revocation, each in file order.
  Beneficiaries are remembered in first-grant order.

SEE ALSO:
  - generic/beneficiary.go: GrantOffer / RevokeOffer
  - subscription/: Cross-partner resolution over many partners
*/
package partner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/warp/subscription-engine/generic"
)

// =============================================================================
// SOURCE RECORDS - As supplied by the partner
// =============================================================================

// GrantRecord is one raw grant. Every field is kept as text so a missing
// or malformed value fails only this record, never the batch.
type GrantRecord struct {
	Number string      `json:"number"`
	Date   string      `json:"date"`
	Period json.Number `json:"period"`
}

func (r *GrantRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Number Text `json:"number"`
		Date   Text `json:"date"`
		Period Text `json:"period"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = GrantRecord{Number: string(raw.Number), Date: string(raw.Date), Period: raw.Period.Number()}
	return nil
}

type RevocationRecord struct {
	Number string `json:"number"`
	Date   string `json:"date"`
}

func (r *RevocationRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Number Text `json:"number"`
		Date   Text `json:"date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = RevocationRecord{Number: string(raw.Number), Date: string(raw.Date)}
	return nil
}

// Text is a record field as written: JSON strings are unquoted, null is
// empty, and any other value keeps its literal JSON text.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

// Number returns the text as a period candidate for ParsePeriod.
func (t Text) Number() json.Number {
	return json.Number(strings.TrimSpace(string(t)))
}

// Source is a partner's full data set.
type Source struct {
	Grants      []GrantRecord      `json:"grants"`
	Revocations []RevocationRecord `json:"revocations"`
}

// LoadStats counts what Load did with the records.
type LoadStats struct {
	Granted int
	Revoked int
	Skipped int
	Failed  int
}

// =============================================================================
// PARTNER
// =============================================================================

type Partner struct {
	Name     generic.PartnerName
	accounts *generic.Directory
	users    map[generic.AccountID]*generic.Beneficiary
	order    []generic.AccountID
	log      generic.Logger
}

// Option configures a Partner.
type Option func(*Partner)

// WithLogger routes ingestion warnings and errors to l.
func WithLogger(l generic.Logger) Option {
	return func(p *Partner) {
		if l != nil {
			p.log = l
		}
	}
}

func New(name generic.PartnerName, accounts *generic.Directory, opts ...Option) *Partner {
	p := &Partner{
		Name:     name,
		accounts: accounts,
		users:    make(map[generic.AccountID]*generic.Beneficiary),
		log:      generic.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Beneficiary returns the beneficiary for id, if this partner has one.
func (p *Partner) Beneficiary(id generic.AccountID) (*generic.Beneficiary, bool) {
	b, ok := p.users[id]
	return b, ok
}

// Beneficiaries returns every beneficiary in first-grant order.
func (p *Partner) Beneficiaries() []*generic.Beneficiary {
	out := make([]*generic.Beneficiary, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.users[id])
	}
	return out
}

// =============================================================================
// INGESTION
// =============================================================================

// Load applies every grant, then every revocation. Failing records are
// logged and skipped.
func (p *Partner) Load(src Source) LoadStats {
	var stats LoadStats

	for _, rec := range src.Grants {
		if missingPeriod(rec.Period) {
			p.log.Warnw("grant without any period",
				"partner", string(p.Name), "account", rec.Number)
			stats.Skipped++
			continue
		}
		if err := p.grantRecord(rec); err != nil {
			p.log.Errorw("grant failed",
				"partner", string(p.Name), "account", rec.Number, "op", "grant", "error", err)
			stats.Failed++
			continue
		}
		stats.Granted++
	}

	for _, rec := range src.Revocations {
		if err := p.revokeRecord(rec); err != nil {
			p.log.Errorw("revoke failed",
				"partner", string(p.Name), "account", rec.Number, "op", "revoke", "error", err)
			stats.Failed++
			continue
		}
		stats.Revoked++
	}

	return stats
}

func (p *Partner) grantRecord(rec GrantRecord) error {
	at, err := generic.ParseInstant(rec.Date)
	if err != nil {
		return err
	}
	period, err := ParsePeriod(rec.Period)
	if err != nil {
		return err
	}
	return p.Grant(generic.AccountID(rec.Number), at, period)
}

func (p *Partner) revokeRecord(rec RevocationRecord) error {
	at, err := generic.ParseInstant(rec.Date)
	if err != nil {
		return err
	}
	return p.Revoke(generic.AccountID(rec.Number), at)
}

// missingPeriod reports an absent or zero period. Both mean the partner
// granted nothing.
func missingPeriod(raw json.Number) bool {
	if raw == "" {
		return true
	}
	f, err := raw.Float64()
	return err == nil && f == 0
}

// ParsePeriod converts a raw period into a whole, non-negative month count.
// Integral floats such as "3.0" are accepted.
func ParsePeriod(raw json.Number) (int, error) {
	if raw == "" {
		return 0, &generic.ValidationError{Field: "period", Value: raw, Err: generic.ErrMissingPeriod}
	}
	if n, err := raw.Int64(); err == nil {
		if n < 0 || n > math.MaxInt32 {
			return 0, &generic.ValidationError{Field: "period", Value: raw, Err: generic.ErrInvalidPeriod}
		}
		return int(n), nil
	}
	f, err := raw.Float64()
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, &generic.ValidationError{Field: "period", Value: raw, Err: generic.ErrInvalidPeriod}
	}
	return int(f), nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Grant adds period months starting at 'at' to the beneficiary id, creating
// the beneficiary on first grant. Fails with AccountNotFoundError when id
// is not in the directory.
func (p *Partner) Grant(id generic.AccountID, at time.Time, period int) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	if at.IsZero() {
		return &generic.ValidationError{Field: "date", Value: at, Err: generic.ErrInvalidDate}
	}
	if period < 0 {
		return &generic.ValidationError{Field: "period", Value: period, Err: generic.ErrInvalidPeriod}
	}

	b, ok := p.users[id]
	if !ok {
		if b, err = p.addBeneficiary(id); err != nil {
			return err
		}
	}

	if err := b.GrantOffer(at, period); err != nil {
		return fmt.Errorf("partner (%s) grant %s: %w", p.Name, id, err)
	}
	return nil
}

// Revoke ends the beneficiary's offer at 'at'. Fails with
// BeneficiaryNotFoundError when this partner never granted to id.
func (p *Partner) Revoke(id generic.AccountID, at time.Time) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	if at.IsZero() {
		return &generic.ValidationError{Field: "date", Value: at, Err: generic.ErrInvalidDate}
	}

	b, ok := p.users[id]
	if !ok {
		return &generic.BeneficiaryNotFoundError{ID: id}
	}

	if err := b.RevokeOffer(at); err != nil {
		return fmt.Errorf("partner (%s) revoke %s: %w", p.Name, id, err)
	}
	return nil
}

func (p *Partner) addBeneficiary(id generic.AccountID) (*generic.Beneficiary, error) {
	account, ok := p.accounts.Lookup(id)
	if !ok {
		return nil, &generic.AccountNotFoundError{ID: id}
	}

	b := generic.NewBeneficiary(id, account.Name)
	p.users[id] = b
	p.order = append(p.order, id)
	return b, nil
}

func normalizeID(id generic.AccountID) (generic.AccountID, error) {
	trimmed := generic.AccountID(strings.TrimSpace(string(id)))
	if trimmed == "" {
		return "", &generic.ValidationError{Field: "id", Value: id, Err: generic.ErrInvalidID}
	}
	return trimmed, nil
}
