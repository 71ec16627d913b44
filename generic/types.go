/*
Package generic provides the interval model behind free-day subscriptions.

PURPOSE:
  This package contains the partner-agnostic types and algorithms for
  time-bound grants ("offers"). A partner grants a beneficiary some months
  of free service starting at an instant; overlapping grants from the same
  partner stack, revocations truncate. Cross-partner resolution lives in the
  subscription package and builds on the types here.

KEY CONCEPTS IN THIS FILE (types.go):
  - AccountID / PartnerName: Type-safe identifiers
  - Account / Directory: The shared id -> display-name directory
  - Logger: The structured logging capability the core emits through
  - Report: The per-beneficiary, per-partner day tally

DESIGN PRINCIPLES:
  1. UTC only: every instant is normalized on the way in
  2. Derived fields are never stale: EndDate/Days recompute on mutation
  3. Fail fast on a single call; isolate failures only at ingestion

USAGE:
  offer, err := generic.NewOffer(generic.MustParseInstant("2015-02-21T15:10:01Z"), 2)
  offer.Days() // 59

SEE ALSO:
  - offer.go: Offer interval logic
  - beneficiary.go: Same-partner merge/revoke
  - errors.go: Error types
*/
package generic

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// AccountID is the account number shared between the directory and partners.
type AccountID string

// PartnerName identifies the partner that granted an offer.
type PartnerName string

// =============================================================================
// ACCOUNT DIRECTORY - Shared, read-only
// =============================================================================

type Account struct {
	Number AccountID `json:"number"`
	Name   string    `json:"name"`
}

// Directory is the ordered account directory shared by every partner.
type Directory struct {
	accounts []Account
	index    map[AccountID]int
}

// NewDirectory validates the directory shape: every account needs a
// non-blank number and name. The first entry wins for duplicate numbers.
func NewDirectory(accounts []Account) (*Directory, error) {
	d := &Directory{
		accounts: make([]Account, 0, len(accounts)),
		index:    make(map[AccountID]int, len(accounts)),
	}
	for i, a := range accounts {
		a.Number = AccountID(strings.TrimSpace(string(a.Number)))
		a.Name = strings.TrimSpace(a.Name)
		if a.Number == "" {
			return nil, fmt.Errorf("%w: account %d has no number", ErrInvalidDirectory, i)
		}
		if a.Name == "" {
			return nil, fmt.Errorf("%w: account %s has no name", ErrInvalidDirectory, a.Number)
		}
		if _, dup := d.index[a.Number]; !dup {
			d.index[a.Number] = len(d.accounts)
		}
		d.accounts = append(d.accounts, a)
	}
	return d, nil
}

// Lookup returns the account with the given number.
func (d *Directory) Lookup(id AccountID) (Account, bool) {
	if d == nil {
		return Account{}, false
	}
	i, ok := d.index[id]
	if !ok {
		return Account{}, false
	}
	return d.accounts[i], true
}

// Len returns the number of directory entries.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.accounts)
}

// =============================================================================
// LOGGER - Structured logging capability
// =============================================================================

// Logger is what the core emits warnings and errors through.
// *zap.SugaredLogger satisfies it.
//
// keysAndValues are alternating key/value pairs:
//
//	log.Warnw("offer shadowed", "partner", "Amazecom", "beneficiary", "Jane")
type Logger interface {
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Warnw(string, ...any)  {}
func (NopLogger) Errorw(string, ...any) {}

// =============================================================================
// REPORT - Output of one computation pass
// =============================================================================

// Tally maps partner name to free days earned from that partner.
type Tally map[PartnerName]int

// Report is keyed by beneficiary display name. Every beneficiary seen by
// any partner is present, possibly with an empty Tally.
type Report struct {
	Subscriptions map[string]Tally `json:"subscriptions"`
}

// Names returns the beneficiary names in sorted order.
func (r Report) Names() []string {
	names := make([]string, 0, len(r.Subscriptions))
	for name := range r.Subscriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
