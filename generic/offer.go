/*
offer.go - A single grant of free subscription days

PURPOSE:
  An Offer is the interval [Start, End) a partner grants a beneficiary.
  End is Start advanced by Period calendar months (UTC); Days is the whole
  day span between them. Both are derived and recomputed on every
  mutation, so they are never observed stale.

LIFECYCLE:
  NewOffer:  created on grant, or on a revocation that hit no live offer
  Merge:     stacks another overlapping grant (periods add up)
  Revoke:    freezes End at the revocation instant

MERGE IS ADDITIVE:
  A (Feb 21, 2 months) merged with B (Mar 25, 3 months) is
  (Feb 21, 5 months) -> ends Jul 21, not at B's end of Jun 25.
  Merging stacks entitlements; it does not take the calendar union.

REVOKE BEFORE START:
  Revoking at an instant before Start leaves End < Start and Days negative.
  That is kept as-is; report totals only count positive sums.

SEE ALSO:
  - beneficiary.go: Decides when to merge and what to revoke
  - time.go: AddMonths, DaysBetween
*/
package generic

import (
	"fmt"
	"time"
)

// Offer is one interval of free days. The zero value is not usable; build
// offers with NewOffer.
type Offer struct {
	start   time.Time
	period  int
	end     time.Time
	days    int
	revoked bool
}

// NewOffer validates its inputs and computes End and Days.
func NewOffer(start time.Time, period int) (*Offer, error) {
	if start.IsZero() {
		return nil, &ValidationError{Field: "startDate", Value: start, Err: ErrInvalidDate}
	}
	if period < 0 {
		return nil, &ValidationError{Field: "period", Value: period, Err: ErrInvalidPeriod}
	}

	o := &Offer{start: start.UTC(), period: period}
	o.recalculateEnd()
	return o, nil
}

func (o *Offer) Start() time.Time { return o.start }
func (o *Offer) End() time.Time   { return o.end }
func (o *Offer) Period() int      { return o.period }
func (o *Offer) Days() int        { return o.days }
func (o *Offer) IsRevoked() bool  { return o.revoked }

// IsOverlapped reports whether the two intervals share any instant.
// Touching boundaries overlap. Symmetric.
func (o *Offer) IsOverlapped(other *Offer) bool {
	return !(other.end.Before(o.start) || o.end.Before(other.start))
}

// Merge folds other into o: the earlier start wins and the periods add.
// Returns ErrOffersDisjoint, leaving o untouched, if they do not overlap.
func (o *Offer) Merge(other *Offer) error {
	if !o.IsOverlapped(other) {
		return fmt.Errorf("merge %s with %s: %w", o, other, ErrOffersDisjoint)
	}

	if other.start.Before(o.start) {
		o.start = other.start
	}
	o.period += other.period
	o.recalculateEnd()
	return nil
}

// Revoke ends the offer at the given instant. Start and Period stay.
func (o *Offer) Revoke(at time.Time) error {
	if at.IsZero() {
		return &ValidationError{Field: "date", Value: at, Err: ErrInvalidDate}
	}
	o.end = at.UTC()
	o.revoked = true
	o.recalculateDays()
	return nil
}

// IsBetween reports whether at lies strictly inside (Start, End).
func (o *Offer) IsBetween(at time.Time) bool {
	return at.After(o.start) && at.Before(o.end)
}

// IsAfterExpiry reports whether at is on or after End.
func (o *Offer) IsAfterExpiry(at time.Time) bool {
	return !at.Before(o.end)
}

// Clone returns an independent copy.
func (o *Offer) Clone() *Offer {
	c := *o
	return &c
}

func (o *Offer) String() string {
	return fmt.Sprintf("[%s, %s) %dmo", FormatInstant(o.start), FormatInstant(o.end), o.period)
}

func (o *Offer) recalculateEnd() {
	o.end = AddMonths(o.start, o.period)
	o.recalculateDays()
}

func (o *Offer) recalculateDays() {
	o.days = DaysBetween(o.start, o.end)
}
