package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// BENEFICIARY - One account's offers under one partner
// =============================================================================

// Beneficiary owns the offers a single partner granted to one account.
//
// INVARIANT:
//   - GrantOffer never appends an offer that overlaps a stored one; it
//     merges into the first match instead. Scans are first-match, which
//     relies on stored offers not overlapping each other.
//
// Offers keep insertion order; a merge mutates the matched offer in place.
type Beneficiary struct {
	ID     AccountID
	Name   string
	offers []*Offer
}

func NewBeneficiary(id AccountID, name string) *Beneficiary {
	return &Beneficiary{ID: id, Name: name}
}

// Offers returns the stored offers in insertion order. The slice is a copy;
// the offers are not.
func (b *Beneficiary) Offers() []*Offer {
	out := make([]*Offer, len(b.offers))
	copy(out, b.offers)
	return out
}

// GrantOffer stacks a grant onto the first overlapping offer, or appends
// it as a new offer.
func (b *Beneficiary) GrantOffer(at time.Time, period int) error {
	candidate, err := NewOffer(at, period)
	if err != nil {
		return err
	}

	if existing := b.findOverlapped(candidate); existing != nil {
		if err := existing.Merge(candidate); err != nil {
			return fmt.Errorf("grant to %s: %w", b.ID, err)
		}
		return nil
	}

	b.offers = append(b.offers, candidate)
	return nil
}

// RevokeOffer truncates the first offer that strictly contains at.
// When none does (no offers, or at sits on or outside every boundary) a
// zero-period offer anchored at at is appended and revoked, so the
// revocation is still recorded.
func (b *Beneficiary) RevokeOffer(at time.Time) error {
	if existing := b.findContaining(at); existing != nil {
		return existing.Revoke(at)
	}

	marker, err := NewOffer(at, 0)
	if err != nil {
		return err
	}
	b.offers = append(b.offers, marker)
	return marker.Revoke(at)
}

func (b *Beneficiary) findOverlapped(candidate *Offer) *Offer {
	for _, o := range b.offers {
		if o.IsOverlapped(candidate) {
			return o
		}
	}
	return nil
}

func (b *Beneficiary) findContaining(at time.Time) *Offer {
	for _, o := range b.offers {
		if o.IsBetween(at) {
			return o
		}
	}
	return nil
}
