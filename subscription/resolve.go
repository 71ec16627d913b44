package subscription

import (
	"sort"

	"github.com/warp/subscription-engine/generic"
)

// =============================================================================
// RESOLUTION RECORDS
// =============================================================================

// Record is one offer as seen by a resolution pass: a snapshot of the
// stored offer plus the partner it came from. The stored offer itself is
// never tagged or flagged.
type Record struct {
	Partner      generic.PartnerName
	PartnerIndex int // position of the partner in configured order
	OfferIndex   int // position within that partner's offer list
	Offer        *generic.Offer
}

// Verdict is what the validity pass decided for a record.
type Verdict int

const (
	// Valid offers count toward their partner's total.
	Valid Verdict = iota
	// Shadowed offers start strictly inside the current offer.
	Shadowed
	// Blocked offers come from another partner while the current offer
	// is still unrevoked.
	Blocked
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Shadowed:
		return "shadowed"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of one validity pass for one beneficiary.
// Records are in resolution order; Verdicts and BlockedBy are parallel
// to Records. BlockedBy[i] is the index of the current record that
// invalidated record i, or -1.
type Resolution struct {
	Records   []Record
	Verdicts  []Verdict
	BlockedBy []int
}

// =============================================================================
// VALIDITY PASS
// =============================================================================

// Resolve runs the cross-partner validity pass over the flattened records
// of one beneficiary. It does not modify its input.
//
// Records are stable-sorted by start; ties keep flatten order (partner
// priority, then in-partner order). Walking in that order with a 'current'
// record, starting at the first:
//
//  1. next starts strictly inside current  -> Shadowed, current stays
//  2. next is from another partner and
//     current is not revoked               -> Blocked, current stays
//  3. otherwise                            -> Valid, current = next
//
// Rule 2 holds even when next starts after current has ended: an unrevoked
// offer keeps priority for its partner until it is revoked.
func Resolve(records []Record) Resolution {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offer.Start().Before(sorted[j].Offer.Start())
	})

	res := Resolution{
		Records:   sorted,
		Verdicts:  make([]Verdict, len(sorted)),
		BlockedBy: make([]int, len(sorted)),
	}
	if len(sorted) == 0 {
		return res
	}
	res.BlockedBy[0] = -1

	current := 0
	for i := 1; i < len(sorted); i++ {
		cur, next := sorted[current], sorted[i]

		switch {
		case cur.Offer.IsBetween(next.Offer.Start()):
			res.Verdicts[i] = Shadowed
			res.BlockedBy[i] = current
		case next.Partner != cur.Partner && !cur.Offer.IsRevoked():
			res.Verdicts[i] = Blocked
			res.BlockedBy[i] = current
		default:
			res.Verdicts[i] = Valid
			res.BlockedBy[i] = -1
			current = i
		}
	}
	return res
}

// Tally sums days of valid records per partner. Partners whose valid days
// do not add up to a positive number are left out.
func (r Resolution) Tally() generic.Tally {
	sums := make(map[generic.PartnerName]int)
	for i, rec := range r.Records {
		if r.Verdicts[i] == Valid {
			sums[rec.Partner] += rec.Offer.Days()
		}
	}

	tally := make(generic.Tally, len(sums))
	for name, days := range sums {
		if days > 0 {
			tally[name] = days
		}
	}
	return tally
}

// Valid returns the records that survived the pass.
func (r Resolution) Valid() []Record {
	var out []Record
	for i, rec := range r.Records {
		if r.Verdicts[i] == Valid {
			out = append(out, rec)
		}
	}
	return out
}
