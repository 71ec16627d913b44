package subscription_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/subscription-engine/generic"
	"github.com/warp/subscription-engine/subscription"
)

func record(t *testing.T, partnerName string, start string, period int) subscription.Record {
	t.Helper()
	o, err := generic.NewOffer(at(start), period)
	require.NoError(t, err)
	return subscription.Record{Partner: generic.PartnerName(partnerName), Offer: o}
}

func revoked(t *testing.T, r subscription.Record, when string) subscription.Record {
	t.Helper()
	require.NoError(t, r.Offer.Revoke(at(when)))
	return r
}

func TestResolve_Empty(t *testing.T) {
	res := subscription.Resolve(nil)

	assert.Empty(t, res.Records)
	assert.Empty(t, res.Tally())
}

func TestResolve_SortsStablyByStart(t *testing.T) {
	// Flatten order: X(Mar), X(Jan), Y(Jan). After sorting the two January
	// offers keep their flatten order, so X(Jan) becomes current.
	records := []subscription.Record{
		record(t, "X", "2015-03-01T00:00:00Z", 1),
		record(t, "X", "2015-01-01T00:00:00Z", 1),
		record(t, "Y", "2015-01-01T00:00:00Z", 1),
	}

	res := subscription.Resolve(records)

	require.Len(t, res.Records, 3)
	assert.Equal(t, at("2015-01-01T00:00:00Z"), res.Records[0].Offer.Start())
	assert.Equal(t, generic.PartnerName("X"), res.Records[0].Partner)
	assert.Equal(t, generic.PartnerName("Y"), res.Records[1].Partner)
	assert.Equal(t, []subscription.Verdict{subscription.Valid, subscription.Blocked, subscription.Valid}, res.Verdicts)
	assert.Equal(t, []int{-1, 0, -1}, res.BlockedBy)

	// input untouched
	assert.Equal(t, at("2015-03-01T00:00:00Z"), records[0].Offer.Start())
}

func TestResolve_ShadowedDoesNotAdvanceCurrent(t *testing.T) {
	// X: Jan 1 -> Jul 1 (unrevoked)
	// X: Feb 1 (inside X)  shadowed even though same partner
	// X: Aug 1             valid, same partner
	records := []subscription.Record{
		record(t, "X", "2015-01-01T00:00:00Z", 6),
		record(t, "X", "2015-02-01T00:00:00Z", 1),
		record(t, "X", "2015-08-01T00:00:00Z", 1),
	}

	res := subscription.Resolve(records)

	assert.Equal(t, []subscription.Verdict{subscription.Valid, subscription.Shadowed, subscription.Valid}, res.Verdicts)
	assert.Equal(t, generic.Tally{"X": 181 + 31}, res.Tally())
}

func TestResolve_RevokedCurrentYieldsToOtherPartner(t *testing.T) {
	records := []subscription.Record{
		revoked(t, record(t, "X", "2015-01-01T00:00:00Z", 3), "2015-01-15T00:00:00Z"),
		record(t, "Y", "2015-01-10T00:00:00Z", 1), // inside revoked X: still shadowed
		record(t, "Y", "2015-02-01T00:00:00Z", 1), // X revoked: stands
		record(t, "X", "2015-03-15T00:00:00Z", 1), // Y unrevoked: blocked
	}

	res := subscription.Resolve(records)

	assert.Equal(t, []subscription.Verdict{
		subscription.Valid, subscription.Shadowed, subscription.Valid, subscription.Blocked,
	}, res.Verdicts)
	assert.Equal(t, []int{-1, 0, -1, 2}, res.BlockedBy)
	assert.Equal(t, generic.Tally{"X": 14, "Y": 28}, res.Tally())
	assert.Len(t, res.Valid(), 2)
}

func TestResolve_NegativeDaysOmittedFromTally(t *testing.T) {
	// A revocation before the start leaves -10 days; the partner is
	// dropped rather than reported with a negative total.
	records := []subscription.Record{
		revoked(t, record(t, "X", "2015-02-21T00:00:00Z", 2), "2015-02-11T00:00:00Z"),
	}

	res := subscription.Resolve(records)

	assert.Equal(t, -10, res.Records[0].Offer.Days())
	assert.Equal(t, subscription.Valid, res.Verdicts[0])
	assert.Empty(t, res.Tally())
}

func TestResolve_IsPure(t *testing.T) {
	records := []subscription.Record{
		record(t, "X", "2015-01-01T00:00:00Z", 3),
		record(t, "Y", "2015-02-01T00:00:00Z", 2),
	}

	first := subscription.Resolve(records)
	second := subscription.Resolve(records)

	assert.Equal(t, first, second)
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "valid", subscription.Valid.String())
	assert.Equal(t, "shadowed", subscription.Shadowed.String())
	assert.Equal(t, "blocked", subscription.Blocked.String())
	assert.Equal(t, "unknown", subscription.Verdict(42).String())
}
