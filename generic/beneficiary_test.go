package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/subscription-engine/generic"
)

const (
	mar21 = "2015-03-21T15:10:01+00:00"
	dec21 = "2015-12-21T15:10:01+00:00"
)

// assertNoOverlap checks the stored offers never overlap each other.
func assertNoOverlap(t *testing.T, b *generic.Beneficiary) {
	t.Helper()
	offers := b.Offers()
	for i := range offers {
		for j := i + 1; j < len(offers); j++ {
			assert.False(t, offers[i].IsOverlapped(offers[j]),
				"offers %d (%s) and %d (%s) overlap", i, offers[i], j, offers[j])
		}
	}
}

// =============================================================================
// GRANT
// =============================================================================

func TestBeneficiary_GrantOffer_MergesOrAppends(t *testing.T) {
	b := generic.NewBeneficiary("1", "user 1")

	// First grant is stored as-is
	require.NoError(t, b.GrantOffer(at(feb21), 2))
	require.Len(t, b.Offers(), 1)
	assert.Equal(t, at(feb21), b.Offers()[0].Start())
	assert.Equal(t, at("2015-04-21T15:10:01Z"), b.Offers()[0].End())
	assertNoOverlap(t, b)

	// Overlapping grant stacks onto it
	require.NoError(t, b.GrantOffer(at(mar21), 3))
	require.Len(t, b.Offers(), 1)
	assert.Equal(t, at(feb21), b.Offers()[0].Start())
	assert.Equal(t, at("2015-07-21T15:10:01Z"), b.Offers()[0].End())
	assertNoOverlap(t, b)

	// Disjoint grant is appended
	require.NoError(t, b.GrantOffer(at(dec21), 1))
	require.Len(t, b.Offers(), 2)
	assert.Equal(t, at(dec21), b.Offers()[1].Start())
	assert.Equal(t, at("2016-01-21T15:10:01Z"), b.Offers()[1].End())
	assertNoOverlap(t, b)
}

func TestBeneficiary_GrantOffer_FirstMatchKeepsPosition(t *testing.T) {
	// GIVEN: two disjoint offers, Jan and Jun
	// WHEN:  a grant overlapping only the second one arrives
	// THEN:  the second offer absorbs it in place; order is unchanged
	b := generic.NewBeneficiary("1", "user 1")
	require.NoError(t, b.GrantOffer(at("2015-01-01T00:00:00Z"), 1))
	require.NoError(t, b.GrantOffer(at("2015-06-01T00:00:00Z"), 1))

	require.NoError(t, b.GrantOffer(at("2015-06-15T00:00:00Z"), 2))

	offers := b.Offers()
	require.Len(t, offers, 2)
	assert.Equal(t, 1, offers[0].Period())
	assert.Equal(t, at("2015-06-01T00:00:00Z"), offers[1].Start())
	assert.Equal(t, 3, offers[1].Period())
	assertNoOverlap(t, b)
}

func TestBeneficiary_GrantOffer_InvalidInputLeavesOffersAlone(t *testing.T) {
	b := generic.NewBeneficiary("1", "user 1")
	require.NoError(t, b.GrantOffer(at(feb21), 2))

	err := b.GrantOffer(at(mar21), -3)

	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
	require.Len(t, b.Offers(), 1)
	assert.Equal(t, 2, b.Offers()[0].Period())
}

// =============================================================================
// REVOKE
// =============================================================================

func TestBeneficiary_RevokeOffer(t *testing.T) {
	tests := []struct {
		name        string
		revokeAt    string
		wantCount   int
		wantEnd0    string
		wantRevoke0 bool
	}{
		{
			name:        "inside offer truncates it",
			revokeAt:    "2015-03-21T15:10:01Z",
			wantCount:   1,
			wantEnd0:    "2015-03-21T15:10:01Z",
			wantRevoke0: true,
		},
		{
			name:      "before offer adds marker",
			revokeAt:  "2015-01-21T15:10:01Z",
			wantCount: 2,
			wantEnd0:  "2015-04-21T15:10:01Z",
		},
		{
			name:      "after offer adds marker",
			revokeAt:  "2015-04-22T15:10:01Z",
			wantCount: 2,
			wantEnd0:  "2015-04-21T15:10:01Z",
		},
		{
			name:      "on start boundary adds marker",
			revokeAt:  feb21,
			wantCount: 2,
			wantEnd0:  "2015-04-21T15:10:01Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := generic.NewBeneficiary("1", "user 1")
			require.NoError(t, b.GrantOffer(at(feb21), 2))

			require.NoError(t, b.RevokeOffer(at(tt.revokeAt)))

			offers := b.Offers()
			require.Len(t, offers, tt.wantCount)
			assert.Equal(t, at(feb21), offers[0].Start())
			assert.Equal(t, at(tt.wantEnd0), offers[0].End())
			assert.Equal(t, tt.wantRevoke0, offers[0].IsRevoked())

			if tt.wantCount == 2 {
				marker := offers[1]
				assert.Equal(t, at(tt.revokeAt), marker.Start())
				assert.Equal(t, at(tt.revokeAt), marker.End())
				assert.Equal(t, 0, marker.Days())
				assert.Equal(t, 0, marker.Period())
				assert.True(t, marker.IsRevoked())
			}
		})
	}
}

func TestBeneficiary_RevokeOffer_InsideReportsDays(t *testing.T) {
	b := generic.NewBeneficiary("1", "user 1")
	require.NoError(t, b.GrantOffer(at(feb21), 2))

	require.NoError(t, b.RevokeOffer(at(mar21)))

	assert.Equal(t, 28, b.Offers()[0].Days())
	assertNoOverlap(t, b)
}

func TestBeneficiary_RevokeOffer_NoOffers_RecordsMarker(t *testing.T) {
	b := generic.NewBeneficiary("1", "user 1")

	require.NoError(t, b.RevokeOffer(at(feb21)))

	offers := b.Offers()
	require.Len(t, offers, 1)
	assert.True(t, offers[0].IsRevoked())
	assert.Equal(t, 0, offers[0].Days())
}

func TestBeneficiary_Offers_ReturnsCopy(t *testing.T) {
	b := generic.NewBeneficiary("1", "user 1")
	require.NoError(t, b.GrantOffer(at(feb21), 2))

	offers := b.Offers()
	offers[0] = nil

	assert.NotNil(t, b.Offers()[0])
}
