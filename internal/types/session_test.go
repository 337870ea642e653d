package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestTastingRatingsMerge(t *testing.T) {
	t.Run("OverlaysNonNilCategories", func(t *testing.T) {
		r := TastingRatings{Aroma: intPtr(3), Taste: intPtr(4)}
		r.Merge(TastingRatings{Taste: intPtr(5), Finish: intPtr(2)})

		assert.Equal(t, 3, *r.Aroma)
		assert.Equal(t, 5, *r.Taste)
		assert.Equal(t, 2, *r.Finish)
		assert.Nil(t, r.Balance)
		assert.Nil(t, r.Value)
	})

	t.Run("EmptyMergeChangesNothing", func(t *testing.T) {
		r := TastingRatings{Aroma: intPtr(3)}
		r.Merge(TastingRatings{})
		assert.Equal(t, 3, *r.Aroma)
		assert.Nil(t, r.Taste)
	})
}

func TestAuthTokenExpired(t *testing.T) {
	now := time.Now()
	tok := AuthToken{UserID: "u1", ExpiresAt: now.Add(time.Hour)}

	assert.False(t, tok.Expired(now))
	assert.True(t, tok.Expired(now.Add(time.Hour)))
	assert.True(t, tok.Expired(now.Add(2*time.Hour)))
}
