package coupon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoupon_Clone(t *testing.T) {
	orig := &Coupon{
		Code:              "A",
		MaxDiscountAmount: dp("5"),
		UsageLimitPerUser: intp(2),
		Eligibility: &Eligibility{
			AllowedUserTiers:   []string{"GOLD"},
			ExcludedCategories: []string{},
			FirstOrderOnly:     boolp(true),
		},
	}

	c := orig.Clone()
	assert.Equal(t, orig, c)
	assert.NotNil(t, c.Eligibility.ExcludedCategories, "empty set stays present")
	assert.Nil(t, c.Eligibility.AllowedCountries, "absent set stays absent")

	*c.MaxDiscountAmount = d("9")
	*c.UsageLimitPerUser = 3
	c.Eligibility.AllowedUserTiers[0] = "SILVER"
	*c.Eligibility.FirstOrderOnly = false

	assert.Equal(t, "5", orig.MaxDiscountAmount.String())
	assert.Equal(t, 2, *orig.UsageLimitPerUser)
	assert.Equal(t, []string{"GOLD"}, orig.Eligibility.AllowedUserTiers)
	assert.True(t, *orig.Eligibility.FirstOrderOnly)

	bare := (&Coupon{Code: "B"}).Clone()
	require.NotNil(t, bare)
	assert.Nil(t, bare.Eligibility)
	assert.Nil(t, bare.UsageLimitPerUser)
}
