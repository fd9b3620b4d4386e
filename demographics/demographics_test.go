package demographics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatscottcodes/paceutils/demographics"
	"github.com/whatscottcodes/paceutils/enrollment"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/internal/testdb"
	"github.com/whatscottcodes/paceutils/store/schema"
)

func TestPayerMix(t *testing.T) {
	d := demographics.New(testdb.New(t))
	ctx := context.Background()

	tests := []struct {
		payer   enrollment.PayerType
		count   int
		percent float64
	}{
		{enrollment.PayerDual, 3, 50.0},
		{enrollment.PayerMedicareOnly, 1, 16.67},
		{enrollment.PayerMedicaidOnly, 1, 16.67},
		{enrollment.PayerPrivate, 1, 16.67},
	}
	for _, tt := range tests {
		t.Run(string(tt.payer), func(t *testing.T) {
			n, err := d.PayerCount(ctx, schema.DemoQ1, tt.payer)
			require.NoError(t, err)
			assert.Equal(t, tt.count, n)

			pct, err := d.PayerPercent(ctx, schema.DemoQ1, tt.payer)
			require.NoError(t, err)
			assert.Equal(t, tt.percent, pct)
		})
	}
}

func TestAge(t *testing.T) {
	d := demographics.New(testdb.New(t))
	ctx := context.Background()

	// GIVEN: Members 2 (61) and 4 (64) are under 65 on March 31
	below, err := d.AgeBelow65(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, 2, below)

	above, err := d.AgeAbove65(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, 4, above)

	pct, err := d.PercentAgeBelow65(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, 33.33, pct)

	avg, err := d.AvgAge(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.InDelta(t, 75.2, avg, 0.1)
}

func TestLanguageRaceGender(t *testing.T) {
	d := demographics.New(testdb.New(t))
	ctx := context.Background()

	female, err := d.FemaleCount(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, 4, female)

	pctFemale, err := d.PercentFemale(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, 66.67, pctFemale)

	nonEnglish, err := d.PercentPrimaryNonEnglish(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, 33.33, nonEnglish)

	nonWhite, err := d.PercentNonWhite(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, 50.0, nonWhite)
}

func TestLivingInCommunity(t *testing.T) {
	d := demographics.New(testdb.New(t))
	ctx := context.Background()

	// GIVEN: Member 6 entered custodial care on Feb 15 and has not left;
	// member 3's custodial stay ended in 2023
	n, err := d.LivingInCommunity(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	pct, err := d.LivingInCommunityPercent(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, 83.33, pct)
}

func TestAttendingDayCenter_ExcludesPRN(t *testing.T) {
	d := demographics.New(testdb.New(t))
	ctx := context.Background()

	n, err := d.AttendingDayCenter(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pct, err := d.AttendingDayCenterPercent(ctx, schema.DemoQ1)
	require.NoError(t, err)
	assert.Equal(t, 50.0, pct)
}

func TestWithDx(t *testing.T) {
	d := demographics.New(testdb.New(t))
	ctx := context.Background()

	// F32.9 and F41.1 are behavioral; F03.90 is dementia, not behavioral
	behavioral, err := d.WithDx(ctx, schema.DemoQ1, demographics.Behavioral)
	require.NoError(t, err)
	assert.Equal(t, 2, behavioral)

	pct, err := d.WithDxPercent(ctx, schema.DemoQ1, demographics.Behavioral)
	require.NoError(t, err)
	assert.Equal(t, 33.33, pct)

	dementia, err := d.WithDx(ctx, schema.DemoQ1, demographics.Dementia)
	require.NoError(t, err)
	assert.Equal(t, 2, dementia)

	none, err := d.WithDx(ctx, schema.DemoQ1, demographics.DxGroup{})
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestChronicConditions(t *testing.T) {
	// GIVEN: Member 1 has six chronic categories, I48.91 among them; members 2
	// and 5 have one each; dementia F03 and mood codes are not chronic
	d := demographics.New(testdb.New(t))
	ctx := context.Background()

	// WHEN: Counting over Q1
	atLeastOne, err := d.AtLeastOneChronicCondition(ctx, schema.DemoQ1)
	require.NoError(t, err)
	anyPct, err := d.AtLeastOneChronicConditionPercent(ctx, schema.DemoQ1)
	require.NoError(t, err)
	six, err := d.SixOrMoreChronicConditions(ctx, schema.DemoQ1)
	require.NoError(t, err)
	sixPct, err := d.SixOrMoreChronicConditionsPercent(ctx, schema.DemoQ1)
	require.NoError(t, err)
	seven, err := d.ChronicConditionsAtLeast(ctx, schema.DemoQ1, 7)
	require.NoError(t, err)

	// THEN: 3 of 6 have one, 1 of 6 has six, nobody has seven
	assert.Equal(t, 3, atLeastOne)
	assert.Equal(t, 50.0, anyPct)
	assert.Equal(t, 1, six)
	assert.Equal(t, 16.67, sixPct)
	assert.Zero(t, seven)
}

func TestChronicConditionsByPpt(t *testing.T) {
	d := demographics.New(testdb.New(t))

	table, err := d.ChronicConditionsByPpt(context.Background(), schema.DemoQ1)
	require.NoError(t, err)

	assert.Equal(t, []string{"member_id", "conditions"}, table.Columns)
	require.Equal(t, 3, table.Len())
	got := map[int]int{}
	for _, r := range table.Rows {
		got[generic.NewValue(r[0]).Int()] = generic.NewValue(r[1]).Int()
	}
	assert.Equal(t, map[int]int{1: 6, 2: 1, 5: 1}, got)
}

func TestPercentages_EmptyDatabaseIsZero(t *testing.T) {
	d := demographics.New(testdb.Empty(t))

	pct, err := d.PercentFemale(context.Background(), schema.DemoQ1)

	require.NoError(t, err)
	assert.Equal(t, 0.0, pct)
}

func TestPayerCount_RejectsUnknown(t *testing.T) {
	d := demographics.New(testdb.New(t))

	_, err := d.PayerCount(context.Background(), schema.DemoQ1, "charity")

	assert.ErrorIs(t, err, generic.ErrUnknownIdentifier)
}
