package generic_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/whatscottcodes/paceutils/generic"
)

func TestRatio_ZeroDenominatorIsZero(t *testing.T) {
	assert.Equal(t, 0.0, generic.Ratio(5, 0, 2))
	assert.Equal(t, 0.0, generic.Percent(5, 0, 2))
	assert.Equal(t, 0.0, generic.Ratio(math.NaN(), 2, 2))
}

func TestRatio_RoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 0.33, generic.Ratio(1, 3, 2))
	assert.Equal(t, 66.67, generic.Percent(2, 3, 2))
	assert.Equal(t, 12.5, generic.Percent(1, 8, 2))
	assert.Equal(t, 0.13, generic.Round(0.125, 2))
	assert.Equal(t, -0.13, generic.Round(-0.125, 2))
	assert.Equal(t, 0.0, generic.Round(math.Inf(1), 2))
}

func TestErrors_Classification(t *testing.T) {
	driverErr := errors.New("no such table: enrolment")
	qe := &generic.QueryError{Op: "scalar", SQL: "SELECT 1", Err: driverErr}
	assert.ErrorIs(t, qe, generic.ErrQuery)
	assert.ErrorIs(t, qe, driverErr)
	assert.False(t, generic.IsConnectivity(qe))

	ce := &generic.ConnectivityError{Driver: "sqlite3", Err: driverErr}
	assert.True(t, generic.IsConnectivity(ce))
	assert.Contains(t, ce.Error(), "sqlite3")
	assert.False(t, generic.IsClientError(ce))
}
