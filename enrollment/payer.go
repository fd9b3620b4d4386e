package enrollment

import (
	"context"
	"fmt"
	"strings"

	"github.com/whatscottcodes/paceutils/generic"
)

// PayerType classifies a participant by their Medicare / Medicaid flags.
type PayerType string

const (
	PayerDual         PayerType = "dual"
	PayerMedicareOnly PayerType = "medicare_only"
	PayerMedicaidOnly PayerType = "medicaid_only"
	PayerPrivate      PayerType = "private_pay"
)

var Payers = []PayerType{PayerDual, PayerMedicareOnly, PayerMedicaidOnly, PayerPrivate}

// ParsePayer returns ErrUnknownIdentifier for anything not in Payers.
func ParsePayer(s string) (PayerType, error) {
	p := PayerType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Payers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: payer %q", generic.ErrUnknownIdentifier, s)
}

// Filter is the flag test over the alias e.
func (p PayerType) Filter() string {
	switch p {
	case PayerDual:
		return "e.medicare = 1 AND e.medicaid = 1"
	case PayerMedicareOnly:
		return "e.medicare = 1 AND e.medicaid = 0"
	case PayerMedicaidOnly:
		return "e.medicare = 0 AND e.medicaid = 1"
	default:
		return "e.medicare = 0 AND e.medicaid = 0"
	}
}

func (p PayerType) valid() error {
	_, err := ParsePayer(string(p))
	return err
}

// EnrolledByPayer counts new enrollments in p with the given payer.
func (e *Enrollment) EnrolledByPayer(ctx context.Context, p generic.Period, payer PayerType) (int, error) {
	if err := payer.valid(); err != nil {
		return 0, err
	}
	return generic.Count(ctx, e.exec, generic.PeriodQuery(`
		SELECT COUNT(e.member_id) FROM enrollment e
		WHERE e.enrollment_date BETWEEN :start AND :end
		AND `+payer.Filter(), p))
}

// DisenrolledByPayer counts disenrollments in p with the given payer.
func (e *Enrollment) DisenrolledByPayer(ctx context.Context, p generic.Period, payer PayerType) (int, error) {
	if err := payer.valid(); err != nil {
		return 0, err
	}
	return generic.Count(ctx, e.exec, generic.PeriodQuery(`
		SELECT COUNT(e.member_id) FROM enrollment e
		WHERE e.disenrollment_date BETWEEN :start AND :end
		AND `+payer.Filter(), p))
}
