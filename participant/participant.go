// Package participant looks up a single participant's records.
package participant

import (
	"context"
	"fmt"
	"strings"

	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/utilization"
)

type Participant struct {
	exec generic.Executor
}

func New(exec generic.Executor) *Participant {
	return &Participant{exec: exec}
}

var stayDates = generic.WithDateColumns("admission_date", "discharge_date")

const stayColumns = `visit_id, member_id, admission_date, discharge_date, los,
	days_since_last_admission, facility, admit_reason, dow`

// Name returns the participant's first and last name, or
// ErrParticipantNotFound.
func (pt *Participant) Name(ctx context.Context, memberID int) (first, last string, err error) {
	rows, err := pt.exec.Rows(ctx, generic.NewQuery(`
		SELECT first, last FROM ppts WHERE member_id = :member_id`,
		generic.Params{"member_id": memberID}))
	if err != nil {
		return "", "", err
	}
	if len(rows) == 0 {
		return "", "", fmt.Errorf("%w: member %d", generic.ErrParticipantNotFound, memberID)
	}
	return generic.NewValue(rows[0][0]).String(), generic.NewValue(rows[0][1]).String(), nil
}

// Utilization lists the participant's stays in t admitted during p, oldest
// first.
func (pt *Participant) Utilization(ctx context.Context, p generic.Period, t utilization.Table, memberID int) (*generic.Table, error) {
	if _, err := utilization.ParseTable(string(t)); err != nil {
		return nil, err
	}
	return pt.exec.Table(ctx, generic.PeriodQuery(`
		SELECT `+stayColumns+`
		FROM `+string(t)+`
		WHERE admission_date BETWEEN :start AND :end
		AND member_id = :member_id
		ORDER BY admission_date, visit_id`, p, generic.Params{"member_id": memberID}), stayDates)
}

// Stays lists the participant's stays in every utilization table admitted
// during p, oldest first, with the source table in the first column.
func (pt *Participant) Stays(ctx context.Context, p generic.Period, memberID int) (*generic.Table, error) {
	parts := make([]string, len(utilization.Tables))
	for i, t := range utilization.Tables {
		parts[i] = `SELECT '` + string(t) + `' AS utilization, ` + stayColumns + `
			FROM ` + string(t) + `
			WHERE admission_date BETWEEN :start AND :end
			AND member_id = :member_id`
	}
	return pt.exec.Table(ctx, generic.PeriodQuery(
		strings.Join(parts, "\nUNION ALL\n")+"\nORDER BY admission_date, utilization",
		p, generic.Params{"member_id": memberID}), stayDates)
}
