package utilization

import (
	"context"
	"fmt"
	"strings"

	"github.com/whatscottcodes/paceutils/generic"
)

// =============================================================================
// FLAG COLUMNS
// =============================================================================

// Flag is a 0/1 indicator column of a stay table.
type Flag struct {
	Table  Table
	Column string
}

// ERFlag marks acute admissions that came through the ER.
var ERFlag = Flag{Table: Acute, Column: "er"}

// Flags lists every flag column the stay tables carry.
var Flags = []Flag{ERFlag}

var flagColumns = func() generic.AllowList {
	tables := map[string][]string{}
	for _, f := range Flags {
		tables[string(f.Table)] = append(tables[string(f.Table)], f.Column)
	}
	return generic.NewAllowList(tables)
}()

// ParseFlag returns ErrUnknownIdentifier unless table carries column as a
// flag.
func ParseFlag(table, column string) (Flag, error) {
	t, err := ParseTable(table)
	if err != nil {
		return Flag{}, err
	}
	if err := flagColumns.Columns(string(t), column); err != nil {
		return Flag{}, err
	}
	return Flag{Table: t, Column: column}, nil
}

func (f Flag) String() string { return string(f.Table) + "." + f.Column }

// FlaggedAdmissions counts admissions in p with f set to 1.
func (u *Utilization) FlaggedAdmissions(ctx context.Context, p generic.Period, f Flag) (int, error) {
	if _, err := ParseFlag(string(f.Table), f.Column); err != nil {
		return 0, err
	}
	return u.count(ctx, f.Table, `admission_date BETWEEN :start AND :end
		AND `+generic.QuoteIdent(f.Column)+` = 1`, p)
}

// FlaggedAdmissionsPercent is FlaggedAdmissions over Admissions.
func (u *Utilization) FlaggedAdmissionsPercent(ctx context.Context, p generic.Period, f Flag) (float64, error) {
	flagged, err := u.FlaggedAdmissions(ctx, p, f)
	if err != nil {
		return 0, err
	}
	admits, err := u.Admissions(ctx, p, f.Table)
	if err != nil {
		return 0, err
	}
	return generic.Percent(float64(flagged), float64(admits), 2), nil
}

func (u *Utilization) FlaggedAdmissionsPer100MM(ctx context.Context, p generic.Period, f Flag) (float64, error) {
	flagged, err := u.FlaggedAdmissions(ctx, p, f)
	if err != nil {
		return 0, err
	}
	return u.per100MM(ctx, p, float64(flagged))
}

// =============================================================================
// DEATH AFTER DISCHARGE
// =============================================================================

// DischargedBeforeDeath reports whether member had an acute discharge in
// the days before death, inclusive of both ends.
func (u *Utilization) DischargedBeforeDeath(ctx context.Context, member int, death generic.Date, days int) (bool, error) {
	window := generic.Period{Start: death.AddDays(-days), End: death}
	n, err := u.count(ctx, Acute, `member_id = :member
		AND discharge_date BETWEEN :start AND :end`, window, generic.Params{"member": member})
	return n > 0, err
}

// =============================================================================
// DIAGNOSES
// =============================================================================

// NoDescription stands in for a code with no ICD-10 description on file.
const NoDescription = "None"

// DxColumns are the diagnosis columns AddDxDescriptions describes by
// default.
var DxColumns = []string{"principal_dx", "admitting_dx"}

// DxDescriptions looks codes up in icd10_codes, ignoring the dot. Codes
// without a description map to NoDescription.
func (u *Utilization) DxDescriptions(ctx context.Context, codes []string) (map[string]string, error) {
	out := make(map[string]string, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	marks := make([]string, 0, len(codes))
	params := generic.Params{}
	for i, code := range codes {
		out[code] = NoDescription
		name := fmt.Sprintf("code%d", i)
		marks = append(marks, ":"+name)
		params[name] = undotted(code)
	}
	t, err := u.exec.Table(ctx, generic.NewQuery(`
		SELECT code, description FROM icd10_codes
		WHERE code IN (`+strings.Join(marks, ", ")+`)`, params))
	if err != nil {
		return nil, err
	}
	found := make(map[string]string, t.Len())
	for _, r := range t.Rows {
		found[generic.NewValue(r[0]).String()] = generic.NewValue(r[1]).String()
	}
	for _, code := range codes {
		if desc, ok := found[undotted(code)]; ok {
			out[code] = desc
		}
	}
	return out, nil
}

// AddDxDescriptions appends a <col>_desc column for each of cols present in
// t, DxColumns when cols is empty. NULL codes read as NoDescription.
func (u *Utilization) AddDxDescriptions(ctx context.Context, t *generic.Table, cols ...string) error {
	if len(cols) == 0 {
		cols = DxColumns
	}
	var present []int
	var codes []string
	for _, c := range cols {
		idx, err := t.ColumnIndex(c)
		if err != nil {
			continue
		}
		present = append(present, idx)
		for _, r := range t.Rows {
			if r[idx] != nil {
				codes = append(codes, generic.NewValue(r[idx]).String())
			}
		}
	}
	if len(present) == 0 {
		return nil
	}

	descs, err := u.DxDescriptions(ctx, unique(codes))
	if err != nil {
		return err
	}
	for _, idx := range present {
		t.Columns = append(t.Columns, t.Columns[idx]+"_desc")
	}
	for i, r := range t.Rows {
		for _, idx := range present {
			desc := NoDescription
			if r[idx] != nil {
				desc = descs[generic.NewValue(r[idx]).String()]
			}
			r = append(r, desc)
		}
		t.Rows[i] = r
	}
	return nil
}

// RelatedToCondition lists inpatient and ER-only visits admitted in p whose
// admit reason or principal diagnosis description mentions condition or,
// when given, abbr. Matching ignores case.
// Columns: visit_type, visit_id, member_id, first, last, admission_date,
// facility, admit_reason, principal_dx, principal_dx_desc.
func (u *Utilization) RelatedToCondition(ctx context.Context, p generic.Period, condition, abbr string) (*generic.Table, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return nil, fmt.Errorf("%w: condition is required", generic.ErrInvalidArgument)
	}
	params := generic.Params{"condition": contains(condition), "abbr": contains(condition)}
	if abbr = strings.TrimSpace(abbr); abbr != "" {
		params["abbr"] = contains(abbr)
	}

	matches := func(reason string) string {
		return `(LOWER(` + reason + `) LIKE :condition OR LOWER(` + reason + `) LIKE :abbr
			OR LOWER(ic.description) LIKE :condition OR LOWER(ic.description) LIKE :abbr)`
	}
	t, err := u.exec.Table(ctx, generic.PeriodQuery(`
		SELECT 'inpatient' AS visit_type, a.visit_id, a.member_id, pp.first, pp.last,
			a.admission_date, a.facility, a.admit_reason, a.principal_dx,
			ic.description AS principal_dx_desc
		FROM acute a
		JOIN ppts pp ON a.member_id = pp.member_id
		LEFT JOIN icd10_codes ic ON ic.code = REPLACE(a.principal_dx, '.', '')
		WHERE a.admission_date BETWEEN :start AND :end
		AND `+matches("a.admit_reason")+`
		UNION ALL
		SELECT 'er' AS visit_type, er.visit_id, er.member_id, pp.first, pp.last,
			er.admission_date, er.facility, NULL AS admit_reason, er.principal_dx,
			ic.description AS principal_dx_desc
		FROM er_only er
		JOIN ppts pp ON er.member_id = pp.member_id
		LEFT JOIN icd10_codes ic ON ic.code = REPLACE(er.principal_dx, '.', '')
		WHERE er.admission_date BETWEEN :start AND :end
		AND `+matches("er.principal_dx")+`
		ORDER BY admission_date, visit_type`, p, params), generic.WithDateColumns("admission_date"))
	if err != nil {
		return nil, err
	}
	for _, r := range t.Rows {
		if last := len(r) - 1; r[last] == nil {
			r[last] = NoDescription
		}
	}
	return t, nil
}

func undotted(code string) string { return strings.ReplaceAll(strings.TrimSpace(code), ".", "") }

func contains(s string) string { return "%" + strings.ToLower(s) + "%" }

func unique(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := ss[:0:0]
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// NURSING FACILITY
// =============================================================================

// Discharge dispositions recorded on skilled and custodial stays.
const (
	DispositionNursingFacility = "Nursing home or rehabilitation facility"
	DispositionHospital        = "Acute care hospital or psychiatric facility"
)

// NFDischargedToHigherLOC counts nursing facility stays overlapping p that
// ended in a higher level of care: a skilled stay discharged to a nursing
// facility and followed the same day by a custodial admission, or a skilled
// or custodial stay discharged to a hospital.
func (u *Utilization) NFDischargedToHigherLOC(ctx context.Context, p generic.Period) (int, error) {
	return generic.Count(ctx, u.exec, generic.PeriodQuery(`
		SELECT
			(SELECT COUNT(*) FROM skilled s
			WHERE (s.discharge_date >= :start OR s.discharge_date IS NULL)
			AND s.admission_date <= :end
			AND s.discharge_disposition = :to_nf
			AND EXISTS (
				SELECT 1 FROM custodial c
				WHERE c.member_id = s.member_id
				AND c.admission_date = s.discharge_date
			))
			+ (SELECT COUNT(*) FROM skilled WHERE `+InUtilization+` AND discharge_disposition = :to_hospital)
			+ (SELECT COUNT(*) FROM custodial WHERE `+InUtilization+` AND discharge_disposition = :to_hospital)`,
		p, generic.Params{"to_nf": DispositionNursingFacility, "to_hospital": DispositionHospital}))
}

// NFDischargedToHigherLOCPercent is NFDischargedToHigherLOC over skilled and
// custodial discharges in p.
func (u *Utilization) NFDischargedToHigherLOCPercent(ctx context.Context, p generic.Period) (float64, error) {
	higher, err := u.NFDischargedToHigherLOC(ctx, p)
	if err != nil {
		return 0, err
	}
	var discharges int
	for _, t := range []Table{Skilled, Custodial} {
		n, err := u.Discharges(ctx, p, t)
		if err != nil {
			return 0, err
		}
		discharges += n
	}
	return generic.Percent(float64(higher), float64(discharges), 2), nil
}
