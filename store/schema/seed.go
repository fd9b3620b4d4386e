package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/store"
)

// =============================================================================
// DEMO FIXTURES
// =============================================================================
//
// Eight participants on three teams, reported over Q1 2024:
//
//   id team    enrolled    disenrolled        payer
//   1  Central 2020-01-01  -                  dual
//   2  East    2021-06-01  -                  medicare only
//   3  Central 2022-03-01  2024-02-15 death   dual
//   4  East    2023-11-01  2024-01-20 vol.    medicaid only
//   5  North   2024-01-01  -                  dual
//   6  Central 2024-02-01  -                  private pay
//   7  North   2019-05-01  2023-12-31 death   dual
//   8  East    2024-04-01  -                  dual
//
// Q1 2024: census 6, enrolled 2, disenrolled 2, member months 14.
//
// Centers: 1, 3, 5 and 7 attend Providence; 4, 6 and 8 attend Warwick.
// 2 moved from Providence to Warwick on 2023-07-01.

// DemoQ1 is the period the fixtures are written around.
var DemoQ1 = generic.Period{
	Start: generic.NewDate(2024, 1, 1),
	End:   generic.NewDate(2024, 3, 31),
}

// DemoTeams are the teams active during DemoQ1, sorted.
var DemoTeams = []string{"Central", "East", "North"}

// DemoCenters are the centers active during DemoQ1, sorted.
var DemoCenters = []string{"Providence", "Warwick"}

type fixture struct {
	table string
	cols  []string
	rows  [][]any
}

var demo = []fixture{
	{
		table: "ppts",
		cols:  []string{"member_id", "first", "last"},
		rows: [][]any{
			{1, "Alice", "Anders"},
			{2, "Bruno", "Baptiste"},
			{3, "Clara", "Costa"},
			{4, "Dmitri", "Dunn"},
			{5, "Elena", "Estrada"},
			{6, "Fatima", "Farouk"},
			{7, "George", "Gill"},
			{8, "Hiro", "Hayashi"},
		},
	},
	{
		table: "enrollment",
		cols:  []string{"member_id", "enrollment_date", "disenrollment_date", "disenroll_type", "disenroll_reason", "medicare", "medicaid"},
		rows: [][]any{
			{1, "2020-01-01", nil, nil, nil, 1, 1},
			{2, "2021-06-01", nil, nil, nil, 1, 0},
			{3, "2022-03-01", "2024-02-15", "Deceased", "Deceased", 1, 1},
			{4, "2023-11-01", "2024-01-20", "Voluntary", "Moved", 0, 1},
			{5, "2024-01-01", nil, nil, nil, 1, 1},
			{6, "2024-02-01", nil, nil, nil, 0, 0},
			{7, "2019-05-01", "2023-12-31", "Deceased", "Deceased", 1, 1},
			{8, "2024-04-01", nil, nil, nil, 1, 1},
		},
	},
	{
		table: "demographics",
		cols:  []string{"member_id", "dob", "gender", "language", "race"},
		rows: [][]any{
			{1, "1940-01-01", 1, "English", "Caucasian/White"},
			{2, "1962-06-15", 0, "Spanish", "Hispanic"},
			{3, "1935-03-01", 1, "English", "Black or African American"},
			{4, "1960-01-01", 0, "English", "Caucasian/White"},
			{5, "1950-07-01", 1, "Spanish", "Caucasian/White"},
			{6, "1945-12-31", 1, "English", "Asian"},
			{7, "1930-01-01", 0, "English", "Caucasian/White"},
			{8, "1955-05-05", 0, "English", "Caucasian/White"},
		},
	},
	{
		table: "monthly_census",
		cols:  []string{"month", "total"},
		rows:  demoCensus(),
	},
	{
		table: "teams",
		cols:  []string{"member_id", "team", "start_date", "end_date"},
		rows: [][]any{
			{1, "Central", "2020-01-01", nil},
			{2, "East", "2021-06-01", nil},
			{3, "Central", "2022-03-01", "2024-02-15"},
			{4, "East", "2023-11-01", "2024-01-20"},
			{5, "North", "2024-01-01", nil},
			{6, "Central", "2024-02-01", nil},
			{7, "North", "2019-05-01", "2023-12-31"},
			{8, "East", "2024-04-01", nil},
		},
	},
	{
		table: "centers",
		cols:  []string{"member_id", "center", "start_date", "end_date"},
		rows: [][]any{
			{1, "Providence", "2020-01-01", nil},
			{2, "Providence", "2021-06-01", "2023-06-30"},
			{2, "Warwick", "2023-07-01", nil},
			{3, "Providence", "2022-03-01", "2024-02-15"},
			{4, "Warwick", "2023-11-01", "2024-01-20"},
			{5, "Providence", "2024-01-01", nil},
			{6, "Warwick", "2024-02-01", nil},
			{7, "Providence", "2019-05-01", "2023-12-31"},
			{8, "Warwick", "2024-04-01", nil},
		},
	},
	{
		table: "addresses",
		cols:  []string{"member_id", "address", "city", "lat", "lon", "active"},
		rows: [][]any{
			{1, "12 Elm St", "Providence", 41.824, -71.412, 1},
			{2, "40 Broad St", "Providence", 41.812, -71.418, 1},
			{3, "7 Post Rd", "Warwick", 41.700, -71.417, 1},
			{4, "88 Park Ave", "Cranston", 41.779, -71.437, 1},
			{5, "3 Hope St", "Providence", 41.830, -71.395, 1},
			{6, "19 Main St", "Warwick", 41.703, -71.420, 1},
			{7, "55 Admiral St", "Providence", 41.842, -71.430, 1},
			{8, "101 Reservoir Ave", "Cranston", 41.790, -71.440, 1},
		},
	},
	{
		table: "referrals",
		cols:  []string{"referral_id", "referral_date", "enrollment_effective", "referral_source"},
		rows: [][]any{
			{1, "2023-09-15", "2023-11-01", "Hospital"},
			{2, "2023-11-10", "2024-01-01", "Hospital"},
			{3, "2023-12-20", "2024-02-01", "Physician"},
			{4, "2024-01-05", nil, "Hospital"},
			{5, "2024-02-10", nil, "Family"},
			{6, "2024-03-01", "2024-04-01", "Physician"},
			{7, "2024-03-15", nil, "Hospital"},
		},
	},
	{
		table: "acute",
		cols:  visitCols("er", "principal_dx"),
		rows: [][]any{
			{1, 1, "2024-01-05", "2024-01-10", 5, 1, "J18.9", nil, "RIH", "Pneumonia", "Friday"},
			{2, 1, "2024-01-25", "2024-02-01", 7, 0, "I50.9", 15, "RIH", "CHF", "Thursday"},
			{3, 3, "2024-02-03", "2024-02-10", 7, 1, "A41.9", nil, "Miriam", "Sepsis", "Saturday"},
			{4, 2, "2023-12-28", "2024-01-03", 6, 1, "W19.XXXA", nil, "Kent", "Fall", "Thursday"},
			{5, 5, "2024-03-30", nil, nil, 0, "J44.1", nil, "RIH", "COPD", "Saturday"},
			{6, 7, "2023-06-01", "2023-06-05", 4, 0, "N39.0", nil, "Kent", "UTI", "Thursday"},
		},
	},
	{
		table: "psych",
		cols:  visitCols(),
		rows: [][]any{
			{1, 2, "2023-08-01", "2023-08-10", 9, nil, "Butler", "Depression", "Tuesday"},
		},
	},
	{
		table: "custodial",
		cols:  visitCols("discharge_disposition"),
		rows: [][]any{
			{1, 6, "2024-02-15", nil, nil, nil, nil, "Oakland Grove", "Long term care", "Thursday"},
			{2, 3, "2023-05-01", "2023-08-01", 92, "Acute care hospital or psychiatric facility", nil, "Oakland Grove", "Long term care", "Monday"},
			{3, 7, "2022-01-01", "2022-02-01", 31, "Home", nil, "Hallworth", "Long term care", "Saturday"},
		},
	},
	{
		table: "respite",
		cols:  visitCols(),
		rows: [][]any{
			{1, 2, "2024-02-05", "2024-02-09", 4, nil, "Hallworth", "Caregiver respite", "Monday"},
		},
	},
	{
		table: "skilled",
		cols:  visitCols("discharge_disposition"),
		rows: [][]any{
			{1, 1, "2024-02-01", "2024-02-21", 20, "Acute care hospital or psychiatric facility", nil, "Hallworth", "Rehab", "Thursday"},
		},
	},
	{
		table: "er_only",
		cols:  []string{"visit_id", "member_id", "admission_date", "facility", "principal_dx"},
		rows: [][]any{
			{1, 1, "2024-01-15", "RIH", "R07.9"},
			{2, 1, "2024-02-20", "RIH", "I50.9"},
			{3, 2, "2024-03-05", "Kent", "R55"},
			{4, 6, "2024-03-10", "Miriam", "S09.90XA"},
			{5, 4, "2023-12-01", "Kent", "R07.9"},
		},
	},
	{
		table: "falls",
		cols:  []string{"incident_id", "member_id", "date_time_occurred", "location", "severity"},
		rows: [][]any{
			{1, 1, "2024-01-03", "Home", "No Harm"},
			{2, 1, "2024-01-20", "Center", "Minor Harm"},
			{3, 1, "2024-02-14", "Home", "Major Harm"},
			{4, 2, "2024-03-02", "Home", "No Harm"},
			{5, 5, "2024-03-15", "Center", "Minor Harm"},
			{6, 3, "2023-11-11", "Home", "No Harm"},
		},
	},
	{
		table: "med_errors",
		cols:  []string{"incident_id", "member_id", "date_time_occurred", "severity", "description", "responsibility_pharmacy", "responsibility_clinic", "responsibility_home_care", "responsibility_facility"},
		rows: [][]any{
			{1, 1, "2024-02-02", "No Harm", "Wrong insulin dose delivered", 1, 0, 0, 0},
			{2, 5, "2024-03-12", "No Harm", "Missed evening dose", 0, 1, 0, 0},
		},
	},
	{
		table: "infections",
		cols:  []string{"incident_id", "member_id", "date_time_occurred", "infection_type", "severity"},
		rows: [][]any{
			{1, 1, "2024-01-12", "UTI", "Minor Harm"},
			{2, 3, "2024-02-01", "Sepsis-Urinary", "Major Harm"},
			{3, 2, "2024-03-03", "Pneumonia", "Minor Harm"},
		},
	},
	{
		table: "wounds",
		cols:  []string{"incident_id", "member_id", "date_time_occurred", "wound_type", "ulcer_stage", "date_healed", "severity"},
		rows: [][]any{
			{1, 6, "2024-02-20", "Pressure Ulcer", "Stage 2", "2024-03-20", "Minor Harm"},
			{2, 1, "2024-01-08", "Skin Tear", "N/A", "2024-01-18", "No Harm"},
			{3, 3, "2023-12-15", "Pressure Ulcer", "Unstageable", nil, "Minor Harm"},
		},
	},
	{
		table: "burns",
		cols:  []string{"incident_id", "member_id", "date_time_occurred", "burn_degree", "assessment_rn", "severity"},
		rows: [][]any{
			{1, 2, "2024-01-22", "Second", 1, "Minor Harm"},
			{2, 5, "2024-03-05", "Third", 0, "Major Harm"},
		},
	},
	{
		table: "dx",
		cols:  []string{"member_id", "icd10"},
		rows: [][]any{
			{1, "F32.9"},
			{1, "I10"},
			{1, "I50.9"},
			{1, "E11.9"},
			{1, "J44.9"},
			{1, "N18.3"},
			{1, "I48.91"},
			{2, "E11.9"},
			{3, "F03.90"},
			{5, "G30.10"},
			{6, "F41.1"},
		},
	},
	{
		table: "icd10_codes",
		cols:  []string{"code", "description"},
		rows: [][]any{
			{"J189", "Pneumonia, unspecified organism"},
			{"I509", "Heart failure, unspecified"},
			{"A419", "Sepsis, unspecified organism"},
			{"W19XXXA", "Unspecified fall, initial encounter"},
			{"J441", "Chronic obstructive pulmonary disease with (acute) exacerbation"},
			{"N390", "Urinary tract infection, site not specified"},
			{"R079", "Chest pain, unspecified"},
			{"R55", "Syncope and collapse"},
		},
	},
	{
		table: "center_days",
		cols:  []string{"member_id", "days"},
		rows: [][]any{
			{1, "Mon,Wed"},
			{2, "PRN"},
			{4, "PRN"},
			{5, "Tue"},
			{6, "Mon-Fri"},
		},
	},
	{
		table: "pneumo",
		cols:  []string{"member_id", "vacc_series", "dose_status", "date_administered"},
		rows: [][]any{
			{1, "PCV 13", 1, "2019-10-01"},
			{3, "Pneumococcal 23", 0, "2022-04-01"},
			{5, "PCV 13", 0, "2024-01-10"},
			{5, "Pneumococcal 23", 1, "2024-02-10"},
		},
	},
	{
		table: "influ",
		cols:  []string{"member_id", "vacc_series", "dose_status", "date_administered"},
		rows: [][]any{
			{1, "Influenza", 1, "2023-10-01"},
			{2, "Influenza", 0, "2023-10-05"},
			{6, "Influenza", 1, "2023-09-15"},
			{4, "Influenza", 1, "2022-10-01"},
		},
	},
}

func visitCols(extra ...string) []string {
	cols := []string{"visit_id", "member_id", "admission_date", "discharge_date", "los"}
	cols = append(cols, extra...)
	return append(cols, "days_since_last_admission", "facility", "admit_reason", "dow")
}

// demoCensus is the first-of-month census implied by the enrollment rows,
// 2023-01 through 2024-06.
func demoCensus() [][]any {
	totals := map[string]int{
		"2023-11-01": 5, "2023-12-01": 5,
		"2024-01-01": 5, "2024-02-01": 5, "2024-03-01": 4,
		"2024-04-01": 5, "2024-05-01": 5, "2024-06-01": 5,
	}
	var rows [][]any
	for m := generic.NewDate(2023, 1, 1); !m.After(generic.NewDate(2024, 6, 1)); m = m.AddMonths(1) {
		total, ok := totals[m.String()]
		if !ok {
			total = 4
		}
		rows = append(rows, []any{m.String(), total})
	}
	return rows
}

// SeedDemo loads the demo fixtures into a migrated reporting database.
func SeedDemo(ctx context.Context, db *sql.DB, d store.Dialect) error {
	return load(ctx, db, d, demo)
}

// SeedAggDemo loads monthly rows into a migrated aggregate database.
func SeedAggDemo(ctx context.Context, db *sql.DB, d store.Dialect) error {
	return load(ctx, db, d, aggDemo())
}

func aggDemo() []fixture {
	enr := fixture{
		table: "enrollment",
		cols:  []string{"month", "census", "enrolled", "disenrolled", "none_census", "central_census", "east_census", "north_census", "south_census"},
	}
	utl := fixture{
		table: "utilization",
		cols:  []string{"month", "acute_admissions", "er_only_visits", "none_acute_admissions", "central_acute_admissions", "east_acute_admissions", "north_acute_admissions", "south_acute_admissions"},
	}
	for i, row := range demoCensus() {
		census := row[1].(int) * 40
		central, east, north := census/2, census/4, census/5
		south := census - central - east - north
		enr.rows = append(enr.rows, []any{row[0], census, 3 + i%4, 2 + i%3, 0, central, east, north, south})
		admits := 6 + i%5
		utl.rows = append(utl.rows, []any{row[0], admits, 4 + i%3, 0, admits / 2, admits / 4, 1, admits - admits/2 - admits/4 - 1})
	}
	return []fixture{enr, utl}
}

// AggAllowList lists the demo aggregate tables and their columns.
func AggAllowList() generic.AllowList {
	tables := make(map[string][]string)
	for _, f := range aggDemo() {
		tables[f.table] = f.cols
	}
	return generic.NewAllowList(tables)
}

func load(ctx context.Context, db *sql.DB, d store.Dialect, fixtures []fixture) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	defer tx.Rollback()

	for _, f := range fixtures {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(f.cols)), ", ")
		text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", f.table, strings.Join(f.cols, ", "), marks)
		for _, r := range f.rows {
			stmt, args, err := generic.Query{SQL: text, Args: r}.Bind(d.Placeholder)
			if err != nil {
				return fmt.Errorf("seed %s: %w", f.table, err)
			}
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return fmt.Errorf("seed %s: %w", f.table, err)
			}
		}
	}
	return tx.Commit()
}
