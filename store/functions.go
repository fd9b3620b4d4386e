package store

// postgresFunctions define on PostgreSQL the SQLite functions the catalog
// is written with:
//
//	julianday(date)          day number, so differences are whole days
//	date(date, '-30 days')   date shifted by an interval modifier
//	round(float8, places)    rounding of double precision values
//
// julianday has a single date overload so that untyped bind parameters
// resolve to date.
var postgresFunctions = []string{
	`CREATE OR REPLACE FUNCTION julianday(d date) RETURNS double precision
		LANGUAGE sql IMMUTABLE STRICT
		AS $$ SELECT (d - DATE '1970-01-01') + 2440587.5::double precision $$`,

	`CREATE OR REPLACE FUNCTION date(d date, modifier text) RETURNS date
		LANGUAGE sql IMMUTABLE STRICT
		AS $$ SELECT (d + modifier::interval)::date $$`,

	`CREATE OR REPLACE FUNCTION round(v double precision, places integer) RETURNS double precision
		LANGUAGE sql IMMUTABLE STRICT
		AS $$ SELECT round(v::numeric, places)::double precision $$`,
}
