package generic

import "context"

// Executor runs read-only queries against the reporting store.
//
// Each call is independent: implementations acquire and release their own
// connection per call and hold no state between calls.
type Executor interface {
	// Scalar returns the first column of the first row. No row or a NULL
	// value reads as 0.
	Scalar(ctx context.Context, q Query) (Value, error)

	// Rows returns every row in order, or an empty slice.
	Rows(ctx context.Context, q Query) ([]Row, error)

	// Table returns the result with named columns.
	Table(ctx context.Context, q Query, opts ...TableOption) (*Table, error)
}
