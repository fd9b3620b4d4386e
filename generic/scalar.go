package generic

import "context"

// Count runs q and reads the scalar as an int.
func Count(ctx context.Context, exec Executor, q Query) (int, error) {
	v, err := exec.Scalar(ctx, q)
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

// Float runs q and reads the scalar as a float64.
func Float(ctx context.Context, exec Executor, q Query) (float64, error) {
	v, err := exec.Scalar(ctx, q)
	if err != nil {
		return 0, err
	}
	return finite(v.Float64()), nil
}
