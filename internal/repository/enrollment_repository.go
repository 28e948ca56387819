package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrollmentRepository answers enrollment questions for access control.
type EnrollmentRepository interface {
	Exists(ctx context.Context, studentID, courseID int64) (bool, error)
}

type enrollmentRepository struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepository constructs repository.
func NewEnrollmentRepository(pool *pgxpool.Pool) EnrollmentRepository {
	return &enrollmentRepository{pool: pool}
}

func (r *enrollmentRepository) Exists(ctx context.Context, studentID, courseID int64) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM enrollments WHERE user_id=$1 AND course_id=$2
        )`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, studentID, courseID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
