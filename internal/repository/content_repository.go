package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/course-platform/internal/domain"
)

// ContentRepository loads protected assets together with their owning course.
type ContentRepository interface {
	GetVideo(ctx context.Context, id int64) (*domain.ContentItem, error)
	GetDocument(ctx context.Context, id int64) (*domain.ContentItem, error)
}

type contentRepository struct {
	pool *pgxpool.Pool
}

// NewContentRepository instantiates repository.
func NewContentRepository(pool *pgxpool.Pool) ContentRepository {
	return &contentRepository{pool: pool}
}

func (r *contentRepository) GetVideo(ctx context.Context, id int64) (*domain.ContentItem, error) {
	const query = `
        SELECT v.id, v.video_url, v.video_filename, COALESCE(v.cloud_provider, ''), COALESCE(v.description, ''),
               m.id, c.id, c.instructor_id
        FROM videos v
        JOIN modules m ON m.id = v.module_id
        JOIN courses c ON c.id = m.course_id
        WHERE v.id=$1`
	return r.fetchSingle(ctx, domain.ResourceVideo, query, id)
}

func (r *contentRepository) GetDocument(ctx context.Context, id int64) (*domain.ContentItem, error) {
	const query = `
        SELECT d.id, d.document_url, d.document_filename, COALESCE(d.cloud_provider, ''), COALESCE(d.description, ''),
               m.id, c.id, c.instructor_id
        FROM documents d
        JOIN modules m ON m.id = d.module_id
        JOIN courses c ON c.id = m.course_id
        WHERE d.id=$1`
	return r.fetchSingle(ctx, domain.ResourceDocument, query, id)
}

func (r *contentRepository) fetchSingle(ctx context.Context, kind domain.ResourceKind, query string, id int64) (*domain.ContentItem, error) {
	item := domain.ContentItem{Kind: kind}
	var provider string
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&item.ID,
		&item.URL,
		&item.Filename,
		&provider,
		&item.Description,
		&item.ModuleID,
		&item.CourseID,
		&item.InstructorID,
	); err != nil {
		return nil, err
	}
	item.Provider = domain.CloudProvider(provider)
	return &item, nil
}
