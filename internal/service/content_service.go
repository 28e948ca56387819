package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/course-platform/internal/authz"
	"github.com/spec-kit/course-platform/internal/domain"
	"github.com/spec-kit/course-platform/internal/events"
	"github.com/spec-kit/course-platform/internal/observability"
	"github.com/spec-kit/course-platform/internal/repository"
	apperrors "github.com/spec-kit/course-platform/pkg/util"
)

// ContentService resolves protected assets and applies the access policy to them.
type ContentService struct {
	content    repository.ContentRepository
	policy     *authz.Policy
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ContentDependencies encapsulates collaborators of the content service.
type ContentDependencies struct {
	Content    repository.ContentRepository
	Policy     *authz.Policy
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewContentService builds the service.
func NewContentService(deps ContentDependencies) *ContentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentService{
		content:    deps.Content,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Authorize loads the asset and returns it only when principal may read it.
// Denials surface as a bare 403; the reason stays in logs and events.
func (s *ContentService) Authorize(ctx context.Context, principal *domain.Principal, kind domain.ResourceKind, id int64) (*domain.ContentItem, error) {
	item, err := s.load(ctx, kind, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound(string(kind), nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	resource := item.Descriptor()
	decision, err := s.policy.Decide(ctx, principal, resource)
	if err != nil {
		s.logger.Error("authorization check failed",
			zap.String("resource_kind", string(kind)),
			zap.Int64("resource_id", id),
			zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	s.metrics.RecordDecision(kind, decision)

	payload := events.ContentAccessPayload{
		Kind:       kind,
		ResourceID: item.ID,
		CourseID:   item.CourseID,
		Reason:     decision.Reason,
	}
	actor := events.ActorFromPrincipal(principal)

	if !decision.Allow {
		s.logger.Warn("content access denied",
			zap.Int64("principal_id", actor.UserID),
			zap.String("role", string(actor.Role)),
			zap.String("resource_kind", string(kind)),
			zap.Int64("resource_id", item.ID),
			zap.Int64("course_id", item.CourseID),
			zap.String("reason", string(decision.Reason)))
		s.publish(ctx, events.New(events.EventContentAccessDenied, actor, payload))
		return nil, apperrors.NewForbidden("access denied")
	}

	s.publish(ctx, events.New(events.EventContentAccessed, actor, payload))
	return item, nil
}

func (s *ContentService) load(ctx context.Context, kind domain.ResourceKind, id int64) (*domain.ContentItem, error) {
	switch kind {
	case domain.ResourceVideo:
		return s.content.GetVideo(ctx, id)
	case domain.ResourceDocument:
		return s.content.GetDocument(ctx, id)
	default:
		return nil, pgx.ErrNoRows
	}
}

func (s *ContentService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}
