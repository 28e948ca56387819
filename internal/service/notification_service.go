package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/course-platform/internal/config"
	"github.com/spec-kit/course-platform/internal/events"
)

// Mailer delivers password reset codes to account holders.
type Mailer interface {
	SendResetCode(ctx context.Context, from, to, code string, expiresAt time.Time) error
}

// NotificationService turns domain events into audit logs and outbound notices.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	mailer     Mailer
}

// NotificationOption customizes a NotificationService.
type NotificationOption func(*NotificationService)

// WithMailer replaces the logging mailer stub.
func WithMailer(mailer Mailer) NotificationOption {
	return func(n *NotificationService) {
		if mailer != nil {
			n.mailer = mailer
		}
	}
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, opts ...NotificationOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
	n.mailer = logMailer{logger: logger}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventContentAccessed, n.handleContentAccessed)
	n.dispatcher.Subscribe(events.EventContentAccessDenied, n.handleContentAccessDenied)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
}

func (n *NotificationService) handleContentAccessed(_ context.Context, event events.Event) error {
	n.logger.Info("ContentAccessed",
		zap.String("event_id", event.ID),
		zap.Int64("user_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleContentAccessDenied(ctx context.Context, event events.Event) error {
	n.logger.Info("ContentAccessDenied",
		zap.String("event_id", event.ID),
		zap.Int64("user_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetRequestedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("PasswordResetRequested",
		zap.String("event_id", event.ID),
		zap.Int64("user_id", event.Actor.UserID),
		zap.Time("expires_at", payload.ExpiresAt))
	return n.sendResetCode(ctx, payload)
}

func (n *NotificationService) sendResetCode(ctx context.Context, payload events.PasswordResetRequestedPayload) error {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		n.logger.Warn("reset code not sent, NOTIFY_EMAIL_FROM is empty", zap.String("to", payload.Email))
		return nil
	}
	return n.mailer.SendResetCode(ctx, n.cfg.EmailFrom, payload.Email, payload.Code, payload.ExpiresAt)
}

// logMailer records that a code went out without writing the code itself.
type logMailer struct {
	logger *zap.Logger
}

func (m logMailer) SendResetCode(_ context.Context, from, to, _ string, expiresAt time.Time) error {
	m.logger.Debug("sendEmailNotificationStub",
		zap.String("from", from),
		zap.String("to", to),
		zap.Time("expires_at", expiresAt))
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
}
