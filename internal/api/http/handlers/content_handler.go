package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/course-platform/internal/auth"
	"github.com/spec-kit/course-platform/internal/content"
	"github.com/spec-kit/course-platform/internal/domain"
	apperrors "github.com/spec-kit/course-platform/pkg/util"
)

const (
	contentTypeVideo    = "video/mp4"
	contentTypeDocument = "application/pdf"
)

// ContentAuthorizer resolves an asset the principal is allowed to read.
type ContentAuthorizer interface {
	Authorize(ctx context.Context, principal *domain.Principal, kind domain.ResourceKind, id int64) (*domain.ContentItem, error)
}

// ContentFetcher opens upstream assets.
type ContentFetcher interface {
	OpenVideo(ctx context.Context, rawURL string) (*content.Stream, error)
	FetchDocument(ctx context.Context, rawURL string) (*content.Document, error)
}

// ContentHandler serves protected course videos and documents.
// Failures are reported by status code only.
type ContentHandler struct {
	authorizer ContentAuthorizer
	fetcher    ContentFetcher
	logger     *zap.Logger
}

// NewContentHandler constructs handler.
func NewContentHandler(authorizer ContentAuthorizer, fetcher ContentFetcher, logger *zap.Logger) *ContentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentHandler{authorizer: authorizer, fetcher: fetcher, logger: logger}
}

// StreamVideo handles GET /api/secure/content/video/:id.
func (h *ContentHandler) StreamVideo(c *fiber.Ctx) error {
	item, status := h.authorize(c, domain.ResourceVideo)
	if item == nil {
		c.Status(status)
		return nil
	}

	stream, err := h.fetcher.OpenVideo(c.UserContext(), item.URL)
	if err != nil {
		h.logger.Error("video fetch failed", zap.Int64("video_id", item.ID), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return nil
	}

	setContentHeaders(c, contentTypeVideo, item.Filename)
	size := int(stream.ContentLength)
	if stream.ContentLength < 0 {
		size = -1
	}
	// fasthttp closes the body once it has been written out.
	return c.SendStream(stream.Body, size)
}

// StreamDocument handles GET /api/secure/content/document/:id.
func (h *ContentHandler) StreamDocument(c *fiber.Ctx) error {
	item, status := h.authorize(c, domain.ResourceDocument)
	if item == nil {
		c.Status(status)
		return nil
	}

	doc, err := h.fetcher.FetchDocument(c.UserContext(), item.URL)
	if err != nil {
		if errors.Is(err, content.ErrUpstreamNotFound) {
			h.logger.Warn("document missing upstream", zap.Int64("document_id", item.ID), zap.Error(err))
			c.Status(http.StatusNotFound)
			return nil
		}
		h.logger.Error("document fetch failed", zap.Int64("document_id", item.ID), zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return nil
	}

	setContentHeaders(c, contentTypeDocument, item.Filename)
	return c.Send(doc.Body)
}

// authorize returns the asset, or nil and the status to answer with.
func (h *ContentHandler) authorize(c *fiber.Ctx, kind domain.ResourceKind) (*domain.ContentItem, int) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, http.StatusUnauthorized
	}

	// Ids that cannot name a row are answered like any unknown asset.
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return nil, http.StatusNotFound
	}

	item, err := h.authorizer.Authorize(c.UserContext(), principal, kind, id)
	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		if domainErr.HTTPStatus >= http.StatusInternalServerError {
			h.logger.Error("content authorization failed", zap.String("kind", string(kind)), zap.Int64("id", id), zap.Error(err))
		}
		return nil, domainErr.HTTPStatus
	}
	return item, http.StatusOK
}

func setContentHeaders(c *fiber.Ctx, contentType, filename string) {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s"`, sanitizeFilename(filename)))
	c.Set(fiber.HeaderCacheControl, "no-cache, must-revalidate")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
}

var filenameReplacer = strings.NewReplacer(`"`, "_", `\`, "_", "\r", "", "\n", "")

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(filenameReplacer.Replace(name))
	if name == "" {
		return "download"
	}
	return name
}
