package cloudlink

import (
	"regexp"
	"strings"

	"github.com/spec-kit/course-platform/internal/domain"
)

const (
	googleDriveHost     = "drive.google.com"
	dropboxHost         = "dropbox.com"
	googleDriveDownload = "https://drive.google.com/uc?export=download&id="
)

var driveFileID = regexp.MustCompile(`https://drive\.google\.com/file/d/([a-zA-Z0-9_-]+)`)

// DetectProvider classifies a share link by host substring. It never fails.
func DetectProvider(url string) domain.CloudProvider {
	switch {
	case strings.Contains(url, googleDriveHost):
		return domain.ProviderGoogleDrive
	case strings.Contains(url, dropboxHost):
		return domain.ProviderDropbox
	default:
		return domain.ProviderOther
	}
}

// Resolve rewrites a share link into its direct-fetch form.
// Links that do not match a known share pattern are returned unchanged.
func Resolve(url string) string {
	switch DetectProvider(url) {
	case domain.ProviderGoogleDrive:
		return resolveGoogleDrive(url)
	case domain.ProviderDropbox:
		return resolveDropbox(url)
	default:
		return url
	}
}

// NewAsset describes url together with its provider and resolved form.
func NewAsset(url string) domain.CloudAsset {
	return domain.CloudAsset{
		OriginalURL: url,
		Provider:    DetectProvider(url),
		ResolvedURL: Resolve(url),
	}
}

func resolveGoogleDrive(url string) string {
	match := driveFileID.FindStringSubmatch(url)
	if len(match) < 2 {
		return url
	}
	return googleDriveDownload + match[1]
}

func resolveDropbox(url string) string {
	if !strings.Contains(url, "dl=0") {
		return url
	}
	return strings.ReplaceAll(url, "dl=0", "dl=1")
}
