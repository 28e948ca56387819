package domain

// CloudProvider identifies who hosts a content asset.
type CloudProvider string

const (
	ProviderGoogleDrive CloudProvider = "GOOGLE_DRIVE"
	ProviderDropbox     CloudProvider = "DROPBOX"
	ProviderOther       CloudProvider = "OTHER"
)

// CloudAsset pairs a share link with its direct-fetch form.
type CloudAsset struct {
	OriginalURL string
	Provider    CloudProvider
	ResolvedURL string
}
