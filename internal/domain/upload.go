package domain

// UploadToken holds the temporary object-storage credentials issued by the
// vendor. One token is fetched per multi-image batch and reused for every
// image in it. The server-side TTL is undocumented; callers re-fetch on
// explicit upload failure instead of tracking expiry.
type UploadToken struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	SpaceName       string
	UploadHosts     []string
}

// CredentialBundle is the complete per-request credential set attached to
// one signed API call. Recomputed fresh for every call, never cached.
type CredentialBundle struct {
	Cookie     string
	DeviceTime string
	Sign       string
	MsToken    string
	ABogus     string
}
