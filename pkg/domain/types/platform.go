package types

import "github.com/m-mizutani/goerr/v2"

// Platform identifies one of the supported social platforms
type Platform string

const (
	PlatformMeta     Platform = "meta"
	PlatformLinkedIn Platform = "linkedin"
	PlatformTikTok   Platform = "tiktok"
	PlatformYouTube  Platform = "youtube"
	PlatformTwitter  Platform = "twitter"
)

// AllPlatforms returns all supported platforms
func AllPlatforms() []Platform {
	return []Platform{
		PlatformMeta,
		PlatformLinkedIn,
		PlatformTikTok,
		PlatformYouTube,
		PlatformTwitter,
	}
}

// IsValid checks if the platform is supported
func (p Platform) IsValid() bool {
	switch p {
	case PlatformMeta,
		PlatformLinkedIn,
		PlatformTikTok,
		PlatformYouTube,
		PlatformTwitter:
		return true
	default:
		return false
	}
}

// UsesPKCE reports whether the platform's OAuth flow requires a PKCE
// code verifier/challenge pair in addition to the state parameter.
func (p Platform) UsesPKCE() bool {
	return p == PlatformTikTok || p == PlatformTwitter
}

// String returns the string representation of the platform
func (p Platform) String() string {
	return string(p)
}

// ParsePlatform parses a string into a Platform
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.IsValid() {
		return "", goerr.New("invalid platform", goerr.V(PlatformKey, s))
	}
	return p, nil
}
