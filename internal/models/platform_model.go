package models

const (
	PlatformTwitter   = "twitter"
	PlatformLinkedIn  = "linkedin"
	PlatformInstagram = "instagram"
)

var platformContentLimits = map[string]int{
	PlatformTwitter:   280,
	PlatformLinkedIn:  3000,
	PlatformInstagram: 2200,
}

func IsValidPlatform(platform string) bool {
	_, ok := platformContentLimits[platform]
	return ok
}

// ContentLimit returns the maximum number of characters a platform accepts.
func ContentLimit(platform string) int {
	return platformContentLimits[platform]
}

func Platforms() []string {
	return []string{PlatformTwitter, PlatformLinkedIn, PlatformInstagram}
}
