// Package limits supplies per-user generation entitlements. The data is
// owned by an external system; this package only reads it.
package limits

// UserGenerationLimits is the read-only entitlement row for one user.
type UserGenerationLimits struct {
	QueueCapacity         int    `json:"queueCapacity"`
	Tier                  string `json:"tier"`
	PerRequestQuantityCap int    `json:"perRequestQuantityCap"`
}

// FreeTier is the default applied when a user has no entitlement row.
func FreeTier() UserGenerationLimits {
	return UserGenerationLimits{
		QueueCapacity:         2,
		Tier:                  "free",
		PerRequestQuantityCap: 4,
	}
}
