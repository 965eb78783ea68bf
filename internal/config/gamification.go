package config

// GamificationConfig is the versioned point/level configuration injected
// into the engine at construction. Nothing in the services reads these
// values from globals or the environment directly.
type GamificationConfig struct {
	Version string

	// Levels maps cumulative points to level and level-up bonus,
	// ordered by strictly increasing PointsRequired.
	Levels []LevelThreshold

	// Default point values per activity type
	ActivityPoints map[string]int

	// Referral payouts
	ReferrerPoints     int
	ReferredPoints     int
	ReferralExpiryDays int
	ReferralCodeLength int

	// Badge share bonus and its anti-abuse cap
	ShareBonusPoints int
	SharesPerDay     int
}

// LevelThreshold is one row of the level table
type LevelThreshold struct {
	Level          int
	PointsRequired int
	BonusPoints    int
}

// LoadGamificationConfig returns the active gamification configuration.
// Scalar knobs can be overridden from the environment; the level table is
// versioned with the code so every instance ranks identically.
func LoadGamificationConfig() GamificationConfig {
	return GamificationConfig{
		Version: getEnv("GAMIFICATION_CONFIG_VERSION", "2026-08"),
		Levels: []LevelThreshold{
			{Level: 1, PointsRequired: 0, BonusPoints: 0},
			{Level: 2, PointsRequired: 100, BonusPoints: 50},
			{Level: 3, PointsRequired: 250, BonusPoints: 75},
			{Level: 4, PointsRequired: 500, BonusPoints: 100},
			{Level: 5, PointsRequired: 1000, BonusPoints: 150},
			{Level: 6, PointsRequired: 1500, BonusPoints: 200},
			{Level: 7, PointsRequired: 2000, BonusPoints: 250},
			{Level: 8, PointsRequired: 2500, BonusPoints: 300},
			{Level: 9, PointsRequired: 3200, BonusPoints: 400},
			{Level: 10, PointsRequired: 4000, BonusPoints: 500},
		},
		ActivityPoints: map[string]int{
			"project_launch":     100,
			"mentorship_session": 50,
			"opportunity_share":  25,
			"social_share":       10,
			"challenge_won":      150,
		},
		ReferrerPoints:     getEnvInt("REFERRAL_REFERRER_POINTS", 500),
		ReferredPoints:     getEnvInt("REFERRAL_REFERRED_POINTS", 100),
		ReferralExpiryDays: getEnvInt("REFERRAL_EXPIRY_DAYS", 30),
		ReferralCodeLength: getEnvInt("REFERRAL_CODE_LENGTH", 8),
		ShareBonusPoints:   getEnvInt("BADGE_SHARE_BONUS_POINTS", 25),
		SharesPerDay:       getEnvInt("BADGE_SHARES_PER_DAY", 3),
	}
}
