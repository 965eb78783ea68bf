package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/gosimple/slug"
	"github.com/mentorhub/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// seedBadgeCatalog installs the initial badge definitions. Re-running is
// harmless: rows are matched on slug and left alone if present.
var seedBadgeCatalog = &gormigrate.Migration{
	ID: "000001_seed_badge_catalog",
	Migrate: func(tx *gorm.DB) error {
		badges := []models.Badge{
			{
				Name:           "First Launch",
				Description:    "Launch your first project on the platform",
				Icon:           "rocket",
				Rarity:         models.RarityCommon,
				Category:       "projects",
				Active:         true,
				PointsRequired: 50,
				Criteria: models.BadgeCriteria{
					{Type: "project_launch", Value: 1},
				},
			},
			{
				Name:           "Serial Builder",
				Description:    "Launch five projects",
				Icon:           "factory",
				Rarity:         models.RarityRare,
				Category:       "projects",
				Active:         true,
				PointsRequired: 200,
				Criteria: models.BadgeCriteria{
					{Type: "project_launch", Value: 5},
				},
			},
			{
				Name:           "Trusted Mentor",
				Description:    "Complete ten mentorship sessions",
				Icon:           "graduation-cap",
				Rarity:         models.RarityUncommon,
				Category:       "mentorship",
				Active:         true,
				PointsRequired: 150,
				Criteria: models.BadgeCriteria{
					{Type: "mentorship_sessions", Value: 10},
				},
			},
			{
				Name:           "Door Opener",
				Description:    "Share five opportunities with the community",
				Icon:           "door-open",
				Rarity:         models.RarityCommon,
				Category:       "community",
				Active:         true,
				PointsRequired: 100,
				Criteria: models.BadgeCriteria{
					{Type: "opportunities_shared", Value: 5},
				},
			},
			{
				Name:           "Community Champion",
				Description:    "Bring three friends to the platform and reach level 5",
				Icon:           "trophy",
				Rarity:         models.RarityEpic,
				Category:       "community",
				Active:         true,
				PointsRequired: 300,
				Criteria: models.BadgeCriteria{
					{Type: "referrals_successful", Value: 3},
					{Type: "points_earned", Value: 1000},
				},
			},
		}

		for i := range badges {
			badges[i].Slug = slug.Make(badges[i].Name)
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).Create(&badges).Error
	},
	Rollback: func(tx *gorm.DB) error {
		return tx.Where("slug IN ?", []string{
			"first-launch", "serial-builder", "trusted-mentor",
			"door-opener", "community-champion",
		}).Delete(&models.Badge{}).Error
	},
}
