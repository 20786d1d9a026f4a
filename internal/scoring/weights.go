package scoring

import (
	"errors"
	"fmt"

	"github.com/homelead/distributor/internal/models"
	"gorm.io/gorm"
)

// Weights is a snapshot of the operator-editable scoring weights.
type Weights struct {
	AreaMatchBonus      float64
	DeveloperMatchBonus float64
	RatingMultiplier    float64
	LoadPenalty         float64
}

// DefaultWeights are used when no settings row exists yet.
var DefaultWeights = Weights{
	AreaMatchBonus:      30,
	DeveloperMatchBonus: 20,
	RatingMultiplier:    10,
	LoadPenalty:         5,
}

// LoadWeights reads the weights row fresh from the database. Called once
// per dispatch decision so operator edits apply to the next negotiation;
// never cache the result across dispatches.
func LoadWeights(db *gorm.DB) (Weights, error) {
	var row models.ScoringSettings
	err := db.Order("id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultWeights, nil
	}
	if err != nil {
		return Weights{}, fmt.Errorf("scoring: load weights: %w", err)
	}
	return Weights{
		AreaMatchBonus:      row.AreaMatchBonus,
		DeveloperMatchBonus: row.DeveloperMatchBonus,
		RatingMultiplier:    row.RatingMultiplier,
		LoadPenalty:         row.LoadPenalty,
	}, nil
}

// LoadProfiles returns scoring profiles for all active agents, excluding
// the given agent IDs (already-attempted candidates).
func LoadProfiles(db *gorm.DB, exclude []uint) ([]AgentProfile, error) {
	q := db.Where("active = ?", true)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var agents []models.Agent
	if err := q.Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("scoring: load agents: %w", err)
	}
	profiles := make([]AgentProfile, 0, len(agents))
	for _, a := range agents {
		profiles = append(profiles, AgentProfile{
			ID:              a.ID,
			Areas:           a.AreaList(),
			Developers:      a.DeveloperList(),
			PropertyTypes:   a.PropertyTypeList(),
			Rating:          a.Rating,
			OpenAssignments: a.OpenAssignments,
		})
	}
	return profiles, nil
}
