// Package carryover persists the squads that survive a mission so the next
// mission of the same campaign can load them.
package carryover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Garsondee/Squad-Tactics/internal/game"
)

// ErrUnknownCampaign is returned for a campaign id that was never created.
var ErrUnknownCampaign = errors.New("unknown campaign")

// Campaign groups consecutive missions that share carryover.
type Campaign struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string
	CreatedAt time.Time
}

// SquadRecord is one persisted carryover record. Sequence counts the
// missions saved into the campaign; the latest sequence is what the next
// mission loads.
type SquadRecord struct {
	ID         uint   `gorm:"primaryKey"`
	CampaignID string `gorm:"index;size:36"`
	Sequence   int    `gorm:"index"`
	MissionID  string
	SquadName  string
	Kind       string
	LossRatio  float64
	Kills      int
	Veteran    bool
	CreatedAt  time.Time
}

// Store reads and writes carryover through gorm.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to driver ("sqlite" or "postgres") and migrates the schema.
// An empty sqlite dsn opens a private in-memory database.
func Open(driver, dsn string, log zerolog.Logger) (*Store, error) {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
		}
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), cfg)
	default:
		return nil, fmt.Errorf("carryover: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("carryover: open %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&Campaign{}, &SquadRecord{}); err != nil {
		return nil, fmt.Errorf("carryover: migrate: %w", err)
	}
	log.Debug().Str("driver", driver).Msg("carryover store ready")
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewCampaign creates a campaign and returns its id.
func (s *Store) NewCampaign(ctx context.Context, name string) (uuid.UUID, error) {
	id := uuid.New()
	c := Campaign{ID: id.String(), Name: name}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return uuid.Nil, fmt.Errorf("carryover: create campaign: %w", err)
	}
	s.log.Info().Str("campaign", c.ID).Str("name", name).Msg("campaign created")
	return id, nil
}

// Campaigns lists every campaign, oldest first.
func (s *Store) Campaigns(ctx context.Context) ([]Campaign, error) {
	var out []Campaign
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("carryover: list campaigns: %w", err)
	}
	return out, nil
}

func (s *Store) campaignExists(tx *gorm.DB, id uuid.UUID) error {
	var n int64
	if err := tx.Model(&Campaign{}).Where("id = ?", id.String()).Count(&n).Error; err != nil {
		return fmt.Errorf("carryover: lookup campaign: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCampaign, id)
	}
	return nil
}

// Save stores the records of one finished mission as the campaign's next
// sequence and returns that sequence. An empty slice is saved as a
// sequence with no squads, so a wiped-out force carries nothing forward.
func (s *Store) Save(ctx context.Context, campaign uuid.UUID, missionID string, records []game.CarryoverRecord) (int, error) {
	var seq int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.campaignExists(tx, campaign); err != nil {
			return err
		}
		var last SquadRecord
		res := tx.Where("campaign_id = ?", campaign.String()).Order("sequence desc").Limit(1).Find(&last)
		if res.Error != nil {
			return fmt.Errorf("carryover: last sequence: %w", res.Error)
		}
		seq = 1
		if res.RowsAffected > 0 {
			seq = last.Sequence + 1
		}

		rows := []SquadRecord{{
			CampaignID: campaign.String(),
			Sequence:   seq,
			MissionID:  missionID,
		}}
		if len(records) > 0 {
			rows = rows[:0]
			for _, r := range records {
				rows = append(rows, SquadRecord{
					CampaignID: campaign.String(),
					Sequence:   seq,
					MissionID:  missionID,
					SquadName:  r.SquadName,
					Kind:       r.Kind,
					LossRatio:  r.LossRatio,
					Kills:      r.Kills,
					Veteran:    r.Veteran,
				})
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("carryover: save records: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info().Str("campaign", campaign.String()).Str("mission", missionID).
		Int("sequence", seq).Int("squads", len(records)).Msg("carryover saved")
	return seq, nil
}

// Latest returns the records of the campaign's most recent sequence. A
// campaign with nothing saved yet yields no records.
func (s *Store) Latest(ctx context.Context, campaign uuid.UUID) ([]game.CarryoverRecord, error) {
	db := s.db.WithContext(ctx)
	if err := s.campaignExists(db, campaign); err != nil {
		return nil, err
	}
	var last SquadRecord
	res := db.Where("campaign_id = ?", campaign.String()).Order("sequence desc").Limit(1).Find(&last)
	if res.Error != nil {
		return nil, fmt.Errorf("carryover: last sequence: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var rows []SquadRecord
	if err := db.Where("campaign_id = ? AND sequence = ? AND squad_name <> ''", campaign.String(), last.Sequence).
		Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("carryover: load records: %w", err)
	}
	out := make([]game.CarryoverRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, game.CarryoverRecord{
			SquadName: r.SquadName,
			Kind:      r.Kind,
			LossRatio: r.LossRatio,
			Kills:     r.Kills,
			Veteran:   r.Veteran,
		})
	}
	return out, nil
}
