package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type profileRecord struct {
	Username  string `gorm:"primaryKey;size:64"`
	Skills    string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (profileRecord) TableName() string { return "player_profiles" }

// GormStore persists profiles in a SQL table through gorm.
type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and prepares the profile table.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&profileRecord{}); err != nil {
		return nil, fmt.Errorf("migrate player_profiles: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) Load(ctx context.Context, username string) (Profile, error) {
	username = NormalizeUsername(username)

	var rec profileRecord
	err := g.db.WithContext(ctx).First(&rec, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load profile %s: %w", username, err)
	}

	skills := map[string]int{}
	if err := json.Unmarshal([]byte(rec.Skills), &skills); err != nil {
		return Profile{}, fmt.Errorf("decode profile %s: %w", username, err)
	}
	return Profile{
		Username:  rec.Username,
		Skills:    skills,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (g *GormStore) Save(ctx context.Context, p Profile) error {
	p.Username = NormalizeUsername(p.Username)
	if err := Validate(p); err != nil {
		return err
	}
	skills, err := json.Marshal(p.Skills)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.Username, err)
	}

	rec := profileRecord{Username: p.Username, Skills: string(skills)}
	err = g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"skills", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.Username, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
