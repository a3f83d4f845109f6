package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")
var ErrDuplicate = errors.New("already exists")

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

// Migrate creates the schema on boot.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&User{}, &Team{}, &TeamMember{}, &Court{}, &QueueTicket{}, &MatchRecord{})
}

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &u, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return &u, nil
}

// CreateTeam inserts the team, enrolls the owner as a member, and
// provisions court rows 1..CourtCount.
func (s *Store) CreateTeam(ctx context.Context, t *Team) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return fmt.Errorf("creating team: %w", err)
		}
		if err := tx.Create(&TeamMember{TeamID: t.ID, UserID: t.OwnerID}).Error; err != nil {
			return fmt.Errorf("enrolling owner: %w", err)
		}
		for n := 1; n <= t.CourtCount; n++ {
			if err := tx.Create(&Court{TeamID: t.ID, Number: n}).Error; err != nil {
				return fmt.Errorf("provisioning court %d: %w", n, err)
			}
		}
		return nil
	})
}

func (s *Store) TeamByID(ctx context.Context, id int64) (*Team, error) {
	var t Team
	err := s.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading team: %w", err)
	}
	return &t, nil
}

func (s *Store) TeamsByOwner(ctx context.Context, ownerID int64) ([]Team, error) {
	var teams []Team
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	return teams, nil
}

func (s *Store) UpdateTeam(ctx context.Context, t *Team) error {
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return fmt.Errorf("updating team: %w", err)
	}
	return nil
}

func (s *Store) DeleteTeam(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&TeamMember{}, &Court{}, &QueueTicket{}} {
			if err := tx.Where("team_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("deleting team children: %w", err)
			}
		}
		if err := tx.Delete(&Team{}, id).Error; err != nil {
			return fmt.Errorf("deleting team: %w", err)
		}
		return nil
	})
}

func (s *Store) AddMember(ctx context.Context, m *TeamMember) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("adding member: %w", err)
	}
	return nil
}

// TeamMembers lists the roster in membership order with display names.
func (s *Store) TeamMembers(ctx context.Context, teamID int64) ([]Member, error) {
	var members []Member
	err := s.db.WithContext(ctx).
		Table("team_members").
		Select("team_members.user_id, users.name, team_members.sub_team").
		Joins("JOIN users ON users.id = team_members.user_id").
		Where("team_members.team_id = ?", teamID).
		Order("team_members.id").
		Scan(&members).Error
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return members, nil
}

func (s *Store) TeamCourts(ctx context.Context, teamID int64) ([]Court, error) {
	var courts []Court
	if err := s.db.WithContext(ctx).Where("team_id = ?", teamID).Order("number").Find(&courts).Error; err != nil {
		return nil, fmt.Errorf("listing courts: %w", err)
	}
	return courts, nil
}

func (s *Store) CourtByID(ctx context.Context, id int64) (*Court, error) {
	var c Court
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading court: %w", err)
	}
	return &c, nil
}
