package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// The quick-calling variant: synchronous request/response against the queue
// tickets, with no live push. A court only calls players whose sub-team
// matches its own; finishing marks every called player on the court served.

var ErrAlreadyQueued = errors.New("player already has an open ticket")
var ErrNoMatchingPlayer = errors.New("no waiting player matches this court")
var ErrTicketState = errors.New("ticket is not in a cancellable state")

// EnqueueTicket opens a WAITING ticket unless the player already has one
// open (WAITING or CALLED).
func (s *Store) EnqueueTicket(ctx context.Context, teamID, playerID int64) (*QueueTicket, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&QueueTicket{}).
		Where("team_id = ? AND player_id = ? AND status IN ?", teamID, playerID, []string{TicketWaiting, TicketCalled}).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("checking open tickets: %w", err)
	}
	if count > 0 {
		return nil, ErrAlreadyQueued
	}
	ticket := &QueueTicket{TeamID: teamID, PlayerID: playerID, Status: TicketWaiting}
	if err := s.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, fmt.Errorf("creating ticket: %w", err)
	}
	return ticket, nil
}

func (s *Store) WaitingTickets(ctx context.Context, teamID int64) ([]QueueTicket, error) {
	var tickets []QueueTicket
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND status = ?", teamID, TicketWaiting).
		Order("created_at, id").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("listing waiting tickets: %w", err)
	}
	return tickets, nil
}

// CallNext moves the oldest waiting ticket whose player's sub-team matches
// the court onto the court (WAITING -> CALLED).
func (s *Store) CallNext(ctx context.Context, courtID int64) (*QueueTicket, error) {
	court, err := s.CourtByID(ctx, courtID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.WaitingTickets(ctx, court.TeamID)
	if err != nil {
		return nil, err
	}
	members, err := s.TeamMembers(ctx, court.TeamID)
	if err != nil {
		return nil, err
	}
	subTeams := make(map[int64]string, len(members))
	for _, m := range members {
		subTeams[m.UserID] = m.SubTeam
	}

	pick := PickTicket(tickets, subTeams, court.SubTeam)
	if pick == nil {
		return nil, ErrNoMatchingPlayer
	}
	update := s.db.WithContext(ctx).Model(&QueueTicket{}).
		Where("id = ? AND status = ?", pick.ID, TicketWaiting).
		Updates(map[string]any{"status": TicketCalled, "court_id": courtID})
	if update.Error != nil {
		return nil, fmt.Errorf("calling ticket: %w", update.Error)
	}
	if update.RowsAffected == 0 {
		// Lost a race with a concurrent call; the caller just retries.
		return nil, ErrNoMatchingPlayer
	}
	pick.Status = TicketCalled
	pick.CourtID = &courtID
	s.log.Info("player called", zap.Int64("court_id", courtID), zap.Int64("player_id", pick.PlayerID))
	return pick, nil
}

// PickTicket selects the oldest waiting ticket whose player belongs to the
// court's sub-team. An empty court sub-team matches any player.
func PickTicket(tickets []QueueTicket, subTeams map[int64]string, courtSubTeam string) *QueueTicket {
	for i := range tickets {
		if courtSubTeam == "" || subTeams[tickets[i].PlayerID] == courtSubTeam {
			t := tickets[i]
			return &t
		}
	}
	return nil
}

// FinishCourt serves every called ticket on the court and records the match.
func (s *Store) FinishCourt(ctx context.Context, courtID int64) (int, error) {
	court, err := s.CourtByID(ctx, courtID)
	if err != nil {
		return 0, err
	}
	var served int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var called []QueueTicket
		if err := tx.Where("court_id = ? AND status = ?", courtID, TicketCalled).
			Order("updated_at, id").Find(&called).Error; err != nil {
			return fmt.Errorf("loading called tickets: %w", err)
		}
		if len(called) == 0 {
			return nil
		}
		if err := tx.Model(&QueueTicket{}).
			Where("court_id = ? AND status = ?", courtID, TicketCalled).
			Update("status", TicketServed).Error; err != nil {
			return fmt.Errorf("serving tickets: %w", err)
		}
		ids := make([]string, 0, len(called))
		startedAt := time.Now()
		for _, t := range called {
			ids = append(ids, strconv.FormatInt(t.PlayerID, 10))
			if t.UpdatedAt.Before(startedAt) {
				startedAt = t.UpdatedAt
			}
		}
		record := MatchRecord{
			TeamID:    court.TeamID,
			CourtID:   courtID,
			PlayerIDs: strings.Join(ids, ","),
			StartedAt: startedAt,
			EndedAt:   time.Now(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("recording match: %w", err)
		}
		served = len(called)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return served, nil
}

func (s *Store) CancelTicket(ctx context.Context, ticketID int64) error {
	update := s.db.WithContext(ctx).Model(&QueueTicket{}).
		Where("id = ? AND status = ?", ticketID, TicketWaiting).
		Update("status", TicketCancelled)
	if update.Error != nil {
		return fmt.Errorf("cancelling ticket: %w", update.Error)
	}
	if update.RowsAffected == 0 {
		return ErrTicketState
	}
	return nil
}
