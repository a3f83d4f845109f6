package store

import "time"

// Ticket statuses of the synchronous quick-calling flow.
const (
	TicketWaiting   = "WAITING"
	TicketCalled    = "CALLED"
	TicketServed    = "SERVED"
	TicketCancelled = "CANCELLED"
)

type User struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;size:64" json:"username"`
	PasswordHash string `json:"-"`
	Name         string `gorm:"size:128" json:"name"`
	CreatedAt    time.Time
}

type Team struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"size:128" json:"name"`
	OwnerID    int64  `gorm:"index" json:"ownerId"`
	CourtCount int    `json:"courtCount"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type TeamMember struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	TeamID    int64  `gorm:"index:idx_member_team_user,unique" json:"teamId"`
	UserID    int64  `gorm:"index:idx_member_team_user,unique" json:"userId"`
	SubTeam   string `gorm:"size:64" json:"subTeam"`
	CreatedAt time.Time
}

// Court is the persisted court row used by CRUD and the quick-calling
// variant. Session court state lives in memory only.
type Court struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	TeamID    int64  `gorm:"index" json:"teamId"`
	Number    int    `json:"number"`
	SubTeam   string `gorm:"size:64" json:"subTeam"`
	CreatedAt time.Time
}

// QueueTicket is one quick-calling queue entry.
type QueueTicket struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	TeamID    int64  `gorm:"index" json:"teamId"`
	PlayerID  int64  `gorm:"index" json:"playerId"`
	CourtID   *int64 `json:"courtId,omitempty"`
	Status    string `gorm:"size:16;index" json:"status"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MatchRecord keeps a history row per finished quick-calling match.
type MatchRecord struct {
	ID        int64 `gorm:"primaryKey" json:"id"`
	TeamID    int64 `gorm:"index" json:"teamId"`
	CourtID   int64 `json:"courtId"`
	PlayerIDs string `gorm:"size:256" json:"playerIds"` // comma-joined, in call order
	StartedAt time.Time
	EndedAt   time.Time
}

// Member is a roster row joined with the user's display name.
type Member struct {
	UserID  int64  `json:"userId"`
	Name    string `json:"name"`
	SubTeam string `json:"subTeam"`
}
