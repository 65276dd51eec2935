// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Raffle status constants
const (
	StatusDraft       = "draft"
	StatusPublished   = "published"
	StatusActive      = "active"
	StatusReadyToDraw = "ready_to_draw"
	StatusFinished    = "finished"
	StatusCancelled   = "cancelled"
)

// Device roles
const (
	RoleParticipant = "participant"
	RoleOwner       = "owner"
)

// Platforms
const (
	PlatformIOS     = "ios"
	PlatformMacOS   = "macos"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// Notification kinds
const (
	NotifyDrawFinished = "draw_finished"
	NotifyDrawWon      = "draw_won"
)

// Request types

type CreateRaffleRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	OwnerName   string `json:"owner_name"`
	Capacity    *int   `json:"capacity,omitempty"`
}

type EnterRaffleRequest struct {
	HolderName string `json:"holder_name"`
	TicketCode string `json:"ticket_code,omitempty"`
}

type ScheduleDrawRequest struct {
	Minutes int `json:"minutes"`
}

type RunDrawRequest struct {
	AutoCommit *bool `json:"autocommit,omitempty"`
}

type RegisterDeviceRequest struct {
	Platform string `json:"platform"`
}

// Response types

type CreateRaffleResponse struct {
	RaffleID string `json:"raffle_id"`
	AdminKey string `json:"admin_key"`
}

type PublishRaffleResponse struct {
	ShareSlug string `json:"share_slug"`
	ShareURL  string `json:"share_url"`
}

type EnterRaffleResponse struct {
	ParticipationID string `json:"participation_id"`
	TicketCode      string `json:"ticket_code"`
	HolderToken     string `json:"holder_token"`
	Status          string `json:"status"`
}

type RaffleStatusResponse struct {
	RaffleID string `json:"raffle_id"`
	Status   string `json:"status"`
}

type ScheduleDrawResponse struct {
	Status         string    `json:"status"`
	DrawAt         time.Time `json:"draw_at"`
	CommitmentHash string    `json:"commitment_hash"`
}

// DrawStatusResponse is the public view of a raffle's draw.
// Secret and Ranking are only populated once the raffle is finished.
type DrawStatusResponse struct {
	RaffleID               string        `json:"raffle_id"`
	Status                 string        `json:"status"`
	ParticipantCount       int           `json:"participant_count"`
	Capacity               *int          `json:"capacity,omitempty"`
	DrawAt                 *time.Time    `json:"draw_at,omitempty"`
	DrawsIn                string        `json:"draws_in,omitempty"`
	DrawnAt                *time.Time    `json:"drawn_at,omitempty"`
	CommitmentHash         string        `json:"commitment_hash,omitempty"`
	CommitmentSecret       string        `json:"commitment_secret,omitempty"`
	WinningParticipationID string        `json:"winning_participation_id,omitempty"`
	Ranking                []RankedEntry `json:"ranking,omitempty"`
}

// RunDrawResponse is returned by a manual run.
type RunDrawResponse struct {
	WinnerID        string        `json:"winner_id"`
	Ranking         []RankedEntry `json:"ranking"`
	Shuffled        []string      `json:"shuffled"`
	CommitmentHash  string        `json:"commitment_hash"`
	Secret          string        `json:"commitment_secret"`
	DrawnAt         time.Time     `json:"drawn_at"`
	AlreadyExecuted bool          `json:"already_executed"`
}

// AuditResponse carries every input needed to replay a finished draw.
type AuditResponse struct {
	RaffleID         string        `json:"raffle_id"`
	DrawnAt          time.Time     `json:"drawn_at"`
	Moment           string        `json:"moment"`
	CommitmentHash   string        `json:"commitment_hash"`
	CommitmentSecret string        `json:"commitment_secret"`
	Entries          []AuditEntry  `json:"entries"`
	Shuffled         []string      `json:"shuffled"`
	Ranking          []RankedEntry `json:"ranking"`
	WinnerID         string        `json:"winner_id"`
	Verified         bool          `json:"verified"`
	VerifyError      string        `json:"verify_error,omitempty"`
}

type AuditEntry struct {
	ParticipationID string `json:"participation_id"`
	TicketCode      string `json:"ticket_code"`
}

type RankedEntry struct {
	Rank            int    `json:"rank"`
	ParticipationID string `json:"participation_id"`
	TicketCode      string `json:"ticket_code,omitempty"`
}

type MyParticipationResponse struct {
	ParticipationID string    `json:"participation_id"`
	TicketCode      string    `json:"ticket_code"`
	HolderName      string    `json:"holder_name"`
	EnteredAt       time.Time `json:"entered_at"`
	RaffleStatus    string    `json:"raffle_status"`
	IsWinner        bool      `json:"is_winner"`
	Rank            *int      `json:"rank,omitempty"`
}

type RegisterDeviceResponse struct {
	DeviceID string `json:"device_id"`
	IsNew    bool   `json:"is_new"`
	Raffles  int    `json:"raffles"` // raffles already linked to the device
}

type DeviceInfo struct {
	ID             string    `json:"id"`
	Platform       string    `json:"platform"`
	CreatedAt      time.Time `json:"created_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
	RafflesOwned   int       `json:"raffles_owned"`
	RafflesEntered int       `json:"raffles_entered"`
	RafflesWon     int       `json:"raffles_won"`
}

type DeviceRaffle struct {
	RaffleID        string    `json:"raffle_id"`
	Title           string    `json:"title"`
	Status          string    `json:"status"`
	ShareSlug       *string   `json:"share_slug,omitempty"`
	Role            string    `json:"role"`
	ParticipationID *string   `json:"participation_id,omitempty"`
	IsWinner        bool      `json:"is_winner"`
	LinkedAt        time.Time `json:"linked_at"`
}

type GetMyRafflesResponse struct {
	Raffles []DeviceRaffle `json:"raffles"`
}

type NotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
}

type Notification struct {
	ID        string    `json:"id"`
	RaffleID  string    `json:"raffle_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Domain types

type Raffle struct {
	ID                     string     `json:"id"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	OwnerName              string     `json:"owner_name"`
	Status                 string     `json:"status"`
	Capacity               *int       `json:"capacity,omitempty"`
	ParticipantCount       int        `json:"participant_count"`
	ShareSlug              *string    `json:"share_slug,omitempty"`
	DrawAt                 *time.Time `json:"draw_at,omitempty"`
	DrawnAt                *time.Time `json:"drawn_at,omitempty"`
	CommitmentHash         *string    `json:"commitment_hash,omitempty"`
	CommitmentSecret       *string    `json:"-"` // Never expose before the draw
	WinningParticipationID *string    `json:"winning_participation_id,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

// Drawn reports whether any part of a draw result has been persisted.
// A raffle with either field set must never be drawn again.
func (r *Raffle) Drawn() bool {
	return r.DrawnAt != nil || r.WinningParticipationID != nil
}

// Terminal reports whether no further lifecycle transition is possible.
func (r *Raffle) Terminal() bool {
	return r.Status == StatusFinished || r.Status == StatusCancelled
}

type Participation struct {
	ID         string    `json:"id"`
	RaffleID   string    `json:"raffle_id"`
	TicketID   string    `json:"ticket_id"`
	TicketCode string    `json:"ticket_code"`
	CreatedAt  time.Time `json:"created_at"`
	IsWinner   bool      `json:"is_winner"`
	Rank       *int      `json:"rank,omitempty"`
}

type RaffleWithParticipations struct {
	Raffle         Raffle          `json:"raffle"`
	Participations []Participation `json:"participations"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
