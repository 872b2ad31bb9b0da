package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"pdf-chat/internal/apperr"
	"pdf-chat/internal/models"
)

// ChatHistory maps a username to its JSON-encoded transcript.
type ChatHistory struct {
	bun.BaseModel `bun:"table:chat_histories,alias:ch"`
	Username      string    `bun:"username,pk"`
	History       string    `bun:"history,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// LoadHistory returns the stored turns for username, or an empty history
// when nothing has been saved yet.
func LoadHistory(ctx context.Context, db *bun.DB, username string) ([]models.ChatTurn, error) {
	if username == "" {
		return nil, apperr.Newf(apperr.KindPersistence, "load history", "username is required")
	}

	var row ChatHistory
	err := db.NewSelect().Model(&row).Where("username = ?", username).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.ChatTurn{}, nil
	}
	if err != nil {
		return nil, apperr.New(apperr.KindPersistence, "load history", err)
	}

	var turns []models.ChatTurn
	if err := json.Unmarshal([]byte(row.History), &turns); err != nil {
		return nil, apperr.New(apperr.KindPersistence, "decode history", err)
	}
	return turns, nil
}

// SaveHistory inserts or overwrites the transcript of username.
func SaveHistory(ctx context.Context, db *bun.DB, username string, turns []models.ChatTurn) error {
	if username == "" {
		return apperr.Newf(apperr.KindPersistence, "save history", "username is required")
	}
	if turns == nil {
		turns = []models.ChatTurn{}
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return apperr.New(apperr.KindPersistence, "encode history", err)
	}

	row := &ChatHistory{
		Username:  username,
		History:   string(data),
		UpdatedAt: time.Now().UTC(),
	}
	_, err = db.NewInsert().
		Model(row).
		On("CONFLICT (username) DO UPDATE").
		Set("history = EXCLUDED.history").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return apperr.New(apperr.KindPersistence, "save history", err)
	}
	return nil
}

// HistoryStore exposes the history functions over one database handle.
type HistoryStore struct {
	db *bun.DB
}

func NewHistoryStore(db *bun.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) LoadHistory(ctx context.Context, username string) ([]models.ChatTurn, error) {
	return LoadHistory(ctx, s.db, username)
}

func (s *HistoryStore) SaveHistory(ctx context.Context, username string, turns []models.ChatTurn) error {
	return SaveHistory(ctx, s.db, username, turns)
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}
