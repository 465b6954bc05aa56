// ABOUTME: Conversation turn persistence for SQLite
// ABOUTME: Implements the orchestrator's transcript store
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/harper/notion-copilot/internal/models"
)

// TurnStore handles turn persistence
type TurnStore struct {
	db *DB
}

// NewTurnStore creates a new TurnStore
func NewTurnStore(db *DB) *TurnStore {
	return &TurnStore{db: db}
}

// Append records a turn. Re-appending the same id is a no-op.
func (s *TurnStore) Append(turn *models.ConversationTurn) error {
	_, err := s.db.conn.Exec(`
		INSERT INTO turns (id, role, text, intent, confidence, source, tier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, turn.ID, string(turn.Role), turn.Text, nullString(string(turn.Intent)), turn.Confidence,
		turn.Source, nullString(string(turn.Tier)), turn.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// Recent returns the last limit turns in conversation order. limit <= 0 returns all.
func (s *TurnStore) Recent(limit int) ([]models.ConversationTurn, error) {
	query := `
		SELECT id, role, text, intent, confidence, source, tier, created_at FROM (
			SELECT * FROM turns ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []models.ConversationTurn
	for rows.Next() {
		var (
			turn       models.ConversationTurn
			role       string
			intent     sql.NullString
			source     sql.NullString
			tier       sql.NullString
			confidence sql.NullFloat64
		)
		if err := rows.Scan(&turn.ID, &role, &turn.Text, &intent, &confidence, &source, &tier, &turn.Timestamp); err != nil {
			return nil, err
		}
		turn.Role = models.Role(role)
		turn.Intent = models.Intent(intent.String)
		turn.Confidence = confidence.Float64
		turn.Source = source.String
		turn.Tier = models.BackendTier(tier.String)
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Count returns the number of stored turns
func (s *TurnStore) Count() (int, error) {
	var n int
	err := s.db.conn.QueryRow("SELECT COUNT(*) FROM turns").Scan(&n)
	return n, err
}

// Clear removes every turn
func (s *TurnStore) Clear() error {
	_, err := s.db.conn.Exec("DELETE FROM turns")
	return err
}

// Delete removes a specific turn
func (s *TurnStore) Delete(turnID string) error {
	_, err := s.db.conn.Exec("DELETE FROM turns WHERE id = ?", turnID)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
