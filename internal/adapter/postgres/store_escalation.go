package postgres

import (
	"context"
	"fmt"

	"github.com/uptalk/switchboard/internal/domain/escalation"
)

// SaveEscalation upserts an escalation row. The in-memory registry owns
// the lifecycle; this is the durable history behind it.
func (s *Store) SaveEscalation(ctx context.Context, e *escalation.Escalation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO escalations
		   (id, code, conversation_id, client_id, reason, priority, status,
		    assigned_agent_id, summary, notes, resolved_by, created_at, resolved_at, resolution_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   assigned_agent_id = EXCLUDED.assigned_agent_id,
		   notes = EXCLUDED.notes,
		   resolved_by = EXCLUDED.resolved_by,
		   resolved_at = EXCLUDED.resolved_at,
		   resolution_minutes = EXCLUDED.resolution_minutes`,
		e.ID, e.Code, e.ConversationID, e.ClientID, e.Reason, e.Priority, e.Status,
		e.AssignedAgentID, e.Summary, e.Notes, e.ResolvedBy, e.CreatedAt, e.ResolvedAt, e.ResolutionMinutes)
	if err != nil {
		return fmt.Errorf("save escalation %s: %w", e.ID, err)
	}
	return nil
}

// ListEscalations returns escalation history matching the filters,
// newest first.
func (s *Store) ListEscalations(ctx context.Context, f escalation.Filters, limit int) ([]escalation.Escalation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, code, conversation_id, client_id, reason, priority, status,
		        assigned_agent_id, summary, notes, resolved_by, created_at, resolved_at, resolution_minutes
		 FROM escalations
		 WHERE ($1 = '' OR priority = $1)
		   AND ($2 = '' OR reason = $2)
		   AND ($3 = '' OR status = $3)
		   AND ($4 = '' OR assigned_agent_id = $4)
		 ORDER BY created_at DESC LIMIT $5`,
		string(f.Priority), string(f.Reason), string(f.Status), f.AgentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	var result []escalation.Escalation
	for rows.Next() {
		var e escalation.Escalation
		if err := rows.Scan(&e.ID, &e.Code, &e.ConversationID, &e.ClientID, &e.Reason,
			&e.Priority, &e.Status, &e.AssignedAgentID, &e.Summary, &e.Notes,
			&e.ResolvedBy, &e.CreatedAt, &e.ResolvedAt, &e.ResolutionMinutes); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
