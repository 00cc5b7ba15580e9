package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/medsenger/education-agent/internal/domain/contract"
	"github.com/medsenger/education-agent/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTRACT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ContractRepository implements contract.Repository for PostgreSQL.
type ContractRepository struct {
	conn *Connection
}

// NewContractRepository creates a new ContractRepository.
func NewContractRepository(conn *Connection) *ContractRepository {
	return &ContractRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new contract mirror row.
func (r *ContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	query := `
		INSERT INTO contracts (
			id, status, agent_token, connected_at, disconnected_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.conn.Exec(ctx, query,
		c.ID.Int64(),
		string(c.Status),
		string(c.AgentToken),
		c.ConnectedAt,
		nullableTime(c.DisconnectedAt),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrContractExists
		}
		return fmt.Errorf("failed to create contract: %w", err)
	}

	return nil
}

// GetByID returns a contract by its platform ID.
func (r *ContractRepository) GetByID(ctx context.Context, id contract.ID) (*contract.Contract, error) {
	query := `
		SELECT id, status, agent_token, connected_at, disconnected_at, created_at, updated_at
		FROM contracts
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id.Int64())
	return r.scanContract(row)
}

// GetByAgentToken returns the contract owning a doctor agent token.
func (r *ContractRepository) GetByAgentToken(ctx context.Context, token contract.AgentToken) (*contract.Contract, error) {
	query := `
		SELECT id, status, agent_token, connected_at, disconnected_at, created_at, updated_at
		FROM contracts
		WHERE agent_token = $1
	`

	row := r.conn.QueryRow(ctx, query, string(token))
	return r.scanContract(row)
}

// Update updates a contract mirror row.
func (r *ContractRepository) Update(ctx context.Context, c *contract.Contract) error {
	query := `
		UPDATE contracts
		SET status = $2, agent_token = $3, connected_at = $4,
		    disconnected_at = $5, updated_at = $6
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query,
		c.ID.Int64(),
		string(c.Status),
		string(c.AgentToken),
		c.ConnectedAt,
		nullableTime(c.DisconnectedAt),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return contract.ErrNotFound
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Listing Operations
// ─────────────────────────────────────────────────────────────────────────────

// ListActive returns IDs of all active contracts.
func (r *ContractRepository) ListActive(ctx context.Context) ([]contract.ID, error) {
	query := `SELECT id FROM contracts WHERE status = 'active' ORDER BY id`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active contracts: %w", err)
	}
	defer rows.Close()

	var ids []contract.ID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan contract id: %w", err)
		}
		ids = append(ids, contract.ID(id))
	}

	return ids, rows.Err()
}

// CountActive returns the number of active contracts.
func (r *ContractRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM contracts WHERE status = 'active'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active contracts: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Existence Checks
// ─────────────────────────────────────────────────────────────────────────────

// Exists checks whether a contract row exists.
func (r *ContractRepository) Exists(ctx context.Context, id contract.ID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM contracts WHERE id = $1)`, id.Int64(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check contract existence: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *ContractRepository) scanContract(row interface{ Scan(...interface{}) error }) (*contract.Contract, error) {
	var (
		id             int64
		status         string
		token          string
		connectedAt    time.Time
		disconnectedAt *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(&id, &status, &token, &connectedAt, &disconnectedAt, &createdAt, &updatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, contract.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan contract: %w", err)
	}

	c := &contract.Contract{
		ID:          contract.ID(id),
		Status:      contract.Status(status),
		AgentToken:  contract.AgentToken(token),
		ConnectedAt: connectedAt,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
	if disconnectedAt != nil {
		c.DisconnectedAt = *disconnectedAt
	}

	return c, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
