package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/library-sorter/internal/database"
)

// ProfileRepository provides PostgreSQL-backed profile storage
type ProfileRepository struct {
	pool *Pool
}

// NewProfileRepository creates a new PostgreSQL profile repository
func NewProfileRepository(pool *Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// LoadAll returns every stored profile ordered by namespace and name
func (r *ProfileRepository) LoadAll(ctx context.Context) ([]database.StoredProfile, []error, error) {
	query := `
		SELECT namespace, name, centroid, members, last_computed
		FROM profiles
		ORDER BY namespace, name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var result []database.StoredProfile
	var warnings []error
	for rows.Next() {
		var p database.StoredProfile
		var vec *pgvector.Vector
		var members []string
		if err := rows.Scan(&p.Namespace, &p.Name, &vec, pq.Array(&members), &p.LastComputed); err != nil {
			warnings = append(warnings, fmt.Errorf("scan profile: %w", err))
			continue
		}
		if vec != nil {
			p.Centroid = vec.Slice()
		}
		p.Members = members
		p.LastComputed = p.LastComputed.UTC()
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return result, warnings, nil
}

// SaveNamespace replaces all profiles of a namespace in one transaction
func (r *ProfileRepository) SaveNamespace(ctx context.Context, namespace string, profiles []database.StoredProfile) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM profiles WHERE namespace = $1", namespace); err != nil {
		return fmt.Errorf("delete namespace profiles: %w", err)
	}

	insert := `
		INSERT INTO profiles (namespace, name, centroid, members, last_computed)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, p := range profiles {
		var centroid any
		if len(p.Centroid) > 0 {
			centroid = pgvector.NewVector(p.Centroid)
		}
		members := p.Members
		if members == nil {
			members = []string{}
		}
		if _, err := tx.ExecContext(ctx, insert, namespace, p.Name, centroid, pq.Array(members), p.LastComputed.UTC()); err != nil {
			return fmt.Errorf("insert profile %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profiles: %w", err)
	}
	return nil
}

// DeleteNamespace removes all profiles of a namespace
func (r *ProfileRepository) DeleteNamespace(ctx context.Context, namespace string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM profiles WHERE namespace = $1", namespace); err != nil {
		return fmt.Errorf("delete namespace profiles: %w", err)
	}
	return nil
}
