package directory

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/facegate/internal/database"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
)

// PostgresDirectory stores users in the users table. The position column
// preserves directory order, which decides ties in matching.
type PostgresDirectory struct {
	pool database.PgxPool
}

func NewPostgresDirectory(pool database.PgxPool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) LoadAll(ctx context.Context) ([]domain.EnrolledUser, error) {
	query := `
		SELECT username, full_name, credential, face_vector, face_method
		FROM users
		ORDER BY position, username
	`

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, domain.ErrDirectoryIO.WithError(fmt.Errorf("load users: %w", err))
	}
	defer rows.Close()

	users := make([]domain.EnrolledUser, 0)
	for rows.Next() {
		var user domain.EnrolledUser
		var vector *pgvector.Vector
		var method *string

		if err := rows.Scan(&user.Username, &user.FullName, &user.Credential, &vector, &method); err != nil {
			return nil, domain.ErrDirectoryIO.WithError(fmt.Errorf("scan user: %w", err))
		}

		user.FaceVector = fromPgvector(vector)
		if method != nil {
			user.FaceMethod = *method
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.ErrDirectoryIO.WithError(fmt.Errorf("iterate users: %w", err))
	}

	return users, nil
}

// SaveAll replaces the whole table in one transaction.
func (d *PostgresDirectory) SaveAll(ctx context.Context, users []domain.EnrolledUser) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return domain.ErrDirectoryIO.WithError(fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM users`); err != nil {
		return domain.ErrDirectoryIO.WithError(fmt.Errorf("clear users: %w", err))
	}

	query := `
		INSERT INTO users (username, full_name, credential, face_vector, face_method, position, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	for i, user := range users {
		var method *string
		if user.FaceMethod != "" {
			method = &user.FaceMethod
		}

		if _, err := tx.Exec(ctx, query,
			user.Username,
			user.FullName,
			user.Credential,
			toPgvector(user.FaceVector),
			method,
			i,
		); err != nil {
			return domain.ErrDirectoryIO.WithError(fmt.Errorf("insert user %s: %w", user.Username, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ErrDirectoryIO.WithError(fmt.Errorf("commit: %w", err))
	}

	return nil
}

func toPgvector(v []float64) *pgvector.Vector {
	if len(v) == 0 {
		return nil
	}

	floats := make([]float32, len(v))
	for i, x := range v {
		floats[i] = float32(x)
	}
	vec := pgvector.NewVector(floats)
	return &vec
}

func fromPgvector(vec *pgvector.Vector) []float64 {
	if vec == nil || len(vec.Slice()) == 0 {
		return nil
	}

	out := make([]float64, len(vec.Slice()))
	for i, x := range vec.Slice() {
		out[i] = float64(x)
	}
	return out
}

var _ Directory = (*PostgresDirectory)(nil)
