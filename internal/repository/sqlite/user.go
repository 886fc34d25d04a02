package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/learnpath/internal/apperror"
	"github.com/sakif/learnpath/internal/model"
	"github.com/sakif/learnpath/internal/repository"
)

// Compile-time check that *DB satisfies the interface.
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new user. A UNIQUE violation on email is translated
// to apperror.Conflict so the handler can answer 409 without the service
// layer knowing sqlite error strings.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	var googleID any
	if user.GoogleID != "" {
		googleID = user.GoogleID
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, google_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, googleID, user.CreatedAt,
	)
	if err != nil {
		// modernc/sqlite reports constraint failures by message; there is
		// only one UNIQUE constraint reachable from this insert per column.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("a user with this email already exists")
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, email)
}

func (db *DB) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return db.getUser(ctx, `WHERE google_id = ?`, googleID)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		user     model.User
		googleID sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, google_id, created_at FROM users `+where,
		arg,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &googleID, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}
	user.GoogleID = googleID.String
	return &user, nil
}
