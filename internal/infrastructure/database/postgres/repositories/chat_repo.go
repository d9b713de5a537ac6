package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tracefold/anonymizer/internal/domain/chat"
	"github.com/tracefold/anonymizer/internal/infrastructure/database/postgres"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

type chatRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

// NewChatRepo returns the PostgreSQL implementation of chat.Repository.
func NewChatRepo(conn *postgres.Connection, log logging.Logger) chat.Repository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &chatRepo{
		conn:     conn,
		log:      log,
		executor: conn.DB(),
	}
}

func (r *chatRepo) WithTx(ctx context.Context, fn func(chat.Repository) error) error {
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}

	txRepo := &chatRepo{
		conn:     r.conn,
		log:      r.log,
		executor: tx,
	}

	if err := fn(txRepo); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

// User

func (r *chatRepo) CreateUser(ctx context.Context, u *chat.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, email, name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`
	err := r.executor.QueryRowContext(ctx, query, u.ID, u.Email, u.Name).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if uniqueViolation(err, "users_email_key") {
			return errors.Wrap(err, errors.ErrCodeConflict, "email already registered")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create user")
	}
	return nil
}

func (r *chatRepo) GetUser(ctx context.Context, id uuid.UUID) (*chat.User, error) {
	query := `
		SELECT id, email, name, created_at, updated_at, deleted_at
		FROM users WHERE id = $1 AND deleted_at IS NULL
	`
	return scanUser(r.executor.QueryRowContext(ctx, query, id))
}

func (r *chatRepo) GetUserByEmail(ctx context.Context, email string) (*chat.User, error) {
	query := `
		SELECT id, email, name, created_at, updated_at, deleted_at
		FROM users WHERE email = $1 AND deleted_at IS NULL
	`
	return scanUser(r.executor.QueryRowContext(ctx, query, email))
}

func (r *chatRepo) SoftDeleteUser(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.executor.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete user")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return errors.Newf(errors.ErrCodeUserNotFound, "user %s not found", id)
	}
	return nil
}

func scanUser(row scanner) (*chat.User, error) {
	var u chat.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeUserNotFound, "user not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan user")
	}
	return &u, nil
}

// Chat log

func (r *chatRepo) CreateChatLog(ctx context.Context, log *chat.ChatLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	byTypeJSON, err := json.Marshal(log.MaskedByType)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode masked_by_type")
	}

	query := `
		INSERT INTO chat_logs (
			id, user_id, question, answer, intent, confidence, fallback,
			total_masked, masked_by_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	err = r.executor.QueryRowContext(ctx, query,
		log.ID, log.UserID, log.Question, log.Answer, log.Intent,
		log.Confidence, log.Fallback, log.TotalMasked, byTypeJSON,
	).Scan(&log.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeChatLogPersistFailed, "failed to create chat log")
	}
	return nil
}

func (r *chatRepo) GetChatLog(ctx context.Context, id uuid.UUID) (*chat.ChatLog, error) {
	query := `
		SELECT id, user_id, question, answer, intent, confidence, fallback,
		       total_masked, masked_by_type, created_at
		FROM chat_logs WHERE id = $1
	`
	return scanChatLog(r.executor.QueryRowContext(ctx, query, id))
}

func (r *chatRepo) ListChatLogs(ctx context.Context, filter chat.ListFilter) ([]*chat.ChatLog, int64, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.Intent != "" {
		args = append(args, filter.Intent)
		where += fmt.Sprintf(" AND intent = $%d", len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		where += fmt.Sprintf(" AND created_at < $%d", len(args))
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM chat_logs " + where
	if err := r.executor.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count chat logs")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitClause := fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	limitClause += fmt.Sprintf(" OFFSET $%d", len(args))

	query := `
		SELECT id, user_id, question, answer, intent, confidence, fallback,
		       total_masked, masked_by_type, created_at
		FROM chat_logs ` + where + limitClause

	rows, err := r.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list chat logs")
	}
	defer rows.Close()

	logs := []*chat.ChatLog{}
	for rows.Next() {
		log, err := scanChatLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate chat logs")
	}
	return logs, total, nil
}

func (r *chatRepo) PurgeChatLogs(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.executor.ExecContext(ctx, `DELETE FROM chat_logs WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to purge chat logs")
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		r.log.Info("Purged chat logs",
			logging.Int64("count", rows),
			logging.String("older_than", olderThan.Format(time.RFC3339)),
		)
	}
	return rows, nil
}

func scanChatLog(row scanner) (*chat.ChatLog, error) {
	var (
		log        chat.ChatLog
		byTypeJSON []byte
	)
	err := row.Scan(
		&log.ID, &log.UserID, &log.Question, &log.Answer, &log.Intent,
		&log.Confidence, &log.Fallback, &log.TotalMasked, &byTypeJSON, &log.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("chat log not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan chat log")
	}
	if len(byTypeJSON) > 0 {
		if err := json.Unmarshal(byTypeJSON, &log.MaskedByType); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode masked_by_type")
		}
	}
	return &log, nil
}
