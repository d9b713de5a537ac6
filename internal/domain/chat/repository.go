package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for users and chat logs.
type Repository interface {
	// User
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	SoftDeleteUser(ctx context.Context, id uuid.UUID) error

	// Chat log
	CreateChatLog(ctx context.Context, log *ChatLog) error
	GetChatLog(ctx context.Context, id uuid.UUID) (*ChatLog, error)
	ListChatLogs(ctx context.Context, filter ListFilter) ([]*ChatLog, int64, error)
	PurgeChatLogs(ctx context.Context, olderThan time.Time) (int64, error)

	// WithTx runs fn with a repository bound to a single transaction.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
