//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/tracefold/anonymizer/internal/config"
	"github.com/tracefold/anonymizer/internal/domain/chat"
	"github.com/tracefold/anonymizer/internal/infrastructure/database/postgres"
	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

func startPostgres(t *testing.T) chat.Repository {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.RunContainer(ctx,
		tcpostgres.WithDatabase("anonymizer_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "postgres",
		Password: "postgres",
		DBName:   "anonymizer_test",
		SSLMode:  "disable",
	}

	require.NoError(t, postgres.RunMigrations(cfg.DSN(), "file://../../../../../migrations"))

	conn, err := postgres.NewConnection(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewChatRepo(conn, logging.NewNopLogger())
}

func TestChatRepo_Integration_RoundTrip(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()

	u := &chat.User{Email: "jane@example.com", Name: "Jane"}
	require.NoError(t, repo.CreateUser(ctx, u))

	dup := &chat.User{Email: "jane@example.com", Name: "Other Jane"}
	require.True(t, errors.IsCode(repo.CreateUser(ctx, dup), errors.ErrCodeConflict))

	log := &chat.ChatLog{
		UserID:       u.ID,
		Question:     "My policy is under [REDACTED_PERSON].",
		Answer:       "Let me check that policy.",
		Intent:       "check_policy",
		Confidence:   0.87,
		TotalMasked:  1,
		MaskedByType: map[string]int{"PERSON": 1},
	}
	require.NoError(t, repo.CreateChatLog(ctx, log))

	got, err := repo.GetChatLog(ctx, log.ID)
	require.NoError(t, err)
	require.Equal(t, log.Question, got.Question)
	require.Equal(t, map[string]int{"PERSON": 1}, got.MaskedByType)

	logs, total, err := repo.ListChatLogs(ctx, chat.ListFilter{UserID: &u.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, logs, 1)

	n, err := repo.PurgeChatLogs(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, repo.SoftDeleteUser(ctx, u.ID))
	_, err = repo.GetUser(ctx, u.ID)
	require.True(t, errors.IsCode(err, errors.ErrCodeUserNotFound))
	require.True(t, errors.IsCode(repo.SoftDeleteUser(ctx, uuid.New()), errors.ErrCodeUserNotFound))
}
