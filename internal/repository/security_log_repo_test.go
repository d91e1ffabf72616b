package repository_test

import (
	"context"
	"testing"

	"authgate/internal/entity"
	"authgate/internal/repository"
	"authgate/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestSecurityLogRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db)
	logs := repository.NewSecurityLogRepository(db)

	user := &entity.User{Username: "alice", Email: "a@example.com", PasswordHash: "x"}
	require.NoError(t, users.Create(ctx, user))

	ip := "203.0.113.7"
	require.NoError(t, logs.Log(ctx, &entity.SecurityLog{UserID: &user.ID, IPAddress: &ip, Action: entity.LoginSuccess}))
	require.NoError(t, logs.Log(ctx, &entity.SecurityLog{
		UserID:   &user.ID,
		Action:   entity.MFAFailed,
		Metadata: datatypes.JSON(`{"stage":"login"}`),
	}))
	require.NoError(t, logs.Log(ctx, &entity.SecurityLog{Action: entity.LoginFailed}))

	entries, err := logs.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entity.LoginSuccess, entries[0].Action)
	require.Equal(t, ip, *entries[0].IPAddress)
	require.Equal(t, entity.MFAFailed, entries[1].Action)
	require.JSONEq(t, `{"stage":"login"}`, string(entries[1].Metadata))
}
