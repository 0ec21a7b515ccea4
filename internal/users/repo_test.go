package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/schoolstock/stockroom-backend/pkg/enums"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'teacher',
  password_hash TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

func TestCreateAndFindUser(t *testing.T) {
	repo := NewRepository(setupUsersTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{
		Email:        "ms.rivera@school.test",
		Name:         "Ms. Rivera",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleTeacher, created.Role, "role defaults to teacher")

	byEmail, err := repo.FindByEmail(ctx, "ms.rivera@school.test")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ms. Rivera", byID.Name)
}

func TestListApproverIDs(t *testing.T) {
	repo := NewRepository(setupUsersTestDB(t))
	ctx := context.Background()

	teacher, err := repo.Create(ctx, CreateUserDTO{Email: "t@school.test", Name: "T", PasswordHash: "x"})
	require.NoError(t, err)
	manager, err := repo.Create(ctx, CreateUserDTO{Email: "m@school.test", Name: "M", Role: enums.RoleStockManager, PasswordHash: "x"})
	require.NoError(t, err)
	admin, err := repo.Create(ctx, CreateUserDTO{Email: "a@school.test", Name: "A", Role: enums.RoleAdmin, PasswordHash: "x"})
	require.NoError(t, err)

	ids, err := repo.ListApproverIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{manager.ID, admin.ID}, ids)
	assert.NotContains(t, ids, teacher.ID)
}
