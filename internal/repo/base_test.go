package repo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type widget struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	require.NoError(t, conn.Exec(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`).Error)
	return conn
}

func TestNewBaseStoresConnection(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.db != db {
		t.Fatalf("expected base db to match provided connection")
	}
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)

	if withCtx == nil {
		t.Fatalf("expected non-nil DB when context provided")
	}
	if withCtx.Statement == nil {
		t.Fatalf("expected statement created after WithContext")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}

	withoutCtx := base.DB(nil)
	if withoutCtx != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestRequireRowsAndExists(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&widget{ID: 1, Name: "a"}).Error)

	err := RequireRows(db.Model(&widget{}).Where("id = ?", 2).Update("name", "b"))
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.NoError(t, RequireRows(db.Model(&widget{}).Where("id = ?", 1).Update("name", "b")))

	found, err := Exists(db.Model(&widget{}).Where("name = ?", "b"))
	require.NoError(t, err)
	require.True(t, found)

	found, err = Exists(db.Model(&widget{}).Where("name = ?", "zzz"))
	require.NoError(t, err)
	require.False(t, found)
}
