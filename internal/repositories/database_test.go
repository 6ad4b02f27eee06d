package repositories_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"storefront/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type capturedLog struct {
	lines []string
}

func (l *capturedLog) Printf(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestNewLogger_QuietOnMisses(t *testing.T) {
	out := &capturedLog{}
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())), &gorm.Config{
		Logger: repositories.NewLogger(out),
	})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	out.lines = nil

	users := repositories.NewGORMUserRepository(db)
	_, err = users.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	for _, line := range out.lines {
		assert.False(t, strings.Contains(line, "record not found"), line)
	}

	// Real failures are still reported.
	err = db.Exec("SELECT * FROM missing_table").Error
	assert.Error(t, err)
	assert.NotEmpty(t, out.lines)
}
