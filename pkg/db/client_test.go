package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kioskpos/pos-backend/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T, opts ...func(*gorm.Config)) *gorm.DB {
	t.Helper()
	cfg := &gorm.Config{SkipDefaultTransaction: true}
	for _, opt := range opts {
		opt(cfg)
	}
	conn, err := gorm.Open(sqlite.Open("file:dbclient_"+uuid.NewString()+"?mode=memory&cache=shared"), cfg)
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func count(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&testModel{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := newTestDB(t)
	client := FromConn(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))
	assert.EqualValues(t, 1, count(t, conn))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	assert.EqualValues(t, 1, count(t, conn))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := FromConn(conn)

	assert.PanicsWithValue(t, "boom", func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	})
	assert.EqualValues(t, 0, count(t, conn))
}

func TestPingAndFromConn(t *testing.T) {
	conn := newTestDB(t)
	client := FromConn(conn)
	require.Same(t, conn, client.DB())
	require.NoError(t, client.Ping(context.Background()))
}

func TestQueryLoggerReportsSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})

	conn := newTestDB(t, func(cfg *gorm.Config) {
		cfg.Logger = newQueryLogger(logg, time.Nanosecond)
	})
	require.NoError(t, conn.Create(&testModel{Name: "slow"}).Error)
	assert.Contains(t, buf.String(), "SLOW SQL")

	// missing rows are an expected lookup outcome, not a warning
	buf.Reset()
	var missing testModel
	err := conn.Session(&gorm.Session{Logger: newQueryLogger(logg, time.Hour)}).First(&missing, 999).Error
	require.True(t, IsNotFound(err))
	assert.Empty(t, buf.String())
}

func TestQueryLoggerDisabled(t *testing.T) {
	assert.Equal(t, gormlogger.Discard, newQueryLogger(nil, time.Second))
	logg := logger.New(logger.Options{ServiceName: "db-test"})
	assert.Equal(t, gormlogger.Discard, newQueryLogger(logg, 0))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(gorm.ErrRecordNotFound))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestNilClientErrors(t *testing.T) {
	var client *Client
	require.Error(t, client.Ping(context.Background()))
	require.Error(t, client.Close())
	require.Error(t, client.WithTx(context.Background(), func(*gorm.DB) error { return nil }))
}
