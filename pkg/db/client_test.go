package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/logger"
)

type ledgerRow struct {
	ID   uint `gorm:"primaryKey"`
	Memo string
}

func openClient(t *testing.T) *Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&ledgerRow{}))
	return FromGorm(conn)
}

func countRows(t *testing.T, c *Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, c.DB().Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	c := openClient(t)
	err := c.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Memo: "kept"}).Error
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countRows(t, c))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	c := openClient(t)
	boom := errors.New("boom")
	err := c.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&ledgerRow{Memo: "discarded"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, countRows(t, c))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	c := openClient(t)
	assert.Panics(t, func() {
		_ = c.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&ledgerRow{Memo: "discarded"})
			panic("handler blew up")
		})
	})
	assert.Zero(t, countRows(t, c))
}

func TestPingAndClose(t *testing.T) {
	c := openClient(t)
	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Close())
	assert.Error(t, c.Ping(context.Background()))
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	require.ErrorIs(t, err, errDSNRequired)
}

func TestQueryLoggerDiscardsWithoutThreshold(t *testing.T) {
	logg := logger.New(logger.Options{Output: &bytes.Buffer{}})
	assert.Equal(t, gormlogger.Discard, queryLogger(context.Background(), nil, time.Second))
	assert.Equal(t, gormlogger.Discard, queryLogger(context.Background(), logg, 0))
}

func TestSlowQueryWriterLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	slowQueryWriter{ctx: context.Background(), logg: logg}.Printf("SLOW SQL >= %v", time.Second)

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"component":"gorm"`)
	assert.Contains(t, out, "SLOW SQL >= 1s")
}
