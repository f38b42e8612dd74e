package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPool(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	applied := applyPool(db, PoolConfig{MaxOpenConns: 3, MaxIdleConns: 8, ConnMaxLifetime: time.Minute})
	assert.Equal(t, 3, db.Stats().MaxOpenConnections)
	assert.Equal(t, 3, applied.MaxIdleConns)
	assert.Equal(t, time.Minute, applied.ConnMaxLifetime)
	assert.Equal(t, DefaultPoolConfig.ConnMaxIdleTime, applied.ConnMaxIdleTime)
}

func TestApplyPool_ZeroUsesDefaults(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DefaultPoolConfig, applyPool(db, PoolConfig{}))
	assert.Equal(t, DefaultPoolConfig.MaxOpenConns, db.Stats().MaxOpenConnections)
}
