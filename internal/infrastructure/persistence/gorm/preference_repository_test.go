package gorm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type PreferenceRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo *PreferenceRepository
	ctx  context.Context
}

func (s *PreferenceRepositoryTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(db.AutoMigrate(Models()...))

	s.db = db
	s.repo = NewPreferenceRepository(db)
	s.ctx = context.Background()
}

func (s *PreferenceRepositoryTestSuite) TearDownTest() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (s *PreferenceRepositoryTestSuite) TestGet_Missing() {
	value, found, err := s.repo.Get(s.ctx, "kitchen:doc:theme")
	s.NoError(err)
	s.False(found)
	s.Empty(value)
}

func (s *PreferenceRepositoryTestSuite) TestSet_Upserts() {
	s.Require().NoError(s.repo.Set(s.ctx, "kitchen:doc:theme", "dark"))
	s.Require().NoError(s.repo.Set(s.ctx, "kitchen:doc:theme", "auto"))

	value, found, err := s.repo.Get(s.ctx, "kitchen:doc:theme")
	s.NoError(err)
	s.True(found)
	s.Equal("auto", value)

	count, err := s.repo.Count(s.ctx)
	s.NoError(err)
	s.Equal(int64(1), count)
}

func (s *PreferenceRepositoryTestSuite) TestKeysAreIndependent() {
	s.Require().NoError(s.repo.Set(s.ctx, "kitchen:a:theme", "light"))
	s.Require().NoError(s.repo.Set(s.ctx, "kitchen:b:theme", "dark"))

	a, _, err := s.repo.Get(s.ctx, "kitchen:a:theme")
	s.NoError(err)
	b, _, err := s.repo.Get(s.ctx, "kitchen:b:theme")
	s.NoError(err)

	s.Equal("light", a)
	s.Equal("dark", b)
}

func (s *PreferenceRepositoryTestSuite) TestDelete() {
	s.Require().NoError(s.repo.Set(s.ctx, "kitchen:doc:theme", "light"))
	s.Require().NoError(s.repo.Delete(s.ctx, "kitchen:doc:theme"))
	s.Require().NoError(s.repo.Delete(s.ctx, "kitchen:doc:theme"))

	_, found, err := s.repo.Get(s.ctx, "kitchen:doc:theme")
	s.NoError(err)
	s.False(found)
}

func (s *PreferenceRepositoryTestSuite) TestClosedDatabaseFails() {
	sqlDB, err := s.db.DB()
	s.Require().NoError(err)
	s.Require().NoError(sqlDB.Close())

	_, _, err = s.repo.Get(s.ctx, "kitchen:doc:theme")
	s.Error(err)
	s.Error(s.repo.Set(s.ctx, "kitchen:doc:theme", "dark"))
}

func TestPreferenceRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(PreferenceRepositoryTestSuite))
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, LogLevel("silent"))
	assert.Equal(t, logger.Error, LogLevel("ERROR"))
	assert.Equal(t, logger.Info, LogLevel("debug"))
	require.Equal(t, logger.Warn, LogLevel(""))
}
