package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"backoffice-backend/shared/config"
	"backoffice-backend/shared/database/models"
	"backoffice-backend/shared/utils/cache"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	for _, table := range models.LogTables() {
		require.NoError(t, db.Table(table).AutoMigrate(&models.AccountLog{}))
	}
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []TreeEvent
}

func (p *recordingPublisher) PublishTreeEvent(ev TreeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) actions(tree string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		if ev.Tree == tree {
			out = append(out, ev.Action)
		}
	}
	return out
}

const objectsPrefix = "http://objects.test/bucket/"

type memoryObjects struct {
	objects map[string][]byte
}

func (m *memoryObjects) Put(_ context.Context, folder, fileName string, r io.Reader, _ int64, _ string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	key := folder + "/" + fileName
	m.objects[key] = buf.Bytes()
	return objectsPrefix + key, nil
}

func (m *memoryObjects) Remove(_ context.Context, objectURL string) error {
	delete(m.objects, strings.TrimPrefix(objectURL, objectsPrefix))
	return nil
}

func newTestCache(t *testing.T) (*cache.CacheManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewCacheManager(client, "test:"), mr
}

func testSecurity() config.SecurityOptions {
	return config.SecurityOptions{
		EncryptRounds:   4,
		PasswordLevel:   "middle",
		UnoSeeds:        []string{"888"},
		DefaultPassword: "Welcome123",
	}
}

type testEnv struct {
	db      *gorm.DB
	deps    Deps
	events  *recordingPublisher
	objects *memoryObjects
	redis   *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	c, mr := newTestCache(t)
	env := &testEnv{
		db:      db,
		events:  &recordingPublisher{},
		objects: &memoryObjects{},
		redis:   mr,
	}
	env.deps = Deps{
		DB:       db,
		Cache:    c,
		Objects:  env.objects,
		Events:   env.events,
		Security: testSecurity(),
	}
	return env
}

func statusPtr(s models.Status) *models.Status { return &s }
