// Package testutil holds fixtures shared by package tests: an in-memory
// database, a miniredis-backed client and deterministic collaborators.
package testutil

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"authgate/internal/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the service schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&entity.User{}, &entity.OTPDevice{}, &entity.SecurityLog{}))
	return db
}

// NewRedis starts a miniredis server and returns a client bound to it.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Generator hands out a fixed code.
type Generator struct {
	Code string
}

func (g Generator) Generate() (string, error) {
	return g.Code, nil
}

type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailbox records every message instead of delivering it.
type Mailbox struct {
	mu       sync.Mutex
	messages []Mail
	Err      error
}

func (m *Mailbox) Send(_ context.Context, to, subject, textBody, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, Mail{To: to, Subject: subject, Text: textBody, HTML: htmlBody})
	return nil
}

func (m *Mailbox) Messages() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.messages...)
}

func (m *Mailbox) Last(t *testing.T) Mail {
	t.Helper()
	messages := m.Messages()
	require.NotEmpty(t, messages, "no mail sent")
	return messages[len(messages)-1]
}

var activationPath = regexp.MustCompile(`/activate/([^/\s]+)/([^/\s]+)`)

// ActivationParts extracts the encoded user id and token from an activation mail.
func ActivationParts(t *testing.T, mail Mail) (string, string) {
	t.Helper()
	match := activationPath.FindStringSubmatch(mail.Text)
	require.Len(t, match, 3, "no activation link in %q", mail.Text)
	return match[1], match[2]
}
