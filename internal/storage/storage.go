// Package storage persists the combat journal to a SQL database through gorm.
// SQLite (pure Go) serves single-node deployments and tests; Postgres serves
// shared deployments.
package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"arena-combat/internal/config"
	"arena-combat/internal/game"
	"arena-combat/internal/world"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrUnknownDriver = errors.New("storage: unknown driver")
	ErrDisabled      = errors.New("storage: disabled")
)

// JournalEvent is one persisted combat journal entry.
type JournalEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Sequence  uint64    `gorm:"index" json:"sequence"`
	Type      string    `gorm:"size:32;index" json:"type"`
	Tick      uint64    `json:"tick"`
	Pawn      uint32    `gorm:"index" json:"pawn"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Payload   string    `json:"payload"`
}

// Kill is a denormalized kill row for per-pawn statistics.
type Kill struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Killer    uint32    `gorm:"index" json:"killer"`
	Victim    uint32    `gorm:"index" json:"victim"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
}

// Models lists every table the store migrates.
var Models = []interface{}{&JournalEvent{}, &Kill{}}

// Store writes journal batches to the database. It implements game.Sink.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

var _ game.Sink = (*Store)(nil)

// Open connects to the configured backend and migrates the schema. The "none"
// driver returns ErrDisabled.
func Open(cfg config.StorageConfig, log zerolog.Logger) (*Store, error) {
	log = log.With().Str("component", "storage").Logger()
	gcfg := &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var db *gorm.DB
	var err error
	switch cfg.Driver {
	case DriverNone, "":
		return nil, ErrDisabled
	case DriverSQLite:
		path := cfg.DSN
		if path == "" {
			path = "file::memory:?cache=shared"
		} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create sqlite dir")
		}
		db, err = gorm.Open(sqlite.Open(path), gcfg)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite")
		}
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL;",
			"PRAGMA synchronous = NORMAL;",
		} {
			if err := db.Exec(pragma).Error; err != nil {
				return nil, errors.Wrapf(err, "set %s", pragma)
			}
		}
		log.Info().Str("path", path).Msg("using sqlite journal store")
	case DriverPostgres:
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gcfg)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres")
		}
		log.Info().Msg("using postgres journal store")
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", cfg.Driver)
	}

	return New(db, log)
}

// New wraps an open database and migrates the schema.
func New(db *gorm.DB, log zerolog.Logger) (*Store, error) {
	if err := db.AutoMigrate(Models...); err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}
	return &Store{db: db, logger: log}, nil
}

// WriteEvents persists one journal batch in a single transaction.
func (s *Store) WriteEvents(batch []game.Event) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([]JournalEvent, 0, len(batch))
	var kills []Kill
	for _, ev := range batch {
		ts := time.Unix(0, ev.Timestamp).UTC()
		rows = append(rows, JournalEvent{
			Sequence:  ev.Sequence,
			Type:      ev.Type.String(),
			Tick:      ev.TickNum,
			Pawn:      uint32(ev.Pawn),
			Timestamp: ts,
			Payload:   string(ev.Payload),
		})
		if ev.Type != game.EventTypeKill {
			continue
		}
		var k game.KillPayload
		if err := json.Unmarshal(ev.Payload, &k); err != nil {
			s.logger.Warn().Err(err).Uint64("sequence", ev.Sequence).Msg("kill payload unreadable")
			continue
		}
		kills = append(kills, Kill{Killer: uint32(k.KillerID), Victim: uint32(k.VictimID), Tick: ev.TickNum, Timestamp: ts})
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return errors.Wrap(err, "insert journal events")
		}
		if len(kills) > 0 {
			if err := tx.Create(&kills).Error; err != nil {
				return errors.Wrap(err, "insert kills")
			}
		}
		return nil
	})
}

// Recent returns the newest events, newest first. An empty kind matches every type.
func (s *Store) Recent(ctx context.Context, kind string, limit int) ([]JournalEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Order("id desc").Limit(limit)
	if kind != "" {
		q = q.Where("type = ?", kind)
	}
	var out []JournalEvent
	if err := q.Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "query journal")
	}
	return out, nil
}

// PawnRecord is the persisted kill record of one pawn.
type PawnRecord struct {
	Pawn   world.EntityID `json:"pawn"`
	Kills  int64          `json:"kills"`
	Deaths int64          `json:"deaths"`
}

// Record counts a pawn's persisted kills and deaths.
func (s *Store) Record(ctx context.Context, pawn world.EntityID) (PawnRecord, error) {
	rec := PawnRecord{Pawn: pawn}
	if err := s.db.WithContext(ctx).Model(&Kill{}).Where("killer = ? AND victim <> ?", uint32(pawn), uint32(pawn)).Count(&rec.Kills).Error; err != nil {
		return rec, errors.Wrap(err, "count kills")
	}
	if err := s.db.WithContext(ctx).Model(&Kill{}).Where("victim = ?", uint32(pawn)).Count(&rec.Deaths).Error; err != nil {
		return rec, errors.Wrap(err, "count deaths")
	}
	return rec, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "access sql interface")
	}
	return sqlDB.Close()
}
