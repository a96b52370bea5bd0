package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type DBConfig struct {
	// DSN wins over the discrete fields when set.
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Debug           bool
}

// FormatDSN builds the go-sql-driver DSN for the config.
func (c DBConfig) FormatDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	mc.DBName = c.Name
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}

	return mc.FormatDSN()
}

// OpenGorm connects to MySQL and configures the pool.
func OpenGorm(cfg DBConfig) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}

	db, err := gorm.Open(gormmysql.Open(cfg.FormatDSN()), &gorm.Config{ //nolint:exhaustruct // defaults
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(max(cfg.MaxIdleConns, 1))
	sqlDB.SetMaxOpenConns(max(cfg.MaxOpenConns, 1))

	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// CloseGorm closes the pool behind db.
func CloseGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return sqlDB.Close()
}

type audioRow struct {
	ID         int64  `gorm:"column:id"`
	Name       string `gorm:"column:name"`
	Detail     string `gorm:"column:detail"`
	UploaderID string `gorm:"column:uploader_id"`
	SongID     string `gorm:"column:song_id"`
	URL        string `gorm:"column:url"`
}

func (r audioRow) record() Record {
	return Record(r)
}

// GormStore reads and writes the audios table through gorm. The song column
// is resolved from the candidates and remembered once a query accepts it.
type GormStore struct {
	db         *gorm.DB
	table      string
	candidates []string

	mu     sync.Mutex
	column string
}

func NewGormStore(db *gorm.DB, candidates []string) (*GormStore, error) {
	if len(candidates) == 0 {
		candidates = DefaultSongColumns
	}

	if err := validateColumns(candidates); err != nil {
		return nil, err
	}

	return &GormStore{
		db:         db,
		table:      defaultAudiosTable,
		candidates: slices.Clone(candidates),
		mu:         sync.Mutex{},
		column:     "",
	}, nil
}

func (s *GormStore) remembered() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.column
}

func (s *GormStore) remember(col string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.column != col {
		slog.Debug("audios song column resolved", "column", col)
	}

	s.column = col
}

func (s *GormStore) forget() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.column = ""
}

// order puts the remembered column first so the common case is one query.
func (s *GormStore) order() []string {
	col := s.remembered()
	if col == "" {
		return s.candidates
	}

	out := []string{col}
	for _, c := range s.candidates {
		if c != col {
			out = append(out, c)
		}
	}

	return out
}

func (s *GormStore) selectWith(ctx context.Context, col string) *gorm.DB {
	return s.db.WithContext(ctx).
		Table(s.table).
		Select("id, name, detail, uploader_id, url, " + col + " AS song_id")
}

func (s *GormStore) ListBySong(ctx context.Context, songID string) ([]Record, error) {
	var rows []audioRow

	col, err := firstColumn(s.order(), func(col string) error {
		rows = nil

		return s.selectWith(ctx, col).
			Where(clause.Eq{Column: clause.Column{Name: col}, Value: songID}).
			Order("name").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audios for song %s: %w", songID, err)
	}

	s.remember(col)

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}

	return out, nil
}

func (s *GormStore) Get(ctx context.Context, id int64) (Record, error) {
	col, err := s.SongColumn(ctx)
	if err != nil {
		return Record{}, err
	}

	var rows []audioRow
	if err := s.selectWith(ctx, col).Where("id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return Record{}, fmt.Errorf("failed to get audio %d: %w", id, err)
	}

	if len(rows) == 0 {
		return Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return rows[0].record(), nil
}

func (s *GormStore) SongColumn(ctx context.Context) (string, error) {
	if col := s.remembered(); col != "" {
		return col, nil
	}

	// LIMIT 0 asks only whether the column resolves; no value is scanned.
	col, err := firstColumn(s.candidates, func(col string) error {
		var rows []map[string]any
		return s.db.WithContext(ctx).Table(s.table).Select(col).Limit(0).Scan(&rows).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve song column: %w", err)
	}

	s.remember(col)

	return col, nil
}

func (s *GormStore) NextID(ctx context.Context) (int64, error) {
	var maxID int64

	err := s.db.WithContext(ctx).Table(s.table).Select("COALESCE(MAX(id), 0)").Row().Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("failed to read max audio id: %w", err)
	}

	return maxID + 1, nil
}

func (s *GormStore) Insert(ctx context.Context, rec Record, songColumn string) error {
	if songColumn == "" {
		col, err := s.SongColumn(ctx)
		if err != nil {
			return err
		}

		songColumn = col
	} else if !identifier.MatchString(songColumn) {
		return fmt.Errorf("invalid song column %q", songColumn)
	}

	detail := rec.Detail
	if detail == "" {
		detail = DefaultDetail
	}

	row := map[string]any{
		"id":          rec.ID,
		"name":        rec.Name,
		"detail":      detail,
		"uploader_id": rec.UploaderID,
		"url":         rec.URL,
		songColumn:    rec.SongID,
	}

	err := s.db.WithContext(ctx).Table(s.table).Create(row).Error

	switch {
	case err == nil:
		return nil
	case isDuplicateKey(err), errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %d", ErrDuplicate, rec.ID)
	case IsMissingColumn(err):
		s.forget()
		return fmt.Errorf("%w: %s: %w", ErrNoSongColumn, songColumn, err)
	default:
		return fmt.Errorf("failed to insert audio %d: %w", rec.ID, err)
	}
}

func (s *GormStore) Rename(ctx context.Context, id int64, name string) error {
	res := s.db.WithContext(ctx).Table(s.table).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return fmt.Errorf("failed to rename audio %d: %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		// MySQL reports zero for an unchanged value, so confirm the row.
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

func (s *GormStore) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Table(s.table).Where("id = ?", id).Delete(&audioRow{}) //nolint:exhaustruct // model only names the table shape
	if res.Error != nil {
		return fmt.Errorf("failed to delete audio %d: %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return nil
}
