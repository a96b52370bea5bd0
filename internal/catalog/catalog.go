// Package catalog is the relational record of confirmed takes: one row per
// audio with its title, uploader, song and storage path.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrNotFound     = errors.New("audio not found")
	ErrDuplicate    = errors.New("audio id already exists")
	ErrNoSongColumn = errors.New("no song column accepted by the audios table")
)

// DefaultSongColumns are tried in order until the table accepts one.
var DefaultSongColumns = []string{"relational_song_id", "song_id", "cancion_id"}

// DefaultDetail is stored on every take recorded by this tool.
const DefaultDetail = "recording"

const (
	mysqlBadField      = 1054
	mysqlDuplicateKey  = 1062
	defaultAudiosTable = "audios"
)

type Record struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Detail     string `json:"detail"`
	UploaderID string `json:"uploaderId"`
	SongID     string `json:"songId"`
	URL        string `json:"url"`
}

type Store interface {
	// ListBySong returns the song's audios ordered by name.
	ListBySong(ctx context.Context, songID string) ([]Record, error)
	Get(ctx context.Context, id int64) (Record, error)
	// NextID returns max(id)+1.
	NextID(ctx context.Context) (int64, error)
	// Insert writes rec with its song id under songColumn, or under the
	// discovered column when songColumn is empty.
	Insert(ctx context.Context, rec Record, songColumn string) error
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
	// SongColumn returns the song foreign-key column the table accepts.
	SongColumn(ctx context.Context) (string, error)
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateColumns(cols []string) error {
	if len(cols) == 0 {
		return errors.New("at least one song column candidate is required")
	}

	for _, c := range cols {
		if !identifier.MatchString(c) {
			return fmt.Errorf("invalid song column %q", c)
		}
	}

	return nil
}

// IsMissingColumn reports whether err says a referenced column does not exist.
func IsMissingColumn(err error) bool {
	if err == nil {
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlBadField {
		return true
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "unknown column") ||
		strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "has no column named") ||
		(strings.Contains(msg, "column") && strings.Contains(msg, "does not exist"))
}

func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateKey
	}

	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// firstColumn runs try for each candidate, skipping columns the table does
// not have. Any other error ends the search.
func firstColumn(candidates []string, try func(col string) error) (string, error) {
	for _, col := range candidates {
		err := try(col)
		if err == nil {
			return col, nil
		}

		if !IsMissingColumn(err) {
			return "", err
		}

		slog.Debug("song column rejected", "column", col, "error", err)
	}

	return "", ErrNoSongColumn
}
