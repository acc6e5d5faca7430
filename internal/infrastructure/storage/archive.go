package storage

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"airlock-server/pkg/api"
)

// Archive - долговременное хранилище записей в sqlite. Файлы на
// диске удобны для ручной перемотки, архив - для списка сыгранных
// партий поверх них.
type Archive struct {
	db *sql.DB
}

// ArchivedGame - строка списка архива, без самой записи.
type ArchivedGame struct {
	GameID     uuid.UUID
	Version    string
	RecordedAt time.Time
	Duration   time.Duration
	Entries    int
}

// OpenArchive открывает (или создает) архив по пути к файлу базы.
func OpenArchive(path string) (*Archive, error) {
	if path == "" {
		return nil, errors.New("archive path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("ensure archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS recordings (
		game_id TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL,
		entries INTEGER NOT NULL,
		data BLOB NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Save кладет запись в архив. Повторное сохранение той же партии
// перезаписывает строку.
func (a *Archive) Save(rec api.RecordedGame) error {
	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}

	_, err := a.db.Exec(
		`INSERT OR REPLACE INTO recordings (game_id, version, recorded_at, duration_ms, entries, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.GameID.String(),
		rec.Version,
		time.Now().UTC(),
		rec.Duration().Milliseconds(),
		len(rec.Entries),
		buf.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// Load достает запись партии по ее id.
func (a *Archive) Load(gameID uuid.UUID) (api.RecordedGame, error) {
	var data []byte
	err := a.db.QueryRow(
		`SELECT data FROM recordings WHERE game_id = ?`, gameID.String(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return api.RecordedGame{}, fmt.Errorf("no recording for game %s", gameID)
	}
	if err != nil {
		return api.RecordedGame{}, fmt.Errorf("select recording: %w", err)
	}
	return Read(bytes.NewReader(data), "")
}

// List - сыгранные партии, свежие сверху.
func (a *Archive) List() ([]ArchivedGame, error) {
	rows, err := a.db.Query(
		`SELECT game_id, version, recorded_at, duration_ms, entries
		 FROM recordings ORDER BY recorded_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select recordings: %w", err)
	}
	defer rows.Close()

	var games []ArchivedGame
	for rows.Next() {
		var (
			id         string
			g          ArchivedGame
			durationMS int64
		)
		if err := rows.Scan(&id, &g.Version, &g.RecordedAt, &durationMS, &g.Entries); err != nil {
			return nil, fmt.Errorf("scan recording row: %w", err)
		}
		g.GameID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("bad game id %q in archive: %w", id, err)
		}
		g.Duration = time.Duration(durationMS) * time.Millisecond
		games = append(games, g)
	}
	return games, rows.Err()
}

func (a *Archive) Close() error {
	return a.db.Close()
}
