package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"airlock-server/pkg/api"
)

// Формат файла записи: первая строка - JSON-заголовок, дальше по
// одной JSON-строке на событие. Заголовок обещаем читать в любой
// версии, остальное - только той же сборкой, что писала.
const replayFileType = "airlock replay"

// ReplayFileHeader - первая строка файла записи.
type ReplayFileHeader struct {
	FileType string    `json:"fileType"`
	Version  string    `json:"version"`
	GameID   uuid.UUID `json:"gameId"`
}

// VersionMismatchError - запись сделана другой сборкой.
type VersionMismatchError struct {
	Found string
	Want  string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("recording was made by build %q, this is build %q", e.Found, e.Want)
}

// Service пишет и читает записи партий на диске.
type Service struct {
	SaveDir string
}

func NewService(dir string) *Service {
	// Создаем папку если нет
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		_ = os.MkdirAll(dir, 0755)
	}
	return &Service{SaveDir: dir}
}

// Save кладет запись в файл. Возвращает путь к нему.
func (s *Service) Save(rec api.RecordedGame) (string, error) {
	filename := fmt.Sprintf("game_%s_%d.airlock", rec.GameID, time.Now().Unix())
	path := filepath.Join(s.SaveDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := Write(f, rec); err != nil {
		return "", err
	}
	return path, nil
}

// Load читает запись из файла. wantVersion задает ожидаемую сборку;
// пустая строка отключает проверку.
func (s *Service) Load(path string, wantVersion string) (api.RecordedGame, error) {
	f, err := os.Open(path)
	if err != nil {
		return api.RecordedGame{}, err
	}
	defer f.Close()

	return Read(f, wantVersion)
}

// Write сериализует запись в поток.
func Write(w io.Writer, rec api.RecordedGame) error {
	bw := bufio.NewWriter(w)

	header, err := json.Marshal(ReplayFileHeader{
		FileType: replayFileType,
		Version:  rec.Version,
		GameID:   rec.GameID,
	})
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if _, err := bw.Write(append(header, '\n')); err != nil {
		return err
	}

	for _, entry := range rec.Entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		if _, err := bw.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read разбирает запись из потока и сверяет версию сборки.
func Read(r io.Reader, wantVersion string) (api.RecordedGame, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return api.RecordedGame{}, err
		}
		return api.RecordedGame{}, fmt.Errorf("recording is empty")
	}

	var header ReplayFileHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return api.RecordedGame{}, fmt.Errorf("decode header: %w", err)
	}
	if header.FileType != replayFileType {
		return api.RecordedGame{}, fmt.Errorf("not a replay file: fileType %q", header.FileType)
	}
	if wantVersion != "" && header.Version != wantVersion {
		return api.RecordedGame{}, &VersionMismatchError{Found: header.Version, Want: wantVersion}
	}

	rec := api.RecordedGame{Version: header.Version, GameID: header.GameID}
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry api.RecordingEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return api.RecordedGame{}, fmt.Errorf("decode entry %d: %w", len(rec.Entries), err)
		}
		rec.Entries = append(rec.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return api.RecordedGame{}, err
	}
	return rec, nil
}
