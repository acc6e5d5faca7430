package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"airlock-server/internal/infrastructure/storage"
	"airlock-server/internal/version"
	"airlock-server/pkg/logger"
)

// Server - HTTP-обвязка: websocket-вход, здоровье, версия, QR со
// ссылкой на игру и архив записей.
type Server struct {
	Manager *Manager
	Cfg     Config

	archive *storage.Archive
}

func New(manager *Manager, cfg Config, archive *storage.Archive) *Server {
	return &Server{
		Manager: manager,
		Cfg:     cfg,
		archive: archive,
	}
}

// Router собирает все роуты сервера.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/ws", s.handleWS)
	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Get("/qr", s.handleQR)
	r.Get("/games", s.handleListGames)
	r.Get("/games/{id}", s.handleDownloadGame)

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Разрешаем запросы с фронтенда
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		next.ServeHTTP(w, r)
	})
}

// handleWS обрабатывает подключение по WebSocket
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Error("Upgrade error")
		return
	}

	peer := NewPeer(s.Manager.Current(), conn)

	// Запускаем пампы
	go peer.writePump()
	go peer.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(version.Info())
}

// handleQR отдает PNG с QR-кодом ссылки на игру: показал экран -
// позвал друзей за стол.
func (s *Server) handleQR(w http.ResponseWriter, _ *http.Request) {
	png, err := qrcode.Encode(s.Cfg.PublicURL, qrcode.Medium, 256)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to encode QR code")
		http.Error(w, "qr encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleListGames(w http.ResponseWriter, _ *http.Request) {
	if s.archive == nil {
		http.Error(w, "archive disabled", http.StatusNotFound)
		return
	}
	games, err := s.archive.List()
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list archived games")
		http.Error(w, "archive unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(games)
}

// handleDownloadGame отдает запись партии тем же форматом, который
// сервер рассылает в Replay: можно скормить файлу -replay.
func (s *Server) handleDownloadGame(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.Error(w, "archive disabled", http.StatusNotFound)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "bad game id", http.StatusBadRequest)
		return
	}
	rec, err := s.archive.Load(id)
	if err != nil {
		http.Error(w, "no such game", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="game_`+id.String()+`.airlock"`)
	if err := storage.Write(w, rec); err != nil {
		logger.Log.WithError(err).Error("Failed to stream recording")
	}
}
