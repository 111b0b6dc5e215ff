package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/adriatica/firewatch/internal/metrics"
	"github.com/adriatica/firewatch/internal/ownersig"
	"github.com/adriatica/firewatch/internal/telegram"
	"github.com/adriatica/firewatch/webmap"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.servePage(w, webmap.PageIndex)
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	s.servePage(w, webmap.PagePick)
}

func (s *Server) servePage(w http.ResponseWriter, page string) {
	body, err := webmap.Render(page, s.centerLat, s.centerLon, s.centerZoom)
	if err != nil {
		writeError(w, s.log, http.StatusInternalServerError, "", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc, err := s.projection.Project(r.Context(), time.Now())
	if err != nil {
		writeError(w, s.log, http.StatusInternalServerError, "", err)
		return
	}
	metrics.ProjectedFeatures.Set(float64(len(fc.Features)))
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, s.log, http.StatusOK, fc)
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	fc, fetchedAt := s.hotspots.Snapshot()
	if !fetchedAt.IsZero() {
		w.Header().Set("Last-Modified", fetchedAt.UTC().Format(http.TimeFormat))
	}
	writeJSON(w, s.log, http.StatusOK, fc)
}

// handlePhoto proxies a Telegram photo download. The bot token never
// reaches the client; only opaque file ids appear in the map payload.
func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("fileID")
	if fileID == "" {
		writeError(w, s.log, http.StatusBadRequest, "missing file id", nil)
		return
	}

	f, err := s.files.GetFile(r.Context(), fileID)
	if err != nil {
		writeError(w, s.log, http.StatusBadGateway, "photo unavailable", err)
		return
	}
	body, contentType, err := s.files.DownloadFile(r.Context(), f.FilePath)
	if err != nil {
		writeError(w, s.log, http.StatusBadGateway, "photo unavailable", err)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(body)
}

// handleEventPage serves the confirmation page behind a clicked
// capability link. The page performs the actual mutation via fetch;
// GET never touches the store, so link preview crawlers are harmless.
func (s *Server) handleEventPage(w http.ResponseWriter, r *http.Request) {
	if _, err := strconv.ParseInt(r.PathValue("id"), 10, 64); err != nil {
		writeError(w, s.log, http.StatusBadRequest, "invalid event id", nil)
		return
	}
	if _, ok := s.verifyOwner(r.URL.Query().Get("uid"), r.URL.Query().Get("sig")); !ok {
		writeError(w, s.log, http.StatusForbidden, "invalid signature", nil)
		return
	}
	s.servePage(w, webmap.PageDelete)
}

// handleDeleteEvent removes a report on behalf of its owner. The uid and
// sig pair is the capability minted by the bot; a valid signature for a
// non-owning uid still yields 404.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, s.log, http.StatusBadRequest, "invalid event id", nil)
		return
	}
	uid, ok := s.verifyOwner(r.URL.Query().Get("uid"), r.URL.Query().Get("sig"))
	if !ok {
		metrics.Deletions.WithLabelValues("denied").Inc()
		writeError(w, s.log, http.StatusForbidden, "invalid signature", nil)
		return
	}

	deleted, err := s.owners.DeleteByOwner(r.Context(), eventID, uid)
	if err != nil {
		writeError(w, s.log, http.StatusInternalServerError, "", err)
		return
	}
	if !deleted {
		metrics.Deletions.WithLabelValues("denied").Inc()
		writeError(w, s.log, http.StatusNotFound, "not found", nil)
		return
	}

	metrics.Deletions.WithLabelValues("granted").Inc()
	s.log.Info("event deleted by owner",
		zap.Int64("event_id", eventID), zap.Int64("owner_id", uid))
	writeJSON(w, s.log, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleStopEvent flips an active report to stopped without removing it
// from the record. Same capability rules as deletion.
func (s *Server) handleStopEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, s.log, http.StatusBadRequest, "invalid event id", nil)
		return
	}
	uid, ok := s.verifyOwner(r.URL.Query().Get("uid"), r.URL.Query().Get("sig"))
	if !ok {
		writeError(w, s.log, http.StatusForbidden, "invalid signature", nil)
		return
	}

	stopped, err := s.owners.StopByOwner(r.Context(), eventID, uid)
	if err != nil {
		writeError(w, s.log, http.StatusInternalServerError, "", err)
		return
	}
	if !stopped {
		writeError(w, s.log, http.StatusNotFound, "not found", nil)
		return
	}

	s.log.Info("event stopped by owner",
		zap.Int64("event_id", eventID), zap.Int64("owner_id", uid))
	writeJSON(w, s.log, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleStopLive ends the caller's live track.
func (s *Server) handleStopLive(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.verifyOwner(r.PathValue("uid"), r.URL.Query().Get("sig"))
	if !ok {
		metrics.Deletions.WithLabelValues("denied").Inc()
		writeError(w, s.log, http.StatusForbidden, "invalid signature", nil)
		return
	}

	if err := s.owners.StopLive(r.Context(), uid); err != nil {
		writeError(w, s.log, http.StatusInternalServerError, "", err)
		return
	}

	metrics.Deletions.WithLabelValues("granted").Inc()
	metrics.LiveTrackOps.WithLabelValues("stop").Inc()
	writeJSON(w, s.log, http.StatusOK, map[string]string{"status": "stopped"})
}

// verifyOwner parses the uid and checks its signature.
func (s *Server) verifyOwner(uidRaw, sig string) (int64, bool) {
	uid, err := strconv.ParseInt(uidRaw, 10, 64)
	if err != nil {
		return 0, false
	}
	if !ownersig.Verify(s.secret, uid, sig) {
		return 0, false
	}
	return uid, true
}

// handleWebhook decodes a Telegram update and hands it to intake. It
// always answers 200 for well-formed requests so Telegram does not
// retry on handler-side failures.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if subtle.ConstantTimeCompare([]byte(r.PathValue("token")), []byte(s.webhookToken)) != 1 {
		writeError(w, s.log, http.StatusNotFound, "not found", nil)
		return
	}

	var upd telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, s.log, http.StatusBadRequest, "invalid update", nil)
		return
	}

	if err := s.webhook.Handle(r.Context(), &upd); err != nil {
		s.log.Error("webhook handling failed",
			zap.Int64("update_id", upd.UpdateID), zap.Error(err))
	}
	writeJSON(w, s.log, http.StatusOK, map[string]bool{"ok": true})
}
