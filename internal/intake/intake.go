// Package intake normalizes Telegram updates into store mutations: point
// reports, photo attachments, and live track lifecycle. It is the only
// writer of session state.
package intake

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/adriatica/firewatch/internal/event"
	"github.com/adriatica/firewatch/internal/metrics"
	"github.com/adriatica/firewatch/internal/ownersig"
	"github.com/adriatica/firewatch/internal/session"
	"github.com/adriatica/firewatch/internal/telegram"
)

// Reply keyboard labels. These double as command matches, so they must
// stay in sync with the keyboard sent on /start.
const (
	BtnVolunteer = "📍 Share volunteer spot"
	BtnFire      = "🔥 Report a fire"
	BtnPick      = "🧭 Pick a point on the map"
	BtnCancel    = "🔕 Cancel mode"
	BtnOpenMap   = "🌍 Open the map"
)

// ModeWindow is how long a selected report mode and a remembered
// location stay fresh.
const ModeWindow = 20 * time.Minute

// EventStore is the slice of the store intake writes point reports to.
type EventStore interface {
	Record(ctx context.Context, e *event.Event) (int64, error)
	AttachPhoto(ctx context.Context, eventID int64, fileRef string, at int64) error
}

// LiveStore is the slice of the store intake drives live tracks through.
type LiveStore interface {
	StartOrRefresh(ctx context.Context, t *event.LiveTrack) (int64, error)
	UpdatePosition(ctx context.Context, ownerID int64, lat, lon float64, at time.Time) error
	StopLive(ctx context.Context, ownerID int64) error
}

// Sender sends chat replies.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup any) error
}

// Handler turns updates into store mutations.
type Handler struct {
	Events   EventStore
	Live     LiveStore
	Sessions session.Store
	Bot      Sender

	Secret  []byte // ownersig secret for delete/my-map links
	BaseURL string // public base URL for deep links ("" disables links)
	MapURL  string // public map URL for the map button ("" disables it)

	CenterLat  float64
	CenterLon  float64
	CenterZoom int

	Log *zap.Logger

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Handle processes one update. Errors are store/transport failures; bad
// user input never errors, it is answered or ignored.
func (h *Handler) Handle(ctx context.Context, upd *telegram.Update) error {
	switch {
	case upd.EditedMessage != nil && upd.EditedMessage.Location != nil:
		metrics.WebhookUpdates.WithLabelValues("live_edit").Inc()
		return h.handleLiveEdit(ctx, upd.EditedMessage)
	case upd.Message != nil:
		return h.handleMessage(ctx, upd.Message)
	default:
		metrics.WebhookUpdates.WithLabelValues("ignored").Inc()
		return nil
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *telegram.Message) error {
	uid := msg.SenderID()
	if uid == 0 {
		metrics.WebhookUpdates.WithLabelValues("ignored").Inc()
		return nil
	}

	switch {
	case msg.Location != nil:
		if msg.Location.LivePeriod > 0 {
			metrics.WebhookUpdates.WithLabelValues("live_start").Inc()
			return h.handleLiveStart(ctx, msg)
		}
		metrics.WebhookUpdates.WithLabelValues("location").Inc()
		return h.handleLocation(ctx, msg)
	case msg.LargestPhoto() != nil:
		metrics.WebhookUpdates.WithLabelValues("photo").Inc()
		return h.handlePhoto(ctx, msg)
	case msg.Text != "":
		return h.handleText(ctx, msg)
	default:
		metrics.WebhookUpdates.WithLabelValues("ignored").Inc()
		return nil
	}
}

func (h *Handler) handleText(ctx context.Context, msg *telegram.Message) error {
	uid := msg.SenderID()

	switch msg.Text {
	case "/start":
		metrics.WebhookUpdates.WithLabelValues("command").Inc()
		if err := h.Sessions.Delete(ctx, uid); err != nil {
			return err
		}
		return h.sendWelcome(ctx, msg)
	case BtnVolunteer:
		metrics.WebhookUpdates.WithLabelValues("command").Inc()
		return h.handleModeButton(ctx, msg, session.ModeNone, "vol",
			"Share your location or pick the volunteer spot on the map:")
	case BtnFire:
		metrics.WebhookUpdates.WithLabelValues("command").Inc()
		return h.handleModeButton(ctx, msg, session.ModeReportFire, "fire",
			"Fire mode is on for 20 minutes. Send a location, coordinates, or a photo:")
	case BtnPick:
		metrics.WebhookUpdates.WithLabelValues("command").Inc()
		return h.handleModeButton(ctx, msg, session.ModeNone, "vol",
			"Pick a point on the map:")
	case BtnCancel:
		metrics.WebhookUpdates.WithLabelValues("command").Inc()
		st, _, err := h.getSession(ctx, uid)
		if err != nil {
			return err
		}
		st.Mode = session.ModeNone
		st.ModeSetAt = 0
		if err := h.Sessions.Put(ctx, uid, st); err != nil {
			return err
		}
		return h.reply(ctx, msg, "Mode cleared.")
	case BtnOpenMap:
		metrics.WebhookUpdates.WithLabelValues("command").Inc()
		return h.sendMapButton(ctx, msg.Chat.ID)
	}

	// Anything else is either "lat lon ..." coordinates or noise.
	raw, firePrefixed := stripFirePrefix(msg.Text)
	coords, ok := ParseCoords(raw)
	if !ok {
		metrics.WebhookUpdates.WithLabelValues("ignored").Inc()
		return nil
	}
	metrics.WebhookUpdates.WithLabelValues("coords").Inc()

	now := h.now()
	st, _, err := h.getSession(ctx, uid)
	if err != nil {
		return err
	}

	kind := event.KindVolunteer
	if firePrefixed || st.FireModeActive(now, ModeWindow) {
		kind = event.KindFire
	}

	contact := coords.Contact
	if contact == "" {
		contact = msg.SenderContact()
	}

	e := &event.Event{
		Ts:      now.Unix(),
		Kind:    kind,
		Lat:     event.Float64Ptr(coords.Lat),
		Lon:     event.Float64Ptr(coords.Lon),
		OwnerID: event.Int64Ptr(uid),
	}
	if coords.Tail != "" {
		e.Text = event.StringPtr(coords.Tail)
	}
	if contact != "" {
		e.Contact = event.StringPtr(contact)
	}

	id, err := h.Events.Record(ctx, e)
	if err != nil {
		h.Log.Error("record text report failed", zap.Int64("user_id", uid), zap.Error(err))
		return h.reply(ctx, msg, "Sorry, the report could not be saved. Please try again.")
	}
	metrics.ReportsRecorded.WithLabelValues(kind).Inc()

	// A placed point consumes the mode and refreshes the last location.
	st.Mode = session.ModeNone
	st.ModeSetAt = 0
	st.LastLat, st.LastLon, st.LastLocAt = coords.Lat, coords.Lon, now.Unix()
	if err := h.Sessions.Put(ctx, uid, st); err != nil {
		return err
	}

	return h.confirmReport(ctx, msg, kind, id, uid)
}

func (h *Handler) handleModeButton(ctx context.Context, msg *telegram.Message, mode, pickMode, text string) error {
	uid := msg.SenderID()
	now := h.now()

	st, _, err := h.getSession(ctx, uid)
	if err != nil {
		return err
	}
	st.Mode = mode
	st.ModeSetAt = 0
	if mode != session.ModeNone {
		st.ModeSetAt = now.Unix()
	}
	if err := h.Sessions.Put(ctx, uid, st); err != nil {
		return err
	}

	lat, lon := h.CenterLat, h.CenterLon
	if rlat, rlon, ok := st.RecentLocation(now, ModeWindow); ok {
		lat, lon = rlat, rlon
	}

	if link := h.pickLink(pickMode, lat, lon, msg.SenderContact()); link != "" {
		text += "\n" + link
	}
	if err := h.reply(ctx, msg, text); err != nil {
		return err
	}
	return h.sendMapButton(ctx, msg.Chat.ID)
}

func (h *Handler) handleLocation(ctx context.Context, msg *telegram.Message) error {
	uid := msg.SenderID()
	now := h.now()
	loc := msg.Location

	st, _, err := h.getSession(ctx, uid)
	if err != nil {
		return err
	}

	kind := event.KindVolunteer
	if st.FireModeActive(now, ModeWindow) {
		kind = event.KindFire
	}

	e := &event.Event{
		Ts:      now.Unix(),
		Kind:    kind,
		Lat:     event.Float64Ptr(loc.Latitude),
		Lon:     event.Float64Ptr(loc.Longitude),
		OwnerID: event.Int64Ptr(uid),
	}
	if c := msg.SenderContact(); c != "" {
		e.Contact = event.StringPtr(c)
	}

	id, err := h.Events.Record(ctx, e)
	if err != nil {
		h.Log.Error("record location report failed", zap.Int64("user_id", uid), zap.Error(err))
		return h.reply(ctx, msg, "Sorry, the report could not be saved. Please try again.")
	}
	metrics.ReportsRecorded.WithLabelValues(kind).Inc()

	st.Mode = session.ModeNone
	st.ModeSetAt = 0
	st.LastLat, st.LastLon, st.LastLocAt = loc.Latitude, loc.Longitude, now.Unix()
	if err := h.Sessions.Put(ctx, uid, st); err != nil {
		return err
	}

	return h.confirmReport(ctx, msg, kind, id, uid)
}

func (h *Handler) handleLiveStart(ctx context.Context, msg *telegram.Message) error {
	uid := msg.SenderID()
	now := h.now()
	loc := msg.Location

	t := &event.LiveTrack{
		OwnerID:      uid,
		Lat:          loc.Latitude,
		Lon:          loc.Longitude,
		StartedAt:    now.Unix(),
		LiveUntil:    now.Unix() + int64(loc.LivePeriod),
		LastUpdateAt: now.Unix(),
	}
	if c := msg.SenderContact(); c != "" {
		t.Contact = event.StringPtr(c)
	}

	if _, err := h.Live.StartOrRefresh(ctx, t); err != nil {
		h.Log.Error("start live track failed", zap.Int64("user_id", uid), zap.Error(err))
		return h.reply(ctx, msg, "Sorry, live sharing could not be started.")
	}
	metrics.LiveTrackOps.WithLabelValues("start").Inc()

	st, _, err := h.getSession(ctx, uid)
	if err != nil {
		return err
	}
	st.LastLat, st.LastLon, st.LastLocAt = loc.Latitude, loc.Longitude, now.Unix()
	if err := h.Sessions.Put(ctx, uid, st); err != nil {
		return err
	}

	return h.reply(ctx, msg, "Live sharing is on. Your marker follows you until the share ends.")
}

// handleLiveEdit processes edited-message location updates: ongoing live
// shares carry live_period, the final edit without it ends the share.
func (h *Handler) handleLiveEdit(ctx context.Context, msg *telegram.Message) error {
	uid := msg.SenderID()
	if uid == 0 {
		return nil
	}
	loc := msg.Location

	if loc.LivePeriod > 0 {
		if err := h.Live.UpdatePosition(ctx, uid, loc.Latitude, loc.Longitude, h.now()); err != nil {
			h.Log.Error("live position update failed", zap.Int64("user_id", uid), zap.Error(err))
			return err
		}
		metrics.LiveTrackOps.WithLabelValues("update").Inc()
		return nil
	}

	if err := h.Live.StopLive(ctx, uid); err != nil {
		h.Log.Error("live stop failed", zap.Int64("user_id", uid), zap.Error(err))
		return err
	}
	metrics.LiveTrackOps.WithLabelValues("stop").Inc()
	return nil
}

func (h *Handler) handlePhoto(ctx context.Context, msg *telegram.Message) error {
	uid := msg.SenderID()
	now := h.now()
	photo := msg.LargestPhoto()

	st, _, err := h.getSession(ctx, uid)
	if err != nil {
		return err
	}

	// Repeated photos inside the session window attach to the same
	// pending fire event instead of spawning markers.
	if st.PendingFireID != 0 && now.Unix()-st.PendingFireSetAt < int64(ModeWindow.Seconds()) {
		if err := h.Events.AttachPhoto(ctx, st.PendingFireID, photo.FileID, now.Unix()); err != nil {
			h.Log.Error("attach photo failed", zap.Int64("event_id", st.PendingFireID), zap.Error(err))
			return h.reply(ctx, msg, "Sorry, the photo could not be saved.")
		}
		metrics.PhotosAttached.Inc()
		return h.reply(ctx, msg, fmt.Sprintf("Photo added to report #%d.", st.PendingFireID))
	}

	// Coordinates: caption first, then the remembered location, else
	// none (pending later attachment).
	var lat, lon *float64
	caption := msg.Caption
	raw, _ := stripFirePrefix(caption)
	if coords, ok := ParseCoords(raw); ok {
		lat, lon = event.Float64Ptr(coords.Lat), event.Float64Ptr(coords.Lon)
	} else if rlat, rlon, ok := st.RecentLocation(now, ModeWindow); ok {
		lat, lon = event.Float64Ptr(rlat), event.Float64Ptr(rlon)
	}

	e := &event.Event{
		Ts:      now.Unix(),
		Kind:    event.KindFire,
		Lat:     lat,
		Lon:     lon,
		OwnerID: event.Int64Ptr(uid),
	}
	if caption != "" {
		e.Text = event.StringPtr(caption)
	}
	if c := msg.SenderContact(); c != "" {
		e.Contact = event.StringPtr(c)
	}

	id, err := h.Events.Record(ctx, e)
	if err != nil {
		h.Log.Error("record photo report failed", zap.Int64("user_id", uid), zap.Error(err))
		return h.reply(ctx, msg, "Sorry, the report could not be saved. Please try again.")
	}
	metrics.ReportsRecorded.WithLabelValues(event.KindFire).Inc()

	if err := h.Events.AttachPhoto(ctx, id, photo.FileID, now.Unix()); err != nil {
		h.Log.Error("attach photo failed", zap.Int64("event_id", id), zap.Error(err))
	} else {
		metrics.PhotosAttached.Inc()
	}

	st.PendingFireID = id
	st.PendingFireSetAt = now.Unix()
	if err := h.Sessions.Put(ctx, uid, st); err != nil {
		return err
	}

	text := fmt.Sprintf("📸 Photo received, fire report #%d created.", id)
	if lat == nil {
		text += " Send a location or coordinates to place it on the map."
	}
	if link := h.deleteLink(id, uid); link != "" {
		text += "\nRemove or resolve: " + link
	}
	return h.reply(ctx, msg, text)
}

// getSession loads the reporter's session state, defaulting to zero.
func (h *Handler) getSession(ctx context.Context, uid int64) (session.State, bool, error) {
	st, found, err := h.Sessions.Get(ctx, uid)
	if err != nil {
		return session.State{}, false, fmt.Errorf("load session: %w", err)
	}
	return st, found, nil
}

func (h *Handler) sendWelcome(ctx context.Context, msg *telegram.Message) error {
	kb := &telegram.ReplyKeyboardMarkup{
		Keyboard: [][]telegram.KeyboardButton{
			{{Text: BtnVolunteer}},
			{{Text: BtnFire}},
			{{Text: BtnPick}},
			{{Text: BtnCancel}},
		},
		ResizeKeyboard: true,
		IsPersistent:   true,
	}
	text := "Hi! Send a location or coordinates to place a report.\n" +
		"Modes: fire 🔥 or volunteer 📍. The map is public."
	if err := h.Bot.SendMessage(ctx, msg.Chat.ID, text, kb); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	return h.sendMapButton(ctx, msg.Chat.ID)
}

func (h *Handler) sendMapButton(ctx context.Context, chatID int64) error {
	if h.MapURL == "" {
		return nil
	}
	kb := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: BtnOpenMap, URL: h.MapURL}},
		},
	}
	return h.Bot.SendMessage(ctx, chatID, "Open the map:", kb)
}

func (h *Handler) confirmReport(ctx context.Context, msg *telegram.Message, kind string, id, uid int64) error {
	label := "Volunteer spot"
	if kind == event.KindFire {
		label = "Fire report"
	}
	text := fmt.Sprintf("✅ %s #%d added.", label, id)
	if link := h.deleteLink(id, uid); link != "" {
		text += "\nRemove or resolve: " + link
	}
	if err := h.reply(ctx, msg, text); err != nil {
		return err
	}
	return h.sendMapButton(ctx, msg.Chat.ID)
}

func (h *Handler) reply(ctx context.Context, msg *telegram.Message, text string) error {
	if err := h.Bot.SendMessage(ctx, msg.Chat.ID, text, nil); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// pickLink builds the point-picker deep link seeded with a position and
// contact.
func (h *Handler) pickLink(mode string, lat, lon float64, contact string) string {
	if h.BaseURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("mode", mode)
	q.Set("lat", fmt.Sprintf("%.6f", lat))
	q.Set("lon", fmt.Sprintf("%.6f", lon))
	q.Set("z", fmt.Sprintf("%d", h.CenterZoom))
	if contact != "" {
		q.Set("contact", contact)
	}
	return h.BaseURL + "/pick?" + q.Encode()
}

// deleteLink builds the signed owner deletion link for a report.
func (h *Handler) deleteLink(eventID, uid int64) string {
	if h.BaseURL == "" || len(h.Secret) == 0 {
		return ""
	}
	return fmt.Sprintf("%s/event/%d?uid=%d&sig=%s", h.BaseURL, eventID, uid, ownersig.Sign(h.Secret, uid))
}
