// Package telegram is a minimal Bot API client covering what the intake
// pipeline needs: receiving webhook updates, replying, and fetching
// uploaded photos.
package telegram

// Update is an incoming Bot API update. Live-location position updates
// arrive as EditedMessage with a fresh Location.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64       `json:"message_id"`
	From      *User       `json:"from,omitempty"`
	Chat      Chat        `json:"chat"`
	Date      int64       `json:"date"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Location  *Location   `json:"location,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

// User is the sender identity.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Chat is the conversation the message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// Location is a point, optionally part of a live share. LivePeriod is
// the share duration in seconds; zero means a static location.
type Location struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	LivePeriod int     `json:"live_period,omitempty"`
}

// PhotoSize is one resolution of an uploaded photo. The Bot API lists
// sizes smallest first.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size,omitempty"`
}

// File is the result of getFile, used to build a download path.
type File struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

// ReplyKeyboardMarkup is a persistent reply keyboard.
type ReplyKeyboardMarkup struct {
	Keyboard       [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard,omitempty"`
	IsPersistent   bool               `json:"is_persistent,omitempty"`
}

// KeyboardButton is one reply keyboard button.
type KeyboardButton struct {
	Text string `json:"text"`
}

// InlineKeyboardMarkup carries URL buttons under a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is one inline button.
type InlineKeyboardButton struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// LargestPhoto returns the highest-resolution size, or nil when the
// message carries no photo.
func (m *Message) LargestPhoto() *PhotoSize {
	if len(m.Photo) == 0 {
		return nil
	}
	return &m.Photo[len(m.Photo)-1]
}

// SenderID returns the sender's user id, or 0 for anonymous senders.
func (m *Message) SenderID() int64 {
	if m.From == nil {
		return 0
	}
	return m.From.ID
}

// SenderContact returns "@username" when the sender has a public
// username.
func (m *Message) SenderContact() string {
	if m.From == nil || m.From.Username == "" {
		return ""
	}
	return "@" + m.From.Username
}
