package bot

import (
	"context"
	"time"

	"github.com/himanishpuri/tunebot/pkg/models"
)

type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

type User struct {
	ID       int64
	FullName string
}

// Message is an inbound text message.
type Message struct {
	ID        int64
	ChatID    int64
	ChatKind  ChatKind
	From      User
	Text      string
	Date      time.Time
	ReplyToID int64 // 0 when not a reply
}

// Callback is a button press on one of the bot's messages.
type Callback struct {
	ID        string
	From      User
	ChatID    int64
	MessageID int64
	Data      string
}

type InlineQuery struct {
	ID    string
	From  User
	Query string
}

// ChannelAudio is an audio file posted to the storage channel.
type ChannelAudio struct {
	ChatID       int64
	MessageID    int64
	FileID       string
	FileUniqueID string
	Title        string
	Performer    string
}

type Button struct {
	Text string
	Data string
}

// Keyboard is rows of inline buttons. A nil keyboard removes all buttons.
type Keyboard [][]Button

// Audio is an outbound audio upload.
type Audio struct {
	Path          string
	ThumbnailPath string
	Title         string
	Performer     string
}

// SentAudio identifies a delivered audio message.
type SentAudio struct {
	MessageID    int64
	FileID       string
	FileUniqueID string
}

type InlineResult struct {
	ID        string
	FileID    string
	Title     string
	Performer string
}

// Transport is the chat layer. Delivery failures come back as plain errors.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) (int64, error)
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	SendAudio(ctx context.Context, chatID int64, audio Audio, keyboard Keyboard, replyTo int64) (*SentAudio, error)
	EditAudio(ctx context.Context, chatID, messageID int64, audio Audio, keyboard Keyboard) error
	EditButtons(ctx context.Context, chatID, messageID int64, keyboard Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	AnswerInline(ctx context.Context, queryID string, results []InlineResult, personal bool, cacheTime time.Duration) error
	FilePath(ctx context.Context, fileID string) (string, error)
}

// Fetcher is satisfied by *fetch.Coordinator.
type Fetcher interface {
	FetchByQuery(ctx context.Context, query string) (*models.FetchResult, error)
	FetchByURL(ctx context.Context, url string) (*models.FetchResult, error)
	Search(ctx context.Context, query string) []models.MediaCandidate
}

// Catalog is satisfied by *catalog.Catalog.
type Catalog interface {
	IndexIfNew(ctx context.Context, corpus models.Corpus, fileID, fileUniqueID, title, performer string) models.IndexOutcome
	Search(ctx context.Context, query string) ([]models.SongMatch, error)
}

// Reputation is satisfied by *reputation.Client.
type Reputation interface {
	Dislikes(ctx context.Context, videoID string) *int64
}
