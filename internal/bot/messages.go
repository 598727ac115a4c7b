package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/himanishpuri/tunebot/internal/apperr"
	"github.com/himanishpuri/tunebot/pkg/models"
	"github.com/himanishpuri/tunebot/pkg/utils"
)

// HandleMessage serves "music <query>" messages.
func (b *Bot) HandleMessage(ctx context.Context, m Message) error {
	if !b.opts.Policy.AllowMessage(m) {
		if b.opts.Policy.Blocked(m.From.ID) {
			b.log.Infof("Blocked user %d tried to use the bot.", m.From.ID)
		}
		return nil
	}
	if len(m.Text) < len(CommandPrefix) || !strings.EqualFold(m.Text[:len(CommandPrefix)], CommandPrefix) {
		return nil
	}
	query := strings.TrimSpace(m.Text[len(CommandPrefix):])
	return b.onQuery(ctx, queryRequest{Message: m, Query: query})
}

func (b *Bot) handleQuery(ctx context.Context, r queryRequest) error {
	if r.Query == "" {
		return nil
	}

	if err := b.transport.DeleteMessage(ctx, r.ChatID, r.ID); err != nil {
		b.log.Debugf("delete request message: %v", err)
	}
	statusID, err := b.transport.SendText(ctx, r.ChatID, StatusSearching)
	if err != nil {
		return fmt.Errorf("sending status: %w", err)
	}

	res, err := b.fetcher.FetchByQuery(ctx, r.Query)
	b.deleteQuietly(ctx, r.ChatID, statusID)
	if err != nil {
		b.reportError(ctx, r.ChatID, err)
		return nil
	}
	defer res.Release()

	key := utils.NewSessionKey()
	meta := models.MetaFromFetch(res)
	meta.Query = r.Query
	meta.RequesterID = r.From.ID
	meta.ChatID = r.ChatID
	meta.DislikeCount = b.reputation.Dislikes(ctx, res.ExternalID)

	if err := b.cache.Put(ctx, key, nil, meta); err != nil {
		b.log.Errorf("cache %s: %v", key, err)
	}

	sent, err := b.transport.SendAudio(ctx, r.ChatID, audioOf(res), fullKeyboard(r.From.FullName, key), r.ReplyToID)
	if err != nil {
		b.log.Errorf("send audio %q: %v", res.Title, err)
		if derr := b.cache.Delete(ctx, key); derr != nil {
			b.log.Warnf("cache %s cleanup: %v", key, derr)
		}
		return fmt.Errorf("sending audio: %w", err)
	}

	if err := b.cache.SetMessageRef(ctx, key, sent.MessageID); err != nil {
		b.log.Warnf("cache %s message ref: %v", key, err)
	}
	if sent.FileUniqueID != "" {
		outcome := b.catalog.IndexIfNew(ctx, models.CorpusChat, sent.FileID, sent.FileUniqueID, res.Title, res.Uploader)
		b.log.Debugf("chat corpus %s - %s: %s", res.Uploader, res.Title, outcome)
	}

	chatID, messageID, name := r.ChatID, sent.MessageID, r.From.FullName
	b.after(b.opts.NotRightTimeout, func(ctx context.Context) {
		if _, err := b.cache.Get(ctx, key); err != nil {
			return
		}
		if err := b.transport.EditButtons(ctx, chatID, messageID, requesterKeyboard(name, key)); err != nil {
			b.log.Debugf("remove alternative button: %v", err)
		}
	})
	return nil
}

// userMessage maps a fetch failure to the text shown in chat.
func (b *Bot) userMessage(err error) string {
	switch apperr.KindOf(err) {
	case apperr.DurationExceeded:
		return fmt.Sprintf(ErrorLongAudio, b.opts.MaxDurationMin)
	case apperr.SizeExceeded:
		return fmt.Sprintf(ErrorTooLarge, b.opts.MaxFileSizeMB)
	case apperr.NoResults, apperr.NoAudioStream:
		return ErrorNoResults
	default:
		return ErrorGeneric
	}
}

func (b *Bot) reportError(ctx context.Context, chatID int64, err error) {
	if !apperr.IsValidation(err) {
		b.log.Errorf("Download/Search Error: %v", err)
	}
	msgID, sendErr := b.transport.SendText(ctx, chatID, ErrorPrefix+b.userMessage(err))
	if sendErr != nil {
		b.log.Warnf("send error message: %v", sendErr)
		return
	}
	b.after(b.opts.ErrorTTL, func(ctx context.Context) {
		b.deleteQuietly(ctx, chatID, msgID)
	})
}

func (b *Bot) deleteQuietly(ctx context.Context, chatID, messageID int64) {
	if err := b.transport.DeleteMessage(ctx, chatID, messageID); err != nil {
		b.log.Debugf("delete message %d: %v", messageID, err)
	}
}

func audioOf(res *models.FetchResult) Audio {
	return Audio{
		Path:          res.AudioPath,
		ThumbnailPath: res.ThumbnailPath,
		Title:         res.Title,
		Performer:     res.Uploader,
	}
}

func requesterButton(name, key string) Button {
	return Button{Text: fmt.Sprintf(ButtonRequester, name), Data: "info_" + key}
}

func requesterKeyboard(name, key string) Keyboard {
	return Keyboard{{requesterButton(name, key)}}
}

func fullKeyboard(name, key string) Keyboard {
	return Keyboard{{requesterButton(name, key), {Text: ButtonNotRight, Data: "alt_" + key}}}
}
