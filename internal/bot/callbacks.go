package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/himanishpuri/tunebot/internal/apperr"
	"github.com/himanishpuri/tunebot/pkg/models"
	"github.com/himanishpuri/tunebot/pkg/utils"
)

// HandleCallback serves presses on the bot's inline buttons.
func (b *Bot) HandleCallback(ctx context.Context, cq Callback) error {
	return b.onCallback(ctx, cq)
}

func (b *Bot) routeCallback(ctx context.Context, cq Callback) error {
	action, rest, _ := strings.Cut(cq.Data, "_")
	switch action {
	case "info":
		return b.showInfo(ctx, cq, rest)
	case "alt":
		return b.showAlternatives(ctx, cq, rest)
	case "cancel":
		return b.cancelAlternatives(ctx, cq, rest)
	case "choose":
		key, videoID, ok := strings.Cut(rest, "_")
		if !ok || videoID == "" {
			return b.answer(ctx, cq, "", false)
		}
		return b.chooseAlternative(ctx, cq, key, videoID)
	default:
		return b.answer(ctx, cq, "", false)
	}
}

func (b *Bot) answer(ctx context.Context, cq Callback, text string, alert bool) error {
	if err := b.transport.AnswerCallback(ctx, cq.ID, text, alert); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}

// entryFor loads the session and checks the presser is its requester. It
// answers the callback itself when access is refused.
func (b *Bot) entryFor(ctx context.Context, cq Callback, key string) (*models.SessionEntry, error) {
	entry, err := b.cache.Get(ctx, key)
	if err != nil {
		if apperr.KindOf(err) != apperr.CacheExpiredOrMissing {
			b.log.Errorf("cache %s: %v", key, err)
		}
		return nil, b.answer(ctx, cq, InfoExpired, true)
	}
	if entry.Meta.RequesterID != cq.From.ID {
		return nil, b.answer(ctx, cq, NotForYou, true)
	}
	return entry, nil
}

func (b *Bot) showInfo(ctx context.Context, cq Callback, key string) error {
	entry, err := b.cache.Get(ctx, key)
	if err != nil {
		return b.answer(ctx, cq, InfoExpired, true)
	}
	return b.answer(ctx, cq, InfoMessage(entry.Meta), true)
}

func (b *Bot) showAlternatives(ctx context.Context, cq Callback, key string) error {
	entry, err := b.entryFor(ctx, cq, key)
	if entry == nil {
		return err
	}
	if entry.Meta.Query == "" {
		return b.answer(ctx, cq, QueryNotCached, true)
	}

	maxSeconds := float64(b.opts.MaxDurationMin * 60)
	var rows Keyboard
	for _, c := range b.fetcher.Search(ctx, entry.Meta.Query) {
		if maxSeconds > 0 && c.Duration > maxSeconds {
			continue
		}
		if c.ExternalID == "" {
			continue
		}
		title := c.Title
		if title == "" {
			title = UntitledSong
		}
		rows = append(rows, []Button{{
			Text: truncateRunes(title, alternativeTitleLen),
			Data: fmt.Sprintf("choose_%s_%s", key, c.ExternalID),
		}})
		if len(rows) == maxAlternatives {
			break
		}
	}
	if len(rows) == 0 {
		return b.answer(ctx, cq, NoAlternatives, true)
	}
	rows = append(rows, []Button{{Text: ButtonCancel, Data: "cancel_" + key}})

	if err := b.transport.EditButtons(ctx, cq.ChatID, cq.MessageID, rows); err != nil {
		b.log.Warnf("show alternatives: %v", err)
	}
	return b.answer(ctx, cq, "", false)
}

func (b *Bot) cancelAlternatives(ctx context.Context, cq Callback, key string) error {
	entry, err := b.entryFor(ctx, cq, key)
	if entry == nil {
		return err
	}
	if err := b.transport.EditButtons(ctx, cq.ChatID, cq.MessageID, fullKeyboard(cq.From.FullName, key)); err != nil {
		b.log.Warnf("restore buttons: %v", err)
	}
	return b.answer(ctx, cq, "", false)
}

func (b *Bot) chooseAlternative(ctx context.Context, cq Callback, key, videoID string) error {
	entry, err := b.entryFor(ctx, cq, key)
	if entry == nil {
		return err
	}

	messageID := cq.MessageID
	if entry.MessageRef != nil {
		messageID = *entry.MessageRef
	}
	if err := b.transport.EditButtons(ctx, cq.ChatID, messageID, nil); err != nil {
		b.log.Debugf("clear buttons: %v", err)
	}

	res, err := b.fetcher.FetchByURL(ctx, utils.WatchURL(videoID))
	if err != nil {
		if !apperr.IsValidation(err) {
			b.log.Errorf("Download Error for alternative: %v", err)
		}
		if editErr := b.transport.EditButtons(ctx, cq.ChatID, messageID, fullKeyboard(cq.From.FullName, key)); editErr != nil {
			b.log.Debugf("restore buttons: %v", editErr)
		}
		return b.answer(ctx, cq, b.userMessage(err), true)
	}
	defer res.Release()

	err = b.transport.EditAudio(ctx, cq.ChatID, messageID, audioOf(res), requesterKeyboard(cq.From.FullName, key))
	if err != nil {
		b.log.Errorf("update media for %s: %v", key, err)
		return b.answer(ctx, cq, fmt.Sprintf(FailedToUpdate, err), true)
	}

	meta := models.MetaFromFetch(res)
	meta.Query = entry.Meta.Query
	meta.ChatID = entry.Meta.ChatID
	meta.RequesterID = cq.From.ID
	meta.DislikeCount = b.reputation.Dislikes(ctx, res.ExternalID)
	if err := b.cache.Put(ctx, key, &messageID, meta); err != nil {
		b.log.Errorf("cache %s: %v", key, err)
	}
	return b.answer(ctx, cq, SongUpdated, false)
}
