package bot

import (
	"context"
	"strings"

	"github.com/himanishpuri/tunebot/pkg/models"
)

// HandleChannelAudio indexes audio posted to the storage channel and removes
// posts that are not mp3 or duplicate an indexed song.
func (b *Bot) HandleChannelAudio(ctx context.Context, a ChannelAudio) error {
	id := b.opts.StorageChannelID
	if id == 0 || id == -1 || a.ChatID != id {
		return nil
	}

	path, err := b.transport.FilePath(ctx, a.FileID)
	if err != nil {
		b.log.Errorf("API error during file_id verification %s: %v. Deleting %d.", a.FileID, err, a.MessageID)
		return b.transport.DeleteMessage(ctx, a.ChatID, a.MessageID)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".mp3") {
		b.log.Warnf("Not mp3, deleting %d. File path: %s", a.MessageID, path)
		return b.transport.DeleteMessage(ctx, a.ChatID, a.MessageID)
	}

	outcome := b.catalog.IndexIfNew(ctx, models.CorpusChannel, a.FileID, a.FileUniqueID, a.Title, a.Performer)
	switch outcome {
	case models.Indexed:
		b.log.Infof("Indexed [%s - %s] | MSG_ID: %d", a.Performer, a.Title, a.MessageID)
	case models.DuplicateExact, models.DuplicateFuzzy:
		b.log.Warnf("%s: deleting [%s - %s] | MSG_ID: %d", outcome, a.Performer, a.Title, a.MessageID)
		return b.transport.DeleteMessage(ctx, a.ChatID, a.MessageID)
	default:
		b.log.Errorf("Indexing error: [%s - %s] | MSG_ID: %d", a.Performer, a.Title, a.MessageID)
	}
	return nil
}
