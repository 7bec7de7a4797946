package dispatch

import (
	"os"
	"path/filepath"

	"igrelay/pkg/caption"
	"igrelay/pkg/logger"
	"igrelay/pkg/models"
	"igrelay/pkg/ratelimit"
	"igrelay/pkg/telegram"
)

// Routes resolves the destination chats for a tracked account.
type Routes interface {
	ChatIDsFor(username string) []string
}

// Dispatcher delivers logical media items to every destination registered
// for their account. Failures are isolated: a file that cannot be read, an
// item with no readable files, or a destination that rejects a send is
// logged and skipped without affecting the rest of the cycle.
type Dispatcher struct {
	sender      telegram.Sender
	routes      Routes
	limiter     ratelimit.Limiter
	captionOpts caption.Options
	logger      logger.Logger
}

// loadedFile is a media payload read into memory for delivery
type loadedFile struct {
	kind models.MediaKind
	file telegram.InputFile
}

// New creates a dispatcher sending through the given client.
func New(sender telegram.Sender, routes Routes, limiter ratelimit.Limiter, opts caption.Options, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Dispatcher{
		sender:      sender,
		routes:      routes,
		limiter:     limiter,
		captionOpts: opts,
		logger:      log,
	}
}

// Deliver sends one item to all destinations of its account. Albums where
// only one file could be read degrade to a single-media send; albums with
// no readable files are skipped.
func (d *Dispatcher) Deliver(item *models.MediaItem) {
	chatIDs := d.routes.ChatIDsFor(item.Username)
	if len(chatIDs) == 0 {
		d.logger.WarnWithFields("no destinations registered for account", map[string]interface{}{
			"username": item.Username,
		})
		return
	}

	if len(item.Files) == 0 {
		d.logger.ErrorWithFields("item has no media files", map[string]interface{}{
			"username":  item.Username,
			"shortcode": item.Shortcode,
		})
		return
	}

	text := caption.Format(item.Caption, item.Shortcode, d.captionOpts)
	loaded := d.loadFiles(item)

	switch {
	case len(loaded) == 0:
		d.logger.ErrorWithFields("no media files could be read, skipping item", map[string]interface{}{
			"username":  item.Username,
			"shortcode": item.Shortcode,
		})
	case len(loaded) == 1:
		d.sendSingle(item, chatIDs, loaded[0], text)
	default:
		d.sendAlbum(item, chatIDs, loaded, text)
	}
}

// loadFiles reads the item's files into memory, discarding unreadable ones
// with a logged error.
func (d *Dispatcher) loadFiles(item *models.MediaItem) []loadedFile {
	loaded := make([]loadedFile, 0, len(item.Files))
	for _, f := range item.Files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			d.logger.ErrorWithFields("failed to read media file", map[string]interface{}{
				"username":  item.Username,
				"shortcode": item.Shortcode,
				"path":      f.Path,
				"error":     err.Error(),
			})
			continue
		}
		loaded = append(loaded, loadedFile{
			kind: f.Kind,
			file: telegram.InputFile{Name: filepath.Base(f.Path), Data: data},
		})
	}
	return loaded
}

// sendSingle delivers one photo or video to every destination
func (d *Dispatcher) sendSingle(item *models.MediaItem, chatIDs []string, lf loadedFile, text string) {
	for _, chatID := range chatIDs {
		var err error
		if lf.kind == models.MediaKindImage {
			err = d.sender.SendPhoto(chatID, lf.file, text)
		} else {
			err = d.sender.SendVideo(chatID, lf.file, text)
		}
		if err != nil {
			d.logger.ErrorWithFields("failed to deliver media", map[string]interface{}{
				"username":  item.Username,
				"shortcode": item.Shortcode,
				"chat_id":   chatID,
				"kind":      string(lf.kind),
				"error":     err.Error(),
			})
			continue
		}
		d.logger.InfoWithFields("delivered media", map[string]interface{}{
			"username":  item.Username,
			"shortcode": item.Shortcode,
			"chat_id":   chatID,
			"kind":      string(lf.kind),
		})
		d.limiter.Wait()
	}
}

// sendAlbum delivers a media group to every destination. Only the first
// entry carries the caption; Telegram shows it under the whole album.
func (d *Dispatcher) sendAlbum(item *models.MediaItem, chatIDs []string, loaded []loadedFile, text string) {
	media := make([]telegram.InputMedia, 0, len(loaded))
	for i, lf := range loaded {
		itemCaption := ""
		if i == 0 {
			itemCaption = text
		}
		media = append(media, telegram.InputMedia{
			Kind:    lf.kind,
			File:    lf.file,
			Caption: itemCaption,
		})
	}

	for _, chatID := range chatIDs {
		if err := d.sender.SendMediaGroup(chatID, media); err != nil {
			d.logger.ErrorWithFields("failed to deliver album", map[string]interface{}{
				"username":  item.Username,
				"shortcode": item.Shortcode,
				"chat_id":   chatID,
				"files":     len(media),
				"error":     err.Error(),
			})
			continue
		}
		d.logger.InfoWithFields("delivered album", map[string]interface{}{
			"username":  item.Username,
			"shortcode": item.Shortcode,
			"chat_id":   chatID,
			"files":     len(media),
		})
		d.limiter.Wait()
	}
}
