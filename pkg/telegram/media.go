package telegram

import "igrelay/pkg/models"

// InputFile is an immutable media payload. Keeping the bytes in memory lets
// every destination send read from a fresh cursor instead of rewinding a
// shared file handle.
type InputFile struct {
	// Name is the upload filename shown to the Bot API.
	Name string
	// Data is the raw file content.
	Data []byte
}

// InputMedia describes one entry of a media group.
type InputMedia struct {
	Kind    models.MediaKind
	File    InputFile
	Caption string
}

// Sender is the destination-client capability the dispatcher depends on.
type Sender interface {
	// SendPhoto delivers a single image with a caption to a chat.
	SendPhoto(chatID string, file InputFile, caption string) error
	// SendVideo delivers a single video with a caption to a chat.
	SendVideo(chatID string, file InputFile, caption string) error
	// SendMediaGroup delivers an album. Per the Bot API each entry carries
	// its own caption field; the receiving surface shows the first one.
	SendMediaGroup(chatID string, media []InputMedia) error
}
