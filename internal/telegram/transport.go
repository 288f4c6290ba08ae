// Package telegram wraps the Telegram Bot API behind the narrow transport
// surface the core components consume. Everything here is fallible by
// contract; callers own the fallback behavior.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ChatRef addresses a delivery target: either a private chat / numeric
// channel by ID, or a public channel by @username.
type ChatRef struct {
	ID       int64
	Username string
}

// ParseChatRef builds a ChatRef from a config value like "@kinolar" or
// "-1001234567890".
func ParseChatRef(s string) ChatRef {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "@") {
		return ChatRef{Username: s}
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ChatRef{ID: id}
	}
	return ChatRef{Username: "@" + s}
}

// Chat builds a ChatRef for a private chat.
func Chat(id int64) ChatRef {
	return ChatRef{ID: id}
}

// URL returns the t.me link for a channel ref, or "" for numeric refs.
func (r ChatRef) URL() string {
	if r.Username == "" {
		return ""
	}
	return "https://t.me/" + strings.TrimPrefix(r.Username, "@")
}

// AssetKind classifies the media types the bot handles.
type AssetKind int

const (
	AssetVideo AssetKind = iota
	AssetDocument
	AssetPhoto
	AssetVideoNote
	AssetAnimation
)

// Asset references one piece of media, by Telegram file ID or, when
// LocalPath is set, by a locally stored copy to upload instead.
type Asset struct {
	Kind      AssetKind
	FileID    string
	FileName  string
	MimeType  string
	LocalPath string
}

// IsVideo reports whether the asset is acceptable as primary movie
// content: a native video, or a document whose declared type or filename
// marks it as one of the recognized video formats.
func (a Asset) IsVideo() bool {
	switch a.Kind {
	case AssetVideo:
		return true
	case AssetDocument:
		return strings.HasPrefix(strings.ToLower(a.MimeType), "video/") || hasVideoExt(a.FileName)
	default:
		return false
	}
}

// IsImage reports whether a document asset carries an image payload.
func (a Asset) IsImage() bool {
	if a.Kind == AssetPhoto {
		return true
	}
	if a.Kind != AssetDocument {
		return false
	}
	if strings.HasPrefix(strings.ToLower(a.MimeType), "image/") {
		return true
	}
	low := strings.ToLower(a.FileName)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp"} {
		if strings.HasSuffix(low, ext) {
			return true
		}
	}
	return false
}

func hasVideoExt(name string) bool {
	low := strings.ToLower(name)
	for _, ext := range []string{".mp4", ".mkv", ".avi", ".mov"} {
		if strings.HasSuffix(low, ext) {
			return true
		}
	}
	return false
}

// Ext returns the asset's file extension for local storage, defaulting to
// mp4.
func (a Asset) Ext() string {
	low := strings.ToLower(a.FileName)
	for _, ext := range []string{"mkv", "avi", "mov", "mp4"} {
		if strings.HasSuffix(low, "."+ext) {
			return ext
		}
	}
	return "mp4"
}

// Button is one inline keyboard button: either a callback or a URL.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is an inline keyboard layout, row-major.
type Keyboard [][]Button

// Errors the transport distinguishes for callers.
var (
	// ErrEditUnsupported means the delivered message cannot carry the
	// requested caption or text edit; callers fall back to a separate
	// message.
	ErrEditUnsupported = errors.New("edit not supported for this message")
	// ErrNotModified means the edit was a no-op; safe to ignore.
	ErrNotModified = errors.New("message is not modified")
)

// Transport is the messaging collaborator consumed by the core. Every
// method may fail; none assumes synchronous success.
type Transport interface {
	// Publish sends the asset with a caption and returns the resulting
	// message ID in the target channel.
	Publish(ctx context.Context, to ChatRef, asset Asset, caption string) (int, error)
	// SendMessage sends an HTML text message, optionally with an inline
	// keyboard (nil for none).
	SendMessage(ctx context.Context, to ChatRef, text string, kb Keyboard) (int, error)
	// DeliverCopy copies a channel message into a consumer chat and
	// returns the delivered message ID.
	DeliverCopy(ctx context.Context, to ChatRef, from ChatRef, messageID int) (int, error)
	// EditCaption replaces the caption and keyboard of a delivered media
	// message. Returns ErrEditUnsupported when the message cannot take a
	// caption edit and ErrNotModified when nothing changed.
	EditCaption(ctx context.Context, chat ChatRef, messageID int, caption string, kb Keyboard) error
	// EditText replaces the text of a plain message.
	EditText(ctx context.Context, chat ChatRef, messageID int, text string, kb Keyboard) error
	// EditKeyboard replaces only the inline keyboard.
	EditKeyboard(ctx context.Context, chat ChatRef, messageID int, kb Keyboard) error
	// CheckMembership reports whether the user is a member of the channel.
	CheckMembership(ctx context.Context, channel ChatRef, userID int64) (bool, error)
	// MemberCount returns the channel's member count.
	MemberCount(ctx context.Context, channel ChatRef) (int, error)
	// FetchAsset downloads the file behind fileID to destPath.
	FetchAsset(ctx context.Context, fileID, destPath string) error
}
