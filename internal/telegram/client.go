package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Client implements Transport on top of the Bot API.
type Client struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient wraps an authorized Bot API handle. The HTTP client is only
// used for file downloads; movie files are large, so the timeout is
// generous.
func NewClient(api *tgbotapi.BotAPI, logger *zap.Logger) *Client {
	return &Client{
		api: api,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		logger: logger,
	}
}

func baseChat(to ChatRef) tgbotapi.BaseChat {
	return tgbotapi.BaseChat{ChatID: to.ID, ChannelUsername: to.Username}
}

// InlineMarkup converts a Keyboard to the Bot API representation. Returns
// nil for an empty keyboard.
func InlineMarkup(kb Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func (c *Client) Publish(ctx context.Context, to ChatRef, asset Asset, caption string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var file tgbotapi.RequestFileData
	if asset.LocalPath != "" {
		file = tgbotapi.FilePath(asset.LocalPath)
	} else {
		file = tgbotapi.FileID(asset.FileID)
	}
	base := tgbotapi.BaseFile{BaseChat: baseChat(to), File: file}

	var chattable tgbotapi.Chattable
	switch asset.Kind {
	case AssetVideo:
		cfg := tgbotapi.VideoConfig{BaseFile: base}
		cfg.Caption = caption
		cfg.ParseMode = tgbotapi.ModeHTML
		chattable = cfg
	case AssetDocument:
		cfg := tgbotapi.DocumentConfig{BaseFile: base}
		cfg.Caption = caption
		cfg.ParseMode = tgbotapi.ModeHTML
		chattable = cfg
	case AssetPhoto:
		cfg := tgbotapi.PhotoConfig{BaseFile: base}
		cfg.Caption = caption
		cfg.ParseMode = tgbotapi.ModeHTML
		chattable = cfg
	case AssetAnimation:
		cfg := tgbotapi.AnimationConfig{BaseFile: base}
		cfg.Caption = caption
		cfg.ParseMode = tgbotapi.ModeHTML
		chattable = cfg
	case AssetVideoNote:
		// Video notes cannot carry a caption; callers send it separately.
		chattable = tgbotapi.VideoNoteConfig{BaseFile: base}
	default:
		return 0, fmt.Errorf("unsupported asset kind %d", asset.Kind)
	}

	sent, err := c.api.Send(chattable)
	if err != nil {
		return 0, fmt.Errorf("failed to publish asset: %w", err)
	}
	return sent.MessageID, nil
}

func (c *Client) SendMessage(ctx context.Context, to ChatRef, text string, kb Keyboard) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	msg := tgbotapi.MessageConfig{
		BaseChat:              baseChat(to),
		Text:                  text,
		ParseMode:             tgbotapi.ModeHTML,
		DisableWebPagePreview: true,
	}
	if markup := InlineMarkup(kb); markup != nil {
		msg.ReplyMarkup = markup
	}

	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

func (c *Client) DeliverCopy(ctx context.Context, to ChatRef, from ChatRef, messageID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cfg := tgbotapi.CopyMessageConfig{
		BaseChat:            baseChat(to),
		FromChatID:          from.ID,
		FromChannelUsername: from.Username,
		MessageID:           messageID,
	}
	copied, err := c.api.CopyMessage(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to copy message %d: %w", messageID, err)
	}
	return copied.MessageID, nil
}

func (c *Client) EditCaption(ctx context.Context, chat ChatRef, messageID int, caption string, kb Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := tgbotapi.EditMessageCaptionConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:          chat.ID,
			ChannelUsername: chat.Username,
			MessageID:       messageID,
			ReplyMarkup:     InlineMarkup(kb),
		},
		Caption:   caption,
		ParseMode: tgbotapi.ModeHTML,
	}
	if _, err := c.api.Request(cfg); err != nil {
		return classifyEditError(err)
	}
	return nil
}

func (c *Client) EditText(ctx context.Context, chat ChatRef, messageID int, text string, kb Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := tgbotapi.EditMessageTextConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:          chat.ID,
			ChannelUsername: chat.Username,
			MessageID:       messageID,
			ReplyMarkup:     InlineMarkup(kb),
		},
		Text:                  text,
		ParseMode:             tgbotapi.ModeHTML,
		DisableWebPagePreview: true,
	}
	if _, err := c.api.Request(cfg); err != nil {
		return classifyEditError(err)
	}
	return nil
}

func (c *Client) EditKeyboard(ctx context.Context, chat ChatRef, messageID int, kb Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := tgbotapi.EditMessageReplyMarkupConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:          chat.ID,
			ChannelUsername: chat.Username,
			MessageID:       messageID,
			ReplyMarkup:     InlineMarkup(kb),
		},
	}
	if _, err := c.api.Request(cfg); err != nil {
		return classifyEditError(err)
	}
	return nil
}

// classifyEditError maps Bot API edit failures onto the transport's typed
// errors so callers can pick a fallback without string matching.
func classifyEditError(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "message is not modified") {
		return ErrNotModified
	}
	return fmt.Errorf("%w: %s", ErrEditUnsupported, err)
}

func (c *Client) CheckMembership(ctx context.Context, channel ChatRef, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID:             channel.ID,
			SuperGroupUsername: channel.Username,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	switch member.Status {
	case "member", "administrator", "creator":
		return true, nil
	default:
		return false, nil
	}
}

func (c *Client) MemberCount(ctx context.Context, channel ChatRef) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count, err := c.api.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{
			ChatID:             channel.ID,
			SuperGroupUsername: channel.Username,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get member count: %w", err)
	}
	return count, nil
}

// FetchAsset resolves the Bot API file path for fileID and streams the
// bytes to destPath. The Bot API refuses downloads above its size limit,
// in which case the caller falls back to publishing by file ID.
func (c *Client) FetchAsset(ctx context.Context, fileID, destPath string) error {
	file, err := c.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(c.api.Token), nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return nil
}
