// Package bot wires Telegram updates to the workflow, retrieval, and
// engagement services. It owns everything conversational: registration,
// reply-keyboard menus, and inline callback handling.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"kinobot/internal/caption"
	"kinobot/internal/config"
	"kinobot/internal/engagement"
	"kinobot/internal/retrieval"
	"kinobot/internal/storage"
	"kinobot/internal/telegram"
	"kinobot/internal/workflow"
)

type regStage int

const (
	regNone regStage = iota
	regAwaitingName
	regAwaitingPhone
)

type regSession struct {
	stage regStage
	name  string
}

// Bot runs the long-polling update loop and routes updates.
type Bot struct {
	api       *tgbotapi.BotAPI
	store     *storage.Store
	transport telegram.Transport
	render    caption.Renderer
	engine    *engagement.Engine
	workflow  *workflow.Manager
	retrieval *retrieval.Handler

	fullChannel    telegram.ChatRef
	previewChannel telegram.ChatRef
	curatorPhones  map[string]struct{}
	curatorIDs     map[int64]struct{}

	mu      sync.Mutex
	reg     map[int64]*regSession
	pending map[int64]string

	logger *zap.Logger
}

// NewBot assembles the bot from its collaborators.
func NewBot(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	store *storage.Store,
	transport telegram.Transport,
	render caption.Renderer,
	engine *engagement.Engine,
	wf *workflow.Manager,
	rh *retrieval.Handler,
	logger *zap.Logger,
) *Bot {
	phones := make(map[string]struct{}, len(cfg.Curators.Phones))
	for _, p := range cfg.Curators.Phones {
		phones[storage.NormalizePhone(p)] = struct{}{}
	}
	ids := make(map[int64]struct{}, len(cfg.Curators.IDs))
	for _, id := range cfg.Curators.IDs {
		ids[id] = struct{}{}
	}

	return &Bot{
		api:            api,
		store:          store,
		transport:      transport,
		render:         render,
		engine:         engine,
		workflow:       wf,
		retrieval:      rh,
		fullChannel:    telegram.ParseChatRef(cfg.Telegram.FullChannel),
		previewChannel: telegram.ParseChatRef(cfg.Telegram.PreviewChannel),
		curatorPhones:  phones,
		curatorIDs:     ids,
		reg:            map[int64]*regSession{},
		pending:        map[int64]string{},
		logger:         logger,
	}
}

// Run consumes updates until the context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !msg.Chat.IsPrivate() {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if msg.Contact != nil {
		b.handleContact(ctx, msg)
		return
	}

	switch b.regStage(userID) {
	case regAwaitingName:
		b.handleRegName(userID, chatID, msg.Text)
		return
	case regAwaitingPhone:
		b.sendMarkup(chatID, textAskPhone, contactKeyboard())
		return
	}

	if _, ok := b.store.GetUser(userID); !ok {
		b.beginRegistration(userID, chatID)
		return
	}

	if b.store.IsCurator(userID) {
		b.handleCurator(ctx, msg)
		return
	}
	b.handleConsumer(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		if payload := strings.TrimSpace(msg.CommandArguments()); retrieval.IsCode(payload) {
			b.setPending(userID, payload)
		}

		if _, registered := b.store.GetUser(userID); !registered {
			if _, ok := b.curatorIDs[userID]; ok {
				// Allow-listed identities skip the registration dialog.
				b.store.UpsertUser(userID, msg.From.FirstName, "", true)
			} else {
				b.beginRegistration(userID, chatID)
				return
			}
		}

		if b.store.IsCurator(userID) {
			b.workflow.Cancel(userID)
			b.sendMarkup(chatID, textWelcome+"\n\n"+textMenu, curatorMenu())
			return
		}
		b.sendMarkup(chatID, textWelcome+"\n\n"+textMenu, consumerMenu())
		b.deliverPending(ctx, userID, chatID)
	case "help":
		b.send(chatID, textHelp)
	default:
		b.send(chatID, textUnknown)
	}
}

// beginRegistration starts or restarts the name dialog.
func (b *Bot) beginRegistration(userID, chatID int64) {
	b.mu.Lock()
	b.reg[userID] = &regSession{stage: regAwaitingName}
	b.mu.Unlock()
	b.send(chatID, textWelcome+"\n\n"+textAskName)
}

func (b *Bot) regStage(userID int64) regStage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.reg[userID]; ok {
		return s.stage
	}
	return regNone
}

func (b *Bot) handleRegName(userID, chatID int64, text string) {
	name := strings.TrimSpace(text)
	if len([]rune(name)) < 2 {
		b.send(chatID, textNameTooShort)
		return
	}

	b.mu.Lock()
	s := b.reg[userID]
	s.name = name
	askPhone := len(b.curatorPhones) > 0
	if askPhone {
		s.stage = regAwaitingPhone
	} else {
		delete(b.reg, userID)
	}
	b.mu.Unlock()

	if askPhone {
		b.sendMarkup(chatID, textAskPhone, contactKeyboard())
		return
	}
	b.store.UpsertUser(userID, name, "", false)
	b.finishRegistration(userID, chatID)
}

func (b *Bot) handleContact(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	if b.regStage(userID) != regAwaitingPhone {
		return
	}
	if msg.Contact.UserID != userID {
		b.send(chatID, textOwnContact)
		return
	}

	phone := storage.NormalizePhone(msg.Contact.PhoneNumber)
	_, isCurator := b.curatorPhones[phone]

	b.mu.Lock()
	name := b.reg[userID].name
	delete(b.reg, userID)
	b.mu.Unlock()

	b.store.UpsertUser(userID, name, phone, isCurator)
	b.finishRegistration(userID, chatID)
	if !isCurator {
		b.deliverPending(ctx, userID, chatID)
	}
}

func (b *Bot) finishRegistration(userID, chatID int64) {
	if b.store.IsCurator(userID) {
		b.sendMarkup(chatID, textRegistered+"\n\n"+textMenu, curatorMenu())
		return
	}
	b.sendMarkup(chatID, textRegistered+"\n\n"+textMenu, consumerMenu())
}

func (b *Bot) setPending(userID int64, code string) {
	b.mu.Lock()
	b.pending[userID] = code
	b.mu.Unlock()
}

func (b *Bot) takePending(userID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	code, ok := b.pending[userID]
	if ok {
		delete(b.pending, userID)
	}
	return code, ok
}

// deliverPending serves a deep-link code once the gate checks can pass.
func (b *Bot) deliverPending(ctx context.Context, userID, chatID int64) {
	if code, ok := b.takePending(userID); ok {
		b.deliver(ctx, userID, chatID, code)
	}
}

func (b *Bot) handleCurator(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if asset, ok := assetFrom(msg); ok {
		if reply, handled := b.workflow.HandleAsset(ctx, userID, asset); handled && reply != "" {
			b.send(chatID, reply)
		}
		return
	}

	switch strings.TrimSpace(msg.Text) {
	case btnUpload:
		b.send(chatID, b.workflow.Begin(userID))
	case btnUsers:
		b.sendHTML(chatID, b.usersReport())
	case btnStats:
		b.send(chatID, b.statsReport())
	case btnMembers:
		b.send(chatID, b.membersReport(ctx))
	default:
		if reply, handled := b.workflow.HandleText(ctx, userID, msg.Text); handled {
			b.send(chatID, reply)
			return
		}
		b.sendMarkup(chatID, textMenu, curatorMenu())
	}
}

const usersReportLimit = 20

func (b *Bot) usersReport() string {
	users := b.store.Users()
	if len(users) == 0 {
		return textUsersEmpty
	}

	ids := make([]int64, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > usersReportLimit {
		ids = ids[:usersReportLimit]
	}

	var sb strings.Builder
	sb.WriteString(textUsersHeader)
	for _, id := range ids {
		u := users[id]
		phone := u.Phone
		if phone == "" {
			phone = "-"
		}
		fmt.Fprintf(&sb, "• %s — %s (<code>%d</code>)\n", html.EscapeString(u.Name), html.EscapeString(phone), id)
	}
	fmt.Fprintf(&sb, "\nJami: %d", len(users))
	return sb.String()
}

func (b *Bot) statsReport() string {
	users := b.store.Users()
	curators := 0
	for _, u := range users {
		if u.IsCurator {
			curators++
		}
	}
	return fmt.Sprintf(textStats,
		b.store.MovieCount(), len(users), curators, len(users)-curators, b.store.TotalViews())
}

func (b *Bot) membersReport(ctx context.Context) string {
	format := func(ch telegram.ChatRef) string {
		n, err := b.transport.MemberCount(ctx, ch)
		if err != nil {
			b.logger.Warn("Member count failed", zap.String("channel", ch.Username), zap.Error(err))
			return "-"
		}
		return strconv.Itoa(n)
	}
	return fmt.Sprintf(textMembers, format(b.fullChannel), format(b.previewChannel))
}

func (b *Bot) handleConsumer(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch text {
	case btnSendCode:
		b.send(chatID, textAskCode)
	case btnRandom:
		b.sendRandom(ctx, userID, chatID)
	case btnTop:
		b.sendHTML(chatID, b.topReport())
	case btnFavorites:
		b.sendHTML(chatID, b.favoritesReport(userID))
	case btnSubCheck:
		b.sendSubscriptionStatus(ctx, userID, chatID)
	case btnHelp:
		b.send(chatID, textHelp)
	default:
		if retrieval.IsCode(text) {
			b.deliver(ctx, userID, chatID, text)
			return
		}
		b.send(chatID, textUnknown)
	}
}

// deliver runs a code lookup and translates refusals to user texts. A
// failed subscription gate stashes the code so the re-check callback can
// complete the delivery.
func (b *Bot) deliver(ctx context.Context, userID, chatID int64, code string) {
	code = strings.TrimSpace(code)
	chat := telegram.Chat(chatID)

	kb := b.statsKeyboardFor(code, userID)
	err := b.retrieval.Retrieve(ctx, userID, chat, code, kb)
	switch {
	case err == nil:
	case errors.Is(err, retrieval.ErrNotRegistered):
		b.beginRegistration(userID, chatID)
	case errors.Is(err, retrieval.ErrCuratorLookup):
		// Curator identities never consume movies; drop the request.
	case errors.Is(err, retrieval.ErrNotSubscribed):
		b.setPending(userID, code)
		b.sendSubscribePrompt(ctx, chatID)
	case errors.Is(err, retrieval.ErrNotFound):
		b.send(chatID, textNotFound)
	case errors.Is(err, retrieval.ErrUnavailable):
		b.send(chatID, textUnavailable)
	default:
		b.send(chatID, textDeliveryFail)
	}
}

// sendSubscriptionStatus answers the menu's subscription check and, on a
// confirmed subscription, completes any stashed deep-link delivery.
func (b *Bot) sendSubscriptionStatus(ctx context.Context, userID, chatID int64) {
	subscribed, err := b.transport.CheckMembership(ctx, b.previewChannel, userID)
	if err != nil || !subscribed {
		b.sendSubscribePrompt(ctx, chatID)
		return
	}
	if _, err := b.transport.SendMessage(ctx, telegram.Chat(chatID), textSubConfirmed, nil); err != nil {
		b.logger.Warn("Subscription status failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	b.deliverPending(ctx, userID, chatID)
}

func (b *Bot) sendSubscribePrompt(ctx context.Context, chatID int64) {
	kb := subscribeKeyboard(b.previewChannel.URL())
	if _, err := b.transport.SendMessage(ctx, telegram.Chat(chatID), textNotSubscribed, kb); err != nil {
		b.logger.Warn("Subscribe prompt failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendRandom(ctx context.Context, userID, chatID int64) {
	subscribed, err := b.transport.CheckMembership(ctx, b.previewChannel, userID)
	if err != nil || !subscribed {
		b.sendSubscribePrompt(ctx, chatID)
		return
	}

	code, err := b.engine.PickRandom(ctx, userID, telegram.Chat(chatID))
	switch {
	case errors.Is(err, engagement.ErrNoCandidates):
		b.send(chatID, textRandomEmpty)
		return
	case err != nil:
		b.send(chatID, textRandomFailed)
		return
	}

	movie, ok := b.store.GetMovie(code)
	if !ok {
		return
	}
	stats := b.render.Stats(movie, b.store.UserRating(code, userID))
	if _, err := b.transport.SendMessage(ctx, telegram.Chat(chatID), stats, b.statsKeyboardFor(code, userID)); err != nil {
		b.logger.Warn("Random stats message failed", zap.String("code", code), zap.Error(err))
	}
}

const topReportSize = 10

func (b *Bot) topReport() string {
	items := b.engine.Top(topReportSize)
	if len(items) == 0 {
		return textTopEmpty
	}

	var sb strings.Builder
	sb.WriteString(textTopHeader)
	for i, it := range items {
		fmt.Fprintf(&sb, "%d. <a href=\"%s\">%s</a> — kod: <code>%s</code> | ⭐%d | 👁️ %d\n",
			i+1, b.render.DeepLink(it.Code), html.EscapeString(it.Name), it.Code, it.Rating, it.Views)
	}
	return sb.String()
}

const favoritesReportLimit = 50

func (b *Bot) favoritesReport(userID int64) string {
	codes := b.store.Favorites(userID)
	if len(codes) == 0 {
		return textFavEmpty
	}
	if len(codes) > favoritesReportLimit {
		codes = codes[:favoritesReportLimit]
	}

	var sb strings.Builder
	sb.WriteString(textFavHeader)
	for _, code := range codes {
		movie, ok := b.store.GetMovie(code)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "🔹 <code>%s</code> — <a href=\"%s\">%s</a> ⭐%d\n",
			code, b.render.DeepLink(code), html.EscapeString(movie.Name), movie.Stats.Ratings.Average())
	}
	return sb.String()
}

func (b *Bot) statsKeyboardFor(code string, userID int64) telegram.Keyboard {
	movie, ok := b.store.GetMovie(code)
	if !ok {
		return nil
	}
	return statsKeyboard(code, movie,
		b.store.UserRating(code, userID),
		b.hasFavorite(userID, code),
		b.render.DeepLink(code))
}

func (b *Bot) hasFavorite(userID int64, code string) bool {
	u, ok := b.store.GetUser(userID)
	return ok && u.HasFavorite(code)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}
	userID := cb.From.ID
	data := cb.Data

	switch {
	case data == "check_sub":
		b.handleCheckSub(ctx, cb)
	case strings.HasPrefix(data, "rate:"):
		b.handleRate(ctx, cb, strings.TrimPrefix(data, "rate:"))
	case strings.HasPrefix(data, "fav:"):
		b.handleFav(ctx, cb, strings.TrimPrefix(data, "fav:"))
	case strings.HasPrefix(data, "like:"):
		// Likes stay in the data model only; the button just explains.
		b.alert(cb.ID, textLikeDisabled)
	default:
		b.answer(cb.ID, "")
		b.logger.Debug("Unknown callback", zap.Int64("user_id", userID), zap.String("data", data))
	}
}

func (b *Bot) handleCheckSub(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID
	subscribed, err := b.transport.CheckMembership(ctx, b.previewChannel, userID)
	if err != nil || !subscribed {
		b.alert(cb.ID, textSubMissing)
		return
	}

	b.answer(cb.ID, textSubConfirmed)
	if cb.Message != nil {
		b.deliverPending(ctx, userID, cb.Message.Chat.ID)
	}
}

func (b *Bot) handleRate(ctx context.Context, cb *tgbotapi.CallbackQuery, payload string) {
	code, valueStr, ok := strings.Cut(payload, ":")
	if !ok {
		b.answer(cb.ID, "")
		return
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		b.answer(cb.ID, "")
		return
	}

	if err := b.store.Rate(code, cb.From.ID, value); err != nil {
		b.logger.Warn("Rating failed", zap.String("code", code), zap.Error(err))
		b.answer(cb.ID, textNotFound)
		return
	}
	b.answer(cb.ID, fmt.Sprintf(textRated, value))
	b.refreshStatsMessage(ctx, cb, code)
}

func (b *Bot) handleFav(ctx context.Context, cb *tgbotapi.CallbackQuery, code string) {
	added, err := b.store.ToggleFavorite(cb.From.ID, code)
	if err != nil {
		b.answer(cb.ID, textNotFound)
		return
	}
	if added {
		b.answer(cb.ID, textFavAdded)
	} else {
		b.answer(cb.ID, textFavRemoved)
	}
	b.refreshStatsMessage(ctx, cb, code)
}

// refreshStatsMessage re-renders the message the callback came from, so the
// keyboard marks and counters track the viewer's action. Edit failures
// degrade to a keyboard-only refresh.
func (b *Bot) refreshStatsMessage(ctx context.Context, cb *tgbotapi.CallbackQuery, code string) {
	if cb.Message == nil {
		return
	}
	movie, ok := b.store.GetMovie(code)
	if !ok {
		return
	}

	userID := cb.From.ID
	chat := telegram.Chat(cb.Message.Chat.ID)
	messageID := cb.Message.MessageID
	kb := statsKeyboard(code, movie,
		b.store.UserRating(code, userID),
		b.hasFavorite(userID, code),
		b.render.DeepLink(code))

	var err error
	if cb.Message.Caption != "" {
		err = b.transport.EditCaption(ctx, chat, messageID,
			b.render.Combined(movie, code, b.store.UserRating(code, userID)), kb)
	} else {
		err = b.transport.EditText(ctx, chat, messageID,
			b.render.Stats(movie, b.store.UserRating(code, userID)), kb)
	}
	if err == nil || errors.Is(err, telegram.ErrNotModified) {
		return
	}
	if kbErr := b.transport.EditKeyboard(ctx, chat, messageID, kb); kbErr != nil && !errors.Is(kbErr, telegram.ErrNotModified) {
		b.logger.Warn("Stats refresh failed", zap.String("code", code), zap.Error(kbErr))
	}
}

// assetFrom extracts a media payload from a message, preferring the
// richest representation Telegram provides.
func assetFrom(msg *tgbotapi.Message) (telegram.Asset, bool) {
	switch {
	case msg.Video != nil:
		return telegram.Asset{
			Kind:     telegram.AssetVideo,
			FileID:   msg.Video.FileID,
			FileName: msg.Video.FileName,
			MimeType: msg.Video.MimeType,
		}, true
	case msg.Document != nil:
		return telegram.Asset{
			Kind:     telegram.AssetDocument,
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
		}, true
	case msg.Animation != nil:
		return telegram.Asset{
			Kind:     telegram.AssetAnimation,
			FileID:   msg.Animation.FileID,
			FileName: msg.Animation.FileName,
			MimeType: msg.Animation.MimeType,
		}, true
	case msg.VideoNote != nil:
		return telegram.Asset{
			Kind:   telegram.AssetVideoNote,
			FileID: msg.VideoNote.FileID,
		}, true
	case len(msg.Photo) > 0:
		return telegram.Asset{
			Kind:   telegram.AssetPhoto,
			FileID: msg.Photo[len(msg.Photo)-1].FileID,
		}, true
	}
	return telegram.Asset{}, false
}

func (b *Bot) send(chatID int64, text string) {
	b.sendMarkup(chatID, text, nil)
}

func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("Send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendMarkup(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("Send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Debug("Callback answer failed", zap.Error(err))
	}
}

func (b *Bot) alert(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallbackWithAlert(callbackID, text)); err != nil {
		b.logger.Debug("Callback alert failed", zap.Error(err))
	}
}
