package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kinobot/internal/models"
	"kinobot/internal/telegram"
)

func consumerMenu() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSendCode),
			tgbotapi.NewKeyboardButton(btnRandom),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnTop),
			tgbotapi.NewKeyboardButton(btnFavorites),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSubCheck),
			tgbotapi.NewKeyboardButton(btnHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func curatorMenu() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnUpload),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnUsers),
			tgbotapi.NewKeyboardButton(btnStats),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnMembers),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact(btnContact),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// subscribeKeyboard links to the preview channel and offers a re-check.
func subscribeKeyboard(channelURL string) telegram.Keyboard {
	return telegram.Keyboard{
		{{Text: "📣 Kanalga o'tish", URL: channelURL}},
		{{Text: btnCheckSub, Data: "check_sub"}},
	}
}

// statsKeyboard builds the engagement keyboard under a delivered movie:
// one row of rating buttons with the viewer's own rating marked, then
// favorite, like, and share.
func statsKeyboard(code string, movie *models.Movie, ownRating int, hasFavorite bool, deepLink string) telegram.Keyboard {
	ratings := make([]telegram.Button, 0, 5)
	for v := 1; v <= 5; v++ {
		label := strconv.Itoa(v) + "⭐"
		if v == ownRating {
			label = "✅" + label
		}
		ratings = append(ratings, telegram.Button{
			Text: label,
			Data: fmt.Sprintf("rate:%s:%d", code, v),
		})
	}

	favLabel := "🤍 Sevimlilarga"
	if hasFavorite {
		favLabel = "💖 Sevimlilarda"
	}
	likeLabel := fmt.Sprintf("👍 %d", movie.Stats.Likes.Count)

	return telegram.Keyboard{
		ratings,
		{
			{Text: favLabel, Data: "fav:" + code},
			{Text: likeLabel, Data: "like:" + code},
			{Text: btnShare, URL: deepLink},
		},
	}
}
