// Package caption renders the user-visible caption strings in Telegram's
// HTML dialect. The Renderer interface keeps the dialect replaceable
// without touching the core components.
package caption

import (
	"fmt"
	"html"
	"strings"

	"kinobot/internal/models"
)

// Renderer maps movie records to presentational strings.
type Renderer interface {
	// Full is the caption published with the canonical copy in the full
	// channel.
	Full(m *models.Movie, code string) string
	// Preview is the caption published with the teaser in the preview
	// channel.
	Preview(m *models.Movie, code string) string
	// Combined is the full caption plus live statistics, used when a
	// delivered copy's caption is replaced.
	Combined(m *models.Movie, code string, viewerRating int) string
	// Stats is the standalone statistics text, used as the fallback when
	// a delivered message cannot take a caption edit.
	Stats(m *models.Movie, viewerRating int) string
	// DeepLink is the share URL resolving to the movie inside the bot.
	DeepLink(code string) string
}

// HTML renders the production caption templates.
type HTML struct {
	botUsername    string
	previewChannel string
}

// NewHTML creates the renderer. Usernames may carry a leading @.
func NewHTML(botUsername, previewChannel string) *HTML {
	return &HTML{
		botUsername:    strings.TrimPrefix(botUsername, "@"),
		previewChannel: strings.TrimPrefix(previewChannel, "@"),
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func esc(s string) string {
	return html.EscapeString(orDash(s))
}

func (r *HTML) channelURL() string {
	return "https://t.me/" + r.previewChannel
}

func (r *HTML) botURL() string {
	return "https://t.me/" + r.botUsername
}

func (r *HTML) Full(m *models.Movie, code string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬: &quot;%s&quot; [%s]\n", esc(m.Name), esc(m.Year))
	b.WriteString("➖➖➖➖➖➖➖➖➖➖\n")
	fmt.Fprintf(&b, "• 🌍Davlati: %s \n", esc(m.Country))
	fmt.Fprintf(&b, "• 🌟IMBD: %s \n", esc(m.IMDB))
	fmt.Fprintf(&b, "• 🎭Janri: %s\n", esc(m.Genre))
	fmt.Fprintf(&b, "• 📸Sifat: %s\n", esc(m.Quality))
	fmt.Fprintf(&b, "• 🇺🇿Tili: %s\n\n", esc(m.Language))
	fmt.Fprintf(&b, "🔢 Kino kodi: <code>%s</code>\n\n", html.EscapeString(code))
	fmt.Fprintf(&b, "🔹Kanal: <a href=\"%s\">©️KinolarOlami</a>\n", r.channelURL())
	return b.String()
}

func (r *HTML) Preview(m *models.Movie, code string) string {
	name := "Kino"
	if m != nil && m.Name != "" {
		name = m.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🎬: \"%s\" botimizga to'liq holda joylandi❗\n", html.EscapeString(name))
	b.WriteString("➖➖➖➖➖➖➖➖➖➖\n")
	b.WriteString("• Filmni yuklab olish uchun botga kino kodini yuboring\n\n")
	fmt.Fprintf(&b, "• 🔢 Kino kodi: <code>%s</code>\n\n", html.EscapeString(code))
	b.WriteString("📥 Kino kodini bu yerga  yuboring: 👇\n")
	fmt.Fprintf(&b, "🔹Bot: <a href=\"%s\">CinemadiaUz bot</a>", r.botURL())
	return b.String()
}

func (r *HTML) Combined(m *models.Movie, code string, viewerRating int) string {
	top := strings.TrimRight(r.Full(m, code), "\n")
	avg := m.Stats.Ratings.Average()
	return fmt.Sprintf(
		"%s\n\n📊 Statistika\n👁️ Ko'rishlar: %d\n⭐ O'rtacha: %d %s\n👤 Sizning baho: %d/5",
		top, m.Stats.Views, avg, stars(avg), viewerRating,
	)
}

func (r *HTML) Stats(m *models.Movie, viewerRating int) string {
	avg := m.Stats.Ratings.Average()
	my := "Baholanmagan"
	if viewerRating > 0 {
		my = fmt.Sprintf("Sizning baho: %d/5", viewerRating)
	}
	return fmt.Sprintf(
		"📊 Statistika\n👁️ Ko'rishlar: %d\n⭐ O'rtacha: %d %s\n👤 %s",
		m.Stats.Views, avg, stars(avg), my,
	)
}

func (r *HTML) DeepLink(code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", r.botUsername, code)
}

func stars(n int) string {
	if n <= 0 {
		return "-"
	}
	return strings.Repeat("⭐", n)
}
