package bot

// User-facing texts. The bot speaks Uzbek.
const (
	textWelcome      = "Assalomu alaykum! 🎬 Kino botga xush kelibsiz."
	textAskName      = "Ismingizni kiriting:"
	textNameTooShort = "Ism juda qisqa. Qaytadan kiriting:"
	textAskPhone     = "Telefon raqamingizni pastdagi tugma orqali yuboring 👇"
	textOwnContact   = "Iltimos, o'zingizning raqamingizni yuboring."
	textRegistered   = "Ro'yxatdan o'tdingiz! ✅"
	textMenu         = "Kerakli bo'limni tanlang:"

	textAskCode      = "Kino kodini yuboring (masalan, 123):"
	textNotFound     = "Bunday kodli kino topilmadi. 😕"
	textUnavailable  = "Bu kino hozircha mavjud emas. 😔"
	textDeliveryFail = "Kino yuborishda xatolik yuz berdi. Keyinroq urinib ko'ring."

	textNotSubscribed = "Botdan foydalanish uchun kanalimizga obuna bo'ling 👇"
	textSubConfirmed  = "Rahmat! Obuna tasdiqlandi ✅"
	textSubMissing    = "Hali obuna bo'lmagansiz 😕"

	textRandomEmpty  = "Hozircha kinolar yo'q."
	textRandomFailed = "Tasodifiy kino topilmadi. Keyinroq urinib ko'ring."
	textTopEmpty     = "Hozircha reyting yo'q."
	textTopHeader    = "🏆 Eng yaxshi kinolar:\n\n"
	textFavEmpty     = "Sevimlilar ro'yxati bo'sh."
	textFavHeader    = "💖 Sevimli kinolaringiz:\n\n"
	textFavAdded     = "Sevimlilarga qo'shildi 💖"
	textFavRemoved   = "Sevimlilardan olib tashlandi 🤍"
	textRated        = "Bahoyingiz qabul qilindi: %d⭐"
	textLikeDisabled = "Like funksiyasi hozircha o'chirilgan."

	textHelp = "🎬 Kino kodini yuboring va kinoni oling.\n" +
		"🎲 Tasodifiy kino — bot siz uchun kino tanlaydi.\n" +
		"🏆 Top 10 — eng yuqori baholangan kinolar.\n" +
		"💖 Sevimlilar — saqlab qo'ygan kinolaringiz.\n\n" +
		"Kodlar asosiy kanaldagi postlarda ko'rsatilgan."

	textUnknown = "Tushunarsiz buyruq. Kino kodini yuboring yoki menyudan tanlang."

	textUsersHeader = "👥 Foydalanuvchilar:\n\n"
	textUsersEmpty  = "Foydalanuvchilar yo'q."
	textStats       = "📊 Bot statistikasi\n\n🎬 Kinolar: %d\n👥 Foydalanuvchilar: %d\n🛠 Adminlar: %d\n🎟 Tomoshabinlar: %d\n👁️ Jami ko'rishlar: %d"
	textMembers     = "📣 Kanal a'zolari\n\nAsosiy kanal: %s\nPreview kanal: %s"
)

// Menu button labels.
const (
	btnSendCode  = "🎬 Kino kodi"
	btnRandom    = "🎲 Tasodifiy kino"
	btnTop       = "🏆 Top 10"
	btnFavorites = "💖 Sevimlilar"
	btnSubCheck  = "🔔 Obuna tekshirish"
	btnHelp      = "ℹ️ Yordam"

	btnUpload  = "➕ Kino joylash"
	btnUsers   = "👥 Foydalanuvchilar"
	btnStats   = "📊 Statistika"
	btnMembers = "📣 Kanal a'zolari"

	btnContact  = "📱 Raqamni yuborish"
	btnCheckSub = "✅ Tekshirish"
	btnShare    = "📤 Ulashish"
)
