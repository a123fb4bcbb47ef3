package display

import (
	"github.com/njoerd114/prayerrelay/internal/model"
)

// Texts holds the fixed status strings for one language.
type Texts struct {
	Loading     string
	LoadFailed  string
	NoDataToday string
	// StalePrefix marks a label rendered from a cache whose refresh failed.
	StalePrefix string
	// NoInternet follows the prefix when the source was unreachable.
	NoInternet string
	reached     string
}

var texts = map[model.Language]Texts{
	model.LanguageUzbek: {
		Loading:     "Yuklanmoqda...",
		LoadFailed:  "Yuklashda xatolik...",
		NoDataToday: "Bugungi ma'lumot yo'q",
		StalePrefix: "⚠️ ",
		NoInternet:  "Internet yo'q",
		reached:     " vaqti kirdi",
	},
	model.LanguageEnglish: {
		Loading:     "Loading...",
		LoadFailed:  "Failed to load...",
		NoDataToday: "No data for today",
		StalePrefix: "⚠️ ",
		NoInternet:  "No internet",
		reached:     " time has come",
	},
}

// TextsFor returns the strings for lang, defaulting to Uzbek.
func TextsFor(lang model.Language) Texts {
	if t, ok := texts[lang]; ok {
		return t
	}
	return texts[model.LanguageUzbek]
}

// Reached formats the label shown when a prayer time arrives.
func (t Texts) Reached(name string) string {
	return name + t.reached
}

// Stale marks label as rendered from an outdated cache, naming the missing
// connection when offline: "⚠️ Internet yo'q · Asr 17:17".
func (t Texts) Stale(label string, offline bool) string {
	if offline {
		return t.StalePrefix + t.NoInternet + " · " + label
	}
	return t.StalePrefix + label
}

// Countdown formats "<name> -HH:MM".
func (t Texts) Countdown(name, remaining string) string {
	return name + " -" + remaining
}
