package model

// SettingKey names one user preference held by the settings store.
type SettingKey string

const (
	SettingRegion        SettingKey = "region"
	SettingCountdown     SettingKey = "countdown"
	SettingNotifications SettingKey = "notifications"
	SettingLeadMinutes   SettingKey = "lead_minutes"
)

// SettingKeys lists every key the settings store accepts.
var SettingKeys = []SettingKey{SettingRegion, SettingCountdown, SettingNotifications, SettingLeadMinutes}

// DefaultRegion is used when neither config nor settings name a region.
const DefaultRegion = "Toshkent"

// Regions are the regions served by the prayer time source.
var Regions = []string{
	"Toshkent", "Andijon", "Buxoro", "Farg'ona", "Jizzax", "Xiva",
	"Namangan", "Navoiy", "Qashqadaryo", "Qoraqalpog'iston", "Samarqand",
	"Sirdaryo", "Surxandaryo",
}

// KnownRegion reports whether r is one of [Regions].
func KnownRegion(r string) bool {
	for _, known := range Regions {
		if known == r {
			return true
		}
	}
	return false
}

// Settings is a snapshot of the user preferences the engine reacts to.
type Settings struct {
	Region        string
	Countdown     bool
	Notifications bool
	// LeadMinutes moves every reminder earlier by this many minutes.
	LeadMinutes int
}

// SettingsChange is pushed by the settings store whenever a value actually
// changes. Old and New are the stored string forms.
type SettingsChange struct {
	Key SettingKey
	Old string
	New string
}
