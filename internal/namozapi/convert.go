package namozapi

import (
	"fmt"
	"sort"

	"github.com/njoerd114/prayerrelay/internal/model"
)

// monthlyResponse is the top-level JSON object returned by
// /api/GetMonthlyPrayTimes.
type monthlyResponse struct {
	IsSuccess  bool       `json:"isSuccess"`
	StatusCode int        `json:"statusCode"`
	Response   []apiDaily `json:"response"`
}

// apiDaily is one day of the service's payload. Times are "HH:mm:ss" local
// wall-clock strings.
type apiDaily struct {
	Region string `json:"region"`
	Date   string `json:"date"` // "2025-05-01"
	Bomdod string `json:"bomdod"`
	Quyosh string `json:"quyosh"`
	Peshin string `json:"peshin"`
	Asr    string `json:"asr"`
	Shom   string `json:"shom"`
	Xufton string `json:"xufton"`
}

// convertDays parses every record and returns them sorted by date.
func convertDays(raw []apiDaily) ([]model.DailyPrayerTime, error) {
	days := make([]model.DailyPrayerTime, 0, len(raw))
	for i := range raw {
		d, err := apiDailyToModel(&raw[i])
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})
	return days, nil
}

// apiDailyToModel converts one service record.
func apiDailyToModel(a *apiDaily) (model.DailyPrayerTime, error) {
	date, err := model.ParseDate(a.Date)
	if err != nil {
		return model.DailyPrayerTime{}, err
	}

	day := model.DailyPrayerTime{Region: a.Region, Date: date}
	fields := []struct {
		name string
		raw  string
		dst  *model.ClockTime
	}{
		{"bomdod", a.Bomdod, &day.Fajr},
		{"quyosh", a.Quyosh, &day.Sunrise},
		{"peshin", a.Peshin, &day.Dhuhr},
		{"asr", a.Asr, &day.Asr},
		{"shom", a.Shom, &day.Maghrib},
		{"xufton", a.Xufton, &day.Isha},
	}

	for _, f := range fields {
		c, err := model.ParseClock(f.raw)
		if err != nil {
			return model.DailyPrayerTime{}, fmt.Errorf("%s on %s: %w", f.name, a.Date, err)
		}
		*f.dst = c
	}
	return day, nil
}
