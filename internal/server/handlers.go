package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/njoerd114/prayerrelay/internal/model"
	"github.com/njoerd114/prayerrelay/internal/settings"
)

type dayResponse struct {
	Date    string `json:"date"`
	Fajr    string `json:"fajr"`
	Sunrise string `json:"sunrise"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Maghrib string `json:"maghrib"`
	Isha    string `json:"isha"`
}

type monthResponse struct {
	Region    string        `json:"region"`
	Month     string        `json:"month"`
	FetchedAt *time.Time    `json:"fetched_at,omitempty"`
	Days      []dayResponse `json:"days"`
}

type acceptedResponse struct {
	Accepted string `json:"accepted"`
}

// GET /healthz
func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /status
func (s *Server) status(c *gin.Context) {
	st, err := s.engine.Status(c.Request.Context())
	if err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GET /month
func (s *Server) month(c *gin.Context) {
	snap, err := s.engine.Month(c.Request.Context())
	if err != nil {
		abort(c, http.StatusServiceUnavailable, err)
		return
	}

	resp := monthResponse{Region: snap.Region, Days: make([]dayResponse, 0, len(snap.Days))}
	if !snap.YearMonth.IsZero() {
		resp.Month = snap.YearMonth.String()
	}
	if !snap.FetchedAt.IsZero() {
		fetched := snap.FetchedAt
		resp.FetchedAt = &fetched
	}
	for _, d := range snap.Days {
		resp.Days = append(resp.Days, dayResponse{
			Date:    d.Date.String(),
			Fajr:    d.Fajr.HHMM(),
			Sunrise: d.Sunrise.HHMM(),
			Dhuhr:   d.Dhuhr.HHMM(),
			Asr:     d.Asr.HHMM(),
			Maghrib: d.Maghrib.HHMM(),
			Isha:    d.Isha.HHMM(),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// POST /refresh
func (s *Server) refresh(c *gin.Context) {
	s.engine.Refresh()
	c.JSON(http.StatusAccepted, acceptedResponse{Accepted: "refresh"})
}

// POST /signals/wake
func (s *Server) wake(c *gin.Context) {
	s.engine.Wake()
	c.JSON(http.StatusAccepted, acceptedResponse{Accepted: "wake"})
}

// POST /signals/unlock
func (s *Server) unlock(c *gin.Context) {
	s.engine.Unlock()
	c.JSON(http.StatusAccepted, acceptedResponse{Accepted: "unlock"})
}

// GET /settings
func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.settings.Values())
}

// PUT /settings
//
// The body is a JSON object of setting keys to string values. Keys are applied
// in canonical order; the first invalid one aborts the rest.
func (s *Server) putSettings(c *gin.Context) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if len(body) == 0 {
		abort(c, http.StatusBadRequest, errors.New("no settings given"))
		return
	}
	for k := range body {
		if !knownKey(model.SettingKey(k)) {
			abort(c, http.StatusBadRequest, errors.New("unknown setting "+k))
			return
		}
	}

	for _, key := range model.SettingKeys {
		value, ok := body[string(key)]
		if !ok {
			continue
		}
		if err := s.settings.Set(c.Request.Context(), key, value); err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, settings.ErrInvalid) {
				code = http.StatusBadRequest
			}
			abort(c, code, err)
			return
		}
	}
	c.JSON(http.StatusOK, s.settings.Values())
}

func knownKey(k model.SettingKey) bool {
	for _, known := range model.SettingKeys {
		if k == known {
			return true
		}
	}
	return false
}
