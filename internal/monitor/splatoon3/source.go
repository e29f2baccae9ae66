// Presencewatch - Game Presence Monitoring and Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/presencewatch

package splatoon3

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/presencewatch/internal/models"
	"github.com/tomtom215/presencewatch/internal/tenant"
	"github.com/tomtom215/presencewatch/internal/upstream"
)

// Schedule feed operation labels.
const (
	OpSchedules = "splatoon3_schedules"
	OpLocale    = "splatoon3_locale"
)

// defaultLocale is the feed's native language; it needs no locale table.
const defaultLocale = "en-US"

// Source provides schedule snapshots for one account.
type Source interface {
	// Handshake performs one-time setup with the schedule service.
	Handshake(ctx context.Context) error
	// Schedules returns the current snapshot.
	Schedules(ctx context.Context) (*Schedules, error)
}

// HTTPSource reads the splatoon3.ink style JSON feed.
type HTTPSource struct {
	client  *upstream.Client
	cache   *tenant.Cache
	account string
	token   string
	locale  string

	mu    sync.RWMutex
	names map[string]string
}

// NewHTTPSource creates a source that fetches through cache on behalf of
// account.
func NewHTTPSource(client *upstream.Client, cache *tenant.Cache, account, token, locale string) *HTTPSource {
	return &HTTPSource{
		client:  client,
		cache:   cache,
		account: account,
		token:   token,
		locale:  locale,
	}
}

// Handshake loads the locale table used to translate stage, rule and weapon
// names. The feed's native locale needs no table.
func (s *HTTPSource) Handshake(ctx context.Context) error {
	if s.locale == "" || strings.EqualFold(s.locale, defaultLocale) {
		return nil
	}

	var table wireLocale
	path := "/data/locale/" + url.PathEscape(s.locale) + ".json"
	if err := s.client.Get(ctx, OpLocale, path, s.token, &table); err != nil {
		return err
	}

	names := make(map[string]string)
	for _, group := range []map[string]wireLocaleName{table.Stages, table.Rules, table.Weapons} {
		for id, n := range group {
			names[id] = n.Name
		}
	}
	for id, f := range table.Festivals {
		names[id] = f.Title
	}

	s.mu.Lock()
	s.names = names
	s.mu.Unlock()
	return nil
}

// Schedules returns the feed snapshot, shared per account through the
// tenant cache.
func (s *HTTPSource) Schedules(ctx context.Context) (*Schedules, error) {
	key := tenant.Key{Account: s.account, Resource: tenant.ResourceSchedules}
	sched, _, err := tenant.Get(ctx, s.cache, key, s.fetch)
	return sched, err
}

func (s *HTTPSource) fetch(ctx context.Context) (*Schedules, error) {
	var w wireSchedules
	if err := s.client.Get(ctx, OpSchedules, "/data/schedules.json", s.token, &w); err != nil {
		return nil, err
	}
	if w.Data == nil {
		return nil, &upstream.Error{Kind: upstream.KindMalformed, Op: OpSchedules, Err: fmt.Errorf("response has no data")}
	}
	return w.Data.toModel(s.translate), nil
}

func (s *HTTPSource) translate(id, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.names[id]; ok && name != "" {
		return name
	}
	return fallback
}

type wireLocaleName struct {
	Name string `json:"name"`
}

type wireLocale struct {
	Stages    map[string]wireLocaleName `json:"stages"`
	Rules     map[string]wireLocaleName `json:"rules"`
	Weapons   map[string]wireLocaleName `json:"weapons"`
	Festivals map[string]struct {
		Title string `json:"title"`
	} `json:"festivals"`
}

type wireImage struct {
	URL string `json:"url"`
}

type wireStage struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Image wireImage `json:"image"`
}

type wireRule struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rule string `json:"rule"`
}

type wireEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireVsSetting struct {
	Stages      []wireStage `json:"vsStages"`
	Rule        wireRule    `json:"vsRule"`
	BankaraMode string      `json:"bankaraMode"`
	Event       *wireEvent  `json:"leagueMatchEvent"`
}

type wireVsNode struct {
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	Regular   *wireVsSetting  `json:"regularMatchSetting"`
	Bankara   []wireVsSetting `json:"bankaraMatchSettings"`
	XMatch    *wireVsSetting  `json:"xMatchSetting"`
	Fest      []wireVsSetting `json:"festMatchSettings"`
}

type wireNodes[T any] struct {
	Nodes []T `json:"nodes"`
}

type wireEventNode struct {
	Setting     *wireVsSetting `json:"leagueMatchSetting"`
	TimePeriods []struct {
		StartTime time.Time `json:"startTime"`
		EndTime   time.Time `json:"endTime"`
	} `json:"timePeriods"`
}

type wireWeapon struct {
	ID    string    `json:"__splatoon3ink_id"`
	Name  string    `json:"name"`
	Image wireImage `json:"image"`
}

type wireCoopNode struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Setting   *struct {
		Stage   wireStage    `json:"coopStage"`
		Weapons []wireWeapon `json:"weapons"`
	} `json:"setting"`
}

type wireFest struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	State     string    `json:"state"`
	Teams     []struct {
		TeamName string `json:"teamName"`
	} `json:"teams"`
}

type wireData struct {
	Regular wireNodes[wireVsNode]    `json:"regularSchedules"`
	Bankara wireNodes[wireVsNode]    `json:"bankaraSchedules"`
	XMatch  wireNodes[wireVsNode]    `json:"xSchedules"`
	Event   wireNodes[wireEventNode] `json:"eventSchedules"`
	Fest    wireNodes[wireVsNode]    `json:"festSchedules"`
	Coop    struct {
		Regular wireNodes[wireCoopNode] `json:"regularSchedules"`
		BigRun  wireNodes[wireCoopNode] `json:"bigRunSchedules"`
	} `json:"coopGroupingSchedule"`
	CurrentFest *wireFest `json:"currentFest"`
}

type wireSchedules struct {
	Data *wireData `json:"data"`
}

type translateFunc func(id, fallback string) string

func (d *wireData) toModel(tr translateFunc) *Schedules {
	s := &Schedules{Versus: make(map[Mode][]models.ScheduleEntry[VsSetting])}

	addVs := func(mode Mode, start, end time.Time, w *wireVsSetting) {
		if w == nil {
			return
		}
		s.Versus[mode] = append(s.Versus[mode], models.ScheduleEntry[VsSetting]{
			Start:   start,
			End:     end,
			Payload: w.toModel(tr),
		})
	}

	for _, n := range d.Regular.Nodes {
		addVs(ModeRegular, n.StartTime, n.EndTime, n.Regular)
	}
	for _, n := range d.Bankara.Nodes {
		for i := range n.Bankara {
			mode := ModeBankaraChallenge
			if strings.EqualFold(n.Bankara[i].BankaraMode, "OPEN") {
				mode = ModeBankaraOpen
			}
			addVs(mode, n.StartTime, n.EndTime, &n.Bankara[i])
		}
	}
	for _, n := range d.XMatch.Nodes {
		addVs(ModeXMatch, n.StartTime, n.EndTime, n.XMatch)
	}
	for _, n := range d.Event.Nodes {
		for _, p := range n.TimePeriods {
			addVs(ModeEvent, p.StartTime, p.EndTime, n.Setting)
		}
	}
	for _, n := range d.Fest.Nodes {
		// Open and Pro battles share stages; the first setting describes both.
		if len(n.Fest) > 0 {
			addVs(ModeFest, n.StartTime, n.EndTime, &n.Fest[0])
		}
	}

	addCoop := func(nodes []wireCoopNode, bigRun bool) {
		for _, n := range nodes {
			if n.Setting == nil {
				continue
			}
			weapons := make([]string, len(n.Setting.Weapons))
			for i, w := range n.Setting.Weapons {
				weapons[i] = tr(w.ID, w.Name)
			}
			s.Coop = append(s.Coop, models.ScheduleEntry[CoopSetting]{
				Start: n.StartTime,
				End:   n.EndTime,
				Payload: CoopSetting{
					Stage:   n.Setting.Stage.toModel(tr),
					Weapons: weapons,
					BigRun:  bigRun,
				},
			})
		}
	}
	addCoop(d.Coop.Regular.Nodes, false)
	addCoop(d.Coop.BigRun.Nodes, true)

	if f := d.CurrentFest; f != nil && f.ID != "" {
		teams := make([]string, len(f.Teams))
		for i, t := range f.Teams {
			teams[i] = t.TeamName
		}
		s.Festivals = append(s.Festivals, models.ScheduleEntry[Festival]{
			Start: f.StartTime,
			End:   f.EndTime,
			Payload: Festival{
				ID:    f.ID,
				Title: tr(f.ID, f.Title),
				State: f.State,
				Teams: teams,
			},
		})
	}

	return s
}

func (w *wireVsSetting) toModel(tr translateFunc) VsSetting {
	v := VsSetting{
		Rule: Rule{
			ID:   w.Rule.ID,
			Key:  w.Rule.Rule,
			Name: tr(w.Rule.ID, w.Rule.Name),
		},
		Stages: make([]Stage, len(w.Stages)),
	}
	for i, st := range w.Stages {
		v.Stages[i] = st.toModel(tr)
	}
	if w.Event != nil {
		v.EventName = w.Event.Name
	}
	return v
}

func (w wireStage) toModel(tr translateFunc) Stage {
	return Stage{
		ID:       w.ID,
		Name:     tr(w.ID, w.Name),
		ImageURL: w.Image.URL,
	}
}
