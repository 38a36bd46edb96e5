package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dugout-pulse/internal/model"
)

const (
	mlbSearchPath   = "/api/v1/people/search"
	mlbDateLayout   = "01/02/2006"
	defaultSportIDs = "1,11,12,13,14"
)

// MLBOptions parameterise the MLB Stats API client.
type MLBOptions struct {
	BaseURL   string
	SportIDs  string
	Timeout   time.Duration
	UserAgent string
	RPS       float64
	Burst     int
}

// MLB reads player lookups and game logs from the MLB Stats API.
type MLB struct {
	opts    MLBOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	guard   *Guard
}

// NewMLB constructs an MLB Stats API client.
func NewMLB(opts MLBOptions, logger zerolog.Logger) *MLB {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if opts.SportIDs == "" {
		opts.SportIDs = defaultSportIDs
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://statsapi.mlb.com"
	}

	return &MLB{
		opts:    opts,
		logger:  logger.With().Str("component", "mlb_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		guard: NewGuard(GuardOptions{
			Name:    "mlb-statsapi",
			Timeout: timeout,
			RPS:     opts.RPS,
			Burst:   opts.Burst,
		}),
	}
}

// Resolve looks a player up by full name and returns the MLB person id.
func (m *MLB) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrPlayerNotFound
	}

	query := url.Values{}
	query.Set("names", name)
	query.Set("sportIds", m.opts.SportIDs)

	var res searchResponse
	err := m.guard.Do(ctx, func(ctx context.Context) error {
		return m.getJSON(ctx, mlbSearchPath+"?"+query.Encode(), &res)
	})
	if err != nil {
		return "", err
	}

	id, ok := pickPerson(res.People, name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
	}
	return strconv.Itoa(id), nil
}

// GameLog returns one record per game in [from, to] for the requested group.
// The log endpoint is per season, so a span crossing New Year is fetched once
// per season it touches.
func (m *MLB) GameLog(ctx context.Context, id string, group StatGroup, from, to time.Time) ([]GameRecord, error) {
	records := make([]GameRecord, 0)
	for season := from.Year(); season <= to.Year(); season++ {
		start, end := from, to
		if first := time.Date(season, time.January, 1, 0, 0, 0, 0, from.Location()); start.Before(first) {
			start = first
		}
		if last := time.Date(season, time.December, 31, 0, 0, 0, 0, to.Location()); end.After(last) {
			end = last
		}
		part, err := m.seasonLog(ctx, id, group, season, start, end)
		if err != nil {
			return nil, err
		}
		records = append(records, part...)
	}
	return records, nil
}

func (m *MLB) seasonLog(ctx context.Context, id string, group StatGroup, season int, from, to time.Time) ([]GameRecord, error) {
	query := url.Values{}
	query.Set("stats", "gameLog")
	query.Set("group", string(group))
	query.Set("season", strconv.Itoa(season))
	query.Set("startDate", from.Format(mlbDateLayout))
	query.Set("endDate", to.Format(mlbDateLayout))

	path := fmt.Sprintf("/api/v1/people/%s/stats?%s", url.PathEscape(id), query.Encode())

	var res statsResponse
	err := m.guard.Do(ctx, func(ctx context.Context) error {
		return m.getJSON(ctx, path, &res)
	})
	if err != nil {
		return nil, err
	}

	var records []GameRecord
	for _, block := range res.Stats {
		if block.Type.DisplayName != "gameLog" {
			continue
		}
		for _, split := range block.Splits {
			day, err := model.ParseDay(split.Date)
			if err != nil {
				m.logger.Warn().Err(err).Str("person_id", id).Msg("skipping game with unparsable date")
				continue
			}
			records = append(records, split.Stat.record(day, group))
		}
	}
	return records, nil
}

func (m *MLB) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create mlb request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "dugout-pulse/1.0")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: mlb request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read mlb response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: mlb api status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode mlb response: %v", ErrUnavailable, err)
	}
	return nil
}

// pickPerson prefers an exact full-name match, then an active player, then the first hit.
func pickPerson(people []person, name string) (int, bool) {
	if len(people) == 0 {
		return 0, false
	}
	for _, p := range people {
		if strings.EqualFold(p.FullName, name) && p.Active {
			return p.ID, true
		}
	}
	for _, p := range people {
		if strings.EqualFold(p.FullName, name) {
			return p.ID, true
		}
	}
	return people[0].ID, true
}

type person struct {
	ID       int    `json:"id"`
	FullName string `json:"fullName"`
	Active   bool   `json:"active"`
}

type searchResponse struct {
	People []person `json:"people"`
}

type statsResponse struct {
	Stats []struct {
		Type struct {
			DisplayName string `json:"displayName"`
		} `json:"type"`
		Splits []struct {
			Date string   `json:"date"`
			Stat gameStat `json:"stat"`
		} `json:"splits"`
	} `json:"stats"`
}

type gameStat struct {
	GamesPlayed      int    `json:"gamesPlayed"`
	PlateAppearances int    `json:"plateAppearances"`
	AtBats           int    `json:"atBats"`
	Hits             int    `json:"hits"`
	Doubles          int    `json:"doubles"`
	Triples          int    `json:"triples"`
	HomeRuns         int    `json:"homeRuns"`
	RBI              int    `json:"rbi"`
	Runs             int    `json:"runs"`
	BaseOnBalls      int    `json:"baseOnBalls"`
	StrikeOuts       int    `json:"strikeOuts"`
	StolenBases      int    `json:"stolenBases"`
	HitByPitch       int    `json:"hitByPitch"`
	SacFlies         int    `json:"sacFlies"`
	InningsPitched   string `json:"inningsPitched"`
	EarnedRuns       int    `json:"earnedRuns"`
	Wins             int    `json:"wins"`
	Losses           int    `json:"losses"`
	Saves            int    `json:"saves"`
}

func (s gameStat) record(day time.Time, group StatGroup) GameRecord {
	games := s.GamesPlayed
	if games == 0 {
		games = 1
	}
	rec := GameRecord{Date: day}
	if group == GroupPitching {
		rec.InningsPitched = s.InningsPitched
		rec.Pitching = model.Pitching{
			Games: games,
			H:     s.Hits,
			R:     s.Runs,
			ER:    s.EarnedRuns,
			BB:    s.BaseOnBalls,
			K:     s.StrikeOuts,
			HR:    s.HomeRuns,
			W:     s.Wins,
			L:     s.Losses,
			SV:    s.Saves,
		}
		return rec
	}
	rec.Batting = model.Batting{
		Games:   games,
		PA:      s.PlateAppearances,
		AB:      s.AtBats,
		H:       s.Hits,
		Doubles: s.Doubles,
		Triples: s.Triples,
		HR:      s.HomeRuns,
		RBI:     s.RBI,
		R:       s.Runs,
		BB:      s.BaseOnBalls,
		K:       s.StrikeOuts,
		SB:      s.StolenBases,
		HBP:     s.HitByPitch,
		SF:      s.SacFlies,
	}
	return rec
}

var _ GameLogSource = (*MLB)(nil)
