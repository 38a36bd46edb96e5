package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dugout-pulse/internal/model"
	"dugout-pulse/internal/statcalc"
)

// SidearmOptions configure the Sidearm Sports cumulative stats reader.
type SidearmOptions struct {
	// URLs maps a team name (as written on the roster) to its season stats JSON feed.
	URLs      map[string]string
	Timeout   time.Duration
	UserAgent string
	RPS       float64
	Burst     int
}

// Sidearm reads season-to-date totals from schools hosted on the Sidearm platform.
type Sidearm struct {
	opts   SidearmOptions
	logger zerolog.Logger
	client *http.Client
	guard  *Guard
}

// NewSidearm constructs a Sidearm reader.
func NewSidearm(opts SidearmOptions, logger zerolog.Logger) *Sidearm {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Sidearm{
		opts:   opts,
		logger: logger.With().Str("component", "sidearm_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
		guard: NewGuard(GuardOptions{
			Name:    "sidearm",
			Timeout: timeout,
			RPS:     opts.RPS,
			Burst:   opts.Burst,
		}),
	}
}

// Name identifies the source in logs.
func (s *Sidearm) Name() string { return "sidearm" }

// FetchCumulative returns the player's season totals from the team feed.
func (s *Sidearm) FetchCumulative(ctx context.Context, player model.Player) (model.Line, error) {
	feedURL := s.lookupURL(player.Team)
	if feedURL == "" {
		return model.Line{}, fmt.Errorf("%w: no sidearm feed for %q", ErrUnavailable, player.Team)
	}

	var feed sidearmFeed
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		return s.getJSON(ctx, feedURL, &feed)
	})
	if err != nil {
		return model.Line{}, err
	}

	line, found := feed.find(player.Name, s.logger)
	if !found {
		return model.Line{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, player.Name)
	}
	return line, nil
}

func (s *Sidearm) lookupURL(team string) string {
	if u, ok := s.opts.URLs[team]; ok {
		return u
	}
	// viper lower-cases map keys
	return s.opts.URLs[strings.ToLower(team)]
}

func (s *Sidearm) getJSON(ctx context.Context, feedURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return fmt.Errorf("create sidearm request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sidearm request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read sidearm response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: sidearm status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode sidearm feed: %v", ErrUnavailable, err)
	}
	return nil
}

type sidearmFeed struct {
	Individual struct {
		Hitting  []sidearmHitter  `json:"hitting"`
		Pitching []sidearmPitcher `json:"pitching"`
	} `json:"individual"`
}

type sidearmHitter struct {
	Name    string `json:"name"`
	GP      int    `json:"gp"`
	PA      int    `json:"pa"`
	AB      int    `json:"ab"`
	R       int    `json:"r"`
	H       int    `json:"h"`
	Doubles int    `json:"2b"`
	Triples int    `json:"3b"`
	HR      int    `json:"hr"`
	RBI     int    `json:"rbi"`
	BB      int    `json:"bb"`
	K       int    `json:"k"`
	SB      int    `json:"sb"`
	HBP     int    `json:"hbp"`
	SF      int    `json:"sf"`
}

type sidearmPitcher struct {
	Name string `json:"name"`
	App  int    `json:"app"`
	IP   string `json:"ip"`
	H    int    `json:"h"`
	R    int    `json:"r"`
	ER   int    `json:"er"`
	BB   int    `json:"bb"`
	K    int    `json:"k"`
	HR   int    `json:"hr"`
	W    int    `json:"w"`
	L    int    `json:"l"`
	SV   int    `json:"sv"`
}

func (f sidearmFeed) find(name string, logger zerolog.Logger) (model.Line, bool) {
	want := normalizeName(name)
	var line model.Line
	found := false

	for _, h := range f.Individual.Hitting {
		if normalizeName(h.Name) != want {
			continue
		}
		line.Batting = model.Batting{
			Games: h.GP, PA: h.PA, AB: h.AB, H: h.H, Doubles: h.Doubles, Triples: h.Triples,
			HR: h.HR, RBI: h.RBI, R: h.R, BB: h.BB, K: h.K, SB: h.SB, HBP: h.HBP, SF: h.SF,
		}.WithDerivedPA()
		found = true
		break
	}

	for _, p := range f.Individual.Pitching {
		if normalizeName(p.Name) != want {
			continue
		}
		outs, err := statcalc.ParseOuts(p.IP)
		if err != nil {
			logger.Warn().Err(err).Str("player", name).Str("field", "ip").Msg("malformed innings in sidearm feed")
		}
		line.Pitching = model.Pitching{
			Games: p.App, Outs: outs, H: p.H, R: p.R, ER: p.ER, BB: p.BB,
			K: p.K, HR: p.HR, W: p.W, L: p.L, SV: p.SV,
		}
		found = true
		break
	}

	return line, found
}

var _ CumulativeSource = (*Sidearm)(nil)
