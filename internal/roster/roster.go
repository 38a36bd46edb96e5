// Package roster loads tracked players from published roster sheets.
package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dugout-pulse/internal/model"
)

// ErrEmptyRoster aborts a run: there is nothing to process.
var ErrEmptyRoster = errors.New("roster: no players to process")

// Sheet column headers.
const (
	colName       = "Player Name"
	colTeam       = "Org"
	colLevel      = "Level"
	colPosition   = "Position"
	colDraftClass = "Draft Class"
	colTier       = "Tier"
)

var requiredColumns = []string{colName, colTeam, colLevel}

// Options configure where sheets are read from.
type Options struct {
	// ClientsURL and RecruitsURL are CSV exports; a value without a scheme is
	// read as a local file.
	ClientsURL     string
	RecruitsURL    string
	IncludedLevels []string
	Timeout        time.Duration
	UserAgent      string
}

// Client reads the clients sheet and the optional recruits sheet.
type Client struct {
	opts   Options
	client *http.Client
	levels map[model.Level]bool
	logger zerolog.Logger
}

// New builds a roster client.
func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	levels := make(map[model.Level]bool)
	for _, l := range opts.IncludedLevels {
		levels[model.Level(strings.TrimSpace(l))] = true
	}
	if len(levels) == 0 {
		levels[model.LevelPro] = true
		levels[model.LevelNCAA] = true
	}
	return &Client{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		levels: levels,
		logger: logger.With().Str("component", "roster").Logger(),
	}
}

// AllPlayers returns clients followed by recruits. A failing recruits sheet
// is logged and skipped; a failing clients sheet or an empty result is an error.
func (c *Client) AllPlayers(ctx context.Context) ([]model.Player, error) {
	if c.opts.ClientsURL == "" {
		return nil, fmt.Errorf("%w: roster url not configured", ErrEmptyRoster)
	}

	clients, err := c.load(ctx, c.opts.ClientsURL, true)
	if err != nil {
		return nil, fmt.Errorf("load clients sheet: %w", err)
	}

	players := clients
	if c.opts.RecruitsURL != "" {
		recruits, err := c.load(ctx, c.opts.RecruitsURL, false)
		if err != nil {
			c.logger.Error().Err(err).Msg("recruits sheet failed, continuing with clients only")
		} else {
			players = append(players, recruits...)
		}
	}

	if len(players) == 0 {
		return nil, ErrEmptyRoster
	}
	c.logger.Info().Int("clients", len(clients)).Int("total", len(players)).Msg("roster loaded")
	return players, nil
}

func (c *Client) load(ctx context.Context, src string, isClient bool) ([]model.Player, error) {
	body, err := c.open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return c.parse(body, isClient)
}

func (c *Client) open(ctx context.Context, src string) (io.ReadCloser, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("open roster file: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("create roster request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roster request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("roster status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Client) parse(r io.Reader, isClient bool) ([]model.Player, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("roster csv has no header")
	}
	if err != nil {
		return nil, fmt.Errorf("read roster header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("roster csv missing column %q", col)
		}
	}
	for _, col := range []string{colPosition, colDraftClass, colTier} {
		if _, ok := index[col]; !ok {
			c.logger.Warn().Str("column", col).Msg("roster column missing")
		}
	}

	get := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	players := make([]model.Player, 0)
	skipped := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roster row: %w", err)
		}

		level := model.Level(get(row, colLevel))
		name := get(row, colName)
		if name == "" || !c.levels[level] {
			skipped++
			continue
		}

		position := get(row, colPosition)
		players = append(players, model.Player{
			Name:           name,
			Team:           get(row, colTeam),
			Level:          level,
			Role:           model.ParseRole(position),
			Position:       position,
			RosterPriority: parsePriority(get(row, colTier)),
			IsClient:       isClient,
			DraftClass:     get(row, colDraftClass),
		})
	}

	c.logger.Debug().Int("kept", len(players)).Int("skipped", skipped).Bool("clients", isClient).Msg("roster sheet parsed")
	return players, nil
}

func parsePriority(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return model.DefaultRosterPriority
	}
	return n
}
