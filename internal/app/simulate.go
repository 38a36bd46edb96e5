package app

import (
	"context"
	"errors"
	"time"

	"dugout-pulse/internal/alerting"
	"dugout-pulse/internal/model"
	"dugout-pulse/internal/window"
)

// SimulateAlert sends a digest built from a canned feed so the webhook can
// be checked without waiting for a real run.
func (a *App) SimulateAlert(ctx context.Context) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	today := model.Day(time.Now().In(a.Config.Location()))
	digest := alerting.NewDigest(today)
	digest.AddFeed(sampleFeed(today))
	return notifier.Notify(ctx, digest.Message())
}

func sampleFeed(today time.Time) *window.Feed {
	hot := model.Line{Batting: model.Batting{PA: 24, AB: 20, H: 9, Doubles: 2, HR: 3, RBI: 8, BB: 4, K: 3}}
	cold := model.Line{Pitching: model.Pitching{Outs: 15, H: 9, ER: 7, BB: 4, K: 3}}

	result := func(name, team string, role model.Role, line model.Line, tier window.Tier) window.Result {
		return window.Result{
			PlayerName:  name,
			Team:        team,
			Level:       string(model.LevelPro),
			IsClient:    true,
			Tags:        window.Tags{RosterPriority: 1},
			Window:      window.Week,
			Grade:       tier.Label(),
			Status:      window.StatusOK,
			Stats:       window.FormatStats(role, line),
			GamesPlayed: 6,
			Role:        role,
			Tier:        tier,
			Line:        line,
		}
	}

	return &window.Feed{
		RunDate:   today,
		Generated: time.Now(),
		Windows: map[window.ID][]window.Result{
			window.Week: {
				result("Sample Slugger", "Simulated Club", model.RoleHitter, hot, window.TierHot),
				result("Sample Starter", "Simulated Club", model.RolePitcher, cold, window.TierCold),
			},
		},
	}
}
