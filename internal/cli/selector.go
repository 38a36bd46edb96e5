package cli

import (
	"fmt"

	"dugout-pulse/internal/app"
	"dugout-pulse/internal/model"
	"dugout-pulse/internal/window"
)

// parseSelector turns --window/--date flag values into a feed selector.
func parseSelector(windowFlag, dateFlag string) (app.FeedSelector, error) {
	sel := app.FeedSelector{}
	for _, id := range window.All {
		if string(id) == windowFlag {
			sel.Window = id
		}
	}
	if sel.Window == "" {
		return sel, fmt.Errorf("invalid --window %q; use 7d, 30d or season", windowFlag)
	}

	if dateFlag != "" {
		day, err := model.ParseDay(dateFlag)
		if err != nil {
			return sel, fmt.Errorf("invalid --date value: %w", err)
		}
		sel.Date = &day
	}
	return sel, nil
}
