package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/common"
)

// parseDay accepts "today", "yesterday" or a yyyy-MM-dd date and returns
// the epoch day.
func parseDay(s string, now time.Time) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "today":
		return models.EpochDays(now), nil
	case "yesterday":
		return models.EpochDays(now) - 1, nil
	}
	day, err := models.ParseRecordID(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a yyyy-MM-dd date", common.ErrValidation, s)
	}
	return day, nil
}

// parsePayload turns name=value arguments into a record payload. Bounded
// fields are numbers, symptoms is a comma-separated list and everything
// else is kept as text.
func parsePayload(args []string) (map[string]any, error) {
	payload := make(map[string]any, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: expected name=value, got %q", common.ErrValidation, arg)
		}
		value = strings.TrimSpace(value)

		switch {
		case isBounded(name):
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s must be a number, got %q", common.ErrValidation, name, value)
			}
			payload[name] = f
		case name == models.FieldSymptoms:
			list := []any{}
			for _, s := range strings.Split(value, ",") {
				if s = strings.TrimSpace(s); s != "" {
					list = append(list, s)
				}
			}
			payload[name] = list
		default:
			payload[name] = value
		}
	}
	return payload, nil
}

func isBounded(name string) bool {
	_, ok := models.Ranges[name]
	return ok
}
