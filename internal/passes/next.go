/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package passes

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	applog "gostorybuilder/internal/log"
	"gostorybuilder/internal/story"
)

// ApplyNext resolves relative year, date and time values against the previous
// spinning scene:
//
//	year:  same | next[N] | after[N]
//	date:  same | next|after + day|mon|month|week + [N]
//	time:  same | next... | after...
//
// Relative times are not computed; they resolve to the previous time unchanged.
// "afternoon" and "afterschool" are literal time labels, not "after" patterns.
func ApplyNext(tl story.Timeline) story.Timeline {
	l := applog.WithOperation(applog.WithComponent("passes"), "next")
	out := make(story.Timeline, 0, len(tl))
	var cache *story.SceneInfo

	for _, n := range tl {
		info, ok := n.(story.SceneInfo)
		if !ok {
			out = append(out, copyNode(n))
			continue
		}
		info = info.Clone()
		if info.NoSpin() {
			out = append(out, info)
			continue
		}
		if cache != nil {
			info = resolveNext(applog.WithScene(l, info.Tag), info, *cache)
		}
		c := info
		cache = &c
		out = append(out, info)
	}
	return out
}

func resolveNext(l *slog.Logger, info, prev story.SceneInfo) story.SceneInfo {
	switch {
	case isSame(info.Year):
		info.Year = prev.Year
	case isNext(info.Year), isAfter(info.Year):
		if y, err := addYears(prev.Year, info.Year); err != nil {
			l.Warn("cannot resolve year", slog.String("year", info.Year), slog.String("base", prev.Year), slog.Any("err", err))
		} else {
			info.Year = y
		}
	}

	switch {
	case isSame(info.Date):
		info.Date = prev.Date
	case isNext(info.Date), isAfter(info.Date):
		if d, err := addDate(info.Year, prev.Date, info.Date); err != nil {
			l.Warn("cannot resolve date", slog.String("date", info.Date), slog.String("base", prev.Date), slog.Any("err", err))
		} else {
			info.Date = d
		}
	}

	switch {
	case isSame(info.Time):
		info.Time = prev.Time
	case isNext(info.Time), isAfter(info.Time):
		l.Debug("relative time not computed, using previous", slog.String("time", info.Time), slog.String("base", prev.Time))
		info.Time = prev.Time
	}
	return info
}

func isSame(s string) bool { return s == SameMarker || s == "-" }

func isNext(s string) bool { return strings.Contains(s, "next") }

func isAfter(s string) bool {
	if s == "afternoon" || s == "afterschool" {
		return false
	}
	return strings.Contains(s, "after")
}

// count parses the optional trailing number of a relative value; empty means 1.
func count(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, nil
	}
	return strconv.Atoi(s)
}

func addYears(base, rel string) (string, error) {
	y, err := strconv.Atoi(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("base year: %w", err)
	}
	n, err := count(strings.NewReplacer("next", "", "after", "").Replace(rel))
	if err != nil {
		return "", fmt.Errorf("year offset: %w", err)
	}
	return strconv.Itoa(y + n), nil
}

func addDate(year, base, rel string) (string, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return "", fmt.Errorf("year %q: %w", year, err)
	}
	ms, ds, ok := strings.Cut(strings.TrimSpace(base), "/")
	if !ok {
		return "", fmt.Errorf("base date %q is not M/D", base)
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return "", fmt.Errorf("base month: %w", err)
	}
	d, err := strconv.Atoi(ds)
	if err != nil {
		return "", fmt.Errorf("base day: %w", err)
	}

	rest := strings.NewReplacer("next", "", "after", "").Replace(rel)
	var months, days int
	switch {
	case strings.Contains(rest, "mon"):
		n, err := count(strings.NewReplacer("month", "", "mon", "").Replace(rest))
		if err != nil {
			return "", fmt.Errorf("month offset: %w", err)
		}
		months = n
	case strings.Contains(rest, "week"):
		n, err := count(strings.ReplaceAll(rest, "week", ""))
		if err != nil {
			return "", fmt.Errorf("week offset: %w", err)
		}
		days = 7 * n
	case strings.Contains(rest, "day"):
		n, err := count(strings.ReplaceAll(rest, "day", ""))
		if err != nil {
			return "", fmt.Errorf("day offset: %w", err)
		}
		days = n
	default:
		days = 1
	}
	return AfterDay(y, m, d, months, days), nil
}

// AfterDay adds months, then days, to the given date and returns "M/D".
// Month addition clamps to the last day of the target month (1/31 + 1 month = 2/29
// in a leap year) before days are added.
func AfterDay(year, month, day, months, days int) string {
	first := time.Date(year, time.Month(month)+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	t := time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
	return fmt.Sprintf("%d/%d", int(t.Month()), t.Day())
}
