package publish

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/source"
)

// SourceReport is one source's contribution to a monthly summary: the month's
// metrics plus the MoM/YoY deltas for its compared metrics.
type SourceReport struct {
	Source  source.Type
	Metrics map[string]float64
	Deltas  map[string]compare.Delta
}

// RenderMonthlySummary produces the Hugo markdown post for one month. Sources
// without an analysis row for the month are simply absent from the post.
func RenderMonthlySummary(yearMonth string, now time.Time, reports []SourceReport) ([]byte, error) {
	year, month, err := compare.ParseYearMonth(yearMonth)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(frontMatter(year, month, now, reports))
	for _, r := range reports {
		render, ok := sectionRenderers[r.Source]
		if !ok {
			render = genericSection
		}
		b.WriteString(render(r))
	}
	return []byte(b.String()), nil
}

func frontMatter(year, month int, now time.Time, reports []SourceReport) string {
	tags := []string{`"monthly"`, `"digest"`, `"automated"`}
	for _, r := range reports {
		tags = append(tags, fmt.Sprintf("%q", string(r.Source)))
	}

	return fmt.Sprintf(`---
title: "Monthly activity summary - %02d/%04d"
date: %s
draft: true
tags: [%s]
categories: ["Summary"]
---
`, month, year, now.Format(time.RFC3339), strings.Join(tags, ", "))
}

var sectionRenderers = map[source.Type]func(SourceReport) string{
	source.TypeReadwise:   readwiseSection,
	source.TypeFoursquare: foursquareSection,
	source.TypeGitHub:     githubSection,
	source.TypeHardcover:  hardcoverSection,
	source.TypeLetterboxd: letterboxdSection,
	source.TypeOvercast:   overcastSection,
	source.TypeStrong:     strongSection,
	source.TypeFeeds:      feedsSection,
}

func readwiseSection(r SourceReport) string {
	words := r.Metrics["words"]
	mins := r.Metrics["reading_time_mins"]

	speed := compare.NotApplicable
	if mins > 0 {
		speed = fmt.Sprintf("%s words/min", formatCount(words/mins))
	}

	var b strings.Builder
	b.WriteString("\n## Readwise\n\n")
	b.WriteString(statLine("Articles Archived", formatCount(r.Metrics["articles"]), r, "articles"))
	b.WriteString(statLine("Total Words Read", formatCount(words), r, "words"))
	b.WriteString(statLine("Time Spent Reading", formatMinutes(mins), r, "reading_time_mins"))
	b.WriteString(statLine("Average Reading Speed", speed, r, "words_per_minute"))
	return b.String()
}

func foursquareSection(r SourceReport) string {
	var b strings.Builder
	b.WriteString("\n## Foursquare\n\n")
	b.WriteString(statLine("Checkins", formatCount(r.Metrics["checkins"]), r, "checkins"))
	b.WriteString(statLine("Unique Places", formatCount(r.Metrics["unique_places"]), r, "unique_places"))
	return b.String()
}

func githubSection(r SourceReport) string {
	var b strings.Builder
	b.WriteString("\n## GitHub\n\n")
	b.WriteString(statLine("Commits", formatCount(r.Metrics["commits"]), r, "commits"))
	b.WriteString(statLine("Repositories Touched", formatCount(r.Metrics["repos_touched"]), r, "repos_touched"))
	return b.String()
}

func hardcoverSection(r SourceReport) string {
	var b strings.Builder
	b.WriteString("\n## Hardcover\n\n")
	b.WriteString(statLine("Books Finished", formatCount(r.Metrics["books_finished"]), r, "books_finished"))
	if rating, ok := r.Metrics["avg_rating"]; ok {
		b.WriteString(statLine("Average Rating", fmt.Sprintf("%.2f ⭐", rating), r, "avg_rating"))
	}
	return b.String()
}

func letterboxdSection(r SourceReport) string {
	var b strings.Builder
	b.WriteString("\n## Letterboxd\n\n")
	b.WriteString(statLine("Movies Watched", formatCount(r.Metrics["movies_watched"]), r, "movies_watched"))
	if avg, ok := r.Metrics["avg_rating"]; ok {
		b.WriteString(statLine("Average Rating", fmt.Sprintf("%.2f ⭐", avg), r, "avg_rating"))
		b.WriteString(statLine("Lowest Rating", fmt.Sprintf("%.2f ⭐", r.Metrics["min_rating"]), r, "min_rating"))
		b.WriteString(statLine("Highest Rating", fmt.Sprintf("%.2f ⭐", r.Metrics["max_rating"]), r, "max_rating"))
	}
	if years, ok := r.Metrics["avg_years_since_release"]; ok {
		b.WriteString(statLine("Average Years Since Release", fmt.Sprintf("%.2f", years), r, "avg_years_since_release"))
	}
	return b.String()
}

func overcastSection(r SourceReport) string {
	var b strings.Builder
	b.WriteString("\n## Podcast (Overcast)\n\n")
	b.WriteString(statLine("New Feeds Subscribed", formatCount(r.Metrics["feeds_added"]), r, "feeds_added"))
	b.WriteString(statLine("Feeds Removed", formatCount(r.Metrics["feeds_removed"]), r, "feeds_removed"))
	b.WriteString(statLine("Episodes Played", formatCount(r.Metrics["episodes_played"]), r, "episodes_played"))
	return b.String()
}

func strongSection(r SourceReport) string {
	var b strings.Builder
	b.WriteString("\n## Workouts (Strong)\n\n")
	b.WriteString(statLine("Workouts", formatCount(r.Metrics["workouts"]), r, "workouts"))
	b.WriteString(statLine("Total Time", formatMinutes(r.Metrics["total_minutes"]), r, "total_minutes"))
	b.WriteString(statLine("Unique Exercises", formatCount(r.Metrics["unique_exercises"]), r, "unique_exercises"))
	b.WriteString(statLine("Total Sets", formatCount(r.Metrics["total_sets"]), r, "total_sets"))
	return b.String()
}

func feedsSection(r SourceReport) string {
	var b strings.Builder
	b.WriteString("\n## Blog Feeds\n\n")
	b.WriteString(statLine("Posts Published", formatCount(r.Metrics["posts"]), r, "posts"))
	b.WriteString(statLine("Active Feeds", formatCount(r.Metrics["feeds_active"]), r, "feeds_active"))
	return b.String()
}

// genericSection covers sources without a dedicated layout: every metric,
// alphabetically, with its delta suffix when compared.
func genericSection(r SourceReport) string {
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "\n## %s\n\n", titleize(string(r.Source)))
	for _, name := range names {
		b.WriteString(statLine(titleize(name), fmt.Sprintf("%g", r.Metrics[name]), r, name))
	}
	return b.String()
}

// statLine renders one "- **Label**: value" bullet, appending the metric's
// comparison suffix. A metric without a delta gets an empty suffix.
func statLine(label, value string, r SourceReport, metric string) string {
	return fmt.Sprintf("- **%s**: %s%s\n", label, value, compare.FormatSuffix(r.Deltas[metric]))
}

// formatCount rounds to an integer and inserts thousands separators.
func formatCount(v float64) string {
	n := int64(v + 0.5)
	if v < 0 {
		n = int64(v - 0.5)
	}

	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

// formatMinutes renders a minute count as "45 minutes" or "3h 20m".
func formatMinutes(mins float64) string {
	total := int(mins + 0.5)
	if total < 60 {
		return fmt.Sprintf("%d minutes", total)
	}
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}

func titleize(metric string) string {
	words := strings.Split(metric, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
