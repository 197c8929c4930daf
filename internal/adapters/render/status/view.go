package status

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bnema/chimenet/internal/application"
	"github.com/bnema/chimenet/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now        time.Time
	StaleAfter time.Duration
}

func renderChimes(records []domain.RemoteChimeRecord, opts RenderOptions, s styles) string {
	users := groupByUser(records)
	lines := []string{
		s.title.Render("Chimes on the mesh"),
		s.header.Render(fmt.Sprintf("users: %d  chimes: %d", len(users), len(records))),
	}

	if len(records) == 0 {
		lines = append(lines, s.empty.Render("No chimes discovered yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, group := range users {
		lines = append(lines, s.section.Render(renderUser(group, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

type userGroup struct {
	user    string
	records []domain.RemoteChimeRecord
}

func groupByUser(records []domain.RemoteChimeRecord) []userGroup {
	index := map[string]int{}
	var groups []userGroup
	for _, record := range records {
		i, ok := index[record.User]
		if !ok {
			i = len(groups)
			index[record.User] = i
			groups = append(groups, userGroup{user: record.User})
		}
		groups[i].records = append(groups[i].records, record)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].user < groups[j].user })
	for _, group := range groups {
		sort.Slice(group.records, func(i, j int) bool { return group.records[i].ChimeID < group.records[j].ChimeID })
	}

	return groups
}

func renderUser(group userGroup, opts RenderOptions, s styles) string {
	parts := []string{s.user.Render(group.user)}
	for _, record := range group.records {
		parts = append(parts, chimeLine(record, opts, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func chimeLine(record domain.RemoteChimeRecord, opts RenderOptions, s styles) string {
	presence := s.online.Render("●")
	if !record.Online {
		presence = s.offline.Render("○")
	}

	name := s.chime.Render(fmt.Sprintf("%s (%s)", record.DisplayName(), record.ChimeID))
	mode := s.key.Render(modeLabel(record.Mode))

	seenStyle := lipgloss.NewStyle().Foreground(freshnessColor(record.LastSeen, opts.Now, opts.StaleAfter))
	seen := seenStyle.Render(fmt.Sprintf("(%s)", formatSeen(record.LastSeen, opts.Now)))

	line := lipgloss.JoinHorizontal(lipgloss.Top, "  ", presence, " ", name, " ", mode, " ", seen)

	if melody := melodyLabel(record.Notes, record.Chords); melody != "" {
		line += " " + s.meta.Render(melody)
	}
	if !opts.Now.IsZero() && record.IsStale(opts.Now, opts.StaleAfter) {
		line += " " + s.warning.Render("[stale]")
	}

	return line
}

func renderNode(snapshot application.NodeSnapshot, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render(fmt.Sprintf("%s/%s", snapshot.User, snapshot.Chime.ID)),
		s.header.Render(fmt.Sprintf("node: %s  chime: %s", snapshot.NodeID, snapshot.Chime.Name)),
	}

	stateLine := s.key.Render("mode:") + " " + s.user.Render(modeLabel(snapshot.State.Mode))
	if snapshot.Override != nil {
		stateLine += " " + s.meta.Render("(manual)")
	} else {
		stateLine += " " + s.meta.Render(fmt.Sprintf("(auto, fallback %s)", modeLabel(snapshot.Fallback)))
	}
	lines = append(lines, s.section.Render(stateLine))

	if custom := snapshot.State.Custom; custom != nil && custom.Description != "" {
		lines = append(lines, s.detail.Render("  "+custom.Description))
	}

	lines = append(lines, s.section.Render(s.key.Render("conditions:")))
	lines = append(lines, conditionLines(snapshot.Conditions, s)...)

	lines = append(lines, s.section.Render(s.key.Render(fmt.Sprintf("custom states: %d", len(snapshot.States)))))
	for _, state := range snapshot.States {
		marker := "  "
		if snapshot.State.Custom != nil && snapshot.State.Custom.Name == state.Name {
			marker = "> "
		}
		lines = append(lines, s.detail.Render(fmt.Sprintf("%s%s (priority %d)", marker, state.Name, state.Priority)))
	}

	lines = append(lines, s.section.Render(s.key.Render(fmt.Sprintf("pending rings: %d", len(snapshot.Pending)))))
	for _, session := range snapshot.Pending {
		lines = append(lines, s.pending.Render("  "+sessionLine(session, opts.Now)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func conditionLines(conditions domain.Conditions, s styles) []string {
	if len(conditions) == 0 {
		return []string{s.empty.Render("  none set")}
	}

	keys := make([]string, 0, len(conditions))
	for key := range conditions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, s.detail.Render(fmt.Sprintf("  %s = %s", key, conditions[key])))
	}

	return lines
}

func sessionLine(session domain.RingSession, now time.Time) string {
	from := session.FromNode
	if session.FromUser != "" {
		from = session.FromUser + "@" + session.FromNode
	}

	line := fmt.Sprintf("%s from %s", session.RequestID, from)
	if session.Deadline != nil && session.AutoResponse != "" {
		line += fmt.Sprintf(", auto %s %s", session.AutoResponse, formatUntil(*session.Deadline, now))
	}

	return line
}

func modeLabel(mode domain.Mode) string {
	if mode.IsZero() {
		return "unknown"
	}

	return mode.Label()
}

func melodyLabel(notes, chords []string) string {
	var parts []string
	if len(notes) > 0 {
		parts = append(parts, "♪ "+strings.Join(notes, " "))
	}
	if len(chords) > 0 {
		parts = append(parts, "♫ "+strings.Join(chords, " "))
	}

	return strings.Join(parts, "  ")
}

func formatSeen(lastSeen, now time.Time) string {
	if lastSeen.IsZero() {
		return "never seen"
	}
	if now.IsZero() {
		return "seen " + lastSeen.Format(time.RFC3339)
	}

	elapsed := now.Sub(lastSeen)
	if elapsed < time.Minute {
		return "seen just now"
	}
	if elapsed < time.Hour {
		minutes := int(math.Floor(elapsed.Minutes()))
		return fmt.Sprintf("seen %d %s ago", minutes, plural(minutes, "minute"))
	}

	hours := int(math.Floor(elapsed.Hours()))
	return fmt.Sprintf("seen %d %s ago (%s)", hours, plural(hours, "hour"), lastSeen.Format("15:04"))
}

func formatUntil(deadline, now time.Time) string {
	if now.IsZero() {
		return "at " + deadline.Format("15:04:05")
	}
	if !deadline.After(now) {
		return "now"
	}

	seconds := int(math.Ceil(deadline.Sub(now).Seconds()))
	return fmt.Sprintf("in %d %s", seconds, plural(seconds, "second"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

func freshnessColor(lastSeen, now time.Time, staleAfter time.Duration) lipgloss.Color {
	if now.IsZero() || lastSeen.IsZero() || staleAfter <= 0 {
		return lipgloss.Color("255")
	}

	// Fresh records are bright, records near the staleness window fade.
	remaining := staleAfter - now.Sub(lastSeen)
	return interpolateColor(remaining.Seconds(), 0, staleAfter.Seconds())
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp from 240 to 255.
	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}
