package escalate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nextlevelbuilder/triagebot/internal/store"
)

const (
	// maxMessageLen is the platform's per-message character limit.
	maxMessageLen = 4096

	// partPrefixReserve leaves room for the "Part i/N" line added when the
	// dossier has to be split.
	partPrefixReserve = 12

	timestampFormat = "2006-01-02 15:04:05"
	dateFormat      = "2006-01-02"
)

// RenderDossier composes the operator dossier and splits it into messages
// that fit the platform limit. Split ladder: single message, then
// user+summary / table, then the table itself split by rows with the header
// repeated; multi-part output gets "Part i/N" prefixes.
func RenderDossier(d *store.UserDossier) []string {
	user := renderUserBlock(d)
	summary := renderSummary(d.Drops)
	header, rows := renderTable(d.Drops)

	head := user
	if summary != "" {
		head += "\n" + summary
	}

	if len(rows) == 0 {
		return []string{head}
	}

	table := codeBlock(append([]string{header}, rows...))
	full := head + "\n" + table
	if utf8.RuneCountInString(full) <= maxMessageLen {
		return []string{full}
	}

	budget := maxMessageLen - partPrefixReserve
	if utf8.RuneCountInString(head) <= budget && utf8.RuneCountInString(table) <= budget {
		return prefixParts([]string{head, table})
	}

	parts := append([]string{head}, chunkTable(header, rows, budget)...)
	return prefixParts(parts)
}

func renderUserBlock(d *store.UserDossier) string {
	handle := "—"
	if d.User.Username != "" {
		handle = "@" + d.User.Username
	}
	name := strings.TrimSpace(d.User.FirstName + " " + d.User.LastName)
	if name == "" {
		name = "—"
	}
	roles := "—"
	if len(d.Roles) > 0 {
		roles = strings.Join(d.Roles, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*User:* %s\n", handle)
	fmt.Fprintf(&b, "*ID:* `%d`\n", d.User.ID)
	fmt.Fprintf(&b, "*Name:* %s\n", name)
	fmt.Fprintf(&b, "*Roles:* %s\n", roles)
	fmt.Fprintf(&b, "*First seen:* %s\n", d.User.CreatedAt.Format(timestampFormat))
	fmt.Fprintf(&b, "*Last seen:* %s", d.User.UpdatedAt.Format(timestampFormat))
	return b.String()
}

// renderSummary lists the non-zero status counts.
func renderSummary(drops []store.Drop) string {
	var paid, lost, redrop, angry int
	for _, d := range drops {
		switch d.Status {
		case "paid":
			paid++
		case "lost":
			lost++
		case "redrop":
			redrop++
		case "angry_redrop":
			angry++
		}
	}
	var lines []string
	if paid > 0 {
		lines = append(lines, fmt.Sprintf("📦 Paid: %d", paid))
	}
	if lost > 0 {
		lines = append(lines, fmt.Sprintf("❌ Lost: %d", lost))
	}
	if redrop > 0 {
		lines = append(lines, fmt.Sprintf("🔁 Redrops: %d", redrop))
	}
	if angry > 0 {
		lines = append(lines, fmt.Sprintf("🤡 Angry redrops: %d", angry))
	}
	return strings.Join(lines, "\n")
}

// renderTable returns the header line and one entry per drop; an entry is
// the table row plus an optional redrop-reason line.
func renderTable(drops []store.Drop) (string, []string) {
	if len(drops) == 0 {
		return "", nil
	}
	header := fmt.Sprintf("%-7s %-2s %-7s %-15s %-11s %s", "ID", "P", "Amt", "Area", "Date", "Status")
	rows := make([]string, 0, len(drops))
	for _, d := range drops {
		rows = append(rows, renderRow(d))
	}
	return header, rows
}

func renderRow(d store.Drop) string {
	area := d.AreaName
	if area == "" {
		area = d.CityName
	}
	row := fmt.Sprintf("%-7d %-2s %-7s %-15s %-11s %s",
		d.ID,
		d.ProductEmoji,
		strconv.FormatFloat(d.Amount, 'f', -1, 64),
		area,
		d.UpdatedAt.Format(dateFormat),
		dropStatus(d),
	)
	if d.Reason != "" {
		row += "\n  ↳ " + d.Reason
	}
	return row
}

func dropStatus(d store.Drop) string {
	var s string
	switch d.Status {
	case "angry_redrop":
		s = "🤡 Redrop"
	case "redrop":
		s = "Redrop"
	case "paid":
		s = "Paid"
	case "lost":
		s = "Lost"
	default:
		s = d.Status
	}
	if d.Lost && d.Status != "lost" {
		s += " (Lost)"
	}
	return s
}

// chunkTable splits the rows greedily so each chunk, fenced with the
// repeated header, stays within the budget. A row too large for a part of
// its own (a runaway reason line) is hard-split on rune boundaries first.
func chunkTable(header string, rows []string, budget int) []string {
	rowBudget := budget - utf8.RuneCountInString(codeBlock([]string{header})) - 1

	var parts []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, codeBlock(append([]string{header}, current...)))
			current = nil
		}
	}
	for _, row := range rows {
		for _, piece := range splitRow(row, rowBudget) {
			candidate := codeBlock(append(append([]string{header}, current...), piece))
			if len(current) > 0 && utf8.RuneCountInString(candidate) > budget {
				flush()
			}
			current = append(current, piece)
		}
	}
	flush()
	return parts
}

// splitRow breaks a row that cannot fit in a part of its own into
// rune-boundary pieces; ordinary rows come back unchanged.
func splitRow(row string, max int) []string {
	if max <= 0 || utf8.RuneCountInString(row) <= max {
		return []string{row}
	}
	runes := []rune(row)
	var pieces []string
	for len(runes) > 0 {
		n := max
		if n > len(runes) {
			n = len(runes)
		}
		pieces = append(pieces, string(runes[:n]))
		runes = runes[n:]
	}
	return pieces
}

func codeBlock(lines []string) string {
	return "```perl\n" + strings.Join(lines, "\n") + "\n```"
}

func prefixParts(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = fmt.Sprintf("Part %d/%d\n%s", i+1, len(parts), p)
	}
	return out
}
