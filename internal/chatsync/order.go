package chatsync

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"waba-admin/internal/domain"
)

const (
	// PageSize is both the fetch page size and the visible window.
	PageSize = 20

	// EpochTime stands in for contacts without any message.
	EpochTime = "1970-01-01T00:00:00.000Z"

	previewLimit = 30
	noMessage    = "Belum ada pesan"
	isoMillis    = "2006-01-02T15:04:05.000Z07:00"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeTimestamp parses ts and renders it as UTC ISO-8601 with
// millisecond precision. ok is false for empty or unparseable input.
func NormalizeTimestamp(ts string) (string, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return "", false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC().Format(isoMillis), true
		}
	}
	return "", false
}

// SortContacts orders contacts by last message time, newest first, comparing
// the ISO strings. Contacts without a preview sort as EpochTime.
func SortContacts(contacts []string, last map[string]domain.LastMessage) []string {
	out := append([]string(nil), contacts...)
	timeOf := func(c string) string {
		if lm, ok := last[c]; ok && lm.Time != "" {
			return lm.Time
		}
		return EpochTime
	}
	sort.SliceStable(out, func(i, j int) bool {
		return timeOf(out[i]) > timeOf(out[j])
	})
	return out
}

// SortMessages orders messages oldest first by timestamp string.
func SortMessages(msgs []domain.Message) []domain.Message {
	out := append([]domain.Message(nil), msgs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// Window keeps the newest n messages of an already sorted slice.
func Window(msgs []domain.Message, n int) []domain.Message {
	if len(msgs) <= n {
		return msgs
	}
	return append([]domain.Message(nil), msgs[len(msgs)-n:]...)
}

// merge combines two pages, dropping repeated message ids, then sorts.
func merge(older, current []domain.Message) []domain.Message {
	seen := make(map[string]struct{}, len(older)+len(current))
	combined := make([]domain.Message, 0, len(older)+len(current))
	for _, page := range [][]domain.Message{current, older} {
		for _, m := range page {
			if _, ok := seen[m.MessageID]; ok {
				continue
			}
			seen[m.MessageID] = struct{}{}
			combined = append(combined, m)
		}
	}
	return SortMessages(combined)
}

// PreviewText cuts text to 30 characters and marks the cut with "...".
func PreviewText(text string) string {
	if utf8.RuneCountInString(text) <= previewLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewLimit]) + "..."
}

// Preview returns the contact-list line for contact, formatted for display.
func Preview(contact string, last map[string]domain.LastMessage, now time.Time, loc *time.Location) domain.LastMessage {
	lm, ok := last[contact]
	if !ok {
		return domain.LastMessage{Text: noMessage}
	}
	t, err := time.Parse(time.RFC3339Nano, lm.Time)
	if err != nil {
		text := lm.Text
		if text == "" {
			text = noMessage
		}
		return domain.LastMessage{Text: text, Time: "Invalid time"}
	}
	t, now = t.In(loc), now.In(loc)
	var ts string
	switch {
	case sameDay(t, now):
		ts = t.Format("15:04")
	case sameDay(t, now.AddDate(0, 0, -1)):
		ts = "Kemarin"
	default:
		ts = t.Format("02/01/06")
	}
	return domain.LastMessage{Text: lm.Text, Time: ts}
}

// FormatMessageTime renders a message timestamp relative to now.
func FormatMessageTime(ts string, now time.Time, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return "Invalid time"
	}
	t, now = t.In(loc), now.In(loc)
	switch {
	case sameDay(t, now):
		return t.Format("15:04")
	case sameDay(t, now.AddDate(0, 0, -1)):
		return "Kemarin, " + t.Format("15:04")
	case !t.Before(startOfWeek(now)) && !t.After(now):
		return t.Format("Monday, 15:04")
	default:
		return t.Format("02/01/2006, 15:04")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// startOfWeek returns Monday 00:00 of the week containing t.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// FilterContacts keeps contacts containing q, case-insensitively.
func FilterContacts(contacts []string, q string) []string {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return append([]string(nil), contacts...)
	}
	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		if strings.Contains(strings.ToLower(c), q) {
			out = append(out, c)
		}
	}
	return out
}

// FilterMessages keeps messages whose text contains q, case-insensitively.
func FilterMessages(msgs []domain.Message, q string) []domain.Message {
	q = strings.ToLower(q)
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.Message), q) {
			out = append(out, m)
		}
	}
	return out
}
