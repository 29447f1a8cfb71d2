package field

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Canonical boolean words.
const (
	textTrue  = "True"
	textFalse = "False"
)

func formatBool(b bool) string {
	if b {
		return textTrue
	}
	return textFalse
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean")
	}
}

func formatCard(c uint32) string { return strconv.FormatUint(uint64(c), 10) }

func formatInt(i int32) string { return strconv.FormatInt(int64(i), 10) }

// formatFloat uses fixed-point notation with the fewest digits that parse
// back to the identical float64.
func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func formatTime(ticks uint64) string { return fmt.Sprintf("0x%X", ticks) }

// parseCard accepts decimal or 0x-prefixed hex.
func parseCard(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	base := 10
	if hex, ok := cutHexPrefix(s); ok {
		s, base = hex, 16
	}
	u, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, numError(err)
	}
	return uint32(u), nil
}

// parseInt accepts an optionally signed decimal or 0x-prefixed hex.
func parseInt(s string) (int32, error) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg, s = true, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	base := 10
	if hex, ok := cutHexPrefix(s); ok {
		s, base = hex, 16
	}
	if s == "" || s[0] == '-' || s[0] == '+' {
		return 0, fmt.Errorf("not a number")
	}
	u, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, numError(err)
	}
	if neg {
		if u > uint64(math.MaxInt32)+1 {
			return 0, fmt.Errorf("out of range")
		}
		return int32(-int64(u)), nil
	}
	if u > math.MaxInt32 {
		return 0, fmt.Errorf("out of range")
	}
	return int32(u), nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, numError(err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

// parseTime accepts 0x-prefixed hex ticks, decimal ticks, or an RFC 3339
// timestamp.
func parseTime(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if hex, ok := cutHexPrefix(s); ok {
		u, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return 0, numError(err)
		}
		return u, nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("not a tick count or RFC 3339 time")
	}
	return TimeToTicks(t), nil
}

func cutHexPrefix(s string) (string, bool) {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:], true
	}
	return s, false
}

func numError(err error) error {
	if ne, ok := err.(*strconv.NumError); ok {
		if ne.Err == strconv.ErrRange {
			return fmt.Errorf("out of range")
		}
		return fmt.Errorf("not a number")
	}
	return err
}

// formatList renders a string list as double-quoted elements joined by ", ".
// An empty list renders as the empty string.
func formatList(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('"')
		for j := 0; j < len(item); j++ {
			c := item[j]
			if c == '"' || c == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		}
		b.WriteByte('"')
	}
	return b.String()
}

// splitItems splits comma separated text into trimmed items. Items may be
// double-quoted, in which case commas inside the quotes are literal and \"
// and \\ are escapes. Empty text yields no items.
func splitItems(s string) ([]string, error) {
	items := []string{}
	s = strings.TrimSpace(s)
	if s == "" {
		return items, nil
	}

	i := 0
	for {
		for i < len(s) && s[i] == ' ' {
			i++
		}

		var item string
		if i < len(s) && s[i] == '"' {
			var b strings.Builder
			i++
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quote")
			}
			for i < len(s) && s[i] == ' ' {
				i++
			}
			if i < len(s) && s[i] != ',' {
				return nil, fmt.Errorf("unexpected %q after quoted item", s[i])
			}
			item = b.String()
		} else {
			end := strings.IndexByte(s[i:], ',')
			if end < 0 {
				end = len(s) - i
			}
			item = strings.TrimSpace(s[i : i+end])
			i += end
		}
		items = append(items, item)

		if i >= len(s) {
			return items, nil
		}
		i++ // skip comma
	}
}
