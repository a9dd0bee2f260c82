package model

import "strings"

// NormalizePhone strips everything but digits from a phone number.
func NormalizePhone(raw string) string {
    var b strings.Builder
    for _, r := range raw {
        if r >= '0' && r <= '9' {
            b.WriteRune(r)
        }
    }
    return b.String()
}

// FormatPhone renders a phone number with hyphens: 010-1234-5678 for 11
// digits and 010-123-4567 for 10.  Other lengths are returned unchanged.
func FormatPhone(raw string) string {
    d := NormalizePhone(raw)
    switch len(d) {
    case 11:
        return d[:3] + "-" + d[3:7] + "-" + d[7:]
    case 10:
        return d[:3] + "-" + d[3:6] + "-" + d[6:]
    }
    return raw
}
