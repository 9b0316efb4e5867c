package tool

import (
	"strings"
	"unicode"
)

// verbRisk maps a name word to the level it implies. Words not listed are LOW.
var verbRisk = map[string]RiskLevel{
	// destructive or arbitrary execution
	"delete": RiskLevelCritical, "remove": RiskLevelCritical, "drop": RiskLevelCritical,
	"destroy": RiskLevelCritical, "truncate": RiskLevelCritical, "purge": RiskLevelCritical,
	"exec": RiskLevelCritical, "execute": RiskLevelCritical, "shell": RiskLevelCritical,
	"command": RiskLevelCritical, "sudo": RiskLevelCritical, "admin": RiskLevelCritical,

	// state changes and side effects
	"create": RiskLevelHigh, "write": RiskLevelHigh, "update": RiskLevelHigh,
	"modify": RiskLevelHigh, "set": RiskLevelHigh, "put": RiskLevelHigh,
	"send": RiskLevelHigh, "post": RiskLevelHigh, "upload": RiskLevelHigh,
	"deploy": RiskLevelHigh, "install": RiskLevelHigh, "process": RiskLevelHigh,
	"start": RiskLevelHigh, "cancel": RiskLevelHigh,

	// reads that may return caller or third-party data
	"get": RiskLevelMedium, "fetch": RiskLevelMedium, "read": RiskLevelMedium,
	"query": RiskLevelMedium, "search": RiskLevelMedium, "export": RiskLevelMedium,
	"download": RiskLevelMedium,
}

var riskRank = map[RiskLevel]int{
	RiskLevelLow:      0,
	RiskLevelMedium:   1,
	RiskLevelHigh:     2,
	RiskLevelCritical: 3,
}

// Classify derives a risk level from a tool name. The name is split into
// words on separators and camelCase boundaries; the highest level of any
// word wins. "create_order" is HIGH, "server_status" is LOW.
func Classify(name string) RiskLevel {
	level := RiskLevelLow
	for _, w := range nameWords(name) {
		if l, ok := verbRisk[w]; ok && riskRank[l] > riskRank[level] {
			level = l
		}
	}
	return level
}

// nameWords lowercases name and splits it on '_', '-', '.', ' ', '/' and
// lower-to-upper case transitions.
func nameWords(name string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}

	var prev rune
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == '.' || r == ' ' || r == '/':
			flush()
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush()
			cur.WriteRune(unicode.ToLower(r))
		default:
			cur.WriteRune(unicode.ToLower(r))
		}
		prev = r
	}
	flush()
	return words
}
