package metadata

// Locale selects the status tokens and labels used by SummaryLineLocale.
// The set is closed: the original tracker used Chinese status words
// (完成/失败); this module ships English only, structured so a second
// locale is a table entry, not a rewrite.
type Locale string

// LocaleEN is the only locale this module ships.
const LocaleEN Locale = "en"

type localeStrings struct {
	StatusComplete string
	StatusFailed   string
	LinesLabel     string
	ErrorLabel     string
}

var locales = map[Locale]localeStrings{
	LocaleEN: {
		StatusComplete: "Complete",
		StatusFailed:   "Failed",
		LinesLabel:     "lines",
		ErrorLabel:     "error",
	},
}

func resolveLocale(loc Locale) localeStrings {
	if l, ok := locales[loc]; ok {
		return l
	}
	return locales[LocaleEN]
}
