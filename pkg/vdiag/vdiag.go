// Package vdiag provides the short, user-visible diagnostic strings that
// handlers hand to the status bar (spec.md section 7: "the status bar
// receives a short diagnostic [...] chosen by the handler, not by the
// engine"), plus a small debug overlay rendering dispatch history.
//
// The message catalog is locale-aware, grounded on lazydocker's pkg/i18n:
// a per-locale set of strings merged over an English base via mergo so that
// a partial locale catalog never leaves a blank status-bar message.
package vdiag

import (
	"github.com/cloudfoundry/jibber_jabber"
	"github.com/imdario/mergo"
	"github.com/jesseduffield/asciigraph"
)

// Messages is the catalog of short diagnostics a handler may hand to the
// status bar.
type Messages struct {
	MarkNotSet       string
	InvalidMarkName  string
	NoSuchMapping    string
	RegisterEmpty    string
	UnknownCommand   string
	CountTooLarge    string
	RecursiveMapping string
}

func english() Messages {
	return Messages{
		MarkNotSet:       "Mark is not set",
		InvalidMarkName:  "Invalid mark name",
		NoSuchMapping:    "No such mapping",
		RegisterEmpty:    "Register is empty",
		UnknownCommand:   "Unknown command",
		CountTooLarge:    "Count is too large",
		RecursiveMapping: "Mapping is too deeply nested",
	}
}

// catalog holds the non-English locales this build ships with; entries are
// partial on purpose and get filled in from english() by New.
var catalog = map[string]Messages{
	"fr": {
		MarkNotSet:      "La marque n'est pas définie",
		InvalidMarkName: "Nom de marque invalide",
	},
	"de": {
		MarkNotSet:      "Markierung ist nicht gesetzt",
		InvalidMarkName: "Ungültiger Markierungsname",
	},
}

// New picks the message catalog for the user's detected locale (or "auto"
// to detect it via jibber_jabber), merging it over the English base so any
// locale gap still has a message.
func New(language string) Messages {
	if language == "" || language == "auto" {
		language = detectLanguage()
	}

	msgs, ok := catalog[language]
	if !ok {
		return english()
	}

	base := english()
	if err := mergo.Merge(&msgs, base); err != nil {
		return base
	}
	return msgs
}

func detectLanguage() string {
	if lang, err := jibber_jabber.DetectLanguage(); err == nil {
		return lang
	}
	return "en"
}

// DispatchHistogram renders a small ASCII sparkline of a counter/mapping-
// state history for a debug overlay, the "render a small stats graph"
// concern lazydocker reserves asciigraph for.
func DispatchHistogram(samples []float64, caption string, height int) string {
	return asciigraph.Plot(samples,
		asciigraph.Height(height),
		asciigraph.Caption(caption),
	)
}
