package format

import (
	"fmt"
	"strings"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/de_DE"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/en_GB"
	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/es"
	"github.com/go-playground/locales/es_ES"
	"github.com/go-playground/locales/fr"
	"github.com/go-playground/locales/fr_FR"
	"github.com/go-playground/locales/it"
	"github.com/go-playground/locales/it_IT"
	"github.com/go-playground/locales/ja"
	"github.com/go-playground/locales/ja_JP"
	"github.com/go-playground/locales/nl"
	"github.com/go-playground/locales/nl_NL"
	"github.com/go-playground/locales/pt"
	"github.com/go-playground/locales/pt_BR"
	ut "github.com/go-playground/universal-translator"
	"golang.org/x/text/language"
)

// ============================================================================
// CLDR translators
// ============================================================================

// newTranslators loads the CLDR locales with relative time phrases
// registered on each. Locales without a phrase table fall back to English
// phrases through the universal translator's fallback.
func newTranslators() (*ut.UniversalTranslator, error) {
	fallback := en_US.New()
	uni := ut.New(fallback,
		fallback, en.New(), en_GB.New(),
		de.New(), de_DE.New(),
		fr.New(), fr_FR.New(),
		es.New(), es_ES.New(),
		it.New(), it_IT.New(),
		ja.New(), ja_JP.New(),
		nl.New(), nl_NL.New(),
		pt.New(), pt_BR.New(),
	)
	for _, id := range []string{
		"en_US", "en", "en_GB", "de", "de_DE", "fr", "fr_FR", "es", "es_ES",
		"it", "it_IT", "ja", "ja_JP", "nl", "nl_NL", "pt", "pt_BR",
	} {
		trans, _ := uni.GetTranslator(id)
		if err := registerAgo(trans); err != nil {
			return nil, err
		}
	}
	return uni, nil
}

// translatorFor picks the most specific loaded locale for tag, falling
// back to en_US
func translatorFor(uni *ut.UniversalTranslator, tag language.Tag) ut.Translator {
	base, _ := tag.Base()
	candidates := []string{strings.ReplaceAll(tag.String(), "-", "_")}
	if region, conf := tag.Region(); conf != language.No {
		candidates = append(candidates, base.String()+"_"+region.String())
	}
	candidates = append(candidates, base.String())
	trans, _ := uni.FindTranslator(candidates...)
	return trans
}

// agoKey identifies one relative time phrase
type agoKey struct {
	style  string
	unit   string
	future bool
}

// relative holds the phrases of one style; past and future take the unit
// name through %s and the amount through {0}
type relative struct {
	past, future string
	units        map[string][2]string // one, other
}

func units(second, hour, day, month [2]string) map[string][2]string {
	return map[string][2]string{"second": second, "hour": hour, "day": day, "month": month}
}

func same(name string) [2]string { return [2]string{name, name} }

// CLDR relative time data is not shipped by locales or x/text
var agoPhrases = map[string]map[string]relative{
	"en": {
		StyleLong: {"{0} %s ago", "in {0} %s", units(
			[2]string{"second", "seconds"}, [2]string{"hour", "hours"},
			[2]string{"day", "days"}, [2]string{"month", "months"})},
		StyleShort: {"{0} %s ago", "in {0} %s", units(
			same("sec."), same("hr."), [2]string{"day", "days"}, same("mo."))},
		StyleNarrow: {"{0}%s ago", "in {0}%s", units(same("s"), same("h"), same("d"), same("mo"))},
	},
	"de": {
		StyleLong: {"vor {0} %s", "in {0} %s", units(
			[2]string{"Sekunde", "Sekunden"}, [2]string{"Stunde", "Stunden"},
			[2]string{"Tag", "Tagen"}, [2]string{"Monat", "Monaten"})},
		StyleShort: {"vor {0} %s", "in {0} %s", units(
			same("Sek."), same("Std."), [2]string{"Tag", "Tagen"}, same("Mon."))},
		StyleNarrow: {"vor {0} %s", "in {0} %s", units(same("s"), same("h"), same("T."), same("M."))},
	},
	"fr": {
		StyleLong: {"il y a {0} %s", "dans {0} %s", units(
			[2]string{"seconde", "secondes"}, [2]string{"heure", "heures"},
			[2]string{"jour", "jours"}, same("mois"))},
		StyleShort:  {"il y a {0} %s", "dans {0} %s", units(same("s"), same("h"), same("j"), same("m."))},
		StyleNarrow: {"il y a {0} %s", "dans {0} %s", units(same("s"), same("h"), same("j"), same("m."))},
	},
	"es": {
		StyleLong: {"hace {0} %s", "dentro de {0} %s", units(
			[2]string{"segundo", "segundos"}, [2]string{"hora", "horas"},
			[2]string{"día", "días"}, [2]string{"mes", "meses"})},
		StyleShort:  {"hace {0} %s", "dentro de {0} %s", units(same("s"), same("h"), same("d"), same("m"))},
		StyleNarrow: {"hace {0} %s", "dentro de {0} %s", units(same("s"), same("h"), same("d"), same("m"))},
	},
	"it": {
		StyleLong: {"{0} %s fa", "tra {0} %s", units(
			[2]string{"secondo", "secondi"}, [2]string{"ora", "ore"},
			[2]string{"giorno", "giorni"}, [2]string{"mese", "mesi"})},
		StyleShort:  {"{0} %s fa", "tra {0} %s", units(same("sec."), same("h"), [2]string{"g", "gg"}, same("mesi"))},
		StyleNarrow: {"{0}%s fa", "tra {0}%s", units(same("s"), same("h"), same("g"), same("m"))},
	},
	"ja": {
		StyleLong:   {"{0} %s前", "{0} %s後", units(same("秒"), same("時間"), same("日"), same("か月"))},
		StyleShort:  {"{0} %s前", "{0} %s後", units(same("秒"), same("時間"), same("日"), same("か月"))},
		StyleNarrow: {"{0}%s前", "{0}%s後", units(same("秒"), same("時間"), same("日"), same("か月"))},
	},
}

// registerAgo adds the phrase table of the translator's language, one
// entry per cardinal plural rule the locale uses
func registerAgo(trans ut.Translator) error {
	lang := strings.SplitN(trans.Locale(), "_", 2)[0]
	styles, ok := agoPhrases[lang]
	if !ok {
		return nil
	}
	for style, rel := range styles {
		for unit, names := range rel.units {
			for _, future := range []bool{false, true} {
				pattern := rel.past
				if future {
					pattern = rel.future
				}
				for _, rule := range trans.PluralsCardinal() {
					name := names[1]
					if rule == locales.PluralRuleOne {
						name = names[0]
					}
					key := agoKey{style: style, unit: unit, future: future}
					if err := trans.AddCardinal(key, fmt.Sprintf(pattern, name), rule, false); err != nil {
						return fmt.Errorf("register %s %s phrase for %s: %w", style, unit, trans.Locale(), err)
					}
				}
			}
		}
	}
	return nil
}
