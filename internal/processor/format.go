package processor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

var supportedLocales = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.Portuguese,
	language.German,
	language.Korean,
}

var localeMatcher = language.NewMatcher(supportedLocales)

var monthNames = map[string][12]string{
	"en": {"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
	"es": {"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"},
	"fr": {"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
	"pt": {"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"},
	"de": {"Januar", "Februar", "März", "April", "Mai", "Juni", "Juli", "August", "September", "Oktober", "November", "Dezember"},
}

// dateLayouts are tried in order when a date field arrives as a string.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// MatchLocale returns the base language used for formatting.
func MatchLocale(locale string) string {
	tag, _ := language.MatchStrings(localeMatcher, locale)
	base, _ := tag.Base()
	return base.String()
}

// FormatDate renders t as a long date in the given locale.
func FormatDate(t time.Time, locale string) string {
	lang := MatchLocale(locale)
	month := int(t.Month()) - 1

	switch lang {
	case "es":
		return fmt.Sprintf("%d de %s de %d", t.Day(), monthNames["es"][month], t.Year())
	case "pt":
		return fmt.Sprintf("%d de %s de %d", t.Day(), monthNames["pt"][month], t.Year())
	case "fr":
		return fmt.Sprintf("%d %s %d", t.Day(), monthNames["fr"][month], t.Year())
	case "de":
		return fmt.Sprintf("%d. %s %d", t.Day(), monthNames["de"][month], t.Year())
	case "ko":
		return fmt.Sprintf("%d년 %d월 %d일", t.Year(), int(t.Month()), t.Day())
	}
	return fmt.Sprintf("%s %d, %d", monthNames["en"][month], t.Day(), t.Year())
}

func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		return *d, true
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// stringify turns a data value into display text.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format("2006-01-02")
	case fmt.Stringer:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
