package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Supported lists the languages with a locale file, default first.
var Supported = []language.Tag{language.English, language.Russian}

var matcher = language.NewMatcher(Supported)

// Match picks the best supported language for an Accept-Language header or
// explicit preference. It falls back to fallback when nothing matches.
func Match(fallback string, prefs ...string) string {
	for _, p := range prefs {
		if p == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(p)
		if err != nil || len(tags) == 0 {
			continue
		}
		_, idx, conf := matcher.Match(tags...)
		if conf != language.No {
			base, _ := Supported[idx].Base()
			return base.String()
		}
	}
	return fallback
}

// Middleware injects a localizer into every request context. The language is
// taken from the "lang" query parameter, then the "lang" cookie, then the
// Accept-Language header, falling back to lang.
func Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var cookie string
			if c, err := r.Cookie("lang"); err == nil {
				cookie = c.Value
			}
			chosen := Match(lang, r.URL.Query().Get("lang"), cookie, r.Header.Get("Accept-Language"))
			ctx := WithLocalizer(r.Context(), NewLocalizer(chosen))
			ctx = WithLang(ctx, chosen)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
