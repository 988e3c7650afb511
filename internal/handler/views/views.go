// Package views renders the wizard pages.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/qextractor/internal/i18n"
)

//go:embed templates/*.html
var templateFS embed.FS

// base holds the parsed templates. Translation funcs are rebound per render.
var base = template.Must(template.New("").Funcs(funcs(context.Background())).ParseFS(templateFS, "templates/*.html"))

func funcs(ctx context.Context) template.FuncMap {
	return template.FuncMap{
		"t": func(id string) string { return appI18n.T(ctx, id) },
		"td": func(id string, kv ...any) string {
			data := make(map[string]any, len(kv)/2)
			for i := 0; i+1 < len(kv); i += 2 {
				data[fmt.Sprint(kv[i])] = kv[i+1]
			}
			return appI18n.Td(ctx, id, data)
		},
		"tp": func(id string, count int) string { return appI18n.Tp(ctx, id, count) },
	}
}

func render(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		tmpl, err := base.Clone()
		if err != nil {
			return err
		}
		return tmpl.Funcs(funcs(ctx)).ExecuteTemplate(w, name, data)
	})
}

// WizardPage renders the whole wizard with only the revealed steps.
func WizardPage(v WizardView) templ.Component {
	return render("page", v)
}
