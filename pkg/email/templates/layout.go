package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// layout wraps body in the shared HTML shell.
func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`+
			templ.EscapeString(title)+
			`</title></head><body style="font-family:Helvetica,Arial,sans-serif;color:#222;max-width:560px;margin:0 auto;padding:24px">`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<p style="color:#888;font-size:12px">You are receiving this because you requested a consultation. Reply to this email to stop these reminders.</p></body></html>`)
		return err
	})
}

func paragraph(text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<p>"+templ.EscapeString(text)+"</p>")
		return err
	})
}

// button renders a call-to-action link. Unsafe URL schemes are neutralised by templ.URL.
func button(label, href string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<p><a href="`+templ.EscapeString(string(templ.URL(href)))+
			`" style="display:inline-block;padding:12px 20px;background:#1a73e8;color:#fff;text-decoration:none;border-radius:4px">`+
			templ.EscapeString(label)+`</a></p>`)
		return err
	})
}

func join(parts ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, p := range parts {
			if err := p.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

// Greeting returns "Hi Alice," for "alice" and "Hi there," when the name is empty.
// Names typed entirely in lower or upper case are title-cased; mixed-case names
// such as "McDonald" or "van der Berg" are used as captured.
func Greeting(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Hi there,"
	}
	if name == strings.ToLower(name) || name == strings.ToUpper(name) {
		name = cases.Title(language.English).String(name)
	}
	return "Hi " + name + ","
}
