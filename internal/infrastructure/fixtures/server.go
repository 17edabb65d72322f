// Package fixtures serves a small demo site mirroring the flows the engine is
// exercised against: form login, a target=_blank popup, native dialogs, an iframe
// editor and a shadow-DOM component.
package fixtures

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"browser-harness/internal/application/port/output"
)

const (
	Username = "tomsmith"
	Password = "SuperSecretPassword!"
)

// Router builds the site. Request logging goes through httplog when verbose is set.
func Router(verbose bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if verbose {
		r.Use(httplog.RequestLogger(httplog.NewLogger("fixtures", httplog.Options{Concise: true})))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		flash := ""
		if r.URL.Query().Get("error") != "" {
			flash = "Your username is invalid!"
		}
		page(w, strings.Replace(loginPage, "{{FLASH}}", flash, 1))
	})
	r.Post("/authenticate", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") == Username && r.FormValue("password") == Password {
			http.Redirect(w, r, "/secure", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/login?error=1", http.StatusSeeOther)
	})
	r.Get("/logout", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	r.Get("/secure", serve(securePage))
	r.Route("/windows", func(r chi.Router) {
		r.Get("/", serve(windowsPage))
		r.Get("/new", serve(newWindowPage))
	})
	r.Get("/javascript_alerts", serve(alertsPage))
	r.Route("/iframe", func(r chi.Router) {
		r.Get("/", serve(framesPage))
		r.Get("/content", serve(frameContentPage))
	})
	r.Get("/forms", serve(formsPage))
	return r
}

func serve(markup string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		page(w, markup)
	}
}

func page(w http.ResponseWriter, markup string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(markup))
}

// Serve runs the site on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger output.LoggerPort) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(true),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("Fixture site listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
