package httphandler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jgivc/browsersync/internal/entity"
	"github.com/jgivc/browsersync/internal/recall"
	"github.com/jgivc/browsersync/internal/service/browser"
	"github.com/jgivc/browsersync/internal/util"
)

type BrowserService interface {
	Open(ctx context.Context, req browser.OpenRequest) (string, error)
	Get(id string) (*browser.Browser, error)
	Close(ctx context.Context, id string) error
	Select(id string, gris ...string) error
	Refresh(ctx context.Context, id string) error
}

type ArchiveService interface {
	GetArchive(ctx context.Context, id string) (*entity.Archive, error)
}

type RecallService interface {
	WatchRecall(gri string) (string, error)
	UnwatchRecall(gri, token string)
	Status(gri string) (recall.Snapshot, error)
}

func NewOpenBrowserHandler(srv BrowserService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "OpenBrowserHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		var req browser.OpenRequest
		if err := readJSON(r, &req); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		id, err := srv.Open(r.Context(), req)
		if err != nil {
			log.Debug("Cannot open browser", slog.Any("error", err))
			writeError(w, err)

			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}

func NewBrowserHandler(srv BrowserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := srv.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, b.View())
	}
}

func NewCloseBrowserHandler(srv BrowserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := srv.Close(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func NewSelectHandler(srv BrowserService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body filesRequest
		if err := readJSON(r, &body); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		if err := srv.Select(r.PathValue("id"), body.GRIs...); err != nil {
			writeError(w, err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func NewRefreshBrowserHandler(srv BrowserService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "RefreshBrowserHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		if err := srv.Refresh(r.Context(), id); err != nil {
			log.Debug("Cannot refresh browser", slog.String("browser_id", id), slog.Any("error", err))
			writeError(w, err)

			return
		}

		b, err := srv.Get(id)
		if err != nil {
			writeError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, b.View())
	}
}

func NewArchiveHandler(srv ArchiveService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		archive, err := srv.GetArchive(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, archive)
	}
}

func NewWatchRecallHandler(srv RecallService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "WatchRecallHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		gri := r.PathValue("gri")
		if _, err := util.FileIDFromGRI(gri); err != nil {
			writeError(w, err)

			return
		}

		token, err := srv.WatchRecall(gri)
		if err != nil {
			log.Error("Cannot watch recall", slog.String("gri", gri), slog.Any("error", err))
			writeError(w, err)

			return
		}

		log.Debug("Watch recall", slog.String("gri", gri), slog.String("token", token))

		writeJSON(w, http.StatusCreated, map[string]string{"token": token})
	}
}

func NewUnwatchRecallHandler(srv RecallService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		srv.UnwatchRecall(r.PathValue("gri"), r.PathValue("token"))

		w.WriteHeader(http.StatusNoContent)
	}
}

func NewRecallStatusHandler(srv RecallService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := srv.Status(r.PathValue("gri"))
		if err != nil {
			writeError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, snapshot)
	}
}
