package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jgivc/browsersync/internal/common"
	"github.com/jgivc/browsersync/internal/entity"
)

const (
	maxBodySize = 1 << 20
)

type FileService interface {
	GetFile(ctx context.Context, gri, parentGRI string) (*entity.File, error)
	ListChildren(ctx context.Context, dirGRI string) ([]*entity.File, error)
}

type RequirementRegistry interface {
	SetRequirements(consumer entity.ConsumerID, reqs ...*entity.FileRequirement)
	DeregisterRequirements(consumer entity.ConsumerID)
	GetRequirements() map[entity.ConsumerID][]*entity.FileRequirement
}

type FileRegistry interface {
	SetFiles(ctx context.Context, consumer entity.ConsumerID, gris ...string)
	RemoveFiles(ctx context.Context, consumer entity.ConsumerID, gris ...string)
	GetRegisteredFiles() []string
	Dependents(gri string) []entity.ConsumerID
}

type RecordReader interface {
	Get(ctx context.Context, gri string) (*entity.File, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type requirementRequest struct {
	FileGRI    string   `json:"fileGri,omitempty"`
	ParentID   string   `json:"parentId,omitempty"`
	Properties []string `json:"properties"`
}

type filesRequest struct {
	GRIs []string `json:"gris"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidGRI),
		errors.Is(err, common.ErrInvalidQuery),
		errors.Is(err, common.ErrNotADirectoryError):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrFileNotFoundError),
		errors.Is(err, common.ErrArchiveNotFoundError),
		errors.Is(err, common.ErrRecallNotFoundError),
		errors.Is(err, common.ErrBrowserNotFoundError),
		errors.Is(err, common.ErrRecordNotFoundError):
		return http.StatusNotFound
	case errors.Is(err, common.ErrSweepAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, common.ErrRecallManagerStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into v. An empty body leaves v as is.
func readJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

func NewFileHandler(srv FileService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "FileHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		gri := r.PathValue("gri")

		file, err := srv.GetFile(r.Context(), gri, r.URL.Query().Get("parent"))
		if err != nil {
			log.Debug("Cannot get file", slog.String("gri", gri), slog.Any("error", err))
			writeError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, file)
	}
}

func NewChildrenHandler(srv FileService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ChildrenHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		gri := r.PathValue("gri")

		files, err := srv.ListChildren(r.Context(), gri)
		if err != nil {
			log.Debug("Cannot list children", slog.String("gri", gri), slog.Any("error", err))
			writeError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, files)
	}
}

// NewSetRequirementsHandler replaces the requirements of a consumer. An
// empty list deregisters it.
func NewSetRequirementsHandler(reg RequirementRegistry, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "SetRequirementsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		consumer := entity.ConsumerID(r.PathValue("id"))

		var body []requirementRequest
		if err := readJSON(r, &body); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		reqs := make([]*entity.FileRequirement, 0, len(body))
		for _, item := range body {
			query, err := entity.NewFileQuery(item.FileGRI, item.ParentID)
			if err != nil {
				writeError(w, err)

				return
			}

			reqs = append(reqs, entity.NewFileRequirement(query, item.Properties...))
		}

		reg.SetRequirements(consumer, reqs...)
		log.Debug("Requirements set", slog.String("consumer", string(consumer)), slog.Int("count", len(reqs)))

		w.WriteHeader(http.StatusNoContent)
	}
}

func NewDeregisterRequirementsHandler(reg RequirementRegistry, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg.DeregisterRequirements(entity.ConsumerID(r.PathValue("id")))

		w.WriteHeader(http.StatusNoContent)
	}
}

func NewSetFilesHandler(reg FileRegistry, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "SetFilesHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		consumer := entity.ConsumerID(r.PathValue("id"))

		var body filesRequest
		if err := readJSON(r, &body); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		reg.SetFiles(r.Context(), consumer, body.GRIs...)
		log.Debug("Files set", slog.String("consumer", string(consumer)), slog.Int("count", len(body.GRIs)))

		w.WriteHeader(http.StatusNoContent)
	}
}

// NewRemoveFilesHandler removes the listed files of a consumer, or all of
// them when the body is empty.
func NewRemoveFilesHandler(reg FileRegistry, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body filesRequest
		if err := readJSON(r, &body); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)

			return
		}

		reg.RemoveFiles(r.Context(), entity.ConsumerID(r.PathValue("id")), body.GRIs...)

		w.WriteHeader(http.StatusNoContent)
	}
}

func NewRequirementsDebugHandler(reg RequirementRegistry, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make(map[entity.ConsumerID][]string)
		for consumer, reqs := range reg.GetRequirements() {
			for _, req := range reqs {
				out[consumer] = append(out[consumer], req.String())
			}
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func NewRecordsDebugHandler(reg FileRegistry, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string][]entity.ConsumerID)
		for _, gri := range reg.GetRegisteredFiles() {
			out[gri] = reg.Dependents(gri)
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func NewSweepHandler(s Sweeper, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "SweepHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.Sweep(r.Context())
		if err != nil {
			log.Warn("Sweep failed", slog.Any("error", err))
			writeError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, map[string]int{"unloaded": n})
	}
}

// NewStoredRecordHandler shows a record as it is kept in the record store.
func NewStoredRecordHandler(store RecordReader, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := store.Get(r.Context(), r.PathValue("gri"))
		if err != nil {
			writeError(w, err)

			return
		}

		writeJSON(w, http.StatusOK, file)
	}
}
