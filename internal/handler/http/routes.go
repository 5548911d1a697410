package httphandler

import (
	"log/slog"
	"net/http"
)

type Services struct {
	Files        FileService
	Requirements RequirementRegistry
	Records      FileRegistry
	Store        RecordReader
	Browsers     BrowserService
	Archives     ArchiveService
	Recalls      RecallService
	Sweeper      Sweeper
	Metrics      http.Handler
}

func Register(mux *http.ServeMux, s Services, log *slog.Logger) {
	mux.Handle("GET /file/{gri}/{$}", NewFileHandler(s.Files, log))
	mux.Handle("GET /dir/{gri}/children/{$}", NewChildrenHandler(s.Files, log))

	mux.Handle("PUT /consumer/{id}/requirements/{$}", NewSetRequirementsHandler(s.Requirements, log))
	mux.Handle("DELETE /consumer/{id}/requirements/{$}", NewDeregisterRequirementsHandler(s.Requirements, log))
	mux.Handle("PUT /consumer/{id}/files/{$}", NewSetFilesHandler(s.Records, log))
	mux.Handle("DELETE /consumer/{id}/files/{$}", NewRemoveFilesHandler(s.Records, log))

	mux.Handle("POST /browser/{$}", NewOpenBrowserHandler(s.Browsers, log))
	mux.Handle("GET /browser/{id}/{$}", NewBrowserHandler(s.Browsers, log))
	mux.Handle("DELETE /browser/{id}/{$}", NewCloseBrowserHandler(s.Browsers, log))
	mux.Handle("PUT /browser/{id}/selection/{$}", NewSelectHandler(s.Browsers, log))
	mux.Handle("POST /browser/{id}/refresh/{$}", NewRefreshBrowserHandler(s.Browsers, log))

	mux.Handle("GET /archive/{id}/{$}", NewArchiveHandler(s.Archives, log))

	mux.Handle("POST /recall/{gri}/watch/{$}", NewWatchRecallHandler(s.Recalls, log))
	mux.Handle("DELETE /recall/{gri}/watch/{token}/{$}", NewUnwatchRecallHandler(s.Recalls, log))
	mux.Handle("GET /recall/{gri}/{$}", NewRecallStatusHandler(s.Recalls, log))

	mux.Handle("GET /debug/requirements/{$}", NewRequirementsDebugHandler(s.Requirements, log))
	mux.Handle("GET /debug/records/{$}", NewRecordsDebugHandler(s.Records, log))

	if s.Store != nil {
		mux.Handle("GET /debug/records/{gri}/{$}", NewStoredRecordHandler(s.Store, log))
	}

	if s.Sweeper != nil {
		mux.Handle("POST /debug/sweep/{$}", NewSweepHandler(s.Sweeper, log))
	}

	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics)
	}
}
