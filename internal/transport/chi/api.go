package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ErrorResponseCode is the machine-readable error code of an ErrorResponse.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest          ErrorResponseCode = "bad_request"
	ErrorResponseCodeValidationFailed    ErrorResponseCode = "validation_failed"
	ErrorResponseCodeUnauthorized        ErrorResponseCode = "unauthorized"
	ErrorResponseCodeNotFound            ErrorResponseCode = "not_found"
	ErrorResponseCodeNoDocuments         ErrorResponseCode = "no_documents"
	ErrorResponseCodeAlreadyExists       ErrorResponseCode = "already_exists"
	ErrorResponseCodeUpstreamUnavailable ErrorResponseCode = "upstream_unavailable"
	ErrorResponseCodeStoreUnavailable    ErrorResponseCode = "store_unavailable"
	ErrorResponseCodeInternalError       ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// RootResponse is the service banner.
type RootResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// HealthResponse reports dependency availability.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// CollectionInfo is one entry of CollectionListResponse.
type CollectionInfo struct {
	Name      string            `json:"name"`
	Metadata  map[string]string `json:"metadata"`
	Count     int               `json:"count"`
	CreatedAt int64             `json:"created_at"`
}

// CollectionListResponse lists collections oldest first.
type CollectionListResponse struct {
	Collections []CollectionInfo `json:"collections"`
}

// CollectionStatusResponse acknowledges a collection mutation.
type CollectionStatusResponse struct {
	Status   string            `json:"status"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// UpdateCollectionRequest is the PATCH /collections/{name} body.
type UpdateCollectionRequest struct {
	Description *string `json:"description,omitempty"`
	Source      *string `json:"source,omitempty"`
}

// ChunkItem is a chunk preview.
type ChunkItem struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// ChunkListResponse is one page of chunks.
type ChunkListResponse struct {
	Collection string      `json:"collection"`
	Total      int         `json:"total"`
	Offset     int         `json:"offset"`
	Limit      int         `json:"limit"`
	Chunks     []ChunkItem `json:"chunks"`
}

// QueryRequest is the POST /query body.
type QueryRequest struct {
	Query          string  `json:"query"`
	Collection     *string `json:"collection,omitempty"`
	TopK           *int    `json:"top_k,omitempty"`
	IncludeSources *bool   `json:"include_sources,omitempty"`
}

// SourceItem is a retrieved passage backing an answer.
type SourceItem struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// QueryResponse is the synthesized answer. Sources is null unless requested.
type QueryResponse struct {
	Answer  string       `json:"answer"`
	Sources []SourceItem `json:"sources"`
}

// IngestDirectoryRequest is the POST /ingest/directory body.
type IngestDirectoryRequest struct {
	Collection string `json:"collection"`
	Directory  string `json:"directory"`
}

// IngestResponse summarizes an ingestion run.
type IngestResponse struct {
	Status            string `json:"status"`
	Collection        string `json:"collection"`
	IngestID          string `json:"ingest_id,omitempty"`
	DocumentsIngested int    `json:"documents_ingested"`
	DocumentsSkipped  int    `json:"documents_skipped"`
	TotalChunks       int    `json:"total_chunks"`
	Message           string `json:"message,omitempty"`
}

// CollectionName is a collection path parameter.
type CollectionName = string

// CreateCollectionParams are the query parameters of POST /collections/{name}.
type CreateCollectionParams struct {
	Description *string `form:"description,omitempty" json:"description,omitempty"`
}

// ListChunksParams are the query parameters of GET /collections/{name}/chunks.
type ListChunksParams struct {
	Limit  *int `form:"limit,omitempty" json:"limit,omitempty"`
	Offset *int `form:"offset,omitempty" json:"offset,omitempty"`
}

// ServerInterface is implemented by Server and mounted by HandlerWithOptions.
type ServerInterface interface {
	// (GET /)
	Root(w http.ResponseWriter, r *http.Request)
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
	// (GET /collections)
	ListCollections(w http.ResponseWriter, r *http.Request)
	// (POST /collections/{name})
	CreateCollection(w http.ResponseWriter, r *http.Request, name CollectionName, params CreateCollectionParams)
	// (DELETE /collections/{name})
	DeleteCollection(w http.ResponseWriter, r *http.Request, name CollectionName)
	// (PATCH /collections/{name})
	UpdateCollection(w http.ResponseWriter, r *http.Request, name CollectionName)
	// (GET /collections/{name}/chunks)
	ListChunks(w http.ResponseWriter, r *http.Request, name CollectionName, params ListChunksParams)
	// (DELETE /collections/{name}/clear)
	ClearCollection(w http.ResponseWriter, r *http.Request, name CollectionName)
	// (POST /query)
	Query(w http.ResponseWriter, r *http.Request)
	// (POST /ingest/directory)
	IngestDirectory(w http.ResponseWriter, r *http.Request)
	// (POST /ingest/files/{name})
	IngestFiles(w http.ResponseWriter, r *http.Request, name CollectionName)
}

// MiddlewareFunc wraps a single operation handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError reports a parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ServerInterfaceWrapper binds path and query parameters before calling the handler.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.Handler) {
	for _, middleware := range siw.HandlerMiddlewares {
		h = middleware(h)
	}
	h.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) bindName(w http.ResponseWriter, r *http.Request) (CollectionName, bool) {
	var name CollectionName
	err := runtime.BindStyledParameterWithOptions("simple", "name", chi.URLParam(r, "name"), &name,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "name", Err: err})
		return "", false
	}
	return name, true
}

// Root operation middleware.
func (siw *ServerInterfaceWrapper) Root(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.Root))
}

// HealthCheck operation middleware.
func (siw *ServerInterfaceWrapper) HealthCheck(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.HealthCheck))
}

// Metrics operation middleware.
func (siw *ServerInterfaceWrapper) Metrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.Metrics))
}

// ListCollections operation middleware.
func (siw *ServerInterfaceWrapper) ListCollections(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.ListCollections))
}

// CreateCollection operation middleware.
func (siw *ServerInterfaceWrapper) CreateCollection(w http.ResponseWriter, r *http.Request) {
	name, ok := siw.bindName(w, r)
	if !ok {
		return
	}

	var params CreateCollectionParams
	err := runtime.BindQueryParameter("form", true, false, "description", r.URL.Query(), &params.Description)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "description", Err: err})
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CreateCollection(w, r, name, params)
	}))
}

// DeleteCollection operation middleware.
func (siw *ServerInterfaceWrapper) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	name, ok := siw.bindName(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteCollection(w, r, name)
	}))
}

// UpdateCollection operation middleware.
func (siw *ServerInterfaceWrapper) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	name, ok := siw.bindName(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.UpdateCollection(w, r, name)
	}))
}

// ListChunks operation middleware.
func (siw *ServerInterfaceWrapper) ListChunks(w http.ResponseWriter, r *http.Request) {
	name, ok := siw.bindName(w, r)
	if !ok {
		return
	}

	var params ListChunksParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "limit", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", r.URL.Query(), &params.Offset); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "offset", Err: err})
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListChunks(w, r, name, params)
	}))
}

// ClearCollection operation middleware.
func (siw *ServerInterfaceWrapper) ClearCollection(w http.ResponseWriter, r *http.Request) {
	name, ok := siw.bindName(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ClearCollection(w, r, name)
	}))
}

// Query operation middleware.
func (siw *ServerInterfaceWrapper) Query(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.Query))
}

// IngestDirectory operation middleware.
func (siw *ServerInterfaceWrapper) IngestDirectory(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.IngestDirectory))
}

// IngestFiles operation middleware.
func (siw *ServerInterfaceWrapper) IngestFiles(w http.ResponseWriter, r *http.Request) {
	name, ok := siw.bindName(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.IngestFiles(w, r, name)
	}))
}

// HandlerWithOptions mounts every operation of si on a chi router.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	base := options.BaseURL
	r.Get(base+"/", wrapper.Root)
	r.Get(base+"/health", wrapper.HealthCheck)
	r.Get(base+"/metrics", wrapper.Metrics)
	r.Get(base+"/collections", wrapper.ListCollections)
	r.Post(base+"/collections/{name}", wrapper.CreateCollection)
	r.Delete(base+"/collections/{name}", wrapper.DeleteCollection)
	r.Patch(base+"/collections/{name}", wrapper.UpdateCollection)
	r.Get(base+"/collections/{name}/chunks", wrapper.ListChunks)
	r.Delete(base+"/collections/{name}/clear", wrapper.ClearCollection)
	r.Post(base+"/query", wrapper.Query)
	r.Post(base+"/ingest/directory", wrapper.IngestDirectory)
	r.Post(base+"/ingest/files/{name}", wrapper.IngestFiles)
	return r
}
