package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cortex/internal/domain"
	domchunk "github.com/kailas-cloud/cortex/internal/domain/chunk"
	domcol "github.com/kailas-cloud/cortex/internal/domain/collection"
	"github.com/kailas-cloud/cortex/internal/logger"
	healthuc "github.com/kailas-cloud/cortex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/cortex/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/cortex/internal/usecase/query"
	"github.com/kailas-cloud/cortex/internal/version"
)

const (
	// DefaultCollection is queried when a request names none.
	DefaultCollection = "default"
	// ServiceName is reported by GET /.
	ServiceName = "Cortex RAG Server"

	defaultMaxUploadBytes int64 = 32 << 20
	allDocumentsExist           = "All documents already exist in collection"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server implements ServerInterface.
type Server struct {
	collections    CollectionService
	ingest         IngestService
	query          QueryService
	health         HealthService
	metrics        http.Handler
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(
	collections CollectionService,
	ingest IngestService,
	query QueryService,
	health HealthService,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		collections:    collections,
		ingest:         ingest,
		query:          query,
		health:         health,
		metrics:        promhttp.Handler(),
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrNoDocuments, http.StatusNotFound, ErrorResponseCodeNoDocuments),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, ErrorResponseCodeAlreadyExists),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusBadGateway, ErrorResponseCodeUpstreamUnavailable),
		sentinelHandler(domain.ErrStoreFailure, http.StatusServiceUnavailable, ErrorResponseCodeStoreUnavailable),
	}
	return s
}

// WithMaxUploadBytes bounds multipart upload bodies.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{Service: ServiceName, Status: "running", Version: version.Version})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ServeHTTP(w, r)
}

// ListCollections handles GET /collections.
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.collections.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]CollectionInfo, len(summaries))
	for i, sum := range summaries {
		items[i] = CollectionInfo{
			Name:      sum.Collection.Name(),
			Metadata:  metadataToMap(sum.Collection.Metadata()),
			Count:     sum.Count,
			CreatedAt: sum.Collection.CreatedAt(),
		}
	}
	writeJSON(w, http.StatusOK, CollectionListResponse{Collections: items})
}

// CreateCollection handles POST /collections/{name}. Creating an existing
// collection is not an error; its metadata is left untouched.
func (s *Server) CreateCollection(
	w http.ResponseWriter,
	r *http.Request,
	name CollectionName,
	params CreateCollectionParams,
) {
	description := ""
	if params.Description != nil {
		description = *params.Description
	}

	col, created, err := s.collections.Create(r.Context(), name, description)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status, code := "exists", http.StatusOK
	if created {
		status, code = "created", http.StatusCreated
	}
	writeJSON(w, code, CollectionStatusResponse{Status: status, Name: col.Name(), Metadata: metadataToMap(col.Metadata())})
}

// DeleteCollection handles DELETE /collections/{name}.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request, name CollectionName) {
	if err := s.collections.Delete(r.Context(), name); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionStatusResponse{Status: "deleted", Name: name})
}

// UpdateCollection handles PATCH /collections/{name}.
func (s *Server) UpdateCollection(w http.ResponseWriter, r *http.Request, name CollectionName) {
	var req UpdateCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	col, err := s.collections.UpdateMetadata(r.Context(), name, domcol.Patch{
		Description: req.Description,
		Source:      req.Source,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionStatusResponse{
		Status:   "updated",
		Name:     name,
		Metadata: metadataToMap(col.Metadata()),
	})
}

// ListChunks handles GET /collections/{name}/chunks.
func (s *Server) ListChunks(w http.ResponseWriter, r *http.Request, name CollectionName, params ListChunksParams) {
	page, err := s.collections.ChunksPage(r.Context(), name, derefInt(params.Limit), derefInt(params.Offset))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]ChunkItem, len(page.Chunks))
	for i, c := range page.Chunks {
		items[i] = ChunkItem{ID: c.ID, Text: c.Text, Metadata: chunkMetadataToMap(c.Metadata)}
	}
	writeJSON(w, http.StatusOK, ChunkListResponse{
		Collection: name,
		Total:      page.Total,
		Offset:     page.Offset,
		Limit:      page.Limit,
		Chunks:     items,
	})
}

// ClearCollection handles DELETE /collections/{name}/clear.
func (s *Server) ClearCollection(w http.ResponseWriter, r *http.Request, name CollectionName) {
	if _, err := s.collections.Clear(r.Context(), name); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionStatusResponse{Status: "cleared", Name: name})
}

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	collection := DefaultCollection
	if req.Collection != nil && *req.Collection != "" {
		collection = *req.Collection
	}
	includeSources := true
	if req.IncludeSources != nil {
		includeSources = *req.IncludeSources
	}

	answer, err := s.query.Query(r.Context(), queryuc.Request{
		Collection:     collection,
		Text:           req.Query,
		TopK:           derefInt(req.TopK),
		IncludeSources: includeSources,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := QueryResponse{Answer: answer.Text}
	if len(answer.Sources) > 0 {
		resp.Sources = make([]SourceItem, len(answer.Sources))
		for i, src := range answer.Sources {
			resp.Sources[i] = SourceItem{
				Text:     src.Text,
				Score:    src.Score,
				Metadata: chunkMetadataToMap(src.Metadata),
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// IngestDirectory handles POST /ingest/directory.
func (s *Server) IngestDirectory(w http.ResponseWriter, r *http.Request) {
	var req IngestDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.ingest.Directory(r.Context(), req.Collection, req.Directory)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestToResponse(res))
}

// IngestFiles handles POST /ingest/files/{name} with multipart field "files".
func (s *Server) IngestFiles(w http.ResponseWriter, r *http.Request, name CollectionName) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorResponseCodeBadRequest,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	files := make([]ingestuc.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest,
				fmt.Sprintf("open upload %s: %v", fh.Filename, err))
			closeAll(files)
			return
		}
		files = append(files, ingestuc.File{Name: fh.Filename, Content: f})
	}
	defer closeAll(files)

	res, err := s.ingest.Files(r.Context(), name, files)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestToResponse(res))
}

func closeAll(files []ingestuc.File) {
	for _, f := range files {
		if c, ok := f.Content.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

func ingestToResponse(res ingestuc.Result) IngestResponse {
	resp := IngestResponse{
		Status:            "success",
		Collection:        res.Collection,
		IngestID:          res.IngestID,
		DocumentsIngested: res.Ingested,
		DocumentsSkipped:  res.Skipped,
		TotalChunks:       res.TotalChunks,
	}
	if res.Ingested == 0 {
		resp.Message = allDocumentsExist
	}
	return resp
}

func metadataToMap(m domcol.Metadata) map[string]string {
	out := make(map[string]string, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["description"] = m.Description
	if m.Source != "" {
		out["source"] = m.Source
	}
	return out
}

func chunkMetadataToMap(m domchunk.Metadata) map[string]any {
	out := make(map[string]any, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["file_path"] = m.OriginPath
	out["doc_hash"] = m.DocFingerprint
	out["position"] = m.Position
	if m.DocChunks > 0 {
		out["doc_chunks"] = m.DocChunks
	}
	if size, ok := m.Extra[domchunk.MetaFileSize]; ok {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			out[domchunk.MetaFileSize] = n
		}
	}
	return out
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Domain errors name the collection or path they concern, so the message is passed through.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.String("kind", domain.Kind(err)), zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

// BindErrorHandler renders parameter binding failures.
func BindErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
}
