package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/akolanti/uniassist/internal/adapter"
	"github.com/akolanti/uniassist/internal/adapter/utils"
	"github.com/akolanti/uniassist/internal/api"
	"github.com/akolanti/uniassist/internal/config"
	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/rag/extract"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

var logRH = logger_i.NewLogger("RequestHandler")

type newJobData struct {
	id               string
	chatId           string
	message          string
	traceId          string
	isDocumentIngest bool
	documentName     string
	force            bool
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ChatHandler godoc
// @Summary      Ask a question
// @Description  Queues the question for the agent loop and returns a job ID to track status. The chat ID is the conversation session; omit it to start a new one.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.ChatRequest      true  "Message and optional chat ID"
// @Success      202      {object}  api.InitJobResponse  "Job successfully created"
// @Failure      400      {object}  api.JobResponse      "Invalid request data or chat ID"
// @Router       /chat [post]
func ChatHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request", "remote", request.RemoteAddr)
		return
	}

	var requestData api.ChatRequest
	defer closeBody(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || !ValidateChatRequest(requestData) {
		logRH.Warn("Bad Chat Request", "error", err, "chatId", requestData.ChatID)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.ChatID, "Bad Request")
		return
	}

	chatID := requestData.ChatID
	if chatID == "" {
		chatID = utils.GetNewUUID()
		logRH.Debug("New chat", "chatId", chatID)
	}
	queueJob(w, request, newJobData{chatId: chatID, message: requestData.Message})
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a chat or ingestion job.
// @Tags         Job Status
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse   "Current status of the job"
// @Failure      404  {object}  api.JobResponse   "Job not found"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, utils.TraceID(r.Context()))

	logRH.Debug("Get Status Request", "URL path", r.URL.Path)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostIngestHandler godoc
// @Summary      Ingest a document
// @Description  Queues the ingestion of a document already in the documents folder (JSON body), or uploads one first (multipart/form-data).
// @Tags         Ingestion
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        request        body      api.IngestDocumentRequest  false  "Document already on disk"
// @Param        document_name  formData  string  false  "Name to store the upload under; defaults to the file name"
// @Param        force          formData  bool    false  "Re-ingest even if a collection exists"
// @Param        document       formData  file    false  "PDF, DOCX, ODT, RTF or TXT file"
// @Success      202  {object}  api.InitJobResponse "Job successfully created"
// @Failure      400  {object}  api.JobResponse "Missing fields, unsupported type or file too large"
// @Failure      409  {object}  api.JobResponse "A different file with that name exists; use force"
// @Failure      500  {object}  api.JobResponse "Storage error"
// @Router       /ingest [post]
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request", "remote", r.RemoteAddr)
		return
	}
	defer closeBody(r.Body)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		postUpload(w, r)
		return
	}

	var requestData api.IngestDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || strings.TrimSpace(requestData.DocumentName) == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_name is required")
		return
	}
	queueJob(w, r, newJobData{isDocumentIngest: true, documentName: requestData.DocumentName, force: requestData.Force})
}

func postUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	ext := strings.ToLower(filepath.Ext(fileMetadata.Filename))
	if t := extract.TypeOf(ext); t == commonModels.ERR || t == commonModels.JSON {
		WriteErrorResponse(w, http.StatusBadRequest, fileMetadata.Filename, "Unsupported document type")
		return
	}
	docName := r.FormValue("document_name")
	if docName == "" {
		docName = fileMetadata.Filename
	}
	stem := extract.Stem(docName)
	if stem == "" || stem == "." {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Invalid document_name")
		return
	}
	force, _ := strconv.ParseBool(r.FormValue("force"))

	status, errString := saveUpload(fileReader, handlerInstance.documentsRoot, stem+ext, force)
	if errString != "" {
		logRH.Error("Upload failed", "document", stem, "err", errString)
		WriteErrorResponse(w, status, stem, errString)
		return
	}
	queueJob(w, r, newJobData{isDocumentIngest: true, documentName: stem + ext, force: force})
}

// ListDocumentsHandler godoc
// @Summary      List documents
// @Description  Lists source documents and processed collections.
// @Tags         Ingestion
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  api.DocumentsResponse
// @Failure      500  {object}  api.JobResponse
// @Router       /documents [get]
func ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	docs, err := handlerInstance.catalog.Documents(r.Context())
	if err != nil {
		logRH.Error("Listing documents failed", "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Could not list documents")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentsResponse(docs))
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logRH.Error("Couldn't close the request body", "err", err)
	}
}

// saveUpload writes the file atomically into dir. An existing file is only
// replaced when force is set, so a collection never silently diverges from
// its source.
func saveUpload(src io.Reader, dir, name string, force bool) (int, string) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return http.StatusInternalServerError, "Storage error"
	}
	target := filepath.Join(dir, name)
	if _, err := os.Stat(target); err == nil && !force {
		return http.StatusConflict, "Document already exists, set force to replace it"
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return http.StatusInternalServerError, "Storage error"
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return http.StatusInternalServerError, "Storage error"
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return http.StatusInternalServerError, "Write error"
	}
	if err := tmp.Close(); err != nil {
		return http.StatusInternalServerError, "Write error"
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return http.StatusInternalServerError, "Storage error"
	}
	return http.StatusOK, ""
}
