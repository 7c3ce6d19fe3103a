package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/staffdesk/apiserver/internal/services"
	"github.com/staffdesk/apiserver/internal/storage"
	"github.com/staffdesk/apiserver/internal/store"
	"github.com/staffdesk/apiserver/types"
)

const (
	defaultPage        = 1
	defaultLimit       = 20
	maxLimit           = 100
	maxMultipartMemory = 32 << 20
	maxDocumentBytes   = 64 << 20
	formFieldDocument  = "document"
)

// ContractHandler provides HTTP handlers for contracts.
type ContractHandler struct {
	contractService *services.ContractService
	documents       *storage.Storage
	logger          *logrus.Logger
}

// NewContractHandler constructs a handler with the provided dependencies.
func NewContractHandler(contractService *services.ContractService, documents *storage.Storage, logger *logrus.Logger) *ContractHandler {
	return &ContractHandler{
		contractService: contractService,
		documents:       documents,
		logger:          logger,
	}
}

// ContractRouter registers contract routes on the given router. Reads are
// open to any authenticated principal; mutations are admin-only.
func ContractRouter(
	r chi.Router,
	contractService *services.ContractService,
	documents *storage.Storage,
	authMiddleware func(http.Handler) http.Handler,
	logger *logrus.Logger,
) {
	handler := NewContractHandler(contractService, documents, logger)

	r.Use(authMiddleware)
	r.Get("/", handler.ListContracts)
	r.With(handler.requireAdmin).Post("/", handler.CreateContract)
	r.Route("/{contractID}", func(r chi.Router) {
		r.Get("/", handler.GetContract)
		r.With(handler.requireAdmin).Put("/", handler.UpdateContract)
		r.With(handler.requireAdmin).Delete("/", handler.DeleteContract)
		r.Get("/document", handler.DownloadDocument)
		r.With(handler.requireAdmin).Post("/document", handler.UploadDocument)
	})
}

func (h *ContractHandler) ListContracts(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.contractService.List(r.Context(), offset, limit)
	if err != nil {
		h.logger.WithError(err).Error("failed to list contracts")
		writeError(w, http.StatusInternalServerError, "failed to list contracts")
		return
	}

	writeJSON(w, http.StatusOK, ContractListResponse{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *ContractHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	id, err := parseContractID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contract, err := h.contractService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contract not found")
			return
		}
		h.logger.WithError(err).Error("failed to fetch contract")
		writeError(w, http.StatusInternalServerError, "failed to fetch contract")
		return
	}

	writeJSON(w, http.StatusOK, contract)
}

func (h *ContractHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	acting, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, err := parseContractBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.contractService.Create(r.Context(), types.Contract{
		Title:        req.Title,
		Counterparty: req.Counterparty,
		Amount:       req.Amount,
		StartsOn:     req.StartsOn,
		EndsOn:       req.EndsOn,
		Status:       req.Status,
		CreatedBy:    acting.ID,
	})
	if err != nil {
		h.logger.WithError(err).Error("failed to create contract")
		writeError(w, http.StatusInternalServerError, "failed to create contract")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *ContractHandler) UpdateContract(w http.ResponseWriter, r *http.Request) {
	id, err := parseContractID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := parseContractBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.contractService.Update(r.Context(), types.Contract{
		ID:           id,
		Title:        req.Title,
		Counterparty: req.Counterparty,
		Amount:       req.Amount,
		StartsOn:     req.StartsOn,
		EndsOn:       req.EndsOn,
		Status:       req.Status,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contract not found")
			return
		}
		h.logger.WithError(err).Error("failed to update contract")
		writeError(w, http.StatusInternalServerError, "failed to update contract")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *ContractHandler) DeleteContract(w http.ResponseWriter, r *http.Request) {
	id, err := parseContractID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.contractService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contract not found")
			return
		}
		h.logger.WithError(err).Error("failed to delete contract")
		writeError(w, http.StatusInternalServerError, "failed to delete contract")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadDocument stores the signed contract document in object storage
// and records its key on the contract.
func (h *ContractHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := parseContractID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.contractService.Get(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contract not found")
			return
		}
		h.logger.WithError(err).Error("failed to fetch contract")
		writeError(w, http.StatusInternalServerError, "failed to fetch contract")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(formFieldDocument)
	if err != nil {
		writeError(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer file.Close()

	data, err := readLimited(file, maxDocumentBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("contracts/%d/document", id)
	if err := h.documents.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		h.logger.WithError(err).Error("failed to store contract document")
		writeError(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	if err := h.contractService.SetDocumentKey(r.Context(), id, key); err != nil {
		h.logger.WithError(err).Error("failed to record document key")
		writeError(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "document uploaded"})
}

// DownloadDocument streams the stored contract document back.
func (h *ContractHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := parseContractID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contract, err := h.contractService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contract not found")
			return
		}
		h.logger.WithError(err).Error("failed to fetch contract")
		writeError(w, http.StatusInternalServerError, "failed to fetch contract")
		return
	}

	if contract.DocumentKey == "" {
		writeError(w, http.StatusNotFound, "no document uploaded")
		return
	}

	reader, err := h.documents.Get(r.Context(), contract.DocumentKey)
	if err != nil {
		h.logger.WithError(err).Error("failed to open contract document")
		writeError(w, http.StatusInternalServerError, "failed to fetch document")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

// requireAdmin gates mutations on the role the Access Guard resolved.
func (h *ContractHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acting, err := principalFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if acting.Role != types.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ContractUpsertRequest is the JSON payload for create and update.
type ContractUpsertRequest struct {
	Title        string    `json:"title"`
	Counterparty string    `json:"counterparty"`
	Amount       int64     `json:"amount"`
	StartsOn     time.Time `json:"starts_on"`
	EndsOn       time.Time `json:"ends_on"`
	Status       string    `json:"status"`
}

// ContractListResponse is the paginated list response payload.
type ContractListResponse struct {
	Items []types.Contract `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Total int              `json:"total"`
}

func parseContractBody(r *http.Request) (ContractUpsertRequest, error) {
	var req ContractUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ContractUpsertRequest{}, errors.New("invalid request")
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Counterparty = strings.TrimSpace(req.Counterparty)
	req.Status = strings.TrimSpace(req.Status)

	if req.Title == "" {
		return ContractUpsertRequest{}, errors.New("title is required")
	}
	if req.Counterparty == "" {
		return ContractUpsertRequest{}, errors.New("counterparty is required")
	}
	if req.StartsOn.IsZero() {
		return ContractUpsertRequest{}, errors.New("starts_on is required")
	}
	if req.Status == "" {
		req.Status = "draft"
	}
	return req, nil
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseContractID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "contractID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid contract id")
	}
	return id, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
