package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ogurasousui/employer-onboarding/internal/core/employer"
)

const dateLayout = "2006-01-02"

type createEmployerRequest struct {
	FirstName    string    `json:"firstName" validate:"max=100"`
	LastName     string    `json:"lastName" validate:"max=100"`
	Email        string    `json:"email" validate:"max=254"`
	TaxDocument  string    `json:"taxDocument" validate:"max=32"`
	BirthDate    string    `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	ManagerID    string    `json:"managerId" validate:"omitempty,uuid"`
	Type         roleField `json:"type"`
	PhoneNumbers []string  `json:"phoneNumbers" validate:"max=10,dive,required,max=32"`
	Password     string    `json:"password" validate:"max=128"`
}

type updateEmployerRequest struct {
	FirstName    string    `json:"firstName" validate:"max=100"`
	LastName     string    `json:"lastName" validate:"max=100"`
	Email        string    `json:"email" validate:"max=254"`
	TaxDocument  string    `json:"taxDocument" validate:"max=32"`
	BirthDate    string    `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	ManagerID    string    `json:"managerId" validate:"omitempty,uuid"`
	Type         roleField `json:"type"`
	PhoneNumbers []string  `json:"phoneNumbers" validate:"max=10,dive,required,max=32"`
	Avatar       *string   `json:"avatar" validate:"omitempty,url"`
}

// roleField は役割を名前の文字列と数値のどちらでも受け付けます。
type roleField string

func (f *roleField) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = roleField(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = roleField(n.String())
	return nil
}

type updatePasswordRequest struct {
	Password string `json:"password" validate:"max=128"`
}

type resultResponse struct {
	EmployerID string `json:"employerId"`
}

type phoneResponse struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

type employerResponse struct {
	ID           string          `json:"id"`
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	TaxDocument  string          `json:"taxDocument"`
	Email        string          `json:"email"`
	BirthDate    string          `json:"birthDate"`
	Age          int             `json:"age"`
	Type         string          `json:"type"`
	ManagerID    *string         `json:"managerId"`
	ExternalID   *string         `json:"externalId"`
	Avatar       *string         `json:"avatar"`
	PhoneNumbers []phoneResponse `json:"phoneNumbers"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    *time.Time      `json:"updatedAt"`
}

type pageResponse struct {
	Items      []employerResponse `json:"items"`
	TotalItems int                `json:"totalItems"`
	PageNumber int                `json:"pageNumber"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
}

// CreateEmployer は POST /api/employers を処理します。
func (h *Handler) CreateEmployer(w http.ResponseWriter, r *http.Request) {
	var req createEmployerRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.invalidRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.invalidRequest(w, r, err)
		return
	}

	result, err := h.service.Create(r.Context(), employer.CreateInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		TaxDocument: req.TaxDocument,
		BirthDate:   parseDate(req.BirthDate),
		Role:        parseRole(string(req.Type)),
		ManagerID:   req.ManagerID,
		Phones:      req.PhoneNumbers,
		Password:    req.Password,
	})
	h.writeResult(w, r, result, err)
}

// UpdateEmployer は PUT /api/employers/{id} を処理します。
func (h *Handler) UpdateEmployer(w http.ResponseWriter, r *http.Request) {
	var req updateEmployerRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.invalidRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.invalidRequest(w, r, err)
		return
	}

	result, err := h.service.Update(r.Context(), employer.UpdateInput{
		ID:          chi.URLParam(r, "id"),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		TaxDocument: req.TaxDocument,
		BirthDate:   parseDate(req.BirthDate),
		Role:        parseRole(string(req.Type)),
		ManagerID:   req.ManagerID,
		Phones:      req.PhoneNumbers,
		Avatar:      req.Avatar,
	})
	h.writeResult(w, r, result, err)
}

// DeleteEmployer は DELETE /api/employers/{id} を処理します。
func (h *Handler) DeleteEmployer(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	h.writeResult(w, r, result, err)
}

// UpdatePassword は PATCH /api/employers/{id}/password を処理します。
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.invalidRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.invalidRequest(w, r, err)
		return
	}

	result, err := h.service.UpdatePassword(r.Context(), employer.UpdatePasswordInput{
		ID:       chi.URLParam(r, "id"),
		Password: req.Password,
	})
	h.writeResult(w, r, result, err)
}

// GetEmployer は GET /api/employers/{id} を処理します。存在しない場合は 204 を返します。
func (h *Handler) GetEmployer(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if found == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.success(w, r, nil, toEmployerResponse(found, time.Now()))
}

// ListEmployers は GET /api/employers を処理します。該当がない場合は 204 を返します。
func (h *Handler) ListEmployers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	pageNumber, okNumber := queryInt(query.Get("pageNumber"))
	pageSize, okSize := queryInt(query.Get("pageSize"))
	if !okNumber || !okSize {
		h.badRequest(w, r, []string{"pageNumber and pageSize must be integers"})
		return
	}

	in := employer.ListInput{PageNumber: pageNumber, PageSize: pageSize}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := employer.Status(strings.ToLower(raw))
		in.Status = &status
	}

	page, err := h.service.List(r.Context(), in)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if page == nil {
		h.rejected(w, r)
		return
	}
	if len(page.Items) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	now := time.Now()
	items := make([]employerResponse, 0, len(page.Items))
	for _, e := range page.Items {
		items = append(items, toEmployerResponse(e, now))
	}
	h.success(w, r, nil, pageResponse{
		Items:      items,
		TotalItems: page.TotalItems,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	})
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, result *employer.Result, err error) {
	switch {
	case err != nil:
		h.internalServerError(w, r, err)
	case result == nil:
		h.rejected(w, r)
	default:
		h.success(w, r, []string{result.Message}, resultResponse{EmployerID: result.ID})
	}
}

func toEmployerResponse(e *employer.Employer, now time.Time) employerResponse {
	phones := make([]phoneResponse, 0, len(e.Phones))
	for _, p := range e.Phones {
		phones = append(phones, phoneResponse{ID: p.ID, Number: p.Number})
	}
	return employerResponse{
		ID:           e.ID,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		TaxDocument:  e.TaxDocument,
		Email:        e.Email,
		BirthDate:    e.BirthDate.Format(dateLayout),
		Age:          e.Age(now),
		Type:         e.Role.String(),
		ManagerID:    e.ManagerID,
		ExternalID:   e.ExternalID,
		Avatar:       e.Avatar,
		PhoneNumbers: phones,
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// parseDate は YYYY-MM-DD を UTC の日付に変換します。空文字はゼロ値です。
func parseDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseRole は役割名または数値を Role に変換します。
// 空文字は Employee、解釈できない値は範囲外の Role として業務ルールに判定させます。
func parseRole(raw string) employer.Role {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return employer.RoleEmployee
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return employer.Role(n)
	}
	role, err := employer.ParseRole(raw)
	if err != nil {
		return employer.Role(-1)
	}
	return role
}

func queryInt(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
