package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"aquaview/internal/types"
)

func TestJSONWritesEnvelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	JSON(rec, req, http.StatusOK, APIResponse{
		Data: map[string]string{"hello": "world"},
		Meta: &types.ResponseMeta{LastUpdated: &now},
	})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp struct {
		Data map[string]string `json:"data"`
		Meta struct {
			LastUpdated time.Time `json:"last_updated"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data["hello"] != "world" {
		t.Errorf("data = %v", resp.Data)
	}
	if !resp.Meta.LastUpdated.Equal(now) {
		t.Errorf("last_updated = %v", resp.Meta.LastUpdated)
	}
}

func TestErrorMapsAppError(t *testing.T) {
	cases := []struct {
		name       string
		code       types.ErrorCode
		wantStatus int
	}{
		{"not found", types.ErrCodeNotFoundAlert, http.StatusNotFound},
		{"snapshot unavailable", types.ErrCodeSnapshotUnavailable, http.StatusServiceUnavailable},
		{"upstream failure", types.ErrCodeAckNotApplied, http.StatusBadGateway},
		{"validation", types.ErrCodeValidationInvalidJSON, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req = req.WithContext(types.WithRequestID(req.Context(), "req-123"))
			rec := httptest.NewRecorder()

			Error(rec, req, types.NewAppError(tc.code, "boom", nil))

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}

			var resp APIErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Error.Code != string(tc.code) {
				t.Errorf("code = %q, want %q", resp.Error.Code, tc.code)
			}
			if resp.Error.RequestID != "req-123" {
				t.Errorf("request_id = %q", resp.Error.RequestID)
			}
		})
	}
}

func TestErrorGenericDoesNotLeak(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	Error(rec, req, errors.New("pq: connection refused on 10.0.0.7"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.7") {
		t.Error("internal error detail leaked to the client")
	}

	var resp APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("code = %q", resp.Error.Code)
	}
}

func TestDecodeJSON(t *testing.T) {
	type ackBody struct {
		Note string `json:"nota"`
	}

	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"nota":"revisado en sitio"}`, false},
		{"empty body", ``, true},
		{"malformed", `{"nota":`, true},
		{"unknown field", `{"nota":"x","extra":true}`, true},
		{"wrong type", `{"nota":42}`, true},
		{"two values", `{"nota":"a"}{"nota":"b"}`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			var dst ackBody
			err := DecodeJSON(rec, req, &dst)

			if tc.wantErr {
				if err == nil {
					t.Fatal("expected decode error")
				}
				var appErr *types.AppError
				if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeValidationInvalidJSON {
					t.Errorf("error = %v, want validation_invalid_json", err)
				}
			} else if err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
		})
	}
}

func TestDecodeJSONSizeLimit(t *testing.T) {
	big := `{"nota":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(big))
	rec := httptest.NewRecorder()

	var dst struct {
		Note string `json:"nota"`
	}
	if err := DecodeJSON(rec, req, &dst); err == nil {
		t.Fatal("expected error for oversized body")
	}
}
