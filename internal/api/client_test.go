package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusErrorClassification(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		fatal bool
	}{
		{"bad request is fatal", 400, true},
		{"unauthorized is fatal", 401, true},
		{"not found is fatal", 404, true},
		{"unprocessable is fatal", 422, true},
		{"request timeout is transient", 408, false},
		{"rate limit is transient", 429, false},
		{"server error is transient", 500, false},
		{"bad gateway is transient", 502, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &StatusError{StatusCode: tt.code, Message: "x"}
			assert.Equal(t, tt.fatal, err.Fatal())
		})
	}
}

func TestJobStatus(t *testing.T) {
	t.Run("Should parse a processing response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/reports/job-1/status", r.URL.Path)
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":   "processing",
				"progress": 40,
			})
		}))
		defer server.Close()

		client := NewClient(server.URL)
		client.SetToken("tok-1")

		status, err := client.JobStatus(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, "processing", status.Status)
		require.NotNil(t, status.Progress)
		assert.Equal(t, 40, *status.Progress)
	})

	t.Run("Should surface a not-found as a fatal StatusError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "unknown job"})
		}))
		defer server.Close()

		client := NewClient(server.URL)

		_, err := client.JobStatus(context.Background(), "missing")
		require.Error(t, err)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.True(t, statusErr.Fatal())
		assert.Contains(t, statusErr.Message, "unknown job")
	})

	t.Run("Should return a plain error on transport failure", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1")

		_, err := client.JobStatus(context.Background(), "job-1")
		require.Error(t, err)

		var statusErr *StatusError
		assert.False(t, errors.As(err, &statusErr), "transport failures are not StatusErrors")
	})
}

func TestSubmitReport(t *testing.T) {
	t.Run("Should upload multipart and return the job ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/reports", r.URL.Path)

			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "pdf", r.FormValue("type_hint"))

			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			assert.Equal(t, "bloodwork.pdf", header.Filename)

			json.NewEncoder(w).Encode(map[string]string{"job_id": "job-42"})
		}))
		defer server.Close()

		client := NewClient(server.URL)

		jobID, err := client.SubmitReport(context.Background(), "bloodwork.pdf", []byte("%PDF-1.4"), "pdf")
		require.NoError(t, err)
		assert.Equal(t, "job-42", jobID)
	})

	t.Run("Should reject a response without a job ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{})
		}))
		defer server.Close()

		client := NewClient(server.URL)

		_, err := client.SubmitReport(context.Background(), "scan.jpg", []byte{0xff}, "image")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job_id")
	})
}

func TestGetReport(t *testing.T) {
	t.Run("Should parse parameters and synthesis", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":    "job-7",
				"title": "CBC Panel",
				"parameters": []map[string]string{
					{"name": "Hemoglobin", "value": "14.1", "unit": "g/dL", "flag": "normal"},
				},
				"synthesis": "All values are within reference ranges.",
			})
		}))
		defer server.Close()

		client := NewClient(server.URL)

		report, err := client.GetReport(context.Background(), "job-7")
		require.NoError(t, err)
		assert.Equal(t, "CBC Panel", report.Title)
		require.Len(t, report.Parameters, 1)
		assert.Equal(t, "Hemoglobin", report.Parameters[0].Name)
		assert.NotEmpty(t, report.Synthesis)
	})
}
