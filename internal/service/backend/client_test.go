package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"invoicecam/internal/dto"
)

func TestClientDetect(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != UploadPath {
			t.Errorf("Expected %s, got %s", UploadPath, r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("Failed to parse multipart form: %v", err)
		}
		if len(r.MultipartForm.File) != 1 || len(r.MultipartForm.Value) != 0 {
			t.Errorf("Expected exactly one file field, got %d files and %d values",
				len(r.MultipartForm.File), len(r.MultipartForm.Value))
		}
		file, header, err := r.FormFile(FrameField)
		if err != nil {
			t.Fatalf("Expected %s field: %v", FrameField, err)
		}
		defer file.Close()
		if header.Filename != FrameFilename {
			t.Errorf("Expected filename %s, got %s", FrameFilename, header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != string(frame) {
			t.Errorf("Frame bytes were not forwarded unchanged")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"detections":[{"bbox":{"x1":10,"y1":20,"x2":110,"y2":60},"confidence":0.93,"class":"tonaj","text":"3250"}],"tonaj":3250}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	result, err := client.Detect(context.Background(), frame)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if result.Tonaj == nil || *result.Tonaj != 3250 {
		t.Fatalf("Expected tonaj 3250, got %v", result.Tonaj)
	}
	if len(result.Detections) != 1 {
		t.Fatalf("Expected 1 detection, got %d", len(result.Detections))
	}
	det := result.Detections[0]
	if det.Class != "tonaj" || det.Text != "3250" || det.BBox.X2 != 110 || det.Confidence != 0.93 {
		t.Errorf("Unexpected detection: %+v", det)
	}
	if det.BBox.Width() != 100 || det.BBox.Height() != 40 {
		t.Errorf("Unexpected box size %vx%v", det.BBox.Width(), det.BBox.Height())
	}
}

func TestClientDetect_NullTonaj(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detections":[],"tonaj":null}`))
	}))
	defer server.Close()

	result, err := NewClient(server.URL, time.Second).Detect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if result.Tonaj != nil {
		t.Errorf("Expected nil tonaj, got %v", *result.Tonaj)
	}
}

func TestClientDetect_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"model not loaded"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Detect(context.Background(), []byte{1})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || !apiErr.IsServerError() {
		t.Errorf("Unexpected status %d", apiErr.StatusCode)
	}
	if apiErr.Message != "model not loaded" {
		t.Errorf("Expected backend message, got %q", apiErr.Message)
	}
}

func TestClientDetect_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Detect(context.Background(), []byte{1})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestClientCreateInvoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != InvoicesPath {
			t.Errorf("Expected %s, got %s", InvoicesPath, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %s", ct)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode body: %v", err)
		}
		if body["kamyon_plaka"] != "34 ABC 123" {
			t.Errorf("Unexpected plate %v", body["kamyon_plaka"])
		}
		if body["tonaj"] != float64(3250) {
			t.Errorf("Unexpected tonaj %v", body["tonaj"])
		}
		if body["tarih"] != "2025-03-14T09:30:00Z" {
			t.Errorf("Unexpected tarih %v", body["tarih"])
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":17,"message":"ok"}`))
	}))
	defer server.Close()

	created, err := NewClient(server.URL, time.Second).CreateInvoice(context.Background(), dto.InvoiceRequest{
		KamyonPlaka: "34 ABC 123",
		Tonaj:       3250,
		Tarih:       "2025-03-14T09:30:00Z",
	})
	if err != nil {
		t.Fatalf("CreateInvoice failed: %v", err)
	}
	if created.RemoteID != "17" {
		t.Errorf("Expected remote id 17, got %q", created.RemoteID)
	}
}

func TestClientCreateInvoice_ErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"message field", `{"message":"plate not registered"}`, "plate not registered"},
		{"error field", `{"error":"bad payload"}`, "bad payload"},
		{"no json", `oops`, "invoice could not be saved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, time.Second).CreateInvoice(context.Background(), dto.InvoiceRequest{})

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected APIError, got %v", err)
			}
			if apiErr.Message != tt.expected {
				t.Errorf("Expected message %q, got %q", tt.expected, apiErr.Message)
			}
		})
	}
}

func TestClientDetect_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewClient(server.URL, time.Second).Detect(ctx, []byte{1}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
