package extraction

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_Extract_Success(t *testing.T) {
	var gotPath, gotUser, gotFile, gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotFile = string(data)
		gotFilename = header.Filename

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Success","result":[{"input":"inv.pdf","prediction":[{"label":"invoice_number","ocr_text":"INV-1"}]}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/", ModelID: "model-123", APIKey: "secret", AuthScheme: "basic"})
	results, err := c.Extract(context.Background(), Document{Filename: "inv.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if gotPath != "/model-123/LabelFile/" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUser != "secret" {
		t.Errorf("basic auth user = %q, want API key", gotUser)
	}
	if gotFile != "%PDF-1.4" || gotFilename != "inv.pdf" {
		t.Errorf("uploaded file = %q (%q)", gotFile, gotFilename)
	}
	if len(results) != 1 || results[0].Prediction[0].OCRText != "INV-1" {
		t.Errorf("results = %+v", results)
	}
}

func TestClient_Extract_BearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"result":[]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, ModelID: "m", APIKey: "tok", AuthScheme: "bearer"})
	if _, err := c.Extract(context.Background(), Document{Data: []byte("x")}); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestClient_Extract_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"non-200", http.StatusUnauthorized, `{"message":"bad key"}`, ErrInvalidResponse},
		{"missing result", http.StatusOK, `{"message":"Success"}`, ErrInvalidResponse},
		{"not json", http.StatusOK, `<html>`, ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(ClientConfig{BaseURL: srv.URL, ModelID: "m"})
			_, err := c.Extract(context.Background(), Document{Data: []byte("x")})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Extract() error = %v, want %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrTimeout) {
				t.Error("invalid response must not look like a timeout")
			}
		})
	}
}

func TestClient_Extract_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(ClientConfig{BaseURL: srv.URL, ModelID: "m", Timeout: 50 * time.Millisecond})
	_, err := c.Extract(context.Background(), Document{Data: []byte("x")})

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Extract() error = %v, want ErrTimeout", err)
	}
	var extErr *Error
	if !errors.As(err, &extErr) || extErr.Kind != KindTimeout {
		t.Errorf("error kind = %+v", extErr)
	}
}

func TestClient_Extract_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{BaseURL: url, ModelID: "m"})
	_, err := c.Extract(context.Background(), Document{Data: []byte("x")})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Extract() error = %v, want ErrTransport", err)
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct{ in, want string }{
		{"```json\n{\"result\":[]}\n```", `{"result":[]}`},
		{"Here you go: {\"result\":[]} thanks", `{"result":[]}`},
		{`[{"prediction":[]}]`, `{"result":[{"prediction":[]}]}`},
	}
	for _, tt := range tests {
		if got := cleanModelJSON(tt.in); got != tt.want {
			t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestError_Message(t *testing.T) {
	err := newError(KindEmptyResult, "op", nil)
	if !strings.Contains(err.Error(), ErrEmptyResult.Error()) {
		t.Errorf("Error() = %q", err.Error())
	}
}
