package capapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reelcap/internal/config"
	"reelcap/internal/logging"
	"reelcap/internal/services"
	"reelcap/internal/services/capapi"
)

func newClient(t *testing.T, handler http.HandlerFunc, ttl time.Duration) *capapi.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return capapi.NewClient(server.URL+"/", "tok", server.Client(), ttl, logging.NewNop())
}

func TestCheckSessionCachesSuccess(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/auth/session" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		cookie, err := r.Cookie("next-auth.session-token")
		if err != nil || cookie.Value != "tok" {
			t.Errorf("expected session cookie, got %v %v", cookie, err)
		}
		_, _ = io.WriteString(w, `{"user":{"id":"u1","email":"a@b.c"}}`)
	}, time.Minute)

	for range 3 {
		session, err := client.CheckSession(context.Background())
		if err != nil {
			t.Fatalf("CheckSession: %v", err)
		}
		if session.User.ID != "u1" {
			t.Fatalf("unexpected user %+v", session.User)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one request thanks to caching, got %d", calls.Load())
	}
}

func TestCheckSessionWithoutUser(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}, 0)
	_, err := client.CheckSession(context.Background())
	if !errors.Is(err, services.ErrAuthenticationRequired) {
		t.Fatalf("expected authentication required, got %v", err)
	}
}

func TestCheckSessionWithoutToken(t *testing.T) {
	client := capapi.NewClient("https://example.invalid", "", nil, 0, nil)
	_, err := client.CheckSession(context.Background())
	if !errors.Is(err, services.ErrAuthenticationRequired) {
		t.Fatalf("expected authentication required, got %v", err)
	}
}

func TestUnauthorizedMapsToAuthenticationRequired(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, time.Minute)
	_, err := client.CreateArtifact(context.Background())
	if !errors.Is(err, services.ErrAuthenticationRequired) {
		t.Fatalf("expected authentication required, got %v", err)
	}
}

func TestMultipartCalls(t *testing.T) {
	var completeBody map[string]any
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/desktop/video/create":
			if r.Method != http.MethodGet {
				t.Errorf("create method %s", r.Method)
			}
			_, _ = io.WriteString(w, `{"id":"vid-1"}`)
		case "/api/upload/multipart/initiate":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["videoId"] != "vid-1" || body["contentType"] != "video/webm" {
				t.Errorf("unexpected initiate body %v", body)
			}
			_, _ = io.WriteString(w, `{"uploadId":"up-1"}`)
		case "/api/upload/multipart/presign-part":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["partNumber"] != float64(2) || body["uploadId"] != "up-1" {
				t.Errorf("unexpected presign body %v", body)
			}
			_, _ = io.WriteString(w, `{"presignedUrl":"https://bucket/part2"}`)
		case "/api/upload/multipart/complete":
			_ = json.NewDecoder(r.Body).Decode(&completeBody)
			_, _ = io.WriteString(w, `{"location":"x"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}, 0)

	ctx := context.Background()
	id, err := client.CreateArtifact(ctx)
	if err != nil || id != "vid-1" {
		t.Fatalf("CreateArtifact = %q, %v", id, err)
	}
	uploadID, err := client.InitiateMultipart(ctx, id, "video/webm")
	if err != nil || uploadID != "up-1" {
		t.Fatalf("InitiateMultipart = %q, %v", uploadID, err)
	}
	presigned, err := client.PresignPart(ctx, id, uploadID, 2)
	if err != nil || presigned != "https://bucket/part2" {
		t.Fatalf("PresignPart = %q, %v", presigned, err)
	}
	parts := []capapi.CompletedPart{{PartNumber: 1, ETag: "abc", Size: 10}}
	if err := client.CompleteMultipart(ctx, id, uploadID, parts); err != nil {
		t.Fatalf("CompleteMultipart: %v", err)
	}
	list, ok := completeBody["parts"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("unexpected complete body %v", completeBody)
	}
	first := list[0].(map[string]any)
	if first["partNumber"] != float64(1) || first["etag"] != "abc" || first["size"] != float64(10) {
		t.Fatalf("unexpected part payload %v", first)
	}
	if got := client.ShareURL(id); !strings.HasSuffix(got, "/s/vid-1") {
		t.Fatalf("unexpected share url %q", got)
	}
}

func TestCompleteRejectionIsIncompleteUpload(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "part 2 missing", http.StatusConflict)
	}, 0)
	err := client.CompleteMultipart(context.Background(), "vid", "up", nil)
	if !errors.Is(err, services.ErrIncompleteUpload) {
		t.Fatalf("expected incomplete upload, got %v", err)
	}
	if !strings.Contains(err.Error(), "part 2 missing") {
		t.Fatalf("expected server message in error, got %v", err)
	}
}

func TestServerErrorIsNetworkFailure(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, 0)
	_, err := client.InitiateMultipart(context.Background(), "vid", "video/webm")
	if !errors.Is(err, services.ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
}

func TestPutPartStripsETagQuotes(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "video/webm" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		received, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"e-1"`)
	}))
	defer server.Close()

	client := capapi.NewClient("https://unused", "tok", server.Client(), 0, nil)
	etag, err := client.PutPart(context.Background(), server.URL+"/part", strings.NewReader("hello"), 5, "video/webm")
	if err != nil {
		t.Fatalf("PutPart: %v", err)
	}
	if etag != "e-1" {
		t.Fatalf("expected quotes stripped, got %q", etag)
	}
	if string(received) != "hello" {
		t.Fatalf("unexpected body %q", received)
	}
}

func TestPutPartMissingETag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
	}))
	defer server.Close()

	client := capapi.NewClient("https://unused", "tok", server.Client(), 0, nil)
	_, err := client.PutPart(context.Background(), server.URL, strings.NewReader("x"), 1, "")
	if !errors.Is(err, services.ErrMissingETag) {
		t.Fatalf("expected missing etag, got %v", err)
	}
}

func TestPutPartOutlastsRequestTimeout(t *testing.T) {
	var slowJSON atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			_, _ = io.Copy(io.Discard, r.Body)
			time.Sleep(1500 * time.Millisecond)
			w.Header().Set("ETag", `"slow-1"`)
		default:
			if slowJSON.Load() {
				time.Sleep(1500 * time.Millisecond)
			}
			_, _ = io.WriteString(w, `{"id":"vid-1"}`)
		}
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.API.BaseURL = server.URL
	cfg.API.SessionToken = "tok"
	cfg.API.RequestTimeout = 1
	client := capapi.New(&cfg, logging.NewNop())

	etag, err := client.PutPart(context.Background(), server.URL+"/part", strings.NewReader(strings.Repeat("x", 1024)), 1024, "video/webm")
	if err != nil {
		t.Fatalf("PutPart should not be bound by request_timeout: %v", err)
	}
	if etag != "slow-1" {
		t.Fatalf("unexpected etag %q", etag)
	}

	slowJSON.Store(true)
	if _, err := client.CreateArtifact(context.Background()); !errors.Is(err, services.ErrNetworkFailure) {
		t.Fatalf("expected JSON call to hit request_timeout, got %v", err)
	}
}
