package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/forms"
	"github.com/Zachkp/portfolio/internal/relay"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/visits"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type relayHit struct {
	contentType string
	json        map[string]string
	fields      map[string]string
	fileName    string
	fileData    []byte
	hasFile     bool
}

// fakeRelay stands in for the third-party form relay.
type fakeRelay struct {
	*httptest.Server

	mu     sync.Mutex
	status int
	hits   []relayHit

	// when set, requests signal entered and wait for release
	entered chan struct{}
	release chan struct{}
}

func newFakeRelay(t *testing.T, status int) *fakeRelay {
	t.Helper()
	fr := &fakeRelay{status: status}
	fr.Server = httptest.NewServer(http.HandlerFunc(fr.serve))
	t.Cleanup(fr.Close)
	return fr
}

func (fr *fakeRelay) serve(w http.ResponseWriter, r *http.Request) {
	if fr.entered != nil {
		fr.entered <- struct{}{}
		<-fr.release
	}
	hit := relayHit{contentType: r.Header.Get("Content-Type")}
	if strings.HasPrefix(hit.contentType, "application/json") {
		_ = json.NewDecoder(r.Body).Decode(&hit.json)
	} else if err := r.ParseMultipartForm(1 << 20); err == nil {
		hit.fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			hit.fields[k] = v[0]
		}
		if fhs := r.MultipartForm.File[forms.PartAttachment]; len(fhs) > 0 {
			hit.hasFile = true
			hit.fileName = fhs[0].Filename
			if f, err := fhs[0].Open(); err == nil {
				hit.fileData, _ = io.ReadAll(f)
				f.Close()
			}
		}
	}

	fr.mu.Lock()
	fr.hits = append(fr.hits, hit)
	status := fr.status
	fr.mu.Unlock()
	w.WriteHeader(status)
}

func (fr *fakeRelay) recorded() []relayHit {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return append([]relayHit(nil), fr.hits...)
}

type testEnv struct {
	srv    *Server
	relay  *fakeRelay
	visits *visits.Store
}

func newTestEnv(t *testing.T, relayStatus int, tweak func(*config.Config)) *testEnv {
	t.Helper()
	fr := newFakeRelay(t, relayStatus)
	cfg := &config.Config{
		Environment:       "test",
		Port:              "8080",
		ContactEndpoint:   fr.URL + "/f/contact",
		InquiryEndpoint:   fr.URL + "/f/hire",
		ResumeAssetURL:    "https://assets.example/resume.pdf",
		ProfilePhotoURL:   "https://assets.example/profile.jpg",
		ContactResetAfter: forms.DefaultContactResetAfter,
		InquiryResetAfter: forms.DefaultInquiryResetAfter,
		SessionTTL:        time.Hour,
		VisitRetention:    365 * 24 * time.Hour,

		MaxAttachmentBytes: 10 << 20,
	}
	if tweak != nil {
		tweak(cfg)
	}

	sender := relay.NewWithHTTPClient(fr.Client())
	sessions := session.NewStore(cfg.SessionTTL, session.NewFactory(sender,
		cfg.ContactEndpoint, cfg.InquiryEndpoint,
		[]forms.Option{forms.WithResetAfter(cfg.ContactResetAfter)},
		[]forms.Option{forms.WithResetAfter(cfg.InquiryResetAfter)},
	))
	t.Cleanup(sessions.Close)

	env := &testEnv{relay: fr}
	if cfg.DatabasePath != "" {
		vs, err := visits.Open(context.Background(), cfg.DatabasePath)
		require.NoError(t, err)
		t.Cleanup(func() { vs.Close() })
		env.visits = vs
	}

	resume, err := content.Load()
	require.NoError(t, err)
	srv, err := New(Deps{Config: cfg, Sessions: sessions, Visits: env.visits, Resume: resume})
	require.NoError(t, err)
	env.srv = srv
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	return req
}

func postMultipart(t *testing.T, path string, values map[string]string, fileName string, fileData []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		part, err := w.CreateFormFile(attachmentInput, fileName)
		require.NoError(t, err)
		_, err = part.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("HX-Request", "true")
	return req
}

func parseHTML(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	return doc
}

func visitorCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == visitorCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", visitorCookie)
	return nil
}
