// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/staticlift/internal/auth"
	"github.com/olegiv/staticlift/internal/blob"
	"github.com/olegiv/staticlift/internal/config"
	"github.com/olegiv/staticlift/internal/content"
	"github.com/olegiv/staticlift/internal/images"
	"github.com/olegiv/staticlift/internal/ssr"
	"github.com/olegiv/staticlift/internal/store"
	"github.com/olegiv/staticlift/internal/token"
)

const (
	testSecret   = "handler-test-secret-0123456789abcdef"
	testAdmin    = "admin@example.com"
	testPassword = "correct horse battery staple"
)

type testServer struct {
	router http.Handler
	cfg    *config.Config
	svc    *content.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "handler-test.db")
	db, err := store.NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	kv := store.NewKV(db)

	siteDir := t.TempDir()
	writeSiteFile(t, siteDir, "index.html", `<html><body><h1 data-cms="hero-title">Static title</h1></body></html>`)
	writeSiteFile(t, siteDir, "contact.html", `<html><body><p data-cms="footer-text">static footer</p></body></html>`)
	writeSiteFile(t, siteDir, filepath.Join("programmes", "sprints.html"), `<html><body><h2>Sprints</h2></body></html>`)
	writeSiteFile(t, siteDir, "style.css", "body{}")

	uploadsDir := t.TempDir()
	blobStore, err := blob.NewLocalStore(uploadsDir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:  testSecret,
		AdminUsers: []string{testAdmin},
		TokenTTL:   3600,
		SiteDir:    siteDir,
		UploadsDir: uploadsDir,
		AdminPasswordHashes: map[string]string{
			auth.SecretName(testAdmin): auth.HashPassword(testAdmin, testPassword),
		},
	}

	contentSvc := content.NewService(kv, content.DefaultHistoryRetention)
	imagesSvc := images.NewService(blobStore)
	injector := ssr.NewInjector(contentSvc, content.SharedPageID)

	return &testServer{
		router: NewRouter(cfg, kv, contentSvc, imagesSvc, injector),
		cfg:    cfg,
		svc:    contentSvc,
	}
}

func writeSiteFile(t *testing.T, siteDir, name, body string) {
	t.Helper()
	path := filepath.Join(siteDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func (ts *testServer) adminToken(t *testing.T) string {
	t.Helper()
	tok, err := token.Issue(testAdmin, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func (ts *testServer) do(t *testing.T, method, target, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestLoginSuccess(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "Admin@Example.com",
		"password": testPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	tok, _ := body["token"].(string)
	if tok == "" {
		t.Fatal("response has no token")
	}
	claims, err := token.Verify(tok, testSecret)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Email != testAdmin {
		t.Errorf("token identity = %q, want normalized %q", claims.Email, testAdmin)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)

	for name, creds := range map[string]map[string]string{
		"wrong password": {"email": testAdmin, "password": "nope"},
		"unknown user":   {"email": "ghost@example.com", "password": testPassword},
	} {
		rec := ts.do(t, http.MethodPost, "/api/auth/login", "", creds)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Identifiants invalides") {
			t.Errorf("%s: body = %q", name, rec.Body.String())
		}
	}
}

func TestHashEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/hash", "", map[string]string{
		"email":    "jane.doe@example.com",
		"password": "s3cret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["email"] != "jane.doe@example.com" {
		t.Errorf("email = %v, want normalized identity", body["email"])
	}
	if body["hash"] != auth.HashPassword("jane.doe@example.com", "s3cret") {
		t.Error("hash does not match deterministic derivation")
	}
	if body["secretName"] != "SLIFT_ADMIN_PASSWORD_HASH_JANE_DOE" {
		t.Errorf("secretName = %v", body["secretName"])
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	for _, target := range []string{"/api/content", "/api/content/index", "/api/images", "/api/debug/ssr"} {
		rec := ts.do(t, http.MethodGet, target, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s unauthenticated status = %d, want 401", target, rec.Code)
		}
	}
}

func TestContentRoundTripThroughAPI(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	rec := ts.do(t, http.MethodPut, "/api/content/programmes/sprints", tok, contentBody(map[string]string{
		"hero-title": "Nouveaux sprints",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %q", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/content/programmes/sprints", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, body %q", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["pageId"] != "programmes/sprints" {
		t.Errorf("pageId = %v, want slash-containing id preserved", body["pageId"])
	}
	record, _ := body["content"].(map[string]any)
	if record["hero-title"] != "Nouveaux sprints" {
		t.Errorf("content = %v", record)
	}
}

func TestContentUnknownPage(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	// Reads outside the catalog are not an error, they are just empty
	rec := ts.do(t, http.MethodGet, "/api/content/no-such-page", tok, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET unknown page status = %d, want 200", rec.Code)
	}
	record, _ := decodeBody(t, rec)["content"].(map[string]any)
	if len(record) != 0 {
		t.Errorf("content = %v, want empty", record)
	}

	rec = ts.do(t, http.MethodPut, "/api/content/no-such-page", tok, contentBody(map[string]string{"a": "b"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PUT unknown page status = %d, want 400", rec.Code)
	}
}

func TestContentPutRequiresContentField(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	rec := ts.do(t, http.MethodPut, "/api/content/index", tok, map[string]string{"hero-title": "bare record"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("PUT without content wrapper status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"content"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHistoryAndRestoreThroughAPI(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	if rec := ts.do(t, http.MethodPut, "/api/content/index", tok, contentBody(map[string]string{"hero-title": "v1"})); rec.Code != http.StatusOK {
		t.Fatalf("first PUT: %d", rec.Code)
	}
	// Distinct wall-clock milliseconds keep the snapshots apart
	time.Sleep(5 * time.Millisecond)
	if rec := ts.do(t, http.MethodPut, "/api/content/index", tok, contentBody(map[string]string{"hero-title": "v2"})); rec.Code != http.StatusOK {
		t.Fatalf("second PUT: %d", rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/content/index/history", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, body %q", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	versions, _ := body["versions"].([]any)
	if len(versions) != 1 {
		t.Fatalf("versions = %v, want one snapshot", body["versions"])
	}
	first, _ := versions[0].(map[string]any)
	ts64 := int64(first["timestamp"].(float64))

	time.Sleep(5 * time.Millisecond)
	rec = ts.do(t, http.MethodPost, "/api/content/index/restore/"+strconv.FormatInt(ts64, 10), tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore status = %d, body %q", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/api/content/index", tok, nil)
	record, _ := decodeBody(t, rec)["content"].(map[string]any)
	if record["hero-title"] != "v1" {
		t.Errorf("restored content = %v, want v1", record)
	}
}

// contentBody wraps a record the way the write endpoint expects it.
func contentBody(record map[string]string) map[string]any {
	return map[string]any{"content": record}
}

func chiRouterWithRSS(h *RSSHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/rss/{feed}", h.Get)
	return r
}

func TestRestoreMissingVersion(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	rec := ts.do(t, http.MethodPost, "/api/content/index/restore/123456", tok, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("restore absent version status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Version introuvable") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestContentPostWithoutRestoreSegment(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	rec := ts.do(t, http.MethodPost, "/api/content/index", tok, contentBody(map[string]string{"a": "b"}))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST without restore segment status = %d, want 405", rec.Code)
	}
}

func TestPagesListing(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	rec := ts.do(t, http.MethodGet, "/api/content", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	pages, _ := decodeBody(t, rec)["pages"].([]any)
	if len(pages) != len(content.Catalog()) {
		t.Errorf("pages = %d entries, want %d", len(pages), len(content.Catalog()))
	}
}

func TestSiteServingInjectsContent(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	if rec := ts.do(t, http.MethodPut, "/api/content/index", tok, contentBody(map[string]string{"hero-title": "Injected!"})); rec.Code != http.StatusOK {
		t.Fatalf("PUT: %d", rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ">Injected!</h1>") {
		t.Errorf("injected field missing from page:\n%s", rec.Body.String())
	}
	if rec.Header().Get("X-CMS-Injected") != "true" {
		t.Error("missing X-CMS-Injected header")
	}
	if rec.Header().Get("Cache-Control") != "no-cache, must-revalidate" {
		t.Errorf("Cache-Control = %q, want no-cache, must-revalidate", rec.Header().Get("Cache-Control"))
	}
}

func TestSiteServingPassthroughWithoutContent(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/contact", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /contact status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "static footer") {
		t.Errorf("static page body lost:\n%s", rec.Body.String())
	}
	if rec.Header().Get("X-CMS-Injected") != "" {
		t.Error("X-CMS-Injected set on untouched page")
	}
}

func TestSiteServingSharedContent(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	if rec := ts.do(t, http.MethodPut, "/api/content/_shared", tok, contentBody(map[string]string{"footer-text": "partout"})); rec.Code != http.StatusOK {
		t.Fatalf("PUT shared: %d", rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/contact.html", "", nil)
	if !strings.Contains(rec.Body.String(), ">partout</p>") {
		t.Errorf("shared field not injected:\n%s", rec.Body.String())
	}
}

func TestSiteServingStaticAsset(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/style.css", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /style.css status = %d", rec.Code)
	}
	if rec.Body.String() != "body{}" {
		t.Errorf("asset body = %q", rec.Body.String())
	}
}

func TestSiteServingRejectsTraversal(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/../go.mod", "", nil)
	if rec.Code == http.StatusOK {
		t.Error("path traversal served a file")
	}
}

func TestImagesUnavailableWithoutBackend(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	// Rebuild the router with no blob store
	injector := ssr.NewInjector(ts.svc, content.SharedPageID)
	dbPath := filepath.Join(t.TempDir(), "x.db")
	db, err := store.NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	router := NewRouter(ts.cfg, store.NewKV(db), ts.svc, images.NewService(nil), injector)

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Stockage d'images non configuré") {
		t.Errorf("body = %q", rec.Body.String())
	}

	// The public endpoint reports the same condition instead of a plain 404
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cms-images/123-x.png", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("serve without backend status = %d, want 503", rec.Code)
	}
}

func TestImageUploadAndServe(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	payload := pngPayload(t)
	req := httptest.NewRequest(http.MethodPost, "/api/images/upload?filename=logo.png", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %q", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	key, _ := body["key"].(string)
	if key == "" {
		t.Fatal("upload response has no key")
	}
	if body["url"] != "/cms-images/"+key {
		t.Errorf("url = %v", body["url"])
	}
	if body["type"] != "image/png" {
		t.Errorf("type = %v", body["type"])
	}

	serveRec := ts.do(t, http.MethodGet, "/cms-images/"+key, "", nil)
	if serveRec.Code != http.StatusOK {
		t.Fatalf("serve status = %d", serveRec.Code)
	}
	if cc := serveRec.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("Cache-Control = %q, want immutable caching", cc)
	}
	if serveRec.Body.Len() != len(payload) {
		t.Errorf("served %d bytes, want %d", serveRec.Body.Len(), len(payload))
	}
}

func TestImageUploadTooLarge(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.adminToken(t)

	for name, size := range map[string]int{
		"well over the cap": 6 << 20,
		"one byte over":     images.MaxUploadSize + 1,
	} {
		payload := bytes.Repeat([]byte{0xff}, size)
		req := httptest.NewRequest(http.MethodPost, "/api/images/upload?filename=big.jpg", bytes.NewReader(payload))
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Content-Type", "image/jpeg")
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Fichier trop volumineux") {
			t.Errorf("%s: body = %q", name, rec.Body.String())
		}
	}
}

func pngPayload(t *testing.T) []byte {
	t.Helper()
	// 1x1 transparent PNG
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
		0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
		0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
		0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
	}
}

func TestRSSProxy(t *testing.T) {
	feed := `<?xml version="1.0"?><rss version="2.0"><channel>
<item><title>Un</title><link>https://example.com/1</link><pubDate>Mon, 01 Jan 2026 00:00:00 GMT</pubDate></item>
<item><title>Deux</title><link>https://example.com/2</link><pubDate>Tue, 02 Jan 2026 00:00:00 GMT</pubDate></item>
<item><title>Trois</title><link>https://example.com/3</link><pubDate>Wed, 03 Jan 2026 00:00:00 GMT</pubDate></item>
</channel></rss>`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feed))
	}))
	defer upstream.Close()

	router := chiRouterWithRSS(NewRSSHandler(map[string]string{"blog": upstream.URL}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rss/blog", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	var body struct {
		Items []struct {
			Title string `json:"title"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(body.Items) != 2 {
		t.Fatalf("items = %d, want feed trimmed to 2", len(body.Items))
	}
	if body.Items[0].Title != "Un" || body.Items[1].Title != "Deux" {
		t.Errorf("items = %+v", body.Items)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestRSSUnknownFeed(t *testing.T) {
	router := chiRouterWithRSS(NewRSSHandler(nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rss/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["instance"] == "" {
		t.Error("missing instance id")
	}
	if body["database"] != "ok" {
		t.Errorf("database = %v", body["database"])
	}
}

func TestAPIMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodDelete, "/api/content", ts.adminToken(t), nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Méthode non autorisée") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestAPINotFoundIsJSON(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Ressource introuvable") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
