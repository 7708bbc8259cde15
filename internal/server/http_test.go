package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"StockKeeper/internal/inventory"
	"StockKeeper/internal/operator"
	"StockKeeper/internal/server"
	"StockKeeper/internal/snapshot"
)

const (
	jwtSecret    = "test-secret-test-secret-test-secret"
	password     = "password123"
	metricsToken = "metrics-token"
)

type fixture struct {
	ts    *httptest.Server
	path  string
	store *inventory.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	hash, err := operator.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	creds, err := operator.NewCredentials("", string(hash))
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}

	path := filepath.Join(t.TempDir(), inventory.DefaultPath)
	store := inventory.New(zap.NewNop())

	s := &server.Server{
		Log:      zap.NewNop(),
		Store:    store,
		Journal:  inventory.NewLines(100),
		Backend:  snapshot.NewFile(path),
		Operator: creds,
		JWT:      operator.NewTokenMaker(jwtSecret),
	}

	h := server.NewHandler(s, server.HTTPDeps{
		Log:            zap.NewNop(),
		Service:        "inventory",
		Registry:       prometheus.NewRegistry(),
		MetricsEnabled: true,
		MetricsToken:   metricsToken,
	})

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return fixture{ts: ts, path: path, store: store}
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func login(t *testing.T, f fixture) map[string]string {
	t.Helper()

	resp, raw := doJSON(t, http.MethodPost, f.ts.URL+"/auth/login", map[string]any{
		"name":     operator.DefaultName,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d body=%s", resp.StatusCode, raw)
	}

	var lr struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &lr); err != nil || lr.AccessToken == "" {
		t.Fatalf("decode login: %v body=%s", err, raw)
	}
	return map[string]string{"Authorization": "Bearer " + lr.AccessToken}
}

func TestServer_HappyPath(t *testing.T) {
	f := newFixture(t)
	auth := login(t, f)

	steps := []struct {
		path string
		body string
		want int
	}{
		{"/stock/add", `{"item":"apple","qty":10}`, http.StatusOK},
		{"/stock/add", `{"item":"banana","qty":-2}`, http.StatusOK},
		{"/stock/add", `{"item":123,"qty":"ten"}`, http.StatusBadRequest},
		{"/stock/add", `{"item":"apple","qty":1.5}`, http.StatusBadRequest},
		{"/stock/remove", `{"item":"apple","qty":3}`, http.StatusOK},
		{"/stock/remove", `{"item":"orange","qty":1}`, http.StatusNotFound},
	}
	for _, st := range steps {
		resp, raw := doJSON(t, http.MethodPost, f.ts.URL+st.path, st.body, auth)
		if resp.StatusCode != st.want {
			t.Fatalf("%s %s status=%d want=%d body=%s", st.path, st.body, resp.StatusCode, st.want, raw)
		}
	}

	{
		resp, raw := doJSON(t, http.MethodGet, f.ts.URL+"/items/apple", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get status=%d", resp.StatusCode)
		}
		var e inventory.Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			t.Fatalf("decode: %v body=%s", err, raw)
		}
		if e.Qty != 7 {
			t.Fatalf("apple=%d", e.Qty)
		}
	}

	{
		resp, raw := doJSON(t, http.MethodGet, f.ts.URL+"/items/orange", nil, nil)
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), `"qty":0`) {
			t.Fatalf("absent item status=%d body=%s", resp.StatusCode, raw)
		}
	}

	{
		_, raw := doJSON(t, http.MethodGet, f.ts.URL+"/items", nil, nil)
		if strings.TrimSpace(string(raw)) != `{"apple":7,"banana":-2}` {
			t.Fatalf("items=%s", raw)
		}
	}

	{
		_, raw := doJSON(t, http.MethodGet, f.ts.URL+"/low-stock", nil, nil)
		var lr struct {
			Threshold int      `json:"threshold"`
			Items     []string `json:"items"`
		}
		if err := json.Unmarshal(raw, &lr); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if lr.Threshold != inventory.DefaultLowStockThreshold || !reflect.DeepEqual(lr.Items, []string{"banana"}) {
			t.Fatalf("low-stock=%s", raw)
		}
	}

	{
		resp, raw := doJSON(t, http.MethodGet, f.ts.URL+"/report", nil, nil)
		if resp.Header.Get("Content-Type") != "text/plain; charset=utf-8" {
			t.Fatalf("content-type=%s", resp.Header.Get("Content-Type"))
		}
		if string(raw) != "Items Report\napple -> 7\nbanana -> -2\n" {
			t.Fatalf("report=%q", raw)
		}
	}

	{
		_, raw := doJSON(t, http.MethodGet, f.ts.URL+"/journal", nil, auth)
		var jr struct {
			Lines []string `json:"lines"`
		}
		if err := json.Unmarshal(raw, &jr); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(jr.Lines) != 2 || !strings.HasSuffix(jr.Lines[0], ": Added 10 of apple") {
			t.Fatalf("journal=%v", jr.Lines)
		}
	}
}

func TestServer_WritesRequireToken(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/stock/add", "/stock/remove", "/snapshot/save", "/snapshot/load"} {
		resp, raw := doJSON(t, http.MethodPost, f.ts.URL+path, `{"item":"apple","qty":1}`, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s status=%d body=%s", path, resp.StatusCode, raw)
		}
	}
	if f.store.Len() != 0 {
		t.Fatalf("store changed without auth")
	}
}

func TestServer_LoginRejectsBadPassword(t *testing.T) {
	f := newFixture(t)

	resp, _ := doJSON(t, http.MethodPost, f.ts.URL+"/auth/login", map[string]any{"password": "nope"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestServer_SnapshotSaveLoad(t *testing.T) {
	f := newFixture(t)
	auth := login(t, f)

	if resp, raw := doJSON(t, http.MethodPost, f.ts.URL+"/snapshot/load", nil, auth); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("load before save status=%d body=%s", resp.StatusCode, raw)
	}

	doJSON(t, http.MethodPost, f.ts.URL+"/stock/add", `{"item":"apple","qty":7}`, auth)
	doJSON(t, http.MethodPost, f.ts.URL+"/stock/add", `{"item":"banana","qty":2}`, auth)

	if resp, raw := doJSON(t, http.MethodPost, f.ts.URL+"/snapshot/save", nil, auth); resp.StatusCode != http.StatusOK {
		t.Fatalf("save status=%d body=%s", resp.StatusCode, raw)
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(raw) != `{"apple":7,"banana":2}` {
		t.Fatalf("file=%s", raw)
	}

	doJSON(t, http.MethodPost, f.ts.URL+"/stock/add", `{"item":"cherry","qty":1}`, auth)

	if resp, raw := doJSON(t, http.MethodPost, f.ts.URL+"/snapshot/load", nil, auth); resp.StatusCode != http.StatusOK {
		t.Fatalf("load status=%d body=%s", resp.StatusCode, raw)
	}
	if f.store.Quantity("cherry") != 0 || f.store.Quantity("apple") != 7 {
		t.Fatalf("load must replace the table: %v", f.store.Items())
	}

	if err := os.WriteFile(f.path, []byte(`{"apple": "seven"}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if resp, raw := doJSON(t, http.MethodPost, f.ts.URL+"/snapshot/load", nil, auth); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("malformed load status=%d body=%s", resp.StatusCode, raw)
	}
}

func TestServer_BadRequests(t *testing.T) {
	f := newFixture(t)
	auth := login(t, f)

	cases := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodGet, "/low-stock?threshold=abc", nil, http.StatusBadRequest},
		{http.MethodPost, "/stock/add", `{"item":"apple","qty":1,"extra":true}`, http.StatusBadRequest},
		{http.MethodPost, "/stock/add", `{"item":"apple","qty":1}{}`, http.StatusBadRequest},
		{http.MethodPost, "/stock/add", `{"item":"","qty":1}`, http.StatusBadRequest},
		{http.MethodPost, "/stock/remove", `{"item":"apple","qty":true}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		resp, raw := doJSON(t, c.method, f.ts.URL+c.path, c.body, auth)
		if resp.StatusCode != c.want {
			t.Fatalf("%s %s status=%d want=%d body=%s", c.method, c.path, resp.StatusCode, c.want, raw)
		}
	}
}

func TestServer_GetEscapedItem(t *testing.T) {
	f := newFixture(t)
	_ = f.store.Add("a/b", 5, nil)
	_ = f.store.Add("a%b", 6, nil)
	_ = f.store.Add("caf\u00e9", 2, nil)

	cases := []struct {
		path string
		want inventory.Entry
	}{
		{"/items/a%2Fb", inventory.Entry{Item: "a/b", Qty: 5}},
		{"/items/a%2fb", inventory.Entry{Item: "a/b", Qty: 5}},
		{"/items/a%25b", inventory.Entry{Item: "a%b", Qty: 6}},
		{"/items/caf%C3%A9", inventory.Entry{Item: "caf\u00e9", Qty: 2}},
	}
	for _, c := range cases {
		resp, raw := doJSON(t, http.MethodGet, f.ts.URL+c.path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", c.path, resp.StatusCode, raw)
		}
		var got inventory.Entry
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("%s decode: %v body=%s", c.path, err, raw)
		}
		if got != c.want {
			t.Fatalf("%s got=%+v want=%+v", c.path, got, c.want)
		}
	}
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t)
	auth := login(t, f)

	doJSON(t, http.MethodPost, f.ts.URL+"/stock/add", `{"item":"apple","qty":4}`, auth)
	doJSON(t, http.MethodPost, f.ts.URL+"/stock/remove", `{"item":"pear","qty":1}`, auth)

	if resp, _ := doJSON(t, http.MethodGet, f.ts.URL+"/metrics", nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("metrics without token status=%d", resp.StatusCode)
	}

	resp, raw := doJSON(t, http.MethodGet, f.ts.URL+"/metrics", nil, map[string]string{
		"Authorization": "Bearer " + metricsToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status=%d", resp.StatusCode)
	}

	body := string(raw)
	for _, want := range []string{
		`inventory_operations_total{op="add",outcome="applied"} 1`,
		`inventory_operations_total{op="remove",outcome="not_found"} 1`,
		`inventory_items 1`,
		`inventory_units 4`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestServer_Readyz(t *testing.T) {
	f := newFixture(t)

	if resp, _ := doJSON(t, http.MethodGet, f.ts.URL+"/readyz", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status=%d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, http.MethodGet, f.ts.URL+"/healthz", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", resp.StatusCode)
	}
}
