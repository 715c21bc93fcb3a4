package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/hmsAuth/internal/enginetest"
	"github.com/MrEthical07/hmsAuth/internal/httpapi"
	"github.com/MrEthical07/hmsAuth/internal/rate"
	promexport "github.com/MrEthical07/hmsAuth/metrics/export/prometheus"
)

func postJSON(t *testing.T, srv *httptest.Server, path, token string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestServerStack wires the engine the way hmsauth-server does: Redis for
// verification codes, revocation and throttling, and Prometheus on
// /metrics.
func TestServerStack(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := enginetest.New(t, withRedis(rdb))
	srv := httptest.NewServer(httpapi.NewRouter(httpapi.Options{
		Engine:  h.Engine,
		Limiter: rate.NewRedis(rdb, "hms", 50, time.Minute),
		Metrics: promexport.Handler(h.Engine),
	}))
	t.Cleanup(srv.Close)

	req := enginetest.Request("a")
	resp := postJSON(t, srv, "/v1/auth/register", "", map[string]string{
		"hospitalName":       req.HospitalName,
		"hospitalEmail":      req.HospitalEmail,
		"registrationNumber": req.RegistrationNumber,
		"licenseNumber":      req.LicenseNumber,
		"hospitalNumber":     req.HospitalNumber,
		"adminName":          req.AdminName,
		"adminEmail":         req.AdminEmail,
		"adminPassword":      req.AdminPassword,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d", resp.StatusCode)
	}

	resp = postJSON(t, srv, "/v1/auth/verify-email", "", map[string]string{
		"email": req.AdminEmail,
		"code":  h.Code(t, req.AdminEmail),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: %d", resp.StatusCode)
	}
	var session struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil || session.Token == "" {
		t.Fatalf("decode session: %v", err)
	}

	resp = postJSON(t, srv, "/v1/auth/logout", session.Token, map[string]string{})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: %d", resp.StatusCode)
	}
	if _, err := h.Engine.Authenticate(t.Context(), session.Token); err == nil {
		t.Fatal("token must be revoked in redis")
	}

	metrics, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer metrics.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(metrics.Body)
	for _, want := range []string{
		"hmsauth_registration_success_total 1",
		"hmsauth_verification_success_total 1",
		"hmsauth_logout_total 1",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("metrics missing %q", want)
		}
	}

	if n := len(mr.Keys()); n == 0 {
		t.Fatal("expected verification, deny-list and rate keys in redis")
	}
}
