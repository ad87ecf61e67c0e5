package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"resolvd/internal/app"
	"resolvd/internal/storage"
	"resolvd/internal/store"
	"resolvd/internal/usertoken"
	"resolvd/pkg/domain"
)

const testSecret = "letmein-0042"

type testEnv struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	redis := miniredis.RunT(t)
	tokens, err := usertoken.New("test-signing-secret", time.Hour)
	if err != nil {
		t.Fatalf("usertoken.New: %v", err)
	}
	core, err := app.New(app.Config{
		Store:           store.NewMemoryStore(),
		Sessions:        store.NewMemorySessionStore(),
		Documents:       storage.NewMemoryObjectStore(),
		Tokens:          tokens,
		AdminSecretCode: testSecret,
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	s, err := New(Config{
		App:                      core,
		RedisAddr:                redis.Addr(),
		AllowedExtensions:        []string{".pdf", ".png", ".jpg"},
		SecretRateLimitPerMinute: 3,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{t: t, srv: srv, client: srv.Client()}
}

// do issues a request with an optional bearer token and decodes the JSON
// response into out when non-nil.
func (e *testEnv) do(method, path, token string, body any, out any) *http.Response {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	// Buffer the body so callers can still inspect error payloads.
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		e.t.Fatalf("read %s %s response: %v", method, path, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			e.t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp
}

func (e *testEnv) signUp(subject, role string) (domain.User, string) {
	e.t.Helper()
	var got struct {
		Token string      `json:"token"`
		User  domain.User `json:"user"`
	}
	resp := e.do(http.MethodPost, "/api/auth/callback", "", map[string]string{
		"subject":     subject,
		"email":       subject + "@example.com",
		"displayName": "User " + subject,
		"role":        role,
	}, &got)
	if resp.StatusCode != http.StatusOK {
		e.t.Fatalf("callback for %s: status %d", subject, resp.StatusCode)
	}
	return got.User, got.Token
}

func (e *testEnv) submitVerification(token, companyName string) domain.BusinessProfile {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("companyName", companyName)
	mw.WriteField("industry", "Retail")
	mw.WriteField("description", "We sell things")
	fw, err := mw.CreateFormFile("document", "license.pdf")
	if err != nil {
		e.t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte("%PDF-1.4"))
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/api/business/verification", &buf)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("submit verification: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		e.t.Fatalf("submit verification: status %d body %s", resp.StatusCode, body)
	}
	var profile domain.BusinessProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		e.t.Fatalf("decode profile: %v", err)
	}
	return profile
}

// unlockAdmin registers an admin and walks it through secret verification.
func (e *testEnv) unlockAdmin(subject string) (domain.User, string) {
	e.t.Helper()
	admin, token := e.signUp(subject, "ADMIN")
	resp := e.do(http.MethodPost, "/api/admin/verify-secret", token,
		map[string]string{"secretCode": testSecret}, nil)
	if resp.StatusCode != http.StatusOK {
		e.t.Fatalf("verify-secret: status %d", resp.StatusCode)
	}
	return admin, token
}

func errCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload.Code
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(http.MethodGet, "/healthz", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAuthCallbackSetsSessionCookie(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(http.MethodPost, "/api/auth/callback", "", map[string]string{
		"subject": "s-1", "email": "s1@example.com", "displayName": "S One", "role": "CONSUMER",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("session cookie not set")
	}
	if !session.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	// The cookie alone authenticates /api/auth/me.
	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/api/auth/me", nil)
	req.AddCookie(session)
	meResp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("me request: %v", err)
	}
	defer meResp.Body.Close()
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("me via cookie: status %d", meResp.StatusCode)
	}
}

func TestUnauthenticatedRequestsDegradeCleanly(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/api/auth/me", "/api/complaints/my-complaints", "/api/business/me"} {
		resp := e.do(http.MethodGet, path, "", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s without credentials: status %d", path, resp.StatusCode)
		}
	}
	// A garbage bearer token behaves exactly like no credentials.
	resp := e.do(http.MethodGet, "/api/auth/me", "garbage.token.here", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", resp.StatusCode)
	}
	if code := errCode(t, resp); code != "UNAUTHENTICATED" {
		t.Fatalf("code = %q", code)
	}
}

func TestRoleGating(t *testing.T) {
	e := newTestEnv(t)
	_, consumerTok := e.signUp("c-1", "CONSUMER")
	_, businessTok := e.signUp("b-1", "BUSINESS")

	// Consumer routes reject businesses and vice versa.
	if resp := e.do(http.MethodGet, "/api/complaints/my-complaints", businessTok, nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("business on consumer route: status %d", resp.StatusCode)
	}
	if resp := e.do(http.MethodGet, "/api/complaints/tagged", consumerTok, nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("consumer on business route: status %d", resp.StatusCode)
	}
	if resp := e.do(http.MethodGet, "/api/admin/stats", consumerTok, nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("consumer on admin route: status %d", resp.StatusCode)
	}
}

func TestComplaintLifecycle(t *testing.T) {
	e := newTestEnv(t)
	_, consumerTok := e.signUp("c-1", "CONSUMER")
	business, businessTok := e.signUp("b-1", "BUSINESS")
	_, adminTok := e.unlockAdmin("a-1")

	// Business must be verified before it can read its queue.
	profile := e.submitVerification(businessTok, "Acme Corp")
	resp := e.do(http.MethodGet, "/api/complaints/tagged", businessTok, nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("tagged before approval: status %d", resp.StatusCode)
	}
	if code := errCode(t, resp); code != "NOT_VERIFIED" {
		t.Fatalf("code = %q", code)
	}
	resp = e.do(http.MethodPost, "/api/admin/approve-business", adminTok,
		map[string]string{"profileId": profile.ID, "action": "APPROVED"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d", resp.StatusCode)
	}

	// File a complaint.
	var complaint domain.Complaint
	resp = e.do(http.MethodPost, "/api/complaints", consumerTok, map[string]string{
		"title": "Broken anvil", "description": "Cracked on first use", "businessId": business.ID,
	}, &complaint)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create complaint: status %d", resp.StatusCode)
	}
	if complaint.SeqID != "CMP-0001" || complaint.Status != domain.ComplaintPending {
		t.Fatalf("complaint = %+v", complaint)
	}

	// Business reply moves PENDING to OPEN.
	var afterReply domain.Complaint
	resp = e.do(http.MethodPost, "/api/complaints/"+complaint.ID+"/reply", businessTok,
		map[string]string{"content": "We are on it"}, &afterReply)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("business reply: status %d", resp.StatusCode)
	}
	if afterReply.Status != domain.ComplaintOpen {
		t.Fatalf("status = %s, want OPEN", afterReply.Status)
	}

	// The consumer cannot drive status.
	resp = e.do(http.MethodPatch, "/api/complaints/"+complaint.ID+"/status", consumerTok,
		map[string]string{"status": "RESOLVED"}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("consumer status change: status %d", resp.StatusCode)
	}

	// The business resolves, then the thread is locked for everyone.
	var resolved domain.Complaint
	resp = e.do(http.MethodPatch, "/api/complaints/"+complaint.ID+"/status", businessTok,
		map[string]string{"status": "RESOLVED"}, &resolved)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: status %d", resp.StatusCode)
	}
	resp = e.do(http.MethodPost, "/api/complaints/"+complaint.ID+"/reply", consumerTok,
		map[string]string{"content": "thanks"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("reply after resolve: status %d", resp.StatusCode)
	}
}

func TestComplaintVisibility(t *testing.T) {
	e := newTestEnv(t)
	_, consumerTok := e.signUp("c-1", "CONSUMER")
	business, _ := e.signUp("b-1", "BUSINESS")
	_, outsiderTok := e.signUp("c-2", "CONSUMER")
	_, adminTok := e.signUp("a-1", "ADMIN")

	var complaint domain.Complaint
	resp := e.do(http.MethodPost, "/api/complaints", consumerTok, map[string]string{
		"title": "t", "description": "d", "businessId": business.ID,
	}, &complaint)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}

	if resp := e.do(http.MethodGet, "/api/complaints/"+complaint.ID, outsiderTok, nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("outsider fetch: status %d", resp.StatusCode)
	}
	// Admins may read any complaint without the secret gate.
	if resp := e.do(http.MethodGet, "/api/complaints/"+complaint.ID, adminTok, nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("admin fetch: status %d", resp.StatusCode)
	}
}

func TestCreateComplaintErrors(t *testing.T) {
	e := newTestEnv(t)
	_, consumerTok := e.signUp("c-1", "CONSUMER")

	resp := e.do(http.MethodPost, "/api/complaints", consumerTok,
		map[string]string{"title": "t", "description": "d", "businessId": "short"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed id: status %d", resp.StatusCode)
	}
	if code := errCode(t, resp); code != "INVALID_IDENTIFIER" {
		t.Fatalf("code = %q", code)
	}

	resp = e.do(http.MethodPost, "/api/complaints", consumerTok,
		map[string]string{"title": "t", "description": "d", "businessId": "aaaaaaaaaaaaaaaaaaaaaaaa"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown business: status %d", resp.StatusCode)
	}
	if code := errCode(t, resp); code != "BUSINESS_NOT_FOUND" {
		t.Fatalf("code = %q", code)
	}
}

func TestVerificationFlow(t *testing.T) {
	e := newTestEnv(t)
	_, businessTok := e.signUp("b-1", "BUSINESS")
	_, consumerTok := e.signUp("c-1", "CONSUMER")
	_, adminTok := e.unlockAdmin("a-1")

	// Nothing verified yet, the directory is empty. No credentials needed.
	var dir struct {
		Items []domain.VerifiedBusiness `json:"items"`
		Count int                       `json:"count"`
	}
	e.do(http.MethodGet, "/api/business/verified", "", nil, &dir)
	if dir.Count != 0 {
		t.Fatalf("directory count = %d before any approval", dir.Count)
	}

	profile := e.submitVerification(businessTok, "Acme Corp")
	if profile.Status != domain.VerificationPending {
		t.Fatalf("profile status = %s", profile.Status)
	}

	// Resubmission is rejected whatever the pending status.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("companyName", "Acme 2")
	mw.WriteField("industry", "Retail")
	mw.WriteField("description", "again")
	fw, _ := mw.CreateFormFile("document", "again.pdf")
	fw.Write([]byte("%PDF"))
	mw.Close()
	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/api/business/verification", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+businessTok)
	dupResp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	defer dupResp.Body.Close()
	if dupResp.StatusCode != http.StatusConflict {
		t.Fatalf("resubmit: status %d", dupResp.StatusCode)
	}

	// Approval surfaces the business in the directory.
	resp := e.do(http.MethodPost, "/api/admin/approve-business", adminTok,
		map[string]string{"profileId": profile.ID, "action": "APPROVED"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d", resp.StatusCode)
	}
	e.do(http.MethodGet, "/api/business/verified", consumerTok, nil, &dir)
	if dir.Count != 1 || dir.Items[0].CompanyName != "Acme Corp" {
		t.Fatalf("directory after approval = %+v", dir)
	}

	var mine domain.BusinessProfile
	resp = e.do(http.MethodGet, "/api/business/me", businessTok, nil, &mine)
	if resp.StatusCode != http.StatusOK || mine.Status != domain.VerificationApproved {
		t.Fatalf("own profile = %+v (status %d)", mine, resp.StatusCode)
	}
}

func TestVerificationRejectsUnsupportedFileType(t *testing.T) {
	e := newTestEnv(t)
	_, businessTok := e.signUp("b-1", "BUSINESS")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("companyName", "Acme")
	mw.WriteField("industry", "Retail")
	mw.WriteField("description", "desc")
	fw, _ := mw.CreateFormFile("document", "malware.exe")
	fw.Write([]byte("MZ"))
	mw.Close()
	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/api/business/verification", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+businessTok)
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("exe upload: status %d", resp.StatusCode)
	}
}

func TestAdminSecretGate(t *testing.T) {
	e := newTestEnv(t)
	_, adminTok := e.signUp("a-1", "ADMIN")

	// Data routes stay closed before secret verification.
	for _, path := range []string{"/api/admin/pending-verifications", "/api/admin/stats"} {
		resp := e.do(http.MethodGet, path, adminTok, nil, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("%s before secret: status %d", path, resp.StatusCode)
		}
	}

	// The wrong code does not open the gate.
	resp := e.do(http.MethodPost, "/api/admin/verify-secret", adminTok,
		map[string]string{"secretCode": "wrong"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status %d", resp.StatusCode)
	}
	if code := errCode(t, resp); code != "INVALID_SECRET" {
		t.Fatalf("code = %q", code)
	}
	if resp := e.do(http.MethodGet, "/api/admin/stats", adminTok, nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stats after failed secret: status %d", resp.StatusCode)
	}

	// The right code opens it.
	var unlocked domain.User
	resp = e.do(http.MethodPost, "/api/admin/verify-secret", adminTok,
		map[string]string{"secretCode": testSecret}, &unlocked)
	if resp.StatusCode != http.StatusOK || !unlocked.AdminSecretVerified {
		t.Fatalf("verify-secret = %+v (status %d)", unlocked, resp.StatusCode)
	}
	if resp := e.do(http.MethodGet, "/api/admin/stats", adminTok, nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("stats after secret: status %d", resp.StatusCode)
	}
}

func TestVerifySecretRateLimit(t *testing.T) {
	e := newTestEnv(t)
	_, adminTok := e.signUp("a-1", "ADMIN")

	// The limiter allows three attempts per window in this environment.
	for i := 0; i < 3; i++ {
		resp := e.do(http.MethodPost, "/api/admin/verify-secret", adminTok,
			map[string]string{"secretCode": fmt.Sprintf("guess-%d", i)}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d", i, resp.StatusCode)
		}
	}
	resp := e.do(http.MethodPost, "/api/admin/verify-secret", adminTok,
		map[string]string{"secretCode": testSecret}, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("fourth attempt: status %d", resp.StatusCode)
	}
}

func TestPendingVerificationsListing(t *testing.T) {
	e := newTestEnv(t)
	business, businessTok := e.signUp("b-1", "BUSINESS")
	_, adminTok := e.unlockAdmin("a-1")
	e.submitVerification(businessTok, "Acme Corp")

	var got struct {
		Items []struct {
			Profile     domain.BusinessProfile `json:"profile"`
			Email       string                 `json:"email"`
			DisplayName string                 `json:"displayName"`
		} `json:"items"`
		Count int `json:"count"`
	}
	resp := e.do(http.MethodGet, "/api/admin/pending-verifications", adminTok, nil, &got)
	if resp.StatusCode != http.StatusOK || got.Count != 1 {
		t.Fatalf("pending = %+v (status %d)", got, resp.StatusCode)
	}
	if got.Items[0].Email != business.Email {
		t.Fatalf("owner email = %q", got.Items[0].Email)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(http.MethodPost, "/api/auth/callback", "", map[string]string{
		"subject": "s-1", "email": "s1@example.com", "displayName": "S One",
	}, nil)
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			session = c
		}
	}
	if session == nil {
		t.Fatal("no session cookie")
	}

	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/api/auth/logout", nil)
	req.AddCookie(session)
	logoutResp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	logoutResp.Body.Close()
	if logoutResp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d", logoutResp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, e.srv.URL+"/api/auth/me", nil)
	req.AddCookie(session)
	meResp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("me after logout: %v", err)
	}
	meResp.Body.Close()
	if meResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout: status %d", meResp.StatusCode)
	}
}
