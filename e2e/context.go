package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TestContext holds state shared by the step packages within one scenario.
type TestContext struct {
	BaseURL          string
	AdminToken       string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte

	// run keeps names unique when scenarios share one server.
	run             string
	tokens          map[string]string
	principalIDs    map[string]string
	institutionID   string
	institutionName string
}

func NewTestContext(baseURL, adminToken string) *TestContext {
	return &TestContext{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		AdminToken:   adminToken,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		run:          uuid.NewString()[:8],
		tokens:       make(map[string]string),
		principalIDs: make(map[string]string),
	}
}

func (tc *TestContext) Unique(s string) string {
	return s + "-" + tc.run
}

func (tc *TestContext) SetInstitution(id, name string) {
	tc.institutionID, tc.institutionName = id, name
}

func (tc *TestContext) Institution() (string, string) {
	return tc.institutionID, tc.institutionName
}

func (tc *TestContext) SetToken(actor, token string) { tc.tokens[actor] = token }

func (tc *TestContext) SetPrincipalID(actor, id string) { tc.principalIDs[actor] = id }

func (tc *TestContext) PrincipalID(actor string) string { return tc.principalIDs[actor] }

// POST makes an anonymous JSON request and stores the response.
func (tc *TestContext) POST(path string, body any) error {
	return tc.sendJSON(http.MethodPost, path, body, nil)
}

// GET makes a GET request with optional headers and stores the response.
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.send(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) AdminPOST(path string, body any) error {
	return tc.sendJSON(http.MethodPost, path, body, map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) AuthPOST(actor, path string, body any) error {
	return tc.sendJSON(http.MethodPost, path, body, tc.bearer(actor))
}

func (tc *TestContext) AuthPUT(actor, path string, body any) error {
	return tc.sendJSON(http.MethodPut, path, body, tc.bearer(actor))
}

func (tc *TestContext) AuthGET(actor, path string) error {
	return tc.send(http.MethodGet, path, nil, tc.bearer(actor))
}

// AuthPOSTMultipart uploads form fields plus one file part named "file".
func (tc *TestContext) AuthPOSTMultipart(actor, path string, fields map[string]string, file []byte, headers map[string]string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "credential.pdf")
		if err != nil {
			return fmt.Errorf("create form file: %w", err)
		}
		if _, err := fw.Write(file); err != nil {
			return fmt.Errorf("write form file: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	h := tc.bearer(actor)
	h["Content-Type"] = mw.FormDataContentType()
	for k, v := range headers {
		h[k] = v
	}
	return tc.send(http.MethodPost, path, &buf, h)
}

func (tc *TestContext) bearer(actor string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tc.tokens[actor]}
}

func (tc *TestContext) sendJSON(method, path string, body any, headers map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	if headers == nil {
		headers = make(map[string]string)
	}
	headers["Content-Type"] = "application/json"
	return tc.send(method, path, bytes.NewReader(data), headers)
}

func (tc *TestContext) send(method, path string, body io.Reader, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField reads a dotted path such as "on_chain.available" from the
// last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var current any
	if err := json.Unmarshal(tc.LastResponseBody, &current); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
		if current, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
	}
	return current, nil
}

func (tc *TestContext) ResponseContains(field string) bool {
	_, err := tc.GetResponseField(field)
	return err == nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}
