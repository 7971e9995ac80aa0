package mocks

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockScanAPI provides a mock implementation of the REST scan API
type MockScanAPI struct {
	Server   *httptest.Server
	mu       sync.Mutex
	callLog  []APICall
	behavior APIBehavior
}

// APICall logs API calls for verification
type APICall struct {
	Method   string
	Path     string
	Filename string
	Auth     string
	Time     time.Time
	Response int
}

// APIBehavior controls mock API behavior
type APIBehavior struct {
	// Signature marks uploads containing it as infected
	Signature []byte

	// FailFirst makes the first N scan requests answer FailStatus
	FailFirst  int
	FailStatus int

	// RateLimitFirst makes the first N scan requests answer 429
	RateLimitFirst int

	// RetryAfter is sent with 429 responses
	RetryAfter time.Duration

	// UnauthorizedRequests makes all scan requests return 401
	UnauthorizedRequests bool

	// EngineError makes scans answer status ERROR
	EngineError bool

	// Unhealthy makes the health endpoint answer 503
	Unhealthy bool
}

// NewMockScanAPI creates a new mock API server
func NewMockScanAPI() *MockScanAPI {
	mock := &MockScanAPI{
		callLog: make([]APICall, 0),
		behavior: APIBehavior{
			Signature:  []byte("EICAR-STANDARD-ANTIVIRUS-TEST-FILE"),
			FailStatus: http.StatusServiceUnavailable,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/scan", mock.handleScan)
	mux.HandleFunc("/api/health", mock.handleHealth)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// Close stops the mock server
func (m *MockScanAPI) Close() {
	m.Server.Close()
}

// URL returns the mock server URL
func (m *MockScanAPI) URL() string {
	return m.Server.URL
}

// GetCallLog returns all API calls made
func (m *MockScanAPI) GetCallLog() []APICall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]APICall{}, m.callLog...)
}

// ScanCalls returns the number of scan requests received
func (m *MockScanAPI) ScanCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, call := range m.callLog {
		if call.Path == "/api/scan" {
			n++
		}
	}
	return n
}

// SetBehavior configures mock API behavior
func (m *MockScanAPI) SetBehavior(behavior APIBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if behavior.Signature == nil {
		behavior.Signature = m.behavior.Signature
	}
	if behavior.FailStatus == 0 {
		behavior.FailStatus = http.StatusServiceUnavailable
	}
	m.behavior = behavior
}

// Reset clears the call log
func (m *MockScanAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callLog = make([]APICall, 0)
}

func (m *MockScanAPI) logCall(r *http.Request, filename string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callLog = append(m.callLog, APICall{
		Method:   r.Method,
		Path:     r.URL.Path,
		Filename: filename,
		Auth:     r.Header.Get("Authorization"),
		Time:     time.Now(),
		Response: status,
	})
}

func (m *MockScanAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	unhealthy := m.behavior.Unhealthy
	m.mu.Unlock()

	status := http.StatusOK
	if unhealthy {
		status = http.StatusServiceUnavailable
	}
	m.logCall(r, "", status)
	w.WriteHeader(status)
}

func (m *MockScanAPI) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.mu.Lock()
	behavior := m.behavior
	previous := 0
	for _, call := range m.callLog {
		if call.Path == "/api/scan" {
			previous++
		}
	}
	m.mu.Unlock()

	if behavior.UnauthorizedRequests {
		m.logCall(r, "", http.StatusUnauthorized)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if previous < behavior.RateLimitFirst {
		m.logCall(r, "", http.StatusTooManyRequests)
		w.Header().Set("Retry-After", strconv.Itoa(int(behavior.RetryAfter.Seconds())))
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("Rate limit exceeded")) //nolint:errcheck
		return
	}

	if previous < behavior.FailFirst {
		m.logCall(r, "", behavior.FailStatus)
		http.Error(w, "Scanner unavailable", behavior.FailStatus)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		m.logCall(r, "", http.StatusBadRequest)
		http.Error(w, "file field required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		m.logCall(r, header.Filename, http.StatusBadRequest)
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	response := map[string]string{"status": "OK"}
	switch {
	case behavior.EngineError:
		response = map[string]string{"status": "ERROR", "message": "engine failure"}
	case len(behavior.Signature) > 0 && bytes.Contains(content, behavior.Signature):
		response = map[string]string{"status": "FOUND", "message": "Eicar-Test-Signature"}
	}

	m.logCall(r, header.Filename, http.StatusOK)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response) //nolint:errcheck
}
