//go:build integration

package testing

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfxvault/tlscertd/internal/config"
	"github.com/nfxvault/tlscertd/internal/di"
)

// IntegrationTestSuite drives the HTTP API role end to end against an
// httptest server, exercising the wired orchestrator/store/cache/bus graph
// instead of mocking any of it.
type IntegrationTestSuite struct {
	t       *testing.T
	server  *httptest.Server
	app     *di.Application
	config  *config.Config
	cleanup []func()
}

// NewIntegrationTestSuite creates a new integration test suite.
func NewIntegrationTestSuite(t *testing.T) *IntegrationTestSuite {
	t.Helper()

	return &IntegrationTestSuite{
		t:       t,
		cleanup: make([]func(), 0),
	}
}

// SetupAPIWithConfig builds the API role's object graph and serves its
// handler from an httptest server.
func (s *IntegrationTestSuite) SetupAPIWithConfig(cfg *config.Config) error {
	s.t.Helper()

	s.config = cfg

	app, err := di.InitializeAPIApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	s.app = app

	s.server = httptest.NewServer(app.Handler)
	s.addCleanup(s.server.Close)

	s.t.Logf("Created API server at %s", s.server.URL)
	return nil
}

// SetupAPI builds the API role with default test configuration.
func (s *IntegrationTestSuite) SetupAPI() error {
	s.t.Helper()
	return s.SetupAPIWithConfig(GetTestConfig())
}

// MakeRequest makes an HTTP request against the running API server.
func (s *IntegrationTestSuite) MakeRequest(method, path string, headers map[string]string) (*http.Response, error) {
	s.t.Helper()

	if s.server == nil {
		s.t.Fatal("API server not set up, call SetupAPI first")
	}

	req, err := http.NewRequest(method, s.server.URL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	return client.Do(req)
}

// AssertResponse asserts a response's status code and, if non-empty, body.
func (s *IntegrationTestSuite) AssertResponse(resp *http.Response, expectedStatus int, expectedBody string) {
	s.t.Helper()

	assert.Equal(s.t, expectedStatus, resp.StatusCode, "unexpected status code")

	if expectedBody != "" {
		body := make([]byte, len(expectedBody))
		_, err := resp.Body.Read(body)
		assert.NoError(s.t, err, "failed to read response body")
		assert.Equal(s.t, expectedBody, string(body), "unexpected response body")
	}
}

// TestHealthEndpoint checks the health endpoint.
func (s *IntegrationTestSuite) TestHealthEndpoint() {
	s.t.Helper()

	resp, err := s.MakeRequest("GET", "/healthz", nil)
	require.NoError(s.t, err, "health request failed")
	defer resp.Body.Close()

	assert.Equal(s.t, http.StatusOK, resp.StatusCode, "health endpoint should return 200")
}

// TestConcurrentRequests exercises concurrent listing requests.
func (s *IntegrationTestSuite) TestConcurrentRequests(numRequests int, path string) {
	s.t.Helper()

	RunConcurrently(s.t, numRequests, func(i int) {
		resp, err := s.MakeRequest("GET", path, nil)
		assert.NoError(s.t, err, "request %d failed", i)
		if resp != nil {
			resp.Body.Close()
		}
	})
}

// GetApplication returns the wired application instance.
func (s *IntegrationTestSuite) GetApplication() *di.Application {
	return s.app
}

// GetConfig returns the configuration used to build the application.
func (s *IntegrationTestSuite) GetConfig() *config.Config {
	return s.config
}

// GetServerURL returns the base URL of the running test server.
func (s *IntegrationTestSuite) GetServerURL() string {
	if s.server == nil {
		s.t.Fatal("API server not set up")
	}
	return s.server.URL
}

func (s *IntegrationTestSuite) addCleanup(fn func()) {
	s.cleanup = append(s.cleanup, fn)
}

// Cleanup runs every registered cleanup function in reverse order.
func (s *IntegrationTestSuite) Cleanup() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
	s.cleanup = nil
}

// PortScanner helps find available ports for binding the worker role's
// health endpoint during tests.
type PortScanner struct{}

// FindAvailablePort finds an available TCP port.
func (ps *PortScanner) FindAvailablePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port, nil
}

// NetworkTestHelper provides network readiness assertions.
type NetworkTestHelper struct {
	t *testing.T
}

// NewNetworkTestHelper creates a new network test helper.
func NewNetworkTestHelper(t *testing.T) *NetworkTestHelper {
	return &NetworkTestHelper{t: t}
}

// WaitForPortOpen waits for a port to start accepting connections.
func (nh *NetworkTestHelper) WaitForPortOpen(address string, timeout time.Duration) bool {
	nh.t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", address, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return false
}
