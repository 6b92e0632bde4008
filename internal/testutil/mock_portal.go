// Package testutil provides testing utilities for the results scraper.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// NoRecordPage is what the portal serves for an unknown registration number.
const NoRecordPage = `<html><body><span id="ContentPlaceHolder1_Label1">No Record Found !!!</span></body></html>`

// PortalPath is the path the mock portal serves result pages under.
const PortalPath = "/ResultsBTech1stSem2023_B2023Pub.aspx"

// MockPortal is a configurable mock of the BEU results portal.
type MockPortal struct {
	server *httptest.Server
	mu     sync.Mutex

	pages    map[string]string
	failures map[string]int
	status   map[string]int
	delay    time.Duration

	// Tracking
	requests  map[string]int
	order     []string
	semesters []string
	queries   []string
}

// NewMockPortal starts a mock portal. Unknown registration numbers get the
// "No Record Found !!!" page.
func NewMockPortal() *MockPortal {
	m := &MockPortal{
		pages:    make(map[string]string),
		failures: make(map[string]int),
		status:   make(map[string]int),
		requests: make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the base URL of the results page.
func (m *MockPortal) URL() string {
	return m.server.URL + PortalPath
}

// Close shuts down the mock server.
func (m *MockPortal) Close() {
	m.server.Close()
}

// SetPage serves page for regNo.
func (m *MockPortal) SetPage(regNo string, page PortalPage) {
	m.SetHTML(regNo, page.HTML())
}

// SetHTML serves raw html for regNo.
func (m *MockPortal) SetHTML(regNo, html string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[regNo] = html
}

// FailTimes drops the connection for the next n requests for regNo.
// A negative n fails every request.
func (m *MockPortal) FailTimes(regNo string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[regNo] = n
}

// SetStatus answers every request for regNo with the given status code.
func (m *MockPortal) SetStatus(regNo string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[regNo] = code
}

// SetDelay delays every response.
func (m *MockPortal) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// RequestCount returns the number of requests made for regNo.
func (m *MockPortal) RequestCount(regNo string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[regNo]
}

// TotalRequests returns the number of requests made to the portal.
func (m *MockPortal) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Order returns the registration numbers in the order they were requested.
func (m *MockPortal) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Queries returns the raw query strings in request order.
func (m *MockPortal) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Semesters returns the Sem query values in request order.
func (m *MockPortal) Semesters() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.semesters...)
}

func (m *MockPortal) serve(w http.ResponseWriter, r *http.Request) {
	regNo := r.URL.Query().Get("RegNo")

	m.mu.Lock()
	m.requests[regNo]++
	m.order = append(m.order, regNo)
	m.semesters = append(m.semesters, r.URL.Query().Get("Sem"))
	m.queries = append(m.queries, r.URL.RawQuery)

	fail := false
	if n, ok := m.failures[regNo]; ok && n != 0 {
		fail = true
		if n > 0 {
			m.failures[regNo] = n - 1
		}
	}
	code, hasStatus := m.status[regNo]
	page, hasPage := m.pages[regNo]
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if fail {
		dropConnection(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if hasStatus {
		w.WriteHeader(code)
		fmt.Fprintf(w, "status %d", code)
		return
	}

	w.WriteHeader(http.StatusOK)
	if !hasPage {
		page = NoRecordPage
	}
	w.Write([]byte(page))
}

// dropConnection writes a malformed status line and closes the connection.
// Sending a few bytes keeps net/http from silently replaying the request on
// a reused keep-alive connection.
func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("testutil: response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(fmt.Sprintf("testutil: hijack: %v", err))
	}
	conn.Write([]byte("BROKEN\r\n\r\n"))
	conn.Close()
}
