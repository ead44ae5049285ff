package cdp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// TargetTypePage is the CDP target type for browser pages.
const TargetTypePage = "page"

// Page represents a browser page target discovered via the CDP HTTP API.
type Page struct {
	TargetID string
	Title    string
	URL      string
}

// BrowserInfo holds information about the connected Chrome instance.
type BrowserInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// targetJSON is one entry of the /json endpoint response.
type targetJSON struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// DiscoverBrowserInfo queries /json/version for browser metadata, including
// the browser-level WebSocket debugger URL.
func DiscoverBrowserInfo(port string) (*BrowserInfo, error) {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/json/version", port))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Chrome on port %s: %w", port, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info BrowserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode browser info: %w", err)
	}

	return &info, nil
}

// DiscoverPages queries /json for the currently open page targets. Called
// once at startup; ongoing discovery uses CDP target events.
func DiscoverPages(port string) ([]*Page, error) {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/json", port))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Chrome on port %s: %w", port, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var targets []targetJSON
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("failed to decode targets: %w", err)
	}

	var pages []*Page
	for _, t := range targets {
		if t.Type != TargetTypePage {
			continue
		}
		pages = append(pages, &Page{
			TargetID: t.ID,
			Title:    t.Title,
			URL:      t.URL,
		})
	}

	return pages, nil
}

// WaitForChrome polls until Chrome answers on the given port and exposes at
// least one page target, or the timeout elapses.
func WaitForChrome(port string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	versionReady := false
	for time.Now().Before(deadline) {
		if !versionReady {
			resp, err := client.Get(fmt.Sprintf("http://localhost:%s/json/version", port))
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					versionReady = true
				}
			}
		}

		if versionReady {
			pages, err := DiscoverPages(port)
			if err == nil && len(pages) > 0 {
				return nil
			}
		}

		time.Sleep(100 * time.Millisecond)
	}

	if !versionReady {
		return fmt.Errorf("chrome not available on port %s after %v", port, timeout)
	}
	return fmt.Errorf("chrome available but no page targets after %v", timeout)
}

// OpenPage opens a new page in Chrome via the HTTP debugging API.
func OpenPage(port, targetURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	apiURL := fmt.Sprintf("http://localhost:%s/json/new?%s", port, url.QueryEscape(targetURL))

	req, err := http.NewRequest(http.MethodPut, apiURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
