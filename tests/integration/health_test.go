//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/xenking/quickcart/internal/model"
)

func TestHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			// Health checks carry no session token and are never rejected for it.
			resp := do(t, http.MethodGet, path, "", nil)
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Error("X-Request-ID header not present")
			}

			body := decodeJSON[healthResponse](t, resp)
			if body.Status != "ok" {
				t.Fatalf("expected status ok, got %q (checks %v)", body.Status, body.Checks)
			}
			if len(body.Checks) != 0 {
				t.Errorf("unexpected failing checks: %v", body.Checks)
			}
		})
	}
}

func TestReadyz_AfterDocumentReplaced(t *testing.T) {
	reseed(t, func(doc *model.Document) {
		doc.Items = doc.Items[:1]
	})
	t.Cleanup(func() { reseed(t, nil) })

	resp := do(t, http.MethodGet, "/readyz", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	token := login(t, "alex@quicktest.com", "11111111")
	items := do(t, http.MethodGet, "/items", token, nil)
	defer items.Body.Close()
	if items.StatusCode != http.StatusOK {
		t.Fatalf("items: expected 200, got %d", items.StatusCode)
	}
	got := decodeJSON[[]model.Item](t, items)
	if len(got) != 1 {
		t.Errorf("items: got %d, want 1", len(got))
	}
}
