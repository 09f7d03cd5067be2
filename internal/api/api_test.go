package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"beantrack/internal/db"
	"beantrack/internal/model"
	"beantrack/internal/store"
	"beantrack/internal/supply"
)

const testJWTSecret = "test-secret"

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	database := db.NewTestDB(t)
	svc := supply.New(database, nil, zap.NewNop())
	router := NewRouter(database, svc, testJWTSecret, zap.NewNop())
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin user and grant the admin role.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	store.CreateUser(ctx, database, "admin", string(hash))
	store.GrantRole(ctx, database, "admin", model.RoleAdmin)

	token := login(t, server, "admin", "password")
	return server, token
}

func login(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	token := loginResp["token"]
	if token == "" {
		t.Fatal("empty token from login")
	}
	return token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do fires an authenticated request and returns the response status, decoding
// the body into out when out is non-nil.
func do(t *testing.T, method, url, token string, body, out any) int {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

// createPrincipal creates a login, grants a role, and returns a token.
func createPrincipal(t *testing.T, server *httptest.Server, adminToken, username, role string) string {
	t.Helper()
	status := do(t, "POST", server.URL+"/api/users", adminToken,
		map[string]string{"username": username, "password": "password"}, nil)
	if status != http.StatusCreated {
		t.Fatalf("creating user %s: %d", username, status)
	}
	status = do(t, "POST", server.URL+"/api/roles", adminToken,
		map[string]string{"principal": username, "role": role}, nil)
	if status != http.StatusOK {
		t.Fatalf("granting %s to %s: %d", role, username, status)
	}
	return login(t, server, username, "password")
}

func TestLoginEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	// Invalid credentials.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedRejected(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, _ := http.Get(server.URL + "/api/items")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	server, adminToken := setupTestServer(t)
	farmerToken := createPrincipal(t, server, adminToken, "john-doe", model.RoleFarmer)

	status := do(t, "POST", server.URL+"/api/roles", farmerToken,
		map[string]string{"principal": "eve", "role": model.RoleFarmer}, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin role grant, got %d", status)
	}

	status = do(t, "POST", server.URL+"/api/accounts/deposit", farmerToken,
		map[string]any{"principal": "eve", "amount": 100}, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin deposit, got %d", status)
	}
}

func TestLifecycleAPIFlow(t *testing.T) {
	server, adminToken := setupTestServer(t)
	farmerToken := createPrincipal(t, server, adminToken, "john-doe", model.RoleFarmer)
	distributorToken := createPrincipal(t, server, adminToken, "acme-dist", model.RoleDistributor)
	retailerToken := createPrincipal(t, server, adminToken, "corner-shop", model.RoleRetailer)
	consumerToken := createPrincipal(t, server, adminToken, "alice", model.RoleConsumer)

	// Fund the distributor.
	status := do(t, "POST", server.URL+"/api/accounts/deposit", adminToken,
		map[string]any{"principal": "acme-dist", "amount": 500}, nil)
	if status != http.StatusOK {
		t.Fatalf("deposit: %d", status)
	}

	// Harvest.
	var item model.Item
	status = do(t, "POST", server.URL+"/api/items", farmerToken, map[string]any{
		"upc":                     101,
		"origin_farm_name":        "Yarray Valley Farm",
		"origin_farm_information": "Coffee estate",
		"origin_farm_latitude":    "-38.239770",
		"origin_farm_longitude":   "144.341490",
		"product_notes":           "First batch",
	}, &item)
	if status != http.StatusCreated {
		t.Fatalf("harvest: %d", status)
	}
	if item.State != model.StateHarvested {
		t.Errorf("expected harvested, got %s", item.State)
	}
	if item.ProductID != item.SKU+item.UPC {
		t.Errorf("expected product_id %d, got %d", item.SKU+item.UPC, item.ProductID)
	}

	// Process, pack, sell.
	if status = do(t, "POST", server.URL+"/api/items/101/process", farmerToken, nil, nil); status != http.StatusOK {
		t.Fatalf("process: %d", status)
	}
	if status = do(t, "POST", server.URL+"/api/items/101/pack", farmerToken, nil, nil); status != http.StatusOK {
		t.Fatalf("pack: %d", status)
	}
	if status = do(t, "POST", server.URL+"/api/items/101/sell", farmerToken, map[string]any{"price": 100}, &item); status != http.StatusOK {
		t.Fatalf("sell: %d", status)
	}
	if item.ProductPrice != 100 {
		t.Errorf("expected price 100, got %d", item.ProductPrice)
	}

	// Buy with overpayment.
	if status = do(t, "POST", server.URL+"/api/items/101/buy", distributorToken, map[string]any{"payment": 150}, &item); status != http.StatusOK {
		t.Fatalf("buy: %d", status)
	}
	if item.State != model.StateSold || item.OwnerID != "acme-dist" {
		t.Errorf("unexpected item after buy: state=%s owner=%s", item.State, item.OwnerID)
	}

	// The overpayment was refunded: only the price left the buyer's account.
	var acct model.Account
	if status = do(t, "GET", server.URL+"/api/accounts/acme-dist", distributorToken, nil, &acct); status != http.StatusOK {
		t.Fatalf("get account: %d", status)
	}
	if acct.Balance != 400 {
		t.Errorf("expected distributor balance 400, got %d", acct.Balance)
	}

	// Ship, receive, purchase.
	if status = do(t, "POST", server.URL+"/api/items/101/ship", distributorToken, nil, nil); status != http.StatusOK {
		t.Fatalf("ship: %d", status)
	}
	if status = do(t, "POST", server.URL+"/api/items/101/receive", retailerToken, nil, nil); status != http.StatusOK {
		t.Fatalf("receive: %d", status)
	}
	if status = do(t, "POST", server.URL+"/api/items/101/purchase", consumerToken, nil, &item); status != http.StatusOK {
		t.Fatalf("purchase: %d", status)
	}
	if item.State != model.StatePurchased || item.OwnerID != "alice" {
		t.Errorf("unexpected final item: state=%s owner=%s", item.State, item.OwnerID)
	}

	// Full history is visible to any authenticated principal.
	var events []model.Event
	if status = do(t, "GET", server.URL+"/api/items/101/events", consumerToken, nil, &events); status != http.StatusOK {
		t.Fatalf("get events: %d", status)
	}
	if len(events) != 8 {
		t.Fatalf("expected 8 events, got %d", len(events))
	}
	for i, e := range events {
		if e.Name != model.StateOrder[i] {
			t.Errorf("event %d: expected %s, got %s", i, model.StateOrder[i], e.Name)
		}
	}
}

func TestLifecycleErrorStatuses(t *testing.T) {
	server, adminToken := setupTestServer(t)
	farmerToken := createPrincipal(t, server, adminToken, "john-doe", model.RoleFarmer)
	distributorToken := createPrincipal(t, server, adminToken, "acme-dist", model.RoleDistributor)

	// Unknown UPC.
	if status := do(t, "POST", server.URL+"/api/items/999/process", farmerToken, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown upc, got %d", status)
	}

	harvest := map[string]any{"upc": 55, "origin_farm_name": "Farm"}
	if status := do(t, "POST", server.URL+"/api/items", farmerToken, harvest, nil); status != http.StatusCreated {
		t.Fatalf("harvest: %d", status)
	}

	// Duplicate UPC.
	if status := do(t, "POST", server.URL+"/api/items", farmerToken, harvest, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate upc, got %d", status)
	}

	// Out of order: pack before process.
	if status := do(t, "POST", server.URL+"/api/items/55/pack", farmerToken, nil, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for out-of-order transition, got %d", status)
	}

	// Wrong role: distributor cannot process.
	if status := do(t, "POST", server.URL+"/api/items/55/process", distributorToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for wrong role, got %d", status)
	}

	// Underpayment.
	do(t, "POST", server.URL+"/api/items/55/process", farmerToken, nil, nil)
	do(t, "POST", server.URL+"/api/items/55/pack", farmerToken, nil, nil)
	do(t, "POST", server.URL+"/api/items/55/sell", farmerToken, map[string]any{"price": 100}, nil)
	do(t, "POST", server.URL+"/api/accounts/deposit", adminToken,
		map[string]any{"principal": "acme-dist", "amount": 500}, nil)
	if status := do(t, "POST", server.URL+"/api/items/55/buy", distributorToken, map[string]any{"payment": 50}, nil); status != http.StatusPaymentRequired {
		t.Errorf("expected 402 for underpayment, got %d", status)
	}
}

func TestItemQueries(t *testing.T) {
	server, adminToken := setupTestServer(t)
	farmerToken := createPrincipal(t, server, adminToken, "john-doe", model.RoleFarmer)

	do(t, "POST", server.URL+"/api/items", farmerToken,
		map[string]any{"upc": 1, "origin_farm_name": "Farm A"}, nil)
	do(t, "POST", server.URL+"/api/items", farmerToken,
		map[string]any{"upc": 2, "origin_farm_name": "Farm B"}, nil)
	do(t, "POST", server.URL+"/api/items/2/process", farmerToken, nil, nil)

	var items []model.Item
	if status := do(t, "GET", server.URL+"/api/items", adminToken, nil, &items); status != http.StatusOK {
		t.Fatalf("list items: %d", status)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}

	items = nil
	if status := do(t, "GET", server.URL+"/api/items?state=processed", adminToken, nil, &items); status != http.StatusOK {
		t.Fatalf("list filtered: %d", status)
	}
	if len(items) != 1 || items[0].UPC != 2 {
		t.Errorf("expected only upc 2 processed, got %+v", items)
	}

	if status := do(t, "GET", server.URL+"/api/items?state=bogus", adminToken, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad state filter, got %d", status)
	}

	if status := do(t, "GET", server.URL+"/api/items/404", adminToken, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown item, got %d", status)
	}
}

func TestAccountAccessControl(t *testing.T) {
	server, adminToken := setupTestServer(t)
	farmerToken := createPrincipal(t, server, adminToken, "john-doe", model.RoleFarmer)
	otherToken := createPrincipal(t, server, adminToken, "acme-dist", model.RoleDistributor)

	// Own balance is readable.
	if status := do(t, "GET", server.URL+"/api/accounts/john-doe", farmerToken, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 reading own account, got %d", status)
	}

	// Someone else's is not, unless admin.
	if status := do(t, "GET", server.URL+"/api/accounts/john-doe", otherToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 reading another account, got %d", status)
	}
	if status := do(t, "GET", server.URL+"/api/accounts/john-doe", adminToken, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 for admin reading any account, got %d", status)
	}
}

func TestChangePassword(t *testing.T) {
	server, adminToken := setupTestServer(t)

	status := do(t, "PUT", server.URL+"/api/auth/password", adminToken,
		map[string]string{"current_password": "password", "new_password": "changed"}, nil)
	if status != http.StatusOK {
		t.Fatalf("change password: %d", status)
	}

	// Old password no longer works, new one does.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with old password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	login(t, server, "admin", "changed")
}

func TestPhotoUpload(t *testing.T) {
	server, adminToken := setupTestServer(t)
	farmerToken := createPrincipal(t, server, adminToken, "john-doe", model.RoleFarmer)
	otherToken := createPrincipal(t, server, adminToken, "acme-dist", model.RoleDistributor)

	do(t, "POST", server.URL+"/api/items", farmerToken,
		map[string]any{"upc": 7, "origin_farm_name": "Farm"}, nil)

	photo := testJPEG(t)

	// Only the origin farmer may upload.
	req, _ := http.NewRequest("PUT", server.URL+"/api/items/7/photo", bytes.NewReader(photo))
	req.Header.Set("Authorization", "Bearer "+otherToken)
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for non-farmer upload, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ = http.NewRequest("PUT", server.URL+"/api/items/7/photo", bytes.NewReader(photo))
	req.Header.Set("Authorization", "Bearer "+farmerToken)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("photo upload: %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Fetch it back.
	req, _ = authRequest("GET", server.URL+"/api/items/7/photo", farmerToken, nil)
	resp, _ = http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("photo fetch: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}
	resp.Body.Close()
}
