// e2e_test.go
//
// Full-stack tests against the containerized service.

package e2e_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/attrkit/eavdb/internal/config"
	"github.com/attrkit/eavdb/internal/database"
	"github.com/attrkit/eavdb/internal/services"
	"github.com/attrkit/eavdb/tests/helpers"
)

// TestE2EWithFullStack tests the entire service stack
func TestE2EWithFullStack(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()

	tc, err := helpers.CreateAllTestContainers(t)
	if err != nil {
		t.Fatalf("Failed to start test containers: %v", err)
	}
	defer tc.Terminate(t)

	eavdbHost, _ := tc.EavdbContainer.Host(ctx)
	eavdbPort, _ := tc.EavdbContainer.MappedPort(ctx, "3000")
	baseURL := fmt.Sprintf("http://%s:%s", eavdbHost, eavdbPort.Port())

	// Wait a bit for everything to stabilize
	time.Sleep(5 * time.Second)

	// Run E2E tests
	t.Run("HealthCheck", func(t *testing.T) {
		testHealthCheck(t, tc)
	})

	t.Run("PrometheusMetrics", func(t *testing.T) {
		testPrometheusMetrics(t, baseURL)
	})

	t.Run("SwaggerUI", func(t *testing.T) {
		testSwaggerUI(t, baseURL)
	})

	// Public API Access
	t.Run("PublicAPIAccess", func(t *testing.T) {
		testPublicAPIAccess(t, baseURL)
	})
}

func testHealthCheck(t *testing.T, tc *helpers.TestContainers) {
	ctx := context.Background()

	// 1. Prepare configuration for the health check
	// We need to point to the mapped ports on localhost, not internal container names
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Update DB host and port to mapped values
	dbHost, _ := tc.DBContainer.Host(ctx)
	dbPort, _ := tc.DBContainer.MappedPort(ctx, "3306")
	cfg.DBHost = dbHost
	cfg.DBPort = dbPort.Port()

	// Update Authorizer URL to mapped value
	authzHost, _ := tc.AuthorizerContainer.Host(ctx)
	authzPort, _ := tc.AuthorizerContainer.MappedPort(ctx, "8080")
	cfg.AuthzURL = fmt.Sprintf("http://%s:%s", authzHost, authzPort.Port())

	// 2. Establish GORM connection to the test database
	gormDB, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	defer database.Close(gormDB)

	// 3. Perform the health check
	result := services.HealthCheck(cfg, gormDB)

	// 4. Verify the result
	if result.Status != "healthy" {
		t.Errorf("Health check failed: %+v", result)
	}

	t.Logf("Health check passed: status=%s, database=%s, authorizer=%s",
		result.Status, result.Database, result.Authorizer)
}

func testPrometheusMetrics(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/metrics")
	if err != nil {
		t.Fatalf("Failed to get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for metrics, got %d. Body: %s", resp.StatusCode, bodyStr)
	}

	t.Logf("Metrics endpoint working, found %d bytes of metrics", len(bodyStr))
}

func testSwaggerUI(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/swagger/index.html")
	if err != nil {
		t.Fatalf("Failed to get Swagger UI: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for Swagger UI, got %d", resp.StatusCode)
	}
}

func testPublicAPIAccess(t *testing.T, baseURL string) {
	// Schema listing is public; an empty store answers 204
	resp, err := http.Get(baseURL + "/api/schemas")
	if err != nil {
		t.Fatalf("Failed to access public API: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 && resp.StatusCode != 204 {
		t.Errorf("Expected status 200 or 204 for schema listing, got %d", resp.StatusCode)
	}

	// The item query endpoint is public too
	resp, err = http.Post(baseURL+"/api/catalog/items/query", "application/json",
		strings.NewReader(`{"filter":{"title":"e2e-nosuchtitle"}}`))
	if err != nil {
		t.Fatalf("Failed to query items: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 && resp.StatusCode != 204 {
		t.Errorf("Expected status 200 or 204 for item query, got %d", resp.StatusCode)
	}

	// Mutations require a session
	resp, err = http.Post(baseURL+"/api/catalog/rubrics", "application/json",
		strings.NewReader(`{"title":"e2e-rubric"}`))
	if err != nil {
		t.Fatalf("Failed to post rubric: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 403 {
		body, _ := io.ReadAll(resp.Body)
		t.Logf("Response body: %s", string(body))
		t.Errorf("Expected status 403, got %d", resp.StatusCode)
	}

	// Unknown routes answer JSON, not HTML
	resp404, err := http.Get(baseURL + "/api/nosuchroute")
	if err != nil {
		t.Fatalf("Failed to access unknown route: %v", err)
	}
	defer resp404.Body.Close()
	if resp404.StatusCode != 404 {
		t.Errorf("Expected status 404, got %d", resp404.StatusCode)
	}
	var result map[string]interface{}
	if err := json.NewDecoder(resp404.Body).Decode(&result); err != nil {
		t.Errorf("Response is not valid JSON: %v", err)
	}
}
