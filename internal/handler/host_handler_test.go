package handler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/vkrizan/insights-host-inventory/internal/inventory"
	"github.com/vkrizan/insights-host-inventory/internal/middleware"
	"github.com/vkrizan/insights-host-inventory/internal/model"
	"github.com/vkrizan/insights-host-inventory/pkg/config"
	"github.com/vkrizan/insights-host-inventory/pkg/jwtutil"
	"github.com/vkrizan/insights-host-inventory/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testAccount = "000501"

func TestMain(m *testing.M) {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	prometheus.InitMetrics(cfg)
	jwtutil.Initialize(&cfg.JWT)
	os.Exit(m.Run())
}

// newTestAPI wires the full API surface over an in-memory store, the way
// main does.
func newTestAPI(t *testing.T) *echo.Echo {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Host{}))

	service := inventory.New(db, zap.NewNop(), inventory.Options{})
	hosts := NewHostHandler(service)

	e := echo.New()
	e.Validator = NewRequestValidator()

	api := e.Group("/api")
	api.Use(middleware.IdentityMiddleware)
	api.POST("/hosts", hosts.CreateOrUpdateHost)
	api.GET("/hosts", hosts.ListHosts)
	api.GET("/hosts/:host_id_list", hosts.GetHosts)
	api.PATCH("/hosts/:host_id_list/facts/:namespace", hosts.PatchFacts)
	api.PUT("/hosts/:host_id_list/facts/:namespace", hosts.ReplaceFacts)
	api.POST("/hosts/:host_id_list/tags", hosts.TagOperation)
	return e
}

func identityHeader(account string) string {
	doc := fmt.Sprintf(`{"identity":{"account_number":"%s"}}`, account)
	return base64.StdEncoding.EncodeToString([]byte(doc))
}

func request(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.IdentityHeader, identityHeader(testAccount))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func createHost(t *testing.T, e *echo.Echo, body string) map[string]interface{} {
	t.Helper()
	rec, decoded := request(t, e, http.MethodPost, "/api/hosts", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decoded
}

func TestCreateAndUpdateHost(t *testing.T) {
	e := newTestAPI(t)

	created := createHost(t, e, `{
		"account": "000501",
		"display_name": "host1",
		"canonical_facts": {"ip_addresses": ["10.10.0.1"]},
		"tags": ["/merge_me_1:value1"]
	}`)
	require.NotEmpty(t, created["id"])
	require.NotEmpty(t, created["created"])

	// Same identity again merges instead of creating
	rec, updated := request(t, e, http.MethodPost, "/api/hosts", `{
		"account": "000501",
		"canonical_facts": {
			"ip_addresses": ["10.10.0.1", "10.0.0.2"],
			"rhel_machine_id": "1234-56-789",
			"mac_addresses": ["c2:00:d0:c8:61:01"]
		},
		"tags": ["aws/new_tag_1:new_value_1"]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, created["id"], updated["id"])

	facts := updated["canonical_facts"].(map[string]interface{})
	assert.Equal(t, "1234-56-789", facts["rhel_machine_id"])
	assert.Equal(t, []interface{}{"10.10.0.1", "10.0.0.2"}, facts["ip_addresses"])
	assert.Equal(t, []interface{}{"/merge_me_1:value1", "aws/new_tag_1:new_value_1"}, updated["tags"])
}

func TestCreateHostRejectsBadSubmissions(t *testing.T) {
	e := newTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{
			name: "not json",
			body: `{invalid`,
		},
		{
			name: "missing account",
			body: `{"canonical_facts": {"ip_addresses": ["10.10.0.1"]}}`,
		},
		{
			name: "mismatched account",
			body: `{"account": "105000", "canonical_facts": {"ip_addresses": ["10.10.0.1"]}}`,
		},
		{
			name: "no canonical facts",
			body: `{"account": "000501"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := request(t, e, http.MethodPost, "/api/hosts", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateHostRequiresIdentity(t *testing.T) {
	e := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/hosts", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAmbiguousSubmissionConflicts(t *testing.T) {
	e := newTestAPI(t)

	createHost(t, e, `{"account": "000501", "canonical_facts": {"insights_id": "12345"}}`)
	createHost(t, e, `{"account": "000501", "canonical_facts": {"bios_uuid": "aaaa-bbbb"}}`)

	rec, _ := request(t, e, http.MethodPost, "/api/hosts", `{
		"account": "000501",
		"canonical_facts": {"insights_id": "12345", "bios_uuid": "aaaa-bbbb"}
	}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestGetHostsByIDList(t *testing.T) {
	e := newTestAPI(t)

	first := createHost(t, e, `{"account": "000501", "canonical_facts": {"insights_id": "12345"}}`)
	second := createHost(t, e, `{"account": "000501", "canonical_facts": {"insights_id": "54321"}}`)

	rec, decoded := request(t, e, http.MethodGet,
		"/api/hosts/"+first["id"].(string)+","+second["id"].(string), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decoded["count"])

	// Single unknown ID is a 404
	rec, _ = request(t, e, http.MethodGet, "/api/hosts/b54fb0a8-9c42-4bba-9b75-a3868355f49b", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListHostsWithFilters(t *testing.T) {
	e := newTestAPI(t)

	createHost(t, e, `{
		"account": "000501",
		"display_name": "host1",
		"canonical_facts": {"insights_id": "12345"},
		"tags": ["aws/new_tag_1:new_value_1", "aws/k:v"]
	}`)
	createHost(t, e, `{
		"account": "000501",
		"display_name": "host2",
		"canonical_facts": {"insights_id": "54321"},
		"tags": ["aws/new_tag_1:new_value_1"]
	}`)

	rec, decoded := request(t, e, http.MethodGet, "/api/hosts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decoded["count"])

	rec, decoded = request(t, e, http.MethodGet, "/api/hosts?tag=aws/new_tag_1:new_value_1&tag=aws/k:v", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decoded["count"])

	// Truncated display name matches as substring
	rec, decoded = request(t, e, http.MethodGet, "/api/hosts?display_name=hos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decoded["count"])
}

func TestPatchAndReplaceFacts(t *testing.T) {
	e := newTestAPI(t)

	created := createHost(t, e, `{
		"account": "000501",
		"canonical_facts": {"insights_id": "12345"},
		"facts": [{"namespace": "ns1", "facts": {"key1": "value1"}}]
	}`)
	id := created["id"].(string)

	rec, decoded := request(t, e, http.MethodPatch, "/api/hosts/"+id+"/facts/ns1",
		`{"newfact1": "newvalue1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []interface{}{id}, decoded["updated"])

	rec, decoded = request(t, e, http.MethodPut, "/api/hosts/"+id+"/facts/ns1", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{id}, decoded["updated"])

	// Null body is not a mapping
	rec, _ = request(t, e, http.MethodPatch, "/api/hosts/"+id+"/facts/ns1", `null`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTagOperations(t *testing.T) {
	e := newTestAPI(t)

	created := createHost(t, e, `{
		"account": "000501",
		"canonical_facts": {"insights_id": "12345"},
		"tags": ["aws/new_tag_1:new_value_1", "aws/k:v"]
	}`)
	id := created["id"].(string)

	rec, decoded := request(t, e, http.MethodPost, "/api/hosts/"+id+"/tags",
		`{"operation": "apply", "tag": "aws/unique:value"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []interface{}{id}, decoded["updated"])

	rec, decoded = request(t, e, http.MethodPost, "/api/hosts/"+id+"/tags",
		`{"operation": "remove", "tag": "aws/k:v"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{id}, decoded["updated"])

	rec, decoded = request(t, e, http.MethodGet, "/api/hosts/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	host := decoded["results"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, []interface{}{"aws/new_tag_1:new_value_1", "aws/unique:value"}, host["tags"])

	// Unknown operation is rejected
	rec, _ = request(t, e, http.MethodPost, "/api/hosts/"+id+"/tags",
		`{"operation": "rename", "tag": "aws/k:v"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
