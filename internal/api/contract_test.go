// SPDX-License-Identifier: MIT
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careshift/careshift/internal/clinical"
)

const contractFixture = "../../docs/openapi.yaml"

var (
	contractOnce   sync.Once
	contractDoc    *openapi3.T
	contractRouter routers.Router
	contractErr    error
)

func loadContract(t *testing.T) (*openapi3.T, routers.Router) {
	t.Helper()
	contractOnce.Do(func() {
		loader := openapi3.NewLoader()
		loader.IsExternalRefsAllowed = false
		contractDoc, contractErr = loader.LoadFromFile(contractFixture)
		if contractErr != nil {
			return
		}
		if contractErr = contractDoc.Validate(context.Background()); contractErr != nil {
			return
		}
		contractRouter, contractErr = legacy.NewRouter(contractDoc)
	})
	require.NoError(t, contractErr)
	return contractDoc, contractRouter
}

var pathParamRe = regexp.MustCompile(`\{[^}]+\}`)

func TestContractDocumentValid(t *testing.T) {
	doc, _ := loadContract(t)
	assert.Equal(t, "CareShift API", doc.Info.Title)
	assert.NotEmpty(t, doc.Paths.Map())
}

// chiRoutes exposes the route table of the fixture server for walking.
func chiRoutes(t *testing.T, fx *fixture) chi.Routes {
	t.Helper()
	routes, ok := fx.server.Router().(chi.Routes)
	require.True(t, ok, "router does not expose its route table")
	return routes
}

// normalizePattern maps a chi route pattern onto the documented path form.
func normalizePattern(pattern string) string {
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	return pattern
}

// Every route the server registers must be documented.
func TestContractCoversAllRoutes(t *testing.T) {
	_, specRouter := loadContract(t)
	fx := newFixture(t)

	err := chi.Walk(chiRoutes(t, fx), func(method, pattern string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if method == http.MethodOptions {
			return nil
		}
		path := normalizePattern(pathParamRe.ReplaceAllString(pattern, "sample"))
		req := httptest.NewRequest(method, path, nil)
		_, _, findErr := specRouter.FindRoute(req)
		assert.NoErrorf(t, findErr, "%s %s is not documented", method, pattern)
		return nil
	})
	require.NoError(t, err)
}

// Every documented operation must resolve to a handler, so the document
// cannot drift ahead of the implementation.
func TestContractHasNoPhantomOperations(t *testing.T) {
	doc, _ := loadContract(t)
	fx := newFixture(t)

	registered := map[string]bool{}
	err := chi.Walk(chiRoutes(t, fx), func(method, pattern string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		registered[method+" "+normalizePattern(pattern)] = true
		return nil
	})
	require.NoError(t, err)

	for path, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			assert.Truef(t, registered[method+" "+path], "%s %s is documented but not served", method, path)
		}
	}
}

func validateResponse(t *testing.T, specRouter routers.Router, req *http.Request, res *http.Response, body []byte) {
	t.Helper()
	route, pathParams, err := specRouter.FindRoute(req)
	require.NoError(t, err)

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status: res.StatusCode,
		Header: res.Header,
		Options: &openapi3filter.Options{
			IncludeResponseStatus: true,
		},
	}
	input.SetBodyBytes(body)
	assert.NoError(t, openapi3filter.ValidateResponse(context.Background(), input))
}

// duplicateOrderJSON encodes the order seedState already stored, so POSTing
// it again yields the documented 409.
func duplicateOrderJSON(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(clinical.Order{
		ID:          "o1",
		PatientID:   "p1",
		Type:        clinical.OrderProcedure,
		Description: "Critical stat procedure",
		DueAt:       testNow.Add(100 * time.Minute),
		IsSTAT:      true,
	})
	require.NoError(t, err)
	return raw
}

// Live responses for the core flows must match their documented schemas.
func TestContractResponseSchemas(t *testing.T) {
	_, specRouter := loadContract(t)
	fx := newFixture(t)
	seedState(t, fx)

	cases := []struct {
		name   string
		method string
		path   string
		body   []byte
		status int
	}{
		{name: "state", method: http.MethodGet, path: "/api/v1/state", status: http.StatusOK},
		{name: "replan", method: http.MethodPost, path: "/api/v1/state/replan", status: http.StatusOK},
		{name: "demo payload", method: http.MethodGet, path: "/api/v1/demo/payload", status: http.StatusOK},
		{name: "system status", method: http.MethodGet, path: "/api/v1/system/status", status: http.StatusOK},
		{name: "order conflict", method: http.MethodPost, path: "/api/v1/state/orders",
			body:   duplicateOrderJSON(t),
			status: http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var reqBody io.Reader
			if tc.body != nil {
				reqBody = bytes.NewReader(tc.body)
			}
			req, err := http.NewRequest(tc.method, fx.ts.URL+tc.path, reqBody)
			require.NoError(t, err)
			if tc.body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			res, err := fx.ts.Client().Do(req)
			require.NoError(t, err)
			defer res.Body.Close()
			payload, err := io.ReadAll(res.Body)
			require.NoError(t, err)
			require.Equal(t, tc.status, res.StatusCode)

			// FindRoute works on the path, not the live URL.
			specReq := httptest.NewRequest(tc.method, tc.path, nil)
			validateResponse(t, specRouter, specReq, res, payload)
		})
	}
}
