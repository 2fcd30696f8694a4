package binder_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/hostkit/pkg/binder"
)

type quoteRequest struct {
	Properties int     `json:"properties" query:"properties"`
	Period     string  `json:"period" query:"period"`
	Coupon     *string `json:"coupon_code,omitempty" query:"coupon_code"`
}

type invoicePath struct {
	InvoiceID string `path:"invoiceID"`
}

type confirmRequest struct {
	invoicePath
	Note string `path:"-"`
}

type pagedRequest struct {
	quoteRequest
	Tags    []string `query:"tags"`
	Verbose bool     `query:"verbose"`
	Secret  string   `query:"-"`
	ID      string   `path:"id" query:"-"`
}

func TestJSON(t *testing.T) {
	t.Parallel()
	bind := binder.JSON()

	newReq := func(method, contentType, body string) *http.Request {
		r := httptest.NewRequest(method, "/pricing/calculate", strings.NewReader(body))
		if contentType != "" {
			r.Header.Set("Content-Type", contentType)
		}
		return r
	}

	t.Run("decodes body", func(t *testing.T) {
		t.Parallel()
		var req quoteRequest
		err := bind(newReq(http.MethodPost, "application/json; charset=utf-8",
			`{"properties":12,"period":"annual","coupon_code":"WELCOME"}`), &req)
		require.NoError(t, err)
		assert.Equal(t, 12, req.Properties)
		assert.Equal(t, "annual", req.Period)
		require.NotNil(t, req.Coupon)
		assert.Equal(t, "WELCOME", *req.Coupon)
	})

	t.Run("not applicable", func(t *testing.T) {
		t.Parallel()
		var req quoteRequest
		assert.ErrorIs(t, bind(newReq(http.MethodGet, "application/json", `{}`), &req), binder.ErrNotApplicable)
		assert.ErrorIs(t, bind(newReq(http.MethodPost, "application/json", ``), &req), binder.ErrNotApplicable)
	})

	t.Run("rejects", func(t *testing.T) {
		t.Parallel()
		var req quoteRequest
		assert.ErrorIs(t, bind(newReq(http.MethodPost, "", `{}`), &req), binder.ErrMissingContentType)
		assert.ErrorIs(t, bind(newReq(http.MethodPost, "text/plain", `{}`), &req), binder.ErrUnsupportedMediaType)
		assert.ErrorIs(t, bind(newReq(http.MethodPost, "application/json", `{"unknown":1}`), &req), binder.ErrFailedToParseJSON)
		assert.ErrorIs(t, bind(newReq(http.MethodPost, "application/json", `{"properties":"x"}`), &req), binder.ErrFailedToParseJSON)
		assert.ErrorIs(t, bind(newReq(http.MethodPost, "application/json", `{} {}`), &req), binder.ErrFailedToParseJSON)

		big := `{"period":"` + strings.Repeat("a", binder.MaxJSONSize) + `"}`
		assert.ErrorIs(t, bind(newReq(http.MethodPost, "application/json", big), &req), binder.ErrFailedToParseJSON)
	})
}

func TestQuery(t *testing.T) {
	t.Parallel()
	bind := binder.Query()

	t.Run("binds embedded and slices", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet,
			"/x?properties=25&period=semiannual&coupon_code=HALF&tags=a,b&tags=c&verbose=yes&Secret=s", nil)
		var req pagedRequest
		require.NoError(t, bind(r, &req))
		assert.Equal(t, 25, req.Properties)
		assert.Equal(t, "semiannual", req.Period)
		require.NotNil(t, req.Coupon)
		assert.Equal(t, "HALF", *req.Coupon)
		assert.Equal(t, []string{"a", "b", "c"}, req.Tags)
		assert.True(t, req.Verbose)
		assert.Empty(t, req.Secret)
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()
		var req quoteRequest
		r := httptest.NewRequest(http.MethodGet, "/x?properties=many", nil)
		assert.ErrorIs(t, bind(r, &req), binder.ErrFailedToParseQuery)

		assert.ErrorIs(t, bind(httptest.NewRequest(http.MethodGet, "/x", nil), &req), binder.ErrNotApplicable)

		var notStruct int
		r = httptest.NewRequest(http.MethodGet, "/x?a=1", nil)
		assert.ErrorIs(t, bind(r, &notStruct), binder.ErrFailedToParseQuery)
	})
}

func TestPath(t *testing.T) {
	t.Parallel()
	params := map[string]string{"id": "inv_1"}
	bind := binder.Path(func(_ *http.Request, name string) string { return params[name] })

	var req pagedRequest
	require.NoError(t, bind(httptest.NewRequest(http.MethodGet, "/", nil), &req))
	assert.Equal(t, "inv_1", req.ID)

	var confirm confirmRequest
	byName := binder.Path(func(_ *http.Request, name string) string {
		if name == "invoiceID" {
			return "inv_2"
		}
		return ""
	})
	require.NoError(t, byName(httptest.NewRequest(http.MethodPost, "/", nil), &confirm))
	assert.Equal(t, "inv_2", confirm.InvoiceID)

	assert.Panics(t, func() { binder.Path(nil) })
}
