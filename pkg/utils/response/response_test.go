package response

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
	"github.com/kart-io/sentinel-rag/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFailUsesErrnoStatus(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Accept-Language", "zh")
	c.Set(RequestIDKey, "req-1")

	Fail(c, errors.ErrRAGInsufficientCredits)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, errors.ErrRAGInsufficientCredits.Code, resp.Code)
	assert.Equal(t, "积分不足，请升级套餐", resp.Message)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.True(t, c.IsAborted())
}

func TestFailWrapsUnknownErrors(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	Fail(c, stderrors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	OK(c, map[string]int{"n": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0,"message":"success","data":{"n":1}}`, w.Body.String())
}

func TestHTTPStatusFallsBackToCategory(t *testing.T) {
	r := &Response{Code: errors.MakeCode(99, errors.CategoryPayment, 9)}
	assert.Equal(t, http.StatusPaymentRequired, r.HTTPStatus())
	assert.Equal(t, http.StatusOK, Success(nil).HTTPStatus())
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2}, 21, 1, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, NewPage(nil, 5, 1, 0).TotalPages)
}
