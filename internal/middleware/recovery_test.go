package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/assocnet/pipeline/internal/envelope"
)

func TestRecoveryConvertsPanicTo500(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)

	router := gin.New()
	router.GET("/boom", Recovery(zap.New(core)), func(c *gin.Context) {
		panic("something broke")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	code, message := decodeError(t, w.Body.Bytes())
	assert.Equal(t, string(envelope.CodeInternal), code)
	assert.Equal(t, "an unexpected error occurred", message)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "panic recovered", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "something broke", fields["error"])
	assert.NotEmpty(t, fields["stack"])
}

func TestRecoveryHidesDetailsByDefault(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.GET("/boom", Recovery(zap.NewNop()), func(c *gin.Context) {
		panic("secret detail")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

	var resp struct {
		Error struct {
			Details any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error.Details)
	assert.NotContains(t, w.Body.String(), "secret detail")
}

func TestRecoveryExposesStackWhenConfigured(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.GET("/boom",
		RecoveryWithConfig(RecoveryConfig{Logger: zap.NewNop(), ExposeStack: true}),
		func(c *gin.Context) {
			panic("visible detail")
		},
	)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

	var resp struct {
		Error struct {
			Details struct {
				Panic string `json:"panic"`
				Stack string `json:"stack"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "visible detail", resp.Error.Details.Panic)
	assert.NotEmpty(t, resp.Error.Details.Stack)
}

func TestRecoveryDoesNotInterfereWithNormalRequests(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.GET("/ok", Recovery(zap.NewNop()), func(c *gin.Context) {
		c.String(http.StatusOK, "fine")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fine", w.Body.String())
}

func TestRecoveryIncludesRequestID(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)

	router := gin.New()
	router.GET("/boom",
		Logging(zap.NewNop()),
		Recovery(zap.New(core)),
		func(c *gin.Context) {
			panic("boom")
		},
	)

	r := httptest.NewRequest("GET", "/boom", nil)
	r.Header.Set(HeaderXRequestID, "corr-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "corr-1", logs.All()[0].ContextMap()["requestID"])
}
