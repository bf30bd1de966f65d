package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveLookupCountsOutcome(t *testing.T) {
	before := testutil.ToFloat64(lookupsTotal.WithLabelValues("decoding"))
	ObserveLookup("decoding", 10*time.Millisecond)
	if got := testutil.ToFloat64(lookupsTotal.WithLabelValues("decoding")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}

func TestObserveCacheLabels(t *testing.T) {
	hits := testutil.ToFloat64(lookupCacheTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(lookupCacheTotal.WithLabelValues("miss"))
	ObserveCache(true)
	ObserveCache(false)
	ObserveCache(false)
	if testutil.ToFloat64(lookupCacheTotal.WithLabelValues("hit")) != hits+1 {
		t.Fatal("expected one more hit")
	}
	if testutil.ToFloat64(lookupCacheTotal.WithLabelValues("miss")) != misses+2 {
		t.Fatal("expected two more misses")
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/identifications/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/identifications/:id", "204")
	before := testutil.ToFloat64(counter)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/identifications/abc", nil))
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}
