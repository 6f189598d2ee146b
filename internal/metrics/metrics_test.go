package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/neexbeast/geoplaces/internal/apperr"
)

func TestRecordDBQuery_ErrorKinds(t *testing.T) {
	notFound := DBQueryErrors.WithLabelValues("place_get", string(apperr.KindNotFound))
	internal := DBQueryErrors.WithLabelValues("place_get", string(apperr.KindInternal))
	beforeNF := testutil.ToFloat64(notFound)
	beforeInt := testutil.ToFloat64(internal)

	RecordDBQuery("place_get", time.Millisecond, nil)
	RecordDBQuery("place_get", time.Millisecond, apperr.NotFound("place not found"))
	RecordDBQuery("place_get", time.Millisecond, errors.New("connection reset"))

	assert.Equal(t, beforeNF+1, testutil.ToFloat64(notFound))
	assert.Equal(t, beforeInt+1, testutil.ToFloat64(internal))
}

func TestRecordAPIRequest(t *testing.T) {
	c := APIRequestsTotal.WithLabelValues("GET", "/places/{id}", "200")
	before := testutil.ToFloat64(c)

	RecordAPIRequest("GET", "/places/{id}", "200", 5*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestRecordLoginFailure(t *testing.T) {
	creds := LoginFailures.WithLabelValues("credentials")
	locked := LoginFailures.WithLabelValues("locked")
	beforeCreds, beforeLocked := testutil.ToFloat64(creds), testutil.ToFloat64(locked)

	RecordLoginFailure(apperr.Unauthenticated("incorrect username or password"))
	RecordLoginFailure(apperr.RateLimited("too many failed login attempts"))

	assert.Equal(t, beforeCreds+1, testutil.ToFloat64(creds))
	assert.Equal(t, beforeLocked+1, testutil.ToFloat64(locked))
}
