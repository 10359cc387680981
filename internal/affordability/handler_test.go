package affordability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/mortgage-ai-platform/internal/http/respond"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

type recordingObserver struct {
	factors []LimitingFactor
}

func (o *recordingObserver) ObserveCalculation(f string, _ bool) {
	o.factors = append(o.factors, LimitingFactor(f))
}

func TestHandlerCalculate(t *testing.T) {
	obs := &recordingObserver{}
	h := NewHandler(DefaultRules(), obs, logging.Discard())

	body := `{"propertyPrice":1000000,"propertyType":"hdb","monthlyIncomes":[10000],"ages":[35],"citizenship":"citizen"}`
	req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Calculate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 750_000.0, res.MaxLoan)
	assert.Equal(t, LimitLTV, res.LimitingFactor)
	assert.Equal(t, []LimitingFactor{LimitLTV}, obs.factors)
}

func TestHandlerRejectsMalformedJSON(t *testing.T) {
	h := NewHandler(DefaultRules(), nil, logging.Discard())
	req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.Calculate(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRejectsInvalidInput(t *testing.T) {
	h := NewHandler(DefaultRules(), nil, logging.Discard())
	req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(`{"propertyPrice":-1,"ages":[12]}`))
	rec := httptest.NewRecorder()
	h.Calculate(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body respond.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Details, 3)
}
