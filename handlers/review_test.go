package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewQueryFromParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/reviews?location_id=3&rating=5&status=new&needs_response=true&page=2&size=10", nil)
	q := reviewQueryFromParams(r)

	require.NotNil(t, q.LocationID)
	assert.Equal(t, 3, *q.LocationID)
	require.NotNil(t, q.Rating)
	assert.Equal(t, 5, *q.Rating)
	require.NotNil(t, q.Status)
	assert.Equal(t, "new", *q.Status)
	require.NotNil(t, q.NeedsResponse)
	assert.True(t, *q.NeedsResponse)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 10, q.Size)
}

// 无参数请求回显的分页值必须是生效的默认值，不是零值
func TestReviewQueryFromParams_DefaultsEcho(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/reviews", nil)
	q := reviewQueryFromParams(r)

	assert.Nil(t, q.LocationID)
	assert.Nil(t, q.Rating)
	assert.Equal(t, 0, q.Page)
	assert.Equal(t, 0, q.Size)

	q.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 20, q.Size)
}

func TestReviewQueryNormalize_SizeCap(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/reviews?size=500", nil)
	q := reviewQueryFromParams(r)
	q.Normalize()
	assert.Equal(t, 20, q.Size)
}
