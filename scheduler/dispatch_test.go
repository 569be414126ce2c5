package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishName(t *testing.T) {
	name, err := publishName("accounts/123/locations/456", "accounts/*/locations/456/reviews/789")
	assert.NoError(t, err)
	assert.Equal(t, "accounts/123/locations/456/reviews/789", name)
}

func TestPublishName_Malformed(t *testing.T) {
	_, err := publishName("accounts/123/locations/456", "not-a-review-name")
	assert.Error(t, err)
}
