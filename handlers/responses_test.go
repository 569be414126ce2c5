package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathID(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		prefix   string
		expected int
		ok       bool
	}{
		{"纯ID", "/api/v1/responses/42", "/api/v1/responses/", 42, true},
		{"带动作后缀", "/api/v1/responses/42/approve", "/api/v1/responses/", 42, true},
		{"队列项", "/api/v1/reviews/queue/7", "/api/v1/reviews/queue/", 7, true},
		{"非数字", "/api/v1/responses/abc", "/api/v1/responses/", 0, false},
		{"缺少ID", "/api/v1/responses/", "/api/v1/responses/", 0, false},
		{"零值拒绝", "/api/v1/responses/0", "/api/v1/responses/", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := pathID(tt.path, tt.prefix)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, id)
		})
	}
}
