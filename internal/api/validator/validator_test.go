package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequests(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		req    interface{}
		fields []string
	}{
		{"valid register", &RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "secret1"}, nil},
		{"bad role", &RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "secret1", Role: "owner"}, []string{"role"}},
		{"short password", &RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "123"}, []string{"password"}},
		{"bad client", &LoginRequest{Email: "ann@example.com", Password: "x", ClientType: "watch"}, []string{"clientType"}},
		{"missing site", &ProjectRequest{Name: "Site"}, []string{"siteId"}},
		{"missing edit fields", &ApplyEditRequest{}, []string{"pageId", "content"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var ve ValidationErrors
			require.True(t, errors.As(err, &ve))
			fields := ve.Fields()
			for _, f := range tt.fields {
				assert.Contains(t, fields, f)
			}
		})
	}
}
