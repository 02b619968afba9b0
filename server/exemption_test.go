package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitalvas/svcauth/registry"
)

func TestCheckExemption(t *testing.T) {
	tests := []struct {
		name       string
		rec        *registry.ServiceRecord
		remoteAddr string
		wantExempt bool
		wantErr    error
	}{
		{
			name:       "nil record",
			remoteAddr: "10.0.0.1:80",
		},
		{
			name:       "not exempt",
			rec:        &registry.ServiceRecord{ID: "svc"},
			remoteAddr: "10.0.0.1:80",
		},
		{
			name:       "exempt from anywhere",
			rec:        &registry.ServiceRecord{ID: "svc", ExemptEncryption: true},
			remoteAddr: "203.0.113.9:4431",
			wantExempt: true,
		},
		{
			name:       "pinned address with port",
			rec:        &registry.ServiceRecord{ID: "svc", ExemptEncryption: true, ExemptAddress: "10.0.0.1"},
			remoteAddr: "10.0.0.1:52000",
			wantExempt: true,
		},
		{
			name:       "pinned address without port",
			rec:        &registry.ServiceRecord{ID: "svc", ExemptEncryption: true, ExemptAddress: "10.0.0.1"},
			remoteAddr: "10.0.0.1",
			wantExempt: true,
		},
		{
			name:       "ipv4 mapped ipv6",
			rec:        &registry.ServiceRecord{ID: "svc", ExemptEncryption: true, ExemptAddress: "10.0.0.1"},
			remoteAddr: "[::ffff:10.0.0.1]:52000",
			wantExempt: true,
		},
		{
			name:       "ipv6",
			rec:        &registry.ServiceRecord{ID: "svc", ExemptEncryption: true, ExemptAddress: "2001:db8::1"},
			remoteAddr: "[2001:db8:0:0::1]:443",
			wantExempt: true,
		},
		{
			name:       "pinned address mismatch",
			rec:        &registry.ServiceRecord{ID: "svc", ExemptEncryption: true, ExemptAddress: "10.0.0.1"},
			remoteAddr: "10.0.0.2:52000",
			wantExempt: true,
			wantErr:    ErrAddressMismatch,
		},
		{
			name:       "unparseable remote address",
			rec:        &registry.ServiceRecord{ID: "svc", ExemptEncryption: true, ExemptAddress: "10.0.0.1"},
			remoteAddr: "pipe",
			wantExempt: true,
			wantErr:    ErrAddressMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exempt, err := CheckExemption(tt.rec, tt.remoteAddr)

			assert.Equal(t, tt.wantExempt, exempt)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
