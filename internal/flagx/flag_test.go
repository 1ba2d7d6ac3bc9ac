package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	server := []string{"-a", "-k", "-m"}

	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "keeps server flags and drops config",
			args:    []string{"-c", "vault.yaml", "-a", ":9090", "-k", "local"},
			allowed: server,
			want:    []string{"-a", ":9090", "-k", "local"},
		},
		{
			name:    "equals form",
			args:    []string{"-m=k1:9092,k2:9092", "-x=1"},
			allowed: server,
			want:    []string{"-m=k1:9092,k2:9092"},
		},
		{
			name:    "value never starts with a dash",
			args:    []string{"-a", "-k", "s3"},
			allowed: server,
			want:    []string{"-a", "-k", "s3"},
		},
		{
			name:    "trailing flag without value",
			args:    []string{"-k"},
			allowed: server,
			want:    []string{"-k"},
		},
		{
			name:    "positional arguments dropped",
			args:    []string{"serve", "-a", ":80", "extra"},
			allowed: server,
			want:    []string{"-a", ":80"},
		},
		{
			name:    "repeated flag keeps order",
			args:    []string{"-k", "s3", "-k", "local"},
			allowed: server,
			want:    []string{"-k", "s3", "-k", "local"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"-a", ":80"},
			allowed: nil,
			want:    []string{},
		},
		{
			name:    "no args",
			args:    nil,
			allowed: server,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigFile(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "short", args: []string{"-c", "/etc/vault.yaml"}, want: "/etc/vault.yaml"},
		{name: "long", args: []string{"-config", "/etc/vault.toml"}, want: "/etc/vault.toml"},
		{name: "equals form", args: []string{"-a", ":9090", "--config=vault.json"}, want: "vault.json"},
		{name: "mixed with server flags", args: []string{"-a", ":9090", "-c", "v.json", "-k", "local"}, want: "v.json"},
		{name: "absent", args: []string{"-x", "1", "-y", "2"}, want: ""},
		{name: "last wins", args: []string{"-c", "/path/1.json", "-config", "/path/2.json"}, want: "/path/2.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigFile(tt.args))
		})
	}
}
