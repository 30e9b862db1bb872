package db

import "testing"

func TestConfigBaseURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"ws://localhost:8000/rpc", "ws://localhost:8000"},
		{"wss://db.example.com", "wss://db.example.com"},
		{"ws://localhost:8000/rpc/", "ws://localhost:8000/rpc/"},
	}
	for _, tt := range tests {
		if got := (Config{URL: tt.url}).baseURL(); got != tt.want {
			t.Errorf("baseURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestConfigAuth(t *testing.T) {
	cfg := Config{Namespace: "ns", Database: "lib", Username: "u", Password: "p", AuthLevel: "database"}
	a := cfg.auth()
	if a.Namespace != "ns" || a.Database != "lib" || a.Username != "u" {
		t.Errorf("database auth = %+v, want namespace and database scoped", a)
	}

	cfg.AuthLevel = "root"
	a = cfg.auth()
	if a.Namespace != "" || a.Database != "" || a.Username != "u" || a.Password != "p" {
		t.Errorf("root auth = %+v, want only credentials", a)
	}
}
