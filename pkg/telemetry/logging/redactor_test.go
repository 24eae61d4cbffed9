package logging

import (
	"log/slog"
	"strings"
	"testing"
)

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "postgres url",
			input: "postgres://admin:s3cret@db:5432/game",
			want:  "postgres://admin:REDACTED@db:5432/game",
		},
		{
			name:  "mysql dsn",
			input: "root:s3cret@tcp(db:3306)/game?tls=false",
			want:  "root:REDACTED@tcp(db:3306)/game?tls=false",
		},
		{
			name:  "mysql dsn inside error",
			input: "open (root:s3cret@tcp(db:3306)/game): refused",
			want:  "open (root:REDACTED@tcp(db:3306)/game): refused",
		},
		{
			name:  "key value",
			input: "host=db password=s3cret sslmode=disable",
			want:  "host=db password=REDACTED sslmode=disable",
		},
		{
			name:  "no credentials",
			input: "jdbc-style host db:3306",
			want:  "jdbc-style host db:3306",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.input); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r := NewRedactor()

	if got := r.RedactAttr(slog.String("db_password", "x")); got.Value.String() != Redacted {
		t.Errorf("sensitive key not redacted: %v", got)
	}

	group := slog.Group("conn", slog.String("password", "x"), slog.String("host", "db"))
	got := r.RedactAttr(group)
	for _, a := range got.Value.Group() {
		if a.Key == "password" && a.Value.String() != Redacted {
			t.Errorf("nested password not redacted: %v", a)
		}
		if a.Key == "host" && a.Value.String() != "db" {
			t.Errorf("nested host changed: %v", a)
		}
	}

	if got := r.RedactAttr(slog.Int("port", 3306)); got.Value.Int64() != 3306 {
		t.Errorf("non-string attribute changed: %v", got)
	}
}

func TestRedactProperties(t *testing.T) {
	props := map[string]string{"password": "x", "useSSL": "false", "clientToken": "y"}
	got := RedactProperties(props)

	if got["password"] != Redacted || got["clientToken"] != Redacted {
		t.Errorf("sensitive properties not redacted: %v", got)
	}
	if got["useSSL"] != "false" {
		t.Errorf("non-sensitive property changed: %v", got)
	}
	if props["password"] != "x" {
		t.Error("input map must not be modified")
	}
	if RedactProperties(nil) != nil {
		t.Error("nil input should stay nil")
	}
}

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		name   string
		dsn    string
		absent string
		keep   string
	}{
		{"url with password", "postgres://u:pw@host:5432/db?sslmode=disable", "pw@", "sslmode=disable"},
		{"url query password", "postgres://host/db?password=pw", "password=pw", "host/db"},
		{"mysql dsn", "u:pw@tcp(host:3306)/db", ":pw@", "tcp(host:3306)/db"},
		{"file path", "/var/data/sqlite/data.db", "REDACTED", "/var/data/sqlite/data.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactDSN(tt.dsn)
			if strings.Contains(got, tt.absent) {
				t.Errorf("RedactDSN(%q) = %q, should not contain %q", tt.dsn, got, tt.absent)
			}
			if !strings.Contains(got, tt.keep) {
				t.Errorf("RedactDSN(%q) = %q, should contain %q", tt.dsn, got, tt.keep)
			}
		})
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for _, key := range []string{"password", "PASSWORD", "db_passwd", "api_token", "client_secret"} {
		if !IsSensitiveKey(key) {
			t.Errorf("expected %q to be sensitive", key)
		}
	}
	for _, key := range []string{"host", "port", "user", "table"} {
		if IsSensitiveKey(key) {
			t.Errorf("expected %q not to be sensitive", key)
		}
	}
}
