package psql

import "testing"

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", User: "u", Password: "p", DBName: "events", Port: 5432, SslMode: "disable"}
	want := "host=db user=u password=p dbname=events port=5432 sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
