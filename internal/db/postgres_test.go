package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/chat?sslmode=disable": "pgx5://u:p@db:5432/chat?sslmode=disable",
		"postgresql://u:p@db:5432/chat":               "pgx5://u:p@db:5432/chat",
		"pgx5://u:p@db/chat":                          "pgx5://u:p@db/chat",
		"u:p@db/chat":                                 "pgx5://u:p@db/chat",
	}
	for in, want := range tests {
		assert.Equal(t, want, MigrateURL(in), in)
	}
}
