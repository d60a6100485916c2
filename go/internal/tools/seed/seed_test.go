package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeed_Asset(t *testing.T) {
	seed, err := loadSeed(filepath.Join("..", "..", "assets", "race.json"))
	require.NoError(t, err)
	assert.Len(t, seed.Competitions, 1)
	assert.Len(t, seed.Judges, 2)
	assert.Len(t, seed.Teams, 3)
}

func TestLoadSeed_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed", `{"competitions": [`, "unmarshal JSON"},
		{"competition without name", `{"competitions":[{"id":1}]}`, "id and name are required"},
		{"judge without password", `{"competitions":[{"id":1,"name":"c"}],"judges":[{"id":1,"competition_id":1,"username":"j"}]}`, "password"},
		{"judge with unknown competition", `{"competitions":[{"id":1,"name":"c"}],"judges":[{"id":1,"competition_id":2,"username":"j","password":"p"}]}`, "unknown competition 2"},
		{"team with unknown judge", `{"competitions":[{"id":1,"name":"c"}],"judges":[{"id":1,"competition_id":1,"username":"j","password":"p"}],"teams":[{"id":1,"judge_id":9,"name":"t"}]}`, "unknown judge 9"},
		{"team with bad category", `{"competitions":[{"id":1,"name":"c"}],"judges":[{"id":1,"competition_id":1,"username":"j","password":"p"}],"teams":[{"id":1,"judge_id":1,"name":"t","category":"alumni"}]}`, "unknown category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "seed.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			_, err := loadSeed(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
