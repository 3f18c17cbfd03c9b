package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "dsn")
	require.Error(t, err)
}

func TestOpenSqliteInMemoryMigratesSchema(t *testing.T) {
	db, err := Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)

	require.NoError(t, db.Create(&AgentRecord{AgentID: "agent-1", OS: "linux"}).Error)

	var fetched AgentRecord
	require.NoError(t, db.First(&fetched, "agent_id = ?", "agent-1").Error)
	require.Equal(t, "linux", fetched.OS)
}
