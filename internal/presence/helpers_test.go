package presence

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/tellerdesk/tellerdesk/internal/db"
)

func mustUUID(t *testing.T, id string) pgtype.UUID {
	t.Helper()
	out, err := db.ParseUUID(id)
	require.NoError(t, err)
	return out
}

func pgTime(ts time.Time) pgtype.Timestamptz {
	return db.Timestamptz(ts)
}
