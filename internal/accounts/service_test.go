package accounts

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tellerdesk/tellerdesk/internal/config"
	"github.com/tellerdesk/tellerdesk/internal/db/dbtest"
	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(nil, dbtest.New())
	svc.hashCost = bcrypt.MinCost
	return svc
}

func TestCreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.Create(ctx, CreateUserRequest{
		Email:       "  Ana@Bank.Example ",
		Password:    "correct-horse",
		DisplayName: "Ana",
		Role:        RoleAgent,
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@bank.example", user.Email)
	assert.True(t, user.IsActive)
	assert.True(t, user.IsStaff())

	got, err := svc.Authenticate(ctx, "ANA@bank.example", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ana@bank.example", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody@bank.example", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SetActive(ctx, user.ID, false)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "ana@bank.example", "correct-horse")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestCreateRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Create(ctx, CreateUserRequest{Email: "x@y.z", Password: "short", Role: RoleAgent})
	assert.Error(t, err)
	_, err = svc.Create(ctx, CreateUserRequest{Email: "x@y.z", Password: "long-enough", Role: "teller"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Create(ctx, CreateUserRequest{Email: "x@y.z", Password: "long-enough", Role: RoleCustomer})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateUserRequest{Email: "X@y.z", Password: "long-enough", Role: RoleCustomer})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestTeamAssignsBranch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	north, err := svc.CreateBranch(ctx, CreateBranchRequest{Code: "nth", Name: "North"})
	require.NoError(t, err)
	assert.Equal(t, "NTH", north.Code)
	south, err := svc.CreateBranch(ctx, CreateBranchRequest{Code: "sth", Name: "South"})
	require.NoError(t, err)
	cards, err := svc.CreateTeam(ctx, north.ID, CreateTeamRequest{Name: "Cards"})
	require.NoError(t, err)

	user, err := svc.Create(ctx, CreateUserRequest{Email: "a@b.c", Password: "long-enough", Role: RoleAgent, TeamID: cards.ID})
	require.NoError(t, err)
	assert.Equal(t, north.ID, user.BranchID)

	_, err = svc.Create(ctx, CreateUserRequest{Email: "d@b.c", Password: "long-enough", Role: RoleAgent, BranchID: south.ID, TeamID: cards.ID})
	assert.ErrorIs(t, err, ErrTeamBranchMismatch)

	_, err = svc.CreateTeam(ctx, north.ID, CreateTeamRequest{Name: "Cards"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	teams, err := svc.ListTeams(ctx, north.ID)
	require.NoError(t, err)
	assert.Len(t, teams, 1)

	branches, err := svc.ListBranches(ctx)
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "North", branches[0].Name)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	cfg := config.AdminConfig{Email: "root@bank.example", Password: "bootstrap-pass", DisplayName: "Root"}

	first, created, err := svc.EnsureAdmin(ctx, cfg)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, RoleAdmin, first.Role)

	second, created, err := svc.EnsureAdmin(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetManySkipsUnknownAndDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	a, err := svc.Create(ctx, CreateUserRequest{Email: "a@b.c", Password: "long-enough", Role: RoleAgent})
	require.NoError(t, err)

	got, err := svc.GetMany(ctx, []string{a.ID, a.ID, "garbage", "00000000-0000-0000-0000-000000000001"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "a@b.c", got[a.ID].Email)
}

// fakeRow implements pgx.Row with a custom scan function.
type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// fakeDBTX implements sqlc.DBTX so the generated queries run without a database.
type fakeDBTX struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (d *fakeDBTX) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (d *fakeDBTX) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (d *fakeDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if d.queryRowFunc != nil {
		return d.queryRowFunc(ctx, sql, args...)
	}
	return &fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func TestGetThroughGeneratedQueries(t *testing.T) {
	dbtx := &fakeDBTX{queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
		return &fakeRow{scanFunc: func(dest ...any) error {
			if len(dest) != 10 {
				return pgx.ErrNoRows
			}
			*dest[0].(*pgtype.UUID) = args[0].(pgtype.UUID)
			*dest[1].(*string) = "c@bank.example"
			*dest[2].(*string) = "hash"
			*dest[3].(*string) = "Cleo"
			*dest[4].(*string) = RoleCustomer
			*dest[5].(*pgtype.UUID) = pgtype.UUID{}
			*dest[6].(*pgtype.UUID) = pgtype.UUID{}
			*dest[7].(*bool) = true
			*dest[8].(*pgtype.Timestamptz) = pgtype.Timestamptz{}
			*dest[9].(*pgtype.Timestamptz) = pgtype.Timestamptz{}
			return nil
		}}
	}}
	svc := NewService(nil, sqlc.New(dbtx))

	got, err := svc.Get(context.Background(), "01020300-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Equal(t, "01020300-0000-0000-0000-000000000000", got.ID)
	assert.Equal(t, "Cleo", got.DisplayName)
	assert.False(t, got.IsStaff())

	svc = NewService(nil, sqlc.New(&fakeDBTX{}))
	_, err = svc.Get(context.Background(), "01020300-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
