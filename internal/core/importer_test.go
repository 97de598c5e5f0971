package core_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/routeimport/internal/core"
)

const alphaRow = "Alpha,1.0,2.0,0.0,0.0,Start,5.0,5.0,End,10,3"

func (f *fixture) operation(t *testing.T, id int64) core.ImportOperation {
	t.Helper()
	op, err := f.svc.GetOperation(context.Background(), id)
	require.NoError(t, err)
	return op
}

// ============================================================================
// Successful imports
// ============================================================================

func TestImportBatch_SingleRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.ImportBatch(ctx, "ann", "routes.csv", csvFile(alphaRow))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, 1, res.TotalRecords)
	assert.Equal(t, 1, res.SuccessfulRecords)
	assert.Equal(t, 0, res.FailedRecords)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "Import completed successfully", res.Message)

	page, err := f.svc.ListRoutes(ctx, core.RouteQuery{})
	require.NoError(t, err)
	require.Len(t, page.Routes, 1)
	r := page.Routes[0]
	assert.Equal(t, "Alpha", r.Name)
	assert.Equal(t, int64(3), r.Rating)
	assert.Equal(t, int64(10), r.Distance)
	require.NotNil(t, r.From.Name)
	assert.Equal(t, "Start", *r.From.Name)

	op := f.operation(t, res.OperationID)
	assert.Equal(t, core.StatusSuccess, op.Status)
	assert.Equal(t, "ann", op.Username)
	assert.Equal(t, "routes.csv", op.Filename)
	assert.Equal(t, 1, op.TotalRecords)
	assert.Equal(t, 1, op.ProcessedRecords)
	assert.Equal(t, 1, op.SuccessfulRecords)
	assert.NotNil(t, op.EndTime)
	assert.Equal(t, "text/csv", op.FileContentType)
	assert.True(t, strings.HasPrefix(op.FileKey, "imports/"))
	assert.True(t, strings.HasSuffix(op.FileKey, "_routes.csv"))
	assert.Equal(t, []string{op.FileKey}, f.objects.Keys())
}

func TestImportBatch_SecondImportSkipsExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ImportBatch(ctx, "ann", "a.csv", csvFile(alphaRow))
	require.NoError(t, err)

	res, err := f.svc.ImportBatch(ctx, "ann", "b.csv", csvFile(alphaRow))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, 0, res.SuccessfulRecords)
	assert.Equal(t, 1, res.FailedRecords)
	assert.Equal(t, []string{"Line 2: Route with name 'Alpha' already exists"}, res.Errors)
	assert.Equal(t, "No new routes imported: all 1 routes already exist", res.Message)
	assert.Equal(t, int64(1), f.routeCount(t))

	op := f.operation(t, res.OperationID)
	assert.Equal(t, core.StatusSuccess, op.Status)
	assert.Equal(t, 0, op.SuccessfulRecords)
}

func TestImportBatch_PartialSkip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustCreate(t, spec("Alpha", start, end))

	res, err := f.svc.ImportBatch(ctx, "ann", "a.csv", csvFile(
		"alpha,1,2,0,0,Start,5,5,End,10,3",
		"Beta,1,2,0,0,Start,5,5,End,20,4",
		"Gamma,3,4,0,0,Start,9,9,Depot,30,5",
	))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, 3, res.TotalRecords)
	assert.Equal(t, 2, res.SuccessfulRecords)
	assert.Equal(t, 1, res.FailedRecords)
	assert.Equal(t, "Import completed: 2 routes imported, 1 routes skipped (already exist)", res.Message)
	assert.Equal(t, int64(3), f.routeCount(t))

	coords, err := f.svc.AvailableCoordinates(ctx)
	require.NoError(t, err)
	assert.Len(t, coords, 2, "equal coordinates are shared across rows")
}

func TestImportBatch_UsernameFromContext(t *testing.T) {
	f := newFixture(t)
	ctx := core.ContextWithUsername(context.Background(), "bob")

	res, err := f.svc.ImportBatch(ctx, "", "a.csv", csvFile(alphaRow))
	require.NoError(t, err)
	assert.Equal(t, "bob", f.operation(t, res.OperationID).Username)

	res, err = f.svc.ImportBatch(context.Background(), "", "b.csv", csvFile("Beta,1,2,0,0,Start,5,5,End,10,3"))
	require.NoError(t, err)
	assert.Equal(t, core.DefaultUsername, f.operation(t, res.OperationID).Username)
}

// ============================================================================
// Rejected imports
// ============================================================================

func TestImportBatch_SemanticErrorRejectsBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.ImportBatch(ctx, "ann", "a.csv", csvFile(
		"Good,1,2,0,0,Start,5,5,End,10,3",
		"Bad,1,900,0,0,Start,5,5,End,10,3",
	))
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, 2, res.TotalRecords)
	assert.Equal(t, 0, res.SuccessfulRecords)
	assert.Equal(t, 2, res.FailedRecords)
	assert.Equal(t, []string{"Line 3: Coordinates Y must be <= 807, found: 900"}, res.Errors)
	assert.Equal(t, "Import failed due to validation errors", res.Message)
	assert.Equal(t, int64(0), f.routeCount(t))

	op := f.operation(t, res.OperationID)
	assert.Equal(t, core.StatusFailed, op.Status)
	assert.Equal(t, "Validation failed: Line 3: Coordinates Y must be <= 807, found: 900", op.ErrorMessage)
	assert.Len(t, f.objects.Keys(), 1, "rejected files stay archived")
}

func TestImportBatch_DuplicateInBatch(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ImportBatch(context.Background(), "ann", "a.csv", csvFile(
		"Alpha,1,2,0,0,Start,5,5,End,10,3",
		"ALPHA,1,2,0,0,Start,5,5,End,10,3",
	))
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, "Duplicate names found in import file", res.Message)
	assert.Equal(t, []string{"Line 3: Duplicate route name in import file: ALPHA"}, res.Errors)
	assert.Equal(t, int64(0), f.routeCount(t))
}

func TestImportBatch_MalformedFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "", "CSV file is empty"},
		{"header only", header + "\n", "no valid data rows found in CSV file"},
		{"wrong header", "id,name\n1,x\n", "CSV must have exactly 11 columns"},
		{"bad number", header + "\nAlpha,x,2,0,0,Start,5,5,End,10,3\n", "error parsing line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			res, err := f.svc.ImportBatch(context.Background(), "ann", "a.csv", []byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, core.StatusFailed, res.Status)
			require.Len(t, res.Errors, 1)
			assert.Contains(t, res.Errors[0], tt.wantErr)

			op := f.operation(t, res.OperationID)
			assert.Equal(t, core.StatusFailed, op.Status)
			assert.True(t, strings.HasPrefix(op.ErrorMessage, "Validation failed: "))
		})
	}
}

// ============================================================================
// System failures and rollback
// ============================================================================

func TestImportBatch_RelationalFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("insert exploded")
	f.store.FailOn("InsertRoute", boom)

	res, err := f.svc.ImportBatch(ctx, "ann", "a.csv", csvFile(alphaRow))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, "Import failed due to system error", res.Message)
	assert.Equal(t, 1, res.FailedRecords)
	require.NotZero(t, res.OperationID)

	f.store.ClearFaults()
	assert.Empty(t, f.objects.Keys(), "uploaded file is removed on rollback")
	assert.Equal(t, int64(0), f.routeCount(t))

	coords, err := f.svc.AvailableCoordinates(ctx)
	require.NoError(t, err)
	assert.Empty(t, coords, "entities resolved in the failed transaction are gone")

	op := f.operation(t, res.OperationID)
	assert.Equal(t, core.StatusFailed, op.Status)
	assert.Contains(t, op.ErrorMessage, "insert exploded")
	assert.NotNil(t, op.EndTime)
}

func TestImportBatch_CommitFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("commit lost")
	f.store.FailOn("Commit", boom)

	res, err := f.svc.ImportBatch(context.Background(), "ann", "a.csv", csvFile(alphaRow))
	require.ErrorIs(t, err, boom)
	f.store.ClearFaults()

	assert.Empty(t, f.objects.Keys())
	assert.Equal(t, int64(0), f.routeCount(t))
	op := f.operation(t, res.OperationID)
	assert.Equal(t, core.StatusFailed, op.Status)
	assert.Contains(t, op.ErrorMessage, "commit lost")
}

func TestImportBatch_UploadFailure(t *testing.T) {
	f := newFixture(t)
	f.objects.FailOn("put", errors.New("bucket offline"))

	res, err := f.svc.ImportBatch(context.Background(), "ann", "a.csv", csvFile(alphaRow))
	require.ErrorIs(t, err, core.ErrObjectStore)
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Zero(t, res.OperationID, "no ledger entry is opened without an archived file")

	page, err := f.svc.ListOperations(context.Background(), "", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Equal(t, int64(0), f.routeCount(t))
}

func TestImportBatch_CleanupFailureIsLoggedNotReturned(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("insert exploded")
	f.store.FailOn("InsertRoute", boom)
	f.objects.FailOn("delete", errors.New("bucket offline"))

	res, err := f.svc.ImportBatch(context.Background(), "ann", "a.csv", csvFile(alphaRow))
	require.ErrorIs(t, err, boom)
	f.store.ClearFaults()

	assert.Len(t, f.objects.Keys(), 1, "the file could not be removed")
	assert.Equal(t, core.StatusFailed, f.operation(t, res.OperationID).Status)
}

func TestImportBatch_NameTakenAtInsertIsDuplicate(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("InsertRoute", &core.DuplicateNameError{Name: "Alpha"})

	res, err := f.svc.ImportBatch(context.Background(), "ann", "a.csv", csvFile(alphaRow))
	require.ErrorIs(t, err, core.ErrDuplicateName)
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, "A route with this name already exists", res.Message)
	f.store.ClearFaults()
	assert.Equal(t, core.StatusFailed, f.operation(t, res.OperationID).Status)
}

func TestImportBatch_ConcurrentSameName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]core.ImportResult, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.ImportBatch(ctx, "ann", "a.csv", csvFile(alphaRow))
		}(i)
	}
	wg.Wait()

	imported := 0
	for i, res := range results {
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], core.ErrDuplicateName)
			assert.Equal(t, core.StatusFailed, res.Status)
			assert.Equal(t, core.MapError(core.ErrDuplicateName).Message, res.Message)
			continue
		}
		assert.Equal(t, core.StatusSuccess, res.Status)
		imported += res.SuccessfulRecords
	}
	assert.Equal(t, 1, imported)
	assert.Equal(t, int64(1), f.routeCount(t))
}

// ============================================================================
// Ledger access
// ============================================================================

func TestListOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, user := range []string{"ann", "bob", "ann"} {
		_, err := f.svc.ImportBatch(ctx, user, "a.csv", csvFile(alphaRow))
		require.NoError(t, err)
	}

	page, err := f.svc.ListOperations(ctx, "ann", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Operations, 1)
	assert.Equal(t, int64(3), page.Operations[0].ID)

	page, err = f.svc.ListOperations(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 1, page.Page)

	page, err = f.svc.ListOperations(ctx, "nobody", 1, 10)
	require.NoError(t, err)
	assert.NotNil(t, page.Operations)
	assert.Empty(t, page.Operations)
}

func TestGetOperation_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetOperation(context.Background(), 7)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDownloadImportFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := csvFile(alphaRow)

	res, err := f.svc.ImportBatch(ctx, "ann", "routes.csv", content)
	require.NoError(t, err)

	file, err := f.svc.DownloadImportFile(ctx, res.OperationID)
	require.NoError(t, err)
	assert.Equal(t, "routes.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, content, file.Data)

	ok, err := f.svc.ImportFileExists(ctx, res.OperationID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.objects.Delete(ctx, f.operation(t, res.OperationID).FileKey))
	ok, err = f.svc.ImportFileExists(ctx, res.OperationID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.DownloadImportFile(ctx, res.OperationID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestImportStatus(t *testing.T) {
	f := newFixture(t)
	st := f.svc.ImportStatus()
	assert.Equal(t, 2, st.Capacity)
	assert.Equal(t, 0, st.Active)
	assert.Equal(t, 2, st.Available)
	assert.NoError(t, f.svc.Drain(context.Background()))
}
