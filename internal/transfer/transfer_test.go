package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbcopy-dev/qbcopy/internal/config"
	"github.com/qbcopy-dev/qbcopy/internal/mapping"
	"github.com/qbcopy-dev/qbcopy/internal/model"
	"github.com/qbcopy-dev/qbcopy/internal/qbo"
	"github.com/qbcopy-dev/qbcopy/internal/retry"
)

// fakeCompany is an in-memory QuickBooks company behind an httptest server.
// It answers entity queries from seeded objects and assigns IDs on create.
type fakeCompany struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	objects    map[string][]map[string]any
	posted     map[string][]map[string]any
	creates    map[string]int
	failCreate map[string][]fakeFault
	failQuery  map[string][]fakeFault
	nextID     int
}

type fakeFault struct {
	status int
	code   string
	detail string
}

var canonicalEntity = map[string]string{
	"account":      "Account",
	"employee":     "Employee",
	"customer":     "Customer",
	"class":        "Class",
	"vendor":       "Vendor",
	"journalentry": "JournalEntry",
}

func newFakeCompany(t *testing.T) *fakeCompany {
	f := &fakeCompany{
		t:          t,
		objects:    make(map[string][]map[string]any),
		posted:     make(map[string][]map[string]any),
		creates:    make(map[string]int),
		failCreate: make(map[string][]fakeFault),
		failQuery:  make(map[string][]fakeFault),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCompany) add(entity string, obj any) {
	data, err := json.Marshal(obj)
	require.NoError(f.t, err)
	var m map[string]any
	require.NoError(f.t, json.Unmarshal(data, &m))
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[entity] = append(f.objects[entity], m)
}

func (f *fakeCompany) createCalls(entity string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates[entity]
}

func (f *fakeCompany) lastPosted(entity string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	posted := f.posted[entity]
	require.NotEmpty(f.t, posted, "no %s was created", entity)
	return posted[len(posted)-1]
}

var startPositionPattern = regexp.MustCompile(`STARTPOSITION (\d+)`)

func (f *fakeCompany) handle(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/tokens/bearer") {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "v3" || parts[1] != "company" {
		http.NotFound(w, r)
		return
	}

	if parts[3] == "query" {
		f.handleQuery(w, r)
		return
	}

	entity, ok := canonicalEntity[parts[3]]
	if !ok {
		http.NotFound(w, r)
		return
	}
	f.handleCreate(w, r, entity)
}

func (f *fakeCompany) handleQuery(w http.ResponseWriter, r *http.Request) {
	stmt := r.URL.Query().Get("query")
	fields := strings.Fields(stmt)
	var entity string
	for i, field := range fields {
		if field == "FROM" && i+1 < len(fields) {
			entity = fields[i+1]
			break
		}
	}
	if entity == "" {
		f.t.Errorf("query without FROM clause: %s", stmt)
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if q := f.failQuery[entity]; len(q) > 0 {
		fault := q[0]
		f.failQuery[entity] = q[1:]
		writeFault(w, fault)
		return
	}

	start := 1
	if m := startPositionPattern.FindStringSubmatch(stmt); m != nil {
		start, _ = strconv.Atoi(m[1])
	}

	inner := map[string]any{}
	if objs := f.objects[entity]; start == 1 && len(objs) > 0 {
		inner[entity] = objs
	}
	json.NewEncoder(w).Encode(map[string]any{"QueryResponse": inner})
}

func (f *fakeCompany) handleCreate(w http.ResponseWriter, r *http.Request, entity string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates[entity]++

	if q := f.failCreate[entity]; len(q) > 0 {
		fault := q[0]
		f.failCreate[entity] = q[1:]
		writeFault(w, fault)
		return
	}

	var obj map[string]any
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.nextID++
	obj["Id"] = strconv.Itoa(100 + f.nextID)
	f.objects[entity] = append(f.objects[entity], obj)
	f.posted[entity] = append(f.posted[entity], obj)
	json.NewEncoder(w).Encode(map[string]any{entity: obj})
}

func writeFault(w http.ResponseWriter, fault fakeFault) {
	w.Header().Set("intuit_tid", "tid-fake")
	w.WriteHeader(fault.status)
	fmt.Fprintf(w, `{"Fault":{"type":"ValidationFault","Error":[{"Message":"fault","Detail":%q,"code":%q}]}}`,
		fault.detail, fault.code)
}

func (f *fakeCompany) client() *qbo.Client {
	company := config.Company{
		Environment:  config.EnvSandbox,
		CompanyID:    "realm-test",
		AccessToken:  "at-test",
		RefreshToken: "rt-test",
	}
	return qbo.New("client-id", "client-secret", company,
		qbo.WithBaseURL(f.srv.URL),
		qbo.WithTokenURL(f.srv.URL+"/oauth2/v1/tokens/bearer"),
		qbo.WithLogger(discardLogger()))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(source, target *fakeCompany) *Runner {
	r := NewRunner(source.client(), target.client(), mapping.NewStore())
	r.Policy = retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   qbo.IsRetryable,
	}
	r.Log = discardLogger()
	return r
}

func TestAccountsFilteredAndCreated(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Account", model.Account{ID: "1", Name: "Checking", AccountType: "Bank", Active: true})
	source.add("Account", model.Account{ID: "2", Name: "Old Truck", AccountType: "Fixed Asset", Active: false})
	source.add("Account", model.Account{ID: "3", Name: "Accounts Receivable (A/R)", Active: true})

	r := newTestRunner(source, target)
	res, err := r.Run(context.Background(), []model.EntityType{model.EntityAccount})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, model.EntityAccount, rec.EntityType)
	assert.Equal(t, "Checking", rec.Name)
	assert.Equal(t, model.StatusCreated, rec.Status)
	assert.NotEmpty(t, rec.TargetID)

	targetID, ok := r.Store.Get(model.EntityAccount, "1")
	require.True(t, ok)
	assert.Equal(t, rec.TargetID, targetID)
	assert.Equal(t, 1, target.createCalls("Account"))

	require.Len(t, res.Summaries, 1)
	assert.Equal(t, 1, res.Summaries[0].Created)
	assert.Equal(t, 1, res.Summaries[0].Total())
}

func TestVendorAlreadyExistsByName(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Vendor", model.Vendor{ID: "7", DisplayName: "Acme Corp", Active: true})
	target.add("Vendor", model.Vendor{ID: "55", DisplayName: "Acme Corp", Active: true})

	r := newTestRunner(source, target)
	res, err := r.Run(context.Background(), []model.EntityType{model.EntityVendor})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, model.StatusAlreadyExists, res.Records[0].Status)
	assert.Equal(t, "55", res.Records[0].TargetID)
	assert.Equal(t, 0, target.createCalls("Vendor"))

	targetID, ok := r.Store.Get(model.EntityVendor, "7")
	require.True(t, ok)
	assert.Equal(t, "55", targetID)
}

func TestEmployeeMatchedByFullName(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Employee", model.Employee{ID: "4", GivenName: "Jane", FamilyName: "Doe", DisplayName: "Jane D.", Active: true})
	target.add("Employee", model.Employee{ID: "9", GivenName: "Jane", FamilyName: "Doe", DisplayName: "Doe, Jane", Active: true})

	r := newTestRunner(source, target)
	res, err := r.Run(context.Background(), []model.EntityType{model.EntityEmployee})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, model.StatusAlreadyExists, res.Records[0].Status)
	assert.Equal(t, "9", res.Records[0].TargetID)
	assert.Equal(t, 0, target.createCalls("Employee"))
}

func TestSubAccountParentResolved(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	// Child listed first so the hierarchy sort has to reorder.
	source.add("Account", model.Account{
		ID: "2", Name: "Checking", AccountType: "Bank", Active: true,
		SubAccount: true, ParentRef: &model.Ref{Value: "1", Name: "Bank Accounts"},
	})
	source.add("Account", model.Account{ID: "1", Name: "Bank Accounts", AccountType: "Bank", Active: true})

	r := newTestRunner(source, target)
	res, err := r.Run(context.Background(), []model.EntityType{model.EntityAccount})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "Bank Accounts", res.Records[0].Name)
	assert.Equal(t, "Checking", res.Records[1].Name)

	parentID, ok := r.Store.Get(model.EntityAccount, "1")
	require.True(t, ok)

	child := target.lastPosted("Account")
	require.Contains(t, child, "ParentRef")
	assert.Equal(t, parentID, child["ParentRef"].(map[string]any)["value"])
	assert.Equal(t, true, child["SubAccount"])
}

func TestMissingParentDemotesToTopLevel(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Account", model.Account{
		ID: "5", Name: "Orphan", AccountType: "Expense", Active: true,
		SubAccount: true, ParentRef: &model.Ref{Value: "99"},
	})

	r := newTestRunner(source, target)
	res, err := r.Run(context.Background(), []model.EntityType{model.EntityAccount})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, model.StatusCreated, res.Records[0].Status)

	posted := target.lastPosted("Account")
	assert.NotContains(t, posted, "ParentRef")
	assert.NotContains(t, posted, "SubAccount")
}

func TestJournalMissingAccountRefContinues(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("JournalEntry", model.JournalEntry{
		ID: "10", TxnDate: "2024-01-31", DocNumber: "7",
		Line: []model.JournalEntryLine{{
			Amount:     decimal.NewFromInt(100),
			DetailType: "JournalEntryLineDetail",
			JournalEntryLineDetail: &model.JournalEntryLineDetail{
				PostingType: model.PostingDebit,
				AccountRef:  &model.Ref{Value: "99"},
			},
		}},
	})
	source.add("JournalEntry", model.JournalEntry{
		ID: "11", TxnDate: "2024-01-31", DocNumber: "8",
		Line: []model.JournalEntryLine{{
			Amount:     decimal.NewFromInt(100),
			DetailType: "JournalEntryLineDetail",
			JournalEntryLineDetail: &model.JournalEntryLineDetail{
				PostingType: model.PostingDebit,
				AccountRef:  &model.Ref{Value: "1"},
			},
		}},
	})

	r := newTestRunner(source, target)
	r.Store.Put(model.EntityAccount, "1", "201")

	res, err := r.Run(context.Background(), []model.EntityType{model.EntityJournalEntry})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	assert.Equal(t, model.StatusFailed, res.Records[0].Status)
	assert.Contains(t, res.Records[0].Err, "missing account reference 99")
	assert.Equal(t, model.StatusCreated, res.Records[1].Status)
	assert.Equal(t, 1, target.createCalls("JournalEntry"))

	posted := target.lastPosted("JournalEntry")
	line := posted["Line"].([]any)[0].(map[string]any)
	detail := line["JournalEntryLineDetail"].(map[string]any)
	assert.Equal(t, "201", detail["AccountRef"].(map[string]any)["value"])
}

func TestRunResolvesReferencesAcrossPhases(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Account", model.Account{ID: "1", Name: "Checking", AccountType: "Bank", Active: true})
	source.add("Vendor", model.Vendor{ID: "7", DisplayName: "Acme Corp", Active: true})
	source.add("JournalEntry", model.JournalEntry{
		ID: "10", TxnDate: "2024-02-29", DocNumber: "12",
		Line: []model.JournalEntryLine{
			{
				Amount:     decimal.NewFromInt(50),
				DetailType: "JournalEntryLineDetail",
				JournalEntryLineDetail: &model.JournalEntryLineDetail{
					PostingType: model.PostingDebit,
					AccountRef:  &model.Ref{Value: "1"},
					Entity: &model.EntityRef{
						Type:      "Vendor",
						EntityRef: &model.Ref{Value: "7", Name: "Acme Corp"},
					},
				},
			},
			{
				Amount:     decimal.NewFromInt(50),
				DetailType: "JournalEntryLineDetail",
				JournalEntryLineDetail: &model.JournalEntryLineDetail{
					PostingType: model.PostingCredit,
					AccountRef:  &model.Ref{Value: "1"},
				},
			},
		},
	})

	r := newTestRunner(source, target)
	res, err := r.Run(context.Background(), model.TransferOrder())
	require.NoError(t, err)
	assert.Empty(t, res.Failed())

	accountID, ok := r.Store.Get(model.EntityAccount, "1")
	require.True(t, ok)
	vendorID, ok := r.Store.Get(model.EntityVendor, "7")
	require.True(t, ok)

	posted := target.lastPosted("JournalEntry")
	lines := posted["Line"].([]any)
	require.Len(t, lines, 2)
	debit := lines[0].(map[string]any)["JournalEntryLineDetail"].(map[string]any)
	assert.Equal(t, accountID, debit["AccountRef"].(map[string]any)["value"])
	assert.Equal(t, vendorID, debit["Entity"].(map[string]any)["EntityRef"].(map[string]any)["value"])
}

func TestRerunIsIdempotent(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Account", model.Account{ID: "1", Name: "Checking", AccountType: "Bank", Active: true})
	source.add("Vendor", model.Vendor{ID: "7", DisplayName: "Acme Corp", Active: true})

	entities := []model.EntityType{model.EntityAccount, model.EntityVendor}

	first := newTestRunner(source, target)
	_, err := first.Run(context.Background(), entities)
	require.NoError(t, err)
	require.Equal(t, 1, target.createCalls("Account"))
	require.Equal(t, 1, target.createCalls("Vendor"))

	second := newTestRunner(source, target)
	res, err := second.Run(context.Background(), entities)
	require.NoError(t, err)

	for _, rec := range res.Records {
		assert.Equal(t, model.StatusAlreadyExists, rec.Status, "record %s/%s", rec.EntityType, rec.Name)
	}
	assert.Equal(t, 1, target.createCalls("Account"))
	assert.Equal(t, 1, target.createCalls("Vendor"))
}

func TestPreloadedMappingSkipsCreate(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Account", model.Account{ID: "1", Name: "Checking", AccountType: "Bank", Active: true})

	r := newTestRunner(source, target)
	r.Store.Put(model.EntityAccount, "1", "300")

	res, err := r.Run(context.Background(), []model.EntityType{model.EntityAccount})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, model.StatusAlreadyExists, res.Records[0].Status)
	assert.Equal(t, "300", res.Records[0].TargetID)
	assert.Equal(t, 0, target.createCalls("Account"))
}

func TestDuplicateFaultRecoversExistingID(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Vendor", model.Vendor{ID: "7", DisplayName: "Acme Corp", Active: true})
	target.failCreate["Vendor"] = []fakeFault{
		{status: http.StatusBadRequest, code: "6240", detail: "Duplicate Name Exists Error : Id=42"},
	}

	r := newTestRunner(source, target)
	res, err := r.Run(context.Background(), []model.EntityType{model.EntityVendor})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, model.StatusAlreadyExists, res.Records[0].Status)
	assert.Equal(t, "42", res.Records[0].TargetID)
	assert.Equal(t, 1, target.createCalls("Vendor"))

	targetID, ok := r.Store.Get(model.EntityVendor, "7")
	require.True(t, ok)
	assert.Equal(t, "42", targetID)
}

func TestDuplicateFaultWithoutIDFails(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Vendor", model.Vendor{ID: "7", DisplayName: "Acme Corp", Active: true})
	target.failCreate["Vendor"] = []fakeFault{
		{status: http.StatusBadRequest, code: "6240", detail: "Duplicate Name Exists Error"},
	}

	r := newTestRunner(source, target)
	res, err := r.Run(context.Background(), []model.EntityType{model.EntityVendor})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, model.StatusFailed, res.Records[0].Status)
	assert.NotEmpty(t, res.Records[0].Err)
	_, ok := r.Store.Get(model.EntityVendor, "7")
	assert.False(t, ok)
}

func TestRateLimitedCreateRetried(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Account", model.Account{ID: "1", Name: "Checking", AccountType: "Bank", Active: true})
	target.failCreate["Account"] = []fakeFault{
		{status: http.StatusTooManyRequests, code: "3001", detail: "throttled"},
		{status: http.StatusTooManyRequests, code: "3001", detail: "throttled"},
	}

	r := newTestRunner(source, target)
	res, err := r.Run(context.Background(), []model.EntityType{model.EntityAccount})
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, model.StatusCreated, res.Records[0].Status)
	assert.Equal(t, 3, target.createCalls("Account"))
}

func TestFetchFailureAbortsPhase(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Account", model.Account{ID: "1", Name: "Checking", AccountType: "Bank", Active: true})
	target.failQuery["Account"] = []fakeFault{
		{status: http.StatusBadRequest, code: "4000", detail: "bad query"},
	}

	r := newTestRunner(source, target)
	res, err := r.Run(context.Background(), []model.EntityType{model.EntityAccount})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching existing accounts from target")
	assert.Empty(t, res.Records)
}

func TestAuthErrorAbortsRun(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Vendor", model.Vendor{ID: "7", DisplayName: "Acme Corp", Active: true})
	source.add("Customer", model.Customer{ID: "3", DisplayName: "Globex", Active: true})
	// The 401 triggers a token refresh, which the fake rejects.
	target.failCreate["Vendor"] = []fakeFault{
		{status: http.StatusUnauthorized, code: "3200", detail: "token expired"},
	}

	r := newTestRunner(source, target)
	res, err := r.Run(context.Background(), []model.EntityType{model.EntityVendor, model.EntityCustomer})
	require.Error(t, err)
	assert.True(t, qbo.IsAuth(err))

	require.Len(t, res.Records, 1)
	assert.Equal(t, model.EntityVendor, res.Records[0].EntityType)
	assert.Equal(t, model.StatusFailed, res.Records[0].Status)
	assert.Equal(t, 0, target.createCalls("Customer"))
}

func TestDryRunCreatesNothing(t *testing.T) {
	source := newFakeCompany(t)
	target := newFakeCompany(t)
	source.add("Account", model.Account{ID: "1", Name: "Checking", AccountType: "Bank", Active: true})
	source.add("Vendor", model.Vendor{ID: "7", DisplayName: "Acme Corp", Active: true})

	r := newTestRunner(source, target)
	r.DryRun = true

	res, err := r.Run(context.Background(), []model.EntityType{model.EntityAccount, model.EntityVendor})
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	for _, rec := range res.Records {
		assert.Equal(t, model.StatusCreated, rec.Status)
	}
	assert.Equal(t, 0, target.createCalls("Account"))
	assert.Equal(t, 0, target.createCalls("Vendor"))
	assert.Equal(t, 0, r.Store.Len(model.EntityAccount))
}

func TestSortByHierarchy(t *testing.T) {
	accounts := []model.Account{
		{ID: "3", Name: "Petty Cash", ParentRef: &model.Ref{Value: "2"}},
		{ID: "2", Name: "Cash", ParentRef: &model.Ref{Value: "1"}},
		{ID: "1", Name: "Assets"},
		{ID: "4", Name: "Liabilities"},
	}
	sortByHierarchy(accounts)

	var ids []string
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"1", "4", "2", "3"}, ids)
}

func TestDuplicateID(t *testing.T) {
	id, ok := duplicateID(&qbo.APIError{
		StatusCode: http.StatusBadRequest,
		Code:       "6240",
		Detail:     "Duplicate Name Exists Error : Id=4217",
	})
	require.True(t, ok)
	assert.Equal(t, "4217", id)

	_, ok = duplicateID(&qbo.APIError{StatusCode: http.StatusBadRequest, Code: "6240"})
	assert.False(t, ok)

	_, ok = duplicateID(fmt.Errorf("plain error"))
	assert.False(t, ok)
}
