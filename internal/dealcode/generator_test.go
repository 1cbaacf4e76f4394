package dealcode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/deals-backend/internal/model"
)

// mockStore is a mock implementation of Store.
type mockStore struct {
	latestFn func(ctx context.Context) (*model.DealCodeRecord, error)
	insertFn func(ctx context.Context, rec *model.DealCodeRecord) error
}

func (m *mockStore) Latest(ctx context.Context) (*model.DealCodeRecord, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) Insert(ctx context.Context, rec *model.DealCodeRecord) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, rec)
	}
	return nil
}

// daySeq identifies a sequence number within a deal date.
type daySeq struct {
	day string
	seq int
}

// memStore keeps records in memory and enforces unique codes and unique
// sequence numbers per deal date, like the deal_codes table.
type memStore struct {
	mu      sync.Mutex
	records []*model.DealCodeRecord
	codes   map[string]bool
	daySeqs map[daySeq]bool
}

func newMemStore() *memStore {
	return &memStore{codes: map[string]bool{}, daySeqs: map[daySeq]bool{}}
}

func (s *memStore) Latest(ctx context.Context) (*model.DealCodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.DealCodeRecord
	for _, r := range s.records {
		if latest == nil || !r.DealDate.Before(latest.DealDate) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *memStore) Insert(ctx context.Context, rec *model.DealCodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := daySeq{day: rec.DealDate.Format("2006-01-02"), seq: rec.SequenceNumber}
	if s.codes[rec.Code] || s.daySeqs[key] {
		return ErrDuplicateCode
	}
	s.codes[rec.Code] = true
	s.daySeqs[key] = true
	s.records = append(s.records, rec)
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateAndSave_NoPriorRecords(t *testing.T) {
	var saved *model.DealCodeRecord
	fixedNow := time.Date(2022, 3, 22, 10, 0, 0, 0, time.UTC)
	store := &mockStore{
		insertFn: func(ctx context.Context, rec *model.DealCodeRecord) error {
			saved = rec
			return nil
		},
	}

	g := NewGenerator(store, 1)
	g.now = func() time.Time { return fixedNow }

	code, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerMerchant)

	require.NoError(t, err)
	assert.Equal(t, "DLM-2203220001", code)
	require.NotNil(t, saved)
	assert.Equal(t, "DLM-2203220001", saved.Code)
	assert.Equal(t, 1, saved.SequenceNumber)
	assert.Equal(t, date(2022, 3, 22), saved.DealDate)
	assert.Equal(t, model.IssuerMerchant, saved.IssuerType)
	assert.Equal(t, fixedNow, saved.CreatedAt)
}

func TestGenerateAndSave_ContinuesSameDay(t *testing.T) {
	store := &mockStore{
		latestFn: func(ctx context.Context) (*model.DealCodeRecord, error) {
			return &model.DealCodeRecord{
				Code:           "DLM-2203220004",
				DealDate:       date(2022, 3, 22),
				SequenceNumber: 4,
				IssuerType:     model.IssuerMerchant,
			}, nil
		},
	}

	g := NewGenerator(store, 1)
	code, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerMerchant)

	require.NoError(t, err)
	assert.Equal(t, "DLM-2203220005", code)
}

func TestGenerateAndSave_ResetsOnNewDay(t *testing.T) {
	previous := &model.DealCodeRecord{
		Code:           "DLM-2203220003",
		DealDate:       date(2022, 3, 22),
		SequenceNumber: 3,
		IssuerType:     model.IssuerMerchant,
	}
	store := &mockStore{
		latestFn: func(ctx context.Context) (*model.DealCodeRecord, error) {
			return previous, nil
		},
	}
	g := NewGenerator(store, 1)

	merchant, err := g.GenerateAndSave(context.Background(), date(2022, 3, 23), model.IssuerMerchant)
	require.NoError(t, err)
	assert.Equal(t, "DLM-2203230001", merchant)

	bank, err := g.GenerateAndSave(context.Background(), date(2022, 3, 23), model.IssuerBank)
	require.NoError(t, err)
	assert.Equal(t, "DLB-2203230001", bank, "prefix follows the current call")
}

func TestGenerateAndSave_SharesCounterAcrossIssuerTypes(t *testing.T) {
	store := &mockStore{
		latestFn: func(ctx context.Context) (*model.DealCodeRecord, error) {
			return &model.DealCodeRecord{
				Code:           "DLM-2203220007",
				DealDate:       date(2022, 3, 22),
				SequenceNumber: 7,
				IssuerType:     model.IssuerMerchant,
			}, nil
		},
	}

	g := NewGenerator(store, 1)
	code, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerBank)

	require.NoError(t, err)
	assert.Equal(t, "DLB-2203220008", code)
}

func TestGenerateAndSave_IgnoresClockPart(t *testing.T) {
	var saved *model.DealCodeRecord
	store := &mockStore{
		latestFn: func(ctx context.Context) (*model.DealCodeRecord, error) {
			return &model.DealCodeRecord{DealDate: date(2022, 3, 22), SequenceNumber: 1}, nil
		},
		insertFn: func(ctx context.Context, rec *model.DealCodeRecord) error {
			saved = rec
			return nil
		},
	}

	g := NewGenerator(store, 1)
	code, err := g.GenerateAndSave(context.Background(), time.Date(2022, 3, 22, 23, 59, 0, 0, time.UTC), model.IssuerMerchant)

	require.NoError(t, err)
	assert.Equal(t, "DLM-2203220002", code)
	assert.Equal(t, date(2022, 3, 22), saved.DealDate)
}

func TestGenerateAndSave_SequenceWidth(t *testing.T) {
	testCases := []struct {
		name     string
		previous int
		expected string
	}{
		{"pads_to_four", 8, "DLM-2203220009"},
		{"four_digits", 2124, "DLM-2203222125"},
		{"widens_past_9999", 9999, "DLM-22032210000"},
		{"wide_continues", 10000, "DLM-22032210001"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockStore{
				latestFn: func(ctx context.Context) (*model.DealCodeRecord, error) {
					return &model.DealCodeRecord{DealDate: date(2022, 3, 22), SequenceNumber: tc.previous}, nil
				},
			}
			g := NewGenerator(store, 1)

			code, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerMerchant)

			require.NoError(t, err)
			assert.Equal(t, tc.expected, code)
		})
	}
}

func TestGenerateAndSave_InvalidIssuer(t *testing.T) {
	called := false
	store := &mockStore{
		latestFn: func(ctx context.Context) (*model.DealCodeRecord, error) {
			called = true
			return nil, nil
		},
	}

	g := NewGenerator(store, 1)
	code, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerAdmin)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidIssuer))
	assert.Empty(t, code)
	assert.False(t, called, "store must not be touched for an invalid issuer")
}

func TestGenerateAndSave_LookupFailure(t *testing.T) {
	dbErr := errors.New("connection refused")
	store := &mockStore{
		latestFn: func(ctx context.Context) (*model.DealCodeRecord, error) {
			return nil, dbErr
		},
	}

	g := NewGenerator(store, 3)
	code, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerMerchant)

	require.Error(t, err)
	assert.Empty(t, code)
	assert.True(t, errors.Is(err, ErrLookupFailed))
	assert.True(t, errors.Is(err, dbErr), "should wrap original error")
	assert.False(t, errors.Is(err, ErrSaveFailed))
	assert.Contains(t, err.Error(), "retrieving last deal code failed")
}

func TestGenerateAndSave_SaveFailure(t *testing.T) {
	dbErr := errors.New("disk full")
	store := &mockStore{
		insertFn: func(ctx context.Context, rec *model.DealCodeRecord) error {
			return dbErr
		},
	}

	g := NewGenerator(store, 3)
	code, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerBank)

	require.Error(t, err)
	assert.Empty(t, code)
	assert.True(t, errors.Is(err, ErrSaveFailed))
	assert.True(t, errors.Is(err, dbErr))
	assert.False(t, errors.Is(err, ErrLookupFailed))
	assert.Contains(t, err.Error(), "saving deal code 'DLB-2203220001' failed")

	var saveErr *SaveError
	require.True(t, errors.As(err, &saveErr))
	assert.Equal(t, "DLB-2203220001", saveErr.Code)
}

func TestGenerateAndSave_DuplicateNotRetriedByDefault(t *testing.T) {
	inserts := 0
	store := &mockStore{
		insertFn: func(ctx context.Context, rec *model.DealCodeRecord) error {
			inserts++
			return ErrDuplicateCode
		},
	}

	g := NewGenerator(store, 0)
	_, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerMerchant)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSaveFailed))
	assert.True(t, errors.Is(err, ErrDuplicateCode))
	assert.Equal(t, 1, inserts)
}

func TestGenerateAndSave_RetriesDuplicateWhenEnabled(t *testing.T) {
	latest := &model.DealCodeRecord{DealDate: date(2022, 3, 22), SequenceNumber: 1}
	var attempted []string
	store := &mockStore{
		latestFn: func(ctx context.Context) (*model.DealCodeRecord, error) {
			return latest, nil
		},
		insertFn: func(ctx context.Context, rec *model.DealCodeRecord) error {
			attempted = append(attempted, rec.Code)
			if len(attempted) == 1 {
				// A concurrent writer took this code first.
				latest = &model.DealCodeRecord{DealDate: date(2022, 3, 22), SequenceNumber: 2}
				return ErrDuplicateCode
			}
			return nil
		},
	}

	g := NewGenerator(store, 3)
	code, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerMerchant)

	require.NoError(t, err)
	assert.Equal(t, "DLM-2203220003", code)
	assert.Equal(t, []string{"DLM-2203220002", "DLM-2203220003"}, attempted)
}

func TestGenerateAndSave_RetryDoesNotCoverOtherErrors(t *testing.T) {
	inserts := 0
	store := &mockStore{
		insertFn: func(ctx context.Context, rec *model.DealCodeRecord) error {
			inserts++
			return errors.New("timeout")
		},
	}

	g := NewGenerator(store, 5)
	_, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerMerchant)

	require.Error(t, err)
	assert.Equal(t, 1, inserts)
}

// Two calls that observe the same previous record compute the same code when
// nothing enforces uniqueness. This is the known gap of the unguarded design.
func TestGenerateAndSave_UnguardedStoreAllowsDuplicates(t *testing.T) {
	previous := &model.DealCodeRecord{DealDate: date(2022, 3, 22), SequenceNumber: 4}
	store := &mockStore{
		latestFn: func(ctx context.Context) (*model.DealCodeRecord, error) {
			return previous, nil
		},
	}
	g := NewGenerator(store, 1)

	first, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerMerchant)
	require.NoError(t, err)
	second, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), model.IssuerMerchant)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerateAndSave_ConcurrentCallsGetDistinctCodes(t *testing.T) {
	const workers = 20
	store := newMemStore()
	g := NewGenerator(store, workers)

	var wg sync.WaitGroup
	codes := make(chan string, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			issuer := model.IssuerMerchant
			if i%2 == 1 {
				issuer = model.IssuerBank
			}
			code, err := g.GenerateAndSave(context.Background(), date(2022, 3, 22), issuer)
			if err != nil {
				errs <- err
				return
			}
			codes <- code
		}(i)
	}
	wg.Wait()
	close(codes)
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	seen := map[string]bool{}
	sequences := map[string]bool{}
	for code := range codes {
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
		// Sequence digits must be unique across prefixes since the counter is shared.
		seq := code[len("DLM-220322"):]
		assert.False(t, sequences[seq], "duplicate sequence %s", seq)
		sequences[seq] = true
	}
	assert.Len(t, seen, workers)
	for i := 1; i <= workers; i++ {
		assert.True(t, sequences[fmt.Sprintf("%04d", i)], "sequence %d missing", i)
	}
}

// barrierStore holds the first `callers` reads of Latest until all of them
// have read, so every caller computes its code from the same record.
type barrierStore struct {
	*memStore
	callers int

	mu      sync.Mutex
	reads   int
	release chan struct{}
}

func newBarrierStore(callers int) *barrierStore {
	return &barrierStore{memStore: newMemStore(), callers: callers, release: make(chan struct{})}
}

func (s *barrierStore) Latest(ctx context.Context) (*model.DealCodeRecord, error) {
	rec, err := s.memStore.Latest(ctx)

	s.mu.Lock()
	s.reads++
	n := s.reads
	s.mu.Unlock()

	if n < s.callers {
		<-s.release
	} else if n == s.callers {
		close(s.release)
	}
	return rec, err
}

func generateConcurrently(t *testing.T, g *Generator, issuers ...model.IssuerType) ([]string, []error) {
	t.Helper()
	var wg sync.WaitGroup
	codes := make([]string, len(issuers))
	errs := make([]error, len(issuers))
	for i, issuer := range issuers {
		wg.Add(1)
		go func(i int, issuer model.IssuerType) {
			defer wg.Done()
			codes[i], errs[i] = g.GenerateAndSave(context.Background(), date(2022, 3, 22), issuer)
		}(i, issuer)
	}
	wg.Wait()
	return codes, errs
}

func TestGenerateAndSave_CrossIssuerRaceRetriesOnDaySequence(t *testing.T) {
	store := newBarrierStore(2)
	g := NewGenerator(store, 2)

	codes, errs := generateConcurrently(t, g, model.IssuerMerchant, model.IssuerBank)

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	seqs := []string{codes[0][len("DLM-220322"):], codes[1][len("DLB-220322"):]}
	assert.ElementsMatch(t, []string{"0001", "0002"}, seqs, "codes %v", codes)
	assert.Equal(t, "DLM", codes[0][:3])
	assert.Equal(t, "DLB", codes[1][:3])
	assert.Len(t, store.records, 2)
}

func TestGenerateAndSave_CrossIssuerRaceWithoutRetryFails(t *testing.T) {
	store := newBarrierStore(2)
	g := NewGenerator(store, 1)

	codes, errs := generateConcurrently(t, g, model.IssuerMerchant, model.IssuerBank)

	var failed int
	for i, err := range errs {
		if err == nil {
			assert.Equal(t, "0001", codes[i][len("DLM-220322"):])
			continue
		}
		failed++
		var saveErr *SaveError
		require.True(t, errors.As(err, &saveErr))
		assert.True(t, errors.Is(err, ErrDuplicateCode))
	}
	assert.Equal(t, 1, failed, "the day's sequence 1 can only be stored once")
	assert.Len(t, store.records, 1)
}

func TestNextSequence(t *testing.T) {
	day := date(2022, 3, 22)

	assert.Equal(t, 1, NextSequence(nil, day))
	assert.Equal(t, 6, NextSequence(&model.DealCodeRecord{DealDate: day, SequenceNumber: 5}, day))
	assert.Equal(t, 1, NextSequence(&model.DealCodeRecord{DealDate: date(2022, 3, 21), SequenceNumber: 5}, day))
	assert.Equal(t, 1, NextSequence(&model.DealCodeRecord{DealDate: date(2022, 3, 23), SequenceNumber: 5}, day))
}

func TestPrefix(t *testing.T) {
	p, err := Prefix(model.IssuerMerchant)
	require.NoError(t, err)
	assert.Equal(t, "DLM", p)

	p, err = Prefix(model.IssuerBank)
	require.NoError(t, err)
	assert.Equal(t, "DLB", p)

	_, err = Prefix(model.IssuerType("CUSTOMER"))
	assert.ErrorIs(t, err, ErrInvalidIssuer)
}

func TestCalendarDate_KeepsLocalDay(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// 00:30 on the 23rd in Jakarta is still the 22nd in UTC.
	local := time.Date(2022, 3, 23, 0, 30, 0, 0, jakarta)

	assert.Equal(t, date(2022, 3, 23), CalendarDate(local))
}
