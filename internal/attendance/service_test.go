package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hostelhub/internal/directory"
)

// fakeStore enforces the same (student, day) uniqueness the Postgres index
// provides, so the retry path behaves like production.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]Entry // key: studentID + "|" + day
	inserts int
	// failFirstInsert simulates losing the insert race once.
	failFirstInsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]Entry)}
}

func key(studentID string, day time.Time) string {
	return studentID + "|" + day.Format("2006-01-02")
}

func (f *fakeStore) EntryFor(_ context.Context, studentID string, day time.Time) (*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[key(studentID, day)]; ok {
		cp := e
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) Insert(_ context.Context, e Entry) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(e.StudentID, e.Day)
	if f.failFirstInsert {
		f.failFirstInsert = false
		f.entries[k] = Entry{StudentID: e.StudentID, HostelID: e.HostelID, Day: e.Day, Status: StatusPresent, MarkedBy: "rival"}
		return Entry{}, ErrDuplicateEntry
	}
	if _, ok := f.entries[k]; ok {
		return Entry{}, ErrDuplicateEntry
	}
	f.inserts++
	f.entries[k] = e
	return e, nil
}

func (f *fakeStore) Flip(_ context.Context, studentID string, day time.Time, markedBy string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(studentID, day)
	e, ok := f.entries[k]
	if !ok {
		return Entry{}, errors.New("no entry to flip")
	}
	e.Status = e.Status.Flipped()
	e.MarkedBy = markedBy
	f.entries[k] = e
	return e, nil
}

func (f *fakeStore) ListByStudent(_ context.Context, studentID string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []Entry
	for _, e := range f.entries {
		if e.StudentID == studentID {
			res = append(res, e)
		}
	}
	return res, nil
}

func (f *fakeStore) ListByStudentInHostel(ctx context.Context, studentID, hostelID string) ([]Entry, error) {
	all, _ := f.ListByStudent(ctx, studentID)
	var res []Entry
	for _, e := range all {
		if e.HostelID == hostelID {
			res = append(res, e)
		}
	}
	return res, nil
}

func (f *fakeStore) CountForDay(_ context.Context, hostelID string, day time.Time) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total, present int
	for _, e := range f.entries {
		if e.HostelID == hostelID && e.Day.Equal(day) {
			total++
			if e.Status == StatusPresent {
				present++
			}
		}
	}
	return total, present, nil
}

func (f *fakeStore) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakePeople struct {
	students map[string]directory.Student // by id
	byToken  map[string]directory.Student
	admins   map[string]directory.Admin
}

func (f *fakePeople) StudentByToken(_ context.Context, token string) (directory.Student, error) {
	if s, ok := f.byToken[token]; ok {
		return s, nil
	}
	return directory.Student{}, directory.ErrNotFound
}

func (f *fakePeople) StudentByID(_ context.Context, id string) (directory.Student, error) {
	if s, ok := f.students[id]; ok {
		return s, nil
	}
	return directory.Student{}, directory.ErrNotFound
}

func (f *fakePeople) AdminByID(_ context.Context, id string) (directory.Admin, error) {
	if a, ok := f.admins[id]; ok {
		return a, nil
	}
	return directory.Admin{}, directory.ErrNotFound
}

func fixture() (*fakeStore, *fakePeople, *Service) {
	st := newFakeStore()
	s1 := directory.Student{ID: "s1", HostelID: "h1", FullName: "Asha Rao", RollNumber: "21CS042", QRToken: "tok-s1"}
	people := &fakePeople{
		students: map[string]directory.Student{"s1": s1},
		byToken:  map[string]directory.Student{"tok-s1": s1},
		admins: map[string]directory.Admin{
			"scanner":  {ID: "scanner", HostelID: "h1", Capabilities: []string{directory.CapQRScans}},
			"noscan":   {ID: "noscan", HostelID: "h1", Capabilities: []string{"messmenu"}},
			"outsider": {ID: "outsider", HostelID: "h2", Capabilities: []string{directory.CapQRScans}},
		},
	}
	svc := NewService(st, people, nil, time.Second)
	return st, people, svc
}

func TestLookupStatusIsNonMutating(t *testing.T) {
	st, _, svc := fixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := svc.LookupStatus(ctx, "tok-s1", "scanner")
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if res.Status != StatusAbsent || res.AlreadyMarked {
			t.Fatalf("lookup %d: got status=%s alreadyMarked=%v, want Absent/false", i, res.Status, res.AlreadyMarked)
		}
	}
	if st.rowCount() != 0 {
		t.Fatalf("lookup materialized %d rows, want 0", st.rowCount())
	}
}

func TestLookupStatusUnknownToken(t *testing.T) {
	_, _, svc := fixture()
	_, err := svc.LookupStatus(context.Background(), "bogus", "scanner")
	if !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestLookupStatusCrossTenant(t *testing.T) {
	st, _, svc := fixture()
	_, err := svc.LookupStatus(context.Background(), "tok-s1", "outsider")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	if st.rowCount() != 0 {
		t.Fatal("cross-tenant lookup mutated the ledger")
	}
}

func TestToggleRequiresCapability(t *testing.T) {
	st, _, svc := fixture()
	ctx := context.Background()

	if _, err := svc.Toggle(ctx, "s1", "noscan"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	if _, err := svc.LookupStatus(ctx, "tok-s1", "noscan"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	if st.rowCount() != 0 {
		t.Fatalf("forbidden caller mutated the ledger: %d rows", st.rowCount())
	}
}

func TestToggleParity(t *testing.T) {
	st, _, svc := fixture()
	ctx := context.Background()

	// First toggle on a virgin day materializes Present.
	res, err := svc.Toggle(ctx, "s1", "scanner")
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if res.Status != StatusPresent {
		t.Fatalf("first toggle: got %s, want Present", res.Status)
	}

	// Each further toggle flips; even total count lands back on Absent.
	want := StatusPresent
	for i := 0; i < 7; i++ {
		want = want.Flipped()
		res, err = svc.Toggle(ctx, "s1", "scanner")
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if res.Status != want {
			t.Fatalf("toggle %d: got %s, want %s", i, res.Status, want)
		}
	}
	if st.rowCount() != 1 {
		t.Fatalf("got %d rows after repeated toggles, want 1", st.rowCount())
	}
}

func TestToggleLostInsertRaceRetriesAsFlip(t *testing.T) {
	st, _, svc := fixture()
	st.failFirstInsert = true

	res, err := svc.Toggle(context.Background(), "s1", "scanner")
	if err != nil {
		t.Fatalf("toggle after lost race: %v", err)
	}
	// The rival created Present; our toggle flips it.
	if res.Status != StatusAbsent {
		t.Fatalf("got %s, want Absent (flip of rival's Present)", res.Status)
	}
	if st.rowCount() != 1 {
		t.Fatalf("got %d rows, want 1", st.rowCount())
	}
}

func TestConcurrentFirstToggleSingleRow(t *testing.T) {
	st, _, svc := fixture()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Toggle(ctx, "s1", "scanner"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent toggle failed: %v", err)
	}
	if st.rowCount() != 1 {
		t.Fatalf("got %d rows after %d concurrent toggles, want 1", st.rowCount(), n)
	}
}

func TestScanToggleScenario(t *testing.T) {
	st, _, svc := fixture()
	ctx := context.Background()

	// Admin without the capability is rejected, ledger untouched.
	if _, err := svc.LookupStatus(ctx, "tok-s1", "noscan"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unauthorized scan: got %v, want ErrForbidden", err)
	}
	if st.rowCount() != 0 {
		t.Fatal("unauthorized scan created an entry")
	}

	// Authorized scan sees the synthesized Absent.
	res, err := svc.LookupStatus(ctx, "tok-s1", "scanner")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Status != StatusAbsent || res.AlreadyMarked {
		t.Fatalf("scan: got %s/%v, want Absent/false", res.Status, res.AlreadyMarked)
	}

	// First toggle creates Present, second flips to Absent.
	if tr, err := svc.Toggle(ctx, "s1", "scanner"); err != nil || tr.Status != StatusPresent {
		t.Fatalf("toggle 1: %v status=%v", err, tr.Status)
	}
	if tr, err := svc.Toggle(ctx, "s1", "scanner"); err != nil || tr.Status != StatusAbsent {
		t.Fatalf("toggle 2: %v status=%v", err, tr.Status)
	}

	sum, err := svc.TodaySummary(ctx, "h1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalMarked != 1 || sum.Present != 0 || sum.Absent != 1 {
		t.Fatalf("summary: got %+v, want totalMarked=1 present=0 absent=1", sum)
	}
}

func TestToggleUnknownStudent(t *testing.T) {
	_, _, svc := fixture()
	if _, err := svc.Toggle(context.Background(), "ghost", "scanner"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestToggleCrossTenantStudent(t *testing.T) {
	_, people, svc := fixture()
	s2 := directory.Student{ID: "s2", HostelID: "h2", QRToken: "tok-s2"}
	people.students["s2"] = s2
	people.byToken["tok-s2"] = s2

	if _, err := svc.Toggle(context.Background(), "s2", "scanner"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
}
