package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"zaop.zip/paylink/internal/auth/authstate"
	"zaop.zip/paylink/internal/auth/store"
	"zaop.zip/paylink/internal/db/models"
	"zaop.zip/paylink/internal/platform"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite memory db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if err := db.AutoMigrate(&models.AuthorizationRecord{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	st := store.New(db)
	return NewRegistry(st), st
}

func authorizedState(access string) *authstate.State {
	s := authstate.New()
	s.Update(&oauth2.Token{
		AccessToken:  access,
		RefreshToken: "rt",
		Expiry:       time.Now().Add(time.Hour),
	})
	return s
}

func TestRegistryReturnsSameHandle(t *testing.T) {
	reg, _ := newTestRegistry(t)

	h1 := reg.Handle(platform.Lidl, 1)
	h2 := reg.Handle(platform.Lidl, 1)
	if h1 != h2 {
		t.Error("Handle() returned distinct instances for the same key")
	}
	if reg.Handle(platform.Jumbo, 1) == h1 {
		t.Error("Handle() shared an instance across platforms")
	}
	if reg.Handle(platform.Lidl, 2) == h1 {
		t.Error("Handle() shared an instance across account ids")
	}
}

func TestCurrentLoadsFromStore(t *testing.T) {
	reg, st := newTestRegistry(t)

	seed := authorizedState("at-stored")
	if err := st.Put(&models.AuthorizationRecord{
		Platform:  string(platform.Appie),
		AccountID: 5,
		State:     seed.Serialize(),
	}); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}

	got := reg.Handle(platform.Appie, 5).Current()
	if !got.IsAuthorized() {
		t.Fatal("Current() should load the stored authorized state")
	}
	if got.Token.AccessToken != "at-stored" {
		t.Errorf("Current() access = %q, want %q", got.Token.AccessToken, "at-stored")
	}
}

func TestCurrentMissingRecordYieldsUnauthorized(t *testing.T) {
	reg, _ := newTestRegistry(t)

	got := reg.Handle(platform.Lidl, 99).Current()
	if got == nil {
		t.Fatal("Current() returned nil")
	}
	if got.IsAuthorized() {
		t.Error("Current() for missing record should be unauthorized")
	}
}

func TestCurrentRecoversFromCorruptBlob(t *testing.T) {
	reg, st := newTestRegistry(t)

	if err := st.Put(&models.AuthorizationRecord{
		Platform:  string(platform.Jumbo),
		AccountID: 3,
		State:     "{{{corrupt",
	}); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}

	got := reg.Handle(platform.Jumbo, 3).Current()
	if got == nil {
		t.Fatal("Current() returned nil for corrupt blob")
	}
	if got.IsAuthorized() {
		t.Error("corrupt blob should recover to an unauthorized state")
	}
}

func TestReplacePersistsAndCaches(t *testing.T) {
	reg, st := newTestRegistry(t)
	h := reg.Handle(platform.Lidl, 0)

	replaced := authorizedState("at-new")
	if _, err := h.Replace(replaced); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	if got := h.Current(); got.Token.AccessToken != "at-new" {
		t.Errorf("Current() access = %q, want at-new", got.Token.AccessToken)
	}

	rec, err := st.Get(platform.Lidl, 0)
	if err != nil {
		t.Fatalf("Get() after Replace error = %v", err)
	}
	persisted, err := authstate.Deserialize(rec.State)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if persisted.Token.AccessToken != "at-new" {
		t.Errorf("persisted access = %q, want %q", persisted.Token.AccessToken, "at-new")
	}
}

func TestReplaceWinsOverConcurrentLoads(t *testing.T) {
	reg, st := newTestRegistry(t)

	stale := authorizedState("at-stale")
	if err := st.Put(&models.AuthorizationRecord{
		Platform:  string(platform.Appie),
		AccountID: 8,
		State:     stale.Serialize(),
	}); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}

	h := reg.Handle(platform.Appie, 8)
	fresh := authorizedState("at-fresh")
	if _, err := h.Replace(fresh); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	// Hammer Current from many goroutines; none may surface the stale
	// stored value over the replaced one.
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := h.Current(); got.Token.AccessToken != "at-fresh" {
				t.Errorf("Current() = %q, want at-fresh", got.Token.AccessToken)
			}
		}()
	}
	wg.Wait()
}

func TestCurrentHandsOutIndependentCopies(t *testing.T) {
	reg, _ := newTestRegistry(t)
	h := reg.Handle(platform.Wbw, 0)

	if _, err := h.Replace(authorizedState("at")); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	// Mutations on a handed-out state must stay invisible until they are
	// committed with Replace.
	mine := h.Current()
	mine.Session = "cookie-local"
	mine.Token.AccessToken = "at-local"

	other := h.Current()
	if other.Session != "" {
		t.Errorf("uncommitted Session leaked into the cache: %q", other.Session)
	}
	if other.Token.AccessToken != "at" {
		t.Errorf("uncommitted token mutation leaked: %q", other.Token.AccessToken)
	}

	if _, err := h.Replace(mine); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if got := h.Current(); got.Session != "cookie-local" {
		t.Errorf("Current() after Replace Session = %q, want cookie-local", got.Session)
	}
}

func TestConcurrentMutateAndReadDoNotShareState(t *testing.T) {
	reg, _ := newTestRegistry(t)
	h := reg.Handle(platform.Wbw, 0)

	if _, err := h.Replace(authorizedState("at")); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	// Writers mutate their copy and commit it while readers inspect theirs.
	// The race detector flags this if copies ever alias the cache entry.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s := h.Current()
			s.Session = fmt.Sprintf("cookie-%d", n)
			if _, err := h.Replace(s); err != nil {
				t.Errorf("Replace() error = %v", err)
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.Current().Session
		}()
	}
	wg.Wait()
}

func TestCurrentRecoversFromStoreReadFailure(t *testing.T) {
	dsn := fmt.Sprintf("file:test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.AuthorizationRecord{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	reg := NewRegistry(store.New(db))

	// Close the connection underneath the store so Get fails with a real
	// error rather than ErrNotFound.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.Close()

	got := reg.Handle(platform.Lidl, 4).Current()
	if got == nil {
		t.Fatal("Current() returned nil on store failure")
	}
	if got.IsAuthorized() {
		t.Error("store read failure should yield an unauthorized state")
	}
}

func TestDeleteBeatsInFlightLoad(t *testing.T) {
	reg, st := newTestRegistry(t)

	seed := authorizedState("at-doomed")
	if err := st.Put(&models.AuthorizationRecord{
		Platform:  string(platform.Appie),
		AccountID: 6,
		State:     seed.Serialize(),
	}); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}

	// Replay the interleaving where a load reads the store just before the
	// record is deleted: the stale load must not be installable afterwards.
	h := reg.Handle(platform.Appie, 6)
	stale := h.load()
	if !stale.IsAuthorized() {
		t.Fatal("pre-delete load should be authorized")
	}
	if err := h.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if h.cur.CompareAndSwap(nil, stale) {
		t.Fatal("stale load was installed over the deleted entry")
	}
	if h.Current().IsAuthorized() {
		t.Error("Current() after Delete surfaced the stale authorized state")
	}
}

func TestDeleteClearsCacheAndStore(t *testing.T) {
	reg, st := newTestRegistry(t)
	h := reg.Handle(platform.Jumbo, 12)

	if _, err := h.Replace(authorizedState("at")); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := h.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if h.Current().IsAuthorized() {
		t.Error("Current() after Delete should be unauthorized")
	}
	if _, err := st.Get(platform.Jumbo, 12); err != store.ErrNotFound {
		t.Errorf("store Get() after Delete error = %v, want ErrNotFound", err)
	}
}
