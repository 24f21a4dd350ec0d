package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

func testBackend(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}
	if err := c.Set(ctx, "k", []byte("<svg/>"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(data) != "<svg/>" {
		t.Fatalf("Get(k) = %q, %v, %v", data, ok, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("entry survived Delete")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of a missing key: %v", err)
	}
}

func TestMemory(t *testing.T) {
	testBackend(t, NewMemory(0))
}

func TestMemory_Evicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)
	_ = m.Set(ctx, "a", []byte("1"), 0)
	_ = m.Set(ctx, "b", []byte("2"), 0)
	_, _, _ = m.Get(ctx, "a") // a is now most recent
	_ = m.Set(ctx, "c", []byte("3"), 0)

	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Len())
	}
	if _, ok, _ := m.Get(ctx, "b"); ok {
		t.Error("least recently used entry was not evicted")
	}
	if _, ok, _ := m.Get(ctx, "a"); !ok {
		t.Error("recently used entry was evicted")
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemory(4)
	m.now = func() time.Time { return now }

	_ = m.Set(ctx, "k", []byte("v"), time.Minute)
	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("expired entry returned")
	}
	if m.Len() != 0 {
		t.Error("expired entry not removed")
	}
}

func TestFileCache(t *testing.T) {
	c, err := NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	testBackend(t, c)
}

func TestFileCache_ExpiryAndCorruption(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "old", []byte("x"), time.Second)
	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "old"); ok {
		t.Error("expired entry returned")
	}
	if _, err := os.Stat(c.path("old")); !os.IsNotExist(err) {
		t.Error("expired entry file not removed")
	}

	_ = c.Set(ctx, "bad", []byte("x"), 0)
	if err := os.WriteFile(c.path("bad"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(ctx, "bad"); ok || err != nil {
		t.Errorf("corrupt entry: ok=%v err=%v", ok, err)
	}
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedis(t *testing.T) {
	fake := newFakeRedis()
	testBackend(t, NewRedis(fake))

	_ = NewRedis(fake).Set(context.Background(), "t", []byte("x"), time.Hour)
	if fake.ttls["t"] != time.Hour {
		t.Errorf("ttl = %v, want 1h", fake.ttls["t"])
	}
}

func TestScoped(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory(0)
	c := Scoped(inner, "render:")
	_ = c.Set(ctx, "k", []byte("v"), 0)

	if _, ok, _ := inner.Get(ctx, "render:k"); !ok {
		t.Error("scoped key not prefixed in the inner cache")
	}
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("scoped Get missed its own entry")
	}
}

func TestKey(t *testing.T) {
	if Key("svg", "ab", "c") == Key("svg", "a", "bc") {
		t.Error("Key must separate its parts")
	}
	if Key("svg", "x") == Key("png", "x") {
		t.Error("Key must include the kind")
	}
	if Key("svg", "x") != Key("svg", "x") {
		t.Error("Key must be deterministic")
	}
}

func TestNew(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	tests := []struct {
		cfg     Config
		wantErr bool
	}{
		{Config{}, false},
		{Config{Backend: "memory", MaxEntries: 3}, false},
		{Config{Backend: "FILE"}, false},
		{Config{Backend: "none"}, false},
		{Config{Backend: "redis"}, true},
		{Config{Backend: "redis", RedisAddr: "localhost:6379", Prefix: "fs:"}, false},
		{Config{Backend: "disk"}, true},
	}
	for _, tt := range tests {
		c, err := New(tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			continue
		}
		if c != nil {
			_ = c.Close()
		}
	}
}

func TestMemo(t *testing.T) {
	ctx := context.Background()
	memo := NewMemo(NewMemory(0), 0, log.New(&bytes.Buffer{}))

	var calls atomic.Int32
	render := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("<svg/>"), nil
	}
	for range 3 {
		data, err := memo.Do(ctx, "k", render)
		if err != nil || string(data) != "<svg/>" {
			t.Fatalf("Do = %q, %v", data, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("fn called %d times, want 1", calls.Load())
	}
	if hits, misses := memo.Stats(); hits != 2 || misses != 1 {
		t.Errorf("Stats() = %d, %d", hits, misses)
	}
}

func TestMemo_ErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	memo := NewMemo(nil, 0, log.New(&bytes.Buffer{}))
	boom := errors.New("graphviz failed")

	if _, err := memo.Do(ctx, "k", func(context.Context) ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("Do error = %v", err)
	}
	data, err := memo.Do(ctx, "k", func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	if err != nil || string(data) != "ok" {
		t.Errorf("retry after error = %q, %v", data, err)
	}
}

func TestMemo_Coalesces(t *testing.T) {
	ctx := context.Background()
	memo := NewMemo(NullCache{}, 0, nil)

	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("x"), nil
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = memo.Do(ctx, "k", fn)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("fn called %d times for concurrent requests, want 1", calls.Load())
	}
}
