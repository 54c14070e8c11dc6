package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInsertAndLookup(t *testing.T) {
	c := New(4, time.Minute)
	defer c.Close()

	key := FingerprintKey{Method: "GET", Path: "/index.html", Encoding: "gzip"}
	c.Insert(key, &Artifact{Status: 200, Body: []byte("hello")})

	got, ok := c.Lookup(key)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), got.Body)
}

func TestLookupMiss(t *testing.T) {
	c := New(4, time.Minute)
	defer c.Close()

	_, ok := c.Lookup(FingerprintKey{Method: "GET", Path: "/nope"})
	assert.False(t, ok)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, time.Minute)
	defer c.Close()

	a := FingerprintKey{Method: "GET", Path: "/a"}
	b := FingerprintKey{Method: "GET", Path: "/b"}
	d := FingerprintKey{Method: "GET", Path: "/d"}

	c.Insert(a, &Artifact{Body: []byte("a")})
	c.Insert(b, &Artifact{Body: []byte("b")})
	// touch a so b becomes the LRU victim
	_, _ = c.Lookup(a)
	c.Insert(d, &Artifact{Body: []byte("d")})

	_, ok := c.Lookup(b)
	assert.False(t, ok)

	_, ok = c.Lookup(a)
	assert.True(t, ok)
	_, ok = c.Lookup(d)
	assert.True(t, ok)
}

func TestSetLimitsShrinksCapacityOnNextInsert(t *testing.T) {
	c := New(4, time.Minute)
	defer c.Close()

	a := FingerprintKey{Method: "GET", Path: "/a"}
	b := FingerprintKey{Method: "GET", Path: "/b"}
	c.Insert(a, &Artifact{Body: []byte("a")})
	c.Insert(b, &Artifact{Body: []byte("b")})
	assert.Equal(t, 2, c.Len())

	c.SetLimits(1, time.Minute)

	// SetLimits itself evicts nothing; the next Insert evicts the LRU
	// tail down to the new capacity of 1, and later inserts keep it there.
	d := FingerprintKey{Method: "GET", Path: "/d"}
	e := FingerprintKey{Method: "GET", Path: "/e"}
	c.Insert(d, &Artifact{Body: []byte("d")})
	c.Insert(e, &Artifact{Body: []byte("e")})
	assert.Equal(t, 1, c.Len())
}

func TestExpiresAfterTTL(t *testing.T) {
	c := New(4, 10*time.Millisecond)
	defer c.Close()

	key := FingerprintKey{Method: "GET", Path: "/x"}
	c.Insert(key, &Artifact{Body: []byte("x")})

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Lookup(key)
	assert.False(t, ok)
}

func TestCoalesceRunsBuildOnceForConcurrentMisses(t *testing.T) {
	c := New(4, time.Minute)
	defer c.Close()

	key := FingerprintKey{Method: "GET", Path: "/shared"}
	var builds int32

	build := func() (*Artifact, error) {
		atomic.AddInt32(&builds, 1)
		time.Sleep(20 * time.Millisecond)
		return &Artifact{Body: []byte("built")}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			artifact, err := c.Coalesce(key, build)
			assert.NoError(t, err)
			assert.Equal(t, []byte("built"), artifact.Body)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
}

func TestCoalesceLeavesInsertionToBuild(t *testing.T) {
	c := New(4, time.Minute)
	defer c.Close()

	key := FingerprintKey{Method: "GET", Path: "/not-cached"}
	_, err := c.Coalesce(key, func() (*Artifact, error) {
		return &Artifact{Body: []byte("never stored")}, nil
	})
	assert.NoError(t, err)

	_, ok := c.Lookup(key)
	assert.False(t, ok, "Coalesce must not insert on the caller's behalf")
}

func TestCoalescePropagatesBuildError(t *testing.T) {
	c := New(4, time.Minute)
	defer c.Close()

	key := FingerprintKey{Method: "GET", Path: "/broken"}
	sentinel := errors.New("boom")
	_, err := c.Coalesce(key, func() (*Artifact, error) {
		return nil, sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestInvalidateAll(t *testing.T) {
	c := New(4, time.Minute)
	defer c.Close()

	key := FingerprintKey{Method: "GET", Path: "/y"}
	c.Insert(key, &Artifact{Body: []byte("y")})
	c.InvalidateAll()

	_, ok := c.Lookup(key)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
