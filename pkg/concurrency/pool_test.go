package concurrency

import (
	"sync/atomic"
	"testing"

	"mev_engine/internal/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunAll(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{Name: "test", MaxWorkers: 4}, &mock.MockLogger{})
	defer pool.Stop()

	var counter int64
	tasks := make([]func(), 50)
	for i := range tasks {
		tasks[i] = func() { atomic.AddInt64(&counter, 1) }
	}
	pool.RunAll(tasks)

	assert.Equal(t, int64(50), atomic.LoadInt64(&counter))
}

func TestWorkerPool_PanicIsRecovered(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{Name: "panics", MaxWorkers: 2}, &mock.MockLogger{})
	defer pool.Stop()

	var counter int64
	pool.RunAll([]func(){
		func() { panic("boom") },
		func() { atomic.AddInt64(&counter, 1) },
	})
	assert.Equal(t, int64(1), atomic.LoadInt64(&counter))
}

func TestWorkerPool_NonBlockingFull(t *testing.T) {
	pool := NewWorkerPool(PoolConfig{Name: "tiny", MaxWorkers: 1, MaxCapacity: 1, NonBlocking: true}, &mock.MockLogger{})
	defer pool.Stop()

	release := make(chan struct{})
	var rejected bool
	for i := 0; i < 10; i++ {
		if err := pool.Submit(func() { <-release }); err != nil {
			rejected = true
			break
		}
	}
	close(release)
	require.True(t, rejected)
}
