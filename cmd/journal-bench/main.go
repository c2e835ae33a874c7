// journal-bench measures sync latency through the coalescer end to end,
// with the batching and timer thread in the loop, to answer "what
// timeout should I configure?" against a real backend.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"journalbuf/backend"
	"journalbuf/coalescer"
)

type latencyCallback struct {
	done chan time.Duration
	sent time.Time
}

func (c *latencyCallback) Done() {
	c.done <- time.Since(c.sent)
}

func (c *latencyCallback) OnError(code int, message string) {
	fmt.Fprintf(os.Stderr, "journal-bench: flush failed: code=%d message=%s\n", code, message)
	c.done <- -1
}

func main() {
	testDir := filepath.Join(os.TempDir(), "journal-bench")
	os.RemoveAll(testDir)
	defer os.RemoveAll(testDir)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	sizes := []int{100, 1024, 4096, 16384}
	iterations := 200

	for _, size := range sizes {
		if err := runSize(testDir, logger, size, iterations); err != nil {
			fmt.Fprintf(os.Stderr, "journal-bench: %s\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("\n=== Summary ===")
	fmt.Println("If P50 < 1ms:  1ms timeout is reasonable")
	fmt.Println("If P50 < 5ms:  5ms timeout is reasonable")
	fmt.Println("If P50 > 10ms: 10ms timeout is conservative")
}

func runSize(testDir string, logger *slog.Logger, recordSize, iterations int) error {
	dir := filepath.Join(testDir, fmt.Sprintf("size-%d", recordSize))

	be, err := backend.Open(dir, 64<<20, logger)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer be.Close()

	c := coalescer.New(coalescer.Options{
		BufferSize: 1 << 16,
		Timeout:    time.Millisecond,
		Logger:     logger,
	})
	c.Start()
	defer c.Stop()

	if err := c.SetObserver(be); err != nil {
		return fmt.Errorf("set observer: %w", err)
	}

	payload := make([]byte, recordSize)
	for i := range payload {
		payload[i] = byte(i % 256)
	}

	// Warmup.
	for i := 0; i < 10; i++ {
		if _, _, err := writeOne(c, be, payload); err != nil {
			return err
		}
	}

	latencies := make([]time.Duration, 0, iterations)
	start := time.Now()

	for i := 0; i < iterations; i++ {
		lat, ok, err := writeOne(c, be, payload)
		if err != nil {
			return err
		}
		if ok {
			latencies = append(latencies, lat)
		}
	}
	duration := time.Since(start)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	throughput := float64(len(latencies)) / duration.Seconds()

	fmt.Printf("\n=== Record %d bytes, sync every write ===\n", recordSize)
	fmt.Printf("Throughput: %.1f ops/sec\n", throughput)
	if len(latencies) > 0 {
		fmt.Printf("  Min: %v\n", latencies[0])
		fmt.Printf("  P50: %v\n", latencies[len(latencies)/2])
		fmt.Printf("  P99: %v\n", latencies[int(float64(len(latencies))*0.99)])
		fmt.Printf("  Max: %v\n", latencies[len(latencies)-1])
	}
	return nil
}

func writeOne(c *coalescer.Coalescer, be *backend.FileBackend, payload []byte) (time.Duration, bool, error) {
	ok, err := c.CheckSize(len(payload))
	if err != nil {
		return 0, false, err
	}
	if !ok {
		if err := be.Roll(); err != nil {
			return 0, false, fmt.Errorf("roll: %w", err)
		}
		if ok, err = c.CheckSize(len(payload)); err != nil || !ok {
			return 0, false, fmt.Errorf("check_size still false after roll: ok=%v err=%v", ok, err)
		}
	}

	cb := &latencyCallback{done: make(chan time.Duration, 1), sent: time.Now()}
	if err := c.AddBytes(payload, true, cb); err != nil {
		return 0, false, err
	}

	lat := <-cb.done
	if lat < 0 {
		return 0, false, nil
	}
	return lat, true, nil
}
