// Command stream_load opens many concurrent subscriptions to the treasury
// snapshot stream and reports how many snapshots and heartbeats arrive.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/vadiminshakov/treasury/internal/domain"
)

type stats struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	snapshots   atomic.Int64
	heartbeats  atomic.Int64
	badPayloads atomic.Int64
	lastTotal   atomic.Value
}

func (s *stats) String() string {
	total, _ := s.lastTotal.Load().(string)
	return fmt.Sprintf("connected=%d connect_errs=%d stream_errs=%d snapshots=%d heartbeats=%d bad_payloads=%d last_total_usd=%s",
		s.connected.Load(), s.connectErrs.Load(), s.streamErrs.Load(),
		s.snapshots.Load(), s.heartbeats.Load(), s.badPayloads.Load(), total)
}

func main() {
	var (
		targetURL   string
		connections int
		duration    time.Duration
		rampUp      time.Duration
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/api/treasury/stream", "snapshot stream URL")
	flag.IntVar(&connections, "conns", 500, "number of concurrent subscribers")
	flag.DurationVar(&duration, "dur", time.Minute, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "spread subscriber starts across this window")
	flag.Parse()

	if connections <= 0 {
		log.Fatalf("invalid conns: %d", connections)
	}
	if rampUp == 0 && connections > 100 {
		rampUp = max(time.Duration(connections/500)*time.Second, time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	client := &http.Client{Transport: &http.Transport{
		MaxConnsPerHost:     connections + 100,
		MaxIdleConnsPerHost: connections + 100,
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}}

	log.Printf("subscribing: url=%s conns=%d duration=%s ramp=%s", targetURL, connections, duration, rampUp)

	var (
		st    stats
		wg    sync.WaitGroup
		start = time.Now()
		step  = rampUp / time.Duration(connections)
	)

	go report(ctx, &st, start)

	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && step > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(step):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, targetURL, &st)
		}()
	}

	wg.Wait()
	fmt.Printf("done: %s elapsed=%s\n", st.String(), time.Since(start).Truncate(time.Millisecond))
}

func subscribe(ctx context.Context, client *http.Client, url string, st *stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		st.connectErrs.Add(1)
		return
	}
	st.connected.Add(1)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			st.heartbeats.Add(1)
		case strings.HasPrefix(line, "data:"):
			var snap domain.TreasurySnapshot
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &snap); err != nil {
				st.badPayloads.Add(1)
				continue
			}
			st.snapshots.Add(1)
			st.lastTotal.Store(snap.TotalUSD.StringFixed(2))
		}
	}
	if ctx.Err() == nil {
		st.streamErrs.Add(1)
	}
}

func report(ctx context.Context, st *stats, start time.Time) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("status: %s elapsed=%s", st.String(), time.Since(start).Truncate(time.Second))
		}
	}
}
