package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/V4T54L/devrelay/internal/tail"
)

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "Base URL of a running devrelay server")
	token := flag.String("token", "", "Stream token, if the server requires one")
	clients := flag.Int("clients", 10, "Number of concurrent stream clients")
	renderers := flag.Int("c", 4, "Number of concurrent page renderers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the benchmark")
	rps := flag.Int("rps", 200, "Page renders per second limit")
	flag.Parse()

	runID := uuid.NewString()
	log.Printf("Starting stream benchmark %s against %s", runID, *baseURL)
	log.Printf("Clients: %d, Renderers: %d, Duration: %s, RPS: %d", *clients, *renderers, *duration, *rps)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var streamWG sync.WaitGroup
	events := make([]atomic.Int64, *clients)
	streamCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	for i := 0; i < *clients; i++ {
		streamWG.Add(1)
		go func(clientID int) {
			defer streamWG.Done()
			if err := follow(streamCtx, *baseURL+"/_nuxt_logs", *token, &events[clientID]); err != nil && streamCtx.Err() == nil {
				log.Printf("client %d: %v", clientID, err)
			}
		}(i)
	}

	// Give the stream clients time to subscribe before generating records.
	time.Sleep(500 * time.Millisecond)

	var renderWG sync.WaitGroup
	var successCount, errorCount atomic.Int64
	limiter := rate.NewLimiter(rate.Limit(*rps), 10)

	for i := 0; i < *renderers; i++ {
		renderWG.Add(1)
		go func() {
			defer renderWG.Done()
			client := &http.Client{Timeout: 5 * time.Second}

			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, *baseURL+"/?bench="+runID, nil)
				if err != nil {
					continue
				}
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() == nil {
						errorCount.Add(1)
					}
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					successCount.Add(1)
				} else {
					errorCount.Add(1)
				}
			}
		}()
	}

	renderWG.Wait()
	// Let in-flight events drain to the clients.
	time.Sleep(time.Second)
	stopStreams()
	streamWG.Wait()

	total := successCount.Load() + errorCount.Load()
	log.Println("Stream benchmark finished.")
	log.Printf("Total Renders: %d", total)
	log.Printf("Successful (200 OK): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", float64(total)/duration.Seconds())
	for i := range events {
		log.Printf("client %d received %d events", i, events[i].Load())
	}
}

func follow(ctx context.Context, url, token string, count *atomic.Int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return tail.ReadFrames(resp.Body, func(tail.Frame) error {
		count.Add(1)
		return nil
	})
}
