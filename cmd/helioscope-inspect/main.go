// helioscope-inspect prints the records a node has published to Redis.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gravito-framework/helioscope-go/internal/redis"
)

type storedRecord struct {
	Probe     string          `json:"probe"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
	Fields    json.RawMessage `json:"fields"`
}

func main() {
	redisURL := flag.String("redis", envOr("HELIOSCOPE_REDIS_URL", "redis://localhost:6379"), "Redis URL")
	nodeID := flag.String("node", os.Getenv("HELIOSCOPE_NODE_ID"), "node whose records to show")
	probe := flag.String("probe", "", "only show records from this probe")
	limit := flag.Int64("limit", 50, "number of most recent records to read")
	flag.Parse()

	if *nodeID == "" {
		fmt.Fprintln(os.Stderr, "Error: -node is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, *redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	key := redis.RecordsKey(*nodeID)
	entries, err := client.Tail(ctx, key, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", key, err)
		os.Exit(1)
	}

	ttl, _ := client.TTL(ctx, key).Result()
	fmt.Printf("📍 Node: %s (%s, %d records read, ttl %s)\n\n", *nodeID, key, len(entries), ttl)

	shown := 0
	for _, raw := range entries {
		var rec storedRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		if *probe != "" && rec.Probe != *probe {
			continue
		}

		fmt.Printf("%s  %-11s %-5s %s\n",
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.Probe,
			strings.ToUpper(rec.Level),
			rec.Message)
		if len(rec.Fields) > 2 {
			fmt.Printf("   %s\n", rec.Fields)
		}
		shown++
	}

	if shown == 0 {
		fmt.Println("No matching records.")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
