// Command publish-event announces a publish, unpublish or republish of a
// backend target so running WMS adapters drop their cached layer definitions.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mohammed-shakir/gee-wms/internal/invalidation"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func main() {
	os.Exit(run())
}

func run() int {
	op := flag.String("op", invalidation.OpRepublish, "publish|unpublish|republish")
	target := flag.String("target", "", "target path, e.g. /merc")
	server := flag.String("server", "", "limit to one backend server URL")
	brokers := flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma separated broker list")
	topic := flag.String("topic", getenv("KAFKA_TOPIC", "gee-publish-events"), "topic")
	flag.Parse()

	ev := invalidation.Event{
		Version: 1,
		Op:      *op,
		Target:  *target,
		Server:  *server,
		TS:      time.Now().UTC(),
		Source:  "publish-event",
	}
	if err := ev.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid event:", err)
		return 2
	}

	prod, err := invalidation.NewSyncProducer(strings.Split(*brokers, ","))
	if err != nil {
		fmt.Fprintln(os.Stderr, "kafka:", err)
		return 1
	}
	pub := invalidation.NewPublisher(prod, *topic)
	defer func() { _ = pub.Close() }()

	part, off, err := pub.Publish(ev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "publish:", err)
		return 1
	}
	fmt.Printf("published %s %s to %s (partition %d, offset %d)\n", ev.Op, ev.Target, *topic, part, off)
	return 0
}
