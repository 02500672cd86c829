// Publishes synthetic alert reports to the reports topic for local testing.
//
// Usage: go run generate-test-reports.go [brokers]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
)

const (
	defaultBrokers = "localhost:9092"
	topic          = "events.reports"
	numEvents      = 25
)

var (
	eventTypes = []string{"GRAVITATIONAL_WAVE", "GRAVITATIONAL_WAVE", "NEUTRINO", "UNKNOWN"}
	subtypes   = []string{"EARLY_WARNING", "PRELIMINARY", "INITIAL", "UPDATE"}
)

func main() {
	brokers := defaultBrokers
	if len(os.Args) > 1 {
		brokers = os.Args[1]
	}

	log.Printf("Connecting to Kafka at %s...", brokers)
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	ctx := context.Background()
	rand.Seed(time.Now().UnixNano())

	log.Printf("Generating %d events with report sequences...", numEvents)

	eventsCreated := 0
	reportsPublished := 0

	for i := 1; i <= numEvents; i++ {
		eventType := eventTypes[rand.Intn(len(eventTypes))]
		eventID := makeEventID(eventType, i)
		issued := time.Now().Add(-time.Duration(rand.Intn(72)) * time.Hour)

		// Each event gets 1-4 report revisions, in issuance order.
		numSequences := rand.Intn(4) + 1
		for seq := 1; seq <= numSequences; seq++ {
			report := makeReport(eventID, eventType, seq, issued)
			issued = issued.Add(time.Duration(rand.Intn(120)+5) * time.Minute)

			if err := publish(ctx, writer, report); err != nil {
				log.Printf("Warning: Failed to publish report for %s: %v", eventID, err)
				continue
			}
			reportsPublished++
		}
		eventsCreated++

		if i%10 == 0 {
			log.Printf("Progress: %d events, %d reports published...", eventsCreated, reportsPublished)
		}
	}

	log.Printf("\n=== Generation Complete ===")
	log.Printf("Events published: %d", eventsCreated)
	log.Printf("Reports published: %d", reportsPublished)
	log.Printf("Average reports per event: %.2f", float64(reportsPublished)/float64(eventsCreated))
}

func makeEventID(eventType string, i int) string {
	switch eventType {
	case "NEUTRINO":
		return fmt.Sprintf("IC2506%02dA", i)
	default:
		return fmt.Sprintf("S2506%02da", i)
	}
}

func makeReport(eventID, eventType string, seq int, issued time.Time) *events.RawReport {
	report := &events.RawReport{
		EventID:      eventID,
		EventType:    eventType,
		SequenceID:   fmt.Sprintf("%d", seq),
		EventSubtype: subtypes[minInt(seq-1, len(subtypes)-1)],
		IssuanceTime: &issued,
	}

	if eventType == "GRAVITATIONAL_WAVE" {
		report.Localization = &events.RawLocalization{
			SkymapURL:    fmt.Sprintf("https://gracedb.ligo.org/api/superevents/%s/files/bayestar.multiorder.fits,%d", eventID, seq-1),
			DistanceMean: 100 + rand.Float64()*400,
			DistanceStd:  10 + rand.Float64()*50,
			Area50:       10 + rand.Float64()*200,
			Area90:       50 + rand.Float64()*1000,
		}
	}

	// Later revisions start carrying candidate counterparts.
	if seq > 1 {
		numCandidates := rand.Intn(3)
		for c := 0; c < numCandidates; c++ {
			ra := rand.Float64() * 360
			dec := rand.Float64()*180 - 90
			mag := 17 + rand.Float64()*4
			report.Candidates = append(report.Candidates, events.RawCandidate{
				ExternalID: fmt.Sprintf("AT2025%s%d", string(rune('a'+rand.Intn(26))), c),
				RA:         &ra,
				Dec:        &dec,
				Magnitude:  &mag,
			})
		}
	}

	return report
}

func publish(ctx context.Context, writer *kafka.Writer, report *events.RawReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(report.EventID),
		Value: payload,
		Time:  time.Now(),
	})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
