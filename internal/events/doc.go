// Package events publishes harvester events to Kafka.
//
// # Envelope
//
// Every message value is a JSON Envelope wrapping the event payload with
// an event id, the aggregate id (the paper's canonical id), the event
// type and the emitting service. The message key is the aggregate id so
// all events of one paper land on one partition.
//
// # Usage
//
//	pub := events.NewKafkaPublisher(cfg.Kafka, logger)
//	defer pub.Close()
//
//	err := pub.PublishPaperImported(ctx, domain.NewPaperImportedEvent(runID, paper, time.Now()))
//
// Publishing is best effort from the harvester's point of view: callers
// log failures and carry on.
package events
