// Package recorder turns relayed exchanges into usage records.
//
// Recorder implements relay.Hook. AfterRelay only copies the outcome onto a
// buffered channel; a single worker goroutine extracts token counts, prices
// them and writes to storage, so the relay never waits on the database.
// When the buffer is full the record is dropped and counted.
//
// Close stops accepting work and drains the buffer before returning:
//
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig())
//	engine := relay.New(resolver, cfg, relay.WithHooks(rec))
//	...
//	rec.Close()
package recorder
