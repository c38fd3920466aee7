package collector

import "github.com/jonathan/npidb-scraper/internal/types"

// Observer receives progress while a run is in flight. Calls happen on the
// collecting goroutine, never concurrently.
type Observer interface {
	PageFetched(page, rows int)
	RecordAccepted(record types.ProviderRecord, total int)
	Stopped(outcome *Outcome)
}

type nopObserver struct{}

func (nopObserver) PageFetched(int, int)                     {}
func (nopObserver) RecordAccepted(types.ProviderRecord, int) {}
func (nopObserver) Stopped(*Outcome)                         {}
