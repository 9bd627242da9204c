package worker

import (
	"github.com/reviewdesk/draft-review-console/internal/service"
)

// StartJournalWorker registers the journal and fan-out handlers.
func StartJournalWorker(journal *service.JournalService) {
	if journal == nil {
		return
	}
	journal.RegisterHandlers()
}
