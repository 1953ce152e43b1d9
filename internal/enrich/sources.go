package enrich

import (
	"path/filepath"

	"github.com/pmos/brain/internal/entity"
)

// sourceEnricher is a config-driven Enricher shared by every concrete
// source (chat, issue tracker, code host, doc store, calendar,
// spreadsheet, research session). Each source differs only in its name,
// reliability, and the event type it appends — the record interpretation
// itself follows session_enricher.py's enrich()/enrich_from_inbox() shape
// uniformly, since every source's raw record reduces to the same
// {related_entities, title, finding, confidence, timestamp,
// correlation_id} envelope once the out-of-scope API client has parsed
// it.
type sourceEnricher struct {
	Base
	eventType string
}

// newSource builds a sourceEnricher bound to name/reliability/eventType
// over the given collaborators.
func newSource(name string, reliability float64, eventType string, b Base) *sourceEnricher {
	b.Source = name
	b.Reliability = reliability
	return &sourceEnricher{Base: b, eventType: eventType}
}

// Source reliabilities, per spec.md §4.12 (document-store and chat are
// given explicitly; the rest are this implementation's decision) and
// research-session from
// session_enricher.py's SOURCE_RELIABILITY = 0.75.
const (
	ReliabilityChat          = 0.65
	ReliabilityIssueTracker  = 0.80
	ReliabilityCodeHost      = 0.80
	ReliabilityDocStore      = 0.85
	ReliabilityCalendar      = 0.90
	ReliabilitySpreadsheet   = 0.70
	ReliabilityResearchSession = 0.75
)

// NewChatEnricher enriches entities from chat-platform messages.
func NewChatEnricher(b Base) Enricher {
	return newSource("chat", ReliabilityChat, entity.EventFieldUpdate, b)
}

// NewIssueTrackerEnricher enriches entities from issue-tracker records.
func NewIssueTrackerEnricher(b Base) Enricher {
	return newSource("issue_tracker", ReliabilityIssueTracker, entity.EventFieldUpdate, b)
}

// NewCodeHostEnricher enriches entities from code-host records (PRs,
// commits, repo ownership).
func NewCodeHostEnricher(b Base) Enricher {
	return newSource("code_host", ReliabilityCodeHost, entity.EventFieldUpdate, b)
}

// NewDocStoreEnricher enriches entities from document-store records.
func NewDocStoreEnricher(b Base) Enricher {
	return newSource("doc_store", ReliabilityDocStore, entity.EventFieldUpdate, b)
}

// NewCalendarEnricher enriches entities from calendar events (meeting
// attendance implies relationships and activity).
func NewCalendarEnricher(b Base) Enricher {
	return newSource("calendar", ReliabilityCalendar, entity.EventFieldUpdate, b)
}

// NewSpreadsheetEnricher enriches entities from spreadsheet rows (roadmap
// trackers, OKR sheets).
func NewSpreadsheetEnricher(b Base) Enricher {
	return newSource("spreadsheet", ReliabilitySpreadsheet, entity.EventFieldUpdate, b)
}

// NewSessionEnricher enriches entities from Claude session research
// findings, a 1:1 port of session_enricher.py's SessionEnricher.
func NewSessionEnricher(b Base) Enricher {
	return newSource("session", ReliabilityResearchSession, entity.EventResearchDiscovery, b)
}

// Enrich interprets one raw record: for every related_entities mention
// that resolves to an existing entity, append one event recording the
// finding, mirroring SessionEnricher.enrich's per-mention loop.
func (s *sourceEnricher) Enrich(record map[string]interface{}, dryRun bool) (int, error) {
	title := StringField(record, "title")
	finding := StringField(record, "finding")
	if finding == "" {
		finding = StringField(record, "message")
	}
	correlationID := StringField(record, "correlation_id")
	if correlationID == "" {
		correlationID = StringField(record, "session_id")
	}
	mentions := StringListField(record, "related_entities")
	if mentions == nil {
		if single := StringField(record, "entity"); single != "" {
			mentions = []string{single}
		}
	}

	message := Truncate(finding, 200)
	if title != "" {
		message = title + ": " + message
	}

	updates := 0
	for _, mention := range mentions {
		_, path, err := s.ResolveMention(mention)
		if err != nil || path == "" {
			continue
		}
		if dryRun {
			updates++
			continue
		}
		if err := s.AppendDiscovery(path, s.eventType, message, correlationID, []entity.Change{
			{Field: "events", Operation: "append", Value: message},
		}); err != nil {
			continue
		}
		updates++
	}
	return updates, nil
}

// EnrichFromInbox processes every cached raw record under dir, skipping
// low-confidence findings by default, matching
// SessionEnricher.enrich_from_inbox.
func (s *sourceEnricher) EnrichFromInbox(dir string, dryRun bool) (Stats, error) {
	var stats Stats
	records, err := LoadInboxRecords(filepath.Join(dir, "Raw"))
	if err != nil {
		return stats, err
	}
	if records == nil {
		records, err = LoadInboxRecords(dir)
		if err != nil {
			return stats, err
		}
	}

	for _, record := range records {
		stats.Processed++
		if StringField(record, "confidence") == "low" {
			stats.Skipped++
			continue
		}
		updated, err := s.Enrich(record, dryRun)
		if err != nil {
			stats.Errors++
			continue
		}
		stats.Updated += updated
	}
	return stats, nil
}
