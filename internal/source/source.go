// Package source fetches document records from the external content
// database and writes assigned IDs back to it.
package source

import (
	"context"

	"git.home.luguber.info/inful/intrahub/internal/docmodel"
)

// Reserved property names on source records. TITLE and PUBLISH drive the
// pipeline; DOC_ID is the only field the pipeline ever writes back.
const (
	PropTitle   = "TITLE"
	PropPublish = "PUBLISH"
	PropDocID   = "DOC_ID"
)

// Record is one document record as listed by the source database,
// without its block content.
type Record struct {
	SourceID   string
	Title      string
	Publish    bool
	AssignedID string // current value of the ID field on the source record
	Meta       docmodel.Attributes
}

// Source is the external content database.
type Source interface {
	// QueryAll retrieves every record in the configured database.
	QueryAll(ctx context.Context) ([]Record, error)

	// FetchBlocks retrieves the full block tree for one record,
	// including nested children.
	FetchBlocks(ctx context.Context, sourceID string) ([]docmodel.ContentBlock, error)

	// WriteBackID sets the ID field of the source record. No other
	// field is ever written.
	WriteBackID(ctx context.Context, sourceID, assignedID string) error
}
