package source

import (
	"context"
	"errors"
	"time"

	"github.com/jomei/notionapi"

	"git.home.luguber.info/inful/intrahub/internal/config"
	"git.home.luguber.info/inful/intrahub/internal/docmodel"
	huberr "git.home.luguber.info/inful/intrahub/internal/errors"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
	"git.home.luguber.info/inful/intrahub/internal/observability"
	"git.home.luguber.info/inful/intrahub/internal/retry"
)

const queryPageSize = 100

// NotionSource implements Source against a Notion database.
type NotionSource struct {
	api        *notionapi.Client
	databaseID notionapi.DatabaseID
	timeout    time.Duration
	policy     retry.Policy
}

// NewNotionSource builds a Notion-backed source from configuration.
func NewNotionSource(cfg config.SourceConfig) *NotionSource {
	return &NotionSource{
		api:        notionapi.NewClient(notionapi.Token(cfg.Token)),
		databaseID: notionapi.DatabaseID(cfg.DatabaseID),
		timeout:    cfg.Timeout(),
		policy:     cfg.Retry.Policy(),
	}
}

// call runs one API call with a bounded timeout and the retry policy.
// Context cancelation is never retried.
func (n *NotionSource) call(ctx context.Context, fn func(context.Context) error) error {
	retryable := func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return n.policy.Do(ctx, retryable, func() error {
		callCtx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()
		return fn(callCtx)
	})
}

// QueryAll retrieves every record from the database, following
// pagination cursors.
func (n *NotionSource) QueryAll(ctx context.Context) ([]Record, error) {
	var records []Record
	var cursor notionapi.Cursor

	for {
		var resp *notionapi.DatabaseQueryResponse
		err := n.call(ctx, func(callCtx context.Context) error {
			var qerr error
			resp, qerr = n.api.Database.Query(callCtx, n.databaseID, &notionapi.DatabaseQueryRequest{
				StartCursor: cursor,
				PageSize:    queryPageSize,
			})
			return qerr
		})
		if err != nil {
			return nil, huberr.SourceUnavailable(err, "failed to query source database")
		}

		for _, page := range resp.Results {
			records = append(records, recordFromPage(page))
		}
		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	observability.DebugContext(ctx, "Fetched records from source", logfields.Count(len(records)))
	return records, nil
}

// FetchBlocks retrieves the record's block tree, recursing into blocks
// that report children.
func (n *NotionSource) FetchBlocks(ctx context.Context, sourceID string) ([]docmodel.ContentBlock, error) {
	return n.fetchBlockTree(ctx, notionapi.BlockID(sourceID))
}

func (n *NotionSource) fetchBlockTree(ctx context.Context, blockID notionapi.BlockID) ([]docmodel.ContentBlock, error) {
	var blocks []docmodel.ContentBlock
	cursor := ""

	for {
		var resp *notionapi.GetChildrenResponse
		err := n.call(ctx, func(callCtx context.Context) error {
			var gerr error
			resp, gerr = n.api.Block.GetChildren(callCtx, blockID, &notionapi.Pagination{
				StartCursor: notionapi.Cursor(cursor),
				PageSize:    queryPageSize,
			})
			return gerr
		})
		if err != nil {
			return nil, huberr.SourceUnavailable(err, "failed to fetch block children").
				WithContext("block_id", string(blockID))
		}

		for _, raw := range resp.Results {
			block := convertBlock(raw)
			if raw.GetHasChildren() {
				children, err := n.fetchBlockTree(ctx, raw.GetID())
				if err != nil {
					return nil, err
				}
				attachChildren(&block, children)
			}
			blocks = append(blocks, block)
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return blocks, nil
}

// WriteBackID writes the DOC_ID property of the source record, and
// nothing else.
func (n *NotionSource) WriteBackID(ctx context.Context, sourceID, assignedID string) error {
	err := n.call(ctx, func(callCtx context.Context) error {
		_, uerr := n.api.Page.Update(callCtx, notionapi.PageID(sourceID), &notionapi.PageUpdateRequest{
			Properties: notionapi.Properties{
				PropDocID: notionapi.RichTextProperty{
					RichText: []notionapi.RichText{
						{Text: &notionapi.Text{Content: assignedID}},
					},
				},
			},
		})
		return uerr
	})
	if err != nil {
		return huberr.WriteBackFailure(err, sourceID)
	}
	observability.InfoContext(ctx, "Wrote assigned ID back to source",
		logfields.SourceID(sourceID), logfields.DocID(assignedID))
	return nil
}
