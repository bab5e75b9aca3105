package wallet

import (
	"context"
	"path"

	"xdao.co/wallet/template"
	"xdao.co/wallet/unit"
)

// WriteFiles writes records into u under prefix, one batch per record.
//
// Records are written last to first. Every batch begun here is either
// committed or cancelled before WriteFiles returns; the first failure stops
// the remaining records. records is not modified.
func WriteFiles(ctx context.Context, u unit.Unit, records []template.FileRecord, prefix string) error {
	for i := len(records) - 1; i >= 0; i-- {
		target := path.Join("/", prefix, records[i].Path)
		if err := writeBatch(ctx, u, target, records[i].Content.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// writeBatch writes one file inside its own batch.
func writeBatch(ctx context.Context, u unit.Unit, target string, data []byte) error {
	if err := u.BeginBatch(ctx); err != nil {
		return &Error{Kind: KindBatchBegin, Stage: "begin batch", Path: target, Cause: err}
	}
	if err := u.WriteFile(ctx, target, data); err != nil {
		return &Error{Kind: KindWrite, Stage: "write file", Path: target, Cause: err, Cancel: cancelBatch(ctx, u)}
	}
	if err := u.CommitBatch(ctx); err != nil {
		return &Error{Kind: KindCommit, Stage: "commit batch", Path: target, Cause: err, Cancel: cancelBatch(ctx, u)}
	}
	return nil
}

// cancelBatch releases an open batch after a failure. It runs even when ctx
// is already done and returns a KindCancel error only if the cancel failed.
func cancelBatch(ctx context.Context, u unit.Unit) error {
	if err := u.CancelBatch(context.WithoutCancel(ctx)); err != nil {
		return wrapError(KindCancel, "cancel batch", err)
	}
	return nil
}
