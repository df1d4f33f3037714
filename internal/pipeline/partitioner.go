package pipeline

import "statsingest/internal/model"

// Partition implements §4.3: split rows sequentially into batches of at
// most batchMax items, preserving row order within and across batches.
// Empty input yields zero batches. Pure function.
func Partition(runID string, rows []model.Row, batchMax int) []model.Batch {
	if batchMax <= 0 {
		batchMax = 25
	}
	if len(rows) == 0 {
		return nil
	}

	batches := make([]model.Batch, 0, (len(rows)+batchMax-1)/batchMax)
	for start, chunkIndex := 0, 0; start < len(rows); start, chunkIndex = start+batchMax, chunkIndex+1 {
		end := start + batchMax
		if end > len(rows) {
			end = len(rows)
		}
		items := make([]model.Row, end-start)
		copy(items, rows[start:end])
		batches = append(batches, model.Batch{
			RunID:      runID,
			ChunkIndex: chunkIndex,
			Items:      items,
		})
	}
	return batches
}
