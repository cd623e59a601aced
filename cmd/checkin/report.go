package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"labcheckin/internal/form"
	"labcheckin/internal/highlight"
	"labcheckin/pkg/domain"
)

// writeReport prints every cell in error, in row order.
func writeReport(w io.Writer, b domain.Batch, cells map[highlight.Key]highlight.Entry) {
	order := make(map[domain.RowRef]int)
	for i, row := range b.Rows() {
		order[row.Ref()] = i
	}
	var keys []highlight.Key
	for k, e := range cells {
		if e.HasError {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return
	}
	sort.Slice(keys, func(i, j int) bool {
		ri := order[domain.RowRef{ParentID: keys[i].ParentID, RowID: keys[i].RowID}]
		rj := order[domain.RowRef{ParentID: keys[j].ParentID, RowID: keys[j].RowID}]
		if ri != rj {
			return ri < rj
		}
		return keys[i].Field < keys[j].Field
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tFIELD\tERROR")
	for _, k := range keys {
		ref := domain.RowRef{ParentID: k.ParentID, RowID: k.RowID}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ref, k.Field, cells[k].Message)
	}
	_ = tw.Flush()
}

func writeSubmitResult(w io.Writer, res form.SubmitResult) {
	fmt.Fprintf(w, "accepted: %d, rejected: %d\n", len(res.Accepted), len(res.Rejected))
	for _, id := range res.Accepted {
		fmt.Fprintf(w, "  checked in %s\n", id)
	}
	if res.ArchiveID != "" {
		fmt.Fprintf(w, "archived as %s\n", res.ArchiveID)
	}
}
