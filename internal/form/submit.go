package form

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"labcheckin/internal/bulk"
	"labcheckin/internal/highlight"
	"labcheckin/pkg/domain"
)

// SubmitResult summarizes a submission.
type SubmitResult struct {
	Accepted  []string
	Rejected  []domain.OrderError
	ArchiveID string
}

// Requests converts the batch into one check-in request per order.
func Requests(b domain.Batch) []domain.CheckInRequest {
	out := make([]domain.CheckInRequest, 0, len(b.Orders))
	for _, o := range b.Orders {
		req := domain.CheckInRequest{OrderID: o.ID}
		for i, row := range o.Components {
			req.Containers = append(req.Containers, domain.ContainerCheckIn{
				ComponentIndex:     i,
				RowID:              row.RowID,
				ResourceID:         row.Resource.ID,
				Label:              row.Form.Label.Value,
				LotNo:              row.Form.LotNo.Value,
				Barcode:            row.Form.Barcode.Value,
				VolumePerContainer: row.Form.VolumePerContainer.Value,
				MassPerContainer:   row.Form.MassPerContainer.Value,
				ContainerTypeID:    row.Form.ContainerType.Value,
				LocationID:         row.Form.Location.Value,
				LabID:              row.LabID,
			})
		}
		out = append(out, req)
	}
	return out
}

// Submit sends every order to the sink. Rejected components are marked in
// danger with the sink's messages; the unsaved-changes flag is cleared only
// when every order was accepted. Transport failures are reported to the
// notifier and leave row state untouched.
func (f *Form) Submit(ctx context.Context) (SubmitResult, error) {
	var res SubmitResult
	err := f.run(ctx, "submit", func(ctx context.Context) error {
		if f.deps.Sink == nil {
			return fmt.Errorf("submit: no check-in sink configured")
		}
		f.Flush()

		f.mu.Lock()
		if !f.loaded {
			f.mu.Unlock()
			return ErrNotLoaded
		}
		if f.state.Highlights.HasDanger() {
			keys := f.state.Highlights.DangerKeys()
			f.mu.Unlock()
			return fmt.Errorf("%w: %d fields", ErrFormInvalid, len(keys))
		}
		requests := Requests(f.state.Batch)
		f.mu.Unlock()

		rejected, err := f.deps.Sink.SubmitCheckIns(ctx, requests)
		if err != nil {
			f.notify(ctx, domain.NotifyError, "Check-in failed")
			return fmt.Errorf("submit check-ins: %w", err)
		}

		failed := make(map[string]bool, len(rejected))
		for _, oe := range rejected {
			failed[oe.OrderID] = true
		}
		var accepted []domain.CheckInRequest
		for _, req := range requests {
			if !failed[req.OrderID] {
				accepted = append(accepted, req)
				res.Accepted = append(res.Accepted, req.OrderID)
			}
		}
		res.Rejected = rejected

		f.mu.Lock()
		f.state = f.markRejected(f.state, requests, rejected)
		if len(rejected) == 0 {
			f.dirty = false
		}
		f.refreshView()
		f.mu.Unlock()

		if f.archiver != nil && len(accepted) > 0 {
			id, err := f.archiver.Archive(ctx, accepted)
			if err != nil {
				f.logger.Warn("archive check-ins failed", "orders", len(accepted), "error", err)
			} else {
				res.ArchiveID = id
			}
		}

		if len(rejected) > 0 {
			f.notify(ctx, domain.NotifyError, fmt.Sprintf("%d of %d orders were rejected", len(rejected), len(requests)))
			return nil
		}
		f.notify(ctx, domain.NotifySuccess, fmt.Sprintf("Checked in %d orders", len(requests)))
		return nil
	})
	return res, err
}

// markRejected maps per-order, per-component errors back to rows through
// the row ids carried by the requests that were sent, so edits made while
// the sink was busy do not shift errors onto other rows. Rows no longer in
// the form are skipped. Callers hold f.mu.
func (f *Form) markRejected(s bulk.State, requests []domain.CheckInRequest, rejected []domain.OrderError) bulk.State {
	if len(rejected) == 0 {
		return s
	}
	sent := make(map[string]domain.CheckInRequest, len(requests))
	for _, req := range requests {
		sent[req.OrderID] = req
	}
	b := s.Batch.Clone()
	m := s.Highlights.Update(func(tx *highlight.Txn) {
		for _, oe := range rejected {
			req, ok := sent[oe.OrderID]
			if !ok {
				f.logger.Warn("rejected order was not submitted", "order", oe.OrderID)
				continue
			}
			comps := make([]int, 0, len(oe.Errors))
			for c := range oe.Errors {
				comps = append(comps, c)
			}
			sort.Ints(comps)
			for _, c := range comps {
				rowID, ok := sentRowID(req, c)
				if !ok {
					f.logger.Warn("rejected component was not submitted", "order", oe.OrderID, "component", c)
					continue
				}
				ref := domain.RowRef{ParentID: req.OrderID, RowID: rowID}
				if _, ok := b.Find(ref); !ok {
					f.logger.Warn("rejected row no longer in form", "row", ref.String())
					continue
				}
				fields := make([]domain.Field, 0, len(oe.Errors[c]))
				for field := range oe.Errors[c] {
					fields = append(fields, field)
				}
				sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
				for _, field := range fields {
					if !slices.Contains(domain.Fields, field) {
						f.logger.Warn("rejected field not editable", "order", oe.OrderID, "field", field)
						continue
					}
					msg := strings.Join(oe.Errors[c][field], ", ")
					tx.SetDanger(field, msg, ref)
					b.UpdateRow(ref, func(r *domain.Row) { r.Form.Mark(field, msg) })
				}
			}
		}
	})
	return bulk.State{Batch: b, Highlights: m}
}

func sentRowID(req domain.CheckInRequest, componentIndex int) (string, bool) {
	for _, c := range req.Containers {
		if c.ComponentIndex == componentIndex {
			return c.RowID, true
		}
	}
	return "", false
}
