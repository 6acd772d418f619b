package app

import (
	"context"

	"github.com/flotilla-erp/flotilla/internal/procurement"
	"github.com/flotilla-erp/flotilla/internal/warehouse"
	"github.com/flotilla-erp/flotilla/internal/workshop"
	"github.com/flotilla-erp/flotilla/jobs"
)

// The workshop, procurement and warehouse services reference each
// other through narrow ports. The adapters below translate between
// the port types each consumer declares, so the services stay free of
// direct dependencies on one another.

// ProcurementAdapter satisfies workshop.ProcurementPort.
type ProcurementAdapter struct {
	Service *procurement.Service
}

// CreateRequisitionFromWorkOrder forwards part lines to procurement.
func (a *ProcurementAdapter) CreateRequisitionFromWorkOrder(ctx context.Context, workOrderID int64, workOrderFolio string, lines []workshop.RequisitionLine, actorID int64) (workshop.RequisitionRef, error) {
	converted := make([]procurement.WorkOrderLine, len(lines))
	for i, line := range lines {
		converted[i] = procurement.WorkOrderLine{
			PartID:            line.PartID,
			ProductID:         line.ProductID,
			Quantity:          line.Quantity,
			EstimatedUnitCost: line.EstimatedUnitCost,
			Notes:             line.UsageNotes,
		}
	}
	requisition, linkage, err := a.Service.CreateRequisitionFromWorkOrder(ctx, workOrderID, workOrderFolio, converted, actorID)
	if err != nil {
		return workshop.RequisitionRef{}, err
	}
	return workshop.RequisitionRef{
		RequisitionID: requisition.ID,
		Folio:         requisition.Folio,
		Items:         linkage,
	}, nil
}

// WorkshopAdapter satisfies procurement.WorkshopPort.
type WorkshopAdapter struct {
	Service *workshop.Service
}

// MarkPartsInPurchase flags linked parts as being bought.
func (a *WorkshopAdapter) MarkPartsInPurchase(ctx context.Context, requisitionItemIDs []int64) error {
	return a.Service.MarkPartsInPurchase(ctx, requisitionItemIDs)
}

// PartsReceived pushes received lines and real costs back to the workshop.
func (a *WorkshopAdapter) PartsReceived(ctx context.Context, lines []procurement.ReceivedLine, actorID int64) error {
	received := make([]workshop.ReceivedItem, len(lines))
	for i, line := range lines {
		received[i] = workshop.ReceivedItem{
			RequisitionItemID: line.RequisitionItemID,
			UnitCost:          line.UnitCost,
		}
	}
	return a.Service.PartsReceivedByRequisitionItems(ctx, received, actorID)
}

// WarehouseAdapter satisfies procurement.WarehousePort.
type WarehouseAdapter struct {
	Service *warehouse.Service
}

// RegisterPurchaseEntry posts accepted receipt lines into stock.
func (a *WarehouseAdapter) RegisterPurchaseEntry(ctx context.Context, entry procurement.PurchaseEntry) error {
	lines := make([]warehouse.EntryItemInput, len(entry.Lines))
	for i, line := range entry.Lines {
		lines[i] = warehouse.EntryItemInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitCost:  line.UnitCost,
		}
	}
	_, err := a.Service.RegisterPurchaseEntry(ctx, entry.OrderFolio, entry.ReceivedByID, entry.Remission, entry.Location, lines)
	return err
}

// MailNotifier satisfies workshop.NotifierPort by queueing emails.
type MailNotifier struct {
	Client *jobs.Client
	To     string
}

// Notify enqueues one notification email.
func (n *MailNotifier) Notify(ctx context.Context, subject, body string) error {
	if n.Client == nil || n.To == "" {
		return nil
	}
	_, err := n.Client.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      n.To,
		Subject: subject,
		Body:    body,
	})
	return err
}
