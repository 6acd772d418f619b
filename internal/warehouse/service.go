package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/flotilla-erp/flotilla/internal/shared"
)

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateProduct(ctx context.Context, input CreateProductInput) (Product, error)
	UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetProductBySKU(ctx context.Context, sku string) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	ListProductsWithExpiry(ctx context.Context, until time.Time) ([]Product, error)
	GetEntry(ctx context.Context, id int64) (Entry, error)
	ListEntries(ctx context.Context, entryType EntryType, limit, offset int) ([]Entry, error)
	InsertRequest(ctx context.Context, request ExitRequest) (ExitRequest, error)
	GetRequest(ctx context.Context, id int64) (ExitRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]ExitRequest, error)
	SetAuthorization(ctx context.Context, id int64, status RequestStatus, authorizerID int64, comments string, at time.Time) error
	SetRequestStatus(ctx context.Context, id int64, status RequestStatus) error
	ListExits(ctx context.Context, requestID int64) ([]Exit, error)
	ListQuickExits(ctx context.Context, productID int64, limit, offset int) ([]QuickExit, error)
	ListMovements(ctx context.Context, productID int64, limit, offset int) ([]Movement, error)
	OpenAlert(ctx context.Context, productID int64, alertType AlertType, message string) (bool, error)
	ResolveAlertsForProduct(ctx context.Context, productID int64, types []AlertType, at time.Time) error
	ResolveAlert(ctx context.Context, id, actorID int64, at time.Time) (StockAlert, error)
	ListAlerts(ctx context.Context, onlyOpen bool, alertType AlertType, limit, offset int) ([]StockAlert, error)
	CountOpenAlertsByType(ctx context.Context) (map[AlertType]int, error)
	MaxFolioForDay(ctx context.Context, dayPrefix string) (string, error)
}

// FolioPort issues sequential document folios.
type FolioPort interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// GaugePort publishes the open-alert counts.
type GaugePort interface {
	SetActiveStockAlerts(alertType string, count int)
}

// Service implements warehouse operations.
type Service struct {
	repo   RepositoryPort
	folios FolioPort
	audit  AuditPort
	gauge  GaugePort
	logger *slog.Logger

	// Expiry window in days for pre-expiry alerts.
	expiryWarningDays int

	now func() time.Time
}

// NewService constructs Service.
func NewService(repo RepositoryPort, folios FolioPort, audit AuditPort, gauge GaugePort, expiryWarningDays int, logger *slog.Logger) *Service {
	if expiryWarningDays <= 0 {
		expiryWarningDays = 30
	}
	return &Service{
		repo:              repo,
		folios:            folios,
		audit:             audit,
		gauge:             gauge,
		logger:            logger,
		expiryWarningDays: expiryWarningDays,
		now:               time.Now,
	}
}

// CreateProduct registers a catalogue item and evaluates its initial
// stock level.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	product, err := s.repo.CreateProduct(ctx, input)
	if err != nil {
		return Product{}, err
	}
	s.evaluateStockAlerts(ctx, product)
	return product, nil
}

// UpdateProduct applies a partial catalogue update.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (Product, error) {
	product, err := s.repo.UpdateProduct(ctx, id, input)
	if err != nil {
		return Product{}, err
	}
	s.evaluateStockAlerts(ctx, product)
	return product, nil
}

// GetProduct loads one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// GetProductBySKU loads one product by SKU or barcode-equal SKU.
func (s *Service) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	return s.repo.GetProductBySKU(ctx, sku)
}

// ListProducts returns catalogue items.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

// RegisterEntry records a goods entry, adds stock per line and writes
// one ledger movement per line.
func (s *Service) RegisterEntry(ctx context.Context, input CreateEntryInput) (Entry, error) {
	folio, err := s.nextFolio(ctx, FolioPrefixEntry)
	if err != nil {
		return Entry{}, err
	}
	now := s.now()
	entry := Entry{
		Folio:         folio,
		Type:          input.Type,
		OrderFolio:    input.OrderFolio,
		WorkOrderID:   input.WorkOrderID,
		ReceivedByID:  input.ActorID,
		InvoiceNumber: input.InvoiceNumber,
		ShippingCost:  input.ShippingCost,
		ExtraCost:     input.ExtraCost,
		Observations:  input.Observations,
		EnteredAt:     now,
	}
	for _, line := range input.Items {
		entry.Items = append(entry.Items, EntryItem{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			UnitCost:     line.UnitCost,
			Batch:        line.Batch,
			ExpiryDate:   line.ExpiryDate,
			Location:     line.Location,
			Observations: line.Observations,
		})
	}

	var touched []int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry = created
		for _, item := range entry.Items {
			product, err := tx.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}
			after := product.Quantity + item.Quantity
			if err := tx.SetProductQuantity(ctx, product.ID, after); err != nil {
				return err
			}
			entryID := entry.ID
			movement := Movement{
				Type:         MovementEntry,
				ProductID:    product.ID,
				Quantity:     item.Quantity,
				QtyBefore:    product.Quantity,
				QtyAfter:     after,
				EntryID:      &entryID,
				ActorID:      input.ActorID,
				Observations: fmt.Sprintf("Entrada %s", entry.Folio),
				At:           now,
			}
			if err := tx.InsertMovement(ctx, movement); err != nil {
				return err
			}
			touched = append(touched, product.ID)
		}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}

	s.refreshAlerts(ctx, touched)
	s.recordAudit(ctx, input.ActorID, "warehouse.entry.create", "entry", entry.ID, entry.Folio)
	s.logger.Info("goods entry registered", slog.String("folio", entry.Folio), slog.String("type", string(entry.Type)), slog.Int("lines", len(entry.Items)))
	return entry, nil
}

// RegisterPurchaseEntry records a goods entry coming out of a received
// purchase order.
func (s *Service) RegisterPurchaseEntry(ctx context.Context, orderFolio string, receivedByID int64, remission, location string, lines []EntryItemInput) (Entry, error) {
	for i := range lines {
		if lines[i].Location == "" {
			lines[i].Location = location
		}
	}
	return s.RegisterEntry(ctx, CreateEntryInput{
		Type:          EntryInvoice,
		OrderFolio:    orderFolio,
		InvoiceNumber: remission,
		Items:         lines,
		ActorID:       receivedByID,
	})
}

// GetEntry loads an entry with items.
func (s *Service) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

// ListEntries returns entries, newest first.
func (s *Service) ListEntries(ctx context.Context, entryType EntryType, limit, offset int) ([]Entry, error) {
	return s.repo.ListEntries(ctx, entryType, limit, offset)
}

// CreateExitRequest opens an exit request. Work-order requests are
// born authorized, general ones queue for authorization.
func (s *Service) CreateExitRequest(ctx context.Context, input CreateExitRequestInput) (ExitRequest, error) {
	for _, line := range input.Items {
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return ExitRequest{}, err
		}
		if !product.Active {
			return ExitRequest{}, ErrProductInactive
		}
	}
	folio, err := s.nextFolio(ctx, FolioPrefixRequest)
	if err != nil {
		return ExitRequest{}, err
	}
	status := RequestPending
	if input.Type == RequestWorkOrder {
		status = RequestAuthorized
	}
	request := ExitRequest{
		Folio:         folio,
		Type:          input.Type,
		WorkOrderID:   input.WorkOrderID,
		RequesterID:   input.RequesterID,
		Status:        status,
		Justification: input.Justification,
	}
	for _, line := range input.Items {
		request.Items = append(request.Items, ExitRequestItem{
			ProductID:    line.ProductID,
			QtyRequested: line.QtyRequested,
			Notes:        line.Notes,
		})
	}
	created, err := s.repo.InsertRequest(ctx, request)
	if err != nil {
		return ExitRequest{}, err
	}
	s.recordAudit(ctx, input.RequesterID, "warehouse.request.create", "exit_request", created.ID, created.Folio)
	return created, nil
}

// AuthorizeRequest approves a pending exit request.
func (s *Service) AuthorizeRequest(ctx context.Context, id, authorizerID int64, comments string) (ExitRequest, error) {
	return s.resolveRequest(ctx, id, RequestAuthorized, authorizerID, comments)
}

// RejectRequest denies a pending exit request. Comments are mandatory.
func (s *Service) RejectRequest(ctx context.Context, id, authorizerID int64, comments string) (ExitRequest, error) {
	if comments == "" {
		return ExitRequest{}, ErrCommentsRequired
	}
	return s.resolveRequest(ctx, id, RequestRejected, authorizerID, comments)
}

func (s *Service) resolveRequest(ctx context.Context, id int64, status RequestStatus, authorizerID int64, comments string) (ExitRequest, error) {
	request, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return ExitRequest{}, err
	}
	if request.Status != RequestPending {
		return ExitRequest{}, ErrRequestNotPending
	}
	if err := s.repo.SetAuthorization(ctx, id, status, authorizerID, comments, s.now()); err != nil {
		return ExitRequest{}, err
	}
	s.recordAudit(ctx, authorizerID, fmt.Sprintf("warehouse.request.%s", status), "exit_request", id, request.Folio)
	return s.repo.GetRequest(ctx, id)
}

// CancelRequest cancels a request that did not reach delivery.
func (s *Service) CancelRequest(ctx context.Context, id, actorID int64) (ExitRequest, error) {
	request, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return ExitRequest{}, err
	}
	if request.Status != RequestPending && request.Status != RequestAuthorized {
		return ExitRequest{}, ErrRequestNotOpen
	}
	if err := s.repo.SetRequestStatus(ctx, id, RequestCancelled); err != nil {
		return ExitRequest{}, err
	}
	s.recordAudit(ctx, actorID, "warehouse.request.cancel", "exit_request", id, request.Folio)
	return s.repo.GetRequest(ctx, id)
}

// Deliver hands out products against an authorized request. Stock is
// checked line by line, partial deliveries accumulate until every line
// is complete.
func (s *Service) Deliver(ctx context.Context, requestID int64, input DeliverInput) (Exit, error) {
	folio, err := s.nextFolio(ctx, FolioPrefixExit)
	if err != nil {
		return Exit{}, err
	}
	now := s.now()
	var exit Exit
	var touched []int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		request, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if request.Status != RequestAuthorized {
			return ErrRequestNotOpen
		}
		byID := make(map[int64]ExitRequestItem, len(request.Items))
		for _, item := range request.Items {
			byID[item.ID] = item
		}

		exit = Exit{
			Folio:         folio,
			RequestID:     request.ID,
			DeliveredToID: input.DeliveredToID,
			DeliveredByID: input.ActorID,
			Observations:  input.Observations,
			ExitedAt:      now,
		}
		for _, line := range input.Items {
			item, ok := byID[line.RequestItemID]
			if !ok {
				return ErrItemNotFound
			}
			if line.Quantity > item.Pending() {
				return fmt.Errorf("%w: item %d", ErrQuantityExceeds, line.RequestItemID)
			}
			product, err := tx.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if product.Quantity < line.Quantity {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, product.SKU)
			}
			exit.Items = append(exit.Items, ExitItem{
				RequestItemID: line.RequestItemID,
				ProductID:     item.ProductID,
				QtyDelivered:  line.Quantity,
				Batch:         line.Batch,
				FromLocation:  line.FromLocation,
			})
			item.QtyDelivered += line.Quantity
			byID[line.RequestItemID] = item
		}

		created, err := tx.InsertExit(ctx, exit)
		if err != nil {
			return err
		}
		exit = created
		exitID := exit.ID
		for _, delivered := range exit.Items {
			product, err := tx.GetProductForUpdate(ctx, delivered.ProductID)
			if err != nil {
				return err
			}
			// The per-line check above ran against the undecremented
			// quantity, so two lines on one product must be re-verified
			// here where earlier decrements are visible.
			if product.Quantity < delivered.QtyDelivered {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, product.SKU)
			}
			after := product.Quantity - delivered.QtyDelivered
			if err := tx.SetProductQuantity(ctx, product.ID, after); err != nil {
				return err
			}
			movement := Movement{
				Type:         MovementExit,
				ProductID:    product.ID,
				Quantity:     -delivered.QtyDelivered,
				QtyBefore:    product.Quantity,
				QtyAfter:     after,
				ExitID:       &exitID,
				ActorID:      input.ActorID,
				Observations: fmt.Sprintf("Salida %s", exit.Folio),
				At:           now,
			}
			if err := tx.InsertMovement(ctx, movement); err != nil {
				return err
			}
			if err := tx.AddDeliveredQty(ctx, delivered.RequestItemID, delivered.QtyDelivered); err != nil {
				return err
			}
			touched = append(touched, product.ID)
		}

		complete := true
		for _, item := range byID {
			if !item.Complete() {
				complete = false
				break
			}
		}
		if complete {
			if err := tx.SetRequestStatus(ctx, request.ID, RequestDelivered); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Exit{}, err
	}

	s.refreshAlerts(ctx, touched)
	s.recordAudit(ctx, input.ActorID, "warehouse.exit.deliver", "exit", exit.ID, exit.Folio)
	s.logger.Info("exit delivered", slog.String("folio", exit.Folio), slog.Int64("request_id", requestID), slog.Int("lines", len(exit.Items)))
	return exit, nil
}

// QuickConsumableExit hands out a consumable without the request flow.
func (s *Service) QuickConsumableExit(ctx context.Context, input QuickExitInput) (QuickExit, error) {
	folio, err := s.nextFolio(ctx, FolioPrefixQuickOut)
	if err != nil {
		return QuickExit{}, err
	}
	now := s.now()
	var exit QuickExit
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if !product.Active {
			return ErrProductInactive
		}
		if !product.Consumable {
			return ErrNotConsumable
		}
		if product.Quantity < input.Quantity {
			return fmt.Errorf("%w: %s", ErrInsufficientStock, product.SKU)
		}
		exit = QuickExit{
			Folio:         folio,
			ProductID:     product.ID,
			Quantity:      input.Quantity,
			DeliveredByID: input.ActorID,
			RequesterName: input.RequesterName,
			Reason:        input.Reason,
			ExitedAt:      now,
		}
		created, err := tx.InsertQuickExit(ctx, exit)
		if err != nil {
			return err
		}
		exit = created
		after := product.Quantity - input.Quantity
		if err := tx.SetProductQuantity(ctx, product.ID, after); err != nil {
			return err
		}
		return tx.InsertMovement(ctx, Movement{
			Type:         MovementExit,
			ProductID:    product.ID,
			Quantity:     -input.Quantity,
			QtyBefore:    product.Quantity,
			QtyAfter:     after,
			ActorID:      input.ActorID,
			Observations: fmt.Sprintf("Salida rápida %s para %s", exit.Folio, input.RequesterName),
			At:           now,
		})
	})
	if err != nil {
		return QuickExit{}, err
	}

	s.refreshAlerts(ctx, []int64{input.ProductID})
	s.recordAudit(ctx, input.ActorID, "warehouse.quick_exit", "quick_exit", exit.ID, exit.Folio)
	return exit, nil
}

// AdjustStock sets the counted quantity and records the delta in the
// ledger.
func (s *Service) AdjustStock(ctx context.Context, productID int64, input AdjustStockInput) (Product, error) {
	now := s.now()
	var adjusted Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := tx.SetProductQuantity(ctx, product.ID, input.NewQuantity); err != nil {
			return err
		}
		adjusted = product
		adjusted.Quantity = input.NewQuantity
		return tx.InsertMovement(ctx, Movement{
			Type:         MovementAdjustment,
			ProductID:    product.ID,
			Quantity:     input.NewQuantity - product.Quantity,
			QtyBefore:    product.Quantity,
			QtyAfter:     input.NewQuantity,
			ActorID:      input.ActorID,
			Observations: input.Reason,
			At:           now,
		})
	})
	if err != nil {
		return Product{}, err
	}
	s.refreshAlerts(ctx, []int64{productID})
	s.recordAudit(ctx, input.ActorID, "warehouse.stock.adjust", "product", productID, input.Reason)
	return adjusted, nil
}

// GetRequest loads one exit request with items.
func (s *Service) GetRequest(ctx context.Context, id int64) (ExitRequest, error) {
	return s.repo.GetRequest(ctx, id)
}

// ListRequests returns exit requests.
func (s *Service) ListRequests(ctx context.Context, filter RequestFilter) ([]ExitRequest, error) {
	return s.repo.ListRequests(ctx, filter)
}

// ListExits returns deliveries for a request.
func (s *Service) ListExits(ctx context.Context, requestID int64) ([]Exit, error) {
	return s.repo.ListExits(ctx, requestID)
}

// ListQuickExits returns consumable hand-outs.
func (s *Service) ListQuickExits(ctx context.Context, productID int64, limit, offset int) ([]QuickExit, error) {
	return s.repo.ListQuickExits(ctx, productID, limit, offset)
}

// ListMovements returns the stock ledger.
func (s *Service) ListMovements(ctx context.Context, productID int64, limit, offset int) ([]Movement, error) {
	return s.repo.ListMovements(ctx, productID, limit, offset)
}

// ListAlerts returns stock alerts.
func (s *Service) ListAlerts(ctx context.Context, onlyOpen bool, alertType AlertType, limit, offset int) ([]StockAlert, error) {
	return s.repo.ListAlerts(ctx, onlyOpen, alertType, limit, offset)
}

// ResolveAlert closes an alert by hand.
func (s *Service) ResolveAlert(ctx context.Context, id, actorID int64) (StockAlert, error) {
	alert, err := s.repo.ResolveAlert(ctx, id, actorID, s.now())
	if err != nil {
		return StockAlert{}, err
	}
	s.recordAudit(ctx, actorID, "warehouse.alert.resolve", "stock_alert", id, alert.Message)
	s.publishAlertGauge(ctx)
	return alert, nil
}

// ExpiryScan raises expiry alerts for products approaching or past
// their expiry date. Run from the scheduler.
func (s *Service) ExpiryScan(ctx context.Context) (int, error) {
	now := s.now()
	until := now.AddDate(0, 0, s.expiryWarningDays)
	products, err := s.repo.ListProductsWithExpiry(ctx, until)
	if err != nil {
		return 0, err
	}
	raised := 0
	for _, product := range products {
		var created bool
		var err error
		switch {
		case product.Expired(now):
			created, err = s.repo.OpenAlert(ctx, product.ID, AlertExpired,
				fmt.Sprintf("%s (%s) caducó el %s", product.Description, product.SKU, product.ExpiryDate.Format("2006-01-02")))
		case product.ExpiringSoon(now, s.expiryWarningDays):
			days := int(product.ExpiryDate.Sub(now).Hours() / 24)
			created, err = s.repo.OpenAlert(ctx, product.ID, AlertExpiring,
				fmt.Sprintf("%s (%s) caduca en %d días", product.Description, product.SKU, days))
		}
		if err != nil {
			return raised, err
		}
		if created {
			raised++
		}
	}
	s.publishAlertGauge(ctx)
	return raised, nil
}

// evaluateStockAlerts applies the quantity alert rules to one product.
// Out of stock beats minimum stock, and a normal level auto-resolves
// both open quantity alerts.
func (s *Service) evaluateStockAlerts(ctx context.Context, product Product) {
	switch {
	case product.StockOut():
		_, err := s.repo.OpenAlert(ctx, product.ID, AlertStockOut,
			fmt.Sprintf("%s (%s) se agotó", product.Description, product.SKU))
		if err != nil {
			s.logger.Error("open stock alert", slog.Int64("product_id", product.ID), slog.Any("error", err))
		}
	case product.StockLow():
		_, err := s.repo.OpenAlert(ctx, product.ID, AlertStockMin,
			fmt.Sprintf("%s (%s) llegó al stock mínimo: %.2f %s", product.Description, product.SKU, product.Quantity, product.Unit))
		if err != nil {
			s.logger.Error("open stock alert", slog.Int64("product_id", product.ID), slog.Any("error", err))
		}
	default:
		err := s.repo.ResolveAlertsForProduct(ctx, product.ID, []AlertType{AlertStockOut, AlertStockMin}, s.now())
		if err != nil {
			s.logger.Error("resolve stock alerts", slog.Int64("product_id", product.ID), slog.Any("error", err))
		}
	}
}

// refreshAlerts re-evaluates quantity alerts for the touched products
// after a stock-changing transaction committed.
func (s *Service) refreshAlerts(ctx context.Context, productIDs []int64) {
	seen := make(map[int64]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		product, err := s.repo.GetProduct(ctx, id)
		if err != nil {
			s.logger.Error("reload product for alerts", slog.Int64("product_id", id), slog.Any("error", err))
			continue
		}
		s.evaluateStockAlerts(ctx, product)
	}
	if len(seen) > 0 {
		s.publishAlertGauge(ctx)
	}
}

func (s *Service) publishAlertGauge(ctx context.Context) {
	if s.gauge == nil {
		return
	}
	counts, err := s.repo.CountOpenAlertsByType(ctx)
	if err != nil {
		s.logger.Error("count open alerts", slog.Any("error", err))
		return
	}
	for _, alertType := range []AlertType{AlertStockMin, AlertStockOut, AlertExpiring, AlertExpired} {
		s.gauge.SetActiveStockAlerts(string(alertType), counts[alertType])
	}
}

func (s *Service) nextFolio(ctx context.Context, prefix string) (string, error) {
	if s.folios != nil {
		folio, err := s.folios.Next(ctx, prefix)
		if err == nil {
			return folio, nil
		}
		s.logger.Warn("folio sequencer unavailable, deriving from storage", slog.String("prefix", prefix), slog.Any("error", err))
	}
	day := s.now().Format("20060102")
	max, err := s.repo.MaxFolioForDay(ctx, fmt.Sprintf("%s-%s", prefix, day))
	if err != nil {
		return "", err
	}
	return shared.NextFolioAfter(prefix, day, max), nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, detail string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     map[string]any{"detail": detail},
	})
}
