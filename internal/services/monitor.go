package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"price-checker/internal/database"
	"price-checker/internal/models"
	"price-checker/internal/scraper"
	"sync"
	"time"

	"gorm.io/gorm"
)

// MonitorService drives product checks: scrape, detect state changes,
// persist, and notify
type MonitorService struct {
	registry      *scraper.Registry
	notifyService *NotifyService
	workers       int
}

// NewMonitorService creates a new monitoring service. workers bounds how
// many products are checked concurrently within one batch.
func NewMonitorService(registry *scraper.Registry, notifyService *NotifyService, workers int) *MonitorService {
	if workers <= 0 {
		workers = 1
	}
	return &MonitorService{
		registry:      registry,
		notifyService: notifyService,
		workers:       workers,
	}
}

// CheckAllProducts checks every tracked product for the given kind.
// Products are checked through a fixed-size worker pool to stay a
// well-behaved scraping client; a single product's failure never aborts
// the batch.
func (s *MonitorService) CheckAllProducts(ctx context.Context, kind models.CheckKind) error {
	db := database.GetDB()

	var products []models.Product
	if err := db.Find(&products).Error; err != nil {
		return fmt.Errorf("failed to fetch products: %w", err)
	}

	log.Printf("Checking %d products (%s)...", len(products), kind)

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for _, product := range products {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(p models.Product) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.CheckProduct(ctx, &p, kind); err != nil {
				log.Printf("Error checking product %s: %v", p.URL, err)
			}
		}(product)
	}

	wg.Wait()
	return nil
}

// CheckProduct runs a single check: one CheckRecord is always appended,
// last-known state is updated only on success, and at most one
// notification fires for the resulting transition.
func (s *MonitorService) CheckProduct(ctx context.Context, product *models.Product, kind models.CheckKind) error {
	obs := s.observe(ctx, product, kind)

	transition, prevPrice, err := s.persist(product, obs)
	if err != nil {
		return fmt.Errorf("failed to persist check for %s: %w", product.URL, err)
	}

	if !obs.Success() {
		log.Printf("Check failed for %s (%s): %s", product.URL, obs.Outcome, obs.Detail)
		return nil
	}

	log.Printf("Checked %s (%s): transition=%s", product.Name, kind, transition)

	if transition.ShouldNotify() {
		// Delivery failure is logged inside the notify service and never
		// rolls back the already-persisted state
		s.notifyService.Notify(product, transition, obs, prevPrice)
	}

	return nil
}

// observe performs the scrape and normalizes the result. Scrape failures
// become failure outcomes, never errors: the caller always gets an
// observation to record.
func (s *MonitorService) observe(ctx context.Context, product *models.Product, kind models.CheckKind) Observation {
	obs := Observation{
		Kind:      kind,
		Outcome:   models.OutcomeSuccess,
		CheckedAt: time.Now(),
	}

	// Admission is gated on a resolvable scraper, so this only fails if
	// the registry shrank after the product was added
	sc, err := s.registry.Resolve(product.URL)
	if err != nil {
		obs.Outcome = models.OutcomeParseError
		obs.Detail = err.Error()
		return obs
	}

	result, err := sc.Scrape(ctx, product.URL)
	if err != nil {
		var fetchErr *scraper.FetchError
		if errors.As(err, &fetchErr) {
			obs.Outcome = models.OutcomeFetchError
		} else {
			obs.Outcome = models.OutcomeParseError
		}
		obs.Detail = err.Error()
		return obs
	}

	obs.Name = result.Name
	obs.Available = result.Available
	obs.Price = result.Price
	obs.Currency = result.Currency

	// The scraper must produce the requested field; otherwise the check
	// is a parse error rather than a fabricated value
	switch kind {
	case models.KindAvailability:
		if obs.Available == nil {
			obs.Outcome = models.OutcomeParseError
			obs.Detail = "scraper produced no availability"
		}
	case models.KindPrice:
		if obs.Price == nil {
			obs.Outcome = models.OutcomeParseError
			obs.Detail = "scraper produced no price"
		}
	}

	return obs
}

// persist writes the CheckRecord and the product state update as one
// transaction, so a reader never sees one without the other. The stored
// row is re-read inside the transaction and only the checked kind's
// columns are written, so overlapping availability and price checks
// never overwrite each other's last-known state. Returns the transition
// and the prior price for successful observations.
func (s *MonitorService) persist(product *models.Product, obs Observation) (Transition, *float64, error) {
	db := database.GetDB()

	record := models.CheckRecord{
		ProductID: product.ID,
		Kind:      obs.Kind,
		Available: obs.Available,
		Price:     obs.Price,
		Currency:  obs.Currency,
		Outcome:   obs.Outcome,
		Detail:    obs.Detail,
		CheckedAt: obs.CheckedAt,
	}

	var transition Transition
	var prevPrice *float64

	err := db.Transaction(func(tx *gorm.DB) error {
		// Evaluate against the stored row, not the caller's copy: a
		// concurrent batch may have updated the other kind since this
		// product was loaded
		var current models.Product
		if err := tx.First(&current, product.ID).Error; err != nil {
			return err
		}
		prevPrice = current.LastPrice

		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		current.LastStatus = string(obs.Outcome)
		updates := map[string]interface{}{
			"last_status": string(obs.Outcome),
		}

		if obs.Success() {
			transition = Evaluate(&current, obs)

			checkedAt := obs.CheckedAt
			switch obs.Kind {
			case models.KindAvailability:
				current.LastAvailable = obs.Available
				current.LastAvailabilityCheck = &checkedAt
				updates["last_available"] = obs.Available
				updates["last_availability_check"] = checkedAt
			case models.KindPrice:
				current.LastPrice = obs.Price
				current.LastPriceCheck = &checkedAt
				updates["last_price"] = obs.Price
				updates["last_price_check"] = checkedAt
				if obs.Currency != "" {
					current.Currency = obs.Currency
					updates["currency"] = obs.Currency
				}
			}

			// First successful scrape seeds the name if the user left it
			// blank; an auto-detected name keeps following the page
			if obs.Name != "" && obs.Name != current.Name &&
				(current.Name == "" || current.NameAutoDetected) {
				current.Name = obs.Name
				current.NameAutoDetected = true
				updates["name"] = obs.Name
				updates["name_auto_detected"] = true
			}
		}

		if err := tx.Model(&models.Product{}).Where("id = ?", current.ID).Updates(updates).Error; err != nil {
			return err
		}

		*product = current
		return nil
	})

	return transition, prevPrice, err
}
